package event

import (
	"context"
	"log"
	"time"

	"quizblitz-service/internal/metrics"
	"quizblitz-service/internal/models"
	"quizblitz-service/internal/repository"
)

// Recorder appends events to the Mongo log and optionally mirrors them
// to RabbitMQ. Recording never fails the operation that produced the
// event; failures are logged and dropped.
type Recorder struct {
	events *repository.EventRepository
	mirror *Publisher
}

// NewRecorder wires the event log, with an optional broker mirror.
// Pass a nil mirror when RabbitMQ is not configured.
func NewRecorder(events *repository.EventRepository, mirror *Publisher) *Recorder {
	return &Recorder{events: events, mirror: mirror}
}

func (r *Recorder) Record(ctx context.Context, quizCode string, eventType models.EventType, data interface{}) {
	if !eventType.Valid() {
		log.Printf("[EVENT] dropping unknown event type %q for %s", eventType, quizCode)
		return
	}
	_, err := r.events.Append(ctx, models.QuizEvent{
		QuizCode:  quizCode,
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
	})
	if err != nil {
		log.Printf("[EVENT] append %s for %s failed: %v", eventType, quizCode, err)
		return
	}
	metrics.EventsRecorded.WithLabelValues(string(eventType)).Inc()

	if r.mirror != nil {
		if err := r.mirror.Publish(quizCode, eventType, data); err != nil {
			log.Printf("[EVENT] broker mirror for %s failed: %v", eventType, err)
		}
	}
}
