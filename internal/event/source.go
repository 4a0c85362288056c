package event

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"quizblitz-service/internal/metrics"
	"quizblitz-service/internal/models"
	"quizblitz-service/internal/repository"
)

const pollBatchSize = 100

// Source delivers events for one quiz code in _id order, starting after
// a caller-supplied cursor. Whichever implementation backs it, consumers
// see the same ordered replay; the channel closes when the subscription
// context ends.
type Source interface {
	Subscribe(ctx context.Context, quizCode string, after primitive.ObjectID) <-chan models.QuizEvent
	Mode() string
}

// Log is the slice of the event repository the polling source reads.
type Log interface {
	ListAfter(ctx context.Context, quizCode string, after primitive.ObjectID, limit int) ([]models.QuizEvent, error)
}

// StreamLog additionally supports Mongo change streams.
type StreamLog interface {
	Log
	Watch(ctx context.Context, quizCode string) (*mongo.ChangeStream, error)
}

// SelectSource probes change stream support once at startup and picks
// the delivery mode for the process lifetime. Standalone Mongo cannot
// open change streams, so those deployments run on interval polling.
func SelectSource(ctx context.Context, events *repository.EventRepository, pollInterval time.Duration) Source {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cs, err := events.Watch(probeCtx, "startup-probe")
	if err != nil {
		log.Printf("[EVENT] change streams unavailable, falling back to polling: %v", err)
		metrics.StreamFallbackActive.Set(1)
		return NewPollingSource(events, pollInterval)
	}
	_ = cs.Close(probeCtx)
	metrics.StreamFallbackActive.Set(0)
	return NewChangeStreamSource(events, pollInterval)
}

// PollingSource replays the log on a fixed interval. Each round reads
// everything past the cursor, so no event is skipped even when many land
// between polls.
type PollingSource struct {
	log      Log
	interval time.Duration
}

func NewPollingSource(eventLog Log, interval time.Duration) *PollingSource {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &PollingSource{log: eventLog, interval: interval}
}

func (s *PollingSource) Mode() string { return "polling" }

func (s *PollingSource) Subscribe(ctx context.Context, quizCode string, after primitive.ObjectID) <-chan models.QuizEvent {
	out := make(chan models.QuizEvent)
	go func() {
		defer close(out)
		cursor := after
		for {
			events, err := s.log.ListAfter(ctx, quizCode, cursor, pollBatchSize)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("[EVENT] poll for %s failed: %v", quizCode, err)
			}
			for _, ev := range events {
				select {
				case out <- ev:
					cursor = ev.ID
				case <-ctx.Done():
					return
				}
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.interval):
			}
		}
	}()
	return out
}

// ChangeStreamSource pushes events as Mongo commits them. The stream is
// opened before the backlog replay so nothing inserted in between is
// lost; the overlap is deduplicated by cursor comparison.
type ChangeStreamSource struct {
	log          StreamLog
	pollInterval time.Duration
}

func NewChangeStreamSource(eventLog StreamLog, pollInterval time.Duration) *ChangeStreamSource {
	return &ChangeStreamSource{log: eventLog, pollInterval: pollInterval}
}

func (s *ChangeStreamSource) Mode() string { return "change-stream" }

func (s *ChangeStreamSource) Subscribe(ctx context.Context, quizCode string, after primitive.ObjectID) <-chan models.QuizEvent {
	out := make(chan models.QuizEvent)
	go func() {
		defer close(out)

		cs, err := s.log.Watch(ctx, quizCode)
		if err != nil {
			// The probe passed at startup but the stream failed now;
			// degrade this one subscription to polling.
			log.Printf("[EVENT] change stream for %s failed, degrading to polling: %v", quizCode, err)
			s.pollInto(ctx, out, quizCode, after)
			return
		}
		defer cs.Close(context.Background())

		cursor := after
		backlog, err := s.log.ListAfter(ctx, quizCode, cursor, pollBatchSize)
		if err != nil {
			log.Printf("[EVENT] backlog replay for %s failed: %v", quizCode, err)
		}
		for _, ev := range backlog {
			select {
			case out <- ev:
				cursor = ev.ID
			case <-ctx.Done():
				return
			}
		}

		for cs.Next(ctx) {
			var doc struct {
				FullDocument models.QuizEvent `bson:"fullDocument"`
			}
			if err := cs.Decode(&doc); err != nil {
				log.Printf("[EVENT] change stream decode for %s failed: %v", quizCode, err)
				continue
			}
			ev := doc.FullDocument
			if !cursor.IsZero() && ev.ID.Hex() <= cursor.Hex() {
				continue
			}
			select {
			case out <- ev:
				cursor = ev.ID
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (s *ChangeStreamSource) pollInto(ctx context.Context, out chan<- models.QuizEvent, quizCode string, after primitive.ObjectID) {
	cursor := after
	for {
		events, err := s.log.ListAfter(ctx, quizCode, cursor, pollBatchSize)
		if err != nil && ctx.Err() != nil {
			return
		}
		for _, ev := range events {
			select {
			case out <- ev:
				cursor = ev.ID
			case <-ctx.Done():
				return
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.pollInterval):
		}
	}
}
