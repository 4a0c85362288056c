package event

import (
	"encoding/json"
	"time"

	"github.com/streadway/amqp"

	"quizblitz-service/internal/models"
)

// Publisher mirrors quiz events onto a RabbitMQ topic exchange so other
// services can react without reading our Mongo log. Delivery here is
// best effort; the Mongo event log stays the source of truth for
// connected clients.
type Publisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

type envelope struct {
	QuizCode  string      `json:"quizCode"`
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewPublisher(amqpURL, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	return &Publisher{conn: conn, channel: ch, exchange: exchange}, nil
}

// Publish sends one event with the event type as routing key, so
// consumers can bind to e.g. "quiz-ended" only.
func (p *Publisher) Publish(quizCode string, eventType models.EventType, data interface{}) error {
	body, err := json.Marshal(envelope{
		QuizCode:  quizCode,
		Type:      string(eventType),
		Data:      data,
		Timestamp: time.Now(),
	})
	if err != nil {
		return err
	}
	return p.channel.Publish(
		p.exchange,
		string(eventType),
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
}

func (p *Publisher) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
