package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/afyacare/clinic-api/internal/domain/event"
)

// NewRabbitMQ dials the broker
func NewRabbitMQ(url string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

// Publisher emits domain events onto a durable topic exchange
type Publisher struct {
	ch       *amqp.Channel
	exchange string
	log      zerolog.Logger
}

// NewPublisher opens a channel and declares the topic exchange
func NewPublisher(conn *amqp.Connection, exchange string, log zerolog.Logger) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // kind
		true,     // durable
		false,    // autoDelete
		false,    // internal
		false,    // noWait
		nil,      // args
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Publisher{ch: ch, exchange: exchange, log: log}, nil
}

// PublishStageCompleted emits a stage transition event
func (p *Publisher) PublishStageCompleted(ctx context.Context, evt event.StageCompleted) error {
	return p.publish(ctx, event.TopicStageCompleted, evt)
}

// PublishVisitCompleted emits a visit completion event
func (p *Publisher) PublishVisitCompleted(ctx context.Context, evt event.VisitCompleted) error {
	return p.publish(ctx, event.TopicVisitCompleted, evt)
}

func (p *Publisher) publish(ctx context.Context, routingKey string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	err = p.ch.PublishWithContext(ctx,
		p.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		p.log.Error().Err(err).Str("routing_key", routingKey).Msg("failed to publish event")
		return err
	}

	p.log.Debug().Str("routing_key", routingKey).Msg("published event")
	return nil
}

// Close releases the channel
func (p *Publisher) Close() error {
	return p.ch.Close()
}
