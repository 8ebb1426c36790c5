package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AuthEventsQueue is the durable queue session events are published to.
const AuthEventsQueue = "auth.events"

// Publisher sends AuthEvents to RabbitMQ.  Each Publish dials, declares the
// queue and closes again; session events are rare enough that a pooled
// channel is not worth the reconnect bookkeeping.
type Publisher struct {
	url    string
	logger *slog.Logger
}

// NewPublisher returns a Publisher for the broker at url.
func NewPublisher(url string, logger *slog.Logger) *Publisher {
	return &Publisher{url: url, logger: logger}
}

// Publish marks the message persistent and routes it through the default
// exchange.  Failures are logged and returned so the caller can ignore them.
func (p *Publisher) Publish(ctx context.Context, ev AuthEvent) error {
	msg, err := encode(ev)
	if err != nil {
		return err
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.logger.Warn("rabbitmq dial failed", "err", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.logger.Warn("rabbitmq channel open failed", "err", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(AuthEventsQueue, true, false, false, false, nil); err != nil {
		p.logger.Warn("rabbitmq queue declare failed", "err", err)
		return err
	}
	if err := ch.PublishWithContext(ctx, "", AuthEventsQueue, false, false, msg); err != nil {
		p.logger.Warn("rabbitmq publish failed", "type", ev.Type, "err", err)
		return err
	}
	return nil
}

func encode(ev AuthEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal event: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         string(ev.Type),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}, nil
}
