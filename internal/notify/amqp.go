package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"slot-settlement/models"
	"slot-settlement/utils"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultEventQueue receives every committed engine event.
const DefaultEventQueue = "slot.events"

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Relay forwards committed events to RabbitMQ as persistent JSON messages.
type Relay struct {
	conn    *amqp.Connection
	channel amqpChannel
	queue   string
	breaker *utils.CircuitBreaker
}

func DialRelay(url, queue string) (*Relay, error) {
	if queue == "" {
		queue = DefaultEventQueue
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq declare %s: %w", queue, err)
	}

	slog.Info("event relay connected", "queue", queue)
	relay := newRelay(ch, queue)
	relay.conn = conn
	return relay, nil
}

func newRelay(ch amqpChannel, queue string) *Relay {
	return &Relay{
		channel: ch,
		queue:   queue,
		breaker: utils.NewCircuitBreaker("amqp", utils.WithMaxRequests(20)),
	}
}

func (r *Relay) Notify(ctx context.Context, events []models.Event) error {
	var errs []error
	for _, ev := range events {
		body, err := json.Marshal(ev)
		if err != nil {
			errs = append(errs, fmt.Errorf("marshal %s: %w", ev.Kind, err))
			continue
		}
		msg := amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Type:         string(ev.Kind),
			Timestamp:    time.Unix(ev.At, 0).UTC(),
			Body:         body,
		}
		err = r.breaker.Execute(ctx, func(ctx context.Context) error {
			return r.channel.PublishWithContext(ctx, "", r.queue, false, false, msg)
		})
		if err != nil {
			slog.Warn("event relay publish failed", "kind", ev.Kind, "slot_id", ev.SlotID, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Relay) Close() error {
	err := r.channel.Close()
	if r.conn != nil {
		err = errors.Join(err, r.conn.Close())
	}
	return err
}
