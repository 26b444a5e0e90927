// Package events publishes call lifecycle events to an AMQP topic exchange so
// downstream consumers (CRM sync, analytics) can react without polling the API.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

const (
	KindCallInitiated    = "call.initiated"
	KindCallDialResolved = "call.dial.resolved"
	KindCallCompleted    = "call.completed"
	KindCallFailed       = "call.failed"
)

// Envelope is the wire shape for every published event.
type Envelope struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, kind string, payload any) error
	Close() error
}

type amqpPublisher struct {
	conn     *amqp091.Connection
	ch       *amqp091.Channel
	exchange string
	log      *slog.Logger
}

const (
	dialAttempts  = 5
	dialBaseDelay = 500 * time.Millisecond
	dialMaxDelay  = 30 * time.Second
)

// NewAMQP connects to RabbitMQ and declares a durable topic exchange. The
// dial retries with exponential backoff; brokers often come up after us.
func NewAMQP(ctx context.Context, url, exchange string, log *slog.Logger) (Publisher, error) {
	conn, err := dialWithRetry(ctx, url, log)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &amqpPublisher{conn: conn, ch: ch, exchange: exchange, log: log}, nil
}

func dialWithRetry(ctx context.Context, url string, log *slog.Logger) (*amqp091.Connection, error) {
	var lastErr error
	delay := dialBaseDelay
	for i := 1; i <= dialAttempts; i++ {
		conn, err := amqp091.Dial(url)
		if err == nil {
			if i > 1 {
				log.Info("amqp connected", "attempt", i)
			}
			return conn, nil
		}
		lastErr = err
		log.Warn("amqp dial failed", "attempt", i, "retry_in", delay, "err", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		if delay *= 2; delay > dialMaxDelay {
			delay = dialMaxDelay
		}
	}
	return nil, fmt.Errorf("events: amqp dial after %d attempts: %w", dialAttempts, lastErr)
}

func (p *amqpPublisher) Publish(ctx context.Context, kind string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	env := Envelope{
		ID:         uuid.NewString(),
		Kind:       kind,
		OccurredAt: time.Now().UTC(),
		Payload:    body,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx, p.exchange, kind, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    env.ID,
		Timestamp:    env.OccurredAt,
		Body:         raw,
	})
}

func (p *amqpPublisher) Close() error {
	_ = p.ch.Close()
	return p.conn.Close()
}

// FallbackPublisher is used when AMQP is not configured; it logs and drops.
type FallbackPublisher struct {
	Log *slog.Logger
}

func (p FallbackPublisher) Publish(ctx context.Context, kind string, payload any) error {
	if p.Log != nil {
		p.Log.Debug("event publish skipped (no broker)", "kind", kind)
	}
	return nil
}

func (p FallbackPublisher) Close() error { return nil }
