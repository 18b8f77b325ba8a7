// Package events publishes transcription lifecycle events. Publishing is
// best-effort: failures are logged and never change the job outcome.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/transcribe-be/internal/api/domain"
	"github.com/cuongbtq/transcribe-be/internal/api/model"
)

const contentTypeJSON = "application/json"

// Event is the message body published on terminal transitions
type Event struct {
	Type            string        `json:"type"`
	JobID           string        `json:"job_id"`
	OwnerID         string        `json:"owner_id"`
	Status          domain.Status `json:"status"`
	DurationSeconds int           `json:"duration_seconds,omitempty"`
	OccurredAt      time.Time     `json:"occurred_at"`
}

// RoutingKey returns the topic key for e, e.g. transcription.complete
func (e Event) RoutingKey() string {
	return "transcription." + e.Status.String()
}

// NewEvent builds the event for a transcription that just reached a terminal status
func NewEvent(t *model.Transcription, now time.Time) Event {
	return Event{
		Type:            "transcription." + t.Status.String(),
		JobID:           t.ID,
		OwnerID:         t.UserID,
		Status:          t.Status,
		DurationSeconds: t.Duration(),
		OccurredAt:      now.UTC(),
	}
}

// Publisher delivers lifecycle events
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Broker is the transport used by AMQPPublisher. *rabbitmq.Client satisfies it.
type Broker interface {
	PublishWithRetry(ctx context.Context, routingKey string, body []byte, contentType string) error
}

// AMQPPublisher publishes events as JSON to a topic exchange
type AMQPPublisher struct {
	broker Broker
	logger *slog.Logger
}

// NewAMQPPublisher creates a publisher on top of broker
func NewAMQPPublisher(broker Broker, logger *slog.Logger) *AMQPPublisher {
	return &AMQPPublisher{broker: broker, logger: logger}
}

func (p *AMQPPublisher) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.broker.PublishWithRetry(ctx, e.RoutingKey(), body, contentTypeJSON); err != nil {
		return err
	}

	p.logger.Debug("Lifecycle event published",
		slog.String("job_id", e.JobID),
		slog.String("routing_key", e.RoutingKey()),
	)
	return nil
}

// Noop discards events. Used when the message broker is disabled.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
