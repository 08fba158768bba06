package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"monoova-gateway/internal/common/logging"
)

// WebhookEvent is the envelope published for every accepted webhook.
// Payload holds the body verbatim when it is JSON; otherwise Raw carries it as text.
type WebhookEvent struct {
	Environment string          `json:"environment"`
	RequestID   string          `json:"request_id,omitempty"`
	ReceivedAt  time.Time       `json:"received_at"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Raw         string          `json:"raw,omitempty"`
}

// EventPublisher hands accepted webhooks to downstream consumers over Redis pub/sub
type EventPublisher struct {
	client  *Client
	channel string
	logger  logging.Logger
}

// NewEventPublisher creates a publisher for channel
func NewEventPublisher(client *Client, channel string) *EventPublisher {
	return &EventPublisher{
		client:  client,
		channel: channel,
		logger:  logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "webhook-publisher"}),
	}
}

// Deliver publishes body for environment. The body bytes are never re-encoded.
func (p *EventPublisher) Deliver(ctx context.Context, environment string, body []byte) error {
	event := WebhookEvent{
		Environment: environment,
		RequestID:   logging.RequestIDFromContext(ctx),
		ReceivedAt:  time.Now().UTC(),
	}
	if json.Valid(body) {
		event.Payload = json.RawMessage(body)
	} else {
		event.Raw = string(body)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding webhook event: %w", err)
	}

	receivers, err := p.client.Publish(ctx, p.channel, data)
	if err != nil {
		return fmt.Errorf("publishing webhook event to %s: %w", p.channel, err)
	}

	p.logger.Debug("Published webhook event",
		logging.Field{Key: "channel", Value: p.channel},
		logging.Field{Key: "environment", Value: environment},
		logging.Field{Key: "receivers", Value: receivers},
	)
	return nil
}
