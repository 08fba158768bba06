package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"monoova-gateway/internal/common/logging"
	"monoova-gateway/internal/models"
	"monoova-gateway/internal/signature"
)

// LogSink logs accepted webhooks and nothing else
type LogSink struct {
	logger logging.Logger
}

// NewLogSink creates a sink on the global logger
func NewLogSink() *LogSink {
	return &LogSink{logger: logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "webhook-sink"})}
}

// Deliver logs the event type and id when the body carries them
func (s *LogSink) Deliver(ctx context.Context, environment string, body []byte) error {
	var event struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	}
	_ = json.Unmarshal(body, &event)

	s.logger.WithContext(ctx).Info("Webhook accepted",
		logging.Field{Key: "environment", Value: environment},
		logging.Field{Key: "event_type", Value: event.Type},
		logging.Field{Key: "event_id", Value: event.ID},
		logging.Field{Key: "bytes", Value: len(body)},
	)
	return nil
}

// HandleWebhook acknowledges a verified webhook and hands its raw body to
// the sink. It must run behind signature.Middleware.
func (h *Handlers) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	r, env := withEnvironment(r)

	body, ok := signature.RawBody(r.Context())
	if !ok {
		// Never process a body that was not verified.
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	if err := h.sink.Deliver(r.Context(), env.String(), body); err != nil {
		h.logger.WithContext(r.Context()).Error("Failed to deliver webhook", err)
		sendError(w, http.StatusInternalServerError, "delivery failed")
		return
	}

	sendJSON(w, http.StatusOK, models.WebhookAck{Status: "accepted"})
}
