// Package handlers exposes the gateway's HTTP endpoints.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"monoova-gateway/internal/common/logging"
	"monoova-gateway/internal/models"
)

// EventSink receives the raw body of every accepted webhook
type EventSink interface {
	Deliver(ctx context.Context, environment string, body []byte) error
}

// FieldEncryptor encrypts outbound plaintext fields
type FieldEncryptor interface {
	EncryptFields(ctx context.Context, fields map[string]string, env models.Environment) (map[string]string, error)
}

// HealthCheck reports one dependency's health
type HealthCheck func(ctx context.Context) error

// BreakerStates reports circuit breaker states by name
type BreakerStates interface {
	States() map[string]string
}

// Handlers holds the dependencies of every endpoint
type Handlers struct {
	sink      EventSink
	encryptor FieldEncryptor
	checks    map[string]HealthCheck
	breakers  BreakerStates
	logger    logging.Logger
}

// New creates handlers. breakers may be nil.
func New(sink EventSink, encryptor FieldEncryptor, breakers BreakerStates) *Handlers {
	if sink == nil {
		sink = NewLogSink()
	}
	return &Handlers{
		sink:      sink,
		encryptor: encryptor,
		checks:    make(map[string]HealthCheck),
		breakers:  breakers,
		logger:    logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "handlers"}),
	}
}

// AddHealthCheck registers a dependency reported by /health
func (h *Handlers) AddHealthCheck(name string, check HealthCheck) {
	h.checks[name] = check
}

func sendJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func sendError(w http.ResponseWriter, status int, message string) {
	sendJSON(w, status, models.ErrorResponse{Error: message})
}

// withEnvironment tags the request context with env for logging
func withEnvironment(r *http.Request) (*http.Request, models.Environment) {
	env := models.ResolveEnvironment(r)
	return r.WithContext(logging.ContextWithEnvironment(r.Context(), env.String())), env
}
