package signature

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"monoova-gateway/internal/models"
)

// MaxBodyBytes bounds the webhook body read into memory
const MaxBodyBytes = 1 << 20

type contextKey string

const (
	rawBodyKey contextKey = "signature_raw_body"
	outcomeKey contextKey = "signature_outcome"
)

// CaptureRawBody reads the whole body, at most limit bytes, and replaces
// r.Body so later readers see the same bytes.
func CaptureRawBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	if r.Body == nil {
		return []byte{}, nil
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

// RawBody returns the verified raw body stored by Middleware
func RawBody(ctx context.Context) ([]byte, bool) {
	body, ok := ctx.Value(rawBodyKey).([]byte)
	return body, ok
}

// OutcomeFromContext returns the outcome stored by Middleware
func OutcomeFromContext(ctx context.Context) (Outcome, bool) {
	outcome, ok := ctx.Value(outcomeKey).(Outcome)
	return outcome, ok
}

// Middleware verifies every request before next runs. Rejected requests
// get a bare 401 and never reach next.
func Middleware(v *Verifier, resolveEnv func(*http.Request) models.Environment) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := CaptureRawBody(w, r, MaxBodyBytes)
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					w.WriteHeader(http.StatusRequestEntityTooLarge)
					return
				}
				w.WriteHeader(http.StatusBadRequest)
				return
			}

			outcome := v.Verify(r.Context(), body, r.Header, resolveEnv(r))
			if !outcome.Accepted {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), rawBodyKey, body)
			ctx = context.WithValue(ctx, outcomeKey, outcome)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
