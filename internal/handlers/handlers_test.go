package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"monoova-gateway/internal/common/cache"
	"monoova-gateway/internal/common/errors"
	"monoova-gateway/internal/keys"
	"monoova-gateway/internal/models"
	"monoova-gateway/internal/signature"
	"monoova-gateway/internal/testutil"
)

var webhookBody = []byte(`{"type":"npppaymentstatus","id":"abc"}`)

type MockSink struct {
	mock.Mock
}

func (m *MockSink) Deliver(ctx context.Context, environment string, body []byte) error {
	args := m.Called(ctx, environment, body)
	return args.Error(0)
}

type MockEncryptor struct {
	mock.Mock
}

func (m *MockEncryptor) EncryptFields(ctx context.Context, fields map[string]string, env models.Environment) (map[string]string, error) {
	args := m.Called(ctx, fields, env)
	out, _ := args.Get(0).(map[string]string)
	return out, args.Error(1)
}

type staticBreakers map[string]string

func (s staticBreakers) States() map[string]string { return s }

func newRouter(t *testing.T, h *Handlers) *mux.Router {
	t.Helper()
	fx := testutil.SharedKey(t)
	cfg := keys.DefaultConfig()
	source := testutil.NewStaticSource(map[string][]byte{cfg.CertificatePath: fx.CertPEM()})
	fetcher := keys.NewFetcher(source, cache.NewLocalCache(time.Hour, time.Hour), cfg)
	verifier := signature.NewVerifier(fetcher, signature.Config{})

	router := mux.NewRouter()
	router.Handle("/webhooks/{env}", signature.Middleware(verifier, models.ResolveEnvironment)(http.HandlerFunc(h.HandleWebhook))).Methods(http.MethodPost)
	router.HandleFunc("/encrypt/{env}", h.HandleEncrypt).Methods(http.MethodPost)
	router.HandleFunc("/health", h.HandleHealth).Methods(http.MethodGet)
	return router
}

func TestHandleWebhook(t *testing.T) {
	fx := testutil.SharedKey(t)

	t.Run("signed body is accepted and delivered verbatim", func(t *testing.T) {
		sink := new(MockSink)
		sink.On("Deliver", mock.Anything, "sandbox", webhookBody).Return(nil).Once()
		router := newRouter(t, New(sink, nil, nil))

		req := httptest.NewRequest(http.MethodPost, "/webhooks/sandbox", bytes.NewReader(webhookBody))
		req.Header.Set("verification-signature", fx.SignBase64(t, webhookBody))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"accepted"}`, rec.Body.String())
		sink.AssertExpectations(t)
	})

	t.Run("mutated body is a bare 401", func(t *testing.T) {
		sink := new(MockSink)
		router := newRouter(t, New(sink, nil, nil))

		mutated := bytes.Replace(webhookBody, []byte("abc"), []byte("abd"), 1)
		req := httptest.NewRequest(http.MethodPost, "/webhooks/sandbox", bytes.NewReader(mutated))
		req.Header.Set("verification-signature", fx.SignBase64(t, webhookBody))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Empty(t, rec.Body.String())
		sink.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("sink failure is a 500", func(t *testing.T) {
		sink := new(MockSink)
		sink.On("Deliver", mock.Anything, "sandbox", webhookBody).Return(fmt.Errorf("redis down"))
		router := newRouter(t, New(sink, nil, nil))

		req := httptest.NewRequest(http.MethodPost, "/webhooks/sandbox", bytes.NewReader(webhookBody))
		req.Header.Set("Verification-Signature", fx.SignHex(t, webhookBody))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("handler without verification refuses", func(t *testing.T) {
		h := New(nil, nil, nil)
		rec := httptest.NewRecorder()
		h.HandleWebhook(rec, httptest.NewRequest(http.MethodPost, "/webhooks/sandbox", bytes.NewReader(webhookBody)))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestLogSink_AcceptsAnyBody(t *testing.T) {
	sink := NewLogSink()
	assert.NoError(t, sink.Deliver(context.Background(), "live", webhookBody))
	assert.NoError(t, sink.Deliver(context.Background(), "live", []byte("not json")))
}

func TestHandleEncrypt(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		result     map[string]string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "fields are encrypted",
			body:       `{"fields":{"bsb":"123456"}}`,
			result:     map[string]string{"bsb": "Y2lwaGVy"},
			wantStatus: http.StatusOK,
			wantBody:   `{"environment":"live","fields":{"bsb":"Y2lwaGVy"}}`,
		},
		{
			name:       "key unavailable is a generic integration failure",
			body:       `{"fields":{"bsb":"123456"}}`,
			err:        errors.EncryptionKeyUnavailable(errors.FetchFailed("public key", 503)),
			wantStatus: http.StatusBadGateway,
			wantBody:   `{"error":"integration failure"}`,
		},
		{
			name:       "plaintext too long",
			body:       `{"fields":{"bsb":"123456"}}`,
			err:        errors.ValidationError("plaintext too long"),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid json",
			body:       `{"fields":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "no fields",
			body:       `{"fields":{}}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := new(MockEncryptor)
			if tt.result != nil || tt.err != nil {
				enc.On("EncryptFields", mock.Anything, map[string]string{"bsb": "123456"}, models.Live).Return(tt.result, tt.err).Once()
			}
			router := newRouter(t, New(nil, enc, nil))

			req := httptest.NewRequest(http.MethodPost, "/encrypt/live", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, rec.Body.String())
			}
			enc.AssertExpectations(t)
		})
	}
}

func TestHandleHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		h := New(nil, nil, staticBreakers{"monoova-live": "closed"})
		h.AddHealthCheck("redis", func(ctx context.Context) error { return nil })

		rec := httptest.NewRecorder()
		newRouter(t, h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp models.HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "healthy", resp.Status)
		assert.Equal(t, "ok", resp.Checks["redis"])
		assert.Equal(t, "closed", resp.Breakers["monoova-live"])
	})

	t.Run("failing dependency", func(t *testing.T) {
		h := New(nil, nil, nil)
		h.AddHealthCheck("redis", func(ctx context.Context) error { return stderrors.New("connection refused") })

		rec := httptest.NewRecorder()
		newRouter(t, h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "connection refused")
	})
}
