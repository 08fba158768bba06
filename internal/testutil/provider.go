package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"

	"monoova-gateway/internal/models"
)

// StaticSource serves fixed bytes per path and counts fetches
type StaticSource struct {
	mu     sync.Mutex
	Bodies map[string][]byte
	Err    error
	calls  int64
	// Gate, when set, blocks every fetch until it is closed.
	Gate chan struct{}
}

// NewStaticSource creates a source with the given path to body mapping
func NewStaticSource(bodies map[string][]byte) *StaticSource {
	return &StaticSource{Bodies: bodies}
}

// FetchRaw returns the configured body for path
func (s *StaticSource) FetchRaw(ctx context.Context, env models.Environment, path string) ([]byte, error) {
	atomic.AddInt64(&s.calls, 1)
	if s.Gate != nil {
		select {
		case <-s.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Bodies[path], nil
}

// Set replaces the body served for path
func (s *StaticSource) Set(path string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Bodies[path] = body
}

// Calls returns how many fetches have been made
func (s *StaticSource) Calls() int {
	return int(atomic.LoadInt64(&s.calls))
}

// ProviderServer stands in for the payment provider's HTTP API
type ProviderServer struct {
	*httptest.Server

	mu          sync.Mutex
	Certificate []byte
	PublicKey   []byte
	TokenStatus int
	TokenBody   map[string]interface{}
	LastAuth    map[string]string
	counts      map[string]int
}

// NewProviderServer starts a server that serves key material and issues tokens
func NewProviderServer(certificate, publicKey []byte) *ProviderServer {
	p := &ProviderServer{
		Certificate: certificate,
		PublicKey:   publicKey,
		TokenStatus: http.StatusOK,
		TokenBody:   map[string]interface{}{"access_token": "test-token", "expires_in": 1800},
		LastAuth:    make(map[string]string),
		counts:      make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/public/v1/certificate/public-key", func(w http.ResponseWriter, r *http.Request) {
		p.record(r)
		p.mu.Lock()
		defer p.mu.Unlock()
		_, _ = w.Write(p.Certificate)
	})
	mux.HandleFunc("/public/v1/public-key", func(w http.ResponseWriter, r *http.Request) {
		p.record(r)
		p.mu.Lock()
		defer p.mu.Unlock()
		_, _ = w.Write(p.PublicKey)
	})
	mux.HandleFunc("/au/security/oauth2/v1/token", func(w http.ResponseWriter, r *http.Request) {
		p.record(r)
		p.mu.Lock()
		defer p.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(p.TokenStatus)
		_ = json.NewEncoder(w).Encode(p.TokenBody)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		p.record(r)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"path": r.URL.Path})
	})

	p.Server = httptest.NewServer(mux)
	return p
}

func (p *ProviderServer) record(r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts[r.URL.Path]++
	p.LastAuth[r.URL.Path] = r.Header.Get("Authorization")
}

// Count returns how many requests hit path
func (p *ProviderServer) Count(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[path]
}

// Auth returns the Authorization header of the last request to path
func (p *ProviderServer) Auth(path string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.LastAuth[path]
}

// SetToken changes the token endpoint's reply
func (p *ProviderServer) SetToken(status int, body map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TokenStatus = status
	p.TokenBody = body
}
