package oauth2

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"monoova-gateway/internal/auth"
	"monoova-gateway/internal/common/errors"
	"monoova-gateway/internal/common/logging"
	"monoova-gateway/internal/locks"
	"monoova-gateway/internal/metrics"
	"monoova-gateway/internal/models"
)

const (
	// serveMargin is how long a cached token must still be valid to be served
	serveMargin = 15 * time.Second
	// expiryReserve is subtracted from the declared lifetime
	expiryReserve = 60 * time.Second
	// minLifetime is the shortest lifetime a token is cached for
	minLifetime = 60 * time.Second
	// defaultExpiresIn applies when the response has no expires_in
	defaultExpiresIn = 1800
)

// Token is a cached bearer token
type Token struct {
	AccessToken string `json:"access_token"`
	// ExpiresAt is the effective expiry in epoch milliseconds
	ExpiresAt int64 `json:"expires_at_ms"`
}

// Usable reports whether the token may be served at now
func (t *Token) Usable(now time.Time) bool {
	return t != nil && t.AccessToken != "" && now.Add(serveMargin).UnixMilli() < t.ExpiresAt
}

// TokenSource posts a client-credentials request and returns the raw response body
type TokenSource interface {
	PostToken(ctx context.Context, env models.Environment, basicHeader string) ([]byte, error)
}

// Config controls refresh coordination
type Config struct {
	SingleFlight bool
	// Locker, when set, serializes refreshes across replicas sharing the cache.
	Locker locks.Locker
	// LockTTL bounds how long a refresh may hold the lock.
	LockTTL time.Duration
}

// Manager returns valid bearer tokens per environment
type Manager struct {
	source      TokenSource
	credentials auth.CredentialSource
	storage     TokenStorage
	config      Config
	logger      logging.Logger
	now         func() time.Time
	group       singleflight.Group
}

// NewManager creates a token manager
func NewManager(source TokenSource, credentials auth.CredentialSource, storage TokenStorage, config Config) *Manager {
	if config.LockTTL <= 0 {
		config.LockTTL = 15 * time.Second
	}
	return &Manager{
		source:      source,
		credentials: credentials,
		storage:     storage,
		config:      config,
		logger:      logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "oauth2-manager"}),
		now:         time.Now,
	}
}

// GetToken returns a bearer token for env, requesting a new one when the
// cached token is missing or inside the serve margin.
func (m *Manager) GetToken(ctx context.Context, env models.Environment) (string, error) {
	if token := m.cached(ctx, env); token != nil {
		return token.AccessToken, nil
	}

	if !m.config.SingleFlight {
		token, err := m.refresh(ctx, env)
		if err != nil {
			return "", err
		}
		return token.AccessToken, nil
	}

	ch := m.group.DoChan(env.String(), func() (interface{}, error) {
		return m.refresh(context.WithoutCancel(ctx), env)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(*Token).AccessToken, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// GetAuthorizationHeader returns "Bearer <token>" for env
func (m *Manager) GetAuthorizationHeader(ctx context.Context, env models.Environment) (string, error) {
	token, err := m.GetToken(ctx, env)
	if err != nil {
		return "", err
	}
	return "Bearer " + token, nil
}

// Invalidate drops the cached token, e.g. after the provider rejects it
func (m *Manager) Invalidate(ctx context.Context, env models.Environment) error {
	return m.storage.DeleteToken(ctx, env)
}

func (m *Manager) cached(ctx context.Context, env models.Environment) *Token {
	token, err := m.storage.LoadToken(ctx, env)
	if err != nil {
		m.logger.Warn("Ignoring unreadable cached token",
			logging.Field{Key: "environment", Value: env.String()},
			logging.Err(err),
		)
		return nil
	}
	if !token.Usable(m.now()) {
		return nil
	}
	return token
}

func (m *Manager) refresh(ctx context.Context, env models.Environment) (*Token, error) {
	if m.config.Locker != nil {
		lock, err := m.config.Locker.Acquire(ctx, "oauth2:"+env.String(), m.config.LockTTL)
		if err != nil {
			// Coordination is an optimisation; refresh alone rather than fail the call.
			m.logger.Warn("Refreshing token without lock",
				logging.Field{Key: "environment", Value: env.String()},
				logging.Err(err),
			)
		} else {
			defer func() {
				if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
					m.logger.Warn("Failed to release token lock", logging.Err(err))
				}
			}()

			// Another replica may have refreshed while we waited.
			if token := m.cached(ctx, env); token != nil {
				return token, nil
			}
		}
	}

	token, err := m.fetch(ctx, env)
	metrics.IncBearerTokenFetch(env.String(), err)
	if err != nil {
		m.logger.Warn("Bearer token request failed",
			logging.Field{Key: "environment", Value: env.String()},
			logging.Err(err),
		)
		return nil, err
	}

	if err := m.storage.SaveToken(ctx, env, token); err != nil {
		m.logger.Warn("Failed to cache bearer token",
			logging.Field{Key: "environment", Value: env.String()},
			logging.Err(err),
		)
	}

	m.logger.Info("Issued bearer token",
		logging.Field{Key: "environment", Value: env.String()},
		logging.Field{Key: "expires_at", Value: time.UnixMilli(token.ExpiresAt).UTC().Format(time.RFC3339)},
	)
	return token, nil
}

func (m *Manager) fetch(ctx context.Context, env models.Environment) (*Token, error) {
	header, err := auth.AccountBasic(m.credentials.Environment(env), env)
	if err != nil {
		return nil, err
	}

	issuedAt := m.now()
	body, err := m.source.PostToken(ctx, env, header)
	if err != nil {
		return nil, err
	}

	accessToken, expiresIn, err := parseTokenResponse(body)
	if err != nil {
		return nil, err
	}

	return &Token{
		AccessToken: accessToken,
		ExpiresAt:   issuedAt.Add(effectiveLifetime(expiresIn)).UnixMilli(),
	}, nil
}

// effectiveLifetime is max(60s, expiresIn seconds - 60s)
func effectiveLifetime(expiresIn int64) time.Duration {
	lifetime := time.Duration(expiresIn)*time.Second - expiryReserve
	if lifetime < minLifetime {
		return minLifetime
	}
	return lifetime
}

func parseTokenResponse(body []byte) (string, int64, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return "", 0, errors.TokenResponseMalformed("token response is not a JSON object", err)
	}

	var accessToken string
	for _, name := range []string{"access_token", "token"} {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		var value string
		if err := json.Unmarshal(raw, &value); err == nil && strings.TrimSpace(value) != "" {
			accessToken = strings.TrimSpace(value)
			break
		}
	}
	if accessToken == "" {
		return "", 0, errors.TokenResponseMalformed("token response has no access_token or token", nil)
	}

	return accessToken, parseExpiresIn(fields["expires_in"]), nil
}

// parseExpiresIn accepts a JSON number or numeric string
func parseExpiresIn(raw json.RawMessage) int64 {
	if len(raw) == 0 || string(raw) == "null" {
		return defaultExpiresIn
	}

	var number float64
	if err := json.Unmarshal(raw, &number); err == nil {
		return int64(number)
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64); err == nil {
			return n
		}
	}
	return defaultExpiresIn
}
