package oauth2

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"monoova-gateway/internal/common/cache"
	"monoova-gateway/internal/common/errors"
	"monoova-gateway/internal/models"
)

// Sealer encrypts values before they are written to the cache
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

// TokenStorage persists the current token per environment
type TokenStorage interface {
	LoadToken(ctx context.Context, env models.Environment) (*Token, error)
	SaveToken(ctx context.Context, env models.Environment, token *Token) error
	DeleteToken(ctx context.Context, env models.Environment) error
}

// CacheTokenStorage stores tokens as JSON in a cache.Cache
type CacheTokenStorage struct {
	cache  cache.Cache
	sealer Sealer
	now    func() time.Time
}

// NewCacheTokenStorage creates token storage on c. sealer may be nil.
func NewCacheTokenStorage(c cache.Cache, sealer Sealer) *CacheTokenStorage {
	return &CacheTokenStorage{cache: c, sealer: sealer, now: time.Now}
}

func tokenKey(env models.Environment) string {
	return fmt.Sprintf("oauth2:token:%s", env)
}

// LoadToken returns the stored token or nil when there is none
func (s *CacheTokenStorage) LoadToken(ctx context.Context, env models.Environment) (*Token, error) {
	data, found := s.cache.Get(ctx, tokenKey(env))
	if !found {
		return nil, nil
	}

	if s.sealer != nil {
		opened, err := s.sealer.Open(data)
		if err != nil {
			return nil, errors.InternalError("failed to open stored token", err)
		}
		data = opened
	}

	var token Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, errors.InternalError("failed to decode stored token", err)
	}
	return &token, nil
}

// SaveToken replaces the stored token. The cache entry lives until the token expires.
func (s *CacheTokenStorage) SaveToken(ctx context.Context, env models.Environment, token *Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return errors.InternalError("failed to encode token", err)
	}

	if s.sealer != nil {
		if data, err = s.sealer.Seal(data); err != nil {
			return err
		}
	}

	ttl := time.UnixMilli(token.ExpiresAt).Sub(s.now())
	if ttl <= 0 {
		return s.DeleteToken(ctx, env)
	}
	return s.cache.Set(ctx, tokenKey(env), data, ttl)
}

// DeleteToken removes the stored token
func (s *CacheTokenStorage) DeleteToken(ctx context.Context, env models.Environment) error {
	return s.cache.Delete(ctx, tokenKey(env))
}
