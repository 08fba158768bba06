package keys

import (
	"context"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"monoova-gateway/internal/common/cache"
	"monoova-gateway/internal/common/errors"
	"monoova-gateway/internal/common/logging"
	"monoova-gateway/internal/metrics"
	"monoova-gateway/internal/models"
)

// RawSource returns the bytes served at path for env
type RawSource interface {
	FetchRaw(ctx context.Context, env models.Environment, path string) ([]byte, error)
}

// Handle is normalized key material ready for verify or encrypt
type Handle struct {
	Kind        models.KeyKind
	Env         models.Environment
	PublicKey   *rsa.PublicKey
	Encoding    Encoding
	Fingerprint string
	FetchedAt   time.Time
}

// Config controls where key material is fetched from and how long it lives
type Config struct {
	CertificatePath string
	PublicKeyPath   string
	TTL             time.Duration
	SingleFlight    bool
}

// DefaultConfig returns the provider's standard endpoints with a 30 minute TTL
func DefaultConfig() Config {
	return Config{
		CertificatePath: "/public/v1/certificate/public-key",
		PublicKeyPath:   "/public/v1/public-key",
		TTL:             30 * time.Minute,
		SingleFlight:    true,
	}
}

type cachedMaterial struct {
	Raw       []byte `json:"raw"`
	FetchedAt int64  `json:"fetched_at_ms"`
}

type memoEntry struct {
	digest [sha256.Size]byte
	key    *rsa.PublicKey
	enc    Encoding
}

// Fetcher implements cached key material retrieval
type Fetcher struct {
	source RawSource
	cache  cache.Cache
	config Config
	logger logging.Logger
	now    func() time.Time

	group singleflight.Group

	mu   sync.Mutex
	memo map[string]memoEntry
}

// NewFetcher creates a fetcher reading from source and storing into c
func NewFetcher(source RawSource, c cache.Cache, config Config) *Fetcher {
	if config.TTL <= 0 {
		config.TTL = DefaultConfig().TTL
	}
	return &Fetcher{
		source: source,
		cache:  c,
		config: config,
		logger: logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "key-fetcher"}),
		now:    time.Now,
		memo:   make(map[string]memoEntry),
	}
}

func cacheKey(env models.Environment, kind models.KeyKind) string {
	return fmt.Sprintf("keys:%s:%s", env, kind)
}

func (f *Fetcher) path(kind models.KeyKind) (string, error) {
	switch kind {
	case models.WebhookSigningCertificate:
		return f.config.CertificatePath, nil
	case models.EncryptionPublicKey:
		return f.config.PublicKeyPath, nil
	}
	return "", errors.ValidationError(fmt.Sprintf("unknown key kind %q", kind))
}

// Get returns the current key material for env and kind, fetching it when
// the cached copy is missing or older than the TTL.
func (f *Fetcher) Get(ctx context.Context, env models.Environment, kind models.KeyKind) (*Handle, error) {
	key := cacheKey(env, kind)

	if handle, ok := f.fromCache(ctx, key, env, kind); ok {
		return handle, nil
	}

	if !f.config.SingleFlight {
		return f.load(ctx, key, env, kind)
	}

	ch := f.group.DoChan(key, func() (interface{}, error) {
		// Detach from the first caller so its cancellation does not fail the others.
		return f.load(context.WithoutCancel(ctx), key, env, kind)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Handle), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate drops the cached material so the next Get refetches it
func (f *Fetcher) Invalidate(ctx context.Context, env models.Environment, kind models.KeyKind) error {
	key := cacheKey(env, kind)

	f.mu.Lock()
	delete(f.memo, key)
	f.mu.Unlock()

	return f.cache.Delete(ctx, key)
}

func (f *Fetcher) fromCache(ctx context.Context, key string, env models.Environment, kind models.KeyKind) (*Handle, bool) {
	data, found := f.cache.Get(ctx, key)
	if !found {
		return nil, false
	}

	var entry cachedMaterial
	if err := json.Unmarshal(data, &entry); err != nil {
		f.logger.Warn("Discarding unreadable cached key material",
			logging.Field{Key: "key", Value: key},
			logging.Err(err),
		)
		return nil, false
	}

	fetchedAt := time.UnixMilli(entry.FetchedAt)
	if f.now().Sub(fetchedAt) >= f.config.TTL {
		return nil, false
	}

	handle, err := f.normalize(key, env, kind, entry.Raw, fetchedAt)
	if err != nil {
		// Only parsable material is ever stored, so this means the entry was tampered with.
		f.logger.Warn("Cached key material no longer parses",
			logging.Field{Key: "key", Value: key},
			logging.Err(err),
		)
		return nil, false
	}
	return handle, true
}

func (f *Fetcher) load(ctx context.Context, key string, env models.Environment, kind models.KeyKind) (*Handle, error) {
	path, err := f.path(kind)
	if err != nil {
		return nil, err
	}

	raw, err := f.source.FetchRaw(ctx, env, path)
	metrics.IncKeyMaterialFetch(env.String(), kind.String(), err)
	if err != nil {
		f.logger.Warn("Key material fetch failed",
			logging.Field{Key: "environment", Value: env.String()},
			logging.Field{Key: "kind", Value: kind.String()},
			logging.Err(err),
		)
		return nil, err
	}

	fetchedAt := f.now()
	handle, err := f.normalize(key, env, kind, raw, fetchedAt)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(cachedMaterial{Raw: raw, FetchedAt: fetchedAt.UnixMilli()})
	if err == nil {
		err = f.cache.Set(ctx, key, data, f.config.TTL)
	}
	if err != nil {
		f.logger.Warn("Failed to cache key material",
			logging.Field{Key: "key", Value: key},
			logging.Err(err),
		)
	}

	f.logger.Info("Fetched key material",
		logging.Field{Key: "environment", Value: env.String()},
		logging.Field{Key: "kind", Value: kind.String()},
		logging.Field{Key: "encoding", Value: handle.Encoding.String()},
		logging.Field{Key: "fingerprint", Value: handle.Fingerprint},
	)
	return handle, nil
}

// normalize parses raw, reusing the previous result when the bytes are unchanged
func (f *Fetcher) normalize(key string, env models.Environment, kind models.KeyKind, raw []byte, fetchedAt time.Time) (*Handle, error) {
	digest := sha256.Sum256(raw)

	f.mu.Lock()
	entry, ok := f.memo[key]
	f.mu.Unlock()

	if !ok || entry.digest != digest {
		var (
			pub *rsa.PublicKey
			enc Encoding
			err error
		)
		if kind == models.WebhookSigningCertificate {
			pub, enc, err = ParseCertificatePublicKey(raw)
		} else {
			pub, enc, err = ParsePublicKey(raw)
		}
		if err != nil {
			return nil, errors.KeyParseFailed(kind.String(), err).WithContext("environment", env.String())
		}

		entry = memoEntry{digest: digest, key: pub, enc: enc}
		f.mu.Lock()
		f.memo[key] = entry
		f.mu.Unlock()
	}

	return &Handle{
		Kind:        kind,
		Env:         env,
		PublicKey:   entry.key,
		Encoding:    entry.enc,
		Fingerprint: Fingerprint(entry.key),
		FetchedAt:   fetchedAt,
	}, nil
}

// Fingerprint is the leading 8 bytes, hex encoded, of the SHA-256 of the key's PKCS#1 form
func Fingerprint(key *rsa.PublicKey) string {
	sum := sha256.Sum256(x509.MarshalPKCS1PublicKey(key))
	return fmt.Sprintf("%x", sum[:8])
}
