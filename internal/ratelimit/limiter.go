// Package ratelimit throttles inbound requests per client using
// golang.org/x/time/rate token buckets.
package ratelimit

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"monoova-gateway/internal/common/errors"
	"monoova-gateway/internal/common/logging"
	"monoova-gateway/internal/metrics"
)

// Config represents rate limiter configuration
type Config struct {
	// RequestsPerSecond is the sustained rate per key. Zero disables limiting.
	RequestsPerSecond float64
	BurstSize         int
	// MaxKeys bounds how many keys are tracked before idle ones are evicted
	MaxKeys int
	// IdleTimeout is how long an unused key keeps its bucket
	IdleTimeout time.Duration
}

// Validate fills defaults and rejects negative limits
func (c *Config) Validate() error {
	if c.RequestsPerSecond < 0 {
		return errors.ConfigError("requests per second cannot be negative")
	}
	if c.BurstSize <= 0 {
		c.BurstSize = int(c.RequestsPerSecond)
		if c.BurstSize < 1 {
			c.BurstSize = 1
		}
	}
	if c.MaxKeys <= 0 {
		c.MaxKeys = 10000
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 5 * time.Minute
	}
	return nil
}

// Enabled reports whether requests are limited at all
func (c Config) Enabled() bool {
	return c.RequestsPerSecond > 0
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// Limiter keeps one token bucket per key
type Limiter struct {
	mu          sync.Mutex
	config      Config
	limiters    map[string]*limiterEntry
	lastCleanup time.Time
	now         func() time.Time
}

// NewLimiter creates a limiter
func NewLimiter(config Config) (*Limiter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Limiter{
		config:   config,
		limiters: make(map[string]*limiterEntry),
		now:      time.Now,
	}, nil
}

// Allow takes one token from key's bucket
func (l *Limiter) Allow(key string) bool {
	if !l.config.Enabled() {
		return true
	}
	now := l.now()
	return l.limiterFor(key, now).AllowN(now, 1)
}

// Keys returns how many keys currently hold a bucket
func (l *Limiter) Keys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

func (l *Limiter) limiterFor(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastCleanup) > l.config.IdleTimeout {
		l.cleanup(now)
	}

	entry, ok := l.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(l.config.RequestsPerSecond), l.config.BurstSize)}
		l.limiters[key] = entry
		if len(l.limiters) > l.config.MaxKeys {
			l.cleanup(now)
		}
	}
	entry.lastUsed = now
	return entry.limiter
}

// cleanup drops buckets that have been idle longer than IdleTimeout
func (l *Limiter) cleanup(now time.Time) {
	cutoff := now.Add(-l.config.IdleTimeout)
	for key, entry := range l.limiters {
		if entry.lastUsed.Before(cutoff) {
			delete(l.limiters, key)
		}
	}
	l.lastCleanup = now
}

// HTTPMiddleware answers 429 once keyFunc's bucket is empty
func HTTPMiddleware(limiter *Limiter, keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	logger := logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "ratelimit"})
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			if !limiter.Allow(key) {
				metrics.IncRateLimited(routeName(r))
				logger.WithContext(r.Context()).Warn("Rate limit exceeded", logging.Field{Key: "client", Value: key})

				w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%g", limiter.config.RequestsPerSecond))
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Retry-After", "1")
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IPKey keys requests by client address, preferring the first X-Forwarded-For hop
func IPKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return strings.TrimSpace(ip)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// routeName is the first path segment, so metric labels stay bounded
func routeName(r *http.Request) string {
	segment := strings.TrimPrefix(r.URL.Path, "/")
	if i := strings.IndexByte(segment, '/'); i >= 0 {
		segment = segment[:i]
	}
	return segment
}
