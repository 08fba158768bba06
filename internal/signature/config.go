package signature

import (
	"fmt"
	"strings"
	"time"
)

// DefaultHeaderAliases are the signature header names, highest priority first
var DefaultHeaderAliases = []string{
	"verification-signature",
	"verification_signature",
	"verificationsignature",
	"x-verification-signature",
	"x_verification_signature",
	"xverificationsignature",
	"x-monoova-signature",
	"x-signature",
	"monoova-signature",
	"signature",
}

// DefaultTimestampHeaders are checked in order for an epoch-millisecond timestamp
var DefaultTimestampHeaders = []string{
	"x-monoova-timestamp",
	"x-timestamp",
}

// DefaultMaxSkew is the largest accepted distance between a timestamp and now
const DefaultMaxSkew = 10 * time.Minute

// Config controls header lookup and freshness
type Config struct {
	HeaderAliases    []string      `json:"header_aliases"`
	TimestampHeaders []string      `json:"timestamp_headers"`
	MaxSkew          time.Duration `json:"max_skew"`
}

// DefaultConfig returns the provider's standard header set
func DefaultConfig() Config {
	c := Config{}
	c.SetDefaults()
	return c
}

// SetDefaults fills empty fields and lower-cases header names
func (c *Config) SetDefaults() {
	if len(c.HeaderAliases) == 0 {
		c.HeaderAliases = append([]string(nil), DefaultHeaderAliases...)
	}
	if len(c.TimestampHeaders) == 0 {
		c.TimestampHeaders = append([]string(nil), DefaultTimestampHeaders...)
	}
	if c.MaxSkew <= 0 {
		c.MaxSkew = DefaultMaxSkew
	}

	c.HeaderAliases = normalizeNames(c.HeaderAliases)
	c.TimestampHeaders = normalizeNames(c.TimestampHeaders)
}

// Validate checks that every header name is usable
func (c *Config) Validate() error {
	if len(c.HeaderAliases) == 0 {
		return fmt.Errorf("at least one signature header alias is required")
	}
	for _, name := range append(append([]string(nil), c.HeaderAliases...), c.TimestampHeaders...) {
		if name == "" || strings.ContainsAny(name, " \t:") {
			return fmt.Errorf("invalid header name %q", name)
		}
	}
	if c.MaxSkew <= 0 {
		return fmt.Errorf("max skew must be positive, got %v", c.MaxSkew)
	}
	return nil
}

func normalizeNames(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
