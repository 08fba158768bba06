// Package config loads the gateway configuration from environment variables
// and validates it before anything connects to the provider.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//   - LOG_FILE: Append logs to this file instead of stdout
//
// Provider:
//   - MONOOVA_SANDBOX_BASE_URL: Sandbox API base URL (default: https://api.m-pay.com.au)
//   - MONOOVA_LIVE_BASE_URL: Live API base URL (default: https://api.mpay.com.au)
//   - MONOOVA_SANDBOX_API_KEY, MONOOVA_LIVE_API_KEY: API keys per environment
//   - MONOOVA_SANDBOX_MACCOUNT, MONOOVA_LIVE_MACCOUNT: mAccount numbers per environment
//   - MONOOVA_CERTIFICATE_PATH: Webhook signing certificate endpoint
//   - MONOOVA_PUBLIC_KEY_PATH: Encryption public key endpoint
//   - MONOOVA_TOKEN_PATH: Bearer token endpoint
//   - UPSTREAM_TIMEOUT: Per-call timeout for provider requests (default: 10s)
//   - CIRCUIT_BREAKER_ENABLED: Trip a breaker per environment on repeated failures (default: true)
//
// Key material and encryption:
//   - KEY_CACHE_TTL: Lifetime of cached certificates and public keys (default: 30m)
//   - ENCRYPTION_PADDING: pkcs1 or oaep (default: pkcs1)
//   - ENCRYPTION_OAEP_HASH: sha256, sha1 or sha512 (default: sha256)
//   - SINGLE_FLIGHT: Collapse concurrent cold-cache fetches (default: true)
//
// Cache and Redis:
//   - CACHE_TYPE: local, redis or two_tier (default: local)
//   - CACHE_KEY_PREFIX: Prefix for shared cache keys (default: monoova:)
//   - CACHE_ENCRYPTION_KEY: Seals bearer tokens before they reach a shared cache
//   - REDIS_ADDRESS, REDIS_PASSWORD, REDIS_DB, REDIS_POOL_SIZE
//   - WEBHOOK_PUBLISH_CHANNEL: Publish accepted webhooks on this Redis channel
//
// Inbound protection:
//   - RATE_LIMIT_RPS: Sustained requests per second per client IP on /webhooks and /encrypt, 0 disables (default: 50)
//   - RATE_LIMIT_BURST: Bucket size per client IP (default: 100)
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"monoova-gateway/internal/common/validation"
	"monoova-gateway/internal/models"
)

// Credentials is the per-environment credential set and base URL
type Credentials struct {
	BaseURL  string
	APIKey   string
	MAccount string
}

// Config holds all configuration values for the gateway
type Config struct {
	Port     string `env:"PORT" validate:"required,numeric"`
	LogLevel string `env:"LOG_LEVEL" validate:"oneof=debug info warn warning error"`
	LogFile  string `env:"LOG_FILE"`

	SandboxBaseURL  string `env:"MONOOVA_SANDBOX_BASE_URL" validate:"required,url"`
	LiveBaseURL     string `env:"MONOOVA_LIVE_BASE_URL" validate:"required,url"`
	SandboxAPIKey   string `env:"MONOOVA_SANDBOX_API_KEY"`
	LiveAPIKey      string `env:"MONOOVA_LIVE_API_KEY"`
	SandboxMAccount string `env:"MONOOVA_SANDBOX_MACCOUNT"`
	LiveMAccount    string `env:"MONOOVA_LIVE_MACCOUNT"`

	CertificatePath string `env:"MONOOVA_CERTIFICATE_PATH" validate:"required,url_path"`
	PublicKeyPath   string `env:"MONOOVA_PUBLIC_KEY_PATH" validate:"required,url_path"`
	TokenPath       string `env:"MONOOVA_TOKEN_PATH" validate:"required,url_path"`

	UpstreamTimeout       time.Duration `env:"UPSTREAM_TIMEOUT" validate:"min=1s,max=60s"`
	CircuitBreakerEnabled bool          `env:"CIRCUIT_BREAKER_ENABLED"`

	KeyCacheTTL       time.Duration `env:"KEY_CACHE_TTL" validate:"min=1m"`
	EncryptionPadding string        `env:"ENCRYPTION_PADDING" validate:"oneof=pkcs1 oaep"`
	OAEPHash          string        `env:"ENCRYPTION_OAEP_HASH" validate:"oneof=sha1 sha256 sha512"`
	SingleFlight      bool          `env:"SINGLE_FLIGHT"`

	CacheType          string `env:"CACHE_TYPE" validate:"oneof=local redis two_tier"`
	CacheKeyPrefix     string `env:"CACHE_KEY_PREFIX"`
	CacheEncryptionKey string `env:"CACHE_ENCRYPTION_KEY" validate:"omitempty,min=16"`

	RedisAddress  string `env:"REDIS_ADDRESS" validate:"omitempty,hostname_port"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" validate:"min=0,max=15"`
	RedisPoolSize int    `env:"REDIS_POOL_SIZE" validate:"min=1"`

	WebhookPublishChannel string `env:"WEBHOOK_PUBLISH_CHANNEL"`

	RateLimitRPS   int `env:"RATE_LIMIT_RPS" validate:"min=0"`
	RateLimitBurst int `env:"RATE_LIMIT_BURST" validate:"min=0"`
}

// Load reads the configuration from the environment. Call Validate before use.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFile:  getEnv("LOG_FILE", ""),

		SandboxBaseURL:  strings.TrimRight(getEnv("MONOOVA_SANDBOX_BASE_URL", "https://api.m-pay.com.au"), "/"),
		LiveBaseURL:     strings.TrimRight(getEnv("MONOOVA_LIVE_BASE_URL", "https://api.mpay.com.au"), "/"),
		SandboxAPIKey:   getEnv("MONOOVA_SANDBOX_API_KEY", ""),
		LiveAPIKey:      getEnv("MONOOVA_LIVE_API_KEY", ""),
		SandboxMAccount: getEnv("MONOOVA_SANDBOX_MACCOUNT", ""),
		LiveMAccount:    getEnv("MONOOVA_LIVE_MACCOUNT", ""),

		CertificatePath: getEnv("MONOOVA_CERTIFICATE_PATH", "/public/v1/certificate/public-key"),
		PublicKeyPath:   getEnv("MONOOVA_PUBLIC_KEY_PATH", "/public/v1/public-key"),
		TokenPath:       getEnv("MONOOVA_TOKEN_PATH", "/au/security/oauth2/v1/token"),

		UpstreamTimeout:       getDurationEnv("UPSTREAM_TIMEOUT", 10*time.Second),
		CircuitBreakerEnabled: getBoolEnv("CIRCUIT_BREAKER_ENABLED", true),

		KeyCacheTTL:       getDurationEnv("KEY_CACHE_TTL", 30*time.Minute),
		EncryptionPadding: strings.ToLower(getEnv("ENCRYPTION_PADDING", "pkcs1")),
		OAEPHash:          strings.ToLower(getEnv("ENCRYPTION_OAEP_HASH", "sha256")),
		SingleFlight:      getBoolEnv("SINGLE_FLIGHT", true),

		CacheType:          strings.ToLower(getEnv("CACHE_TYPE", "local")),
		CacheKeyPrefix:     getEnv("CACHE_KEY_PREFIX", "monoova:"),
		CacheEncryptionKey: getEnv("CACHE_ENCRYPTION_KEY", ""),

		RedisAddress:  getEnv("REDIS_ADDRESS", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		RedisPoolSize: getIntEnv("REDIS_POOL_SIZE", 10),

		WebhookPublishChannel: getEnv("WEBHOOK_PUBLISH_CHANNEL", ""),

		RateLimitRPS:   getIntEnv("RATE_LIMIT_RPS", 50),
		RateLimitBurst: getIntEnv("RATE_LIMIT_BURST", 100),
	}
}

// Validate checks every field and cross-field dependency.
// Credentials are not required here; a missing one surfaces per call as MISSING_CREDENTIAL.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}

	if port, _ := strconv.Atoi(c.Port); port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}

	if c.CacheType != "local" && c.RedisAddress == "" {
		return fmt.Errorf("REDIS_ADDRESS is required when CACHE_TYPE is %s", c.CacheType)
	}

	if c.WebhookPublishChannel != "" && c.RedisAddress == "" {
		return fmt.Errorf("REDIS_ADDRESS is required when WEBHOOK_PUBLISH_CHANNEL is set")
	}

	return nil
}

// NeedsRedis reports whether any component is configured to use Redis
func (c *Config) NeedsRedis() bool {
	return c.CacheType != "local" || c.WebhookPublishChannel != ""
}

// Environment returns the credential set and base URL for env
func (c *Config) Environment(env models.Environment) Credentials {
	if env == models.Live {
		return Credentials{BaseURL: c.LiveBaseURL, APIKey: c.LiveAPIKey, MAccount: c.LiveMAccount}
	}
	return Credentials{BaseURL: c.SandboxBaseURL, APIKey: c.SandboxAPIKey, MAccount: c.SandboxMAccount}
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getDurationEnv accepts Go duration strings ("90s") or a bare number of seconds
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
