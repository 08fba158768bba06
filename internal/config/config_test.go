package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monoova-gateway/internal/models"
)

var envVars = []string{
	"PORT", "LOG_LEVEL", "LOG_FILE",
	"MONOOVA_SANDBOX_BASE_URL", "MONOOVA_LIVE_BASE_URL",
	"MONOOVA_SANDBOX_API_KEY", "MONOOVA_LIVE_API_KEY",
	"MONOOVA_SANDBOX_MACCOUNT", "MONOOVA_LIVE_MACCOUNT",
	"MONOOVA_CERTIFICATE_PATH", "MONOOVA_PUBLIC_KEY_PATH", "MONOOVA_TOKEN_PATH",
	"UPSTREAM_TIMEOUT", "CIRCUIT_BREAKER_ENABLED", "KEY_CACHE_TTL",
	"ENCRYPTION_PADDING", "ENCRYPTION_OAEP_HASH", "SINGLE_FLIGHT",
	"CACHE_TYPE", "CACHE_KEY_PREFIX", "CACHE_ENCRYPTION_KEY",
	"REDIS_ADDRESS", "REDIS_PASSWORD", "REDIS_DB", "REDIS_POOL_SIZE",
	"WEBHOOK_PUBLISH_CHANNEL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envVars {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "/public/v1/certificate/public-key", cfg.CertificatePath)
	assert.Equal(t, "/public/v1/public-key", cfg.PublicKeyPath)
	assert.Equal(t, "/au/security/oauth2/v1/token", cfg.TokenPath)
	assert.Equal(t, 30*time.Minute, cfg.KeyCacheTTL)
	assert.Equal(t, 10*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, "pkcs1", cfg.EncryptionPadding)
	assert.Equal(t, "sha256", cfg.OAEPHash)
	assert.True(t, cfg.SingleFlight)
	assert.True(t, cfg.CircuitBreakerEnabled)
	assert.Equal(t, "local", cfg.CacheType)
	assert.False(t, cfg.NeedsRedis())
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("MONOOVA_LIVE_BASE_URL", "https://live.example.com/")
	t.Setenv("MONOOVA_LIVE_API_KEY", "live-key")
	t.Setenv("MONOOVA_LIVE_MACCOUNT", "6279059700000000")
	t.Setenv("UPSTREAM_TIMEOUT", "7")
	t.Setenv("KEY_CACHE_TTL", "45m")
	t.Setenv("ENCRYPTION_PADDING", "OAEP")
	t.Setenv("SINGLE_FLIGHT", "false")
	t.Setenv("CACHE_TYPE", "two_tier")
	t.Setenv("REDIS_ADDRESS", "localhost:6379")

	cfg := Load()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 7*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, 45*time.Minute, cfg.KeyCacheTTL)
	assert.Equal(t, "oaep", cfg.EncryptionPadding)
	assert.False(t, cfg.SingleFlight)
	assert.True(t, cfg.NeedsRedis())

	live := cfg.Environment(models.Live)
	assert.Equal(t, "https://live.example.com", live.BaseURL)
	assert.Equal(t, "live-key", live.APIKey)
	assert.Equal(t, "6279059700000000", live.MAccount)

	sandbox := cfg.Environment(models.Sandbox)
	assert.Equal(t, "https://api.m-pay.com.au", sandbox.BaseURL)
	assert.Empty(t, sandbox.APIKey)
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		message string
	}{
		{"bad padding", map[string]string{"ENCRYPTION_PADDING": "raw"}, "ENCRYPTION_PADDING"},
		{"bad hash", map[string]string{"ENCRYPTION_OAEP_HASH": "md5"}, "ENCRYPTION_OAEP_HASH"},
		{"redis cache without address", map[string]string{"CACHE_TYPE": "redis"}, "REDIS_ADDRESS"},
		{"publish channel without redis", map[string]string{"WEBHOOK_PUBLISH_CHANNEL": "webhooks"}, "REDIS_ADDRESS"},
		{"relative token path", map[string]string{"MONOOVA_TOKEN_PATH": "token"}, "MONOOVA_TOKEN_PATH"},
		{"port out of range", map[string]string{"PORT": "70000"}, "PORT"},
		{"timeout too short", map[string]string{"UPSTREAM_TIMEOUT": "10ms"}, "UPSTREAM_TIMEOUT"},
		{"short sealing key", map[string]string{"CACHE_ENCRYPTION_KEY": "short"}, "CACHE_ENCRYPTION_KEY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			err := Load().Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}
