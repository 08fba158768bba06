package logging

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(t *testing.T, level LogLevel) (Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger, err := NewZapLogger(LogConfig{Level: level, Output: &buf, TimeFormat: time.RFC3339})
	require.NoError(t, err)
	return logger, &buf
}

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
		{LogLevel(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.level.String())
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, WarnLevel, ParseLevel(" warning "))
	assert.Equal(t, ErrorLevel, ParseLevel("ERROR"))
	assert.Equal(t, InfoLevel, ParseLevel("verbose"))
	assert.Equal(t, InfoLevel, ParseLevel(""))
}

func TestZapAdapter_Levels(t *testing.T) {
	logger, buf := newBufferLogger(t, DebugLevel)

	logger.Debug("debug message", Field{"key", "value"})
	logger.Info("info message", Int("count", 42))
	logger.Warn("webhook rejected", String("reason", "invalid signature"))
	logger.Error("token fetch failed", errors.New("status 500"), String("environment", "live"))

	output := buf.String()
	assert.Contains(t, output, "DEBUG")
	assert.Contains(t, output, "info message")
	assert.Contains(t, output, "WARN")
	assert.Contains(t, output, "invalid signature")
	assert.Contains(t, output, "ERROR")
	assert.Contains(t, output, "status 500")
}

func TestZapAdapter_LevelFiltering(t *testing.T) {
	logger, buf := newBufferLogger(t, WarnLevel)

	logger.Debug("hidden debug")
	logger.Info("hidden info")
	logger.Warn("visible warn")

	output := buf.String()
	assert.NotContains(t, output, "hidden")
	assert.Contains(t, output, "visible warn")
}

func TestZapAdapter_WithFields(t *testing.T) {
	logger, buf := newBufferLogger(t, InfoLevel)

	logger.WithFields(Field{"component", "verifier"}).Info("ready")

	assert.Contains(t, buf.String(), "verifier")
}

func TestZapAdapter_WithContext(t *testing.T) {
	logger, buf := newBufferLogger(t, InfoLevel)

	ctx := ContextWithRequestID(context.Background(), "req-123")
	ctx = context.WithValue(ctx, EnvironmentKey, "sandbox")
	logger.WithContext(ctx).Info("handled")

	output := buf.String()
	assert.Contains(t, output, "req-123")
	assert.Contains(t, output, "sandbox")
	assert.Equal(t, "req-123", RequestIDFromContext(ctx))
	assert.Equal(t, "", RequestIDFromContext(context.Background()))
}

func TestGlobalLogger(t *testing.T) {
	original := GetGlobalLogger()
	defer SetGlobalLogger(original)

	logger, buf := newBufferLogger(t, InfoLevel)
	SetGlobalLogger(logger)

	Info("global info")
	Warn("global warn")
	Error("global error", errors.New("boom"))

	output := buf.String()
	assert.Contains(t, output, "global info")
	assert.Contains(t, output, "global warn")
	assert.Contains(t, output, "boom")
}

func TestInitGlobalLogger_File(t *testing.T) {
	original := GetGlobalLogger()
	defer SetGlobalLogger(original)

	path := t.TempDir() + "/gateway.log"
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_FILE", path)

	require.NoError(t, InitGlobalLogger())
	Debug("written to file")
	MustSync()

	assert.FileExists(t, path)
}
