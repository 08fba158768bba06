package logging

import (
	"fmt"
	"os"
	"time"
)

// NewDefaultLogger creates a logger with default configuration using zap
func NewDefaultLogger() Logger {
	logger, err := NewZapLogger(DefaultLogConfig())
	if err != nil {
		panic(fmt.Sprintf("failed to initialize default zap logger: %v", err))
	}
	return logger
}

// InitGlobalLogger builds the process logger from LOG_LEVEL and LOG_FILE.
// Output goes to stdout unless LOG_FILE names a file to append to.
func InitGlobalLogger() error {
	levelName := os.Getenv("LOG_LEVEL")
	if levelName == "" {
		levelName = "INFO"
	}
	level := ParseLevel(levelName)

	config := LogConfig{
		Level:      level,
		TimeFormat: time.RFC3339,
	}

	logFile := os.Getenv("LOG_FILE")
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file %s: %w", logFile, err)
		}
		config.Output = file
	}

	logger, err := NewZapLogger(config)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	SetGlobalLogger(logger)

	logger.Info("Logger initialized",
		Field{"level", level.String()},
		Field{"log_file", logFile},
	)
	return nil
}

// MustSync flushes any buffered log entries. Call before process exit.
func MustSync() {
	if zapLogger, ok := GetGlobalLogger().(*ZapAdapter); ok {
		_ = zapLogger.Sync()
	}
}

// WithFields is a convenience function to add fields to the global logger
func WithFields(fields ...Field) Logger {
	return GetGlobalLogger().WithFields(fields...)
}

// String creates a string field
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an int field
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Duration creates a duration field
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// Err creates an error field with key "error"
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}
