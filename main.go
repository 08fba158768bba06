package main

import (
	"os"
	"runtime"

	"github.com/joho/godotenv"

	"monoova-gateway/internal/app"
	"monoova-gateway/internal/common/logging"
	"monoova-gateway/internal/config"
	"monoova-gateway/internal/metrics"
)

func main() {
	// Load environment variables
	_ = godotenv.Load()

	if err := logging.InitGlobalLogger(); err != nil {
		os.Stderr.WriteString("failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logging.MustSync()

	logging.Info("Starting monoova gateway",
		logging.Field{Key: "cpus", Value: runtime.NumCPU()},
		logging.Field{Key: "version", Value: "1.0.0"},
	)

	metrics.MustRegister()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logging.Error("Configuration validation failed", err)
		logging.MustSync()
		os.Exit(1)
	}

	if err := app.Run(cfg); err != nil {
		logging.MustSync()
		os.Exit(1)
	}
}
