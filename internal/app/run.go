package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"monoova-gateway/internal/common/logging"
	"monoova-gateway/internal/config"
	"monoova-gateway/internal/server"
)

const shutdownTimeout = 30 * time.Second

// Run starts the gateway and blocks until SIGINT, SIGTERM or a serve failure
func Run(cfg *config.Config) error {
	app, err := New(cfg)
	if err != nil {
		logging.Error("Failed to initialize application", err)
		return err
	}
	defer app.Cleanup()

	warmCtx, cancelWarm := context.WithTimeout(context.Background(), cfg.UpstreamTimeout)
	app.Warm(warmCtx)
	cancelWarm()

	srv := server.New(app.Router(), cfg.Port)
	serveErr, err := srv.Start()
	if err != nil {
		logging.Error("Server failed to start", err)
		return err
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
	case err := <-serveErr:
		if err != nil {
			logging.Error("Server stopped unexpectedly", err)
			return err
		}
	}

	logging.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Server forced to shutdown", err)
		return err
	}

	logging.Info("Server exited")
	return nil
}
