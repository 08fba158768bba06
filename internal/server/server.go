package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"monoova-gateway/internal/common/logging"
)

// Server represents an HTTP server
type Server struct {
	srv    *http.Server
	logger logging.Logger
}

// New creates a new server instance
func New(handler http.Handler, port string) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              ":" + port,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "server"}),
	}
}

// Start binds the listener and serves in the background.
// Bind failures are returned; the returned channel reports a later serve failure.
func (s *Server) Start() (<-chan error, error) {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return nil, err
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	s.logger.Info("Server listening", logging.Field{Key: "addr", Value: ln.Addr().String()})
	return errCh, nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
