package app

import (
	"net/http"

	"github.com/gorilla/mux"

	"monoova-gateway/internal/handlers"
	"monoova-gateway/internal/metrics"
	"monoova-gateway/internal/middleware"
	"monoova-gateway/internal/models"
	"monoova-gateway/internal/ratelimit"
	"monoova-gateway/internal/signature"
)

// SetupRoutes configures all HTTP routes for the application
func SetupRoutes(router *mux.Router, h *handlers.Handlers, verifier *signature.Verifier, limiter *ratelimit.Limiter) {
	router.Use(middleware.RequestID)
	router.Use(middleware.LoggingMiddleware)

	// Health and metrics stay outside the per-client limit
	limited := router.NewRoute().Subrouter()
	if limiter != nil {
		limited.Use(ratelimit.HTTPMiddleware(limiter, ratelimit.IPKey))
	}

	// Webhooks are verified before the handler sees them
	verified := signature.Middleware(verifier, models.ResolveEnvironment)
	limited.Handle("/webhooks/{env}", verified(http.HandlerFunc(h.HandleWebhook))).Methods(http.MethodPost)

	limited.HandleFunc("/encrypt/{env}", h.HandleEncrypt).Methods(http.MethodPost)

	router.HandleFunc("/health", h.HandleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
}

// Router builds the application's HTTP handler
func (a *App) Router() http.Handler {
	router := mux.NewRouter()
	SetupRoutes(router, a.Handlers, a.Verifier, a.Limiter)
	return router
}
