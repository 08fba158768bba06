package handlers

import (
	"context"
	"net/http"
	"time"

	"monoova-gateway/internal/models"
)

// HandleHealth reports ok when every registered dependency answers
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := models.HealthResponse{Status: "healthy", Checks: make(map[string]string, len(h.checks))}
	status := http.StatusOK

	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			resp.Checks[name] = "unhealthy: " + err.Error()
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	if h.breakers != nil {
		resp.Breakers = h.breakers.States()
	}

	sendJSON(w, status, resp)
}
