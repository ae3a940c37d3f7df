package handler

import (
	"net/http"
	"time"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// ConnectionChecker reports whether an optional backing connection is up.
type ConnectionChecker interface {
	IsConnected() bool
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	events ConnectionChecker
}

// NewHealthHandler creates a new health handler. events may be nil when the
// event stream is disabled.
func NewHealthHandler(events ConnectionChecker) *HealthHandler {
	return &HealthHandler{
		events: events,
	}
}

// Health handles GET /api/health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "OK",
		"timestamp": time.Now().UTC(),
		"version":   Version,
	})
}

// Ready handles GET /api/ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.events != nil && !h.events.IsConnected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "NATS not connected",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
