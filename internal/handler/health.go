package handler

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthHandler provides the process's own liveness/readiness endpoints,
// distinct from the regional health the engine tracks
type HealthHandler struct {
	startTime time.Time
	version   string
	ready     func() bool
}

// NewHealthHandler creates a new health handler. The ready callback
// reports whether the router is serving (monitor started).
func NewHealthHandler(version string, ready func() bool) *HealthHandler {
	return &HealthHandler{
		startTime: time.Now(),
		version:   version,
		ready:     ready,
	}
}

// ReadinessHandler checks if the process is ready to serve decisions
func (h *HealthHandler) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	code := http.StatusOK
	if h.ready != nil && !h.ready() {
		status = "not_ready"
		code = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"version":   h.version,
		"uptime":    time.Since(h.startTime).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(response)
}

// LivenessHandler checks if the process is alive
func (h *HealthHandler) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now().UTC(),
		"version":   h.version,
		"uptime":    time.Since(h.startTime).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}
