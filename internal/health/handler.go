package health

import (
	"encoding/json"
	"net/http"
)

// Handler serves the probe endpoints over a registry.
type Handler struct {
	registry *Registry
}

// NewHandler creates a handler for the registry.
func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

// Liveness handles the liveness probe. It returns 200 unless the
// process is broken.
func (h *Handler) Liveness(w http.ResponseWriter, r *http.Request) {
	h.writeResponse(w, h.registry.Liveness(r.Context()))
}

// Readiness handles the readiness probe. It returns 503 when a
// critical dependency is down.
func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	h.writeResponse(w, h.registry.Readiness(r.Context()))
}

// Health handles the full report with every registered check.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeResponse(w, h.registry.Health(r.Context()))
}

func (h *Handler) writeResponse(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")

	status := http.StatusOK
	if resp.Status == StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}

	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
