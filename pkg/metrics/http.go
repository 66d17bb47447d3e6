package metrics

import (
	"strconv"
)

// HTTPMetrics provides methods to record HTTP-related metrics.
type HTTPMetrics struct {
	registry *Registry
}

// HTTP returns the HTTP metrics interface for the registry.
func (r *Registry) HTTP() *HTTPMetrics {
	return &HTTPMetrics{registry: r}
}

// RecordRequest records the counter and duration metrics for a finished request.
func (h *HTTPMetrics) RecordRequest(method, path string, statusCode int, duration float64) {
	statusStr := strconv.Itoa(statusCode)

	h.registry.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	h.registry.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// IncInFlight increments the in-flight request count.
func (h *HTTPMetrics) IncInFlight() {
	h.registry.httpInFlight.Inc()
}

// DecInFlight decrements the in-flight request count.
func (h *HTTPMetrics) DecInFlight() {
	h.registry.httpInFlight.Dec()
}
