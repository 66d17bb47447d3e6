package metrics

import (
	"time"
)

// StoreMetrics provides methods to record rule-set store metrics.
type StoreMetrics struct {
	registry *Registry
}

// Store returns the store metrics interface for the registry.
func (r *Registry) Store() *StoreMetrics {
	return &StoreMetrics{registry: r}
}

// RecordOp records a store operation with its duration and outcome.
func (s *StoreMetrics) RecordOp(operation string, duration time.Duration, err error) {
	status := OutcomeOK
	if err != nil {
		status = OutcomeError
	}

	s.registry.storeOpsTotal.WithLabelValues(operation, status).Inc()
	s.registry.storeOpDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// OpTimer measures the duration of a single store operation.
type OpTimer struct {
	store     *StoreMetrics
	operation string
	start     time.Time
}

// NewOpTimer starts a timer for a store operation.
func (s *StoreMetrics) NewOpTimer(operation string) *OpTimer {
	return &OpTimer{
		store:     s,
		operation: operation,
		start:     time.Now(),
	}
}

// Done stops the timer and records the operation with its outcome.
func (t *OpTimer) Done(err error) {
	t.store.RecordOp(t.operation, time.Since(t.start), err)
}
