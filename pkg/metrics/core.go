package metrics

import (
	"time"
)

// Validation outcomes.
const (
	OutcomeValid   = "valid"
	OutcomeInvalid = "invalid"
)

// Compilation and store operation outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// CoreMetrics provides methods to record validation and compilation metrics.
type CoreMetrics struct {
	registry *Registry
}

// Core returns the core metrics interface for the registry.
func (r *Registry) Core() *CoreMetrics {
	return &CoreMetrics{registry: r}
}

// RecordValidation records the outcome of a tree validation.
func (c *CoreMetrics) RecordValidation(valid bool) {
	outcome := OutcomeValid
	if !valid {
		outcome = OutcomeInvalid
	}
	c.registry.validationsTotal.WithLabelValues(outcome).Inc()
}

// RecordValidationError records one validation error by its kind name.
func (c *CoreMetrics) RecordValidationError(kind string) {
	c.registry.validationErrorsTotal.WithLabelValues(kind).Inc()
}

// RecordCompilation records a compilation attempt for a target.
func (c *CoreMetrics) RecordCompilation(target string, duration time.Duration, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}

	c.registry.compilationsTotal.WithLabelValues(target, outcome).Inc()
	c.registry.compileDuration.WithLabelValues(target).Observe(duration.Seconds())
}

// CompileTimer measures the duration of a single compilation.
type CompileTimer struct {
	core   *CoreMetrics
	target string
	start  time.Time
}

// NewCompileTimer starts a timer for a compilation against the given target.
func (c *CoreMetrics) NewCompileTimer(target string) *CompileTimer {
	return &CompileTimer{
		core:   c,
		target: target,
		start:  time.Now(),
	}
}

// Done stops the timer and records the compilation with its outcome.
func (t *CompileTimer) Done(err error) {
	t.core.RecordCompilation(t.target, time.Since(t.start), err)
}
