// Package health runs liveness and readiness checks over the service
// dependencies. Checks register as plain functions; the registry runs
// them concurrently and folds the results into one response.
package health

import (
	"context"
	"sync"
	"time"
)

// Status represents the health status of a component.
type Status string

const (
	// StatusHealthy indicates the component is functioning normally.
	StatusHealthy Status = "healthy"
	// StatusUnhealthy indicates the component is not functioning.
	StatusUnhealthy Status = "unhealthy"
	// StatusDegraded indicates the service works with reduced capability.
	StatusDegraded Status = "degraded"
)

// Severity decides how a failing check affects the overall verdict.
type Severity string

const (
	// SeverityCritical failures make the service unready.
	SeverityCritical Severity = "critical"
	// SeverityWarning failures only degrade the full health report.
	SeverityWarning Severity = "warning"
)

// CheckFunc probes one dependency. A nil return means healthy.
type CheckFunc func(ctx context.Context) error

// CheckResult is the recorded outcome of one check.
type CheckResult struct {
	Status   Status        `json:"status"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// Response is a full health report.
type Response struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
	Uptime    string                 `json:"uptime,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

type check struct {
	name     string
	severity Severity
	run      CheckFunc
}

// checkTimeout bounds one whole check pass.
const checkTimeout = 5 * time.Second

// Registry holds the registered checks.
type Registry struct {
	mu        sync.RWMutex
	checks    []check
	startTime time.Time
	version   string
}

// NewRegistry creates a health check registry.
func NewRegistry(version string) *Registry {
	return &Registry{
		startTime: time.Now(),
		version:   version,
	}
}

// Register adds a named check. Registering twice under one name keeps
// both; the later result wins in the report.
func (r *Registry) Register(name string, severity Severity, fn CheckFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks = append(r.checks, check{name: name, severity: severity, run: fn})
}

// Liveness reports process health. It runs no dependency checks; a
// deadlocked process simply never answers.
func (r *Registry) Liveness(ctx context.Context) Response {
	return Response{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Version:   r.version,
		Uptime:    time.Since(r.startTime).String(),
	}
}

// Readiness runs the critical checks only; warnings don't make the
// service unready.
func (r *Registry) Readiness(ctx context.Context) Response {
	return r.runChecks(ctx, true)
}

// Health runs every check for the full report.
func (r *Registry) Health(ctx context.Context) Response {
	return r.runChecks(ctx, false)
}

func (r *Registry) runChecks(ctx context.Context, criticalOnly bool) Response {
	r.mu.RLock()
	checks := make([]check, len(r.checks))
	copy(checks, r.checks)
	r.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	results := make(map[string]CheckResult)
	overall := StatusHealthy

	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, c := range checks {
		if criticalOnly && c.severity != SeverityCritical {
			continue
		}

		wg.Add(1)
		go func(c check) {
			defer wg.Done()

			start := time.Now()
			err := c.run(ctx)
			result := CheckResult{Status: StatusHealthy, Duration: time.Since(start)}
			if err != nil {
				result.Status = StatusUnhealthy
				result.Message = err.Error()
			}

			mu.Lock()
			defer mu.Unlock()
			results[c.name] = result
			if err != nil {
				if c.severity == SeverityCritical {
					overall = StatusUnhealthy
				} else if overall == StatusHealthy {
					overall = StatusDegraded
				}
			}
		}(c)
	}
	wg.Wait()

	return Response{
		Status:    overall,
		Timestamp: time.Now(),
		Version:   r.version,
		Uptime:    time.Since(r.startTime).String(),
		Checks:    results,
	}
}
