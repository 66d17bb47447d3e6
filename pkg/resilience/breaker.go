// Package resilience provides a circuit breaker for optional backends.
// A breaker sits in front of a dependency the service can live without,
// such as the compile cache, and stops calls to it after repeated
// failures instead of paying a timeout on every request.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// State is the position of a circuit breaker.
type State int32

const (
	// StateClosed passes calls through to the backend.
	StateClosed State = iota
	// StateOpen rejects calls without touching the backend.
	StateOpen
	// StateHalfOpen lets probe calls through to test recovery.
	StateHalfOpen
)

// String returns the state name used in logs and metrics.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned by Allow and Execute while the circuit is open.
var ErrOpen = errors.New("circuit breaker is open")

// Config tunes a Breaker. The zero value gets sensible defaults.
type Config struct {
	// FailureThreshold is the number of consecutive failures that
	// opens the circuit. Default 5.
	FailureThreshold int

	// OpenTimeout is how long the circuit stays open before letting
	// a probe call through. Default 30s.
	OpenTimeout time.Duration

	// HalfOpenSuccesses is the number of successful probes that
	// close the circuit again. Default 2.
	HalfOpenSuccesses int

	// Logger receives state transition entries. Defaults to
	// slog.Default.
	Logger *slog.Logger

	// OnStateChange is called after every transition, outside the
	// breaker's lock ordering guarantees. Used to export the state
	// as a gauge.
	OnStateChange func(from, to State)
}

// Breaker is a three-state circuit breaker. The hot path reads are
// lock-free; transitions serialize on a mutex.
type Breaker struct {
	name   string
	config Config
	logger *slog.Logger

	state      atomic.Int32
	failures   atomic.Int32
	halfOpenOK atomic.Int32
	openedAt   atomic.Int64

	mu sync.Mutex
}

// New creates a breaker for the named backend.
func New(name string, config Config) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = 30 * time.Second
	}
	if config.HalfOpenSuccesses <= 0 {
		config.HalfOpenSuccesses = 2
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	b := &Breaker{
		name:   name,
		config: config,
		logger: logger.With("component", "breaker", "backend", name),
	}
	b.state.Store(int32(StateClosed))
	return b
}

// Name returns the backend name the breaker guards.
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state.
func (b *Breaker) State() State {
	return State(b.state.Load())
}

// Allow reports whether a call may proceed. While open it returns
// ErrOpen until OpenTimeout has elapsed, at which point the breaker
// moves to half-open and admits the call as a probe.
func (b *Breaker) Allow() error {
	switch b.State() {
	case StateOpen:
		openedAt := time.Unix(0, b.openedAt.Load())
		if time.Since(openedAt) < b.config.OpenTimeout {
			return ErrOpen
		}
		b.transition(StateHalfOpen)
		return nil
	default:
		return nil
	}
}

// Execute runs fn under the breaker, recording its outcome.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := b.Allow(); err != nil {
		return err
	}
	if err := fn(ctx); err != nil {
		b.RecordFailure()
		return err
	}
	b.RecordSuccess()
	return nil
}

// RecordSuccess feeds a successful call into the breaker. Enough
// successful probes in half-open close the circuit.
func (b *Breaker) RecordSuccess() {
	switch b.State() {
	case StateClosed:
		b.failures.Store(0)
	case StateHalfOpen:
		if int(b.halfOpenOK.Add(1)) >= b.config.HalfOpenSuccesses {
			b.transition(StateClosed)
		}
	}
}

// RecordFailure feeds a failed call into the breaker. Reaching the
// threshold opens the circuit; any failure during half-open reopens it.
func (b *Breaker) RecordFailure() {
	switch b.State() {
	case StateClosed:
		if int(b.failures.Add(1)) >= b.config.FailureThreshold {
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		b.transition(StateOpen)
	}
}

func (b *Breaker) transition(to State) {
	b.mu.Lock()
	from := State(b.state.Load())
	if from == to {
		b.mu.Unlock()
		return
	}

	b.state.Store(int32(to))
	switch to {
	case StateClosed:
		b.failures.Store(0)
		b.halfOpenOK.Store(0)
	case StateHalfOpen:
		b.halfOpenOK.Store(0)
	case StateOpen:
		b.openedAt.Store(time.Now().UnixNano())
	}
	b.mu.Unlock()

	b.logger.Info("circuit breaker state changed",
		"from", from.String(),
		"to", to.String(),
	)
	if b.config.OnStateChange != nil {
		b.config.OnStateChange(from, to)
	}
}
