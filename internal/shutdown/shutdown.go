// Package shutdown coordinates graceful teardown. Components register
// named hooks, an OS signal or an explicit call flips the process into
// draining, and hooks run in priority order under per-hook timeouts.
package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/ruletree/ruletree/pkg/logging"
)

// Hook priorities used by the binaries. Higher runs first: stop taking
// work before releasing the resources that work still needs.
const (
	PriorityServer  = 100
	PriorityWorkers = 50
	PriorityStores  = 10
)

// Config bounds how long shutdown may take.
type Config struct {
	// Timeout is the overall budget for all hooks. Default 30s.
	Timeout time.Duration

	// HookTimeout bounds a single hook. Default 10s.
	HookTimeout time.Duration
}

type hook struct {
	name     string
	priority int
	fn       func(context.Context) error
}

// Coordinator runs registered hooks exactly once, on signal or on
// demand.
type Coordinator struct {
	config Config
	logger *logging.Logger

	mu    sync.Mutex
	hooks []hook

	once sync.Once
	done chan struct{}

	errMu sync.Mutex
	errs  []error
}

// New creates a coordinator. Zero config fields fall back to defaults.
func New(cfg Config, logger *logging.Logger) *Coordinator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.HookTimeout <= 0 {
		cfg.HookTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Coordinator{
		config: cfg,
		logger: logger.WithComponent("shutdown"),
		done:   make(chan struct{}),
	}
}

// Register adds a named hook. Higher priorities run first; hooks
// sharing a priority run in registration order.
func (c *Coordinator) Register(name string, priority int, fn func(context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, hook{name: name, priority: priority, fn: fn})
}

// OnSignal arranges for SIGINT or SIGTERM to trigger shutdown. The
// returned channel closes when shutdown completes.
func (c *Coordinator) OnSignal() <-chan struct{} {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-ch
		signal.Stop(ch)
		c.logger.Info("shutdown signal received", "signal", sig.String())
		c.Shutdown()
	}()
	return c.done
}

// Shutdown runs the hooks. The first caller does the work; later
// callers block until it finishes.
func (c *Coordinator) Shutdown() {
	c.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
		defer cancel()
		c.run(ctx)
		close(c.done)
	})
	<-c.done
}

// Done returns a channel that closes when shutdown has completed.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Errors returns the hook failures collected during shutdown.
func (c *Coordinator) Errors() []error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	errs := make([]error, len(c.errs))
	copy(errs, c.errs)
	return errs
}

func (c *Coordinator) run(ctx context.Context) {
	c.mu.Lock()
	hooks := make([]hook, len(c.hooks))
	copy(hooks, c.hooks)
	c.mu.Unlock()

	sort.SliceStable(hooks, func(i, j int) bool {
		return hooks[i].priority > hooks[j].priority
	})

	c.logger.Info("shutting down", "hooks", len(hooks))
	for _, h := range hooks {
		if ctx.Err() != nil {
			c.addError(fmt.Errorf("shutdown deadline passed before hook %s", h.name))
			c.logger.Warn("skipping remaining hooks", "next", h.name)
			return
		}
		c.runHook(ctx, h)
	}
}

// runHook runs one hook in its own goroutine so a hung hook cannot
// wedge the whole shutdown. Panics count as failures.
func (c *Coordinator) runHook(ctx context.Context, h hook) {
	hctx, cancel := context.WithTimeout(ctx, c.config.HookTimeout)
	defer cancel()

	start := time.Now()
	result := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				result <- fmt.Errorf("panic: %v", r)
			}
		}()
		result <- h.fn(hctx)
	}()

	var err error
	select {
	case err = <-result:
	case <-hctx.Done():
		err = fmt.Errorf("timed out after %s", c.config.HookTimeout)
	}

	if err != nil {
		c.addError(fmt.Errorf("hook %s: %w", h.name, err))
		c.logger.Error("shutdown hook failed",
			"hook", h.name, "error", err, "duration", time.Since(start))
		return
	}
	c.logger.Info("shutdown hook done", "hook", h.name, "duration", time.Since(start))
}

func (c *Coordinator) addError(err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	c.errs = append(c.errs, err)
}
