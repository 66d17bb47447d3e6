package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/ruletree/ruletree/pkg/logging"
	"github.com/ruletree/ruletree/pkg/metrics"
)

// Manager owns the asynq client, server and scheduler. The API side
// only enqueues; the worker command calls Start to process tasks and
// run the periodic purge.
type Manager struct {
	client    *asynq.Client
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	config    Config
	logger    *logging.Logger
	metrics   *metrics.Registry

	mu      sync.Mutex
	running bool
}

// NewManager creates a queue manager with all task handlers mounted.
func NewManager(cfg Config, handlers *Handlers, logger *logging.Logger, reg *metrics.Registry) (*Manager, error) {
	if handlers == nil {
		return nil, errors.New("jobs: handlers are required")
	}
	if logger == nil {
		logger = logging.Nop()
	}
	if reg == nil {
		reg = metrics.Global()
	}
	log := logger.WithComponent("jobs")

	redisOpt, err := cfg.redisOpt()
	if err != nil {
		return nil, err
	}

	m := &Manager{
		client:  asynq.NewClient(redisOpt),
		config:  cfg,
		logger:  log,
		metrics: reg,
	}

	m.server = asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:     cfg.Concurrency,
		Queues:          cfg.Queues,
		ShutdownTimeout: cfg.ShutdownTimeout,
		RetryDelayFunc:  retryDelay,
		Logger:          &asynqLogger{logger: log},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.ErrorContext(ctx, "task handler error", "type", task.Type(), "error", err)
		}),
	})

	m.scheduler = asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Logger: &asynqLogger{logger: log},
	})

	mux := asynq.NewServeMux()
	mux.Use(m.instrument)
	mux.HandleFunc(TypeCompileRuleSet, handlers.HandleCompileRuleSet)
	mux.HandleFunc(TypeCompileBatch, handlers.HandleCompileBatch)
	mux.HandleFunc(TypePurgeRuleSets, handlers.HandlePurgeRuleSets)
	m.mux = mux

	return m, nil
}

// redisOpt resolves the configured redis connection.
func (c Config) redisOpt() (asynq.RedisConnOpt, error) {
	if c.RedisURI != "" {
		opt, err := asynq.ParseRedisURI(c.RedisURI)
		if err != nil {
			return nil, fmt.Errorf("jobs: parse redis uri: %w", err)
		}
		return opt, nil
	}
	return asynq.RedisClientOpt{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}, nil
}

// retryDelay backs off exponentially, capped at ten minutes.
func retryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	delay := time.Duration(1<<uint(n)) * time.Second
	if delay > 10*time.Minute {
		delay = 10 * time.Minute
	}
	return delay
}

// instrument tags the context with the task id and records per-task
// metrics and logs around every handler.
func (m *Manager) instrument(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		if id, ok := asynq.GetTaskID(ctx); ok {
			ctx = logging.WithTaskID(ctx, id)
		}
		timer := m.metrics.Jobs().NewTaskTimer(t.Type())
		err := next.ProcessTask(ctx, t)
		timer.Done(err)
		if err != nil {
			m.logger.ErrorContext(ctx, "task failed", "type", t.Type(), "error", err)
		} else {
			m.logger.InfoContext(ctx, "task done", "type", t.Type())
		}
		return err
	})
}

// EnqueueCompileRuleSet queues a cache warm for one rule set. A warm
// already pending for the same rule set is not an error; it returns a
// nil info.
func (m *Manager) EnqueueCompileRuleSet(ctx context.Context, id uuid.UUID) (*asynq.TaskInfo, error) {
	task, err := NewCompileRuleSetTask(id)
	if err != nil {
		return nil, err
	}
	info, err := m.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		m.logger.DebugContext(ctx, "warm already pending", "ruleset_id", id)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", TypeCompileRuleSet, err)
	}
	return info, nil
}

// EnqueueCompileBatch queues a batch compile of an uploaded document.
func (m *Manager) EnqueueCompileBatch(ctx context.Context, p CompileBatchPayload) (*asynq.TaskInfo, error) {
	task, err := NewCompileBatchTask(p)
	if err != nil {
		return nil, err
	}
	info, err := m.client.EnqueueContext(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", TypeCompileBatch, err)
	}
	return info, nil
}

// EnqueuePurge queues an immediate purge run with the configured
// retention window.
func (m *Manager) EnqueuePurge(ctx context.Context) (*asynq.TaskInfo, error) {
	task, err := NewPurgeRuleSetsTask(m.config.PurgeRetention)
	if err != nil {
		return nil, err
	}
	info, err := m.client.EnqueueContext(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", TypePurgeRuleSets, err)
	}
	return info, nil
}

// Start runs the queue server and scheduler in the background and
// registers the periodic purge entry.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	if m.config.PurgeSchedule != "" {
		task, err := NewPurgeRuleSetsTask(m.config.PurgeRetention)
		if err != nil {
			return err
		}
		entryID, err := m.scheduler.Register(m.config.PurgeSchedule, task)
		if err != nil {
			return fmt.Errorf("register purge schedule: %w", err)
		}
		m.logger.Info("purge schedule registered",
			"entry_id", entryID,
			"spec", m.config.PurgeSchedule,
			"retention", m.config.PurgeRetention,
		)
	}

	go func() {
		if err := m.scheduler.Run(); err != nil {
			m.logger.Error("scheduler stopped", "error", err)
		}
	}()
	go func() {
		if err := m.server.Run(m.mux); err != nil {
			m.logger.Error("queue server stopped", "error", err)
		}
	}()

	m.running = true
	return nil
}

// Stop drains in-flight tasks and closes the queue connections.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}

	m.scheduler.Shutdown()
	m.server.Shutdown()
	if err := m.client.Close(); err != nil {
		return fmt.Errorf("close queue client: %w", err)
	}

	m.running = false
	return nil
}

// Close releases the queue client. The API process, which only
// enqueues, uses it; the worker calls Stop instead.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return errors.New("jobs: manager is running, call Stop")
	}
	return m.client.Close()
}

// IsRunning reports whether Start has been called without a matching
// Stop.
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Ping checks the queue's redis connection, for readiness probes.
func (m *Manager) Ping() error {
	return m.client.Ping()
}

// asynqLogger adapts the structured logger to asynq's logging
// interface.
type asynqLogger struct {
	logger *logging.Logger
}

func (l *asynqLogger) Debug(args ...any) { l.logger.Debug(fmt.Sprint(args...)) }
func (l *asynqLogger) Info(args ...any)  { l.logger.Info(fmt.Sprint(args...)) }
func (l *asynqLogger) Warn(args ...any)  { l.logger.Warn(fmt.Sprint(args...)) }
func (l *asynqLogger) Error(args ...any) { l.logger.Error(fmt.Sprint(args...)) }
func (l *asynqLogger) Fatal(args ...any) { l.logger.Error(fmt.Sprint(args...)) }
