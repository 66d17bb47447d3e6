package logging

import (
	"context"
	"io"
	"log/slog"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	requestIDKey contextKey = "request_id"
	ruleSetIDKey contextKey = "ruleset_id"
	taskIDKey    contextKey = "task_id"
)

// WithRequestID stores a request id for the context handler to lift.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFrom returns the request id stored in the context, if any.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithRuleSetID stores a rule-set id for the context handler to lift.
func WithRuleSetID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ruleSetIDKey, id)
}

// WithTaskID stores a background task id for the context handler to
// lift.
func WithTaskID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, taskIDKey, id)
}

// Logger wraps slog.Logger with correlation helpers.
type Logger struct {
	*slog.Logger
	config Config
}

// New creates a Logger writing to the configured output.
func New(config Config) *Logger {
	return NewWithWriter(config, config.writer())
}

// NewWithWriter creates a Logger with a custom writer.
func NewWithWriter(config Config, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{
		Level:     ParseLevel(config.Level),
		AddSource: config.AddSource,
	}

	var handler slog.Handler
	if config.Format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return &Logger{
		Logger: slog.New(&ContextHandler{Handler: handler}),
		config: config,
	}
}

// Nop returns a logger that discards everything, for tests.
func Nop() *Logger {
	return NewWithWriter(DefaultConfig(), io.Discard)
}

// SetDefault installs this logger as the process default.
func (l *Logger) SetDefault() {
	slog.SetDefault(l.Logger)
}

// With returns a new Logger with the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
		config: l.config,
	}
}

// WithComponent tags entries with the emitting component.
func (l *Logger) WithComponent(name string) *Logger {
	return l.With("component", name)
}

// WithTarget tags entries with a compile target.
func (l *Logger) WithTarget(target string) *Logger {
	return l.With("target", target)
}

// WithRuleSet tags entries with a rule-set id.
func (l *Logger) WithRuleSet(id string) *Logger {
	return l.With("ruleset_id", id)
}

// ContextHandler is a slog.Handler that lifts correlation ids from the
// context into record attributes.
type ContextHandler struct {
	slog.Handler
}

// Handle adds context ids to the record and passes it on.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		r.AddAttrs(slog.String("request_id", id))
	}
	if id, ok := ctx.Value(ruleSetIDKey).(string); ok && id != "" {
		r.AddAttrs(slog.String("ruleset_id", id))
	}
	if id, ok := ctx.Value(taskIDKey).(string); ok && id != "" {
		r.AddAttrs(slog.String("task_id", id))
	}
	return h.Handler.Handle(ctx, r)
}

// WithAttrs returns a new ContextHandler with the given attributes.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

// WithGroup returns a new ContextHandler with the given group.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithGroup(name)}
}
