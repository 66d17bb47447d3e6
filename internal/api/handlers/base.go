// Package handlers contains HTTP request handlers for the API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/ruletree/ruletree/internal/api/types"
	"github.com/ruletree/ruletree/internal/cache"
	"github.com/ruletree/ruletree/internal/registry"
	"github.com/ruletree/ruletree/internal/store"
	"github.com/ruletree/ruletree/internal/target"
	"github.com/ruletree/ruletree/internal/tree"
	"github.com/ruletree/ruletree/internal/validate"
	"github.com/ruletree/ruletree/pkg/logging"
	"github.com/ruletree/ruletree/pkg/metrics"
)

// Jobs is the slice of the queue manager the API drives: warming the
// compile cache after rule-set writes and answering readiness probes.
// A nil Jobs disables both.
type Jobs interface {
	EnqueueCompileRuleSet(ctx context.Context, id uuid.UUID) (*asynq.TaskInfo, error)
	Ping() error
}

// Config carries the handler dependencies. Store is mandatory; a nil
// Cache or Jobs switches the feature off.
type Config struct {
	Store store.Store
	Cache cache.Cache
	Jobs  Jobs

	// Options carry the schema and compile defaults shared with the
	// worker, so default requests land on warmed cache keys.
	Options target.Options

	// CacheTTL bounds cached compile results; zero takes the cache's
	// default.
	CacheTTL time.Duration

	Logger  *logging.Logger
	Metrics *metrics.Registry
}

// Handler provides HTTP handlers for the API.
type Handler struct {
	store    store.Store
	cache    cache.Cache
	jobs     Jobs
	options  target.Options
	catalog  registry.Catalog
	cacheTTL time.Duration
	validate *validator.Validate
	logger   *logging.Logger
	metrics  *metrics.Registry
}

// New creates a Handler from its dependencies.
func New(cfg Config) (*Handler, error) {
	if cfg.Store == nil {
		return nil, errors.New("api: store is required")
	}
	catalog, err := cfg.Options.Catalog()
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	reg := cfg.Metrics
	if reg == nil {
		reg = metrics.Global()
	}
	return &Handler{
		store:    cfg.Store,
		cache:    cfg.Cache,
		jobs:     cfg.Jobs,
		options:  cfg.Options,
		catalog:  catalog,
		cacheTTL: cfg.CacheTTL,
		validate: validator.New(),
		logger:   logger.WithComponent("api"),
		metrics:  reg,
	}, nil
}

// newTreeValidator builds a validator for one pass. Validators carry
// per-pass state, so every request gets a fresh one.
func (h *Handler) newTreeValidator() *validate.Validator {
	return validate.New(h.options.Schema, h.catalog, validate.Config{
		MaxNesting:         h.options.MaxNesting,
		CanLeaveEmptyGroup: h.options.CanLeaveEmptyGroup,
	})
}

// validateTree runs one validation pass and records the outcome.
// A non-nil return is the *validate.Errors aggregate.
func (h *Handler) validateTree(root tree.Node) *validate.Errors {
	err := h.newTreeValidator().Validate(root)
	if err == nil {
		h.metrics.Core().RecordValidation(true)
		return nil
	}
	h.metrics.Core().RecordValidation(false)
	ve, _ := validate.AsErrors(err)
	for _, e := range ve.Errors {
		h.metrics.Core().RecordValidationError(e.Kind.String())
	}
	return ve
}

// requestOptions overlays per-request knobs onto the server defaults.
func (h *Handler) requestOptions(o types.CompileOptions) target.Options {
	opts := h.options
	if o.Parameterized != nil {
		opts.Parameterized = *o.Parameterized
	}
	if o.Dialect != "" {
		opts.Dialect = o.Dialect
	}
	if o.ReverseOperators != nil {
		opts.ReverseOperators = *o.ReverseOperators
	}
	return opts
}

// compileCached compiles root for the named target, consulting the
// cache when one is configured. Cache failures degrade to a plain
// compile; they never fail the request.
func (h *Handler) compileCached(ctx context.Context, root tree.Node, name string, opts target.Options) (*target.Result, bool, error) {
	key := h.cacheKey(root, name, opts)
	if key != "" {
		var res target.Result
		err := h.cache.GetJSON(ctx, key, &res)
		if err == nil {
			h.metrics.Cache().RecordHit()
			return &res, true, nil
		}
		h.metrics.Cache().RecordMiss()
		if !errors.Is(err, cache.ErrCacheMiss) {
			h.logger.WarnContext(ctx, "cache read failed", "key", key, "error", err)
		}
	}

	timer := h.metrics.Core().NewCompileTimer(name)
	res, err := target.Compile(root, name, opts)
	timer.Done(err)
	if err != nil {
		return nil, false, err
	}

	if key != "" {
		if err := h.cache.SetJSON(ctx, key, res, h.cacheTTL); err != nil {
			h.logger.WarnContext(ctx, "cache write failed", "key", key, "error", err)
		}
	}
	return res, false, nil
}

// cacheKey returns the compile cache key, or "" when caching does not
// apply. Fingerprint failures disable caching for the request; the
// compiler will report the underlying problem precisely.
func (h *Handler) cacheKey(root tree.Node, name string, opts target.Options) string {
	if h.cache == nil {
		return ""
	}
	fp, err := tree.Fingerprint(root)
	if err != nil {
		return ""
	}
	digest, err := cache.OptionsDigest(opts.CacheKeyOptions())
	if err != nil {
		return ""
	}
	return cache.CompileKey(name, fp, digest)
}

// warm queues a compile cache warm for the rule set. Failures are
// logged, not surfaced; the write has already succeeded.
func (h *Handler) warm(ctx context.Context, rs *store.RuleSet) {
	if h.jobs == nil || rs.Disabled {
		return
	}
	if _, err := h.jobs.EnqueueCompileRuleSet(ctx, rs.ID); err != nil {
		h.logger.WarnContext(ctx, "enqueue warm failed", "ruleset_id", rs.ID, "error", err)
	}
}

// respondJSON writes a JSON response with the given status code.
func (h *Handler) respondJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			h.logger.Warn("encoding response failed", "error", err)
		}
	}
}

// respondError writes a JSON error response with the given status code.
func (h *Handler) respondError(w http.ResponseWriter, code int, message string) {
	h.respondJSON(w, code, types.ErrorResponse{Error: message})
}

// respondValidationError writes the response for a bad request body.
func (h *Handler) respondValidationError(w http.ResponseWriter, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		details := make(map[string]string)
		for _, e := range validationErrs {
			details[e.Field()] = formatValidationError(e)
		}
		h.respondJSON(w, http.StatusBadRequest, types.ErrorResponse{
			Error:   "validation failed",
			Details: details,
		})
		return
	}
	h.respondError(w, http.StatusBadRequest, "invalid input")
}

// respondTreeErrors writes the response for a document that failed
// tree validation.
func (h *Handler) respondTreeErrors(w http.ResponseWriter, ve *validate.Errors) {
	h.respondJSON(w, http.StatusUnprocessableEntity, types.ErrorResponse{
		Error:  "document failed validation",
		Errors: types.NodeErrorsFromValidate(ve),
	})
}

// respondMalformed writes the response for a document the decoder
// rejected.
func (h *Handler) respondMalformed(w http.ResponseWriter, err error) {
	h.respondJSON(w, http.StatusUnprocessableEntity, types.ErrorResponse{
		Error:  "malformed document",
		Errors: []types.NodeError{types.NodeErrorFromDecode(err)},
	})
}

// respondStoreError maps persistence failures onto status codes.
func (h *Handler) respondStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		h.respondError(w, http.StatusNotFound, "rule set not found")
	case errors.Is(err, store.ErrDuplicate):
		h.respondError(w, http.StatusConflict, "rule set name already exists")
	default:
		h.logger.ErrorContext(r.Context(), "store operation failed", "error", err)
		h.respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// formatValidationError formats a validation error into a human-readable message.
func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + e.Param() + " characters"
	case "max":
		return "must be at most " + e.Param() + " items or characters"
	case "oneof":
		return "must be one of: " + e.Param()
	default:
		return "is invalid"
	}
}

// decodeJSON decodes a JSON request body into the given value.
func (h *Handler) decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	return json.NewDecoder(r.Body).Decode(v)
}

// validateRequest validates the given request struct.
func (h *Handler) validateRequest(v any) error {
	return h.validate.Struct(v)
}

// decodeAndValidate decodes and validates a JSON request.
func (h *Handler) decodeAndValidate(r *http.Request, v any) error {
	if err := h.decodeJSON(r, v); err != nil {
		return err
	}
	return h.validateRequest(v)
}
