package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ruletree/ruletree/internal/cache"
	"github.com/ruletree/ruletree/internal/registry"
	"github.com/ruletree/ruletree/internal/store"
	"github.com/ruletree/ruletree/internal/target"
	"github.com/ruletree/ruletree/internal/tree"
	"github.com/ruletree/ruletree/internal/validate"
	"github.com/ruletree/ruletree/pkg/logging"
	"github.com/ruletree/ruletree/pkg/metrics"
)

// maxBatchErrors caps how many per-tree messages a batch result keeps.
const maxBatchErrors = 10

// Handlers processes the queue's task types. The base options carry
// the schema and limits the worker shares with the API, so warmed
// cache entries land under the keys the API looks up.
type Handlers struct {
	store   store.Store
	cache   cache.Cache
	options target.Options
	catalog registry.Catalog
	logger  *logging.Logger
	metrics *metrics.Registry
}

// NewHandlers wires task handlers to their dependencies.
func NewHandlers(st store.Store, ca cache.Cache, base target.Options, logger *logging.Logger, reg *metrics.Registry) (*Handlers, error) {
	catalog, err := base.Catalog()
	if err != nil {
		return nil, fmt.Errorf("build operator catalog: %w", err)
	}
	if logger == nil {
		logger = logging.Nop()
	}
	if reg == nil {
		reg = metrics.Global()
	}
	return &Handlers{
		store:   st,
		cache:   ca,
		options: base,
		catalog: catalog,
		logger:  logger.WithComponent("jobs"),
		metrics: reg,
	}, nil
}

func (h *Handlers) newValidator() *validate.Validator {
	return validate.New(h.options.Schema, h.catalog, validate.Config{
		MaxNesting:         h.options.MaxNesting,
		CanLeaveEmptyGroup: h.options.CanLeaveEmptyGroup,
	})
}

// HandleCompileRuleSet recompiles one stored rule set to every target
// and warms the compile cache. A rule set deleted or disabled since
// enqueueing is skipped without error.
func (h *Handlers) HandleCompileRuleSet(ctx context.Context, t *asynq.Task) error {
	var p CompileRuleSetPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	log := h.logger.WithRuleSet(p.RuleSetID.String())

	rs, err := h.store.Get(ctx, p.RuleSetID)
	if errors.Is(err, store.ErrNotFound) {
		log.InfoContext(ctx, "rule set gone before warm, skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load rule set: %w", err)
	}
	if rs.Disabled {
		log.InfoContext(ctx, "rule set disabled, skipping warm")
		return nil
	}

	root, err := tree.DecodeTree(rs.Document)
	if err != nil {
		return fmt.Errorf("decode document: %v: %w", err, asynq.SkipRetry)
	}
	if err := h.newValidator().Validate(root); err != nil {
		h.metrics.Core().RecordValidation(false)
		return fmt.Errorf("stored document no longer validates: %v: %w", err, asynq.SkipRetry)
	}
	h.metrics.Core().RecordValidation(true)

	fp, err := tree.Fingerprint(root)
	if err != nil {
		return fmt.Errorf("fingerprint document: %v: %w", err, asynq.SkipRetry)
	}
	digest, err := cache.OptionsDigest(h.options.CacheKeyOptions())
	if err != nil {
		return fmt.Errorf("digest options: %v: %w", err, asynq.SkipRetry)
	}

	warmed := 0
	for _, name := range target.Names() {
		timer := h.metrics.Core().NewCompileTimer(name)
		res, err := target.Compile(root, name, h.options)
		timer.Done(err)
		if err != nil {
			log.WarnContext(ctx, "warm compile failed", "target", name, "error", err)
			continue
		}
		if err := h.cache.SetJSON(ctx, cache.CompileKey(name, fp, digest), res, 0); err != nil {
			return fmt.Errorf("cache %s result: %w", name, err)
		}
		warmed++
	}
	if warmed == 0 {
		return fmt.Errorf("no target compiled: %w", asynq.SkipRetry)
	}

	log.InfoContext(ctx, "compile cache warmed", "targets", warmed, "fingerprint", fp)
	return nil
}

// BatchResult summarizes one batch compile run. It is stored as the
// task result for later inspection.
type BatchResult struct {
	Target      string    `json:"target"`
	Total       int       `json:"total"`
	Valid       int       `json:"valid"`
	Invalid     int       `json:"invalid"`
	Compiled    int       `json:"compiled"`
	Errors      []string  `json:"errors,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

func (r *BatchResult) addError(msg string) {
	if len(r.Errors) < maxBatchErrors {
		r.Errors = append(r.Errors, msg)
	}
}

// HandleCompileBatch validates and compiles every tree in an uploaded
// batch document. Invalid trees are counted, not fatal; the summary
// carries the first few error messages.
func (h *Handlers) HandleCompileBatch(ctx context.Context, t *asynq.Task) error {
	var p CompileBatchPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	result, err := h.runCompileBatch(ctx, p)
	if err != nil {
		return err
	}

	if w := t.ResultWriter(); w != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("marshal batch result: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			h.logger.WarnContext(ctx, "write batch result", "error", err)
		}
	}
	return nil
}

func (h *Handlers) runCompileBatch(ctx context.Context, p CompileBatchPayload) (*BatchResult, error) {
	if !target.Known(p.Target) {
		return nil, fmt.Errorf("unknown compile target %q: %w", p.Target, asynq.SkipRetry)
	}
	doc, err := tree.Decode(p.Document)
	if err != nil {
		return nil, fmt.Errorf("decode batch document: %v: %w", err, asynq.SkipRetry)
	}

	opts := h.options
	opts.Parameterized = p.Parameterized
	opts.Dialect = p.Dialect
	opts.ReverseOperators = p.ReverseOperators

	result := &BatchResult{Target: p.Target, Total: len(doc.Trees)}
	for i, root := range doc.Trees {
		if err := h.newValidator().Validate(root); err != nil {
			h.metrics.Core().RecordValidation(false)
			result.Invalid++
			result.addError(fmt.Sprintf("rules[%d]: %v", i, err))
			continue
		}
		h.metrics.Core().RecordValidation(true)
		result.Valid++

		timer := h.metrics.Core().NewCompileTimer(p.Target)
		_, cerr := target.Compile(root, p.Target, opts)
		timer.Done(cerr)
		if cerr != nil {
			result.addError(fmt.Sprintf("rules[%d]: %v", i, cerr))
			continue
		}
		result.Compiled++
	}
	result.CompletedAt = time.Now().UTC()

	h.logger.InfoContext(ctx, "batch compiled",
		"target", p.Target,
		"total", result.Total,
		"valid", result.Valid,
		"invalid", result.Invalid,
		"compiled", result.Compiled,
	)
	return result, nil
}

// HandlePurgeRuleSets deletes soft-disabled rule sets untouched for
// the payload's retention window.
func (h *Handlers) HandlePurgeRuleSets(ctx context.Context, t *asynq.Task) error {
	var p PurgeRuleSetsPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.OlderThan <= 0 {
		return fmt.Errorf("retention must be positive, got %v: %w", p.OlderThan, asynq.SkipRetry)
	}

	cutoff := time.Now().UTC().Add(-p.OlderThan)
	n, err := h.store.PurgeDisabled(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("purge rule sets: %w", err)
	}

	h.logger.InfoContext(ctx, "purged disabled rule sets", "count", n, "cutoff", cutoff)
	return nil
}
