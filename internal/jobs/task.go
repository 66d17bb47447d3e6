package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task type identifiers.
const (
	TypeCompileRuleSet = "compile:ruleset"
	TypeCompileBatch   = "compile:batch"
	TypePurgeRuleSets  = "rulesets:purge"
)

// CompileRuleSetPayload identifies the rule set to recompile.
type CompileRuleSetPayload struct {
	RuleSetID uuid.UUID `json:"ruleset_id"`
}

// NewCompileRuleSetTask builds a cache-warm task for one rule set.
// Uniqueness collapses a create followed by quick updates into a
// single pending warm.
func NewCompileRuleSetTask(id uuid.UUID) (*asynq.Task, error) {
	payload, err := json.Marshal(CompileRuleSetPayload{RuleSetID: id})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(TypeCompileRuleSet, payload,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(3),
		asynq.Timeout(time.Minute),
		asynq.Unique(time.Minute),
	), nil
}

// CompileBatchPayload carries an uploaded batch document and the
// target to compile every tree to.
type CompileBatchPayload struct {
	Document         json.RawMessage `json:"document"`
	Target           string          `json:"target"`
	Parameterized    bool            `json:"parameterized,omitempty"`
	Dialect          string          `json:"dialect,omitempty"`
	ReverseOperators bool            `json:"reverse_operators,omitempty"`
}

// NewCompileBatchTask builds a batch compile task. The result summary
// is retained so callers can inspect it after completion.
func NewCompileBatchTask(p CompileBatchPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(TypeCompileBatch, payload,
		asynq.Queue(QueueLow),
		asynq.MaxRetry(3),
		asynq.Timeout(5*time.Minute),
		asynq.Retention(24*time.Hour),
	), nil
}

// PurgeRuleSetsPayload sets the retention window for one purge run.
type PurgeRuleSetsPayload struct {
	OlderThan time.Duration `json:"older_than"`
}

// NewPurgeRuleSetsTask builds a purge task removing soft-disabled rule
// sets untouched for olderThan.
func NewPurgeRuleSetsTask(olderThan time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(PurgeRuleSetsPayload{OlderThan: olderThan})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(TypePurgeRuleSets,
		payload,
		asynq.Queue(QueueLow),
		asynq.MaxRetry(2),
		asynq.Timeout(2*time.Minute),
	), nil
}
