package types

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/ruletree/ruletree/internal/store"
	"github.com/ruletree/ruletree/internal/target"
	"github.com/ruletree/ruletree/internal/tree"
	"github.com/ruletree/ruletree/internal/validate"
)

// NodeError is one validation finding tied to the node that caused it.
type NodeError struct {
	NodeID  string `json:"node_id,omitempty"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// NodeErrorsFromValidate converts an aggregate of validator findings
// to the wire shape, preserving order.
func NodeErrorsFromValidate(ve *validate.Errors) []NodeError {
	out := make([]NodeError, len(ve.Errors))
	for i, e := range ve.Errors {
		out[i] = NodeError{NodeID: e.NodeID, Kind: e.Kind.String(), Message: e.Message}
	}
	return out
}

// NodeErrorFromDecode converts a decode failure to the wire shape.
// Decode errors carry no validation kind; they all surface as
// malformed. The message keeps the full error text so batch positions
// like rules[2] survive.
func NodeErrorFromDecode(err error) NodeError {
	out := NodeError{Kind: "malformed", Message: err.Error()}
	var me *tree.MalformedNodeError
	if errors.As(err, &me) {
		out.NodeID = me.NodeID
	}
	return out
}

// DeprecationNote is a legacy wire construct met during decoding.
type DeprecationNote struct {
	NodeID  string `json:"node_id,omitempty"`
	Key     string `json:"key,omitempty"`
	Message string `json:"message"`
}

// DeprecationsFromDecode converts decoder deprecations to the wire
// shape.
func DeprecationsFromDecode(deps []tree.Deprecation) []DeprecationNote {
	if len(deps) == 0 {
		return nil
	}
	out := make([]DeprecationNote, len(deps))
	for i, d := range deps {
		out[i] = DeprecationNote{NodeID: d.NodeID, Key: d.Key, Message: d.Message}
	}
	return out
}

// ValidateResponse reports every finding of one validation pass.
type ValidateResponse struct {
	Valid        bool              `json:"valid"`
	Trees        int               `json:"trees"`
	Errors       []NodeError       `json:"errors,omitempty"`
	Deprecations []DeprecationNote `json:"deprecations,omitempty"`
}

// CompileResponse is a compiled expression for one target.
type CompileResponse struct {
	Target     string          `json:"target"`
	Expression string          `json:"expression,omitempty"`
	Args       []any           `json:"args,omitempty"`
	Filter     json.RawMessage `json:"filter,omitempty"`
	Cached     bool            `json:"cached,omitempty"`
}

// CompileFromResult converts a target result to an API response.
func CompileFromResult(res *target.Result, cached bool) *CompileResponse {
	return &CompileResponse{
		Target:     res.Target,
		Expression: res.Expression,
		Args:       res.Args,
		Filter:     res.Filter,
		Cached:     cached,
	}
}

// EvaluateResponse carries per-row outcomes in input order.
type EvaluateResponse struct {
	Results []bool `json:"results"`
	Matched int    `json:"matched"`
}

// RuleSetResponse represents a stored rule set in API responses.
type RuleSetResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Document    json.RawMessage `json:"document"`
	Disabled    bool            `json:"disabled"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// RuleSetFromModel converts a stored rule set to an API response.
func RuleSetFromModel(rs *store.RuleSet) *RuleSetResponse {
	return &RuleSetResponse{
		ID:          rs.ID.String(),
		Name:        rs.Name,
		Description: rs.Description,
		Document:    rs.Document,
		Disabled:    rs.Disabled,
		CreatedAt:   rs.CreatedAt,
		UpdatedAt:   rs.UpdatedAt,
	}
}

// RuleSetsFromModels converts a slice of stored rule sets to API responses.
func RuleSetsFromModels(sets []*store.RuleSet) []*RuleSetResponse {
	responses := make([]*RuleSetResponse, len(sets))
	for i, rs := range sets {
		responses[i] = RuleSetFromModel(rs)
	}
	return responses
}

// ErrorResponse represents an error in API responses. Details carries
// per-field input validation messages; Errors carries tree validation
// findings.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
	Errors  []NodeError       `json:"errors,omitempty"`
}

