// Package types defines the wire-level request and response shapes of
// the HTTP API.
package types

import "encoding/json"

// CompileOptions are the per-request compiler knobs. Omitted fields
// keep the server defaults, so a bare request compiles exactly like
// the background cache warm.
type CompileOptions struct {
	Parameterized    *bool  `json:"parameterized,omitempty"`
	Dialect          string `json:"dialect,omitempty" validate:"omitempty,oneof=postgres sqlite"`
	ReverseOperators *bool  `json:"reverse_operators,omitempty"`
}

// CompileRequest asks for one document compiled to a target. Exactly
// one of Tree and RuleQL carries the document.
type CompileRequest struct {
	Tree    json.RawMessage `json:"tree,omitempty"`
	RuleQL  string          `json:"ruleql,omitempty"`
	Target  string          `json:"target" validate:"required,oneof=sql mongo eval"`
	Options CompileOptions  `json:"options"`
}

// EvaluateRequest asks for rows filtered through a tree in process.
type EvaluateRequest struct {
	Tree json.RawMessage  `json:"tree" validate:"required"`
	Rows []map[string]any `json:"rows" validate:"max=10000"`
}

// CreateRuleSetRequest stores a named document.
type CreateRuleSetRequest struct {
	Name        string          `json:"name" validate:"required,min=1,max=255"`
	Description string          `json:"description" validate:"max=1024"`
	Document    json.RawMessage `json:"document" validate:"required"`
	Disabled    bool            `json:"disabled"`
}

// UpdateRuleSetRequest changes parts of a stored rule set. Nil fields
// keep their current values.
type UpdateRuleSetRequest struct {
	Name        *string         `json:"name" validate:"omitempty,min=1,max=255"`
	Description *string         `json:"description" validate:"omitempty,max=1024"`
	Document    json.RawMessage `json:"document,omitempty"`
	Disabled    *bool           `json:"disabled"`
}

// CompileRuleSetRequest compiles a stored document. An empty body
// compiles to sql with the server defaults.
type CompileRuleSetRequest struct {
	Target  string         `json:"target" validate:"omitempty,oneof=sql mongo eval"`
	Options CompileOptions `json:"options"`
}

