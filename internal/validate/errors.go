// Package validate checks rule trees against the grammar's structural
// and semantic constraints. Validation is total: one pass collects
// every finding so callers can report all problems at once.
package validate

import (
	"errors"
	"fmt"
	"strings"
)

// Kind categorizes validation errors for structured handling.
type Kind int

const (
	// KindRootNotGroup indicates the tree root is not a group node.
	KindRootNotGroup Kind = iota
	// KindEmptyGroup indicates a group with no children.
	KindEmptyGroup
	// KindDuplicateID indicates a node id used more than once.
	KindDuplicateID
	// KindMissingField indicates a rule without a field.
	KindMissingField
	// KindMissingOperator indicates a rule without an operator.
	KindMissingOperator
	// KindUnknownField indicates a field absent from the schema.
	KindUnknownField
	// KindUnknownOperator indicates an operator absent from the registry.
	KindUnknownOperator
	// KindOperatorType indicates an operator applied to a field type it
	// does not support.
	KindOperatorType
	// KindMissingValue indicates a required value is absent.
	KindMissingValue
	// KindUnexpectedValue indicates a value on a value-less operator.
	KindUnexpectedValue
	// KindValueSource indicates a value source the operator rejects.
	KindValueSource
	// KindTypeMismatch indicates a value typed differently than the field.
	KindTypeMismatch
	// KindCardinality indicates a value list of the wrong length.
	KindCardinality
	// KindNestingTooDeep indicates groups nested past the limit.
	KindNestingTooDeep
	// KindUnknownFunc indicates a function absent from the registry.
	KindUnknownFunc
	// KindFuncArgs indicates function arguments that do not match the
	// declared argument names exactly.
	KindFuncArgs
)

// kindNames maps Kind to the wire spelling used in API responses.
var kindNames = map[Kind]string{
	KindRootNotGroup:    "root_not_group",
	KindEmptyGroup:      "empty_group",
	KindDuplicateID:     "duplicate_id",
	KindMissingField:    "missing_field",
	KindMissingOperator: "missing_operator",
	KindUnknownField:    "unknown_field",
	KindUnknownOperator: "unknown_operator",
	KindOperatorType:    "operator_type",
	KindMissingValue:    "missing_value",
	KindUnexpectedValue: "unexpected_value",
	KindValueSource:     "value_source",
	KindTypeMismatch:    "type_mismatch",
	KindCardinality:     "cardinality",
	KindNestingTooDeep:  "nesting_too_deep",
	KindUnknownFunc:     "unknown_func",
	KindFuncArgs:        "func_args",
}

// String returns the wire spelling of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("unknown_kind(%d)", int(k))
}

// Error is a single validation finding tagged with the offending node.
type Error struct {
	NodeID  string
	Kind    Kind
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("node %q: %s: %s", e.NodeID, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Errors aggregates every finding of one validation pass.
type Errors struct {
	Errors []*Error
}

// Error implements the error interface, formatting all findings.
func (ve *Errors) Error() string {
	if len(ve.Errors) == 0 {
		return "no validation errors"
	}
	if len(ve.Errors) == 1 {
		return ve.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(ve.Errors)))
	for i, err := range ve.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add appends a finding to the collection.
func (ve *Errors) Add(err *Error) {
	ve.Errors = append(ve.Errors, err)
}

// HasErrors returns true if any finding was collected.
func (ve *Errors) HasErrors() bool {
	return len(ve.Errors) > 0
}

// ByNode returns the findings tagged with the given node id.
func (ve *Errors) ByNode(nodeID string) []*Error {
	var out []*Error
	for _, err := range ve.Errors {
		if err.NodeID == nodeID {
			out = append(out, err)
		}
	}
	return out
}

// Unwrap returns the underlying errors for errors.Is/As compatibility.
func (ve *Errors) Unwrap() []error {
	errs := make([]error, len(ve.Errors))
	for i, e := range ve.Errors {
		errs[i] = e
	}
	return errs
}

// AsErrors extracts the aggregate from a validation result.
func AsErrors(err error) (*Errors, bool) {
	var ve *Errors
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// Specific error constructors for the validation rules

func errRootNotGroup(nodeID string, kind string) *Error {
	return &Error{NodeID: nodeID, Kind: KindRootNotGroup,
		Message: fmt.Sprintf("tree root must be a group, got %s", kind)}
}

func errEmptyGroup(nodeID string) *Error {
	return &Error{NodeID: nodeID, Kind: KindEmptyGroup,
		Message: "group has no children"}
}

func errDuplicateID(nodeID string) *Error {
	return &Error{NodeID: nodeID, Kind: KindDuplicateID,
		Message: fmt.Sprintf("node id %q used more than once", nodeID)}
}

func errMissingField(nodeID string) *Error {
	return &Error{NodeID: nodeID, Kind: KindMissingField,
		Message: "rule has no field"}
}

func errMissingOperator(nodeID string) *Error {
	return &Error{NodeID: nodeID, Kind: KindMissingOperator,
		Message: "rule has no operator"}
}

func errUnknownField(nodeID, name string) *Error {
	return &Error{NodeID: nodeID, Kind: KindUnknownField,
		Message: fmt.Sprintf("unknown field %q", name)}
}

func errUnknownOperator(nodeID, name string) *Error {
	return &Error{NodeID: nodeID, Kind: KindUnknownOperator,
		Message: fmt.Sprintf("unknown operator %q", name)}
}

func errOperatorType(nodeID, operator, fieldType string) *Error {
	return &Error{NodeID: nodeID, Kind: KindOperatorType,
		Message: fmt.Sprintf("operator %q does not apply to %s fields", operator, fieldType)}
}

func errMissingValue(nodeID, operator string) *Error {
	return &Error{NodeID: nodeID, Kind: KindMissingValue,
		Message: fmt.Sprintf("operator %q requires a value", operator)}
}

func errUnexpectedValue(nodeID, operator string) *Error {
	return &Error{NodeID: nodeID, Kind: KindUnexpectedValue,
		Message: fmt.Sprintf("operator %q takes no value", operator)}
}

func errValueSource(nodeID, operator, source string) *Error {
	return &Error{NodeID: nodeID, Kind: KindValueSource,
		Message: fmt.Sprintf("operator %q does not accept %s values", operator, source)}
}

func errTypeMismatch(nodeID, want, got string) *Error {
	return &Error{NodeID: nodeID, Kind: KindTypeMismatch,
		Message: fmt.Sprintf("value type %s does not match field type %s", got, want)}
}

func errCardinality(nodeID, operator string, want, got int) *Error {
	return &Error{NodeID: nodeID, Kind: KindCardinality,
		Message: fmt.Sprintf("operator %q takes %d values, got %d", operator, want, got)}
}

func errNestingTooDeep(nodeID string, max int) *Error {
	return &Error{NodeID: nodeID, Kind: KindNestingTooDeep,
		Message: fmt.Sprintf("groups nested deeper than the limit of %d", max)}
}

func errUnknownFunc(nodeID, name string) *Error {
	return &Error{NodeID: nodeID, Kind: KindUnknownFunc,
		Message: fmt.Sprintf("unknown function %q", name)}
}

func errFuncArgs(nodeID, name, detail string) *Error {
	return &Error{NodeID: nodeID, Kind: KindFuncArgs,
		Message: fmt.Sprintf("function %q: %s", name, detail)}
}
