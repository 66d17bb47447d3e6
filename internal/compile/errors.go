package compile

import (
	"errors"
	"fmt"
)

// ErrorType categorizes compile errors for structured handling.
type ErrorType int

const (
	// ErrorUnknownOperator indicates an operator with no registered spec.
	ErrorUnknownOperator ErrorType = iota
	// ErrorUnknownFunction indicates a function with no registered spec.
	ErrorUnknownFunction
	// ErrorUnknownField indicates a field name absent from the schema.
	ErrorUnknownField
	// ErrorTypeMismatch indicates a value whose type conflicts with the
	// field it is compared to.
	ErrorTypeMismatch
	// ErrorCardinality indicates a value count that does not match the
	// operator's cardinality.
	ErrorCardinality
	// ErrorMissingValue indicates a value-taking operator with no value.
	ErrorMissingValue
	// ErrorMissingField indicates a rule with no field.
	ErrorMissingField
	// ErrorMissingOperator indicates a rule with no operator.
	ErrorMissingOperator
	// ErrorFuncArgs indicates function arguments that do not match the
	// declared argument names.
	ErrorFuncArgs
	// ErrorEmptyGroup indicates a group with no children.
	ErrorEmptyGroup
	// ErrorNestingTooDeep indicates group nesting beyond the limit.
	ErrorNestingTooDeep
	// ErrorCycle indicates a node id reached twice during traversal.
	ErrorCycle
	// ErrorMalformedTree indicates a nil or unrecognized node.
	ErrorMalformedTree
	// ErrorRender indicates a registered render callback failed.
	ErrorRender
)

// errorTypeNames maps ErrorType to human-readable names.
var errorTypeNames = map[ErrorType]string{
	ErrorUnknownOperator: "UnknownOperatorError",
	ErrorUnknownFunction: "UnknownFunctionError",
	ErrorUnknownField:    "UnknownFieldError",
	ErrorTypeMismatch:    "TypeMismatchError",
	ErrorCardinality:     "CardinalityMismatchError",
	ErrorMissingValue:    "MissingValueError",
	ErrorMissingField:    "MissingFieldError",
	ErrorMissingOperator: "MissingOperatorError",
	ErrorFuncArgs:        "FunctionArgsError",
	ErrorEmptyGroup:      "EmptyGroupError",
	ErrorNestingTooDeep:  "NestingTooDeepError",
	ErrorCycle:           "CycleError",
	ErrorMalformedTree:   "MalformedTreeError",
	ErrorRender:          "RenderError",
}

// String returns the string representation of ErrorType.
func (et ErrorType) String() string {
	if name, ok := errorTypeNames[et]; ok {
		return name
	}
	return fmt.Sprintf("UnknownError(%d)", et)
}

// Error is a single compile failure. Compilation is fail-fast: the
// first Error aborts the branch that produced it.
type Error struct {
	// NodeID is the id of the tree node the failure originates from.
	NodeID string
	// Type categorizes the failure.
	Type ErrorType
	// Message is the human-readable description.
	Message string
	// Cause holds the underlying error for render failures.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("%s at node %q: %s", e.Type, e.NodeID, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// AsError unwraps err to the *Error it carries, if any.
func AsError(err error) (*Error, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// Specific error constructors for compile failures

// ErrUnknownOperator creates an error for an unregistered operator.
func ErrUnknownOperator(nodeID, name string) *Error {
	return &Error{NodeID: nodeID, Type: ErrorUnknownOperator,
		Message: fmt.Sprintf("unknown operator %q", name)}
}

// ErrUnknownFunction creates an error for an unregistered function.
func ErrUnknownFunction(nodeID, name string) *Error {
	return &Error{NodeID: nodeID, Type: ErrorUnknownFunction,
		Message: fmt.Sprintf("unknown function %q", name)}
}

// ErrUnknownField creates an error for a field absent from the schema.
func ErrUnknownField(nodeID, name string) *Error {
	return &Error{NodeID: nodeID, Type: ErrorUnknownField,
		Message: fmt.Sprintf("unknown field %q", name)}
}

// ErrTypeMismatch creates an error for a value/field type conflict.
func ErrTypeMismatch(nodeID, want, got string) *Error {
	return &Error{NodeID: nodeID, Type: ErrorTypeMismatch,
		Message: fmt.Sprintf("type mismatch: expected %s, got %s", want, got)}
}

// ErrCardinality creates an error for a wrong value count.
func ErrCardinality(nodeID, operator string, want, got int) *Error {
	return &Error{NodeID: nodeID, Type: ErrorCardinality,
		Message: fmt.Sprintf("operator %q takes %d values, got %d", operator, want, got)}
}

// ErrMissingValue creates an error for a value-taking operator with no value.
func ErrMissingValue(nodeID, operator string) *Error {
	return &Error{NodeID: nodeID, Type: ErrorMissingValue,
		Message: fmt.Sprintf("operator %q requires a value", operator)}
}

// ErrMissingField creates an error for a rule with no field.
func ErrMissingField(nodeID string) *Error {
	return &Error{NodeID: nodeID, Type: ErrorMissingField,
		Message: "rule has no field"}
}

// ErrMissingOperator creates an error for a rule with no operator.
func ErrMissingOperator(nodeID string) *Error {
	return &Error{NodeID: nodeID, Type: ErrorMissingOperator,
		Message: "rule has no operator"}
}

// ErrFuncArgs creates an error for a bad function argument list.
func ErrFuncArgs(nodeID, function, detail string) *Error {
	return &Error{NodeID: nodeID, Type: ErrorFuncArgs,
		Message: fmt.Sprintf("function %q: %s", function, detail)}
}

// ErrEmptyGroup creates an error for a group with no children.
func ErrEmptyGroup(nodeID string) *Error {
	return &Error{NodeID: nodeID, Type: ErrorEmptyGroup,
		Message: "group has no children"}
}

// ErrNestingTooDeep creates an error for nesting beyond the limit.
func ErrNestingTooDeep(nodeID string, max int) *Error {
	return &Error{NodeID: nodeID, Type: ErrorNestingTooDeep,
		Message: fmt.Sprintf("group nesting exceeds maximum depth of %d", max)}
}

// ErrCycle creates an error for a node id reached twice.
func ErrCycle(nodeID string) *Error {
	return &Error{NodeID: nodeID, Type: ErrorCycle,
		Message: fmt.Sprintf("node id %q reached twice", nodeID)}
}

// ErrMalformedTree creates an error for a nil or unrecognized node.
func ErrMalformedTree(nodeID, detail string) *Error {
	return &Error{NodeID: nodeID, Type: ErrorMalformedTree, Message: detail}
}

// ErrRender wraps a failure from a registered render callback.
func ErrRender(nodeID, what string, cause error) *Error {
	return &Error{NodeID: nodeID, Type: ErrorRender,
		Message: fmt.Sprintf("rendering %s: %v", what, cause), Cause: cause}
}
