package tree

import "github.com/google/uuid"

// Builder constructors for assembling trees programmatically. Each
// node gets a fresh uuid; use the *WithID variants to pin ids, for
// example when round-tripping a decoded document.

// NewGroup creates a group node with a generated id.
func NewGroup(conj Conjunction, children ...Node) *GroupNode {
	return NewGroupWithID(uuid.NewString(), conj, children...)
}

// NewGroupWithID creates a group node with the given id.
func NewGroupWithID(id string, conj Conjunction, children ...Node) *GroupNode {
	return &GroupNode{
		id:          id,
		Conjunction: conj,
		Children:    children,
	}
}

// NewRule creates a rule node with a generated id. The value may be
// nil for operators that take none.
func NewRule(field FieldRef, operator string, value Value) *RuleNode {
	return NewRuleWithID(uuid.NewString(), field, operator, value)
}

// NewRuleWithID creates a rule node with the given id.
func NewRuleWithID(id string, field FieldRef, operator string, value Value) *RuleNode {
	r := &RuleNode{
		id:       id,
		Field:    field,
		Operator: operator,
		Value:    value,
	}
	if value != nil {
		r.ValueType = TagOf(value)
		r.ValueSrc = SourceOf(value)
	}
	return r
}

// SourceOf reports the value source a value represents by its shape.
func SourceOf(v Value) ValueSource {
	switch v.(type) {
	case *FieldReference:
		return SourceField
	case *FuncCall:
		return SourceFunc
	default:
		return SourceValue
	}
}

// Negate returns a copy of the node with its negated flag flipped.
// The original node is left untouched; children are shared.
func Negate(n Node) Node {
	switch node := n.(type) {
	case *GroupNode:
		clone := *node
		clone.Negated = !node.Negated
		return &clone
	case *RuleNode:
		clone := *node
		clone.Negated = !node.Negated
		return &clone
	default:
		return n
	}
}

// Field creates a plain field reference.
func Field(name string) *PlainField {
	return &PlainField{Name: name}
}

// FieldRefValue creates a reference to another field, usable on either
// side of a rule.
func FieldRefValue(name string, t TypeTag) *FieldReference {
	return &FieldReference{Name: name, Type: t}
}

// Func creates a function call from ordered named arguments.
func Func(name string, args ...FuncArg) *FuncCall {
	return &FuncCall{Func: name, Args: args}
}

// Arg pairs an argument name with its value.
func Arg(name string, v Value) FuncArg {
	return FuncArg{Name: name, Value: v}
}

// Text creates a text literal.
func Text(s string) *StringValue {
	return &StringValue{Val: s, Type: TypeText}
}

// Date creates a date literal from its wire representation.
func Date(s string) *StringValue {
	return &StringValue{Val: s, Type: TypeDate}
}

// Time creates a time-of-day literal from its wire representation.
func Time(s string) *StringValue {
	return &StringValue{Val: s, Type: TypeTime}
}

// DateTime creates a datetime literal from its wire representation.
func DateTime(s string) *StringValue {
	return &StringValue{Val: s, Type: TypeDateTime}
}

// Number creates a numeric literal.
func Number(f float64) *NumberValue {
	return &NumberValue{Val: f}
}

// Bool creates a boolean literal.
func Bool(b bool) *BoolValue {
	return &BoolValue{Val: b}
}

// List creates an ordered list of values.
func List(items ...Value) *ListValue {
	return &ListValue{Items: items}
}
