package tree

import (
	"strconv"
	"strings"
)

// Node is the interface implemented by both tree node kinds.
// Every node carries an id that error reports refer back to.
type Node interface {
	// ID returns the node's identifier, unique within the tree
	ID() string
	// Kind returns the node kind enum value
	Kind() NodeKind
	// String returns a human-readable representation for debugging
	String() string
}

// FieldRef is a marker interface for the left-hand side of a rule.
// A field is a plain column name, a function call over other fields,
// or a reference to another field.
type FieldRef interface {
	fieldRef()
	String() string
}

// Value is a marker interface for the right-hand side of a rule.
// A value is a literal, a function call, a reference to another
// field, or an ordered list of values.
type Value interface {
	valueNode()
	String() string
}

// =============================================================================
// Tree Nodes
// =============================================================================

// GroupNode joins its children with a conjunction. Groups nest to form
// the boolean structure of the tree; the root of every tree is a group.
type GroupNode struct {
	id          string
	Conjunction Conjunction
	Negated     bool
	Children    []Node
}

func (g *GroupNode) ID() string     { return g.id }
func (g *GroupNode) Kind() NodeKind { return KindGroup }
func (g *GroupNode) String() string {
	var b strings.Builder
	b.WriteString("Group{")
	if g.Negated {
		b.WriteString("NOT ")
	}
	b.WriteString(g.Conjunction.String())
	b.WriteString(", children: ")
	b.WriteString(strconv.Itoa(len(g.Children)))
	b.WriteString("}")
	return b.String()
}

// RuleNode is a leaf comparison: a field, an operator, and for most
// operators a value. Value is nil when the operator takes none.
type RuleNode struct {
	id        string
	Field     FieldRef
	Operator  string
	Value     Value
	ValueType TypeTag
	ValueSrc  ValueSource
	Negated   bool
}

func (r *RuleNode) ID() string     { return r.id }
func (r *RuleNode) Kind() NodeKind { return KindRule }
func (r *RuleNode) String() string {
	var b strings.Builder
	b.WriteString("Rule{")
	if r.Negated {
		b.WriteString("NOT ")
	}
	if r.Field != nil {
		b.WriteString(r.Field.String())
	} else {
		b.WriteString("<nil>")
	}
	b.WriteString(" ")
	b.WriteString(r.Operator)
	if r.Value != nil {
		b.WriteString(" ")
		b.WriteString(r.Value.String())
	}
	b.WriteString("}")
	return b.String()
}

// =============================================================================
// Field References
// =============================================================================

// PlainField names a field from the schema directly.
type PlainField struct {
	Name string
}

func (f *PlainField) fieldRef()      {}
func (f *PlainField) String() string { return f.Name }

// FuncCall applies a registered function to named arguments. It can
// stand in field position or value position, and its arguments nest.
type FuncCall struct {
	Func string
	Args []FuncArg
}

// FuncArg is one named argument of a function call. Order is
// preserved so encoding and rendering stay deterministic.
type FuncArg struct {
	Name  string
	Value Value
}

func (f *FuncCall) fieldRef()  {}
func (f *FuncCall) valueNode() {}
func (f *FuncCall) String() string {
	var b strings.Builder
	b.WriteString(f.Func)
	b.WriteString("(")
	for i, arg := range f.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(arg.Name)
		b.WriteString(": ")
		if arg.Value != nil {
			b.WriteString(arg.Value.String())
		} else {
			b.WriteString("<nil>")
		}
	}
	b.WriteString(")")
	return b.String()
}

// FieldReference points at another schema field, used for
// field-to-field comparisons.
type FieldReference struct {
	Name string
	Type TypeTag
}

func (f *FieldReference) fieldRef()      {}
func (f *FieldReference) valueNode()     {}
func (f *FieldReference) String() string { return "@" + f.Name }

// =============================================================================
// Values
// =============================================================================

// StringValue is a textual literal. Type distinguishes plain text from
// date, time, and datetime strings, which render differently.
type StringValue struct {
	Val  string
	Type TypeTag
}

func (v *StringValue) valueNode()     {}
func (v *StringValue) String() string { return strconv.Quote(v.Val) }

// NumberValue is a numeric literal.
type NumberValue struct {
	Val float64
}

func (v *NumberValue) valueNode() {}
func (v *NumberValue) String() string {
	return strconv.FormatFloat(v.Val, 'f', -1, 64)
}

// BoolValue is a boolean literal.
type BoolValue struct {
	Val bool
}

func (v *BoolValue) valueNode()     {}
func (v *BoolValue) String() string { return strconv.FormatBool(v.Val) }

// ListValue is an ordered sequence of values. Two-slot operators such
// as between carry their bounds in a ListValue.
type ListValue struct {
	Items []Value
}

func (v *ListValue) valueNode() {}
func (v *ListValue) String() string {
	var b strings.Builder
	b.WriteString("[")
	for i, item := range v.Items {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(item.String())
	}
	b.WriteString("]")
	return b.String()
}

// =============================================================================
// Helpers
// =============================================================================

// TagOf reports the type tag a value carries by its own shape.
// Function calls return TypeUnspecified; their return type is known
// only to the registry.
func TagOf(v Value) TypeTag {
	switch val := v.(type) {
	case *StringValue:
		if val.Type == TypeUnspecified {
			return TypeText
		}
		return val.Type
	case *NumberValue:
		return TypeNumber
	case *BoolValue:
		return TypeBoolean
	case *FieldReference:
		return val.Type
	case *ListValue:
		if len(val.Items) > 0 {
			return TagOf(val.Items[0])
		}
		return TypeUnspecified
	default:
		return TypeUnspecified
	}
}

// Walk traverses the tree in pre-order, calling fn for each node.
// Returning false from fn stops descent into that node's children.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	if g, ok := n.(*GroupNode); ok {
		for _, child := range g.Children {
			Walk(child, fn)
		}
	}
}

// CountNodes returns the number of nodes in the tree.
func CountNodes(n Node) int {
	count := 0
	Walk(n, func(Node) bool {
		count++
		return true
	})
	return count
}

// Depth returns the deepest group nesting level of the tree, counting
// the root group as level one. Rules do not add a level.
func Depth(n Node) int {
	g, ok := n.(*GroupNode)
	if !ok {
		return 0
	}
	deepest := 0
	for _, child := range g.Children {
		if d := Depth(child); d > deepest {
			deepest = d
		}
	}
	return deepest + 1
}
