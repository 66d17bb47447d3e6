// Package tree defines the rule-tree grammar model emitted by visual
// query builders: groups joined by a conjunction, rules comparing a
// field against values, and function calls that may appear on either
// side of a comparison.
package tree

import "fmt"

// NodeKind identifies the concrete type of a tree node.
type NodeKind int

const (
	KindGroup NodeKind = iota
	KindRule
)

// String returns a string representation of the NodeKind.
func (k NodeKind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindRule:
		return "rule"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// Conjunction is the logical combinator joining a group's children.
type Conjunction int

const (
	ConjunctionAnd Conjunction = iota
	ConjunctionOr
)

// String returns the canonical wire spelling of the conjunction.
func (c Conjunction) String() string {
	switch c {
	case ConjunctionAnd:
		return "AND"
	case ConjunctionOr:
		return "OR"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// ParseConjunction parses the wire spelling of a conjunction.
// The empty string parses to ConjunctionAnd, the documented default.
func ParseConjunction(s string) (Conjunction, error) {
	switch s {
	case "", "AND":
		return ConjunctionAnd, nil
	case "OR":
		return ConjunctionOr, nil
	default:
		return ConjunctionAnd, fmt.Errorf("unknown conjunction %q", s)
	}
}

// TypeTag is the declared type of a field or value.
type TypeTag int

const (
	// TypeUnspecified marks an absent type tag. Values carrying it are
	// typed by their syntactic shape or by the registry at compile time.
	TypeUnspecified TypeTag = iota
	TypeText
	TypeNumber
	TypeBoolean
	TypeDate
	TypeTime
	TypeDateTime
)

var typeTagNames = map[TypeTag]string{
	TypeUnspecified: "",
	TypeText:        "text",
	TypeNumber:      "number",
	TypeBoolean:     "boolean",
	TypeDate:        "date",
	TypeTime:        "time",
	TypeDateTime:    "datetime",
}

// String returns the wire spelling of the type tag.
func (t TypeTag) String() string {
	if name, ok := typeTagNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", int(t))
}

// ParseTypeTag parses the wire spelling of a type tag.
// The empty string parses to TypeUnspecified.
func ParseTypeTag(s string) (TypeTag, error) {
	switch s {
	case "":
		return TypeUnspecified, nil
	case "text":
		return TypeText, nil
	case "number":
		return TypeNumber, nil
	case "boolean":
		return TypeBoolean, nil
	case "date":
		return TypeDate, nil
	case "time":
		return TypeTime, nil
	case "datetime":
		return TypeDateTime, nil
	default:
		return TypeUnspecified, fmt.Errorf("unknown value type %q", s)
	}
}

// ValueSource records where a rule's value slot comes from.
type ValueSource int

const (
	SourceValue ValueSource = iota // literal value
	SourceField                    // reference to another field
	SourceFunc                     // function call
)

// String returns the wire spelling of the value source.
func (s ValueSource) String() string {
	switch s {
	case SourceValue:
		return "value"
	case SourceField:
		return "field"
	case SourceFunc:
		return "func"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// ParseValueSource parses the wire spelling of a value source.
// The empty string parses to SourceValue, the documented default.
func ParseValueSource(s string) (ValueSource, error) {
	switch s {
	case "", "value":
		return SourceValue, nil
	case "field":
		return SourceField, nil
	case "func":
		return SourceFunc, nil
	default:
		return SourceValue, fmt.Errorf("unknown value source %q", s)
	}
}
