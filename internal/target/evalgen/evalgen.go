// Package evalgen renders rule trees to expr source programs and
// evaluates them in process. The compiled expression is a string;
// Compile turns it into a Predicate running on the expr VM against
// rows of map[string]any. The target backs tests, the evaluate API
// and batch filtering without a database roundtrip.
package evalgen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/ruletree/ruletree/internal/tree"
)

// Predicate is a compiled program ready to run against rows.
type Predicate struct {
	src     string
	program *vm.Program
}

// Compile turns a rendered program into a runnable predicate.
// Undefined row fields evaluate as nil, so null checks work on
// sparse rows.
func Compile(src string) (*Predicate, error) {
	program, err := expr.Compile(src, expr.AllowUndefinedVariables(), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compiling eval program: %w", err)
	}
	return &Predicate{src: src, program: program}, nil
}

// Source returns the program text the predicate was compiled from.
func (p *Predicate) Source() string { return p.src }

// Eval runs the predicate against one row.
func (p *Predicate) Eval(row map[string]any) (bool, error) {
	out, err := vm.Run(p.program, row)
	if err != nil {
		return false, fmt.Errorf("evaluating row: %w", err)
	}
	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("program returned %T, want bool", out)
	}
	return result, nil
}

// EvalRows runs the predicate against each row, preserving order.
func (p *Predicate) EvalRows(rows []map[string]any) ([]bool, error) {
	results := make([]bool, len(rows))
	for i, row := range rows {
		ok, err := p.Eval(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		results[i] = ok
	}
	return results, nil
}

// =============================================================================
// Source rendering helpers
// =============================================================================

// reservedWords are expr keywords and literals a bare identifier must
// not collide with.
var reservedWords = map[string]bool{
	"and": true, "or": true, "not": true, "in": true, "contains": true,
	"matches": true, "startsWith": true, "endsWith": true, "let": true,
	"if": true, "else": true, "nil": true, "true": true, "false": true,
}

// identifier renders a field path for the program. Every dotted part
// must be a plain name; expr has no quoting form for arbitrary keys,
// so anything else is a render error.
func identifier(name string) (string, error) {
	for _, part := range strings.Split(name, ".") {
		if !plainIdent(part) || reservedWords[part] {
			return "", fmt.Errorf("field %q is not addressable in an eval program", name)
		}
	}
	return name, nil
}

func plainIdent(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// literal renders a value as program source. Strings keep expr's
// double-quoted escaping; date, time and datetime stay strings and
// compare lexicographically in their wire formats.
func literal(v tree.Value) (string, error) {
	switch val := v.(type) {
	case *tree.StringValue:
		return strconv.Quote(val.Val), nil
	case *tree.NumberValue:
		return strconv.FormatFloat(val.Val, 'f', -1, 64), nil
	case *tree.BoolValue:
		return strconv.FormatBool(val.Val), nil
	default:
		return "", fmt.Errorf("cannot render %T as a program literal", v)
	}
}

// isParenthesized reports whether the whole program text is wrapped in
// one pair of parens. String literals containing parens only make
// this report false and cost a redundant extra pair.
func isParenthesized(s string) bool {
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return false
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && i != len(s)-1 {
				return false
			}
		}
	}
	return depth == 0
}
