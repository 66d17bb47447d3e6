// Package ruleql provides a Participle-based parser for the textual
// rule language, so rules can be authored without the GUI:
//
//	AGE >= 18 AND (name LIKE "Den%" OR NOT is_promoted)
//	LOWER(login) == "root" OR score BETWEEN 10 AND 20
//
// Precedence is NOT over AND over OR; parentheses group. The parser
// produces grammar-model trees with generated node ids, so parsed
// text validates and compiles exactly like a decoded GUI document.
package ruleql

import (
	"fmt"
	"strconv"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/ruletree/ruletree/internal/registry"
	"github.com/ruletree/ruletree/internal/schema"
	"github.com/ruletree/ruletree/internal/tree"
)

// =============================================================================
// Lexer Definition
// =============================================================================

var ruleqlLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{Name: "whitespace", Pattern: `\s+`, Action: nil},

		// Keywords must come before Ident. Case-insensitive, the way
		// SQL import dialects spell them.
		{Name: "And", Pattern: `(?i)\bAND\b`, Action: nil},
		{Name: "Or", Pattern: `(?i)\bOR\b`, Action: nil},
		{Name: "Not", Pattern: `(?i)\bNOT\b`, Action: nil},
		{Name: "Like", Pattern: `(?i)\bLIKE\b`, Action: nil},
		{Name: "Between", Pattern: `(?i)\bBETWEEN\b`, Action: nil},
		{Name: "Is", Pattern: `(?i)\bIS\b`, Action: nil},
		{Name: "Null", Pattern: `(?i)\bNULL\b`, Action: nil},
		{Name: "Empty", Pattern: `(?i)\bEMPTY\b`, Action: nil},
		{Name: "Starts", Pattern: `(?i)\bSTARTS\b`, Action: nil},
		{Name: "Ends", Pattern: `(?i)\bENDS\b`, Action: nil},
		{Name: "With", Pattern: `(?i)\bWITH\b`, Action: nil},
		{Name: "True", Pattern: `(?i)\bTRUE\b`, Action: nil},
		{Name: "False", Pattern: `(?i)\bFALSE\b`, Action: nil},

		// Literals
		{Name: "Number", Pattern: `-?[0-9]+(\.[0-9]+)?`, Action: nil},
		{Name: "String", Pattern: `"([^"\\]|\\.)*"`, Action: nil},

		// Identifiers
		{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`, Action: nil},

		// Operators and punctuation. Longer symbols first so <= never
		// lexes as < followed by =.
		{Name: "Eq", Pattern: `==|=`, Action: nil},
		{Name: "Neq", Pattern: `!=|<>`, Action: nil},
		{Name: "Lte", Pattern: `<=`, Action: nil},
		{Name: "Gte", Pattern: `>=`, Action: nil},
		{Name: "Lt", Pattern: `<`, Action: nil},
		{Name: "Gt", Pattern: `>`, Action: nil},
		{Name: "LParen", Pattern: `\(`, Action: nil},
		{Name: "RParen", Pattern: `\)`, Action: nil},
		{Name: "Comma", Pattern: `,`, Action: nil},
		{Name: "Colon", Pattern: `:`, Action: nil},
		{Name: "Dot", Pattern: `\.`, Action: nil},
	},
})

// =============================================================================
// Participle Grammar Structs (Intermediate Representation)
// =============================================================================

// pExpression is the Participle grammar for an OR chain.
type pExpression struct {
	Pos lexer.Position
	Or  []*pAndExpr `parser:"@@ ( Or @@ )*"`
}

// pAndExpr is the Participle grammar for an AND chain.
type pAndExpr struct {
	Pos   lexer.Position
	Terms []*pUnary `parser:"@@ ( And @@ )*"`
}

// pUnary is the Participle grammar for an optionally negated term.
type pUnary struct {
	Pos  lexer.Position
	Not  *pUnary `parser:"  Not @@"`
	Term *pTerm  `parser:"| @@"`
}

// pTerm is the Participle grammar for a parenthesized expression or a
// single rule.
type pTerm struct {
	Pos     lexer.Position
	Grouped *pExpression `parser:"  LParen @@ RParen"`
	Rule    *pRule       `parser:"| @@"`
}

// pRule is the Participle grammar for one comparison. A missing tail
// is the bare boolean shorthand: `is_promoted` means equal true.
type pRule struct {
	Pos     lexer.Position
	Operand *pOperand `parser:"@@"`
	Tail    *pOpTail  `parser:"@@?"`
}

// pOperand is the Participle grammar for a rule's field position.
type pOperand struct {
	Pos  lexer.Position
	Func *pFuncCall `parser:"  @@"`
	Path string     `parser:"| @Ident ( @Dot @Ident )*"`
}

// pOpTail is the Participle grammar for the operator and value part of
// a rule. Longer keyword runs come first so IS NOT NULL never parses
// as IS NULL with trailing tokens.
type pOpTail struct {
	Pos        lexer.Position
	IsNotNull  bool      `parser:"  @(Is Not Null)"`
	IsNull     bool      `parser:"| @(Is Null)"`
	IsNotEmpty bool      `parser:"| @(Is Not Empty)"`
	IsEmpty    bool      `parser:"| @(Is Empty)"`
	NotBetween *pRange   `parser:"| Not Between @@"`
	Between    *pRange   `parser:"| Between @@"`
	NotLike    *pValue   `parser:"| Not Like @@"`
	Like       *pValue   `parser:"| Like @@"`
	StartsWith *pValue   `parser:"| Starts With @@"`
	EndsWith   *pValue   `parser:"| Ends With @@"`
	Compare    *pCompare `parser:"| @@"`
}

// pCompare is the Participle grammar for a symbolic comparison.
type pCompare struct {
	Pos   lexer.Position
	Op    string  `parser:"@(Eq | Neq | Lte | Gte | Lt | Gt)"`
	Value *pValue `parser:"@@"`
}

// pRange is the Participle grammar for BETWEEN bounds. The AND here
// belongs to the range, not to the conjunction level.
type pRange struct {
	Pos  lexer.Position
	Low  *pValue `parser:"@@"`
	High *pValue `parser:"And @@"`
}

// pValue is the Participle grammar for a rule value: a literal, a
// function call, or a reference to another field.
type pValue struct {
	Pos    lexer.Position
	String *string    `parser:"  @String"`
	Number *string    `parser:"| @Number"`
	True   bool       `parser:"| @True"`
	False  bool       `parser:"| @False"`
	Func   *pFuncCall `parser:"| @@"`
	Field  string     `parser:"| @Ident ( @Dot @Ident )*"`
}

// pFuncCall is the Participle grammar for a function call. Arguments
// are named with a colon or positional.
type pFuncCall struct {
	Pos  lexer.Position
	Name string      `parser:"@Ident LParen"`
	Args []*pFuncArg `parser:"( @@ ( Comma @@ )* )? RParen"`
}

// pFuncArg is the Participle grammar for one function argument.
type pFuncArg struct {
	Pos   lexer.Position
	Name  string  `parser:"( @Ident Colon )?"`
	Value *pValue `parser:"@@"`
}

// =============================================================================
// Parser Instance
// =============================================================================

var parserInstance = participle.MustBuild[pExpression](
	participle.Lexer(ruleqlLexer),
	participle.Elide("whitespace"),
	participle.UseLookahead(3),
)

// =============================================================================
// Public API
// =============================================================================

// Parse parses a RuleQL expression into a rule tree. The result is
// always group-rooted so it validates like a decoded GUI document.
func Parse(input string) (*tree.GroupNode, error) {
	parsed, err := parserInstance.ParseString("", input)
	if err != nil {
		return nil, err
	}
	node, err := convertExpression(parsed)
	if err != nil {
		return nil, err
	}
	if g, ok := node.(*tree.GroupNode); ok {
		return g, nil
	}
	return tree.NewGroup(tree.ConjunctionAnd, node), nil
}

// ParseWithSchema parses and then retypes text literals compared to
// date, time and datetime fields, so imported text validates the same
// as a GUI document that carried explicit value types.
func ParseWithSchema(input string, sc *schema.Schema) (*tree.GroupNode, error) {
	root, err := Parse(input)
	if err != nil {
		return nil, err
	}
	if sc != nil {
		retypeTemporals(root, sc)
	}
	return root, nil
}

// =============================================================================
// Conversion Helpers (Participle IR -> tree)
// =============================================================================

func convertExpression(p *pExpression) (tree.Node, error) {
	if len(p.Or) == 1 {
		return convertAnd(p.Or[0])
	}
	children := make([]tree.Node, 0, len(p.Or))
	for _, alt := range p.Or {
		child, err := convertAnd(alt)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return tree.NewGroup(tree.ConjunctionOr, children...), nil
}

func convertAnd(p *pAndExpr) (tree.Node, error) {
	if len(p.Terms) == 1 {
		return convertUnary(p.Terms[0])
	}
	children := make([]tree.Node, 0, len(p.Terms))
	for _, term := range p.Terms {
		child, err := convertUnary(term)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return tree.NewGroup(tree.ConjunctionAnd, children...), nil
}

func convertUnary(p *pUnary) (tree.Node, error) {
	if p.Not != nil {
		inner, err := convertUnary(p.Not)
		if err != nil {
			return nil, err
		}
		return tree.Negate(inner), nil
	}
	return convertTerm(p.Term)
}

func convertTerm(p *pTerm) (tree.Node, error) {
	if p.Grouped != nil {
		return convertExpression(p.Grouped)
	}
	return convertRule(p.Rule)
}

func convertRule(p *pRule) (tree.Node, error) {
	field, err := convertOperand(p.Operand)
	if err != nil {
		return nil, err
	}
	if p.Tail == nil {
		// Bare boolean operand, the GUI's checkbox shorthand.
		return tree.NewRule(field, registry.OpEqual, tree.Bool(true)), nil
	}
	t := p.Tail
	switch {
	case t.IsNotNull:
		return tree.NewRule(field, registry.OpIsNotNull, nil), nil
	case t.IsNull:
		return tree.NewRule(field, registry.OpIsNull, nil), nil
	case t.IsNotEmpty:
		return tree.NewRule(field, registry.OpIsNotEmpty, nil), nil
	case t.IsEmpty:
		return tree.NewRule(field, registry.OpIsEmpty, nil), nil
	case t.NotBetween != nil:
		return rangeRule(field, registry.OpNotBetween, t.NotBetween)
	case t.Between != nil:
		return rangeRule(field, registry.OpBetween, t.Between)
	case t.NotLike != nil:
		return valueRule(field, registry.OpNotLike, t.NotLike)
	case t.Like != nil:
		return valueRule(field, registry.OpLike, t.Like)
	case t.StartsWith != nil:
		return valueRule(field, registry.OpStartsWith, t.StartsWith)
	case t.EndsWith != nil:
		return valueRule(field, registry.OpEndsWith, t.EndsWith)
	case t.Compare != nil:
		op, err := compareOp(t.Compare.Op)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t.Compare.Pos, err)
		}
		return valueRule(field, op, t.Compare.Value)
	default:
		return nil, fmt.Errorf("%s: rule has no operator", p.Pos)
	}
}

func valueRule(field tree.FieldRef, operator string, v *pValue) (tree.Node, error) {
	value, err := convertValue(v)
	if err != nil {
		return nil, err
	}
	return tree.NewRule(field, operator, value), nil
}

func rangeRule(field tree.FieldRef, operator string, r *pRange) (tree.Node, error) {
	low, err := convertValue(r.Low)
	if err != nil {
		return nil, err
	}
	high, err := convertValue(r.High)
	if err != nil {
		return nil, err
	}
	return tree.NewRule(field, operator, tree.List(low, high)), nil
}

func convertOperand(p *pOperand) (tree.FieldRef, error) {
	if p.Func != nil {
		return convertFunc(p.Func)
	}
	return tree.Field(p.Path), nil
}

func convertValue(p *pValue) (tree.Value, error) {
	switch {
	case p.String != nil:
		s, err := strconv.Unquote(*p.String)
		if err != nil {
			return nil, fmt.Errorf("%s: bad string literal %s: %w", p.Pos, *p.String, err)
		}
		return tree.Text(s), nil
	case p.Number != nil:
		f, err := strconv.ParseFloat(*p.Number, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: bad number literal %q: %w", p.Pos, *p.Number, err)
		}
		return tree.Number(f), nil
	case p.True:
		return tree.Bool(true), nil
	case p.False:
		return tree.Bool(false), nil
	case p.Func != nil:
		return convertFunc(p.Func)
	case p.Field != "":
		return tree.FieldRefValue(p.Field, tree.TypeUnspecified), nil
	default:
		return nil, fmt.Errorf("%s: empty value", p.Pos)
	}
}

// convertFunc maps positional arguments onto the builtin declaration
// order; functions outside the builtin set need named arguments
// because the parser has nothing to resolve positions against.
func convertFunc(p *pFuncCall) (*tree.FuncCall, error) {
	named := false
	positional := false
	for _, a := range p.Args {
		if a.Name != "" {
			named = true
		} else {
			positional = true
		}
	}
	if named && positional {
		return nil, fmt.Errorf("%s: function %s mixes named and positional arguments", p.Pos, p.Name)
	}

	args := make([]tree.FuncArg, 0, len(p.Args))
	if positional {
		info, ok := registry.BaseFunc(p.Name)
		if !ok {
			return nil, fmt.Errorf("%s: function %s is not builtin, use named arguments", p.Pos, p.Name)
		}
		if len(p.Args) > len(info.Args) {
			return nil, fmt.Errorf("%s: function %s takes %d arguments, got %d",
				p.Pos, p.Name, len(info.Args), len(p.Args))
		}
		for i, a := range p.Args {
			v, err := convertValue(a.Value)
			if err != nil {
				return nil, err
			}
			args = append(args, tree.Arg(info.Args[i].Name, v))
		}
	} else {
		for _, a := range p.Args {
			v, err := convertValue(a.Value)
			if err != nil {
				return nil, err
			}
			args = append(args, tree.Arg(a.Name, v))
		}
	}
	return tree.Func(p.Name, args...), nil
}

func compareOp(symbol string) (string, error) {
	switch symbol {
	case "=", "==":
		return registry.OpEqual, nil
	case "!=", "<>":
		return registry.OpNotEqual, nil
	case "<":
		return registry.OpLess, nil
	case "<=":
		return registry.OpLessOrEqual, nil
	case ">":
		return registry.OpGreater, nil
	case ">=":
		return registry.OpGreaterOrEqual, nil
	default:
		return "", fmt.Errorf("unknown comparison %q", symbol)
	}
}

// =============================================================================
// Schema-aware retyping
// =============================================================================

func retypeTemporals(root tree.Node, sc *schema.Schema) {
	tree.Walk(root, func(n tree.Node) bool {
		r, ok := n.(*tree.RuleNode)
		if !ok {
			return true
		}
		pf, ok := r.Field.(*tree.PlainField)
		if !ok {
			return true
		}
		ft := sc.TypeOf(pf.Name)
		switch ft {
		case tree.TypeDate, tree.TypeTime, tree.TypeDateTime:
		default:
			return true
		}
		retypeValue(r.Value, ft)
		if r.Value != nil {
			r.ValueType = tree.TagOf(r.Value)
		}
		return true
	})
}

func retypeValue(v tree.Value, t tree.TypeTag) {
	switch val := v.(type) {
	case *tree.StringValue:
		if val.Type == tree.TypeText {
			val.Type = t
		}
	case *tree.ListValue:
		for _, item := range val.Items {
			retypeValue(item, t)
		}
	}
}
