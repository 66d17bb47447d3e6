// Package compile turns rule trees into target expressions through a
// registry of operator and function renderings. The compiler is generic
// over the expression type, so SQL fragments, bson documents and eval
// programs share one traversal.
//
// Compilation is fail-fast: the first error aborts and is returned as a
// *Error. Compiling an unvalidated tree is permitted but may surface
// errors that validation would have reported more precisely.
package compile

import (
	"fmt"

	"github.com/ruletree/ruletree/internal/registry"
	"github.com/ruletree/ruletree/internal/schema"
	"github.com/ruletree/ruletree/internal/tree"
)

// DefaultMaxNesting is the group nesting limit used when Options does
// not set one.
const DefaultMaxNesting = 5

// Options controls a compilation pass.
type Options struct {
	// Schema resolves referenced field types when set. Without a
	// schema, fields compile with their declared types and unknown
	// names pass through unchecked.
	Schema *schema.Schema
	// MaxNesting caps group nesting depth; zero means DefaultMaxNesting.
	MaxNesting int
	// ReverseOperators pushes rule-level negation down into the
	// operator's registered reversal instead of wrapping the rendered
	// expression in the target's negation syntax.
	ReverseOperators bool
	// CanLeaveEmptyGroup renders empty groups as the target's neutral
	// true expression instead of failing.
	CanLeaveEmptyGroup bool
}

func (o Options) maxNesting() int {
	if o.MaxNesting <= 0 {
		return DefaultMaxNesting
	}
	return o.MaxNesting
}

// Compiler compiles rule trees against one registry. A Compiler holds
// no per-pass state and is safe to reuse across compilations.
type Compiler[E any] struct {
	reg   *registry.Registry[E]
	prims registry.Primitives[E]
	opts  Options
}

// New creates a Compiler over the given registry.
func New[E any](reg *registry.Registry[E], opts Options) *Compiler[E] {
	return &Compiler[E]{reg: reg, prims: reg.Primitives(), opts: opts}
}

// Compile is a convenience for New(reg, opts).Compile(root).
func Compile[E any](root tree.Node, reg *registry.Registry[E], opts Options) (E, error) {
	return New(reg, opts).Compile(root)
}

// Compile renders the tree rooted at root into a target expression.
func (c *Compiler[E]) Compile(root tree.Node) (E, error) {
	var zero E
	if root == nil {
		return zero, ErrMalformedTree("", "empty tree")
	}
	return c.node(root, 1, make(map[string]bool))
}

func (c *Compiler[E]) node(n tree.Node, depth int, seen map[string]bool) (E, error) {
	var zero E
	if n == nil {
		return zero, ErrMalformedTree("", "nil node")
	}
	if id := n.ID(); id != "" {
		if seen[id] {
			return zero, ErrCycle(id)
		}
		seen[id] = true
	}

	switch node := n.(type) {
	case *tree.GroupNode:
		return c.group(node, depth, seen)
	case *tree.RuleNode:
		return c.rule(node)
	default:
		return zero, ErrMalformedTree(n.ID(), fmt.Sprintf("unsupported node type %T", n))
	}
}

// group compiles children recursively and joins them with the group's
// conjunction. Parentheses are requested when the group has more than
// one child or is negated; single-child non-negated groups stay bare.
func (c *Compiler[E]) group(g *tree.GroupNode, depth int, seen map[string]bool) (E, error) {
	var zero E
	if max := c.opts.maxNesting(); depth > max {
		return zero, ErrNestingTooDeep(g.ID(), max)
	}
	if len(g.Children) == 0 {
		if c.opts.CanLeaveEmptyGroup {
			// Neutral element; negation does not apply to it.
			return c.prims.True(), nil
		}
		return zero, ErrEmptyGroup(g.ID())
	}

	children := make([]E, 0, len(g.Children))
	for _, child := range g.Children {
		childDepth := depth
		if child != nil && child.Kind() == tree.KindGroup {
			childDepth = depth + 1
		}
		expr, err := c.node(child, childDepth, seen)
		if err != nil {
			return zero, err
		}
		children = append(children, expr)
	}

	parens := len(children) > 1 || g.Negated
	expr, err := c.prims.Group(g.Conjunction, children, parens)
	if err != nil {
		return zero, wrapRender(g.ID(), "group", err)
	}
	if g.Negated {
		if expr, err = c.prims.Not(expr); err != nil {
			return zero, wrapRender(g.ID(), "negation", err)
		}
	}
	return expr, nil
}

// rule renders one rule through its operator spec. A negated rule is
// rewritten to the operator's registered reversal under the
// ReverseOperators policy; without a usable reversal it falls back to
// the target's negation syntax.
func (c *Compiler[E]) rule(r *tree.RuleNode) (E, error) {
	var zero E
	if r.Field == nil {
		return zero, ErrMissingField(r.ID())
	}
	if r.Operator == "" {
		return zero, ErrMissingOperator(r.ID())
	}
	spec, ok := c.reg.Operator(r.Operator)
	if !ok {
		return zero, ErrUnknownOperator(r.ID(), r.Operator)
	}

	negate := r.Negated
	if negate && c.opts.ReverseOperators && spec.Reverse != "" {
		if rev, found := c.reg.Operator(spec.Reverse); found {
			spec = rev
			negate = false
		}
	}

	fieldExpr, fieldType, err := c.fieldRef(r.ID(), r.Field)
	if err != nil {
		return zero, err
	}

	var values []E
	switch {
	case !spec.TakesValue():
		// is_null and friends; an attached value is ignored.
	case r.Value == nil:
		return zero, ErrMissingValue(r.ID(), spec.Name)
	case spec.Cardinality == 2:
		list, isList := r.Value.(*tree.ListValue)
		if !isList {
			return zero, ErrCardinality(r.ID(), spec.Name, spec.Cardinality, 1)
		}
		if len(list.Items) != spec.Cardinality {
			return zero, ErrCardinality(r.ID(), spec.Name, spec.Cardinality, len(list.Items))
		}
		for _, item := range list.Items {
			expr, err := c.value(r.ID(), item, fieldType)
			if err != nil {
				return zero, err
			}
			values = append(values, expr)
		}
	default:
		expr, err := c.value(r.ID(), r.Value, fieldType)
		if err != nil {
			return zero, err
		}
		values = []E{expr}
	}

	expr, err := spec.Render(fieldExpr, values)
	if err != nil {
		return zero, wrapRender(r.ID(), "operator "+spec.Name, err)
	}
	if negate {
		if expr, err = c.prims.Not(expr); err != nil {
			return zero, wrapRender(r.ID(), "negation", err)
		}
	}
	return expr, nil
}

// fieldRef renders the rule's field position, which may itself be a
// function call over other fields.
func (c *Compiler[E]) fieldRef(nodeID string, f tree.FieldRef) (E, tree.TypeTag, error) {
	var zero E
	switch field := f.(type) {
	case *tree.PlainField:
		return c.namedField(nodeID, field.Name, tree.TypeUnspecified)
	case *tree.FieldReference:
		return c.namedField(nodeID, field.Name, field.Type)
	case *tree.FuncCall:
		return c.funcCall(nodeID, field)
	default:
		return zero, tree.TypeUnspecified, ErrMissingField(nodeID)
	}
}

func (c *Compiler[E]) namedField(nodeID, name string, declared tree.TypeTag) (E, tree.TypeTag, error) {
	var zero E
	t, err := c.fieldType(nodeID, name, declared)
	if err != nil {
		return zero, tree.TypeUnspecified, err
	}
	expr, err := c.prims.Field(name, t)
	if err != nil {
		return zero, t, wrapRender(nodeID, "field "+name, err)
	}
	return expr, t, nil
}

// fieldType resolves a referenced field's type, preferring the schema
// when one is configured.
func (c *Compiler[E]) fieldType(nodeID, name string, declared tree.TypeTag) (tree.TypeTag, error) {
	if c.opts.Schema == nil {
		return declared, nil
	}
	sf, ok := c.opts.Schema.Field(name)
	if !ok {
		return tree.TypeUnspecified, ErrUnknownField(nodeID, name)
	}
	return sf.Type, nil
}

// value renders one value slot, checking its type against the type it
// is compared to when both sides are known.
func (c *Compiler[E]) value(nodeID string, v tree.Value, want tree.TypeTag) (E, error) {
	var zero E
	switch value := v.(type) {
	case *tree.FieldReference:
		expr, t, err := c.namedField(nodeID, value.Name, value.Type)
		if err != nil {
			return zero, err
		}
		if err := checkType(nodeID, want, t); err != nil {
			return zero, err
		}
		return expr, nil

	case *tree.FuncCall:
		expr, ret, err := c.funcCall(nodeID, value)
		if err != nil {
			return zero, err
		}
		if err := checkType(nodeID, want, ret); err != nil {
			return zero, err
		}
		return expr, nil

	case *tree.ListValue:
		items := make([]E, 0, len(value.Items))
		for _, item := range value.Items {
			expr, err := c.value(nodeID, item, want)
			if err != nil {
				return zero, err
			}
			items = append(items, expr)
		}
		expr, err := c.prims.List(items)
		if err != nil {
			return zero, wrapRender(nodeID, "list value", err)
		}
		return expr, nil

	default:
		if err := checkType(nodeID, want, tree.TagOf(v)); err != nil {
			return zero, err
		}
		expr, err := c.prims.Literal(v)
		if err != nil {
			return zero, wrapRender(nodeID, "literal", err)
		}
		return expr, nil
	}
}

// funcCall renders a function call with arguments mapped by name in the
// registry's declared order, regardless of document order.
func (c *Compiler[E]) funcCall(nodeID string, call *tree.FuncCall) (E, tree.TypeTag, error) {
	var zero E
	spec, ok := c.reg.Func(call.Func)
	if !ok {
		return zero, tree.TypeUnspecified, ErrUnknownFunction(nodeID, call.Func)
	}

	byName := make(map[string]tree.Value, len(call.Args))
	for _, arg := range call.Args {
		if _, dup := byName[arg.Name]; dup {
			return zero, tree.TypeUnspecified,
				ErrFuncArgs(nodeID, call.Func, fmt.Sprintf("argument %q supplied twice", arg.Name))
		}
		byName[arg.Name] = arg.Value
	}

	declared := make(map[string]bool, len(spec.Args))
	for _, decl := range spec.Args {
		declared[decl.Name] = true
	}
	for _, arg := range call.Args {
		if !declared[arg.Name] {
			return zero, tree.TypeUnspecified,
				ErrFuncArgs(nodeID, call.Func, fmt.Sprintf("unexpected argument %q", arg.Name))
		}
	}

	args := make([]E, 0, len(spec.Args))
	for _, decl := range spec.Args {
		v, provided := byName[decl.Name]
		if !provided {
			return zero, tree.TypeUnspecified,
				ErrFuncArgs(nodeID, call.Func, fmt.Sprintf("missing argument %q", decl.Name))
		}
		if v == nil {
			return zero, tree.TypeUnspecified,
				ErrFuncArgs(nodeID, call.Func, fmt.Sprintf("argument %q has no value", decl.Name))
		}
		expr, err := c.value(nodeID, v, decl.Type)
		if err != nil {
			return zero, tree.TypeUnspecified, err
		}
		args = append(args, expr)
	}

	expr, err := spec.Render(args)
	if err != nil {
		return zero, tree.TypeUnspecified, wrapRender(nodeID, "function "+call.Func, err)
	}
	return expr, spec.ReturnType, nil
}

func checkType(nodeID string, want, got tree.TypeTag) error {
	if want == tree.TypeUnspecified || got == tree.TypeUnspecified {
		return nil
	}
	if want != got {
		return ErrTypeMismatch(nodeID, want.String(), got.String())
	}
	return nil
}

// wrapRender passes through compile errors from render callbacks and
// wraps anything else with the originating node id.
func wrapRender(nodeID, what string, err error) error {
	if ce, ok := AsError(err); ok {
		return ce
	}
	return ErrRender(nodeID, what, err)
}
