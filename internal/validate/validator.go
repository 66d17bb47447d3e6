package validate

import (
	"fmt"

	"github.com/ruletree/ruletree/internal/registry"
	"github.com/ruletree/ruletree/internal/schema"
	"github.com/ruletree/ruletree/internal/tree"
)

// DefaultMaxNesting is the group nesting limit applied when the
// configuration leaves it unset.
const DefaultMaxNesting = 5

// Config carries the validation policy. The zero value is the default
// policy: nesting capped at DefaultMaxNesting, empty groups rejected.
type Config struct {
	// MaxNesting caps group nesting depth; zero or negative selects
	// DefaultMaxNesting.
	MaxNesting int
	// CanLeaveEmptyGroup permits groups without children.
	CanLeaveEmptyGroup bool
}

func (c Config) maxNesting() int {
	if c.MaxNesting <= 0 {
		return DefaultMaxNesting
	}
	return c.MaxNesting
}

// Validator checks trees against a field schema and a registry
// catalog. A Validator is not safe for concurrent use; create one per
// validation pass.
type Validator struct {
	schema  *schema.Schema
	catalog registry.Catalog
	cfg     Config

	errors *Errors
	seen   map[string]bool
}

// New creates a validator over the given schema and catalog.
func New(s *schema.Schema, catalog registry.Catalog, cfg Config) *Validator {
	return &Validator{schema: s, catalog: catalog, cfg: cfg}
}

// Validate checks the whole tree and returns nil or an *Errors
// aggregate carrying every finding, each tagged with its node id.
func (v *Validator) Validate(root tree.Node) error {
	v.errors = &Errors{}
	v.seen = make(map[string]bool)

	if root == nil {
		v.errors.Add(errRootNotGroup("", "nothing"))
		return v.errors
	}
	if root.Kind() != tree.KindGroup {
		v.errors.Add(errRootNotGroup(root.ID(), root.Kind().String()))
	}
	v.node(root, 1)

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

func (v *Validator) node(n tree.Node, depth int) {
	if v.seen[n.ID()] {
		v.errors.Add(errDuplicateID(n.ID()))
	}
	v.seen[n.ID()] = true

	switch node := n.(type) {
	case *tree.GroupNode:
		v.group(node, depth)
	case *tree.RuleNode:
		v.rule(node)
	}
}

func (v *Validator) group(g *tree.GroupNode, depth int) {
	if depth > v.cfg.maxNesting() {
		v.errors.Add(errNestingTooDeep(g.ID(), v.cfg.maxNesting()))
		return
	}
	if len(g.Children) == 0 && !v.cfg.CanLeaveEmptyGroup {
		v.errors.Add(errEmptyGroup(g.ID()))
	}
	for _, child := range g.Children {
		childDepth := depth
		if child.Kind() == tree.KindGroup {
			childDepth = depth + 1
		}
		v.node(child, childDepth)
	}
}

func (v *Validator) rule(r *tree.RuleNode) {
	fieldType := tree.TypeUnspecified
	if r.Field == nil {
		v.errors.Add(errMissingField(r.ID()))
	} else {
		fieldType = v.fieldRef(r.ID(), r.Field)
	}

	if r.Operator == "" {
		v.errors.Add(errMissingOperator(r.ID()))
		return
	}
	op, ok := v.catalog.OperatorInfo(r.Operator)
	if !ok {
		v.errors.Add(errUnknownOperator(r.ID(), r.Operator))
		return
	}
	if !op.AppliesTo(fieldType) {
		v.errors.Add(errOperatorType(r.ID(), op.Name, fieldType.String()))
	}
	v.ruleValue(r, op, fieldType)
}

func (v *Validator) ruleValue(r *tree.RuleNode, op registry.OperatorInfo, fieldType tree.TypeTag) {
	if !op.TakesValue() {
		if r.Value != nil {
			v.errors.Add(errUnexpectedValue(r.ID(), op.Name))
		}
		return
	}
	if r.Value == nil {
		v.errors.Add(errMissingValue(r.ID(), op.Name))
		return
	}

	// Cardinality-two operators carry their slots in a list; for
	// cardinality one, a list is a single multi-valued slot.
	slots := []tree.Value{r.Value}
	if op.Cardinality == 2 {
		list, ok := r.Value.(*tree.ListValue)
		if !ok {
			v.errors.Add(errCardinality(r.ID(), op.Name, op.Cardinality, 1))
			return
		}
		if len(list.Items) != op.Cardinality {
			v.errors.Add(errCardinality(r.ID(), op.Name, op.Cardinality, len(list.Items)))
			return
		}
		slots = list.Items
	}

	for _, slot := range slots {
		if src := tree.SourceOf(slot); !op.AcceptsSource(src) {
			v.errors.Add(errValueSource(r.ID(), op.Name, src.String()))
		}
		v.value(r.ID(), slot, fieldType)
	}
}

// fieldRef validates the rule's field position and resolves its type.
func (v *Validator) fieldRef(nodeID string, f tree.FieldRef) tree.TypeTag {
	switch field := f.(type) {
	case *tree.PlainField:
		sf, ok := v.schema.Field(field.Name)
		if !ok {
			v.errors.Add(errUnknownField(nodeID, field.Name))
			return tree.TypeUnspecified
		}
		return sf.Type

	case *tree.FieldReference:
		sf, ok := v.schema.Field(field.Name)
		if !ok {
			v.errors.Add(errUnknownField(nodeID, field.Name))
			return field.Type
		}
		if field.Type != tree.TypeUnspecified && field.Type != sf.Type {
			v.errors.Add(errTypeMismatch(nodeID, sf.Type.String(), field.Type.String()))
		}
		return sf.Type

	case *tree.FuncCall:
		return v.funcCall(nodeID, field)

	default:
		v.errors.Add(errMissingField(nodeID))
		return tree.TypeUnspecified
	}
}

// value validates one value slot against the type it is compared to.
func (v *Validator) value(nodeID string, val tree.Value, want tree.TypeTag) {
	switch value := val.(type) {
	case *tree.FieldReference:
		sf, ok := v.schema.Field(value.Name)
		if !ok {
			v.errors.Add(errUnknownField(nodeID, value.Name))
			return
		}
		v.checkType(nodeID, want, sf.Type)

	case *tree.FuncCall:
		ret := v.funcCall(nodeID, value)
		v.checkType(nodeID, want, ret)

	case *tree.ListValue:
		for _, item := range value.Items {
			v.value(nodeID, item, want)
		}

	default:
		v.checkType(nodeID, want, tree.TagOf(val))
	}
}

func (v *Validator) checkType(nodeID string, want, got tree.TypeTag) {
	if want == tree.TypeUnspecified || got == tree.TypeUnspecified {
		return
	}
	if want != got {
		v.errors.Add(errTypeMismatch(nodeID, want.String(), got.String()))
	}
}

// funcCall validates a function call against the catalog and resolves
// its return type. Argument names must match the declaration exactly;
// no missing names, no extras.
func (v *Validator) funcCall(nodeID string, call *tree.FuncCall) tree.TypeTag {
	info, ok := v.catalog.FuncInfo(call.Func)
	if !ok {
		v.errors.Add(errUnknownFunc(nodeID, call.Func))
		for _, arg := range call.Args {
			if arg.Value != nil {
				v.value(nodeID, arg.Value, tree.TypeUnspecified)
			}
		}
		return tree.TypeUnspecified
	}

	declared := make(map[string]tree.TypeTag, len(info.Args))
	for _, a := range info.Args {
		declared[a.Name] = a.Type
	}

	provided := make(map[string]bool, len(call.Args))
	for _, arg := range call.Args {
		if provided[arg.Name] {
			v.errors.Add(errFuncArgs(nodeID, call.Func,
				fmt.Sprintf("argument %q supplied twice", arg.Name)))
			continue
		}
		provided[arg.Name] = true

		want, isDeclared := declared[arg.Name]
		if !isDeclared {
			v.errors.Add(errFuncArgs(nodeID, call.Func,
				fmt.Sprintf("unexpected argument %q", arg.Name)))
			continue
		}
		if arg.Value == nil {
			v.errors.Add(errFuncArgs(nodeID, call.Func,
				fmt.Sprintf("argument %q has no value", arg.Name)))
			continue
		}
		v.value(nodeID, arg.Value, want)
	}

	for _, a := range info.Args {
		if !provided[a.Name] {
			v.errors.Add(errFuncArgs(nodeID, call.Func,
				fmt.Sprintf("missing argument %q", a.Name)))
		}
	}
	return info.ReturnType
}
