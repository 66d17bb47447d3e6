package registry

import (
	"fmt"
	"sort"

	"github.com/ruletree/ruletree/internal/tree"
)

// OperatorInfo is the target-independent half of an operator spec:
// everything validation needs without knowing the expression type.
type OperatorInfo struct {
	Name         string
	Cardinality  int                // number of value slots: 0, 1 or 2
	ValueSources []tree.ValueSource // accepted sources; empty means all
	Types        []tree.TypeTag     // applicable field types; empty means all
	Reverse      string             // operator substituted under negation, "" for none
}

// TakesValue reports whether the operator consumes any value slots.
func (o OperatorInfo) TakesValue() bool {
	return o.Cardinality > 0
}

// AppliesTo reports whether the operator accepts a field of the given
// type. An unspecified field type is accepted everywhere; validation
// of the field itself happens separately.
func (o OperatorInfo) AppliesTo(t tree.TypeTag) bool {
	if len(o.Types) == 0 || t == tree.TypeUnspecified {
		return true
	}
	for _, allowed := range o.Types {
		if allowed == t {
			return true
		}
	}
	return false
}

// AcceptsSource reports whether the operator accepts values from the
// given source.
func (o OperatorInfo) AcceptsSource(src tree.ValueSource) bool {
	if len(o.ValueSources) == 0 {
		return true
	}
	for _, allowed := range o.ValueSources {
		if allowed == src {
			return true
		}
	}
	return false
}

// FuncArgSpec declares one named argument of a function.
type FuncArgSpec struct {
	Name string
	Type tree.TypeTag
}

// FuncInfo is the target-independent half of a function spec.
type FuncInfo struct {
	Name       string
	Args       []FuncArgSpec
	ReturnType tree.TypeTag
}

// OperatorSpec binds operator metadata to a render rule for one
// target. Render is pure: it receives already-rendered sub-expressions
// and must not inspect global state.
type OperatorSpec[E any] struct {
	OperatorInfo
	Render func(field E, values []E) (E, error)
}

// FuncSpec binds function metadata to a render rule for one target.
// Render receives argument expressions in declared order.
type FuncSpec[E any] struct {
	FuncInfo
	Render func(args []E) (E, error)
}

// Primitives are the target's leaf and structural render rules: how
// to express a field, a literal, a list, a conjunction of children, a
// negation, and the neutral true of an empty group.
type Primitives[E any] struct {
	Field   func(name string, t tree.TypeTag) (E, error)
	Literal func(v tree.Value) (E, error)
	List    func(items []E) (E, error)
	Group   func(conj tree.Conjunction, children []E, parens bool) (E, error)
	Not     func(e E) (E, error)
	True    func() E
}

// Catalog is the type-erased registry view validation works against.
type Catalog interface {
	OperatorInfo(name string) (OperatorInfo, bool)
	FuncInfo(name string) (FuncInfo, bool)
	OperatorNames() []string
}

// Registry maps operator and function names to render rules for one
// target expression type. Populate it during initialization; it is
// read-only afterwards, so concurrent lookups are safe without
// locking. Registration must complete before the first lookup.
type Registry[E any] struct {
	primitives Primitives[E]
	operators  map[string]OperatorSpec[E]
	funcs      map[string]FuncSpec[E]
}

// New creates an empty registry around the target's primitives. All
// primitives are required; a partial target is a construction error,
// not a compile-time surprise.
func New[E any](p Primitives[E]) (*Registry[E], error) {
	switch {
	case p.Field == nil:
		return nil, fmt.Errorf("registry: Field primitive is required")
	case p.Literal == nil:
		return nil, fmt.Errorf("registry: Literal primitive is required")
	case p.List == nil:
		return nil, fmt.Errorf("registry: List primitive is required")
	case p.Group == nil:
		return nil, fmt.Errorf("registry: Group primitive is required")
	case p.Not == nil:
		return nil, fmt.Errorf("registry: Not primitive is required")
	case p.True == nil:
		return nil, fmt.Errorf("registry: True primitive is required")
	}
	return &Registry[E]{
		primitives: p,
		operators:  make(map[string]OperatorSpec[E]),
		funcs:      make(map[string]FuncSpec[E]),
	}, nil
}

// RegisterOperator adds an operator spec. Names are unique; a second
// registration under the same name is an error rather than a silent
// override.
func (r *Registry[E]) RegisterOperator(spec OperatorSpec[E]) error {
	if spec.Name == "" {
		return fmt.Errorf("registry: operator needs a name")
	}
	if spec.Cardinality < 0 || spec.Cardinality > 2 {
		return fmt.Errorf("registry: operator %q has cardinality %d, want 0..2", spec.Name, spec.Cardinality)
	}
	if spec.Render == nil {
		return fmt.Errorf("registry: operator %q needs a render rule", spec.Name)
	}
	if _, exists := r.operators[spec.Name]; exists {
		return fmt.Errorf("registry: operator %q registered twice", spec.Name)
	}
	r.operators[spec.Name] = spec
	return nil
}

// RegisterFunc adds a function spec under the same uniqueness rules.
func (r *Registry[E]) RegisterFunc(spec FuncSpec[E]) error {
	if spec.Name == "" {
		return fmt.Errorf("registry: function needs a name")
	}
	if spec.Render == nil {
		return fmt.Errorf("registry: function %q needs a render rule", spec.Name)
	}
	if _, exists := r.funcs[spec.Name]; exists {
		return fmt.Errorf("registry: function %q registered twice", spec.Name)
	}
	r.funcs[spec.Name] = spec
	return nil
}

// Operator looks up an operator spec by name.
func (r *Registry[E]) Operator(name string) (OperatorSpec[E], bool) {
	spec, ok := r.operators[name]
	return spec, ok
}

// Func looks up a function spec by name.
func (r *Registry[E]) Func(name string) (FuncSpec[E], bool) {
	spec, ok := r.funcs[name]
	return spec, ok
}

// Primitives returns the target's structural render rules.
func (r *Registry[E]) Primitives() Primitives[E] {
	return r.primitives
}

// OperatorInfo implements Catalog.
func (r *Registry[E]) OperatorInfo(name string) (OperatorInfo, bool) {
	spec, ok := r.operators[name]
	return spec.OperatorInfo, ok
}

// FuncInfo implements Catalog.
func (r *Registry[E]) FuncInfo(name string) (FuncInfo, bool) {
	spec, ok := r.funcs[name]
	return spec.FuncInfo, ok
}

// OperatorNames returns the registered operator names in sorted order.
func (r *Registry[E]) OperatorNames() []string {
	names := make([]string, 0, len(r.operators))
	for name := range r.operators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FuncNames returns the registered function names in sorted order.
func (r *Registry[E]) FuncNames() []string {
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
