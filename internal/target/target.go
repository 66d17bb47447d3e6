// Package target maps wire-level target names onto the rendering
// subpackages and normalizes their options and results, so the API,
// the worker and the CLI agree on both.
package target

import (
	"encoding/json"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/ruletree/ruletree/internal/compile"
	"github.com/ruletree/ruletree/internal/registry"
	"github.com/ruletree/ruletree/internal/schema"
	"github.com/ruletree/ruletree/internal/target/evalgen"
	"github.com/ruletree/ruletree/internal/target/mongogen"
	"github.com/ruletree/ruletree/internal/target/sqlgen"
	"github.com/ruletree/ruletree/internal/tree"
)

// Compile target names as they appear in requests and task payloads.
const (
	SQL   = "sql"
	Mongo = "mongo"
	Eval  = "eval"
)

// Names returns every compile target in a stable order.
func Names() []string {
	return []string{SQL, Mongo, Eval}
}

// Known reports whether name is a compilable target.
func Known(name string) bool {
	switch name {
	case SQL, Mongo, Eval:
		return true
	}
	return false
}

// TemplateOperator is a config-defined operator rendered from a SQL
// template with {field}, {0} and {1} placeholders. Validation accepts
// it through Options.Catalog; only the SQL target can render it.
type TemplateOperator struct {
	Info     registry.OperatorInfo
	Template string
}

// Options controls a named-target compilation. Zero values compile a
// tree standalone: no schema resolution, inline SQL literals, postgres
// placeholders.
type Options struct {
	// Parameterized emits SQL placeholders and carries values in
	// Result.Args. Ignored by the other targets.
	Parameterized bool

	// Dialect selects the SQL placeholder style; empty means postgres.
	Dialect string

	// ReverseOperators rewrites negated rules to the operator's
	// registered reversal instead of wrapping in NOT.
	ReverseOperators bool

	// Schema resolves field types when set.
	Schema *schema.Schema

	// MaxNesting caps group depth; zero means the compiler default.
	MaxNesting int

	// CanLeaveEmptyGroup renders empty groups as the target's neutral
	// true expression instead of failing.
	CanLeaveEmptyGroup bool

	// CustomOperators are config-defined template operators added to
	// the SQL registry and the validation catalog.
	CustomOperators []TemplateOperator
}

// CacheKeyOptions returns the option fields that change compiled
// output, shaped for cache key digests. The schema and the custom
// operator set are deployment-wide state rather than request state, so
// they stay out of the key.
func (o Options) CacheKeyOptions() any {
	return struct {
		Parameterized      bool   `json:"parameterized"`
		Dialect            string `json:"dialect,omitempty"`
		ReverseOperators   bool   `json:"reverse_operators"`
		MaxNesting         int    `json:"max_nesting,omitempty"`
		CanLeaveEmptyGroup bool   `json:"can_leave_empty_group,omitempty"`
	}{o.Parameterized, o.Dialect, o.ReverseOperators, o.MaxNesting, o.CanLeaveEmptyGroup}
}

func (o Options) compileOptions() compile.Options {
	return compile.Options{
		Schema:             o.Schema,
		MaxNesting:         o.MaxNesting,
		ReverseOperators:   o.ReverseOperators,
		CanLeaveEmptyGroup: o.CanLeaveEmptyGroup,
	}
}

// Result is the serializable outcome of one compilation. SQL fills
// Expression and, when parameterized, Args; mongo fills Filter with
// the extended-JSON filter document; eval fills Expression with the
// program source.
type Result struct {
	Target     string          `json:"target"`
	Expression string          `json:"expression,omitempty"`
	Args       []any           `json:"args,omitempty"`
	Filter     json.RawMessage `json:"filter,omitempty"`
}

// Compile renders root for the named target.
func Compile(root tree.Node, name string, opts Options) (*Result, error) {
	switch name {
	case SQL:
		return compileSQL(root, opts)
	case Mongo:
		return compileMongo(root, opts)
	case Eval:
		return compileEval(root, opts)
	default:
		return nil, fmt.Errorf("unknown compile target %q", name)
	}
}

func compileSQL(root tree.Node, opts Options) (*Result, error) {
	dialect := sqlgen.DialectPostgres
	if opts.Dialect != "" {
		var err error
		if dialect, err = sqlgen.ParseDialect(opts.Dialect); err != nil {
			return nil, err
		}
	}

	reg, err := sqlgen.NewRegistry(sqlgen.Options{
		Parameterized: opts.Parameterized,
		Dialect:       dialect,
	})
	if err != nil {
		return nil, err
	}
	for _, op := range opts.CustomOperators {
		if err := sqlgen.RegisterTemplate(reg, op.Info, op.Template); err != nil {
			return nil, fmt.Errorf("custom operator %s: %w", op.Info.Name, err)
		}
	}

	frag, err := compile.Compile(root, reg, opts.compileOptions())
	if err != nil {
		return nil, err
	}
	frag = sqlgen.Rewrite(frag, dialect)
	return &Result{Target: SQL, Expression: frag.SQL, Args: frag.Args}, nil
}

func compileMongo(root tree.Node, opts Options) (*Result, error) {
	reg, err := mongogen.NewRegistry()
	if err != nil {
		return nil, err
	}

	filter, err := compile.Compile(root, reg, opts.compileOptions())
	if err != nil {
		return nil, err
	}
	data, err := bson.MarshalExtJSON(filter, false, false)
	if err != nil {
		return nil, fmt.Errorf("encoding mongo filter: %w", err)
	}
	return &Result{Target: Mongo, Filter: data}, nil
}

func compileEval(root tree.Node, opts Options) (*Result, error) {
	reg, err := evalgen.NewRegistry()
	if err != nil {
		return nil, err
	}

	src, err := compile.Compile(root, reg, opts.compileOptions())
	if err != nil {
		return nil, err
	}
	return &Result{Target: Eval, Expression: src}, nil
}

// Catalog returns the base operator and function metadata view
// validation runs against. Every target registers the same base set,
// so any registry serves; eval's needs no options.
func Catalog() (registry.Catalog, error) {
	return evalgen.NewRegistry()
}

// Catalog returns the validation view for these options: the base set
// plus any custom operators. Trees using a custom operator validate
// for every target even though only SQL renders it; the other targets
// refuse it at compile time.
func (o Options) Catalog() (registry.Catalog, error) {
	base, err := Catalog()
	if err != nil {
		return nil, err
	}
	if len(o.CustomOperators) == 0 {
		return base, nil
	}
	customs := make(map[string]registry.OperatorInfo, len(o.CustomOperators))
	for _, op := range o.CustomOperators {
		if _, exists := customs[op.Info.Name]; exists {
			return nil, fmt.Errorf("custom operator %s defined twice", op.Info.Name)
		}
		if _, exists := base.OperatorInfo(op.Info.Name); exists {
			return nil, fmt.Errorf("custom operator %s shadows a builtin", op.Info.Name)
		}
		customs[op.Info.Name] = op.Info
	}
	return &overlayCatalog{base: base, customs: customs}, nil
}

// overlayCatalog layers custom operator metadata over the base
// catalog.
type overlayCatalog struct {
	base    registry.Catalog
	customs map[string]registry.OperatorInfo
}

func (c *overlayCatalog) OperatorInfo(name string) (registry.OperatorInfo, bool) {
	if info, ok := c.base.OperatorInfo(name); ok {
		return info, true
	}
	info, ok := c.customs[name]
	return info, ok
}

func (c *overlayCatalog) FuncInfo(name string) (registry.FuncInfo, bool) {
	return c.base.FuncInfo(name)
}

func (c *overlayCatalog) OperatorNames() []string {
	names := c.base.OperatorNames()
	for name := range c.customs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
