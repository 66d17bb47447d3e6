package sqlgen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ruletree/ruletree/internal/registry"
	"github.com/ruletree/ruletree/internal/tree"
)

// NewRegistry builds a compile registry for the SQL target with the
// base operator and function set bound. Callers extend it with
// RegisterOperator/RegisterFunc or template operators before compiling.
func NewRegistry(opts Options) (*registry.Registry[Fragment], error) {
	r, err := registry.New(primitives(opts))
	if err != nil {
		return nil, err
	}
	if err := registerOperators(r, opts); err != nil {
		return nil, err
	}
	if err := registerFuncs(r); err != nil {
		return nil, err
	}
	return r, nil
}

func primitives(opts Options) registry.Primitives[Fragment] {
	return registry.Primitives[Fragment]{
		Field: func(name string, _ tree.TypeTag) (Fragment, error) {
			return Fragment{SQL: quoteIdent(name)}, nil
		},
		Literal: func(v tree.Value) (Fragment, error) {
			if opts.Parameterized {
				arg, err := boundValue(v)
				if err != nil {
					return Fragment{}, err
				}
				return Fragment{SQL: "?", Args: []any{arg}}, nil
			}
			sql, err := inlineLiteral(v)
			if err != nil {
				return Fragment{}, err
			}
			return Fragment{SQL: sql}, nil
		},
		List: func(items []Fragment) (Fragment, error) {
			sqls := make([]string, len(items))
			argLists := make([][]any, len(items))
			for i, item := range items {
				sqls[i] = item.SQL
				argLists[i] = item.Args
			}
			return Fragment{
				SQL:  "(" + strings.Join(sqls, ", ") + ")",
				Args: mergeArgs(argLists...),
			}, nil
		},
		Group: func(conj tree.Conjunction, children []Fragment, parens bool) (Fragment, error) {
			sqls := make([]string, len(children))
			argLists := make([][]any, len(children))
			for i, child := range children {
				sqls[i] = child.SQL
				argLists[i] = child.Args
			}
			sql := strings.Join(sqls, " "+conj.String()+" ")
			if parens {
				sql = "(" + sql + ")"
			}
			return Fragment{SQL: sql, Args: mergeArgs(argLists...)}, nil
		},
		Not: func(e Fragment) (Fragment, error) {
			sql := e.SQL
			if !isParenthesized(sql) {
				sql = "(" + sql + ")"
			}
			return Fragment{SQL: "NOT " + sql, Args: e.Args}, nil
		},
		True: func() Fragment { return Fragment{SQL: "TRUE"} },
	}
}

func registerOperators(r *registry.Registry[Fragment], opts Options) error {
	renders := map[string]func(field Fragment, values []Fragment) (Fragment, error){
		registry.OpEqual:          infix("="),
		registry.OpNotEqual:       infix("<>"),
		registry.OpLess:           infix("<"),
		registry.OpLessOrEqual:    infix("<="),
		registry.OpGreater:        infix(">"),
		registry.OpGreaterOrEqual: infix(">="),
		registry.OpLike:           infix("LIKE"),
		registry.OpNotLike:        infix("NOT LIKE"),
		registry.OpStartsWith:     pattern(opts, "", "%"),
		registry.OpEndsWith:       pattern(opts, "%", ""),
		registry.OpBetween:        ranged("BETWEEN"),
		registry.OpNotBetween:     ranged("NOT BETWEEN"),
		registry.OpIsNull:         suffix("IS NULL"),
		registry.OpIsNotNull:      suffix("IS NOT NULL"),
		registry.OpIsEmpty:        suffix("= ''"),
		registry.OpIsNotEmpty:     suffix("<> ''"),
	}

	for _, name := range registry.BaseOperatorNames() {
		render, bound := renders[name]
		if !bound {
			// none stays unbound; it is the extension example slot.
			continue
		}
		info, ok := registry.BaseOperator(name)
		if !ok {
			return fmt.Errorf("missing base operator %q", name)
		}
		spec := registry.OperatorSpec[Fragment]{OperatorInfo: info, Render: render}
		if err := r.RegisterOperator(spec); err != nil {
			return err
		}
	}
	return nil
}

func registerFuncs(r *registry.Registry[Fragment]) error {
	renders := map[string]func(args []Fragment) (Fragment, error){
		registry.FuncLower: func(args []Fragment) (Fragment, error) {
			return Fragment{SQL: "LOWER(" + args[0].SQL + ")", Args: args[0].Args}, nil
		},
		registry.FuncUpper: func(args []Fragment) (Fragment, error) {
			return Fragment{SQL: "UPPER(" + args[0].SQL + ")", Args: args[0].Args}, nil
		},
		registry.FuncNow: func([]Fragment) (Fragment, error) {
			return Fragment{SQL: "NOW()"}, nil
		},
		registry.FuncLinearRegression: func(args []Fragment) (Fragment, error) {
			// Declared order coef, bias, val renders (coef * val + bias).
			return Fragment{
				SQL:  "(" + args[0].SQL + " * " + args[2].SQL + " + " + args[1].SQL + ")",
				Args: mergeArgs(args[0].Args, args[2].Args, args[1].Args),
			}, nil
		},
	}

	for _, name := range registry.BaseFuncNames() {
		render, bound := renders[name]
		if !bound {
			return fmt.Errorf("missing base function %q", name)
		}
		info, ok := registry.BaseFunc(name)
		if !ok {
			return fmt.Errorf("missing base function %q", name)
		}
		if err := r.RegisterFunc(registry.FuncSpec[Fragment]{FuncInfo: info, Render: render}); err != nil {
			return err
		}
	}
	return nil
}

func infix(symbol string) func(Fragment, []Fragment) (Fragment, error) {
	return func(field Fragment, values []Fragment) (Fragment, error) {
		return Fragment{
			SQL:  field.SQL + " " + symbol + " " + values[0].SQL,
			Args: mergeArgs(field.Args, values[0].Args),
		}, nil
	}
}

func suffix(symbol string) func(Fragment, []Fragment) (Fragment, error) {
	return func(field Fragment, _ []Fragment) (Fragment, error) {
		return Fragment{SQL: field.SQL + " " + symbol, Args: field.Args}, nil
	}
}

func ranged(symbol string) func(Fragment, []Fragment) (Fragment, error) {
	return func(field Fragment, values []Fragment) (Fragment, error) {
		return Fragment{
			SQL:  field.SQL + " " + symbol + " " + values[0].SQL + " AND " + values[1].SQL,
			Args: mergeArgs(field.Args, values[0].Args, values[1].Args),
		}, nil
	}
}

// pattern renders starts_with and ends_with as LIKE with the % applied
// to the pattern itself: inside the quotes when inlining, on the bound
// argument when parameterized.
func pattern(opts Options, pre, post string) func(Fragment, []Fragment) (Fragment, error) {
	return func(field Fragment, values []Fragment) (Fragment, error) {
		v, err := patternValue(values[0], pre, post, opts.Parameterized)
		if err != nil {
			return Fragment{}, err
		}
		return Fragment{
			SQL:  field.SQL + " LIKE " + v.SQL,
			Args: mergeArgs(field.Args, v.Args),
		}, nil
	}
}

func patternValue(v Fragment, pre, post string, parameterized bool) (Fragment, error) {
	if parameterized {
		if len(v.Args) == 1 {
			if s, ok := v.Args[0].(string); ok {
				return Fragment{SQL: v.SQL, Args: []any{pre + s + post}}, nil
			}
		}
		return Fragment{}, fmt.Errorf("pattern operators take a single text argument")
	}
	if len(v.SQL) >= 2 && strings.HasPrefix(v.SQL, "'") && strings.HasSuffix(v.SQL, "'") {
		inner := v.SQL[1 : len(v.SQL)-1]
		return Fragment{SQL: "'" + pre + inner + post + "'"}, nil
	}
	return Fragment{}, fmt.Errorf("pattern operators take a text literal")
}

// =============================================================================
// Template operators
// =============================================================================

// templateSeg is one parsed piece of an operator template.
type templateSeg struct {
	text  string
	field bool
	value int
}

// TemplateOperator builds an operator spec from a text template where
// {field} stands for the rendered field and {0}, {1} for the rendered
// value slots. Templates back config-supplied custom operators, e.g.
// a plus operator with template "({field} + {0})".
func TemplateOperator(info registry.OperatorInfo, template string) (registry.OperatorSpec[Fragment], error) {
	segs, err := parseTemplate(template, info.Cardinality)
	if err != nil {
		return registry.OperatorSpec[Fragment]{}, err
	}
	return registry.OperatorSpec[Fragment]{
		OperatorInfo: info,
		Render: func(field Fragment, values []Fragment) (Fragment, error) {
			return renderSegments(segs, field, values)
		},
	}, nil
}

// RegisterTemplate parses and registers a template operator in one step.
func RegisterTemplate(r *registry.Registry[Fragment], info registry.OperatorInfo, template string) error {
	spec, err := TemplateOperator(info, template)
	if err != nil {
		return err
	}
	return r.RegisterOperator(spec)
}

func parseTemplate(template string, cardinality int) ([]templateSeg, error) {
	var segs []templateSeg
	for i := 0; i < len(template); {
		open := strings.IndexByte(template[i:], '{')
		if open < 0 {
			segs = append(segs, templateSeg{text: template[i:], value: -1})
			break
		}
		if open > 0 {
			segs = append(segs, templateSeg{text: template[i : i+open], value: -1})
		}
		i += open

		end := strings.IndexByte(template[i:], '}')
		if end < 0 {
			return nil, fmt.Errorf("unclosed placeholder in template %q", template)
		}
		key := template[i+1 : i+end]
		if key == "field" {
			segs = append(segs, templateSeg{field: true, value: -1})
		} else {
			idx, err := strconv.Atoi(key)
			if err != nil || idx < 0 {
				return nil, fmt.Errorf("unknown placeholder {%s} in template %q", key, template)
			}
			if idx >= cardinality {
				return nil, fmt.Errorf("placeholder {%d} exceeds operator cardinality %d", idx, cardinality)
			}
			segs = append(segs, templateSeg{value: idx})
		}
		i += end + 1
	}
	return segs, nil
}

func renderSegments(segs []templateSeg, field Fragment, values []Fragment) (Fragment, error) {
	var b strings.Builder
	var args []any
	for _, s := range segs {
		switch {
		case s.field:
			b.WriteString(field.SQL)
			args = append(args, field.Args...)
		case s.value >= 0:
			if s.value >= len(values) {
				return Fragment{}, fmt.Errorf("placeholder {%d} has no rendered value", s.value)
			}
			b.WriteString(values[s.value].SQL)
			args = append(args, values[s.value].Args...)
		default:
			b.WriteString(s.text)
		}
	}
	return Fragment{SQL: b.String(), Args: args}, nil
}
