package evalgen

import (
	"fmt"
	"strings"

	"github.com/ruletree/ruletree/internal/registry"
	"github.com/ruletree/ruletree/internal/tree"
)

// NewRegistry builds a compile registry for the eval target with the
// base operator and function set bound. Pattern operators map onto
// expr's string operators, so like means contains here rather than a
// wildcard match.
func NewRegistry() (*registry.Registry[string], error) {
	reg, err := registry.New(primitives())
	if err != nil {
		return nil, err
	}
	if err := registerOperators(reg); err != nil {
		return nil, err
	}
	if err := registerFuncs(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

func primitives() registry.Primitives[string] {
	return registry.Primitives[string]{
		Field: func(name string, _ tree.TypeTag) (string, error) {
			return identifier(name)
		},
		Literal: literal,
		List: func(items []string) (string, error) {
			return "[" + strings.Join(items, ", ") + "]", nil
		},
		Group: func(conj tree.Conjunction, children []string, parens bool) (string, error) {
			joiner := " and "
			if conj == tree.ConjunctionOr {
				joiner = " or "
			}
			joined := strings.Join(children, joiner)
			if parens {
				return "(" + joined + ")", nil
			}
			return joined, nil
		},
		Not: func(e string) (string, error) {
			if isParenthesized(e) {
				return "not " + e, nil
			}
			return "not (" + e + ")", nil
		},
		True: func() string { return "true" },
	}
}

func registerOperators(r *registry.Registry[string]) error {
	renders := map[string]func(field string, values []string) (string, error){
		registry.OpEqual:          infix("=="),
		registry.OpNotEqual:       infix("!="),
		registry.OpLess:           infix("<"),
		registry.OpLessOrEqual:    infix("<="),
		registry.OpGreater:        infix(">"),
		registry.OpGreaterOrEqual: infix(">="),
		registry.OpLike:           infix("contains"),
		registry.OpNotLike:        negated(infix("contains")),
		registry.OpStartsWith:     infix("startsWith"),
		registry.OpEndsWith:       infix("endsWith"),
		registry.OpBetween:        ranged(false),
		registry.OpNotBetween:     ranged(true),
		registry.OpIsNull:         suffix("== nil"),
		registry.OpIsNotNull:      suffix("!= nil"),
		registry.OpIsEmpty:        suffix(`== ""`),
		registry.OpIsNotEmpty:     suffix(`!= ""`),
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
		spec := registry.OperatorSpec[string]{OperatorInfo: info, Render: render}
		if err := r.RegisterOperator(spec); err != nil {
			return err
		}
	}
	return nil
}

func registerFuncs(r *registry.Registry[string]) error {
	renders := map[string]func(args []string) (string, error){
		registry.FuncLower: func(args []string) (string, error) {
			return "lower(" + args[0] + ")", nil
		},
		registry.FuncUpper: func(args []string) (string, error) {
			return "upper(" + args[0] + ")", nil
		},
		registry.FuncNow: func([]string) (string, error) {
			return "now()", nil
		},
		registry.FuncLinearRegression: func(args []string) (string, error) {
			// Declared order coef, bias, val renders (coef * val + bias).
			return "(" + args[0] + " * " + args[2] + " + " + args[1] + ")", nil
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
		if err := r.RegisterFunc(registry.FuncSpec[string]{FuncInfo: info, Render: render}); err != nil {
			return err
		}
	}
	return nil
}

func infix(symbol string) func(string, []string) (string, error) {
	return func(field string, values []string) (string, error) {
		return field + " " + symbol + " " + values[0], nil
	}
}

func suffix(rest string) func(string, []string) (string, error) {
	return func(field string, _ []string) (string, error) {
		return field + " " + rest, nil
	}
}

func negated(render func(string, []string) (string, error)) func(string, []string) (string, error) {
	return func(field string, values []string) (string, error) {
		inner, err := render(field, values)
		if err != nil {
			return "", err
		}
		return "not (" + inner + ")", nil
	}
}

func ranged(negate bool) func(string, []string) (string, error) {
	return func(field string, values []string) (string, error) {
		bounds := "(" + field + " >= " + values[0] + " and " + field + " <= " + values[1] + ")"
		if negate {
			return "not " + bounds, nil
		}
		return bounds, nil
	}
}
