package mongogen

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ruletree/ruletree/internal/registry"
	"github.com/ruletree/ruletree/internal/tree"
)

// NewRegistry builds a compile registry for the Mongo target with the
// base operator set bound. The base function set stays unbound: a tree
// calling a function fails compilation with an unknown-function error
// instead of producing a document the server would reject.
func NewRegistry() (*registry.Registry[bson.M], error) {
	reg, err := registry.New(primitives())
	if err != nil {
		return nil, err
	}
	if err := registerOperators(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

func primitives() registry.Primitives[bson.M] {
	return registry.Primitives[bson.M]{
		Field: func(name string, _ tree.TypeTag) (bson.M, error) {
			return fieldEnvelope(name), nil
		},
		Literal: func(v tree.Value) (bson.M, error) {
			raw, err := goValue(v)
			if err != nil {
				return nil, err
			}
			return valueEnvelope(raw), nil
		},
		List: func(items []bson.M) (bson.M, error) {
			vals := make([]any, 0, len(items))
			for _, item := range items {
				raw, err := rawValue(item)
				if err != nil {
					return nil, err
				}
				vals = append(vals, raw)
			}
			return valueEnvelope(vals), nil
		},
		Group: func(conj tree.Conjunction, children []bson.M, _ bool) (bson.M, error) {
			// Documents carry their own structure; the parens flag only
			// matters to string targets. Single-child groups flatten.
			if len(children) == 1 {
				return children[0], nil
			}
			key := "$and"
			if conj == tree.ConjunctionOr {
				key = "$or"
			}
			return bson.M{key: children}, nil
		},
		Not: func(e bson.M) (bson.M, error) {
			return bson.M{"$nor": []bson.M{e}}, nil
		},
		True: func() bson.M {
			// The empty filter matches every document.
			return bson.M{}
		},
	}
}

func registerOperators(r *registry.Registry[bson.M]) error {
	renders := map[string]func(field bson.M, values []bson.M) (bson.M, error){
		registry.OpEqual:          comparison("$eq"),
		registry.OpNotEqual:       comparison("$ne"),
		registry.OpLess:           comparison("$lt"),
		registry.OpLessOrEqual:    comparison("$lte"),
		registry.OpGreater:        comparison("$gt"),
		registry.OpGreaterOrEqual: comparison("$gte"),
		registry.OpLike:           regexMatch(ContainsRegex, false),
		registry.OpNotLike:        regexMatch(ContainsRegex, true),
		registry.OpStartsWith:     regexMatch(StartsWithRegex, false),
		registry.OpEndsWith:       regexMatch(EndsWithRegex, false),
		registry.OpBetween:        ranged(false),
		registry.OpNotBetween:     ranged(true),
		registry.OpIsNull:         existence(false),
		registry.OpIsNotNull:      existence(true),
		registry.OpIsEmpty:        emptiness("$eq"),
		registry.OpIsNotEmpty:     emptiness("$ne"),
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
		spec := registry.OperatorSpec[bson.M]{OperatorInfo: info, Render: render}
		if err := r.RegisterOperator(spec); err != nil {
			return err
		}
	}
	return nil
}

func comparison(mongoOp string) func(bson.M, []bson.M) (bson.M, error) {
	return func(field bson.M, values []bson.M) (bson.M, error) {
		name, err := fieldName(field)
		if err != nil {
			return nil, err
		}
		raw, err := rawValue(values[0])
		if err != nil {
			return nil, err
		}
		return bson.M{name: bson.M{mongoOp: raw}}, nil
	}
}

// regexMatch matches the field against a pattern regex; negate routes
// through $not for the excluding variant.
func regexMatch(build func(string) primitive.Regex, negate bool) func(bson.M, []bson.M) (bson.M, error) {
	return func(field bson.M, values []bson.M) (bson.M, error) {
		name, err := fieldName(field)
		if err != nil {
			return nil, err
		}
		raw, err := rawValue(values[0])
		if err != nil {
			return nil, err
		}
		pattern, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("pattern operators take a single text argument")
		}
		re := build(pattern)
		if negate {
			return bson.M{name: bson.M{"$not": re}}, nil
		}
		return bson.M{name: bson.M{"$regex": re}}, nil
	}
}

func ranged(negate bool) func(bson.M, []bson.M) (bson.M, error) {
	return func(field bson.M, values []bson.M) (bson.M, error) {
		name, err := fieldName(field)
		if err != nil {
			return nil, err
		}
		lo, err := rawValue(values[0])
		if err != nil {
			return nil, err
		}
		hi, err := rawValue(values[1])
		if err != nil {
			return nil, err
		}
		bounds := bson.M{"$gte": lo, "$lte": hi}
		if negate {
			return bson.M{name: bson.M{"$not": bounds}}, nil
		}
		return bson.M{name: bounds}, nil
	}
}

func existence(exists bool) func(bson.M, []bson.M) (bson.M, error) {
	return func(field bson.M, _ []bson.M) (bson.M, error) {
		name, err := fieldName(field)
		if err != nil {
			return nil, err
		}
		return bson.M{name: bson.M{"$exists": exists}}, nil
	}
}

func emptiness(mongoOp string) func(bson.M, []bson.M) (bson.M, error) {
	return func(field bson.M, _ []bson.M) (bson.M, error) {
		name, err := fieldName(field)
		if err != nil {
			return nil, err
		}
		return bson.M{name: bson.M{mongoOp: ""}}, nil
	}
}
