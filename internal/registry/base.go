// Package registry holds the pluggable operator and function tables a
// compilation target binds render rules into. The compiler is generic
// over the target expression type; registries supply everything
// target-specific.
package registry

import "github.com/ruletree/ruletree/internal/tree"

// Canonical operator names of the grammar. A registry binds renders
// for a subset of these plus any caller-supplied extensions.
const (
	OpEqual          = "equal"
	OpNotEqual       = "not_equal"
	OpLess           = "less"
	OpLessOrEqual    = "less_or_equal"
	OpGreater        = "greater"
	OpGreaterOrEqual = "greater_or_equal"
	OpLike           = "like"
	OpNotLike        = "not_like"
	OpStartsWith     = "starts_with"
	OpEndsWith       = "ends_with"
	OpBetween        = "between"
	OpNotBetween     = "not_between"
	OpIsNull         = "is_null"
	OpIsNotNull      = "is_not_null"
	OpIsEmpty        = "is_empty"
	OpIsNotEmpty     = "is_not_empty"
	OpNone           = "none"
)

// Canonical function names of the base function set.
const (
	FuncLower            = "LOWER"
	FuncUpper            = "UPPER"
	FuncNow              = "NOW"
	FuncLinearRegression = "LINEAR_REGRESSION"
)

var orderedTypes = []tree.TypeTag{
	tree.TypeNumber, tree.TypeDate, tree.TypeTime, tree.TypeDateTime,
}

var textOnly = []tree.TypeTag{tree.TypeText}

var literalOrFunc = []tree.ValueSource{tree.SourceValue, tree.SourceFunc}

// baseOperators is the target-independent metadata of the builtin
// operator set: cardinality, reversal counterpart, applicable field
// types, and accepted value sources. Target packages seed their
// registries from it and attach renders.
var baseOperators = map[string]OperatorInfo{
	OpEqual:          {Name: OpEqual, Cardinality: 1, Reverse: OpNotEqual},
	OpNotEqual:       {Name: OpNotEqual, Cardinality: 1, Reverse: OpEqual},
	OpLess:           {Name: OpLess, Cardinality: 1, Reverse: OpGreaterOrEqual, Types: orderedTypes},
	OpLessOrEqual:    {Name: OpLessOrEqual, Cardinality: 1, Reverse: OpGreater, Types: orderedTypes},
	OpGreater:        {Name: OpGreater, Cardinality: 1, Reverse: OpLessOrEqual, Types: orderedTypes},
	OpGreaterOrEqual: {Name: OpGreaterOrEqual, Cardinality: 1, Reverse: OpLess, Types: orderedTypes},
	OpLike:           {Name: OpLike, Cardinality: 1, Reverse: OpNotLike, Types: textOnly, ValueSources: literalOrFunc},
	OpNotLike:        {Name: OpNotLike, Cardinality: 1, Reverse: OpLike, Types: textOnly, ValueSources: literalOrFunc},
	OpStartsWith:     {Name: OpStartsWith, Cardinality: 1, Types: textOnly, ValueSources: literalOrFunc},
	OpEndsWith:       {Name: OpEndsWith, Cardinality: 1, Types: textOnly, ValueSources: literalOrFunc},
	OpBetween:        {Name: OpBetween, Cardinality: 2, Reverse: OpNotBetween, Types: orderedTypes},
	OpNotBetween:     {Name: OpNotBetween, Cardinality: 2, Reverse: OpBetween, Types: orderedTypes},
	OpIsNull:         {Name: OpIsNull, Cardinality: 0, Reverse: OpIsNotNull},
	OpIsNotNull:      {Name: OpIsNotNull, Cardinality: 0, Reverse: OpIsNull},
	OpIsEmpty:        {Name: OpIsEmpty, Cardinality: 0, Reverse: OpIsNotEmpty, Types: textOnly},
	OpIsNotEmpty:     {Name: OpIsNotEmpty, Cardinality: 0, Reverse: OpIsEmpty, Types: textOnly},
	OpNone:           {Name: OpNone, Cardinality: 0},
}

// baseOperatorOrder fixes the listing order of the builtin set.
var baseOperatorOrder = []string{
	OpEqual, OpNotEqual, OpLess, OpLessOrEqual, OpGreater, OpGreaterOrEqual,
	OpLike, OpNotLike, OpStartsWith, OpEndsWith, OpBetween, OpNotBetween,
	OpIsNull, OpIsNotNull, OpIsEmpty, OpIsNotEmpty, OpNone,
}

// BaseOperator returns the builtin metadata for an operator name.
func BaseOperator(name string) (OperatorInfo, bool) {
	info, ok := baseOperators[name]
	return info, ok
}

// BaseOperatorNames returns the canonical operator names in their
// fixed declaration order.
func BaseOperatorNames() []string {
	names := make([]string, len(baseOperatorOrder))
	copy(names, baseOperatorOrder)
	return names
}

// baseFuncs is the metadata of the builtin function set.
var baseFuncs = map[string]FuncInfo{
	FuncLower: {
		Name:       FuncLower,
		Args:       []FuncArgSpec{{Name: "str", Type: tree.TypeText}},
		ReturnType: tree.TypeText,
	},
	FuncUpper: {
		Name:       FuncUpper,
		Args:       []FuncArgSpec{{Name: "str", Type: tree.TypeText}},
		ReturnType: tree.TypeText,
	},
	FuncNow: {
		Name:       FuncNow,
		ReturnType: tree.TypeDateTime,
	},
	FuncLinearRegression: {
		Name: FuncLinearRegression,
		Args: []FuncArgSpec{
			{Name: "coef", Type: tree.TypeNumber},
			{Name: "bias", Type: tree.TypeNumber},
			{Name: "val", Type: tree.TypeNumber},
		},
		ReturnType: tree.TypeNumber,
	},
}

var baseFuncOrder = []string{FuncLower, FuncUpper, FuncNow, FuncLinearRegression}

// BaseFunc returns the builtin metadata for a function name.
func BaseFunc(name string) (FuncInfo, bool) {
	info, ok := baseFuncs[name]
	return info, ok
}

// BaseFuncNames returns the builtin function names in declaration order.
func BaseFuncNames() []string {
	names := make([]string, len(baseFuncOrder))
	copy(names, baseFuncOrder)
	return names
}
