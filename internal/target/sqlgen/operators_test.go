package sqlgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruletree/ruletree/internal/compile"
	"github.com/ruletree/ruletree/internal/registry"
	"github.com/ruletree/ruletree/internal/tree"
)

func compileSQL(t *testing.T, root tree.Node, opts Options, copts compile.Options) Fragment {
	t.Helper()
	reg, err := NewRegistry(opts)
	require.NoError(t, err)
	frag, err := compile.Compile(root, reg, copts)
	require.NoError(t, err)
	return frag
}

func TestSQL_InlineTree(t *testing.T) {
	root := tree.NewGroupWithID("root", tree.ConjunctionAnd,
		tree.NewRuleWithID("r1", tree.Field("AGE"), "equal", tree.Number(30)),
		tree.NewGroupWithID("g", tree.ConjunctionOr,
			tree.NewRuleWithID("r2", tree.Field("name"), "like", tree.Text("Den")),
			tree.Negate(tree.NewRuleWithID("r3", tree.Field("is_promoted"), "equal", tree.Bool(true))),
		),
	)

	frag := compileSQL(t, root, Options{}, compile.Options{})
	assert.Equal(t, "(AGE = 30 AND (name LIKE 'Den' OR NOT (is_promoted = TRUE)))", frag.SQL)
	assert.Empty(t, frag.Args)
}

func TestSQL_ReversalExample(t *testing.T) {
	root := tree.NewGroupWithID("root", tree.ConjunctionAnd,
		tree.Negate(tree.NewRuleWithID("r", tree.Field("AGE"), "equal", tree.Number(30))),
	)

	frag := compileSQL(t, root, Options{}, compile.Options{ReverseOperators: true})
	assert.Equal(t, "AGE <> 30", frag.SQL)

	frag = compileSQL(t, root, Options{}, compile.Options{})
	assert.Equal(t, "NOT (AGE = 30)", frag.SQL)
}

func TestSQL_ComparisonOperators(t *testing.T) {
	tests := []struct {
		operator string
		want     string
	}{
		{"equal", "score = 10"},
		{"not_equal", "score <> 10"},
		{"less", "score < 10"},
		{"less_or_equal", "score <= 10"},
		{"greater", "score > 10"},
		{"greater_or_equal", "score >= 10"},
	}
	for _, tt := range tests {
		t.Run(tt.operator, func(t *testing.T) {
			root := tree.NewGroupWithID("root", tree.ConjunctionAnd,
				tree.NewRuleWithID("r", tree.Field("score"), tt.operator, tree.Number(10)),
			)
			frag := compileSQL(t, root, Options{}, compile.Options{})
			assert.Equal(t, tt.want, frag.SQL)
		})
	}
}

func TestSQL_PatternOperators(t *testing.T) {
	tests := []struct {
		operator string
		value    string
		want     string
	}{
		{"like", "Den", "name LIKE 'Den'"},
		{"not_like", "Den", "name NOT LIKE 'Den'"},
		{"starts_with", "De", "name LIKE 'De%'"},
		{"ends_with", "nis", "name LIKE '%nis'"},
	}
	for _, tt := range tests {
		t.Run(tt.operator, func(t *testing.T) {
			root := tree.NewGroupWithID("root", tree.ConjunctionAnd,
				tree.NewRuleWithID("r", tree.Field("name"), tt.operator, tree.Text(tt.value)),
			)
			frag := compileSQL(t, root, Options{}, compile.Options{})
			assert.Equal(t, tt.want, frag.SQL)
		})
	}
}

func TestSQL_ValuelessOperators(t *testing.T) {
	tests := []struct {
		operator string
		want     string
	}{
		{"is_null", "name IS NULL"},
		{"is_not_null", "name IS NOT NULL"},
		{"is_empty", "name = ''"},
		{"is_not_empty", "name <> ''"},
	}
	for _, tt := range tests {
		t.Run(tt.operator, func(t *testing.T) {
			root := tree.NewGroupWithID("root", tree.ConjunctionAnd,
				tree.NewRuleWithID("r", tree.Field("name"), tt.operator, nil),
			)
			frag := compileSQL(t, root, Options{}, compile.Options{})
			assert.Equal(t, tt.want, frag.SQL)
		})
	}
}

func TestSQL_BetweenDates(t *testing.T) {
	root := tree.NewGroupWithID("root", tree.ConjunctionAnd,
		tree.NewRuleWithID("r", tree.Field("birth"), "between",
			tree.List(tree.Date("2020-01-01"), tree.Date("2020-12-31"))),
	)
	frag := compileSQL(t, root, Options{}, compile.Options{})
	assert.Equal(t, "birth BETWEEN DATE '2020-01-01' AND DATE '2020-12-31'", frag.SQL)
}

func TestSQL_TimeLiteral(t *testing.T) {
	root := tree.NewGroupWithID("root", tree.ConjunctionAnd,
		tree.NewRuleWithID("r", tree.Field("opens_at"), "greater_or_equal", tree.Time("09:00:00")),
	)
	frag := compileSQL(t, root, Options{}, compile.Options{})
	assert.Equal(t, "opens_at >= '09:00:00'", frag.SQL)
}

func TestSQL_QuoteEscaping(t *testing.T) {
	root := tree.NewGroupWithID("root", tree.ConjunctionAnd,
		tree.NewRuleWithID("r", tree.Field("name"), "equal", tree.Text("O'Brien")),
	)
	frag := compileSQL(t, root, Options{}, compile.Options{})
	assert.Equal(t, "name = 'O''Brien'", frag.SQL)
}

func TestSQL_ReservedFieldQuoted(t *testing.T) {
	root := tree.NewGroupWithID("root", tree.ConjunctionAnd,
		tree.NewRuleWithID("r", tree.Field("user"), "equal", tree.Text("root")),
	)
	frag := compileSQL(t, root, Options{}, compile.Options{})
	assert.Equal(t, `"user" = 'root'`, frag.SQL)
}

func TestSQL_EmptyGroupNeutralTrue(t *testing.T) {
	root := tree.NewGroupWithID("root", tree.ConjunctionAnd,
		tree.NewRuleWithID("r", tree.Field("AGE"), "greater", tree.Number(18)),
		tree.NewGroupWithID("hole", tree.ConjunctionOr),
	)
	frag := compileSQL(t, root, Options{}, compile.Options{CanLeaveEmptyGroup: true})
	assert.Equal(t, "(AGE > 18 AND TRUE)", frag.SQL)
}

func TestSQL_Functions(t *testing.T) {
	lower := tree.NewGroupWithID("root", tree.ConjunctionAnd,
		tree.NewRuleWithID("r",
			tree.Func("LOWER", tree.Arg("str", tree.FieldRefValue("login", tree.TypeText))),
			"equal", tree.Text("root")),
	)
	frag := compileSQL(t, lower, Options{}, compile.Options{})
	assert.Equal(t, "LOWER(login) = 'root'", frag.SQL)

	now := tree.NewGroupWithID("root", tree.ConjunctionAnd,
		tree.NewRuleWithID("r", tree.Field("birth"), "less",
			tree.Func("NOW")),
	)
	frag = compileSQL(t, now, Options{}, compile.Options{})
	assert.Equal(t, "birth < NOW()", frag.SQL)
}

func TestSQL_LinearRegression(t *testing.T) {
	root := tree.NewGroupWithID("root", tree.ConjunctionAnd,
		tree.NewRuleWithID("r",
			tree.Func("LINEAR_REGRESSION",
				tree.Arg("coef", tree.Number(3)),
				tree.Arg("bias", tree.Number(10)),
				tree.Arg("val", tree.FieldRefValue("score", tree.TypeNumber))),
			"greater", tree.Number(100)),
	)
	frag := compileSQL(t, root, Options{}, compile.Options{})
	assert.Equal(t, "(3 * score + 10) > 100", frag.SQL)
}

// =============================================================================
// Parameterized mode
// =============================================================================

func TestSQL_ParameterizedTree(t *testing.T) {
	root := tree.NewGroupWithID("root", tree.ConjunctionAnd,
		tree.NewRuleWithID("r1", tree.Field("AGE"), "equal", tree.Number(30)),
		tree.NewGroupWithID("g", tree.ConjunctionOr,
			tree.NewRuleWithID("r2", tree.Field("name"), "like", tree.Text("Den")),
			tree.NewRuleWithID("r3", tree.Field("is_promoted"), "equal", tree.Bool(true)),
		),
	)

	frag := compileSQL(t, root, Options{Parameterized: true}, compile.Options{})
	assert.Equal(t, "(AGE = ? AND (name LIKE ? OR is_promoted = ?))", frag.SQL)
	assert.Equal(t, []any{30.0, "Den", true}, frag.Args)

	pg := Rewrite(frag, DialectPostgres)
	assert.Equal(t, "(AGE = $1 AND (name LIKE $2 OR is_promoted = $3))", pg.SQL)
	assert.Equal(t, frag.Args, pg.Args)
}

func TestSQL_ParameterizedBetween(t *testing.T) {
	root := tree.NewGroupWithID("root", tree.ConjunctionAnd,
		tree.NewRuleWithID("r", tree.Field("score"), "between",
			tree.List(tree.Number(10), tree.Number(20))),
	)
	frag := compileSQL(t, root, Options{Parameterized: true}, compile.Options{})
	assert.Equal(t, "score BETWEEN ? AND ?", frag.SQL)
	assert.Equal(t, []any{10.0, 20.0}, frag.Args)

	pg := Rewrite(frag, DialectPostgres)
	assert.Equal(t, "score BETWEEN $1 AND $2", pg.SQL)
}

func TestSQL_ParameterizedPattern(t *testing.T) {
	root := tree.NewGroupWithID("root", tree.ConjunctionAnd,
		tree.NewRuleWithID("r", tree.Field("name"), "starts_with", tree.Text("De")),
	)
	frag := compileSQL(t, root, Options{Parameterized: true}, compile.Options{})
	assert.Equal(t, "name LIKE ?", frag.SQL)
	assert.Equal(t, []any{"De%"}, frag.Args)
}

func TestSQL_ParameterizedDateKeepsRawValue(t *testing.T) {
	root := tree.NewGroupWithID("root", tree.ConjunctionAnd,
		tree.NewRuleWithID("r", tree.Field("birth"), "equal", tree.Date("2020-05-05")),
	)
	frag := compileSQL(t, root, Options{Parameterized: true}, compile.Options{})
	assert.Equal(t, "birth = ?", frag.SQL)
	assert.Equal(t, []any{"2020-05-05"}, frag.Args)
}

// =============================================================================
// Template operators
// =============================================================================

func TestTemplate_PlusOperator(t *testing.T) {
	reg, err := NewRegistry(Options{})
	require.NoError(t, err)
	require.NoError(t, RegisterTemplate(reg,
		registry.OperatorInfo{Name: "plus", Cardinality: 1}, "({field} + {0})"))

	root := tree.NewGroupWithID("root", tree.ConjunctionAnd,
		tree.NewRuleWithID("r", tree.Field("AGE"), "plus", tree.Number(5)),
	)
	frag, err := compile.Compile(root, reg, compile.Options{})
	require.NoError(t, err)
	assert.Equal(t, "(AGE + 5)", frag.SQL)
}

func TestTemplate_ParameterizedArgsFollowPlaceholderOrder(t *testing.T) {
	reg, err := NewRegistry(Options{Parameterized: true})
	require.NoError(t, err)
	require.NoError(t, RegisterTemplate(reg,
		registry.OperatorInfo{Name: "outside", Cardinality: 2},
		"({field} < {0} OR {field} > {1})"))

	root := tree.NewGroupWithID("root", tree.ConjunctionAnd,
		tree.NewRuleWithID("r", tree.Field("score"), "outside",
			tree.List(tree.Number(10), tree.Number(90))),
	)
	frag, err := compile.Compile(root, reg, compile.Options{})
	require.NoError(t, err)
	assert.Equal(t, "(score < ? OR score > ?)", frag.SQL)
	assert.Equal(t, []any{10.0, 90.0}, frag.Args)
}

func TestTemplate_BindsNoneOperator(t *testing.T) {
	reg, err := NewRegistry(Options{})
	require.NoError(t, err)

	info, ok := registry.BaseOperator(registry.OpNone)
	require.True(t, ok)
	// none matches nothing, so it renders a constant false.
	require.NoError(t, RegisterTemplate(reg, info, "FALSE"))

	root := tree.NewGroupWithID("root", tree.ConjunctionAnd,
		tree.NewRuleWithID("r", tree.Field("AGE"), "none", nil),
	)
	frag, err := compile.Compile(root, reg, compile.Options{})
	require.NoError(t, err)
	assert.Equal(t, "FALSE", frag.SQL)
}

func TestTemplate_ParseErrors(t *testing.T) {
	tests := []struct {
		name        string
		cardinality int
		template    string
	}{
		{"unclosed", 1, "({field} + {0"},
		{"unknown key", 1, "{field} ~ {x}"},
		{"exceeds cardinality", 1, "{field} IN ({0}, {1})"},
		{"value on valueless", 0, "{field} = {0}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := TemplateOperator(
				registry.OperatorInfo{Name: "custom", Cardinality: tt.cardinality}, tt.template)
			assert.Error(t, err)
		})
	}
}
