package target

import (
	"encoding/json"
	"math/rand"
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruletree/ruletree/internal/registry"
	"github.com/ruletree/ruletree/internal/tree"
)

func inlineTree() tree.Node {
	return tree.NewGroupWithID("root", tree.ConjunctionAnd,
		tree.NewRuleWithID("r1", tree.Field("AGE"), "equal", tree.Number(30)),
		tree.NewGroupWithID("g", tree.ConjunctionOr,
			tree.NewRuleWithID("r2", tree.Field("name"), "like", tree.Text("Den")),
			tree.Negate(tree.NewRuleWithID("r3", tree.Field("is_promoted"), "equal", tree.Bool(true))),
		),
	)
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"sql", "mongo", "eval"}, Names())
}

func TestKnown(t *testing.T) {
	for _, name := range Names() {
		assert.True(t, Known(name), name)
	}
	assert.False(t, Known("graphql"))
	assert.False(t, Known(""))
}

func TestCompile_SQL(t *testing.T) {
	res, err := Compile(inlineTree(), SQL, Options{})
	require.NoError(t, err)

	assert.Equal(t, SQL, res.Target)
	assert.Equal(t, "(AGE = 30 AND (name LIKE 'Den' OR NOT (is_promoted = TRUE)))", res.Expression)
	assert.Empty(t, res.Args)
	assert.Empty(t, res.Filter)
}

func TestCompile_SQLParameterized(t *testing.T) {
	res, err := Compile(inlineTree(), SQL, Options{Parameterized: true})
	require.NoError(t, err)

	// Postgres is the default dialect, so placeholders are numbered.
	assert.Equal(t, "(AGE = $1 AND (name LIKE $2 OR NOT (is_promoted = $3)))", res.Expression)
	assert.Equal(t, []any{30.0, "Den", true}, res.Args)
}

func TestCompile_SQLSQLiteDialect(t *testing.T) {
	res, err := Compile(inlineTree(), SQL, Options{Parameterized: true, Dialect: "sqlite"})
	require.NoError(t, err)

	assert.Equal(t, "(AGE = ? AND (name LIKE ? OR NOT (is_promoted = ?)))", res.Expression)
}

func TestCompile_SQLUnknownDialect(t *testing.T) {
	_, err := Compile(inlineTree(), SQL, Options{Dialect: "oracle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown sql dialect")
}

func TestCompile_Mongo(t *testing.T) {
	res, err := Compile(inlineTree(), Mongo, Options{})
	require.NoError(t, err)

	assert.Equal(t, Mongo, res.Target)
	assert.Empty(t, res.Expression)

	var filter map[string]any
	require.NoError(t, json.Unmarshal(res.Filter, &filter))
	clauses, ok := filter["$and"].([]any)
	require.True(t, ok, "top-level filter should be an $and")
	assert.Len(t, clauses, 2)
}

func TestCompile_Eval(t *testing.T) {
	res, err := Compile(inlineTree(), Eval, Options{})
	require.NoError(t, err)

	assert.Equal(t, Eval, res.Target)
	assert.Equal(t, `(AGE == 30 and (name contains "Den" or not (is_promoted == true)))`, res.Expression)
}

func TestCompile_UnknownTarget(t *testing.T) {
	_, err := Compile(inlineTree(), "graphql", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown compile target")
}

func TestCacheKeyOptions(t *testing.T) {
	plain, err := json.Marshal(Options{}.CacheKeyOptions())
	require.NoError(t, err)
	parameterized, err := json.Marshal(Options{Parameterized: true}.CacheKeyOptions())
	require.NoError(t, err)
	assert.NotEqual(t, string(plain), string(parameterized))

	// The schema never participates in the key.
	withSchema, err := json.Marshal(Options{Schema: nil}.CacheKeyOptions())
	require.NoError(t, err)
	assert.Equal(t, string(plain), string(withSchema))
}

func TestCatalog(t *testing.T) {
	catalog, err := Catalog()
	require.NoError(t, err)

	info, ok := catalog.OperatorInfo("equal")
	require.True(t, ok)
	assert.Equal(t, "equal", info.Name)
	assert.NotEmpty(t, catalog.OperatorNames())
}

func TestCompile_CustomOperator(t *testing.T) {
	opts := Options{
		CustomOperators: []TemplateOperator{{
			Info:     registry.OperatorInfo{Name: "sounds_like", Cardinality: 1, Types: []tree.TypeTag{tree.TypeText}},
			Template: "SOUNDEX({field}) = SOUNDEX({0})",
		}},
	}
	root := tree.NewGroupWithID("root", tree.ConjunctionAnd,
		tree.NewRuleWithID("r1", tree.Field("name"), "sounds_like", tree.Text("Smith")),
	)

	res, err := Compile(root, SQL, opts)
	require.NoError(t, err)
	assert.Equal(t, "SOUNDEX(name) = SOUNDEX('Smith')", res.Expression)

	// Only the SQL target renders template operators.
	_, err = Compile(root, Eval, opts)
	assert.Error(t, err)
	_, err = Compile(root, Mongo, opts)
	assert.Error(t, err)
}

func TestOptionsCatalog(t *testing.T) {
	opts := Options{
		CustomOperators: []TemplateOperator{{
			Info:     registry.OperatorInfo{Name: "sounds_like", Cardinality: 1},
			Template: "SOUNDEX({field}) = SOUNDEX({0})",
		}},
	}

	catalog, err := opts.Catalog()
	require.NoError(t, err)

	info, ok := catalog.OperatorInfo("sounds_like")
	require.True(t, ok)
	assert.Equal(t, 1, info.Cardinality)

	_, ok = catalog.OperatorInfo("equal")
	assert.True(t, ok, "base operators stay visible")
	assert.Contains(t, catalog.OperatorNames(), "sounds_like")
}

// sharedOpTree grows random trees over the operator subset every target
// binds, with literal values only. includeUnknown mixes in rules whose
// operator no target knows, so rejection agreement is exercised too.
type sharedOpTree struct {
	rnd            *rand.Rand
	includeUnknown bool
	nextID         int
}

func (b *sharedOpTree) id() string {
	b.nextID++
	return "n" + strconv.Itoa(b.nextID)
}

func (b *sharedOpTree) group(depth, maxDepth int) tree.Node {
	count := 1 + b.rnd.Intn(3)
	children := make([]tree.Node, 0, count)
	for i := 0; i < count; i++ {
		if depth < maxDepth && b.rnd.Intn(3) == 0 {
			children = append(children, b.group(depth+1, maxDepth))
		} else {
			children = append(children, b.rule())
		}
	}
	conj := tree.ConjunctionAnd
	if b.rnd.Intn(2) == 0 {
		conj = tree.ConjunctionOr
	}
	node := tree.Node(tree.NewGroupWithID(b.id(), conj, children...))
	if b.rnd.Intn(4) == 0 {
		node = tree.Negate(node)
	}
	return node
}

func (b *sharedOpTree) rule() tree.Node {
	if b.includeUnknown && b.rnd.Intn(5) == 0 {
		return tree.NewRuleWithID(b.id(), tree.Field("AGE"), "xor_match", tree.Number(1))
	}
	switch b.rnd.Intn(6) {
	case 0:
		return tree.NewRuleWithID(b.id(), tree.Field("AGE"), "equal",
			tree.Number(float64(b.rnd.Intn(100))))
	case 1:
		lo := float64(b.rnd.Intn(50))
		return tree.NewRuleWithID(b.id(), tree.Field("score"), "between",
			tree.List(tree.Number(lo), tree.Number(lo+1)))
	case 2:
		return tree.NewRuleWithID(b.id(), tree.Field("name"), "like",
			tree.Text("pat"+strconv.Itoa(b.rnd.Intn(10))))
	case 3:
		return tree.NewRuleWithID(b.id(), tree.Field("name"), "is_null", nil)
	case 4:
		return tree.NewRuleWithID(b.id(), tree.Field("login"), "starts_with", tree.Text("adm"))
	default:
		return tree.NewRuleWithID(b.id(), tree.Field("AGE"), "greater_or_equal",
			tree.Number(float64(b.rnd.Intn(100))))
	}
}

// Property-based test: on the operator subset both targets bind, SQL and
// Mongo accept and reject exactly the same trees.
func TestCompile_TargetsAgreeOnAcceptance(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("sql and mongo agree on acceptance", prop.ForAll(
		func(seed int64, maxDepth int, includeUnknown bool) bool {
			b := &sharedOpTree{rnd: rand.New(rand.NewSource(seed)), includeUnknown: includeUnknown}
			root := b.group(1, maxDepth)

			_, sqlErr := Compile(root, SQL, Options{})
			_, mongoErr := Compile(root, Mongo, Options{})
			return (sqlErr == nil) == (mongoErr == nil)
		},
		gen.Int64(),
		gen.IntRange(1, 3),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestOptionsCatalogRejectsShadowing(t *testing.T) {
	opts := Options{
		CustomOperators: []TemplateOperator{{
			Info:     registry.OperatorInfo{Name: "equal", Cardinality: 1},
			Template: "{field} = {0}",
		}},
	}

	_, err := opts.Catalog()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shadows a builtin")
}
