package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_SingleRuleTree(t *testing.T) {
	input := `{
		"id": "root", "type": "group",
		"properties": {"conjunction": "AND", "not": false},
		"children1": [
			{"id": "r1", "type": "rule",
			 "properties": {"field": "AGE", "fieldSrc": "field", "operator": "equal",
			                "value": [30], "valueSrc": ["value"], "valueType": ["number"]}}
		]
	}`

	node, err := DecodeTree([]byte(input))
	require.NoError(t, err)

	group, ok := node.(*GroupNode)
	require.True(t, ok, "root should decode as a group")
	assert.Equal(t, "root", group.ID())
	assert.Equal(t, ConjunctionAnd, group.Conjunction)
	assert.False(t, group.Negated)
	require.Len(t, group.Children, 1)

	rule, ok := group.Children[0].(*RuleNode)
	require.True(t, ok)
	assert.Equal(t, "r1", rule.ID())
	assert.Equal(t, "equal", rule.Operator)
	assert.Equal(t, TypeNumber, rule.ValueType)
	assert.Equal(t, SourceValue, rule.ValueSrc)

	field, ok := rule.Field.(*PlainField)
	require.True(t, ok)
	assert.Equal(t, "AGE", field.Name)

	num, ok := rule.Value.(*NumberValue)
	require.True(t, ok)
	assert.Equal(t, 30.0, num.Val)
}

func TestDecode_BatchDocument(t *testing.T) {
	input := `{"rules": [
		{"id": "a", "type": "group", "properties": {"conjunction": "AND"}, "children1": [
			{"id": "a1", "type": "rule", "properties": {"field": "name", "operator": "is_null"}}
		]},
		{"id": "b", "type": "group", "properties": {"conjunction": "OR"}, "children1": [
			{"id": "b1", "type": "rule", "properties": {"field": "name", "operator": "is_not_null"}}
		]}
	]}`

	doc, err := Decode([]byte(input))
	require.NoError(t, err)
	require.Len(t, doc.Trees, 2)
	assert.Equal(t, "a", doc.Trees[0].ID())
	assert.Equal(t, "b", doc.Trees[1].ID())

	second, ok := doc.Trees[1].(*GroupNode)
	require.True(t, ok)
	assert.Equal(t, ConjunctionOr, second.Conjunction)
}

func TestDecode_ScalarValueShape(t *testing.T) {
	// Hand-written documents often use bare scalars instead of slot arrays.
	input := `{"id": "g", "type": "group", "properties": {}, "children1": [
		{"id": "r", "type": "rule",
		 "properties": {"field": "login", "operator": "equal",
		                "value": "root", "valueSrc": "value", "valueType": "text"}}
	]}`

	node, err := DecodeTree([]byte(input))
	require.NoError(t, err)

	rule := node.(*GroupNode).Children[0].(*RuleNode)
	str, ok := rule.Value.(*StringValue)
	require.True(t, ok)
	assert.Equal(t, "root", str.Val)
	assert.Equal(t, TypeText, str.Type)
}

func TestDecode_BetweenSlots(t *testing.T) {
	input := `{"id": "g", "type": "group", "properties": {"conjunction": "AND"}, "children1": [
		{"id": "r", "type": "rule",
		 "properties": {"field": "score", "operator": "between",
		                "value": [10, 20], "valueSrc": ["value", "value"],
		                "valueType": ["number", "number"]}}
	]}`

	node, err := DecodeTree([]byte(input))
	require.NoError(t, err)

	rule := node.(*GroupNode).Children[0].(*RuleNode)
	list, ok := rule.Value.(*ListValue)
	require.True(t, ok, "two slots should decode as a list")
	require.Len(t, list.Items, 2)
	assert.Equal(t, 10.0, list.Items[0].(*NumberValue).Val)
	assert.Equal(t, 20.0, list.Items[1].(*NumberValue).Val)
}

func TestDecode_FieldFunctionCall(t *testing.T) {
	input := `{"id": "g", "type": "group", "properties": {"conjunction": "AND"}, "children1": [
		{"id": "r", "type": "rule",
		 "properties": {
			"field": {"func": "LOWER", "args": {"str": {"value": "login", "valueSrc": "field", "valueType": "text"}}},
			"fieldSrc": "func", "operator": "equal",
			"value": ["root"], "valueSrc": ["value"], "valueType": ["text"]}}
	]}`

	node, err := DecodeTree([]byte(input))
	require.NoError(t, err)

	rule := node.(*GroupNode).Children[0].(*RuleNode)
	call, ok := rule.Field.(*FuncCall)
	require.True(t, ok)
	assert.Equal(t, "LOWER", call.Func)
	require.Len(t, call.Args, 1)
	assert.Equal(t, "str", call.Args[0].Name)

	ref, ok := call.Args[0].Value.(*FieldReference)
	require.True(t, ok)
	assert.Equal(t, "login", ref.Name)
	assert.Equal(t, TypeText, ref.Type)
}

func TestDecode_NestedFunctionArgs(t *testing.T) {
	input := `{"id": "g", "type": "group", "properties": {"conjunction": "AND"}, "children1": [
		{"id": "r", "type": "rule",
		 "properties": {
			"field": {"func": "LINEAR_REGRESSION", "args": {
				"coef": {"value": 3, "valueSrc": "value", "valueType": "number"},
				"bias": {"value": 0, "valueSrc": "value", "valueType": "number"},
				"val": {"value": {"func": "LOWER", "args": {"str": {"value": "name", "valueSrc": "field"}}}, "valueSrc": "func"}
			}},
			"fieldSrc": "func", "operator": "greater",
			"value": [42], "valueSrc": ["value"], "valueType": ["number"]}}
	]}`

	node, err := DecodeTree([]byte(input))
	require.NoError(t, err)

	rule := node.(*GroupNode).Children[0].(*RuleNode)
	call := rule.Field.(*FuncCall)
	require.Len(t, call.Args, 3)
	assert.Equal(t, []string{"coef", "bias", "val"},
		[]string{call.Args[0].Name, call.Args[1].Name, call.Args[2].Name},
		"argument order should follow the document")

	nested, ok := call.Args[2].Value.(*FuncCall)
	require.True(t, ok)
	assert.Equal(t, "LOWER", nested.Func)
}

func TestDecode_ValueSideFieldReference(t *testing.T) {
	input := `{"id": "g", "type": "group", "properties": {"conjunction": "AND"}, "children1": [
		{"id": "r", "type": "rule",
		 "properties": {"field": "age", "operator": "greater",
		                "value": ["min_age"], "valueSrc": ["field"], "valueType": ["number"]}}
	]}`

	node, err := DecodeTree([]byte(input))
	require.NoError(t, err)

	rule := node.(*GroupNode).Children[0].(*RuleNode)
	ref, ok := rule.Value.(*FieldReference)
	require.True(t, ok)
	assert.Equal(t, "min_age", ref.Name)
	assert.Equal(t, TypeNumber, ref.Type)
	assert.Equal(t, SourceField, rule.ValueSrc)
}

func TestDecode_FiledSrcDeprecation(t *testing.T) {
	input := `{"id": "g", "type": "group", "properties": {"conjunction": "AND"}, "children1": [
		{"id": "r", "type": "rule",
		 "properties": {"field": "age", "filedSrc": "field", "operator": "is_null"}}
	]}`

	doc, err := Decode([]byte(input))
	require.NoError(t, err)
	require.Len(t, doc.Deprecations, 1)
	assert.Equal(t, "r", doc.Deprecations[0].NodeID)
	assert.Equal(t, "filedSrc", doc.Deprecations[0].Key)
}

func TestDecode_FieldSrcWinsOverMisspelling(t *testing.T) {
	input := `{"id": "g", "type": "group", "properties": {"conjunction": "AND"}, "children1": [
		{"id": "r", "type": "rule",
		 "properties": {"field": "age", "fieldSrc": "field", "filedSrc": "field", "operator": "is_null"}}
	]}`

	doc, err := Decode([]byte(input))
	require.NoError(t, err)
	assert.Empty(t, doc.Deprecations, "canonical spelling present, no deprecation")
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "unknown node type",
			input: `{"id": "x", "type": "widget", "properties": {}}`,
		},
		{
			name:  "missing node type",
			input: `{"id": "x", "properties": {}}`,
		},
		{
			name:  "missing id",
			input: `{"type": "group", "properties": {"conjunction": "AND"}}`,
		},
		{
			name:  "rule without operator",
			input: `{"id": "r", "type": "rule", "properties": {"field": "age"}}`,
		},
		{
			name:  "rule without field",
			input: `{"id": "r", "type": "rule", "properties": {"operator": "equal", "value": [1]}}`,
		},
		{
			name:  "bad conjunction",
			input: `{"id": "g", "type": "group", "properties": {"conjunction": "XOR"}}`,
		},
		{
			name:  "not json",
			input: `{{`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeTree([]byte(tt.input))
			require.Error(t, err)
		})
	}
}

func TestDecode_MalformedNodeErrorCarriesID(t *testing.T) {
	input := `{"id": "g", "type": "group", "properties": {"conjunction": "AND"}, "children1": [
		{"id": "bad-rule", "type": "rule", "properties": {"field": "age"}}
	]}`

	_, err := DecodeTree([]byte(input))
	require.Error(t, err)

	var malformed *MalformedNodeError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "bad-rule", malformed.NodeID)
	assert.Equal(t, "operator", malformed.Key)
}

func TestDecode_GroupDefaults(t *testing.T) {
	input := `{"id": "g", "type": "group", "properties": {}}`

	node, err := DecodeTree([]byte(input))
	require.NoError(t, err)

	group := node.(*GroupNode)
	assert.Equal(t, ConjunctionAnd, group.Conjunction, "conjunction defaults to AND")
	assert.False(t, group.Negated)
	assert.Empty(t, group.Children)
}
