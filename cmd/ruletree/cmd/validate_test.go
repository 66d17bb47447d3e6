package cmd

import (
	"encoding/json"
	"os"
	"testing"

	clitest "github.com/ruletree/ruletree/cmd/ruletree/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDoc = `{
	"id": "root", "type": "group",
	"properties": {"conjunction": "AND", "not": false},
	"children1": [
		{"id": "r1", "type": "rule",
		 "properties": {"field": "AGE", "fieldSrc": "field", "operator": "equal",
		                "value": [30], "valueSrc": ["value"], "valueType": ["number"]}}
	]
}`

const unknownOperatorDoc = `{
	"id": "root", "type": "group",
	"properties": {"conjunction": "AND"},
	"children1": [
		{"id": "r1", "type": "rule",
		 "properties": {"field": "AGE", "operator": "frobnicate",
		                "value": [30], "valueSrc": ["value"], "valueType": ["number"]}}
	]
}`

const batchDoc = `{"rules": [
	{"id": "a", "type": "group", "properties": {"conjunction": "AND"}, "children1": [
		{"id": "a1", "type": "rule", "properties": {"field": "name", "operator": "is_null"}}
	]},
	{"id": "b", "type": "group", "properties": {"conjunction": "OR"}, "children1": [
		{"id": "b1", "type": "rule", "properties": {"field": "name", "operator": "is_not_null"}}
	]}
]}`

const legacySpellingDoc = `{
	"id": "root", "type": "group",
	"properties": {"conjunction": "AND"},
	"children1": [
		{"id": "r1", "type": "rule",
		 "properties": {"field": "AGE", "filedSrc": "field", "operator": "equal",
		                "value": [30], "valueSrc": ["value"], "valueType": ["number"]}}
	]
}`

func TestValidateCommand(t *testing.T) {
	t.Run("validates correct file", func(t *testing.T) {
		tmpfile := clitest.CreateTempFile(t, validDoc)
		defer os.Remove(tmpfile)

		rootCmd := NewRootCmd()
		output, err := clitest.ExecuteCommand(rootCmd, "validate", tmpfile)

		assert.NoError(t, err)
		assert.Contains(t, output, "valid")
		assert.Contains(t, output, "1 valid, 0 with errors")
	})

	t.Run("validates batch file", func(t *testing.T) {
		tmpfile := clitest.CreateTempFile(t, batchDoc)
		defer os.Remove(tmpfile)

		rootCmd := NewRootCmd()
		output, err := clitest.ExecuteCommand(rootCmd, "validate", tmpfile)

		assert.NoError(t, err)
		assert.Contains(t, output, "valid")
	})

	t.Run("detects unknown operator", func(t *testing.T) {
		tmpfile := clitest.CreateTempFile(t, unknownOperatorDoc)
		defer os.Remove(tmpfile)

		rootCmd := NewRootCmd()
		output, err := clitest.ExecuteCommand(rootCmd, "validate", tmpfile)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "1 of 1 files failed validation")
		assert.Contains(t, output, `unknown operator "frobnicate"`)
		assert.Contains(t, output, `node "r1"`)
	})

	t.Run("reports legacy property spelling as warning", func(t *testing.T) {
		tmpfile := clitest.CreateTempFile(t, legacySpellingDoc)
		defer os.Remove(tmpfile)

		rootCmd := NewRootCmd()
		output, err := clitest.ExecuteCommand(rootCmd, "validate", tmpfile)

		assert.NoError(t, err)
		assert.Contains(t, output, "warning:")
		assert.Contains(t, output, "legacy misspelling")
	})

	t.Run("reports malformed json as finding", func(t *testing.T) {
		tmpfile := clitest.CreateTempFile(t, `{not json`)
		defer os.Remove(tmpfile)

		rootCmd := NewRootCmd()
		output, err := clitest.ExecuteCommand(rootCmd, "validate", tmpfile)

		assert.Error(t, err)
		assert.Contains(t, output, "1 error(s)")
	})

	t.Run("handles missing file", func(t *testing.T) {
		rootCmd := NewRootCmd()
		_, err := clitest.ExecuteCommand(rootCmd, "validate", "nonexistent.json")

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed validation")
	})

	t.Run("mixes valid and invalid files", func(t *testing.T) {
		good := clitest.CreateTempFile(t, validDoc)
		defer os.Remove(good)
		bad := clitest.CreateTempFile(t, unknownOperatorDoc)
		defer os.Remove(bad)

		rootCmd := NewRootCmd()
		output, err := clitest.ExecuteCommand(rootCmd, "validate", good, bad)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "1 of 2 files failed validation")
		assert.Contains(t, output, "1 valid, 1 with errors")
	})

	t.Run("outputs json summary", func(t *testing.T) {
		tmpfile := clitest.CreateTempFile(t, validDoc)
		defer os.Remove(tmpfile)

		rootCmd := NewRootCmd()
		output, err := clitest.ExecuteCommand(rootCmd, "validate", "--output", "json", tmpfile)

		require.NoError(t, err)
		var summary validateSummary
		require.NoError(t, json.Unmarshal([]byte(output), &summary))
		assert.Equal(t, 1, summary.Valid)
		assert.Equal(t, 0, summary.Invalid)
		require.Len(t, summary.Files, 1)
		assert.True(t, summary.Files[0].Valid)
		assert.Equal(t, 1, summary.Files[0].Trees)
	})

	t.Run("requires file argument", func(t *testing.T) {
		rootCmd := NewRootCmd()
		_, err := clitest.ExecuteCommand(rootCmd, "validate")

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "requires at least 1 arg")
	})

	t.Run("verbose mode shows file names", func(t *testing.T) {
		tmpfile := clitest.CreateTempFile(t, validDoc)
		defer os.Remove(tmpfile)

		rootCmd := NewRootCmd()
		output, err := clitest.ExecuteCommand(rootCmd, "validate", "--verbose", tmpfile)

		assert.NoError(t, err)
		assert.Contains(t, output, "Validating")
	})

	t.Run("checks fields against configured schema", func(t *testing.T) {
		cfgPath := clitest.CreateTempFileWithExt(t, ".yaml", `
schema:
  - name: AGE
    type: number
`)
		defer os.Remove(cfgPath)
		tmpfile := clitest.CreateTempFile(t, `{
			"id": "root", "type": "group",
			"properties": {"conjunction": "AND"},
			"children1": [
				{"id": "r1", "type": "rule",
				 "properties": {"field": "nonexistent", "operator": "is_null"}}
			]
		}`)
		defer os.Remove(tmpfile)

		rootCmd := NewRootCmd()
		output, err := clitest.ExecuteCommand(rootCmd, "validate", "--config", cfgPath, tmpfile)

		assert.Error(t, err)
		assert.Contains(t, output, `unknown field`)
	})
}

func TestValidateCommandHelp(t *testing.T) {
	rootCmd := NewRootCmd()
	output, err := clitest.ExecuteCommand(rootCmd, "validate", "--help")

	require.NoError(t, err)
	assert.Contains(t, output, "Validate")
	assert.Contains(t, output, "Usage:")
}
