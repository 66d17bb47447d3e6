package cmd

import (
	"encoding/json"
	"os"
	"strings"
	"testing"

	clitest "github.com/ruletree/ruletree/cmd/ruletree/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruletree/ruletree/internal/target"
)

func TestCompileCommand(t *testing.T) {
	t.Run("compiles to sql by default", func(t *testing.T) {
		tmpfile := clitest.CreateTempFile(t, validDoc)
		defer os.Remove(tmpfile)

		rootCmd := NewRootCmd()
		output, err := clitest.ExecuteCommand(rootCmd, "compile", tmpfile)

		require.NoError(t, err)
		assert.Contains(t, output, "AGE = 30")
	})

	t.Run("compiles to eval target", func(t *testing.T) {
		tmpfile := clitest.CreateTempFile(t, validDoc)
		defer os.Remove(tmpfile)

		rootCmd := NewRootCmd()
		output, err := clitest.ExecuteCommand(rootCmd, "compile", "--target", "eval", tmpfile)

		require.NoError(t, err)
		assert.Contains(t, output, "AGE == 30")
	})

	t.Run("compiles to mongo target", func(t *testing.T) {
		tmpfile := clitest.CreateTempFile(t, validDoc)
		defer os.Remove(tmpfile)

		rootCmd := NewRootCmd()
		output, err := clitest.ExecuteCommand(rootCmd, "compile", "--target", "mongo", tmpfile)

		require.NoError(t, err)
		assert.Contains(t, output, "$eq")
		assert.Contains(t, output, "AGE")
	})

	t.Run("parameterized sql uses placeholders", func(t *testing.T) {
		tmpfile := clitest.CreateTempFile(t, validDoc)
		defer os.Remove(tmpfile)

		rootCmd := NewRootCmd()
		output, err := clitest.ExecuteCommand(rootCmd, "compile", "--parameterized", tmpfile)

		require.NoError(t, err)
		assert.Contains(t, output, "AGE = $1")
		assert.Contains(t, output, "args: [30]")
	})

	t.Run("sqlite dialect uses question marks", func(t *testing.T) {
		tmpfile := clitest.CreateTempFile(t, validDoc)
		defer os.Remove(tmpfile)

		rootCmd := NewRootCmd()
		output, err := clitest.ExecuteCommand(rootCmd, "compile",
			"--parameterized", "--dialect", "sqlite", tmpfile)

		require.NoError(t, err)
		assert.Contains(t, output, "AGE = ?")
	})

	t.Run("compiles ruleql input", func(t *testing.T) {
		tmpfile := clitest.CreateTempFileWithExt(t, ".rql", `AGE == 30`)
		defer os.Remove(tmpfile)

		rootCmd := NewRootCmd()
		output, err := clitest.ExecuteCommand(rootCmd, "compile", "--ruleql", tmpfile)

		require.NoError(t, err)
		assert.Contains(t, output, "AGE = 30")
	})

	t.Run("outputs json result", func(t *testing.T) {
		tmpfile := clitest.CreateTempFile(t, validDoc)
		defer os.Remove(tmpfile)

		rootCmd := NewRootCmd()
		output, err := clitest.ExecuteCommand(rootCmd, "compile", "--output", "json", tmpfile)

		require.NoError(t, err)
		var res target.Result
		require.NoError(t, json.Unmarshal([]byte(output), &res))
		assert.Equal(t, target.SQL, res.Target)
		assert.Equal(t, "AGE = 30", res.Expression)
	})

	t.Run("rejects unknown target", func(t *testing.T) {
		tmpfile := clitest.CreateTempFile(t, validDoc)
		defer os.Remove(tmpfile)

		rootCmd := NewRootCmd()
		_, err := clitest.ExecuteCommand(rootCmd, "compile", "--target", "graphql", tmpfile)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unknown compile target")
	})

	t.Run("rejects invalid document", func(t *testing.T) {
		tmpfile := clitest.CreateTempFile(t, unknownOperatorDoc)
		defer os.Remove(tmpfile)

		rootCmd := NewRootCmd()
		_, err := clitest.ExecuteCommand(rootCmd, "compile", tmpfile)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed validation")
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		tmpfile := clitest.CreateTempFile(t, `{not json`)
		defer os.Remove(tmpfile)

		rootCmd := NewRootCmd()
		_, err := clitest.ExecuteCommand(rootCmd, "compile", tmpfile)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "malformed document")
	})

	t.Run("handles missing file", func(t *testing.T) {
		rootCmd := NewRootCmd()
		_, err := clitest.ExecuteCommand(rootCmd, "compile", "nonexistent.json")

		assert.Error(t, err)
	})

	t.Run("requires file argument", func(t *testing.T) {
		rootCmd := NewRootCmd()
		_, err := clitest.ExecuteCommand(rootCmd, "compile")

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "accepts 1 arg")
	})

	t.Run("verbose mode shows target", func(t *testing.T) {
		tmpfile := clitest.CreateTempFile(t, validDoc)
		defer os.Remove(tmpfile)

		rootCmd := NewRootCmd()
		output, err := clitest.ExecuteCommand(rootCmd, "compile", "--verbose", tmpfile)

		require.NoError(t, err)
		assert.True(t, strings.Contains(output, "Compiling"))
	})
}

func TestCompileCommandHelp(t *testing.T) {
	rootCmd := NewRootCmd()
	output, err := clitest.ExecuteCommand(rootCmd, "compile", "--help")

	require.NoError(t, err)
	assert.Contains(t, output, "Compile")
	assert.Contains(t, output, "--target")
	assert.Contains(t, output, "--parameterized")
	assert.Contains(t, output, "--dialect")
	assert.Contains(t, output, "--ruleql")
}
