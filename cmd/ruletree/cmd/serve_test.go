package cmd

import (
	"testing"

	clitest "github.com/ruletree/ruletree/cmd/ruletree/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeCommand(t *testing.T) {
	t.Run("has addr flag", func(t *testing.T) {
		rootCmd := NewRootCmd()
		output, err := clitest.ExecuteCommand(rootCmd, "serve", "--help")

		require.NoError(t, err)
		assert.Contains(t, output, "--addr")
	})

	t.Run("describes the exposed surface", func(t *testing.T) {
		rootCmd := NewRootCmd()
		output, err := clitest.ExecuteCommand(rootCmd, "serve", "--help")

		require.NoError(t, err)
		assert.Contains(t, output, "HTTP API")
		assert.Contains(t, output, "health")
		assert.Contains(t, output, "metrics")
	})

	t.Run("does not accept arguments", func(t *testing.T) {
		rootCmd := NewRootCmd()
		_, err := clitest.ExecuteCommand(rootCmd, "serve", "extra")

		assert.Error(t, err)
	})
}

func TestServeCommandHelp(t *testing.T) {
	rootCmd := NewRootCmd()
	output, err := clitest.ExecuteCommand(rootCmd, "serve", "--help")

	require.NoError(t, err)
	assert.Contains(t, output, "serve")
	assert.Contains(t, output, "Usage:")
}
