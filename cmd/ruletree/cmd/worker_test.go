package cmd

import (
	"os"
	"testing"

	clitest "github.com/ruletree/ruletree/cmd/ruletree/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerCommand(t *testing.T) {
	t.Run("describes the processed tasks", func(t *testing.T) {
		rootCmd := NewRootCmd()
		output, err := clitest.ExecuteCommand(rootCmd, "worker", "--help")

		require.NoError(t, err)
		assert.Contains(t, output, "worker")
		assert.Contains(t, output, "cache")
		assert.Contains(t, output, "purge")
	})

	t.Run("refuses to start when jobs are disabled", func(t *testing.T) {
		rootCmd := NewRootCmd()
		_, err := clitest.ExecuteCommand(rootCmd, "worker")

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "jobs are not enabled")
	})

	t.Run("refuses to start when config disables jobs", func(t *testing.T) {
		cfgPath := clitest.CreateTempFileWithExt(t, ".yaml", "jobs:\n  enabled: false\n")
		defer os.Remove(cfgPath)

		rootCmd := NewRootCmd()
		_, err := clitest.ExecuteCommand(rootCmd, "worker", "--config", cfgPath)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "jobs are not enabled")
	})

	t.Run("does not accept arguments", func(t *testing.T) {
		rootCmd := NewRootCmd()
		_, err := clitest.ExecuteCommand(rootCmd, "worker", "extra")

		assert.Error(t, err)
	})
}

func TestWorkerCommandHelp(t *testing.T) {
	rootCmd := NewRootCmd()
	output, err := clitest.ExecuteCommand(rootCmd, "worker", "--help")

	require.NoError(t, err)
	assert.Contains(t, output, "worker")
	assert.Contains(t, output, "Usage:")
}
