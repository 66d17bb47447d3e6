// Package testing provides test utilities for CLI commands.
package testing

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// ExecuteCommand runs a cobra command with the given arguments and
// returns the combined output.
func ExecuteCommand(root *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)

	err := root.Execute()
	return buf.String(), err
}

// CreateTempFile writes content to a fresh .json file and returns its
// path. The file lives under t.TempDir, so it is removed with the test.
func CreateTempFile(t *testing.T, content string) string {
	t.Helper()
	return CreateTempFileWithExt(t, ".json", content)
}

// CreateTempFileWithExt writes content to a fresh file with the given
// extension.
func CreateTempFileWithExt(t *testing.T, ext, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "input"+ext)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

// ResetCommand restores a shared cobra command between test runs: args
// and output streams cleared, every flag back to its default with the
// Changed marker lowered.
func ResetCommand(cmd *cobra.Command) {
	cmd.SetArgs(nil)
	cmd.SetOut(nil)
	cmd.SetErr(nil)

	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
}
