package cmd

import (
	"encoding/json"
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Set at build time via ldflags; resolveBuildInfo fills what the
// linker did not.
var (
	Version   = "0.1.0"
	BuildDate = ""
	GitCommit = ""
)

// VersionInfo holds version information for JSON output.
type VersionInfo struct {
	Version   string `json:"version"`
	BuildDate string `json:"buildDate"`
	GitCommit string `json:"gitCommit"`
}

// resolveBuildInfo returns the version info, filling missing fields
// from the module build info stamped by the Go toolchain.
func resolveBuildInfo() VersionInfo {
	info := VersionInfo{Version: Version, BuildDate: BuildDate, GitCommit: GitCommit}

	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.GitCommit == "" {
					info.GitCommit = s.Value
				}
			case "vcs.time":
				if info.BuildDate == "" {
					info.BuildDate = s.Value
				}
			}
		}
	}
	if info.GitCommit == "" {
		info.GitCommit = "unknown"
	}
	if info.BuildDate == "" {
		info.BuildDate = "unknown"
	}
	return info
}

// newVersionCmd creates the version command.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print the version, build date, and git commit of the ruletree CLI.`,
		Args:  cobra.NoArgs,
		Example: `  ruletree version
  ruletree version --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := resolveBuildInfo()

			if outputFormat == "json" {
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(info)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "ruletree v%s\n", info.Version)
			fmt.Fprintf(cmd.OutOrStdout(), "Build Date: %s\n", info.BuildDate)
			fmt.Fprintf(cmd.OutOrStdout(), "Git Commit: %s\n", info.GitCommit)
			return nil
		},
	}
}
