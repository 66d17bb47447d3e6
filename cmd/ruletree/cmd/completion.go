package cmd

import (
	"github.com/spf13/cobra"
)

// newCompletionCmd creates the completion command.
func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion script",
		Long: `Generate a completion script for the named shell.

The script is written to stdout. Load it directly, for example

  source <(ruletree completion bash)
  ruletree completion fish | source

or install it where your shell picks it up at startup:

  ruletree completion bash > /etc/bash_completion.d/ruletree
  ruletree completion zsh  > "${fpath[1]}/_ruletree"
  ruletree completion fish > ~/.config/fish/completions/ruletree.fish`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
}
