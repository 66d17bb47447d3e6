// Package cmd provides the CLI commands for ruletree.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ruletree/ruletree/internal/config"
	"github.com/ruletree/ruletree/internal/target"
)

var (
	// cfgFile holds the path to the config file
	cfgFile string
	// verbose enables verbose output
	verbose bool
	// outputFormat specifies the output format (json, text)
	outputFormat string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ruletree",
	Short: "Rule tree validator and query compiler",
	Long: `ruletree validates JSON rule tree documents and compiles them
into SQL WHERE clauses, MongoDB filter documents, or executable
predicates for in-process row evaluation.

Documents use the rule-tree grammar of visual query builders: groups
joined by AND/OR, rules binding a field to an operator and values,
optional negation on both.`,
	SilenceUsage: true,

	// main prints the error once; without this cobra would print it too.
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// NewRootCmd creates a new root command for testing.
// This allows tests to create fresh command trees.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ruletree",
		Short:         rootCmd.Short,
		Long:          rootCmd.Long,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	addRootFlags(cmd)
	addSubcommands(cmd)

	return cmd
}

func addRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	cmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "output format (json|text)")
}

func addSubcommands(cmd *cobra.Command) {
	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newCompileCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newWorkerCmd())
	cmd.AddCommand(newTokenCmd())
	cmd.AddCommand(newCompletionCmd())
}

func init() {
	addRootFlags(rootCmd)
	addSubcommands(rootCmd)
}

// loadConfig reads the configured file (or defaults when --config is
// not given) with environment overrides applied.
func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// buildOptions assembles the compile options a config describes: the
// field catalog, custom operators, and the compiler knobs.
func buildOptions(cfg *config.Config) (target.Options, error) {
	sc, err := cfg.BuildSchema()
	if err != nil {
		return target.Options{}, err
	}
	ops, err := cfg.TemplateOperators()
	if err != nil {
		return target.Options{}, err
	}
	return target.Options{
		ReverseOperators:   cfg.Compile.ReverseOperators,
		Schema:             sc,
		MaxNesting:         cfg.Compile.MaxNesting,
		CanLeaveEmptyGroup: cfg.Compile.CanLeaveEmptyGroup,
		CustomOperators:    ops,
	}, nil
}

// printVerbose prints message only if verbose mode is enabled.
func printVerbose(cmd *cobra.Command, format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(cmd.OutOrStdout(), format, args...)
	}
}
