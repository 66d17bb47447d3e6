package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ruletree/ruletree/internal/ruleql"
	"github.com/ruletree/ruletree/internal/target"
	"github.com/ruletree/ruletree/internal/tree"
	"github.com/ruletree/ruletree/internal/validate"
)

var (
	// compileTarget selects the compilation backend
	compileTarget string
	// compileParameterized emits SQL placeholders instead of literals
	compileParameterized bool
	// compileDialect selects the SQL placeholder style
	compileDialect string
	// compileRuleQL treats the input as RuleQL text instead of JSON
	compileRuleQL bool
)

// newCompileCmd creates the compile command.
func newCompileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile <file>",
		Short: "Compile a rule tree into a query expression",
		Long: `Compile a rule tree document into the selected target:

  sql    a SQL WHERE clause (inline literals or placeholders)
  mongo  a MongoDB filter document
  eval   an expression for in-process row evaluation

The input is a JSON document holding a single tree, or RuleQL text
with --ruleql. The document is validated before compilation.`,
		Args: cobra.ExactArgs(1),
		Example: `  ruletree compile rules.json
  ruletree compile --target mongo rules.json
  ruletree compile --target sql --parameterized --dialect sqlite rules.json
  ruletree compile --ruleql query.rql`,
		RunE: runCompile,
	}

	cmd.Flags().StringVarP(&compileTarget, "target", "t", target.SQL, "compile target (sql|mongo|eval)")
	cmd.Flags().BoolVar(&compileParameterized, "parameterized", false, "emit SQL placeholders and a separate argument list")
	cmd.Flags().StringVar(&compileDialect, "dialect", "", "SQL placeholder dialect (postgres|sqlite)")
	cmd.Flags().BoolVar(&compileRuleQL, "ruleql", false, "treat the input as RuleQL text")

	return cmd
}

func runCompile(cmd *cobra.Command, args []string) error {
	filename := args[0]

	if !target.Known(compileTarget) {
		return fmt.Errorf("unknown compile target %q (known: %s)",
			compileTarget, strings.Join(target.Names(), ", "))
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	opts, err := buildOptions(cfg)
	if err != nil {
		return err
	}
	if compileParameterized {
		opts.Parameterized = true
	}
	if compileDialect != "" {
		opts.Dialect = compileDialect
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	printVerbose(cmd, "Compiling %s for target %s\n", filename, compileTarget)

	var root tree.Node
	if compileRuleQL {
		root, err = ruleql.ParseWithSchema(string(data), opts.Schema)
		if err != nil {
			return fmt.Errorf("ruleql parse failed: %w", err)
		}
	} else {
		root, err = tree.DecodeTree(data)
		if err != nil {
			return fmt.Errorf("malformed document: %w", err)
		}
	}

	catalog, err := opts.Catalog()
	if err != nil {
		return err
	}
	v := validate.New(opts.Schema, catalog, cfg.Compile.ValidateConfig())
	if err := v.Validate(root); err != nil {
		return fmt.Errorf("document failed validation: %w", err)
	}

	res, err := target.Compile(root, compileTarget, opts)
	if err != nil {
		return fmt.Errorf("compile failed: %w", err)
	}

	return printResult(cmd, res)
}

// printResult writes a compile result in the selected output format.
func printResult(cmd *cobra.Command, res *target.Result) error {
	out := cmd.OutOrStdout()

	if outputFormat == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	if res.Expression != "" {
		fmt.Fprintln(out, res.Expression)
	}
	if len(res.Args) > 0 {
		args, err := json.Marshal(res.Args)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "args: %s\n", args)
	}
	if len(res.Filter) > 0 {
		fmt.Fprintln(out, string(res.Filter))
	}
	return nil
}
