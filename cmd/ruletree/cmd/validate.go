package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ruletree/ruletree/internal/registry"
	"github.com/ruletree/ruletree/internal/schema"
	"github.com/ruletree/ruletree/internal/tree"
	"github.com/ruletree/ruletree/internal/validate"
)

// newValidateCmd creates the validate command.
func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file>...",
		Short: "Validate rule tree documents",
		Long: `Validate one or more JSON rule tree documents.

Each file may hold a single tree or a batch (a JSON array of trees).
Every tree is checked against the operator catalog and, when the
config defines a field schema, against the field catalog too.

Exit code 0 means every file is valid; any finding exits 1.`,
		Args: cobra.MinimumNArgs(1),
		Example: `  ruletree validate rules.json
  ruletree validate --config ruletree.yaml rules/*.json
  ruletree validate --output json rules.json`,
		RunE: runValidate,
	}

	return cmd
}

// fileReport is the validation outcome for one input file.
type fileReport struct {
	File         string   `json:"file"`
	Valid        bool     `json:"valid"`
	Trees        int      `json:"trees,omitempty"`
	Errors       []string `json:"errors,omitempty"`
	Deprecations []string `json:"deprecations,omitempty"`
}

// validateSummary is the whole run, for JSON output.
type validateSummary struct {
	Files   []fileReport `json:"files"`
	Valid   int          `json:"valid"`
	Invalid int          `json:"invalid"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	opts, err := buildOptions(cfg)
	if err != nil {
		return err
	}
	catalog, err := opts.Catalog()
	if err != nil {
		return err
	}

	summary := validateSummary{Files: make([]fileReport, 0, len(args))}
	for _, path := range args {
		printVerbose(cmd, "Validating %s\n", path)

		report := validateFile(path, cfg.Compile.ValidateConfig(), opts.Schema, catalog)
		if report.Valid {
			summary.Valid++
		} else {
			summary.Invalid++
		}
		summary.Files = append(summary.Files, report)
	}

	switch outputFormat {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			return err
		}
	default:
		printValidateText(cmd, summary)
	}

	if summary.Invalid > 0 {
		return fmt.Errorf("%d of %d files failed validation", summary.Invalid, len(args))
	}
	return nil
}

// validateFile decodes and validates one document. Decode failures are
// findings, not hard errors, so a bad file in a batch run still yields
// a report.
func validateFile(path string, vcfg validate.Config, sc *schema.Schema, catalog registry.Catalog) fileReport {
	report := fileReport{File: path}

	data, err := os.ReadFile(path)
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
		return report
	}

	doc, err := tree.Decode(data)
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
		return report
	}

	report.Trees = len(doc.Trees)
	for _, dep := range doc.Deprecations {
		report.Deprecations = append(report.Deprecations,
			fmt.Sprintf("node %q: %s", dep.NodeID, dep.Message))
	}

	for i, root := range doc.Trees {
		v := validate.New(sc, catalog, vcfg)
		err := v.Validate(root)
		if err == nil {
			continue
		}
		ve, ok := validate.AsErrors(err)
		if !ok {
			report.Errors = append(report.Errors, err.Error())
			continue
		}
		for _, e := range ve.Errors {
			msg := e.Error()
			if len(doc.Trees) > 1 {
				msg = fmt.Sprintf("rules[%d]: %s", i, msg)
			}
			report.Errors = append(report.Errors, msg)
		}
	}

	report.Valid = len(report.Errors) == 0
	return report
}

func printValidateText(cmd *cobra.Command, summary validateSummary) {
	out := cmd.OutOrStdout()
	for _, report := range summary.Files {
		if report.Valid {
			fmt.Fprintf(out, "%s: valid\n", report.File)
		} else {
			fmt.Fprintf(out, "%s: %d error(s)\n", report.File, len(report.Errors))
			for _, msg := range report.Errors {
				fmt.Fprintf(out, "  %s\n", msg)
			}
		}
		for _, dep := range report.Deprecations {
			fmt.Fprintf(out, "  warning: %s\n", dep)
		}
	}
	fmt.Fprintf(out, "%d valid, %d with errors\n", summary.Valid, summary.Invalid)
}
