package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	hcmerrors "github.com/conneroisu/hcm/internal/errors"
	"github.com/conneroisu/hcm/internal/model"
)

var validateCmd = &cobra.Command{
	Use:   "validate [module-path...]",
	Short: "Load and merge all modules and report any problems",
	Long: `Load every module below the given paths (or the configured module
paths), merge them and report load errors, ordering problems, merge
errors and merge warnings.

Examples:
  hcm validate                     # Validate the configured module paths
  hcm validate ./site ./platform   # Validate specific directories
  hcm validate -f json             # Machine readable report
  hcm validate --strict            # Fail on warnings too`,
	RunE: runValidate,
}

var (
	validateFormat string
	validateStrict bool
)

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateFormat, "format", "f", "text", "output format (text, json)")
	validateCmd.Flags().BoolVar(&validateStrict, "strict", false, "treat merge warnings as errors")

	AddFlagValidation(validateCmd.Flags(), "format", enumValidator([]string{"text", "json"}))
}

// validationReport is the outcome of loading and merging.
type validationReport struct {
	Modules  []string `json:"modules"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (r *validationReport) failed(strict bool) bool {
	return len(r.Errors) > 0 || (strict && len(r.Warnings) > 0)
}

func runValidate(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}

	report, err := ws.validate(cmd.Context(), args)
	if err != nil {
		return err
	}

	strict := validateStrict || ws.cfg.Build.Strict
	switch validateFormat {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
	default:
		writeReport(cmd.OutOrStdout(), report, strict)
	}

	if report.failed(strict) {
		return fmt.Errorf("validation failed with %d error(s) and %d warning(s)",
			len(report.Errors), len(report.Warnings))
	}
	return nil
}

// validate collects every load diagnostic, then the first build error or
// the merge warnings. Only context cancellation is returned as an error.
func (w *workspace) validate(ctx context.Context, roots []string) (*validationReport, error) {
	report := &validationReport{Modules: []string{}, Errors: []string{}, Warnings: []string{}}

	diagnostics, err := w.load(ctx, roots...)
	if diagnostics != nil {
		for _, d := range diagnostics.Diagnostics() {
			if d.Severity == hcmerrors.ErrorSeverityError {
				report.Errors = append(report.Errors, d.Message)
			} else {
				report.Warnings = append(report.Warnings, d.Message)
			}
		}
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		report.Errors = append(report.Errors, err.Error())
		return report, nil
	}

	m, err := w.builder.Build(ctx)
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
		return report, nil
	}

	report.Modules = moduleNames(m)
	for _, warning := range m.Warnings {
		report.Warnings = append(report.Warnings, warning.String())
	}
	return report, nil
}

func moduleNames(m *model.ConfigurationModel) []string {
	modules := m.Modules()
	names := make([]string, 0, len(modules))
	for _, mod := range modules {
		names = append(names, mod.FullName())
	}
	return names
}

func writeReport(w io.Writer, report *validationReport, strict bool) {
	for _, e := range report.Errors {
		fmt.Fprintf(w, "%s %s\n", errorColor.Sprint("error:"), e)
	}
	for _, warning := range report.Warnings {
		fmt.Fprintf(w, "%s %s\n", warningColor.Sprint("warning:"), warning)
	}

	if report.failed(strict) {
		fmt.Fprintln(w, errorColor.Sprintf("✗ %d error(s), %d warning(s)", len(report.Errors), len(report.Warnings)))
		return
	}
	fmt.Fprintln(w, successColor.Sprintf("✓ %d module(s) merged, %d warning(s)", len(report.Modules), len(report.Warnings)))
}
