package cmd

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	hcmerrors "github.com/conneroisu/hcm/internal/errors"
	"github.com/conneroisu/hcm/internal/tree"
)

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)
	successColor = color.New(color.FgGreen)
	headerColor  = color.New(color.Bold)
)

// printDiagnostics writes one line per diagnostic, errors in red and
// warnings in yellow.
func printDiagnostics(w io.Writer, diagnostics []hcmerrors.Diagnostic) {
	for _, d := range diagnostics {
		label := warningColor.Sprint(d.Severity.String() + ":")
		if d.Severity == hcmerrors.ErrorSeverityError {
			label = errorColor.Sprint(d.Severity.String() + ":")
		}
		fmt.Fprintf(w, "%s %s\n", label, d.Message)
	}
}

// printSuggestions writes fix hints for err, if there are any.
func printSuggestions(w io.Writer, err error) {
	if text := hcmerrors.FormatSuggestions(hcmerrors.Suggestions(err)); text != "" {
		fmt.Fprint(w, text)
	}
}

func printWarnings(w io.Writer, warnings []tree.Warning) {
	for _, warning := range warnings {
		fmt.Fprintf(w, "%s %s\n", warningColor.Sprint("warning:"), warning)
	}
}
