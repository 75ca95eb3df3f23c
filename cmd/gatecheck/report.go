package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/caliperhq/gatecheck/internal/invariant"
)

// renderReport writes a check report as a column-aligned table.
func renderReport(w io.Writer, report invariant.Report) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CHECK\tRESULT\tMESSAGE")
	fmt.Fprintf(tw, "%s\t%s\t%s\n", strings.Repeat("-", 5), strings.Repeat("-", 6), strings.Repeat("-", 7))
	for _, check := range report.Checks {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", check.Name, check.Result, check.Message)
	}
	_ = tw.Flush() //nolint:errcheck // terminal output

	fmt.Fprintf(w, "\nrun %s: %d passed, %d failed, %d warned, %d skipped\n",
		report.RunID, report.Passed, report.Failed, report.Warned, report.Skipped)
}
