package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
)

// Generate writes human-readable terminal output.
func (r *TextReporter) Generate(data Data) error {
	tw := tabwriter.NewWriter(r.Writer, 0, 4, 2, ' ', 0)
	w := &errWriter{w: r.Writer}

	w.println("billspectre - AWS Cost Optimization Report")
	w.println(strings.Repeat("=", 42))
	w.printf("Billing period: %s\n", data.Period)
	w.printf("Total cost:     $%s\n\n", data.BillingTotal.StringFixed(2))

	if len(data.Findings) == 0 {
		w.println("No optimization opportunities found.")
		w.println("")
		writeTextSummary(w, data)
		return w.err
	}

	w.printf("Found %d recommendations with estimated monthly savings of $%s\n\n",
		data.Summary.TotalFindings, data.Summary.TotalMonthlySavings.StringFixed(2))

	tw2 := &errWriter{w: tw}
	tw2.printf("SEVERITY\tCATEGORY\tRESOURCE\tREGION\tIMPACT\tTITLE\n")
	tw2.printf("--------\t--------\t--------\t------\t------\t-----\n")

	for _, f := range data.Findings {
		category := "-"
		if f.Category != "" {
			category = f.Category.Short()
		}
		region := f.Region
		if region == "" {
			region = "-"
		}
		tw2.printf("%s\t%s\t%s\t%s\t%s\t%s\n",
			f.Severity, category, f.SubjectID, region, f.EstimatedImpact, f.Title)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	w.println("")
	writeTextSummary(w, data)
	return w.err
}

func writeTextSummary(w *errWriter, data Data) {
	w.println("Summary")
	w.println("-------")
	w.printf("Categories scanned:        %d\n", data.Summary.CategoriesScanned)
	w.printf("Resources scanned:         %d\n", data.Summary.TotalResourcesScanned)
	w.printf("Total findings:            %d\n", data.Summary.TotalFindings)
	w.printf("Estimated monthly savings: $%s\n", data.Summary.TotalMonthlySavings.StringFixed(2))

	if len(data.Summary.BySeverity) > 0 {
		parts := formatMapSorted(data.Summary.BySeverity)
		w.printf("By severity:               %s\n", strings.Join(parts, ", "))
	}
	if len(data.Summary.ByCategory) > 0 {
		parts := formatMapSorted(data.Summary.ByCategory)
		w.printf("By category:               %s\n", strings.Join(parts, ", "))
	}
	if data.ReportPath != "" {
		w.printf("\nReport saved to: %s\n", data.ReportPath)
	}

	if len(data.Errors) > 0 {
		w.printf("\nWarnings (%d):\n", len(data.Errors))
		for _, e := range data.Errors {
			w.printf("  - %s\n", e)
		}
	}
}

// errWriter wraps an io.Writer and captures the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func (ew *errWriter) println(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintln(ew.w, s)
}

func formatMapSorted(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, m[k]))
	}
	return parts
}
