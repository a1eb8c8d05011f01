package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/billspectre/internal/finding"
	"github.com/ppiankov/billspectre/internal/history"
)

var historyFlags struct {
	path  string
	limit int
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded runs",
	Long:  `Lists previous billspectre runs with their billing total and estimated savings, newest first.`,
	Args:  cobra.NoArgs,
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the findings of a recorded run",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

func init() {
	historyCmd.PersistentFlags().StringVar(&historyFlags.path, "history-db", history.DefaultPath, "Run history database")
	historyCmd.Flags().IntVar(&historyFlags.limit, "limit", 20, "Maximum runs to list (0 for all)")
	historyCmd.AddCommand(historyShowCmd)
}

func runHistoryList(cmd *cobra.Command, _ []string) error {
	store, err := history.NewSQLite(historyFlags.path)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(cmd.Context(), historyFlags.limit)
	if err != nil {
		return err
	}
	return writeRuns(cmd.OutOrStdout(), runs)
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	store, err := history.NewSQLite(historyFlags.path)
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := store.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("run %s: %w", args[0], err)
	}
	findings, err := store.Findings(cmd.Context(), run.ID)
	if err != nil {
		return err
	}
	return writeRun(cmd.OutOrStdout(), run, findings)
}

func writeRuns(w io.Writer, runs []history.Run) error {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tPERIOD\tBILLED\tRESOURCES\tFINDINGS\tSAVINGS/MONTH")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t$%s\t%d\t%d\t$%s\n",
			r.ID, r.StartedAt.UTC().Format("2006-01-02 15:04"), r.Period,
			r.BillingTotal.StringFixed(2), r.Resources, r.FindingCount, r.Savings.StringFixed(2))
	}
	return tw.Flush()
}

func writeRun(w io.Writer, run *history.Run, findings []finding.Finding) error {
	fmt.Fprintf(w, "Run %s\n", run.ID)
	fmt.Fprintf(w, "Period:      %s\n", run.Period)
	fmt.Fprintf(w, "Billed:      $%s\n", run.BillingTotal.StringFixed(2))
	fmt.Fprintf(w, "Regions:     %s\n", strings.Join(run.Regions, ", "))
	fmt.Fprintf(w, "Savings:     $%s/month\n", run.Savings.StringFixed(2))
	if run.ReportPath != "" {
		fmt.Fprintf(w, "Report:      %s\n", run.ReportPath)
	}
	for _, e := range run.Errors {
		fmt.Fprintf(w, "Warning:     %s\n", e)
	}
	fmt.Fprintln(w)

	if len(findings) == 0 {
		fmt.Fprintln(w, "No findings.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSEVERITY\tRULE\tSUBJECT\tREGION\tIMPACT")
	for i, f := range findings {
		region := f.Region
		if region == "" {
			region = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", i+1, f.Severity, f.ID, f.SubjectID, region, f.EstimatedImpact)
	}
	return tw.Flush()
}
