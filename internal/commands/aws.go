package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/ppiankov/billspectre/internal/billing"
	"github.com/ppiankov/billspectre/internal/classifier"
	"github.com/ppiankov/billspectre/internal/config"
	"github.com/ppiankov/billspectre/internal/history"
	"github.com/ppiankov/billspectre/internal/inventory"
	"github.com/ppiankov/billspectre/internal/pipeline"
	"github.com/ppiankov/billspectre/internal/report"
	"github.com/ppiankov/billspectre/internal/telemetry"
)

const (
	defaultFormat      = "text"
	defaultOutputDir   = "."
	defaultTimeout     = 30 * time.Minute
	defaultConcurrency = pipeline.DefaultConcurrency
)

var awsFlags struct {
	profile          string
	regions          []string
	services         []string
	outputDir        string
	format           string
	outputFile       string
	minMonthlyImpact float64
	telemetryDays    int
	concurrency      int
	noProgress       bool
	timeout          time.Duration
	historyDB        string
	noHistory        bool
}

var awsCmd = &cobra.Command{
	Use:   "aws",
	Short: "Analyze last month's AWS bill and recommend savings",
	Long: `Read last month's AWS bill, discover the live resources behind every billed
service, attribute spend to each resource, read utilization from CloudWatch
and emit ranked cost-optimization recommendations. A multi-sheet Excel report
is written to the output directory.`,
	RunE: runAWS,
}

func init() {
	awsCmd.Flags().StringVar(&awsFlags.profile, "profile", "", "AWS profile name")
	awsCmd.Flags().StringSliceVar(&awsFlags.regions, "regions", nil, "Regions to scan (default: all enabled regions)")
	awsCmd.Flags().StringSliceVar(&awsFlags.services, "services", nil, "Only analyze these services, e.g. ec2,rds,s3")
	awsCmd.Flags().StringVar(&awsFlags.outputDir, "output-dir", defaultOutputDir, "Directory for the Excel report")
	awsCmd.Flags().StringVar(&awsFlags.format, "format", defaultFormat, "Console output format: text, json, sarif, spectrehub")
	awsCmd.Flags().StringVarP(&awsFlags.outputFile, "output", "o", "", "Console output file path (default: stdout)")
	awsCmd.Flags().Float64Var(&awsFlags.minMonthlyImpact, "min-monthly-impact", 0, "Hide quantified findings below this monthly impact ($)")
	awsCmd.Flags().IntVar(&awsFlags.telemetryDays, "telemetry-days", telemetry.DefaultDays, "Days of CloudWatch history to read")
	awsCmd.Flags().IntVar(&awsFlags.concurrency, "concurrency", defaultConcurrency, "Parallel AWS calls")
	awsCmd.Flags().BoolVar(&awsFlags.noProgress, "no-progress", false, "Disable progress output")
	awsCmd.Flags().DurationVar(&awsFlags.timeout, "timeout", defaultTimeout, "Run timeout")
	awsCmd.Flags().StringVar(&awsFlags.historyDB, "history-db", history.DefaultPath, "Run history database")
	awsCmd.Flags().BoolVar(&awsFlags.noHistory, "no-history", false, "Do not record this run")
}

func runAWS(cmd *cobra.Command, _ []string) (retErr error) {
	cfg, err := config.Load(".")
	if err != nil {
		slog.Warn("Failed to load config file", "error", err)
	}
	applyAWSConfigDefaults(cfg)

	if err := validateFormat(awsFlags.format); err != nil {
		return err
	}
	services, err := classifier.ParseCategories(awsFlags.services)
	if err != nil {
		return fmt.Errorf("invalid --services: %w", err)
	}
	out, closeOut, err := openOutput(awsFlags.outputFile)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeOut(); cerr != nil && retErr == nil {
			retErr = fmt.Errorf("close output file: %w", cerr)
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if awsFlags.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, awsFlags.timeout)
		defer cancel()
	}

	home := ""
	if len(awsFlags.regions) > 0 {
		home = awsFlags.regions[0]
	}
	clients, err := inventory.NewClients(ctx, awsFlags.profile, home)
	if err != nil {
		return enhanceError("initialize AWS client", err)
	}

	regions := inventory.ResolveRegions(ctx, clients.EC2(clients.Region()), awsFlags.regions, inventory.FallbackRegions)
	slog.Info("Analyzing AWS account", "regions", len(regions), "home_region", regions[0])

	reader := billing.NewReader(billing.NewCostExplorerClient(clients.Config()))
	deps := pipeline.Deps{
		Billing:   reader,
		Costs:     reader,
		Inventory: inventory.New(clients.Listers(regions), awsFlags.concurrency),
		Telemetry: telemetry.NewCollector(func(region string) telemetry.CloudWatchAPI {
			return clients.CloudWatch(region)
		}, awsFlags.telemetryDays),
		Sink: report.NewXLSXSink(),
	}
	if !awsFlags.noHistory {
		store, err := history.NewSQLite(awsFlags.historyDB)
		if err != nil {
			slog.Warn("Run history unavailable", "path", awsFlags.historyDB, "error", err)
		} else {
			defer store.Close()
			deps.History = store
		}
	}

	thresholds := cfg.RuleThresholds()
	opts := pipeline.Options{
		Regions:          regions,
		Services:         services,
		OutputDir:        awsFlags.outputDir,
		Concurrency:      awsFlags.concurrency,
		Thresholds:       &thresholds,
		MinMonthlyImpact: decimal.NewFromFloat(awsFlags.minMonthlyImpact),
	}
	if !awsFlags.noProgress {
		opts.Events = progressPrinter(os.Stderr)
	}

	run, err := pipeline.New(deps).Run(ctx, opts)
	if err != nil {
		if errors.Is(err, pipeline.ErrBillingUnavailable) {
			return enhanceError("read billing summary", err)
		}
		return err
	}

	data := report.Data{
		Tool:      "billspectre",
		Version:   version,
		Timestamp: time.Now().UTC(),
		Target: report.Target{
			Type:      "aws-account",
			ScopeHash: computeScopeHash("aws", regions, awsFlags.profile),
		},
		Config: report.ReportConfig{
			Provider:      "aws",
			Regions:       regions,
			Services:      awsFlags.services,
			TelemetryDays: awsFlags.telemetryDays,
		},
		Period:       run.Period.String(),
		BillingTotal: run.Billing.Total,
		Findings:     run.Findings,
		Summary:      run.Summary,
		ReportPath:   run.ReportPath,
		Errors:       run.Errors,
	}

	reporter, err := selectReporter(awsFlags.format, out)
	if err != nil {
		return err
	}
	return reporter.Generate(data)
}

// applyAWSConfigDefaults fills flags still at their defaults from the config file.
func applyAWSConfigDefaults(cfg config.Config) {
	if awsFlags.profile == "" {
		awsFlags.profile = cfg.Profile
	}
	if len(awsFlags.regions) == 0 {
		awsFlags.regions = cfg.Regions
	}
	if len(awsFlags.services) == 0 {
		awsFlags.services = cfg.Services
	}
	if awsFlags.outputDir == defaultOutputDir && cfg.OutputDir != "" {
		awsFlags.outputDir = cfg.OutputDir
	}
	if awsFlags.format == defaultFormat && cfg.Format != "" {
		awsFlags.format = cfg.Format
	}
	if awsFlags.timeout == defaultTimeout && cfg.TimeoutDuration() > 0 {
		awsFlags.timeout = cfg.TimeoutDuration()
	}
	if awsFlags.concurrency == defaultConcurrency && cfg.Concurrency > 0 {
		awsFlags.concurrency = cfg.Concurrency
	}
	if awsFlags.telemetryDays == telemetry.DefaultDays && cfg.TelemetryDays > 0 {
		awsFlags.telemetryDays = cfg.TelemetryDays
	}
	if awsFlags.minMonthlyImpact == 0 && cfg.MinMonthlyImpact > 0 {
		awsFlags.minMonthlyImpact = cfg.MinMonthlyImpact
	}
	if awsFlags.historyDB == history.DefaultPath && cfg.HistoryDB != "" {
		awsFlags.historyDB = cfg.HistoryDB
	}
}

// progressPrinter renders pipeline events as one line each.
func progressPrinter(w io.Writer) func(pipeline.Event) {
	var mu sync.Mutex
	return func(e pipeline.Event) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintln(w, formatEvent(e))
	}
}

func formatEvent(e pipeline.Event) string {
	scope := []string{string(e.Stage)}
	if e.Category != "" {
		scope = append(scope, e.Category.Short())
	}
	if e.Region != "" {
		scope = append(scope, e.Region)
	}
	if e.ResourceID != "" {
		scope = append(scope, e.ResourceID)
	}
	line := fmt.Sprintf("[%s] %s", strings.Join(scope, "/"), e.Outcome)
	if e.Message != "" {
		line += ": " + e.Message
	}
	return line
}

var reportFormats = []string{"text", "json", "sarif", "spectrehub"}

func validateFormat(format string) error {
	if !slices.Contains(reportFormats, format) {
		return fmt.Errorf("unsupported format: %s (use text, json, sarif, or spectrehub)", format)
	}
	return nil
}

// openOutput returns stdout, or the created file at path with its closer.
func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output file: %w", err)
	}
	return f, f.Close, nil
}

func selectReporter(format string, w io.Writer) (report.Reporter, error) {
	switch format {
	case "json":
		return &report.JSONReporter{Writer: w}, nil
	case "text":
		return &report.TextReporter{Writer: w}, nil
	case "sarif":
		return &report.SARIFReporter{Writer: w}, nil
	case "spectrehub":
		return &report.SpectreHubReporter{Writer: w}, nil
	default:
		return nil, validateFormat(format)
	}
}
