package commands

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ppiankov/billspectre/internal/classifier"
	"github.com/ppiankov/billspectre/internal/config"
	"github.com/ppiankov/billspectre/internal/finding"
	"github.com/ppiankov/billspectre/internal/history"
	"github.com/ppiankov/billspectre/internal/pipeline"
)

func TestExecuteVersion(t *testing.T) {
	version = "1.0.0"
	commit = "abc123"
	date = "2026-02-28"

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	t.Cleanup(func() { rootCmd.SetOut(nil) })
	rootCmd.SetArgs([]string{"version"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	want := "billspectre 1.0.0 (commit: abc123, built: 2026-02-28)"
	if !strings.Contains(buf.String(), want) {
		t.Errorf("version output = %q, want %q", buf.String(), want)
	}
}

func TestExecuteNoArgs(t *testing.T) {
	rootCmd.SetArgs([]string{})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
}

func TestEnhanceErrorWithHint(t *testing.T) {
	tests := []struct {
		errMsg string
		hint   string
	}{
		{"NoCredentialProviders: no valid providers", "Configure AWS credentials"},
		{"ExpiredToken: token expired", "session token expired"},
		{"AccessDeniedException: not authorized to ce:GetCostAndUsage", "ce:GetCostAndUsage"},
		{"DataUnavailableException: data is not available", "Cost Explorer has no data yet"},
		{"RequestExpired: request timed out", "Check system clock"},
		{"Throttling: rate exceeded", "API rate limit hit"},
	}

	for _, tt := range tests {
		err := enhanceError("test", errors.New(tt.errMsg))
		if !strings.Contains(err.Error(), tt.hint) {
			t.Errorf("enhanceError(%q) missing hint %q, got: %s", tt.errMsg, tt.hint, err)
		}
	}
}

func TestEnhanceErrorWithoutHint(t *testing.T) {
	cause := errors.New("some random error")
	err := enhanceError("read billing summary", cause)
	if strings.Contains(err.Error(), "hint:") {
		t.Errorf("unexpected hint in: %s", err)
	}
	if !strings.Contains(err.Error(), "read billing summary:") {
		t.Errorf("missing action prefix in: %s", err)
	}
	if !errors.Is(err, cause) {
		t.Error("enhanced error should wrap the cause")
	}
}

func TestComputeScopeHash(t *testing.T) {
	h1 := computeScopeHash("aws", []string{"us-east-1"}, "")
	h2 := computeScopeHash("aws", []string{"us-east-1"}, "")
	if h1 != h2 {
		t.Error("same inputs should produce same hash")
	}

	h3 := computeScopeHash("aws", []string{"us-east-1", "eu-west-1"}, "prod")
	if h1 == h3 {
		t.Error("different inputs should produce different hashes")
	}

	if !strings.HasPrefix(h1, "sha256:") {
		t.Errorf("hash should start with sha256:, got %q", h1)
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	origDir, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(origDir); err != nil {
			t.Log("failed to restore dir:", err)
		}
	})
}

func TestRunInit(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	initFlags.force = false
	if err := runInit(nil, nil); err != nil {
		t.Fatalf("runInit() error: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, ".billspectre.yaml")); err != nil {
		t.Error("config file not created")
	}
	policy, err := os.ReadFile(filepath.Join(dir, "billspectre-policy.json"))
	if err != nil {
		t.Fatal("policy file not created")
	}
	for _, action := range []string{"ce:GetCostAndUsage", "ce:GetCostAndUsageWithResources", "cloudwatch:GetMetricStatistics"} {
		if !strings.Contains(string(policy), action) {
			t.Errorf("policy missing %s", action)
		}
	}
}

func TestRunInitConfigLoads(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	initFlags.force = false
	if err := runInit(nil, nil); err != nil {
		t.Fatalf("runInit() error: %v", err)
	}
	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("generated config does not load: %v", err)
	}
	if cfg.Format != "" || len(cfg.Regions) != 0 {
		t.Errorf("sample config should be fully commented out, got %+v", cfg)
	}
}

func TestRunInitNoOverwrite(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	if err := os.WriteFile(filepath.Join(dir, ".billspectre.yaml"), []byte("existing"), 0o644); err != nil {
		t.Fatal(err)
	}

	initFlags.force = false
	if err := runInit(nil, nil); err != nil {
		t.Fatalf("runInit() error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, ".billspectre.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "existing" {
		t.Error("config file should not be overwritten without --force")
	}
}

func TestRunInitForce(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	if err := os.WriteFile(filepath.Join(dir, ".billspectre.yaml"), []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	initFlags.force = true
	t.Cleanup(func() { initFlags.force = false })
	if err := runInit(nil, nil); err != nil {
		t.Fatalf("runInit() error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, ".billspectre.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) == "old" {
		t.Error("config file should be overwritten with --force")
	}
}

func TestSelectReporter(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
	}{
		{"text", false},
		{"json", false},
		{"sarif", false},
		{"spectrehub", false},
		{"xlsx", true},
	}
	for _, tt := range tests {
		r, err := selectReporter(tt.format, &bytes.Buffer{})
		if tt.wantErr {
			if err == nil {
				t.Errorf("selectReporter(%q) should error", tt.format)
			}
		} else {
			if err != nil {
				t.Errorf("selectReporter(%q) error: %v", tt.format, err)
			}
			if r == nil {
				t.Errorf("selectReporter(%q) returned nil reporter", tt.format)
			}
		}
		if (validateFormat(tt.format) != nil) != tt.wantErr {
			t.Errorf("validateFormat(%q) disagrees with selectReporter", tt.format)
		}
	}
}

func TestOpenOutputFile(t *testing.T) {
	outFile := filepath.Join(t.TempDir(), "report.json")

	w, closeOut, err := openOutput(outFile)
	if err != nil {
		t.Fatalf("openOutput() error: %v", err)
	}
	if _, err := w.Write([]byte("{}")); err != nil {
		t.Fatal(err)
	}
	if err := closeOut(); err != nil {
		t.Fatalf("close error: %v", err)
	}
	if err := closeOut(); err == nil {
		t.Error("second close should fail, the file is already closed")
	}
	data, err := os.ReadFile(outFile)
	if err != nil || string(data) != "{}" {
		t.Errorf("file content = %q, err %v", data, err)
	}
}

func TestOpenOutputStdout(t *testing.T) {
	w, closeOut, err := openOutput("")
	if err != nil {
		t.Fatalf("openOutput() error: %v", err)
	}
	if w != os.Stdout {
		t.Error("empty path should write to stdout")
	}
	if err := closeOut(); err != nil {
		t.Errorf("stdout closer error: %v", err)
	}
}

func TestAWSRejectsUnknownFormatBeforeScanning(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	resetAWSFlags()
	t.Cleanup(resetAWSFlags)

	outFile := filepath.Join(dir, "out.json")
	rootCmd.SetArgs([]string{"aws", "--format", "yaml", "--output", outFile})
	t.Cleanup(func() { awsFlags.outputFile = "" })
	err := rootCmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "unsupported format: yaml") {
		t.Fatalf("err = %v, want unsupported format", err)
	}
	if _, statErr := os.Stat(outFile); !os.IsNotExist(statErr) {
		t.Error("output file should not be created for an invalid format")
	}
}

func TestExecuteRejectsUnknownLogFormat(t *testing.T) {
	rootCmd.SetArgs([]string{"version", "--log-format", "xml"})
	t.Cleanup(func() { logFormat = "text" })
	if err := rootCmd.Execute(); err == nil || !strings.Contains(err.Error(), "invalid log format") {
		t.Fatalf("err = %v, want invalid log format", err)
	}
}

func resetAWSFlags() {
	awsFlags.profile = ""
	awsFlags.regions = nil
	awsFlags.services = nil
	awsFlags.outputDir = defaultOutputDir
	awsFlags.format = defaultFormat
	awsFlags.timeout = defaultTimeout
	awsFlags.concurrency = defaultConcurrency
	awsFlags.telemetryDays = 7
	awsFlags.minMonthlyImpact = 0
	awsFlags.historyDB = history.DefaultPath
}

func TestApplyAWSConfigDefaults(t *testing.T) {
	resetAWSFlags()
	t.Cleanup(resetAWSFlags)

	cfg := config.Config{
		Profile:          "prod",
		Regions:          []string{"eu-west-1"},
		Services:         []string{"ec2"},
		OutputDir:        "reports",
		Format:           "json",
		Timeout:          "10m",
		Concurrency:      4,
		TelemetryDays:    14,
		MinMonthlyImpact: 5,
		HistoryDB:        "/tmp/runs.db",
	}

	applyAWSConfigDefaults(cfg)

	if awsFlags.profile != "prod" {
		t.Errorf("profile = %q, want prod", awsFlags.profile)
	}
	if len(awsFlags.regions) != 1 || awsFlags.regions[0] != "eu-west-1" {
		t.Errorf("regions = %v, want [eu-west-1]", awsFlags.regions)
	}
	if len(awsFlags.services) != 1 || awsFlags.services[0] != "ec2" {
		t.Errorf("services = %v, want [ec2]", awsFlags.services)
	}
	if awsFlags.outputDir != "reports" {
		t.Errorf("outputDir = %q, want reports", awsFlags.outputDir)
	}
	if awsFlags.format != "json" {
		t.Errorf("format = %q, want json", awsFlags.format)
	}
	if awsFlags.timeout != 10*time.Minute {
		t.Errorf("timeout = %s, want 10m", awsFlags.timeout)
	}
	if awsFlags.concurrency != 4 {
		t.Errorf("concurrency = %d, want 4", awsFlags.concurrency)
	}
	if awsFlags.telemetryDays != 14 {
		t.Errorf("telemetryDays = %d, want 14", awsFlags.telemetryDays)
	}
	if awsFlags.minMonthlyImpact != 5 {
		t.Errorf("minMonthlyImpact = %f, want 5", awsFlags.minMonthlyImpact)
	}
	if awsFlags.historyDB != "/tmp/runs.db" {
		t.Errorf("historyDB = %q, want /tmp/runs.db", awsFlags.historyDB)
	}
}

func TestApplyAWSConfigDefaultsNoOverride(t *testing.T) {
	resetAWSFlags()
	t.Cleanup(resetAWSFlags)

	// As if the user passed flags.
	awsFlags.format = "sarif"
	awsFlags.regions = []string{"us-west-2"}
	awsFlags.concurrency = 2
	awsFlags.minMonthlyImpact = 10

	cfg := config.Config{
		Format:           "json",
		Regions:          []string{"eu-west-1"},
		Concurrency:      4,
		MinMonthlyImpact: 5,
	}

	applyAWSConfigDefaults(cfg)

	if awsFlags.format != "sarif" {
		t.Errorf("format = %q, want sarif (flag should win)", awsFlags.format)
	}
	if awsFlags.regions[0] != "us-west-2" {
		t.Errorf("regions = %v, want [us-west-2] (flag should win)", awsFlags.regions)
	}
	if awsFlags.concurrency != 2 {
		t.Errorf("concurrency = %d, want 2 (flag should win)", awsFlags.concurrency)
	}
	if awsFlags.minMonthlyImpact != 10 {
		t.Errorf("minMonthlyImpact = %f, want 10 (flag should win)", awsFlags.minMonthlyImpact)
	}
}

func TestFormatEvent(t *testing.T) {
	tests := []struct {
		name  string
		event pipeline.Event
		want  string
	}{
		{
			"stage only",
			pipeline.Event{Stage: pipeline.StageBilling, Outcome: pipeline.OutcomeStarted},
			"[billing] started",
		},
		{
			"category and region",
			pipeline.Event{Stage: pipeline.StageDiscover, Category: classifier.Compute, Region: "us-east-1", Outcome: pipeline.OutcomeDone, Message: "3 resources"},
			"[discover/EC2/us-east-1] done: 3 resources",
		},
		{
			"resource failure",
			pipeline.Event{Stage: pipeline.StageTelemetry, Category: classifier.RelationalDB, Region: "eu-west-1", ResourceID: "db-1", Outcome: pipeline.OutcomeFailed, Message: "throttled"},
			"[telemetry/RDS/eu-west-1/db-1] failed: throttled",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatEvent(tt.event); got != tt.want {
				t.Errorf("formatEvent() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProgressPrinter(t *testing.T) {
	var buf bytes.Buffer
	emit := progressPrinter(&buf)
	emit(pipeline.Event{Stage: pipeline.StageReport, Outcome: pipeline.OutcomeDone, Message: "billspectre-report.xlsx"})
	emit(pipeline.Event{Stage: pipeline.StageHistory, Outcome: pipeline.OutcomeSkipped})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), buf.String())
	}
	if lines[1] != "[history] skipped" {
		t.Errorf("second line = %q", lines[1])
	}
}

func seedHistory(t *testing.T) (string, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := history.NewSQLite(path)
	if err != nil {
		t.Fatalf("NewSQLite() error: %v", err)
	}
	defer store.Close()

	run := &history.Run{
		StartedAt:    time.Date(2026, 2, 3, 9, 30, 0, 0, time.UTC),
		FinishedAt:   time.Date(2026, 2, 3, 9, 34, 0, 0, time.UTC),
		Period:       "2026-01-01 to 2026-02-01",
		BillingTotal: decimal.RequireFromString("512.40"),
		Regions:      []string{"us-east-1"},
		Categories:   []string{"Compute"},
		Resources:    3,
		FindingCount: 1,
		Savings:      decimal.RequireFromString("4.20"),
		ReportPath:   "billspectre-report.xlsx",
	}
	findings := []finding.Finding{{
		ID:              finding.FindingIdleButBilled,
		Severity:        finding.SeverityHigh,
		Category:        classifier.Compute,
		SubjectID:       "i-0abc",
		Region:          "us-east-1",
		Title:           "EC2 - i-0abc stopped but billed",
		EstimatedImpact: "$4.20/month",
		ImpactAmount:    decimal.RequireFromString("4.20"),
	}}
	id, err := store.Record(context.Background(), run, findings)
	if err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	return path, id
}

func TestHistoryList(t *testing.T) {
	path, id := seedHistory(t)

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	t.Cleanup(func() { rootCmd.SetOut(nil) })
	rootCmd.SetArgs([]string{"history", "--history-db", path})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("history error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"SAVINGS/MONTH", id, "2026-02-03 09:30", "$512.40", "$4.20"} {
		if !strings.Contains(out, want) {
			t.Errorf("history output missing %q:\n%s", want, out)
		}
	}
}

func TestHistoryShow(t *testing.T) {
	path, id := seedHistory(t)

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	t.Cleanup(func() { rootCmd.SetOut(nil) })
	rootCmd.SetArgs([]string{"history", "show", id, "--history-db", path})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("history show error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"Run " + id, "2026-01-01 to 2026-02-01", "IDLE_BUT_BILLED", "i-0abc", "$4.20/month"} {
		if !strings.Contains(out, want) {
			t.Errorf("history show output missing %q:\n%s", want, out)
		}
	}
}

func TestHistoryShowUnknownRun(t *testing.T) {
	path, _ := seedHistory(t)

	rootCmd.SetArgs([]string{"history", "show", "no-such-run", "--history-db", path})
	err := rootCmd.Execute()
	if !errors.Is(err, history.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestWriteRunsEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := writeRuns(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No runs recorded.") {
		t.Errorf("got %q", buf.String())
	}
}

func TestSubcommandsRegistered(t *testing.T) {
	for _, name := range []string{"aws", "history", "init", "version"} {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil {
			t.Fatalf("Find(%s) error: %v", name, err)
		}
		if cmd.Name() != name {
			t.Errorf("command name = %q, want %s", cmd.Name(), name)
		}
	}
}

func TestAWSRejectsUnknownService(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	resetAWSFlags()
	t.Cleanup(resetAWSFlags)

	rootCmd.SetArgs([]string{"aws", "--services", "mainframe"})
	t.Cleanup(func() { awsFlags.services = nil })
	err := rootCmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "--services") {
		t.Fatalf("err = %v, want invalid --services", err)
	}
}
