package report

import (
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ppiankov/billspectre/internal/analyzer"
	"github.com/ppiankov/billspectre/internal/finding"
)

// Reporter is the interface for console output formatters.
type Reporter interface {
	Generate(data Data) error
}

// Data holds all information needed to generate a console report.
type Data struct {
	Tool         string            `json:"tool"`
	Version      string            `json:"version"`
	Timestamp    time.Time         `json:"timestamp"`
	Target       Target            `json:"target"`
	Config       ReportConfig      `json:"config"`
	Period       string            `json:"period"`
	BillingTotal decimal.Decimal   `json:"billing_total"`
	Findings     []finding.Finding `json:"findings"`
	Summary      analyzer.Summary  `json:"summary"`
	// ReportPath is the saved workbook, empty when none was written.
	ReportPath string   `json:"report_path,omitempty"`
	Errors     []string `json:"errors,omitempty"`
}

// Target identifies the account being analyzed.
type Target struct {
	Type      string `json:"type"`
	ScopeHash string `json:"scope_hash"`
}

// ReportConfig captures the run configuration used.
type ReportConfig struct {
	Provider      string   `json:"provider"`
	Regions       []string `json:"regions"`
	Services      []string `json:"services,omitempty"`
	TelemetryDays int      `json:"telemetry_days"`
}

// TextReporter generates human-readable terminal output.
type TextReporter struct {
	Writer io.Writer
}

// JSONReporter generates spectre/v1 envelope JSON output.
type JSONReporter struct {
	Writer io.Writer
}

// SpectreHubReporter generates SpectreHub envelope JSON output.
type SpectreHubReporter struct {
	Writer io.Writer
}

// SARIFReporter generates SARIF v2.1.0 output.
type SARIFReporter struct {
	Writer io.Writer
}
