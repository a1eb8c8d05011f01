package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ppiankov/billspectre/internal/analyzer"
	"github.com/ppiankov/billspectre/internal/classifier"
	"github.com/ppiankov/billspectre/internal/finding"
)

func sampleData() Data {
	return Data{
		Tool:      "billspectre",
		Version:   "0.1.0",
		Timestamp: time.Date(2026, 2, 28, 12, 0, 0, 0, time.UTC),
		Target: Target{
			Type:      "aws-account",
			ScopeHash: "sha256:abc123",
		},
		Config: ReportConfig{
			Provider:      "aws",
			Regions:       []string{"us-east-1"},
			TelemetryDays: 7,
		},
		Period:       "2026-01-01 to 2026-02-01",
		BillingTotal: decimal.RequireFromString("512.40"),
		Findings: []finding.Finding{
			{
				ID:              finding.FindingIdleButBilled,
				Severity:        finding.SeverityHigh,
				Category:        classifier.Compute,
				SubjectID:       "i-0abc",
				Region:          "us-east-1",
				Title:           "EC2 i-0abc - Idle but Billed",
				Rationale:       "Instance is stopped but its volumes still bill.",
				Action:          "Terminate the instance or snapshot and delete its volumes.",
				EstimatedImpact: "$4.20/month",
				ImpactAmount:    decimal.RequireFromString("4.20"),
			},
			{
				ID:              finding.FindingTopCostService,
				Severity:        finding.SeverityHigh,
				Category:        classifier.Compute,
				SubjectID:       "Amazon Elastic Compute Cloud - Compute",
				Title:           "Amazon Elastic Compute Cloud - Compute - Highest Cost Service",
				EstimatedImpact: "Up to $90.00/month (30% potential savings)",
				ImpactAmount:    decimal.RequireFromString("90"),
			},
		},
		Summary: analyzer.Summary{
			TotalResourcesScanned: 12,
			CategoriesScanned:     3,
			TotalFindings:         2,
			TotalMonthlySavings:   decimal.RequireFromString("94.20"),
			BySeverity:            map[string]int{"HIGH": 2},
			ByCategory:            map[string]int{"Compute": 2},
		},
	}
}

func TestJSONReporter(t *testing.T) {
	var buf bytes.Buffer
	r := &JSONReporter{Writer: &buf}

	if err := r.Generate(sampleData()); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, `"$schema": "spectre/v1"`) {
		t.Error("missing spectre/v1 schema")
	}
	if !strings.Contains(output, `"tool": "billspectre"`) {
		t.Error("missing tool name")
	}
	if !strings.Contains(output, `"IDLE_BUT_BILLED"`) {
		t.Error("missing IDLE_BUT_BILLED finding")
	}

	var parsed map[string]any
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed["period"] != "2026-01-01 to 2026-02-01" {
		t.Errorf("period = %v", parsed["period"])
	}
}

func TestJSONReporterNoFindings(t *testing.T) {
	data := sampleData()
	data.Findings = nil

	var buf bytes.Buffer
	r := &JSONReporter{Writer: &buf}

	if err := r.Generate(data); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	var parsed map[string]any
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	findings, ok := parsed["findings"].([]any)
	if !ok || len(findings) != 0 {
		t.Errorf("findings = %v, want empty array", parsed["findings"])
	}
}

func TestTextReporterWithFindings(t *testing.T) {
	var buf bytes.Buffer
	r := &TextReporter{Writer: &buf}

	if err := r.Generate(sampleData()); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	output := buf.String()
	for _, want := range []string{
		"billspectre - AWS Cost Optimization Report",
		"Total cost:     $512.40",
		"i-0abc",
		"$4.20/month",
		"Summary",
		"Categories scanned:        3",
		"Estimated monthly savings: $94.20",
		"By severity:               HIGH=2",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if strings.Contains(output, "Report saved to") {
		t.Error("report path printed without a workbook")
	}
}

func TestTextReporterNoFindings(t *testing.T) {
	data := sampleData()
	data.Findings = nil
	data.Summary.TotalFindings = 0

	var buf bytes.Buffer
	r := &TextReporter{Writer: &buf}

	if err := r.Generate(data); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	if !strings.Contains(buf.String(), "No optimization opportunities found.") {
		t.Error("missing no-findings message")
	}
}

func TestTextReporterWithErrorsAndPath(t *testing.T) {
	data := sampleData()
	data.Errors = []string{"EC2/us-west-2: access denied"}
	data.ReportPath = "out/billspectre_report_20260228_120000.xlsx"

	var buf bytes.Buffer
	r := &TextReporter{Writer: &buf}

	if err := r.Generate(data); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "Warnings (1)") {
		t.Error("missing warnings section")
	}
	if !strings.Contains(output, "Report saved to: out/billspectre_report_20260228_120000.xlsx") {
		t.Error("missing report path")
	}
}

func TestSARIFReporter(t *testing.T) {
	var buf bytes.Buffer
	r := &SARIFReporter{Writer: &buf}

	if err := r.Generate(sampleData()); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, `"version": "2.1.0"`) {
		t.Error("missing SARIF version")
	}
	if !strings.Contains(output, `"IDLE_BUT_BILLED"`) {
		t.Error("missing IDLE_BUT_BILLED rule")
	}
	if !strings.Contains(output, "aws://us-east-1/EC2/i-0abc") {
		t.Error("missing resource URI")
	}
	if !strings.Contains(output, "aws://global/billing/") {
		t.Error("missing service-level URI")
	}

	var parsed map[string]any
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
}

func TestSpectreHubReporter(t *testing.T) {
	var buf bytes.Buffer
	r := &SpectreHubReporter{Writer: &buf}

	if err := r.Generate(sampleData()); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, `"schema": "spectre/v1"`) {
		t.Error("missing spectre/v1 schema")
	}
	if !strings.Contains(output, `"billspectre"`) {
		t.Error("missing tool name")
	}
}

func TestSARIFLevelMapping(t *testing.T) {
	tests := []struct {
		sev  finding.Severity
		want string
	}{
		{finding.SeverityHigh, "error"},
		{finding.SeverityMedium, "warning"},
		{finding.SeverityLow, "note"},
	}
	for _, tt := range tests {
		got := sarifLevel(tt.sev)
		if got != tt.want {
			t.Errorf("sarifLevel(%q) = %q, want %q", tt.sev, got, tt.want)
		}
	}
}

func TestBuildSARIFRules(t *testing.T) {
	rules := buildSARIFRules()
	if len(rules) != 17 {
		t.Errorf("buildSARIFRules() len = %d, want 17", len(rules))
	}
	seen := map[string]bool{}
	for _, r := range rules {
		if seen[r.ID] {
			t.Errorf("duplicate rule %s", r.ID)
		}
		seen[r.ID] = true
	}
}
