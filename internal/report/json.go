package report

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/ppiankov/billspectre/internal/analyzer"
	"github.com/ppiankov/billspectre/internal/finding"
)

const spectreSchema = "spectre/v1"

// jsonEnvelope is the spectre/v1 document written by JSONReporter.
type jsonEnvelope struct {
	Schema string `json:"$schema"`
	Data
}

// Generate writes the run as an indented spectre/v1 JSON document.
func (r *JSONReporter) Generate(data Data) error {
	if data.Findings == nil {
		data.Findings = []finding.Finding{}
	}
	enc := json.NewEncoder(r.Writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(jsonEnvelope{Schema: spectreSchema, Data: data}); err != nil {
		return fmt.Errorf("encode JSON report: %w", err)
	}
	return nil
}

// hubEnvelope is the flattened document SpectreHub ingests.
type hubEnvelope struct {
	Schema    string            `json:"schema"`
	Tool      string            `json:"tool"`
	Version   string            `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	Target    Target            `json:"target"`
	Period    string            `json:"period"`
	Findings  []finding.Finding `json:"findings"`
	Summary   analyzer.Summary  `json:"summary"`
}

// Generate writes the SpectreHub envelope.
func (r *SpectreHubReporter) Generate(data Data) error {
	findings := data.Findings
	if findings == nil {
		findings = []finding.Finding{}
	}
	enc := json.NewEncoder(r.Writer)
	enc.SetIndent("", "  ")
	err := enc.Encode(hubEnvelope{
		Schema:    spectreSchema,
		Tool:      data.Tool,
		Version:   data.Version,
		Timestamp: data.Timestamp,
		Target:    data.Target,
		Period:    data.Period,
		Findings:  findings,
		Summary:   data.Summary,
	})
	if err != nil {
		return fmt.Errorf("encode SpectreHub report: %w", err)
	}
	return nil
}
