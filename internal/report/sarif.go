package report

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/ppiankov/billspectre/internal/finding"
)

const sarifSchema = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/main/sarif-2.1/schema/sarif-schema-2.1.0.json"

// sarifReport is the top-level SARIF v2.1.0 structure.
type sarifReport struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Rules   []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string            `json:"id"`
	ShortDescription sarifMessage      `json:"shortDescription"`
	DefaultConfig    sarifDefaultLevel `json:"defaultConfiguration"`
}

type sarifDefaultLevel struct {
	Level string `json:"level"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifResult struct {
	RuleID    string         `json:"ruleId"`
	Level     string         `json:"level"`
	Message   sarifMessage   `json:"message"`
	Locations []sarifLoc     `json:"locations,omitempty"`
	Props     map[string]any `json:"properties,omitempty"`
}

type sarifLoc struct {
	PhysicalLocation sarifPhysical `json:"physicalLocation"`
}

type sarifPhysical struct {
	ArtifactLocation sarifArtifact `json:"artifactLocation"`
}

type sarifArtifact struct {
	URI string `json:"uri"`
}

// Generate writes SARIF v2.1.0 output.
func (r *SARIFReporter) Generate(data Data) error {
	rules := buildSARIFRules()
	results := make([]sarifResult, 0, len(data.Findings))

	for _, f := range data.Findings {
		results = append(results, sarifResult{
			RuleID:  string(f.ID),
			Level:   sarifLevel(f.Severity),
			Message: sarifMessage{Text: f.Title + ". " + f.Rationale},
			Locations: []sarifLoc{
				{
					PhysicalLocation: sarifPhysical{
						ArtifactLocation: sarifArtifact{URI: sarifURI(f)},
					},
				},
			},
			Props: map[string]any{
				"action":          f.Action,
				"estimatedImpact": f.EstimatedImpact,
				"impactAmount":    f.ImpactAmount,
				"metadata":        f.Metadata,
			},
		})
	}

	report := sarifReport{
		Schema:  sarifSchema,
		Version: "2.1.0",
		Runs: []sarifRun{
			{
				Tool: sarifTool{
					Driver: sarifDriver{
						Name:    data.Tool,
						Version: data.Version,
						Rules:   rules,
					},
				},
				Results: results,
			},
		},
	}

	enc := json.NewEncoder(r.Writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode SARIF report: %w", err)
	}
	return nil
}

// sarifURI locates a finding as aws://region/category/subject. Service-level
// findings use the "billing" pseudo-category.
func sarifURI(f finding.Finding) string {
	region := f.Region
	if region == "" {
		region = "global"
	}
	category := "billing"
	if !f.ServiceLevel() && f.Category != "" {
		category = f.Category.Short()
	}
	return fmt.Sprintf("aws://%s/%s/%s", region, category, f.SubjectID)
}

func sarifLevel(s finding.Severity) string {
	switch s {
	case finding.SeverityHigh:
		return "error"
	case finding.SeverityMedium:
		return "warning"
	default:
		return "note"
	}
}

var sarifRuleText = []struct {
	id   finding.FindingID
	text string
	sev  finding.Severity
}{
	{finding.FindingMonitoringDisabled, "Resource publishes no CloudWatch metrics", finding.SeverityHigh},
	{finding.FindingAgentNotInstalled, "CloudWatch agent not installed", finding.SeverityMedium},
	{finding.FindingRightSize, "Over-provisioned resource", finding.SeverityHigh},
	{finding.FindingUnderProvisioned, "Under-provisioned resource", finding.SeverityMedium},
	{finding.FindingIdleButBilled, "Idle resource still incurring cost", finding.SeverityHigh},
	{finding.FindingMultiAZNonProd, "Multi-AZ on a non-production database", finding.SeverityMedium},
	{finding.FindingStorageTiering, "All bucket data in the most expensive storage class", finding.SeverityMedium},
	{finding.FindingRuleFailed, "Rule could not be evaluated", finding.SeverityLow},
	{finding.FindingTopCostService, "Highest cost service", finding.SeverityHigh},
	{finding.FindingKubernetesSpend, "High Kubernetes spend", finding.SeverityHigh},
	{finding.FindingDatabaseReserved, "Database reserved capacity opportunity", finding.SeverityMedium},
	{finding.FindingComputeReserved, "Compute commitment or Spot opportunity", finding.SeverityMedium},
	{finding.FindingStorageClassReview, "Object storage class review", finding.SeverityLow},
	{finding.FindingFunctionMemory, "Function memory allocation review", finding.SeverityLow},
	{finding.FindingBudgetAlert, "No spend guardrail", finding.SeverityLow},
	{finding.FindingServiceSprawl, "Service sprawl", finding.SeverityLow},
	{finding.FindingServiceConsolidation, "Many low-cost services", finding.SeverityLow},
}

func buildSARIFRules() []sarifRule {
	rules := make([]sarifRule, 0, len(sarifRuleText))
	for _, r := range sarifRuleText {
		rules = append(rules, sarifRule{
			ID:               string(r.id),
			ShortDescription: sarifMessage{Text: r.text},
			DefaultConfig:    sarifDefaultLevel{Level: sarifLevel(r.sev)},
		})
	}
	return rules
}
