package analyzer

import (
	"github.com/shopspring/decimal"

	"github.com/ppiankov/billspectre/internal/finding"
)

// Summary holds aggregated statistics about a run's findings.
type Summary struct {
	TotalResourcesScanned int             `json:"total_resources_scanned"`
	CategoriesScanned     int             `json:"categories_scanned"`
	TotalFindings         int             `json:"total_findings"`
	TotalMonthlySavings   decimal.Decimal `json:"total_monthly_savings"`
	BySeverity            map[string]int  `json:"by_severity"`
	ByCategory            map[string]int  `json:"by_category"`
}

// Input is what Analyze ranks and summarizes.
type Input struct {
	Findings          []finding.Finding
	ResourcesScanned  int
	CategoriesScanned int
	Errors            []string
}

// AnalysisResult holds ranked findings and computed summary.
type AnalysisResult struct {
	Findings []finding.Finding `json:"findings"`
	Summary  Summary           `json:"summary"`
	Errors   []string          `json:"errors,omitempty"`
}

// AnalyzerConfig controls analysis behavior.
type AnalyzerConfig struct {
	// MinMonthlyImpact drops quantified findings below this amount. Findings
	// without a dollar impact are always kept.
	MinMonthlyImpact decimal.Decimal
}
