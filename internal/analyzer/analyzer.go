package analyzer

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/ppiankov/billspectre/internal/finding"
)

// accountKey groups findings that are not tied to a category.
const accountKey = "account"

// Analyze filters findings by minimum impact, ranks them by severity then
// impact, and computes aggregated summary statistics. Findings of equal
// rank keep their input order.
func Analyze(in Input, cfg AnalyzerConfig) *AnalysisResult {
	var filtered []finding.Finding
	for _, f := range in.Findings {
		if f.ImpactAmount.IsZero() || f.ImpactAmount.GreaterThanOrEqual(cfg.MinMonthlyImpact) {
			filtered = append(filtered, f)
		}
	}
	slices.SortStableFunc(filtered, func(a, b finding.Finding) int {
		if d := a.Severity.Rank() - b.Severity.Rank(); d != 0 {
			return d
		}
		return b.ImpactAmount.Cmp(a.ImpactAmount)
	})

	summary := Summary{
		TotalResourcesScanned: in.ResourcesScanned,
		CategoriesScanned:     in.CategoriesScanned,
		TotalFindings:         len(filtered),
		TotalMonthlySavings:   decimal.Zero,
		BySeverity:            make(map[string]int),
		ByCategory:            make(map[string]int),
	}

	for _, f := range filtered {
		if f.ImpactAmount.IsPositive() {
			summary.TotalMonthlySavings = summary.TotalMonthlySavings.Add(f.ImpactAmount)
		}
		summary.BySeverity[string(f.Severity)]++
		key := string(f.Category)
		if key == "" {
			key = accountKey
		}
		summary.ByCategory[key]++
	}

	return &AnalysisResult{
		Findings: filtered,
		Summary:  summary,
		Errors:   in.Errors,
	}
}
