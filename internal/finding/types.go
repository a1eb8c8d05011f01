package finding

import (
	"github.com/shopspring/decimal"

	"github.com/ppiankov/billspectre/internal/classifier"
)

// Severity levels for findings.
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
)

// Rank orders severities for display, lower is more urgent.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	case SeverityLow:
		return 2
	default:
		return 3
	}
}

// FindingID identifies the rule that produced a finding.
type FindingID string

const (
	FindingMonitoringDisabled FindingID = "MONITORING_DISABLED"
	FindingAgentNotInstalled  FindingID = "AGENT_NOT_INSTALLED"
	FindingRightSize          FindingID = "RIGHT_SIZE"
	FindingUnderProvisioned   FindingID = "UNDER_PROVISIONED"
	FindingIdleButBilled      FindingID = "IDLE_BUT_BILLED"
	FindingMultiAZNonProd     FindingID = "MULTI_AZ_NON_PRODUCTION"
	FindingStorageTiering     FindingID = "STORAGE_TIERING"
	FindingRuleFailed         FindingID = "RULE_EVALUATION_FAILED"

	FindingTopCostService       FindingID = "TOP_COST_SERVICE"
	FindingKubernetesSpend      FindingID = "KUBERNETES_SPEND"
	FindingDatabaseReserved     FindingID = "DATABASE_RESERVED_CAPACITY"
	FindingComputeReserved      FindingID = "COMPUTE_RESERVED_CAPACITY"
	FindingStorageClassReview   FindingID = "STORAGE_CLASS_REVIEW"
	FindingFunctionMemory       FindingID = "FUNCTION_MEMORY"
	FindingBudgetAlert          FindingID = "BUDGET_ALERT"
	FindingServiceSprawl        FindingID = "SERVICE_SPRAWL"
	FindingServiceConsolidation FindingID = "SERVICE_CONSOLIDATION"
)

// Finding is one cost-optimization recommendation.
type Finding struct {
	ID        FindingID           `json:"id"`
	Severity  Severity            `json:"severity"`
	Category  classifier.Category `json:"category,omitempty"`
	SubjectID string              `json:"subject_id"`
	Region    string              `json:"region,omitempty"`
	Title     string              `json:"title"`
	Rationale string              `json:"rationale"`
	Action    string              `json:"action"`
	// EstimatedImpact is the human-readable impact, e.g. "$4.20/month".
	EstimatedImpact string `json:"estimated_impact"`
	// ImpactAmount is the monthly dollar figure behind EstimatedImpact, zero
	// when the impact cannot be quantified.
	ImpactAmount decimal.Decimal `json:"impact_amount"`
	Metadata     map[string]any  `json:"metadata,omitempty"`
}

// ServiceLevel reports whether the finding concerns a billed service rather
// than one discovered resource.
func (f Finding) ServiceLevel() bool {
	switch f.ID {
	case FindingTopCostService, FindingKubernetesSpend, FindingDatabaseReserved,
		FindingComputeReserved, FindingStorageClassReview, FindingFunctionMemory,
		FindingBudgetAlert, FindingServiceSprawl, FindingServiceConsolidation:
		return true
	}
	return false
}

// Monthly formats a dollar amount as "$X.YY/month".
func Monthly(amount decimal.Decimal) string {
	return "$" + amount.StringFixed(2) + "/month"
}
