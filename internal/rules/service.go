package rules

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/ppiankov/billspectre/internal/billing"
	"github.com/ppiankov/billspectre/internal/classifier"
	"github.com/ppiankov/billspectre/internal/finding"
)

// accountSubject is the subject of findings about the bill as a whole.
const accountSubject = "account"

// EvaluateServices emits findings from the billing summary alone. Category
// rules use the classified amounts so a service filter narrows them too.
func (e *Engine) EvaluateServices(summary billing.Summary, classification classifier.Result) []finding.Finding {
	th := e.thresholds
	var out []finding.Finding

	if len(summary.Items) > 0 {
		top := summary.Items[0]
		if top.Amount.GreaterThan(th.TopService) {
			share := 0.0
			if summary.Total.IsPositive() {
				share = top.Amount.Div(summary.Total).Mul(decimal.NewFromInt(100)).InexactFloat64()
			}
			category, _ := classifier.Lookup(top.ServiceName)
			out = append(out, serviceFinding(finding.FindingTopCostService, finding.SeverityHigh, category, top.ServiceName,
				top.ServiceName+" - Highest Cost Service",
				fmt.Sprintf("%s accounts for $%s (%.1f%%) of total costs and is the largest cost driver.", top.ServiceName, top.Amount.StringFixed(2), share),
				"Review every resource of this service for unused capacity, right-sizing and commitment discounts.",
				top.Amount, TopServiceImpact))
		}
	}

	type categoryRule struct {
		id        finding.FindingID
		severity  finding.Severity
		category  classifier.Category
		threshold decimal.Decimal
		impact    decimal.Decimal
		title     string
		rationale string
		action    string
	}
	categoryRules := []categoryRule{
		{
			finding.FindingKubernetesSpend, finding.SeverityHigh, classifier.ManagedKubernetes, th.Kubernetes, KubernetesImpact,
			"EKS - High Container Service Costs",
			"Each EKS control plane bills $73/month regardless of load, on top of node costs.",
			"Right-size node groups, run non-critical workloads on Spot, and move variable workloads to Fargate.",
		},
		{
			finding.FindingDatabaseReserved, finding.SeverityMedium, classifier.RelationalDB, th.Database, DatabaseReservedImpact,
			"RDS - Reserved Instance Opportunity",
			"Databases that run around the clock cost about 40% less on a 1-year reservation and about 60% less on 3 years.",
			"Purchase Reserved Instances for production databases that run continuously.",
		},
		{
			finding.FindingComputeReserved, finding.SeverityMedium, classifier.Compute, th.Compute, ComputeReservedImpact,
			"EC2 - Commitment and Spot Opportunity",
			"Steady instances are cheaper under Savings Plans or Reserved Instances, and fault-tolerant ones on Spot.",
			"Stop unused instances, cover the steady baseline with a Savings Plan, and move interruptible work to Spot.",
		},
		{
			finding.FindingStorageClassReview, finding.SeverityLow, classifier.ObjectStorage, th.Storage, StorageClassImpact,
			"S3 - Storage Class Review",
			"Infrequently accessed objects cost less in Intelligent-Tiering or Glacier than in Standard.",
			"Enable Intelligent-Tiering or lifecycle transitions on buckets holding cold data.",
		},
		{
			finding.FindingFunctionMemory, finding.SeverityLow, classifier.Serverless, th.Function, FunctionMemoryImpact,
			"Lambda - Memory Allocation Review",
			"Lambda bills memory times duration, so over-provisioned memory raises cost directly.",
			"Profile functions with AWS Lambda Power Tuning and lower memory where duration does not suffer.",
		},
	}
	for _, r := range categoryRules {
		amount := classification.AttributableTotal(r.category)
		if amount == nil || !amount.GreaterThan(r.threshold) {
			continue
		}
		subject := strings.Join(lo.Map(classification.Traceability[r.category], func(c classifier.Contribution, _ int) string {
			return c.BillName
		}), ", ")
		out = append(out, serviceFinding(r.id, r.severity, r.category, subject, r.title,
			fmt.Sprintf("%s costs $%s/month. %s", r.category.Short(), amount.StringFixed(2), r.rationale),
			r.action, *amount, r.impact))
	}

	if summary.Total.GreaterThan(th.Budget) {
		out = append(out, finding.Finding{
			ID:              finding.FindingBudgetAlert,
			Severity:        finding.SeverityLow,
			SubjectID:       accountSubject,
			Title:           "Account - No Spend Guardrail",
			Rationale:       fmt.Sprintf("Total monthly cost is $%s.", summary.Total.StringFixed(2)),
			Action:          "Create an AWS Budget with alerts at 80% and 100% of expected spend.",
			EstimatedImpact: "Early warning on cost increases",
			ImpactAmount:    decimal.Zero,
		})
	}

	if n := len(summary.Items); n > th.SprawlServices {
		out = append(out, finding.Finding{
			ID:              finding.FindingServiceSprawl,
			Severity:        finding.SeverityLow,
			SubjectID:       accountSubject,
			Title:           "Account - Service Sprawl",
			Rationale:       fmt.Sprintf("%d different services are billed. Unused or underutilized resources hide easily across many services.", n),
			Action:          "Review each billed service and terminate resources nobody owns.",
			EstimatedImpact: "Unknown",
			ImpactAmount:    decimal.Zero,
			Metadata:        map[string]any{"services": n},
		})
	}

	small := lo.Filter(summary.Items, func(item billing.LineItem, _ int) bool {
		return item.Amount.LessThan(th.SmallService)
	})
	if len(small) > th.ConsolidationServices {
		out = append(out, finding.Finding{
			ID:              finding.FindingServiceConsolidation,
			Severity:        finding.SeverityLow,
			SubjectID:       accountSubject,
			Title:           "Account - Many Low-Cost Services",
			Rationale:       fmt.Sprintf("%d services each cost less than $%s/month.", len(small), th.SmallService.StringFixed(2)),
			Action:          "Consolidate overlapping functionality to reduce sprawl and management overhead.",
			EstimatedImpact: "Unknown",
			ImpactAmount:    decimal.Zero,
			Metadata: map[string]any{"services": lo.Map(small, func(item billing.LineItem, _ int) string {
				return item.ServiceName
			})},
		})
	}
	return out
}

func serviceFinding(id finding.FindingID, sev finding.Severity, category classifier.Category, subject, title, rationale, action string, amount, impact decimal.Decimal) finding.Finding {
	savings := amount.Mul(impact)
	return finding.Finding{
		ID:              id,
		Severity:        sev,
		Category:        category,
		SubjectID:       subject,
		Title:           title,
		Rationale:       rationale,
		Action:          action,
		EstimatedImpact: fmt.Sprintf("Up to $%s/month (%s%% potential savings)", savings.StringFixed(2), percent(impact)),
		ImpactAmount:    savings,
		Metadata:        map[string]any{"monthly_cost": amount.StringFixed(2)},
	}
}
