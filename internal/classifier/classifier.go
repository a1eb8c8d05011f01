package classifier

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/ppiankov/billspectre/internal/billing"
)

// serviceTable maps Cost Explorer service names to inventory categories.
var serviceTable = map[string]Category{
	"Amazon Elastic Compute Cloud - Compute": Compute,
	"EC2 - Other":                            Compute,
	"EC2-Other":                              Compute,
	"Amazon Elastic Container Service for Kubernetes": ManagedKubernetes,
	"Amazon EKS":                         ManagedKubernetes,
	"Amazon Simple Storage Service":      ObjectStorage,
	"Amazon Relational Database Service": RelationalDB,
	"Amazon Virtual Private Cloud":       Network,
	"AWS Lambda":                         Serverless,
	"Amazon DynamoDB":                    KeyValueStore,
	"Amazon Elastic Load Balancing":      LoadBalancer,
	"AmazonCloudWatch":                   MetricsAlarms,
	"Amazon Route 53":                    DNS,
	"AWS Systems Manager":                ManagedOps,
	"AWS Secrets Manager":                SecretStore,
	"Amazon GuardDuty":                   ThreatDetection,
}

// excluded lists billed services that have no discoverable resources.
var excluded = map[string]bool{
	"Tax":                      true,
	"AWS Support (Basic)":      true,
	"AWS Support (Developer)":  true,
	"AWS Support (Business)":   true,
	"AWS Support (Enterprise)": true,
}

// Contribution is one billed service that mapped to a category.
type Contribution struct {
	BillName string          `json:"bill_name"`
	Amount   decimal.Decimal `json:"amount"`
}

// Result is the ordered set of categories to discover plus the billed
// services behind each one.
type Result struct {
	Categories   []Category                  `json:"categories"`
	Traceability map[Category][]Contribution `json:"traceability"`
}

// Lookup returns the category for a billing service name.
func Lookup(serviceName string) (Category, bool) {
	if excluded[serviceName] {
		return "", false
	}
	c, ok := serviceTable[serviceName]
	return c, ok
}

// Classify maps billed line items to categories in descending amount order.
// Each category appears once, at the position of its most expensive service.
func Classify(items []billing.LineItem) Result {
	sorted := slices.Clone(items)
	billing.SortLineItems(sorted)

	result := Result{Traceability: make(map[Category][]Contribution)}
	for _, item := range sorted {
		c, ok := Lookup(item.ServiceName)
		if !ok {
			continue
		}
		if _, seen := result.Traceability[c]; !seen {
			result.Categories = append(result.Categories, c)
		}
		// Input is already sorted, so each list stays amount-descending.
		result.Traceability[c] = append(result.Traceability[c], Contribution{
			BillName: item.ServiceName,
			Amount:   item.Amount,
		})
	}
	return result
}

// Total returns the amount billed under the category across all of its
// contributing services.
func (r Result) Total(c Category) decimal.Decimal {
	total := decimal.Zero
	for _, contrib := range r.Traceability[c] {
		total = total.Add(contrib.Amount)
	}
	return total
}

// AttributableTotal returns the amount billed under the category's
// attribution services, or nil when none of them appear on the bill.
func (r Result) AttributableTotal(c Category) *decimal.Decimal {
	names := c.BillingNames()
	var total *decimal.Decimal
	for _, contrib := range r.Traceability[c] {
		if !slices.Contains(names, contrib.BillName) {
			continue
		}
		sum := contrib.Amount
		if total != nil {
			sum = total.Add(contrib.Amount)
		}
		total = &sum
	}
	return total
}

// Filter keeps only the categories in keep, preserving order. An empty keep
// list returns r unchanged.
func (r Result) Filter(keep []Category) Result {
	if len(keep) == 0 {
		return r
	}
	out := Result{Traceability: make(map[Category][]Contribution)}
	for _, c := range r.Categories {
		if slices.Contains(keep, c) {
			out.Categories = append(out.Categories, c)
			out.Traceability[c] = r.Traceability[c]
		}
	}
	return out
}
