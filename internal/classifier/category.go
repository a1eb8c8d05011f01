package classifier

import (
	"fmt"
	"strings"
)

// Category is an inventory bucket a billed service is classified into.
type Category string

const (
	Compute           Category = "Compute"
	ManagedKubernetes Category = "ManagedKubernetes"
	ObjectStorage     Category = "ObjectStorage"
	RelationalDB      Category = "RelationalDB"
	Network           Category = "Network"
	Serverless        Category = "Serverless"
	KeyValueStore     Category = "KeyValueStore"
	LoadBalancer      Category = "LoadBalancer"
	DNS               Category = "DNS"
	SecretStore       Category = "SecretStore"
	ManagedOps        Category = "ManagedOps"
	MetricsAlarms     Category = "MetricsAlarms"
	ThreatDetection   Category = "ThreatDetection"
)

// categoryInfo describes how a category is billed and discovered.
type categoryInfo struct {
	short string
	// billingNames are the Cost Explorer SERVICE values used for
	// resource-granular attribution.
	billingNames []string
	regional     bool
}

var categories = map[Category]categoryInfo{
	Compute:           {short: "EC2", billingNames: []string{"Amazon Elastic Compute Cloud - Compute"}, regional: true},
	ManagedKubernetes: {short: "EKS", billingNames: []string{"Amazon Elastic Container Service for Kubernetes", "Amazon EKS"}, regional: true},
	ObjectStorage:     {short: "S3", billingNames: []string{"Amazon Simple Storage Service"}, regional: false},
	RelationalDB:      {short: "RDS", billingNames: []string{"Amazon Relational Database Service"}, regional: true},
	Network:           {short: "VPC", billingNames: []string{"Amazon Virtual Private Cloud"}, regional: true},
	Serverless:        {short: "Lambda", billingNames: []string{"AWS Lambda"}, regional: true},
	KeyValueStore:     {short: "DynamoDB", billingNames: []string{"Amazon DynamoDB"}, regional: true},
	LoadBalancer:      {short: "ELB", billingNames: []string{"Amazon Elastic Load Balancing"}, regional: true},
	DNS:               {short: "Route53", billingNames: []string{"Amazon Route 53"}, regional: false},
	SecretStore:       {short: "SecretsManager", billingNames: []string{"AWS Secrets Manager"}, regional: true},
	ManagedOps:        {short: "SystemsManager", billingNames: []string{"AWS Systems Manager"}, regional: true},
	MetricsAlarms:     {short: "CloudWatch", billingNames: []string{"AmazonCloudWatch"}, regional: true},
	ThreatDetection:   {short: "GuardDuty", billingNames: []string{"Amazon GuardDuty"}, regional: true},
}

// All returns every category in declaration order.
func All() []Category {
	return []Category{
		Compute, ManagedKubernetes, ObjectStorage, RelationalDB, Network, Serverless,
		KeyValueStore, LoadBalancer, DNS, SecretStore, ManagedOps, MetricsAlarms, ThreatDetection,
	}
}

func (c Category) String() string { return string(c) }

// Short returns the AWS service shorthand for the category, e.g. "EC2".
func (c Category) Short() string {
	if info, ok := categories[c]; ok {
		return info.short
	}
	return string(c)
}

// BillingNames returns the billing service names used to attribute costs to
// individual resources of this category.
func (c Category) BillingNames() []string {
	return categories[c].billingNames
}

// Regional reports whether the category is discovered and billed per region.
// S3 and Route 53 are listed once per account.
func (c Category) Regional() bool {
	return categories[c].regional
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	_, ok := categories[c]
	return ok
}

// ParseCategory accepts a category name or its AWS shorthand, case-insensitively.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, c := range All() {
		if strings.EqualFold(s, string(c)) || strings.EqualFold(s, c.Short()) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown service %q", s)
}

// ParseCategories parses a list of service names, skipping blanks.
func ParseCategories(names []string) ([]Category, error) {
	var out []Category
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		c, err := ParseCategory(name)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
