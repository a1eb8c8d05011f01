package report

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/ppiankov/billspectre/internal/analyzer"
	"github.com/ppiankov/billspectre/internal/attribution"
	"github.com/ppiankov/billspectre/internal/billing"
	"github.com/ppiankov/billspectre/internal/classifier"
	"github.com/ppiankov/billspectre/internal/finding"
	"github.com/ppiankov/billspectre/internal/inventory"
	"github.com/ppiankov/billspectre/internal/pricing"
	"github.com/ppiankov/billspectre/internal/sizing"
	"github.com/ppiankov/billspectre/internal/telemetry"
)

// CostUnavailable is written in cost cells that have no attribution.
const CostUnavailable = "cost unavailable"

// Input is the run state the workbook is laid out from. Per-resource maps
// are keyed by category, then resource id.
type Input struct {
	GeneratedAt    time.Time
	Billing        billing.Summary
	Classification classifier.Result
	Records        map[classifier.Category][]inventory.Record
	Costs          map[classifier.Category]attribution.Result
	Telemetry      map[classifier.Category]map[string]*telemetry.Summary
	Sizing         map[classifier.Category]map[string]sizing.Recommendation
	Findings       []finding.Finding
	Summary        analyzer.Summary
	Errors         []string
}

// BuildSections lays out the summary sheet followed by one sheet per
// discovered category in classification order.
func BuildSections(in Input) []Section {
	sections := []Section{summarySection(in)}
	for _, c := range in.Classification.Categories {
		records, ok := in.Records[c]
		if !ok {
			continue
		}
		sections = append(sections, categorySection(in, c, records))
	}
	return sections
}

func summarySection(in Input) Section {
	overview := Table{
		Title:   "Cost Summary",
		Columns: []Column{{Header: "Item", Width: 30}, {Header: "Value", Width: 30}},
		Rows: [][]any{
			{"Billing period", in.Billing.Period.String()},
			{"Total cost (USD)", in.Billing.Total},
			{"Services billed", len(in.Billing.Items)},
			{"Categories discovered", len(in.Classification.Categories)},
			{"Resources discovered", in.Summary.TotalResourcesScanned},
			{"Recommendations", in.Summary.TotalFindings},
			{"Estimated monthly savings (USD)", in.Summary.TotalMonthlySavings},
			{"Generated at", in.GeneratedAt.UTC().Format(time.RFC3339)},
		},
	}

	services := Table{
		Title: "Cost by Service",
		Columns: []Column{
			{Header: "Service", Width: 45}, {Header: "Category", Width: 18},
			{Header: "Monthly Cost (USD)", Width: 18}, {Header: "Share %", Width: 10},
		},
	}
	for _, item := range in.Billing.Items {
		category := "not discovered"
		if c, ok := classifier.Lookup(item.ServiceName); ok {
			category = c.Short()
		}
		share := 0.0
		if in.Billing.Total.IsPositive() {
			share = round1(item.Amount.Div(in.Billing.Total).Mul(decimal.NewFromInt(100)).InexactFloat64())
		}
		services.Rows = append(services.Rows, []any{item.ServiceName, category, item.Amount, share})
	}

	recs := Table{
		Title: "Recommendations",
		Columns: []Column{
			{Header: "#", Width: 5}, {Header: "Severity", Width: 10}, {Header: "Category", Width: 15},
			{Header: "Resource", Width: 30}, {Header: "Region", Width: 14}, {Header: "Title", Width: 50},
			{Header: "Reason", Width: 60}, {Header: "Action", Width: 60}, {Header: "Estimated Impact", Width: 30},
		},
	}
	for i, f := range in.Findings {
		category := ""
		if f.Category != "" {
			category = f.Category.Short()
		}
		recs.Rows = append(recs.Rows, []any{
			i + 1, string(f.Severity), category, f.SubjectID, f.Region,
			f.Title, f.Rationale, f.Action, f.EstimatedImpact,
		})
	}

	tables := []Table{overview, services, recs}
	if len(in.Errors) > 0 {
		warnings := Table{Title: "Warnings", Columns: []Column{{Header: "Message", Width: 100}}}
		for _, e := range in.Errors {
			warnings.Rows = append(warnings.Rows, []any{e})
		}
		tables = append(tables, warnings)
	}
	return Section{Name: "Summary", Title: "AWS Cost Optimization Report", Tables: tables}
}

// layout describes a category sheet: its leading columns and how a record
// fills them.
type layout struct {
	title   string
	columns []Column
	row     func(rec inventory.Record, rc rowContext) []any
}

// rowContext carries the per-resource joins for one row.
type rowContext struct {
	telemetry *telemetry.Summary
	sizing    *sizing.Recommendation
}

var trailingColumns = []Column{
	{Header: "Monthly Cost (USD)", Width: 18},
	{Header: "Cost Source", Width: 14},
	{Header: "Recommended Change", Width: 50},
	{Header: "Estimated Impact", Width: 30},
}

func categorySection(in Input, c classifier.Category, records []inventory.Record) Section {
	l := layoutFor(c)
	costs := in.Costs[c]

	// Findings are ranked, so the first one per subject is the most urgent.
	top := make(map[string]finding.Finding)
	for _, f := range in.Findings {
		if f.Category != c || f.ServiceLevel() {
			continue
		}
		key := inventory.ResourceKey(f.Region, f.SubjectID)
		if _, seen := top[key]; !seen {
			top[key] = f
		}
	}

	table := Table{Columns: append(append([]Column{}, l.columns...), trailingColumns...)}
	for _, rec := range records {
		key := rec.Key()
		rc := rowContext{telemetry: in.Telemetry[c][key]}
		if s, ok := in.Sizing[c][key]; ok {
			rc.sizing = &s
		}
		row := l.row(rec, rc)

		if amount, ok := costs.Costs[key]; ok {
			row = append(row, amount, string(costs.Source))
		} else {
			row = append(row, CostUnavailable, "")
		}
		if f, ok := top[key]; ok {
			row = append(row, f.Action, f.EstimatedImpact)
		} else {
			row = append(row, "", "")
		}
		table.Rows = append(table.Rows, row)
	}

	title := fmt.Sprintf("%s - %d resources", l.title, len(records))
	if total := in.Classification.Total(c); total.IsPositive() {
		title += fmt.Sprintf(", billed $%s", total.StringFixed(2))
	}
	return Section{Name: c.Short(), Title: title, Tables: []Table{table}}
}

func layoutFor(c classifier.Category) layout {
	switch c {
	case classifier.Compute:
		return layout{
			title: "EC2 Instances",
			columns: []Column{
				{Header: "Instance ID", Width: 22}, {Header: "Name", Width: 25}, {Header: "Region", Width: 14},
				{Header: "Type", Width: 14}, {Header: "State", Width: 10}, {Header: "Platform", Width: 12},
				{Header: "CPU Avg %", Width: 10}, {Header: "CPU Max %", Width: 10}, {Header: "Memory Max %", Width: 12},
				{Header: "Monitoring", Width: 12}, {Header: "CloudWatch Agent", Width: 16},
				{Header: "Recommended Type", Width: 16}, {Header: "Analysis", Width: 60},
			},
			row: func(rec inventory.Record, rc rowContext) []any {
				d := rec.Details.(inventory.Instance)
				usage := rc.telemetry.Usage()
				recommended, advice := "", ""
				if rc.sizing != nil {
					if rc.sizing.Changed() {
						recommended = rc.sizing.Tier.Name
					}
					advice = sizing.Advice(*rc.sizing, usage)
				} else if d.Running() {
					advice = sizing.Advice(sizing.Recommendation{}, usage)
				} else {
					advice = "Instance is " + d.State + "."
				}
				return []any{
					rec.ID, d.Tags["Name"], rec.Region, d.InstanceType, d.State, d.Platform,
					pct(usage.CPUAvg), pct(usage.CPUMax), pct(usage.MemMax),
					flag(monitoring(rc.telemetry)), flag(agent(rc.telemetry)),
					recommended, advice,
				}
			},
		}
	case classifier.RelationalDB:
		return layout{
			title: "RDS Instances",
			columns: []Column{
				{Header: "DB Identifier", Width: 25}, {Header: "Region", Width: 14}, {Header: "Class", Width: 16},
				{Header: "Engine", Width: 14}, {Header: "Status", Width: 12}, {Header: "Multi-AZ", Width: 10},
				{Header: "Storage GB", Width: 11}, {Header: "CPU Avg %", Width: 10}, {Header: "CPU Max %", Width: 10},
				{Header: "Recommended Class", Width: 18},
			},
			row: func(rec inventory.Record, rc rowContext) []any {
				d := rec.Details.(inventory.Database)
				usage := rc.telemetry.Usage()
				recommended := ""
				if rc.sizing != nil && rc.sizing.Changed() {
					recommended = rc.sizing.Tier.Name
				}
				return []any{
					rec.ID, rec.Region, d.Class, d.Engine + " " + d.EngineVersion, d.Status, yesNo(d.MultiAZ),
					d.AllocatedGB, pct(usage.CPUAvg), pct(usage.CPUMax), recommended,
				}
			},
		}
	case classifier.ManagedKubernetes:
		return layout{
			title: "EKS Clusters",
			columns: []Column{
				{Header: "Cluster", Width: 25}, {Header: "Region", Width: 14}, {Header: "Version", Width: 10},
				{Header: "Status", Width: 12}, {Header: "Node Groups", Width: 40}, {Header: "Desired Nodes", Width: 14},
				{Header: "Node CPU Avg %", Width: 14}, {Header: "Container Insights", Width: 18},
			},
			row: func(rec inventory.Record, rc rowContext) []any {
				d := rec.Details.(inventory.Cluster)
				groups := "unknown"
				if d.NodeGroupsListed {
					groups = strings.Join(lo.Map(d.NodeGroups, func(ng inventory.NodeGroup, _ int) string {
						return fmt.Sprintf("%s (%s x%d)", ng.Name, ng.InstanceType, ng.DesiredSize)
					}), ", ")
					if d.UndescribedNodeGroups > 0 {
						groups += fmt.Sprintf(" (+%d not described)", d.UndescribedNodeGroups)
					}
				}
				var nodeCPU *float64
				if st, ok := rc.telemetry.Stat(telemetry.MetricNodeCPU); ok {
					nodeCPU = &st.Avg
				}
				return []any{
					rec.ID, rec.Region, d.Version, d.Status, groups, d.DesiredNodes(),
					pct(nodeCPU), flag(monitoring(rc.telemetry)),
				}
			},
		}
	case classifier.ObjectStorage:
		return layout{
			title: "S3 Buckets",
			columns: []Column{
				{Header: "Bucket", Width: 35}, {Header: "Region", Width: 14}, {Header: "Size GB", Width: 12},
				{Header: "Objects", Width: 12}, {Header: "Storage Classes", Width: 40},
				{Header: "List Price Storage (USD)", Width: 22},
			},
			row: func(rec inventory.Record, _ rowContext) []any {
				d := rec.Details.(inventory.Bucket)
				if !d.Enumerated {
					return []any{rec.ID, rec.Region, "unknown", "unknown", "unknown", ""}
				}
				listPrice := decimal.Zero
				for class, bytes := range d.StorageClasses {
					listPrice = listPrice.Add(pricing.MonthlyStorageCost(class, bytes))
				}
				return []any{
					rec.ID, rec.Region, round2(float64(d.SizeBytes) / (1 << 30)), d.ObjectCount,
					storageClasses(d.StorageClasses), listPrice,
				}
			},
		}
	case classifier.Network:
		return layout{
			title: "VPCs",
			columns: []Column{
				{Header: "VPC ID", Width: 24}, {Header: "Name", Width: 25}, {Header: "Region", Width: 14},
				{Header: "CIDR", Width: 18}, {Header: "State", Width: 12}, {Header: "Default", Width: 9},
				{Header: "Subnets", Width: 9},
			},
			row: func(rec inventory.Record, _ rowContext) []any {
				d := rec.Details.(inventory.Network)
				return []any{rec.ID, d.Tags["Name"], rec.Region, d.CidrBlock, d.State, yesNo(d.IsDefault), d.SubnetCount}
			},
		}
	case classifier.Serverless:
		return layout{
			title: "Lambda Functions",
			columns: []Column{
				{Header: "Function", Width: 35}, {Header: "Region", Width: 14}, {Header: "Runtime", Width: 14},
				{Header: "Memory MB", Width: 11}, {Header: "Timeout s", Width: 10}, {Header: "Code Size MB", Width: 13},
				{Header: "Last Modified", Width: 30},
			},
			row: func(rec inventory.Record, _ rowContext) []any {
				d := rec.Details.(inventory.Function)
				return []any{
					rec.ID, rec.Region, d.Runtime, d.MemoryMB, d.TimeoutSec,
					round2(float64(d.CodeSize) / (1 << 20)), d.LastModified,
				}
			},
		}
	case classifier.KeyValueStore:
		return layout{
			title: "DynamoDB Tables",
			columns: []Column{
				{Header: "Table", Width: 30}, {Header: "Region", Width: 14}, {Header: "Status", Width: 10},
				{Header: "Items", Width: 12}, {Header: "Size MB", Width: 11}, {Header: "Billing Mode", Width: 18},
			},
			row: func(rec inventory.Record, _ rowContext) []any {
				d := rec.Details.(inventory.Table)
				return []any{rec.ID, rec.Region, d.Status, d.ItemCount, round2(float64(d.SizeBytes) / (1 << 20)), d.BillingMode}
			},
		}
	case classifier.LoadBalancer:
		return layout{
			title: "Load Balancers",
			columns: []Column{
				{Header: "Name", Width: 30}, {Header: "Region", Width: 14}, {Header: "Type", Width: 12},
				{Header: "Scheme", Width: 16}, {Header: "State", Width: 10}, {Header: "Target Groups", Width: 13},
				{Header: "Targets", Width: 9},
			},
			row: func(rec inventory.Record, _ rowContext) []any {
				d := rec.Details.(inventory.LoadBalancer)
				var targets any = "unknown"
				if d.Targets != nil {
					targets = *d.Targets
				}
				return []any{rec.ID, rec.Region, d.Type, d.Scheme, d.State, d.TargetGroups, targets}
			},
		}
	case classifier.DNS:
		return layout{
			title: "Route 53 Hosted Zones",
			columns: []Column{
				{Header: "Zone ID", Width: 24}, {Header: "Name", Width: 35}, {Header: "Private", Width: 9},
				{Header: "Records", Width: 9},
			},
			row: func(rec inventory.Record, _ rowContext) []any {
				d := rec.Details.(inventory.HostedZone)
				return []any{rec.ID, d.Name, yesNo(d.Private), d.RecordCount}
			},
		}
	case classifier.SecretStore:
		return layout{
			title: "Secrets Manager Secrets",
			columns: []Column{
				{Header: "Secret", Width: 35}, {Header: "Region", Width: 14}, {Header: "Rotation", Width: 10},
				{Header: "Last Accessed", Width: 14},
			},
			row: func(rec inventory.Record, _ rowContext) []any {
				d := rec.Details.(inventory.Secret)
				accessed := "never"
				if d.LastAccessed != nil {
					accessed = d.LastAccessed.Format(time.DateOnly)
				}
				return []any{rec.ID, rec.Region, yesNo(d.RotationEnabled), accessed}
			},
		}
	case classifier.ManagedOps:
		return layout{
			title: "Systems Manager Managed Nodes",
			columns: []Column{
				{Header: "Instance ID", Width: 22}, {Header: "Region", Width: 14}, {Header: "Ping Status", Width: 16},
				{Header: "Platform", Width: 20}, {Header: "Agent Version", Width: 14},
			},
			row: func(rec inventory.Record, _ rowContext) []any {
				d := rec.Details.(inventory.ManagedNode)
				return []any{rec.ID, rec.Region, d.PingStatus, d.PlatformName, d.AgentVersion}
			},
		}
	case classifier.MetricsAlarms:
		return layout{
			title: "CloudWatch Alarms",
			columns: []Column{
				{Header: "Alarm", Width: 35}, {Header: "Region", Width: 14}, {Header: "State", Width: 18},
				{Header: "Namespace", Width: 18}, {Header: "Metric", Width: 22}, {Header: "Actions Enabled", Width: 15},
			},
			row: func(rec inventory.Record, _ rowContext) []any {
				d := rec.Details.(inventory.Alarm)
				return []any{rec.ID, rec.Region, d.State, d.Namespace, d.MetricName, yesNo(d.ActionsEnabled)}
			},
		}
	case classifier.ThreatDetection:
		return layout{
			title: "GuardDuty Detectors",
			columns: []Column{
				{Header: "Detector ID", Width: 36}, {Header: "Region", Width: 14}, {Header: "Status", Width: 10},
				{Header: "Publishing Frequency", Width: 20},
			},
			row: func(rec inventory.Record, _ rowContext) []any {
				d := rec.Details.(inventory.Detector)
				if !d.Described {
					return []any{rec.ID, rec.Region, "unknown", "unknown"}
				}
				return []any{rec.ID, rec.Region, d.Status, d.PublishingInterval}
			},
		}
	}
	return layout{
		title:   c.String(),
		columns: []Column{{Header: "ID", Width: 30}, {Header: "Region", Width: 14}},
		row: func(rec inventory.Record, _ rowContext) []any {
			return []any{rec.ID, rec.Region}
		},
	}
}

func monitoring(s *telemetry.Summary) *bool {
	if s == nil {
		return nil
	}
	return s.MonitoringEnabled
}

func agent(s *telemetry.Summary) *bool {
	if s == nil {
		return nil
	}
	return s.AgentInstalled
}

func flag(b *bool) string {
	if b == nil {
		return "Unknown"
	}
	return yesNo(*b)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func pct(v *float64) any {
	if v == nil {
		return "N/A"
	}
	return round1(*v)
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }

func storageClasses(classes map[string]int64) string {
	if len(classes) == 0 {
		return "empty"
	}
	names := lo.Keys(classes)
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, n := range names {
		parts = append(parts, fmt.Sprintf("%s: %.2f GB", n, float64(classes[n])/(1<<30)))
	}
	return strings.Join(parts, ", ")
}
