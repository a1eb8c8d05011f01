package rules

import (
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/ppiankov/billspectre/internal/attribution"
	"github.com/ppiankov/billspectre/internal/classifier"
	"github.com/ppiankov/billspectre/internal/finding"
	"github.com/ppiankov/billspectre/internal/inventory"
	"github.com/ppiankov/billspectre/internal/sizing"
	"github.com/ppiankov/billspectre/internal/telemetry"
)

// Cost is a resource's attributed monthly cost.
type Cost struct {
	Amount decimal.Decimal
	Source attribution.Source
}

// ResourceInput is everything known about one resource. Nil fields are
// unknown and make the rules that need them not fire.
type ResourceInput struct {
	Record    inventory.Record
	Telemetry *telemetry.Summary
	Cost      *Cost
	Sizing    *sizing.Recommendation
}

// rule inspects one resource and returns a finding when it fires.
type rule struct {
	name  string
	check func(Thresholds, ResourceInput) *finding.Finding
}

// Engine evaluates resource and service rules.
type Engine struct {
	thresholds Thresholds
	chains     map[classifier.Category][]rule
}

// NewEngine creates an engine with the standard rule chains.
func NewEngine(thresholds Thresholds) *Engine {
	return &Engine{
		thresholds: thresholds,
		chains: map[classifier.Category][]rule{
			classifier.Compute: {
				{"monitoring-absent", monitoringAbsent},
				{"agent-absent", agentAbsent},
				{"right-sizing", rightSizing},
				{"idle-but-billed", idleButBilled},
			},
			classifier.RelationalDB: {
				{"monitoring-absent", monitoringAbsent},
				{"right-sizing", rightSizing},
				{"idle-but-billed", idleButBilled},
				{"multi-az-redundancy", multiAZ},
			},
			classifier.ManagedKubernetes: {
				{"monitoring-absent", monitoringAbsent},
				{"idle-but-billed", idleButBilled},
			},
			classifier.ObjectStorage: {
				{"storage-tiering", storageTiering},
			},
			classifier.LoadBalancer: {
				{"idle-but-billed", idleButBilled},
			},
		},
	}
}

// EvaluateResources runs each resource's category chain. Every rule in a
// chain is evaluated; a rule that panics yields a LOW rule-failure finding
// and the chain continues. Findings come back in input order, then rule order.
func (e *Engine) EvaluateResources(inputs []ResourceInput) []finding.Finding {
	var out []finding.Finding
	for _, in := range inputs {
		for _, r := range e.chains[in.Record.Category] {
			if f := e.evaluate(r, in); f != nil {
				out = append(out, *f)
			}
		}
	}
	return out
}

func (e *Engine) evaluate(r rule, in ResourceInput) (f *finding.Finding) {
	defer func() {
		if p := recover(); p != nil {
			slog.Warn("Rule evaluation failed", "rule", r.name, "category", in.Record.Category, "resource", in.Record.ID, "error", p)
			f = &finding.Finding{
				ID:              finding.FindingRuleFailed,
				Severity:        finding.SeverityLow,
				Category:        in.Record.Category,
				SubjectID:       in.Record.ID,
				Region:          in.Record.Region,
				Title:           fmt.Sprintf("%s %s - Rule %s could not be evaluated", in.Record.Category.Short(), in.Record.ID, r.name),
				Rationale:       fmt.Sprintf("%v", p),
				Action:          "Re-run with --verbose and inspect the resource manually.",
				EstimatedImpact: "Unknown",
				Metadata:        map[string]any{"rule": r.name},
			}
		}
	}()
	f = r.check(e.thresholds, in)
	if f != nil {
		f.Category = in.Record.Category
		f.SubjectID = in.Record.ID
		f.Region = in.Record.Region
		if in.Cost != nil {
			if f.Metadata == nil {
				f.Metadata = map[string]any{}
			}
			f.Metadata["monthly_cost"] = in.Cost.Amount.StringFixed(2)
			f.Metadata["cost_source"] = string(in.Cost.Source)
		}
	}
	return f
}

// costOrZero returns the attributed amount, zero when unknown.
func costOrZero(in ResourceInput) decimal.Decimal {
	if in.Cost == nil {
		return decimal.Zero
	}
	return in.Cost.Amount
}

func label(in ResourceInput) string {
	switch in.Record.Category {
	case classifier.Compute:
		return "EC2 Instance " + in.Record.ID
	case classifier.RelationalDB:
		return "RDS Instance " + in.Record.ID
	case classifier.ManagedKubernetes:
		return "EKS Cluster " + in.Record.ID
	case classifier.ObjectStorage:
		return "S3 Bucket " + in.Record.ID
	case classifier.LoadBalancer:
		return "Load Balancer " + in.Record.ID
	}
	return in.Record.Category.Short() + " " + in.Record.ID
}
