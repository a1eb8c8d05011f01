package rules

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/ppiankov/billspectre/internal/classifier"
	"github.com/ppiankov/billspectre/internal/finding"
	"github.com/ppiankov/billspectre/internal/inventory"
	"github.com/ppiankov/billspectre/internal/pricing"
)

// monitoringAbsent fires only when telemetry positively showed no data.
func monitoringAbsent(_ Thresholds, in ResourceInput) *finding.Finding {
	if in.Telemetry == nil || in.Telemetry.MonitoringEnabled == nil || *in.Telemetry.MonitoringEnabled {
		return nil
	}

	f := &finding.Finding{
		ID:              finding.FindingMonitoringDisabled,
		Severity:        finding.SeverityHigh,
		EstimatedImpact: "Unknown (cannot optimize without metrics)",
	}
	switch in.Record.Category {
	case classifier.ManagedKubernetes:
		f.Title = label(in) + " - Container Insights Not Enabled"
		f.Rationale = "No Container Insights metrics were published in the telemetry window, so node and pod utilization cannot be assessed."
		f.Action = "Enable Container Insights: aws eks create-addon --cluster-name " + in.Record.ID + " --addon-name amazon-cloudwatch-observability"
	case classifier.RelationalDB:
		f.Title = label(in) + " - CloudWatch Metrics Missing"
		f.Rationale = "No AWS/RDS metrics were returned in the telemetry window, so the instance class cannot be right-sized."
		f.Action = "Check that the DB instance is publishing metrics and enable Enhanced Monitoring for " + in.Record.ID + "."
	default:
		f.Title = label(in) + " - CloudWatch Monitoring Not Enabled"
		f.Rationale = "Without CloudWatch metrics there is no CPU, disk or network history, which blocks every sizing decision."
		f.Action = "aws ec2 monitor-instances --instance-ids " + in.Record.ID
	}
	return f
}

// agentAbsent fires for running instances whose agent namespace is empty.
func agentAbsent(_ Thresholds, in ResourceInput) *finding.Finding {
	inst, ok := in.Record.Details.(inventory.Instance)
	if !ok || !inst.Running() {
		return nil
	}
	if in.Telemetry == nil || in.Telemetry.AgentInstalled == nil || *in.Telemetry.AgentInstalled {
		return nil
	}
	return &finding.Finding{
		ID:              finding.FindingAgentNotInstalled,
		Severity:        finding.SeverityMedium,
		Title:           label(in) + " - CloudWatch Agent Not Installed",
		Rationale:       "Only hypervisor metrics are available. Memory and disk utilization need the CloudWatch agent, and sizing falls back to the current memory size without them.",
		Action:          "Install the CloudWatch agent: https://docs.aws.amazon.com/AmazonCloudWatch/latest/monitoring/Install-CloudWatch-Agent.html",
		EstimatedImpact: "Enables accurate right-sizing",
	}
}

// rightSizing fires when the sizing advisor picked a different tier.
func rightSizing(_ Thresholds, in ResourceInput) *finding.Finding {
	rec := in.Sizing
	if rec == nil || !rec.Changed() {
		return nil
	}

	meta := map[string]any{
		"current_tier":     rec.Current,
		"recommended_tier": rec.Tier.Name,
		"basis":            rec.Basis,
	}
	if rec.MonthlySavings.IsPositive() {
		return &finding.Finding{
			ID:        finding.FindingRightSize,
			Severity:  finding.SeverityHigh,
			Title:     label(in) + " - Right-Sizing Opportunity",
			Rationale: fmt.Sprintf("Over-provisioned for observed usage (%s). %s needs %d vCPU and %.0f GiB; %s provides %d vCPU and %.0f GiB.", rec.Basis, rec.Current, rec.RequiredVCPU, rec.RequiredMemoryGiB, rec.Tier.Name, rec.Tier.VCPU, rec.Tier.MemoryGiB),
			Action:    fmt.Sprintf("Stop the resource, change its size from %s to %s, and restart.", rec.Current, rec.Tier.Name),
			EstimatedImpact: fmt.Sprintf("$%s/month (%.1f%% reduction)",
				rec.MonthlySavings.StringFixed(2), rec.SavingsPercent),
			ImpactAmount: rec.MonthlySavings,
			Metadata:     meta,
		}
	}
	return &finding.Finding{
		ID:              finding.FindingUnderProvisioned,
		Severity:        finding.SeverityMedium,
		Title:           label(in) + " - Performance Risk",
		Rationale:       fmt.Sprintf("Observed usage (%s) is close to the capacity of %s.", rec.Basis, rec.Current),
		Action:          fmt.Sprintf("Monitor closely and upgrade to %s if performance degrades.", rec.Tier.Name),
		EstimatedImpact: fmt.Sprintf("$%s/month additional", rec.MonthlySavings.Abs().StringFixed(2)),
		Metadata:        meta,
	}
}

// idleButBilled fires when an idle resource still carries cost.
func idleButBilled(_ Thresholds, in ResourceInput) *finding.Finding {
	idler, ok := in.Record.Details.(inventory.Idler)
	if !ok || !idler.Idle() {
		return nil
	}
	cost := costOrZero(in)
	if !cost.IsPositive() {
		return nil
	}

	f := &finding.Finding{
		ID:              finding.FindingIdleButBilled,
		Severity:        finding.SeverityHigh,
		EstimatedImpact: finding.Monthly(cost),
		ImpactAmount:    cost,
	}
	switch in.Record.Category {
	case classifier.Compute:
		f.Title = label(in) + " - Stopped but Incurring Costs"
		f.Rationale = "Stopped instances do not bill compute hours. The remaining cost comes from attached EBS volumes, Elastic IPs or snapshots."
		f.Action = "aws ec2 describe-volumes --filters Name=attachment.instance-id,Values=" + in.Record.ID
	case classifier.RelationalDB:
		f.Title = label(in) + " - Stopped but Incurring Costs"
		f.Rationale = "Stopped databases still bill storage and backups, and restart automatically after seven days."
		f.Action = "Snapshot and delete " + in.Record.ID + " if it is no longer needed."
	case classifier.ManagedKubernetes:
		f.Title = label(in) + " - No Worker Capacity"
		f.Rationale = "Every node group is scaled to zero while the control plane keeps billing hourly."
		f.Action = "aws eks delete-cluster --name " + in.Record.ID + " if the cluster is no longer used."
	default:
		f.Title = label(in) + " - No Registered Targets"
		f.Rationale = "The load balancer bills hourly and per LCU without routing traffic to any target."
		f.Action = "Delete the load balancer if it is no longer needed."
	}
	return f
}

// multiAZ fires when a cost-doubling standby runs on a database that is not
// in the available state.
func multiAZ(_ Thresholds, in ResourceInput) *finding.Finding {
	db, ok := in.Record.Details.(inventory.Database)
	if !ok || !db.MultiAZ || db.Status == "available" {
		return nil
	}
	cost := costOrZero(in)
	savings := cost.Mul(MultiAZImpact)
	return &finding.Finding{
		ID:              finding.FindingMultiAZNonProd,
		Severity:        finding.SeverityMedium,
		Title:           label(in) + " - Multi-AZ for Non-Production",
		Rationale:       fmt.Sprintf("Multi-AZ doubles instance cost, and the database is in status %q rather than serving production traffic.", db.Status),
		Action:          "Modify " + in.Record.ID + " to disable Multi-AZ.",
		EstimatedImpact: fmt.Sprintf("$%s/month (%s%% reduction)", savings.StringFixed(2), percent(MultiAZImpact)),
		ImpactAmount:    savings,
		Metadata:        map[string]any{"status": db.Status},
	}
}

// storageTiering fires when a large bucket keeps everything in the most
// expensive storage class.
func storageTiering(th Thresholds, in ResourceInput) *finding.Finding {
	b, ok := in.Record.Details.(inventory.Bucket)
	if !ok || !b.Enumerated || len(b.StorageClasses) != 1 {
		return nil
	}
	class := lo.Keys(b.StorageClasses)[0]
	if !pricing.MostExpensiveClass(class) {
		return nil
	}
	sizeGB := float64(b.SizeBytes) / bytesPerGB
	if sizeGB <= th.StorageTieringGB {
		return nil
	}

	cost := costOrZero(in)
	basis := "attributed"
	if in.Cost == nil {
		cost = pricing.MonthlyStorageCost(class, b.SizeBytes)
		basis = "list price"
	}
	savings := cost.Mul(StorageTieringImpact)
	return &finding.Finding{
		ID:              finding.FindingStorageTiering,
		Severity:        finding.SeverityMedium,
		Title:           label(in) + " - All Data in Standard Storage",
		Rationale:       fmt.Sprintf("%.2f GB is stored in %s, the most expensive class. Infrequently accessed data costs 40-68%% less in Intelligent-Tiering or Glacier.", sizeGB, class),
		Action:          "Add a lifecycle rule on " + in.Record.ID + " transitioning objects older than 30 days to INTELLIGENT_TIERING.",
		EstimatedImpact: fmt.Sprintf("$%s/month (%s%% reduction for infrequent access)", savings.StringFixed(2), percent(StorageTieringImpact)),
		ImpactAmount:    savings,
		Metadata: map[string]any{
			"size_gb":       decimal.NewFromFloat(sizeGB).StringFixed(2),
			"storage_class": class,
			"cost_basis":    basis,
		},
	}
}

func percent(frac decimal.Decimal) string {
	return frac.Mul(decimal.NewFromInt(100)).StringFixed(0)
}
