package sizing

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// HoursPerMonth is the billing month used to turn hourly prices into
// monthly costs.
const HoursPerMonth = 730

// headroom is applied on top of the peak observed utilization.
const headroom = 1.2

// cpuFitWeight scales how much a tight CPU fit contributes to a tier's score.
const cpuFitWeight = 0.5

// Tier is one capacity and price point.
type Tier struct {
	Name         string          `json:"name"`
	VCPU         int             `json:"vcpu"`
	MemoryGiB    float64         `json:"memory_gib"`
	PricePerHour decimal.Decimal `json:"price_per_hour"`
}

// MonthlyCost returns the on-demand cost of running the tier for a month.
func (t Tier) MonthlyCost() decimal.Decimal {
	return t.PricePerHour.Mul(decimal.NewFromInt(HoursPerMonth))
}

// Catalog is an ordered list of tiers. Order breaks scoring ties.
type Catalog []Tier

// Lookup finds a tier by name.
func (c Catalog) Lookup(name string) (Tier, bool) {
	for _, t := range c {
		if t.Name == name {
			return t, true
		}
	}
	return Tier{}, false
}

// Usage is the observed utilization, in percent, used as the sizing basis.
// Nil fields are unknown.
type Usage struct {
	CPUAvg *float64
	CPUMax *float64
	MemAvg *float64
	MemMax *float64
}

// Recommendation is the outcome of sizing one resource. Tier is nil when no
// candidate could be recommended.
type Recommendation struct {
	Current           string          `json:"current"`
	Tier              *Tier           `json:"tier,omitempty"`
	MonthlySavings    decimal.Decimal `json:"monthly_savings"`
	SavingsPercent    float64         `json:"savings_percent"`
	RequiredVCPU      int             `json:"required_vcpu"`
	RequiredMemoryGiB float64         `json:"required_memory_gib"`
	Basis             string          `json:"basis"`
}

// Changed reports whether a different tier is recommended with a nonzero
// cost difference.
func (r Recommendation) Changed() bool {
	return r.Tier != nil && r.Tier.Name != r.Current && !r.MonthlySavings.IsZero()
}

// RequiredVCPU is the vCPU count needed to serve the peak CPU utilization
// with headroom, never less than one.
func RequiredVCPU(cpuMax float64, current Tier) int {
	need := int(math.Floor(cpuMax / 100 * float64(current.VCPU) * headroom))
	return max(1, need)
}

// RequiredMemory is the memory needed to serve the peak memory utilization
// with headroom. Without memory telemetry the current memory is kept.
func RequiredMemory(memMax *float64, current Tier) float64 {
	if memMax == nil {
		return current.MemoryGiB
	}
	need := math.Floor(*memMax / 100 * current.MemoryGiB * headroom)
	return max(1, need)
}

// Recommend scores every catalog tier that satisfies the required capacity
// and returns the best one. Score is the savings percentage plus half the
// CPU fit percentage; the first tier in catalog order wins ties.
func Recommend(catalog Catalog, current string, usage Usage) Recommendation {
	rec := Recommendation{Current: current, MonthlySavings: decimal.Zero}

	cur, ok := catalog.Lookup(current)
	if !ok || usage.CPUMax == nil {
		return rec
	}

	rec.RequiredVCPU = RequiredVCPU(*usage.CPUMax, cur)
	rec.RequiredMemoryGiB = RequiredMemory(usage.MemMax, cur)
	rec.Basis = basis(usage)

	currentCost := cur.MonthlyCost()
	var (
		best      *Tier
		bestScore float64
		bestSave  decimal.Decimal
		bestPct   float64
	)
	for i := range catalog {
		t := catalog[i]
		if t.VCPU < rec.RequiredVCPU || t.MemoryGiB < rec.RequiredMemoryGiB {
			continue
		}
		savings := currentCost.Sub(t.MonthlyCost())
		pct := 0.0
		if !currentCost.IsZero() {
			pct = savings.Div(currentCost).Mul(decimal.NewFromInt(100)).InexactFloat64()
		}
		fit := float64(rec.RequiredVCPU) / float64(t.VCPU) * 100
		score := pct + cpuFitWeight*fit
		if best == nil || score > bestScore {
			best = &catalog[i]
			bestScore = score
			bestSave = savings
			bestPct = pct
		}
	}
	if best == nil {
		return rec
	}

	tier := *best
	rec.Tier = &tier
	rec.MonthlySavings = bestSave
	rec.SavingsPercent = bestPct
	return rec
}

// Advice renders a one-line sizing verdict for reports.
func Advice(rec Recommendation, usage Usage) string {
	if usage.CPUMax == nil {
		return "No metrics available. Enable CloudWatch monitoring."
	}
	avg := 0.0
	if usage.CPUAvg != nil {
		avg = *usage.CPUAvg
	}
	cpuMax := *usage.CPUMax

	switch {
	case rec.Changed() && rec.MonthlySavings.IsPositive():
		return fmt.Sprintf("Consider downsizing to %s - potential savings: $%s/month (%.1f%%)",
			rec.Tier.Name, rec.MonthlySavings.StringFixed(2), rec.SavingsPercent)
	case rec.Changed():
		return fmt.Sprintf("Consider upgrading to %s - better performance for $%s/month more",
			rec.Tier.Name, rec.MonthlySavings.Abs().StringFixed(2))
	case avg < 10:
		return fmt.Sprintf("Very low CPU usage (%.1f%%). Consider stopping if not needed or using a smaller type.", avg)
	case cpuMax > 80:
		return fmt.Sprintf("High CPU usage detected (max: %.1f%%). Monitor closely and consider upgrading if performance degrades.", cpuMax)
	default:
		return "Size appears appropriate for current usage."
	}
}

func basis(usage Usage) string {
	b := fmt.Sprintf("cpu max %.1f%%", *usage.CPUMax)
	if usage.MemMax != nil {
		b += fmt.Sprintf(", memory max %.1f%%", *usage.MemMax)
	}
	return b
}
