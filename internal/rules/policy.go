package rules

import "github.com/shopspring/decimal"

// Impact heuristics, as a fraction of the current monthly cost. These are
// policy choices, not measurements.
var (
	MultiAZImpact          = decimal.RequireFromString("0.5")
	StorageTieringImpact   = decimal.RequireFromString("0.4")
	TopServiceImpact       = decimal.RequireFromString("0.3")
	KubernetesImpact       = decimal.RequireFromString("0.2")
	DatabaseReservedImpact = decimal.RequireFromString("0.4")
	ComputeReservedImpact  = decimal.RequireFromString("0.3")
	StorageClassImpact     = decimal.RequireFromString("0.3")
	FunctionMemoryImpact   = decimal.RequireFromString("0.2")
)

const bytesPerGB = 1 << 30

// Thresholds are the monthly dollar amounts and counts above which
// service-level rules fire.
type Thresholds struct {
	TopService decimal.Decimal
	Kubernetes decimal.Decimal
	Database   decimal.Decimal
	Compute    decimal.Decimal
	Storage    decimal.Decimal
	Function   decimal.Decimal
	Budget     decimal.Decimal
	// StorageTieringGB is the bucket size above which single-tier storage is flagged.
	StorageTieringGB float64
	// SprawlServices is the billed service count above which sprawl is flagged.
	SprawlServices int
	// SmallService is the amount below which a service counts as small.
	SmallService decimal.Decimal
	// ConsolidationServices is the small service count above which
	// consolidation is suggested.
	ConsolidationServices int
}

// DefaultThresholds returns the built-in thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TopService:            decimal.NewFromInt(100),
		Kubernetes:            decimal.NewFromInt(200),
		Database:              decimal.NewFromInt(100),
		Compute:               decimal.NewFromInt(30),
		Storage:               decimal.NewFromInt(20),
		Function:              decimal.NewFromInt(10),
		Budget:                decimal.NewFromInt(100),
		StorageTieringGB:      100,
		SprawlServices:        10,
		SmallService:          decimal.NewFromInt(5),
		ConsolidationServices: 5,
	}
}
