package history

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ppiankov/billspectre/internal/finding"
)

// DefaultPath is where run history is kept when no path is configured.
const DefaultPath = ".billspectre/history.db"

// Run is one recorded end-to-end pass.
type Run struct {
	ID           string          `json:"id"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   time.Time       `json:"finished_at"`
	Period       string          `json:"period"`
	BillingTotal decimal.Decimal `json:"billing_total"`
	Regions      []string        `json:"regions"`
	Categories   []string        `json:"categories"`
	Resources    int             `json:"resources"`
	FindingCount int             `json:"finding_count"`
	Savings      decimal.Decimal `json:"estimated_monthly_savings"`
	ReportPath   string          `json:"report_path,omitempty"`
	Errors       []string        `json:"errors,omitempty"`
}

// Store persists runs and their findings.
type Store interface {
	// Record saves a run with its ranked findings and returns the run id.
	Record(ctx context.Context, run *Run, findings []finding.Finding) (string, error)

	// List returns the most recent runs first, at most limit when limit > 0.
	List(ctx context.Context, limit int) ([]Run, error)

	// Get returns one run by id.
	Get(ctx context.Context, id string) (*Run, error)

	// Findings returns a run's findings in their recorded order.
	Findings(ctx context.Context, runID string) ([]finding.Finding, error)

	// Close releases resources.
	Close() error
}
