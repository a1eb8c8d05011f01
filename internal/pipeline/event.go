package pipeline

import "github.com/ppiankov/billspectre/internal/classifier"

// Stage names a step of a run.
type Stage string

const (
	StageBilling   Stage = "billing"
	StageClassify  Stage = "classify"
	StageDiscover  Stage = "discover"
	StageAttribute Stage = "attribute"
	StageTelemetry Stage = "telemetry"
	StageSizing    Stage = "sizing"
	StageRules     Stage = "rules"
	StageReport    Stage = "report"
	StageHistory   Stage = "history"
)

// Outcome is what happened in a stage or unit.
type Outcome string

const (
	OutcomeStarted Outcome = "started"
	OutcomeDone    Outcome = "done"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// Event is one progress observation. Category, Region and ResourceID are
// set when the event concerns a single unit of work.
type Event struct {
	Stage      Stage
	Category   classifier.Category
	Region     string
	ResourceID string
	Outcome    Outcome
	Message    string
}
