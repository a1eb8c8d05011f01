package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/billspectre/internal/analyzer"
	"github.com/ppiankov/billspectre/internal/attribution"
	"github.com/ppiankov/billspectre/internal/billing"
	"github.com/ppiankov/billspectre/internal/classifier"
	"github.com/ppiankov/billspectre/internal/finding"
	"github.com/ppiankov/billspectre/internal/history"
	"github.com/ppiankov/billspectre/internal/inventory"
	"github.com/ppiankov/billspectre/internal/pricing"
	"github.com/ppiankov/billspectre/internal/report"
	"github.com/ppiankov/billspectre/internal/rules"
	"github.com/ppiankov/billspectre/internal/sizing"
	"github.com/ppiankov/billspectre/internal/telemetry"
)

// DefaultConcurrency bounds per-resource telemetry reads in flight.
const DefaultConcurrency = 8

// ErrBillingUnavailable wraps a failed billing summary query. It is the only
// failure that aborts a run.
var ErrBillingUnavailable = errors.New("billing summary unavailable")

// BillingReader fetches spend grouped by service.
type BillingReader interface {
	CostsByService(ctx context.Context, period billing.Period) (billing.Summary, error)
}

// Discoverer lists live resources per category and region.
type Discoverer interface {
	Discover(ctx context.Context, categories []classifier.Category, regions []string, progress func(inventory.Progress)) *inventory.Result
}

// TelemetryCollector reads one resource's utilization.
type TelemetryCollector interface {
	Collect(ctx context.Context, rec inventory.Record) *telemetry.Summary
}

// Recorder persists a finished run.
type Recorder interface {
	Record(ctx context.Context, run *history.Run, findings []finding.Finding) (string, error)
}

// Deps are the collaborators a pipeline drives. Sink and History are optional.
type Deps struct {
	Billing   BillingReader
	Costs     attribution.CostReader
	Inventory Discoverer
	Telemetry TelemetryCollector
	Sink      report.Sink
	History   Recorder
}

// Options configure one run.
type Options struct {
	// Regions is the resolved, ordered region set. The first entry is the
	// home region for global categories.
	Regions []string
	// Services narrows discovery to these categories when non-empty.
	Services  []classifier.Category
	OutputDir string
	// Concurrency bounds telemetry and attribution fan-out.
	Concurrency int
	// Thresholds default to rules.DefaultThresholds when nil.
	Thresholds       *rules.Thresholds
	MinMonthlyImpact decimal.Decimal
	// Events receives progress. It may be called from several goroutines.
	Events func(Event)
}

// Run is the outcome of one pass. Per-resource maps are keyed by category,
// then inventory.Record.Key.
type Run struct {
	ID             string
	StartedAt      time.Time
	FinishedAt     time.Time
	Period         billing.Period
	Regions        []string
	Billing        billing.Summary
	Classification classifier.Result
	Records        map[classifier.Category][]inventory.Record
	Costs          map[classifier.Category]attribution.Result
	Telemetry      map[classifier.Category]map[string]*telemetry.Summary
	Sizing         map[classifier.Category]map[string]sizing.Recommendation
	Findings       []finding.Finding
	Summary        analyzer.Summary
	ReportPath     string
	Errors         []string
}

// Pipeline sequences billing, discovery, attribution, telemetry, sizing,
// rules and reporting.
type Pipeline struct {
	deps    Deps
	now     func() time.Time
	catalog func(classifier.Category) (sizing.Catalog, error)
}

// New creates a pipeline over the given collaborators.
func New(deps Deps) *Pipeline {
	return &Pipeline{deps: deps, now: time.Now, catalog: catalogFor}
}

// Run performs one end-to-end pass over the preceding calendar month. Only
// a billing summary failure is returned as an error; every other failure is
// logged, recorded in Run.Errors and the run continues with partial data.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Run, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	th := rules.DefaultThresholds()
	if opts.Thresholds != nil {
		th = *opts.Thresholds
	}
	emit := func(e Event) {
		if opts.Events != nil {
			opts.Events(e)
		}
	}

	started := p.now().UTC()
	run := &Run{
		StartedAt: started,
		Period:    billing.LastFullMonth(started),
		Regions:   opts.Regions,
		Records:   map[classifier.Category][]inventory.Record{},
		Costs:     map[classifier.Category]attribution.Result{},
		Telemetry: map[classifier.Category]map[string]*telemetry.Summary{},
		Sizing:    map[classifier.Category]map[string]sizing.Recommendation{},
	}

	emit(Event{Stage: StageBilling, Outcome: OutcomeStarted, Message: run.Period.String()})
	summary, err := p.deps.Billing.CostsByService(ctx, run.Period)
	if err != nil {
		emit(Event{Stage: StageBilling, Outcome: OutcomeFailed, Message: err.Error()})
		return nil, fmt.Errorf("%w: %w", ErrBillingUnavailable, err)
	}
	run.Billing = summary
	emit(Event{Stage: StageBilling, Outcome: OutcomeDone,
		Message: fmt.Sprintf("%d services, total $%s", len(summary.Items), summary.Total.StringFixed(2))})

	run.Classification = classifier.Classify(summary.Items).Filter(opts.Services)
	categories := run.Classification.Categories
	emit(Event{Stage: StageClassify, Outcome: OutcomeDone, Message: fmt.Sprintf("%d categories to discover", len(categories))})
	if len(categories) == 0 {
		slog.Info("No billed services map to discoverable resources")
	}

	p.discover(ctx, run, categories, emit)
	p.attribute(ctx, run, categories, opts.Concurrency, emit)
	p.collectTelemetry(ctx, run, categories, opts.Concurrency, emit)
	p.size(run, emit)

	engine := rules.NewEngine(th)
	var inputs []rules.ResourceInput
	for _, c := range categories {
		for _, rec := range run.Records[c] {
			inputs = append(inputs, run.resourceInput(rec))
		}
	}
	findings := engine.EvaluateResources(inputs)
	findings = append(findings, engine.EvaluateServices(run.Billing, run.Classification)...)
	emit(Event{Stage: StageRules, Outcome: OutcomeDone, Message: fmt.Sprintf("%d findings", len(findings))})

	analysis := analyzer.Analyze(analyzer.Input{
		Findings:          findings,
		ResourcesScanned:  len(inputs),
		CategoriesScanned: len(categories),
		Errors:            run.Errors,
	}, analyzer.AnalyzerConfig{MinMonthlyImpact: opts.MinMonthlyImpact})
	run.Findings = analysis.Findings
	run.Summary = analysis.Summary

	p.writeReport(run, opts.OutputDir, emit)
	run.FinishedAt = p.now().UTC()
	p.record(ctx, run, emit)
	return run, nil
}

func (p *Pipeline) discover(ctx context.Context, run *Run, categories []classifier.Category, emit func(Event)) {
	if len(categories) == 0 {
		return
	}
	emit(Event{Stage: StageDiscover, Outcome: OutcomeStarted, Message: fmt.Sprintf("%d regions", len(run.Regions))})
	result := p.deps.Inventory.Discover(ctx, categories, run.Regions, func(pr inventory.Progress) {
		e := Event{Stage: StageDiscover, Category: pr.Category, Region: pr.Region, Outcome: OutcomeDone,
			Message: fmt.Sprintf("%d resources", pr.Count)}
		if pr.Err != nil {
			e.Outcome, e.Message = OutcomeFailed, pr.Err.Error()
		}
		emit(e)
	})
	run.Records = result.Records
	run.Errors = append(run.Errors, result.Errors...)
}

func (p *Pipeline) attribute(ctx context.Context, run *Run, categories []classifier.Category, concurrency int, emit func(Event)) {
	attributor := attribution.New(p.deps.Costs, run.Period, concurrency)
	discovered := lo.Filter(categories, func(c classifier.Category, _ int) bool {
		return len(run.Records[c]) > 0
	})
	results := make([]attribution.Result, len(discovered))

	var g errgroup.Group
	for i, c := range discovered {
		g.Go(func() error {
			records := run.Records[c]
			req := attribution.Request{
				Category: c,
				Resources: lo.Map(records, func(r inventory.Record, _ int) attribution.Resource {
					return attribution.Resource{Key: r.Key(), ID: r.ID, Region: r.Region}
				}),
				BillingTotal: run.Classification.AttributableTotal(c),
			}
			results[i] = attributeOne(ctx, attributor, req)
			e := Event{Stage: StageAttribute, Category: c, Outcome: OutcomeDone,
				Message: fmt.Sprintf("%d of %d resources costed (%s)", len(results[i].Costs), len(records), results[i].Source)}
			if results[i].Source == attribution.Unavailable && len(results[i].Errors) > 0 {
				e.Outcome, e.Message = OutcomeFailed, results[i].Errors[0]
			}
			emit(e)
			return nil
		})
	}
	_ = g.Wait()

	for i, c := range discovered {
		run.Costs[c] = results[i]
		run.Errors = append(run.Errors, results[i].Errors...)
	}
}

func attributeOne(ctx context.Context, a *attribution.Attributor, req attribution.Request) (res attribution.Result) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("Cost attribution panicked", "category", req.Category, "panic", r)
			res = attribution.Result{
				Costs:  map[string]decimal.Decimal{},
				Source: attribution.Unavailable,
				Errors: []string{fmt.Sprintf("%s attribution panic: %v", req.Category.Short(), r)},
			}
		}
	}()
	return a.Attribute(ctx, req)
}

// telemetryJob owns one output slot so workers never share a key.
type telemetryJob struct {
	rec     inventory.Record
	summary *telemetry.Summary
}

func (p *Pipeline) collectTelemetry(ctx context.Context, run *Run, categories []classifier.Category, concurrency int, emit func(Event)) {
	var jobs []*telemetryJob
	for _, c := range categories {
		if !telemetry.Supported(c) {
			continue
		}
		for _, rec := range run.Records[c] {
			jobs = append(jobs, &telemetryJob{rec: rec})
		}
	}
	if len(jobs) == 0 {
		return
	}
	emit(Event{Stage: StageTelemetry, Outcome: OutcomeStarted, Message: fmt.Sprintf("%d resources", len(jobs))})

	var g errgroup.Group
	g.SetLimit(concurrency)
	for _, job := range jobs {
		g.Go(func() error {
			job.summary = p.collectOne(ctx, job.rec)
			e := Event{Stage: StageTelemetry, Category: job.rec.Category, Region: job.rec.Region,
				ResourceID: job.rec.ID, Outcome: OutcomeDone}
			switch {
			case job.summary == nil:
				e.Outcome = OutcomeSkipped
			case len(job.summary.Errors) > 0:
				e.Outcome, e.Message = OutcomeFailed, job.summary.Errors[0]
			default:
				e.Message = fmt.Sprintf("%d metrics", len(job.summary.Metrics))
			}
			emit(e)
			return nil
		})
	}
	_ = g.Wait()

	for _, job := range jobs {
		if job.summary == nil {
			continue
		}
		c := job.rec.Category
		if run.Telemetry[c] == nil {
			run.Telemetry[c] = map[string]*telemetry.Summary{}
		}
		run.Telemetry[c][job.rec.Key()] = job.summary
		if n := len(job.summary.Errors); n > 0 {
			msg := fmt.Sprintf("%s/%s/%s telemetry: %s", c.Short(), job.rec.Region, job.rec.ID, job.summary.Errors[0])
			if n > 1 {
				msg += fmt.Sprintf(" (+%d more)", n-1)
			}
			run.Errors = append(run.Errors, msg)
		}
	}
}

func (p *Pipeline) collectOne(ctx context.Context, rec inventory.Record) (s *telemetry.Summary) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("Telemetry collection panicked", "category", rec.Category, "resource", rec.ID, "panic", r)
			s = &telemetry.Summary{Errors: []string{fmt.Sprintf("collector panic: %v", r)}}
		}
	}()
	return p.deps.Telemetry.Collect(ctx, rec)
}

func (p *Pipeline) size(run *Run, emit func(Event)) {
	for _, c := range []classifier.Category{classifier.Compute, classifier.RelationalDB} {
		records := run.Records[c]
		if len(records) == 0 {
			continue
		}
		catalog, err := p.catalog(c)
		if err != nil {
			slog.Warn("Tier catalog unavailable", "category", c, "error", err)
			run.Errors = append(run.Errors, fmt.Sprintf("%s sizing: %v", c.Short(), err))
			emit(Event{Stage: StageSizing, Category: c, Outcome: OutcomeFailed, Message: err.Error()})
			continue
		}
		recs := map[string]sizing.Recommendation{}
		for _, rec := range records {
			current, serving := sizingSubject(rec)
			if !serving {
				continue
			}
			usage := run.Telemetry[c][rec.Key()].Usage()
			if usage.CPUMax == nil {
				continue
			}
			recs[rec.Key()] = sizing.Recommend(catalog, current, usage)
		}
		run.Sizing[c] = recs
		emit(Event{Stage: StageSizing, Category: c, Outcome: OutcomeDone,
			Message: fmt.Sprintf("%d of %d resources sized", len(recs), len(records))})
	}
}

// sizingSubject returns the resource's current tier and whether it is
// serving load.
func sizingSubject(rec inventory.Record) (string, bool) {
	switch d := rec.Details.(type) {
	case inventory.Instance:
		return d.InstanceType, d.Running()
	case inventory.Database:
		return d.Class, d.Status == "available"
	}
	return "", false
}

func catalogFor(c classifier.Category) (sizing.Catalog, error) {
	switch c {
	case classifier.Compute:
		return pricing.EC2Tiers()
	case classifier.RelationalDB:
		return pricing.RDSTiers()
	}
	return nil, fmt.Errorf("no tier catalog for %s", c)
}

func (r *Run) resourceInput(rec inventory.Record) rules.ResourceInput {
	key := rec.Key()
	in := rules.ResourceInput{Record: rec, Telemetry: r.Telemetry[rec.Category][key]}
	if costs, ok := r.Costs[rec.Category]; ok {
		if amount, ok := costs.Cost(key); ok {
			in.Cost = &rules.Cost{Amount: amount, Source: costs.Source}
		}
	}
	if s, ok := r.Sizing[rec.Category][key]; ok {
		in.Sizing = &s
	}
	return in
}

// ReportInput lays the run out for the workbook.
func (r *Run) ReportInput() report.Input {
	return report.Input{
		GeneratedAt:    r.StartedAt,
		Billing:        r.Billing,
		Classification: r.Classification,
		Records:        r.Records,
		Costs:          r.Costs,
		Telemetry:      r.Telemetry,
		Sizing:         r.Sizing,
		Findings:       r.Findings,
		Summary:        r.Summary,
		Errors:         r.Errors,
	}
}

func (p *Pipeline) writeReport(run *Run, dir string, emit func(Event)) {
	if p.deps.Sink == nil {
		emit(Event{Stage: StageReport, Outcome: OutcomeSkipped})
		return
	}
	wb := p.deps.Sink.NewWorkbook()
	for _, s := range report.BuildSections(run.ReportInput()) {
		if err := wb.AddSection(s); err != nil {
			p.reportFailed(run, err, emit)
			return
		}
	}
	path, err := wb.Save(dir)
	if err != nil {
		p.reportFailed(run, err, emit)
		return
	}
	run.ReportPath = path
	emit(Event{Stage: StageReport, Outcome: OutcomeDone, Message: path})
}

func (p *Pipeline) reportFailed(run *Run, err error, emit func(Event)) {
	slog.Error("Report not saved", "error", err)
	run.Errors = append(run.Errors, fmt.Sprintf("report: %v", err))
	emit(Event{Stage: StageReport, Outcome: OutcomeFailed, Message: err.Error()})
}

func (p *Pipeline) record(ctx context.Context, run *Run, emit func(Event)) {
	if p.deps.History == nil {
		return
	}
	entry := &history.Run{
		StartedAt:    run.StartedAt,
		FinishedAt:   run.FinishedAt,
		Period:       run.Period.String(),
		BillingTotal: run.Billing.Total,
		Regions:      run.Regions,
		Categories:   lo.Map(run.Classification.Categories, func(c classifier.Category, _ int) string { return c.String() }),
		Resources:    run.Summary.TotalResourcesScanned,
		FindingCount: len(run.Findings),
		Savings:      run.Summary.TotalMonthlySavings,
		ReportPath:   run.ReportPath,
		Errors:       slices.Clone(run.Errors),
	}
	id, err := p.deps.History.Record(ctx, entry, run.Findings)
	if err != nil {
		slog.Warn("Run history not recorded", "error", err)
		run.Errors = append(run.Errors, fmt.Sprintf("history: %v", err))
		emit(Event{Stage: StageHistory, Outcome: OutcomeFailed, Message: err.Error()})
		return
	}
	run.ID = id
	emit(Event{Stage: StageHistory, Outcome: OutcomeDone, Message: id})
}
