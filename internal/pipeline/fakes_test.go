package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/ppiankov/billspectre/internal/billing"
	"github.com/ppiankov/billspectre/internal/classifier"
	"github.com/ppiankov/billspectre/internal/inventory"
	"github.com/ppiankov/billspectre/internal/report"
	"github.com/ppiankov/billspectre/internal/telemetry"
)

type fakeBilling struct {
	summary billing.Summary
	err     error
	period  billing.Period
}

func (f *fakeBilling) CostsByService(_ context.Context, period billing.Period) (billing.Summary, error) {
	f.period = period
	if f.err != nil {
		return billing.Summary{}, f.err
	}
	s := f.summary
	s.Period = period
	return s, nil
}

// fakeCosts answers granular queries keyed by "service|region".
type fakeCosts struct {
	mu      sync.Mutex
	entries map[string][]billing.ResourceCost
	errs    map[string]error
	panicOn map[string]bool
	calls   []string
}

func (f *fakeCosts) CostsByResource(_ context.Context, _ billing.Period, services []string, region string) ([]billing.ResourceCost, error) {
	key := services[0] + "|" + region
	f.mu.Lock()
	f.calls = append(f.calls, key)
	f.mu.Unlock()
	if f.panicOn[key] {
		panic("cost reader exploded")
	}
	if err := f.errs[key]; err != nil {
		return nil, err
	}
	return f.entries[key], nil
}

type fakeLister struct {
	category classifier.Category
	global   bool
	records  map[string][]inventory.Record
	errs     map[string]error

	mu    sync.Mutex
	calls int
}

func (l *fakeLister) Category() classifier.Category { return l.category }
func (l *fakeLister) Global() bool                  { return l.global }

func (l *fakeLister) List(_ context.Context, region string) ([]inventory.Record, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	if err := l.errs[region]; err != nil {
		return nil, err
	}
	return l.records[region], nil
}

type fakeTelemetry struct {
	summaries map[string]*telemetry.Summary
	panicOn   string
}

func (f *fakeTelemetry) Collect(_ context.Context, rec inventory.Record) *telemetry.Summary {
	if rec.ID == f.panicOn {
		panic("boom")
	}
	return f.summaries[rec.ID]
}

type fakeSink struct {
	sections []report.Section
	saveErr  error
}

func (s *fakeSink) NewWorkbook() report.Workbook { return &fakeWorkbook{sink: s} }

type fakeWorkbook struct {
	sink *fakeSink
}

func (w *fakeWorkbook) AddSection(s report.Section) error {
	w.sink.sections = append(w.sink.sections, s)
	return nil
}

func (w *fakeWorkbook) Save(dir string) (string, error) {
	if w.sink.saveErr != nil {
		return "", w.sink.saveErr
	}
	return dir + "/report.xlsx", nil
}

var errDenied = errors.New("AccessDeniedException: not authorized")
