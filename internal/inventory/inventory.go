package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/billspectre/internal/classifier"
)

// DefaultConcurrency bounds the number of listing calls in flight.
const DefaultConcurrency = 8

// Lister discovers the resources of one category.
type Lister interface {
	Category() classifier.Category
	// Global reports whether the category is listed once per account
	// rather than once per region.
	Global() bool
	List(ctx context.Context, region string) ([]Record, error)
}

// Inventory fans discovery out over categories and regions.
type Inventory struct {
	listers     map[classifier.Category]Lister
	concurrency int
}

// New creates an inventory over the given listers. A non-positive
// concurrency falls back to DefaultConcurrency.
func New(listers []Lister, concurrency int) *Inventory {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	byCategory := make(map[classifier.Category]Lister, len(listers))
	for _, l := range listers {
		byCategory[l.Category()] = l
	}
	return &Inventory{listers: byCategory, concurrency: concurrency}
}

// Supports reports whether a lister is registered for the category.
func (inv *Inventory) Supports(c classifier.Category) bool {
	_, ok := inv.listers[c]
	return ok
}

// unit is one listing call and the slot its output lands in.
type unit struct {
	category classifier.Category
	region   string
	records  []Record
	err      error
}

// Discover lists every requested category in every region. Global categories
// are listed once in the home region, the first entry of regions. A failing
// unit leaves its slot empty and is reported in Result.Errors; it never stops
// other units. Records come back grouped by category in region order.
// progress may be called from several goroutines at once.
func (inv *Inventory) Discover(ctx context.Context, categories []classifier.Category, regions []string, progress func(Progress)) *Result {
	result := &Result{Records: make(map[classifier.Category][]Record)}
	if len(regions) == 0 {
		return result
	}

	var units []*unit
	for _, c := range categories {
		l, ok := inv.listers[c]
		if !ok {
			slog.Debug("No lister for category", "category", c)
			continue
		}
		if l.Global() {
			units = append(units, &unit{category: c, region: regions[0]})
			continue
		}
		for _, r := range regions {
			units = append(units, &unit{category: c, region: r})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(inv.concurrency)
	for _, u := range units {
		g.Go(func() error {
			inv.run(gctx, u, progress)
			// Unit failures stay in the slot so siblings keep running.
			return nil
		})
	}
	_ = g.Wait()

	for _, u := range units {
		if u.err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s/%s: %v", u.category.Short(), u.region, u.err))
			continue
		}
		for _, rec := range u.records {
			if !slices.Contains(regions, rec.Region) {
				slog.Debug("Skipping resource outside scanned regions",
					"category", u.category, "resource", rec.ID, "region", rec.Region)
				continue
			}
			result.Records[u.category] = append(result.Records[u.category], rec)
		}
	}
	return result
}

func (inv *Inventory) run(ctx context.Context, u *unit, progress func(Progress)) {
	defer func() {
		if r := recover(); r != nil {
			u.records = nil
			u.err = fmt.Errorf("lister panic: %v", r)
		}
		reportProgress(progress, u)
	}()

	records, err := inv.listers[u.category].List(ctx, u.region)
	if err != nil {
		slog.Warn("Discovery failed", "category", u.category, "region", u.region, "error", err)
		u.err = err
		return
	}
	u.records = records
}

func reportProgress(progress func(Progress), u *unit) {
	if progress != nil {
		progress(Progress{
			Category:  u.category,
			Region:    u.region,
			Count:     len(u.records),
			Err:       u.err,
			Timestamp: time.Now(),
		})
	}
}

// Count returns the number of discovered records across all categories.
func (r *Result) Count() int {
	n := 0
	for _, recs := range r.Records {
		n += len(recs)
	}
	return n
}
