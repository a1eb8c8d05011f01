package attribution

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/billspectre/internal/billing"
	"github.com/ppiankov/billspectre/internal/classifier"
)

// Source records how a resource cost was obtained.
type Source string

const (
	// Measured costs come from the resource-granular billing query.
	Measured Source = "measured"
	// Estimated costs are an even split of the category's billed total.
	Estimated Source = "estimated"
	// Unavailable means neither path produced costs.
	Unavailable Source = "unavailable"
)

// CostReader is the billing query used for resource-granular costs.
type CostReader interface {
	CostsByResource(ctx context.Context, period billing.Period, services []string, region string) ([]billing.ResourceCost, error)
}

// Resource is one resource to cost. Key is unique within a request; ID is
// matched against billing identifiers and may repeat across regions.
type Resource struct {
	Key    string
	ID     string
	Region string
}

// Request asks for the cost of every resource of one category.
type Request struct {
	Category  classifier.Category
	Resources []Resource
	// BillingTotal is the category's billed amount, nil when it is not on the bill.
	BillingTotal *decimal.Decimal
}

// Result holds per-resource costs, keyed by Resource.Key, and their provenance.
type Result struct {
	Costs             map[string]decimal.Decimal `json:"costs"`
	Source            Source                     `json:"source"`
	GranularAttempted bool                       `json:"granular_attempted"`
	Errors            []string                   `json:"errors,omitempty"`
}

// Cost returns the attributed cost for one resource key.
func (r Result) Cost(key string) (decimal.Decimal, bool) {
	c, ok := r.Costs[key]
	return c, ok
}

// Attributor attributes billed spend to resources.
type Attributor struct {
	reader      CostReader
	period      billing.Period
	concurrency int
}

// New creates an attributor for a billing period. concurrency bounds the
// number of granular queries in flight.
func New(reader CostReader, period billing.Period, concurrency int) *Attributor {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Attributor{reader: reader, period: period, concurrency: concurrency}
}

// regionQuery is one granular query and the resources it covers.
type regionQuery struct {
	region    string
	resources []Resource
	entries   []billing.ResourceCost
	err       error
}

// Attribute runs one granular query per distinct region among the request's
// resources, or a single unfiltered query for global categories. A failing
// query contributes nothing. When no resource is matched and a billing total
// is known, the total is split evenly.
func (a *Attributor) Attribute(ctx context.Context, req Request) Result {
	result := Result{Costs: map[string]decimal.Decimal{}, Source: Unavailable}
	if len(req.Resources) == 0 {
		return result
	}

	services := req.Category.BillingNames()
	if len(services) > 0 {
		result.GranularAttempted = true
		queries := a.plan(req)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(a.concurrency)
		for _, q := range queries {
			g.Go(func() error {
				q.entries, q.err = a.query(gctx, services, q.region)
				return nil
			})
		}
		_ = g.Wait()

		for _, q := range queries {
			if q.err != nil {
				slog.Warn("Resource cost query failed", "category", req.Category, "region", q.region, "error", q.err)
				result.Errors = append(result.Errors, fmt.Sprintf("%s/%s: %v", req.Category.Short(), regionName(q.region), q.err))
				continue
			}
			ids := make([]string, len(q.resources))
			for i, r := range q.resources {
				ids[i] = r.ID
			}
			matched := MatchResourceCosts(q.entries, ids)
			for _, r := range q.resources {
				if cost, ok := matched[r.ID]; ok {
					result.Costs[r.Key] = cost
				}
			}
		}
	}

	switch {
	case len(result.Costs) > 0:
		result.Source = Measured
	case req.BillingTotal != nil:
		keys := make([]string, len(req.Resources))
		for i, r := range req.Resources {
			keys[i] = r.Key
		}
		result.Costs = EvenSplit(*req.BillingTotal, keys)
		result.Source = Estimated
	}
	return result
}

// query runs one granular query. A panicking reader counts as a failed query.
func (a *Attributor) query(ctx context.Context, services []string, region string) (entries []billing.ResourceCost, err error) {
	defer func() {
		if r := recover(); r != nil {
			entries, err = nil, fmt.Errorf("cost reader panic: %v", r)
		}
	}()
	return a.reader.CostsByResource(ctx, a.period, services, region)
}

// plan groups resources into queries. Regional categories get one query
// per distinct region in first-seen order.
func (a *Attributor) plan(req Request) []*regionQuery {
	if !req.Category.Regional() {
		return []*regionQuery{{resources: req.Resources}}
	}
	var queries []*regionQuery
	byRegion := make(map[string]*regionQuery)
	for _, r := range req.Resources {
		q, ok := byRegion[r.Region]
		if !ok {
			q = &regionQuery{region: r.Region}
			byRegion[r.Region] = q
			queries = append(queries, q)
		}
		q.resources = append(q.resources, r)
	}
	return queries
}

func regionName(region string) string {
	if region == "" {
		return "global"
	}
	return region
}
