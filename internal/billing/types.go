package billing

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// periodLayout is the date format Cost Explorer expects in time periods.
const periodLayout = "2006-01-02"

// Period is a billing window. End is exclusive.
type Period struct {
	Start time.Time
	End   time.Time
}

// LastFullMonth returns the calendar month preceding now.
func LastFullMonth(now time.Time) Period {
	firstOfCurrent := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Period{
		Start: firstOfCurrent.AddDate(0, -1, 0),
		End:   firstOfCurrent,
	}
}

// StartString returns the period start in Cost Explorer format.
func (p Period) StartString() string { return p.Start.Format(periodLayout) }

// EndString returns the exclusive period end in Cost Explorer format.
func (p Period) EndString() string { return p.End.Format(periodLayout) }

// String renders the period as "start to end".
func (p Period) String() string {
	return p.StartString() + " to " + p.EndString()
}

// LineItem is one billed service for a period.
type LineItem struct {
	ServiceName string          `json:"service_name"`
	Amount      decimal.Decimal `json:"amount"`
}

// Summary is the per-service spend for one period, ordered by amount descending.
type Summary struct {
	Period Period          `json:"period"`
	Items  []LineItem      `json:"items"`
	Total  decimal.Decimal `json:"total"`
}

// Amount returns the billed amount for a service name and whether it was billed.
func (s Summary) Amount(serviceName string) (decimal.Decimal, bool) {
	for _, item := range s.Items {
		if item.ServiceName == serviceName {
			return item.Amount, true
		}
	}
	return decimal.Zero, false
}

// ResourceCost is one row of a resource-granular cost query. ResourceID is
// whatever the billing API returned, often an ARN or a decorated identifier.
type ResourceCost struct {
	ResourceID string
	Amount     decimal.Decimal
}

// SortLineItems orders items by amount descending. Equal amounts keep their
// input order.
func SortLineItems(items []LineItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Amount.GreaterThan(items[j].Amount)
	})
}
