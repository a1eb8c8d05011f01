package attribution

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ppiankov/billspectre/internal/billing"
)

// MatchResourceCosts joins billing rows to known resource ids. The billing
// API returns decorated identifiers (ARNs, suffixed names), so a row matches
// an id when either string contains the other. Rows are taken in billing
// order and each row goes to the first id in ids that it matches. An id
// keeps the first row assigned to it; later rows for the same id are
// ignored. Rows with an empty identifier never match.
func MatchResourceCosts(entries []billing.ResourceCost, ids []string) map[string]decimal.Decimal {
	costs := make(map[string]decimal.Decimal)
	for _, e := range entries {
		if e.ResourceID == "" {
			continue
		}
		for _, id := range ids {
			if id == "" || !contains(e.ResourceID, id) {
				continue
			}
			if _, taken := costs[id]; !taken {
				costs[id] = e.Amount
			}
			break
		}
	}
	return costs
}

func contains(raw, id string) bool {
	return strings.Contains(raw, id) || strings.Contains(id, raw)
}

// EvenSplit divides total equally over ids. It returns an empty map for no ids.
func EvenSplit(total decimal.Decimal, ids []string) map[string]decimal.Decimal {
	costs := make(map[string]decimal.Decimal, len(ids))
	if len(ids) == 0 {
		return costs
	}
	share := total.Div(decimal.NewFromInt(int64(len(ids))))
	for _, id := range ids {
		costs[id] = share
	}
	return costs
}
