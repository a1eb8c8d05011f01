package attribution

import (
	"context"
	"sync"

	"github.com/ppiankov/billspectre/internal/billing"
)

// mockCostReader implements CostReader for testing, keyed by region.
type mockCostReader struct {
	rows map[string][]billing.ResourceCost
	errs map[string]error

	mu       sync.Mutex
	regions  []string
	services []string
}

func (m *mockCostReader) CostsByResource(_ context.Context, _ billing.Period, services []string, region string) ([]billing.ResourceCost, error) {
	m.mu.Lock()
	m.regions = append(m.regions, region)
	m.services = services
	m.mu.Unlock()
	if err := m.errs[region]; err != nil {
		return nil, err
	}
	return m.rows[region], nil
}
