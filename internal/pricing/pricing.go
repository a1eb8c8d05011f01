package pricing

import (
	"fmt"
	"sync"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/ppiankov/billspectre/internal/sizing"
)

type catalogs struct {
	EC2 sizing.Catalog `json:"ec2"`
	RDS sizing.Catalog `json:"rds"`
}

var loadCatalogs = sync.OnceValues(func() (catalogs, error) {
	var c catalogs
	if err := json.Unmarshal(catalogJSON, &c); err != nil {
		return catalogs{}, fmt.Errorf("parse tier catalog: %w", err)
	}
	return c, nil
})

// EC2Tiers returns the ordered EC2 instance type catalog.
func EC2Tiers() (sizing.Catalog, error) {
	c, err := loadCatalogs()
	return c.EC2, err
}

// RDSTiers returns the ordered RDS instance class catalog.
func RDSTiers() (sizing.Catalog, error) {
	c, err := loadCatalogs()
	return c.RDS, err
}

// MonthlyStorageCost calculates the monthly storage cost in USD for a given
// S3 storage class and size in bytes.
func MonthlyStorageCost(storageClass string, sizeBytes int64) decimal.Decimal {
	costPerGB := lookupCostPerGB(storageClass)
	sizeGB := decimal.NewFromInt(sizeBytes).Div(decimal.NewFromInt(1024 * 1024 * 1024))
	return sizeGB.Mul(costPerGB)
}

// lookupCostPerGB returns the per-GB monthly cost for a storage class.
func lookupCostPerGB(storageClass string) decimal.Decimal {
	cost, ok := StorageCosts[storageClass]
	if !ok {
		cost = StorageCosts["default"]
	}
	return decimal.RequireFromString(cost)
}

// MostExpensiveClass reports whether the storage class is billed at the top
// per-GB rate for frequently accessed data.
func MostExpensiveClass(storageClass string) bool {
	return storageClass == "STANDARD" || storageClass == ""
}
