package pricing

import _ "embed"

//go:embed catalog.json
var catalogJSON []byte

// StorageCosts maps S3 storage class to per-GB monthly storage cost in USD
// (us-east-1 list prices).
var StorageCosts = map[string]string{
	"STANDARD":            "0.023",
	"INTELLIGENT_TIERING": "0.023",
	"REDUCED_REDUNDANCY":  "0.024",
	"STANDARD_IA":         "0.0125",
	"ONEZONE_IA":          "0.01",
	"GLACIER_IR":          "0.004",
	"GLACIER":             "0.0036",
	"DEEP_ARCHIVE":        "0.00099",
	"default":             "0.023",
}
