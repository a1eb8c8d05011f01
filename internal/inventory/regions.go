package inventory

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/samber/lo"
)

// FallbackRegions is used when regions are neither configured nor enumerable.
var FallbackRegions = []string{"us-east-1", "us-west-2", "eu-west-1", "ap-southeast-1"}

// ResolveRegions returns the ordered region list for a run. Configured regions
// win; otherwise the account's enabled regions are enumerated; otherwise the
// fallback list is used.
func ResolveRegions(ctx context.Context, client EC2API, configured, fallback []string) []string {
	if regions := lo.Uniq(lo.Compact(configured)); len(regions) > 0 {
		return regions
	}

	if client != nil {
		out, err := client.DescribeRegions(ctx, &ec2.DescribeRegionsInput{})
		if err == nil {
			regions := lo.Uniq(lo.Compact(lo.Map(out.Regions, func(r ec2types.Region, _ int) string {
				return deref(r.RegionName)
			})))
			if len(regions) > 0 {
				return regions
			}
		} else {
			slog.Warn("Region enumeration failed, using fallback list", "error", err)
		}
	}
	return append([]string(nil), fallback...)
}
