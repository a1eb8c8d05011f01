package billing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	cetypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/shopspring/decimal"
)

// costMetric is the Cost Explorer metric used for every query.
const costMetric = "UnblendedCost"

// CostExplorerAPI defines the subset of the Cost Explorer API used by the reader.
type CostExplorerAPI interface {
	GetCostAndUsage(ctx context.Context, input *costexplorer.GetCostAndUsageInput, opts ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error)
	GetCostAndUsageWithResources(ctx context.Context, input *costexplorer.GetCostAndUsageWithResourcesInput, opts ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageWithResourcesOutput, error)
}

// Reader fetches billed spend from Cost Explorer.
type Reader struct {
	client CostExplorerAPI
}

// NewReader creates a billing reader backed by the given Cost Explorer client.
func NewReader(client CostExplorerAPI) *Reader {
	return &Reader{client: client}
}

// NewCostExplorerClient creates a Cost Explorer client. Cost Explorer is served
// from us-east-1 regardless of the account's home region.
func NewCostExplorerClient(cfg aws.Config) CostExplorerAPI {
	return costexplorer.NewFromConfig(cfg, func(o *costexplorer.Options) {
		o.Region = "us-east-1"
	})
}

// CostsByService returns the period's spend grouped by service. Services with
// a zero amount are dropped.
func (r *Reader) CostsByService(ctx context.Context, period Period) (Summary, error) {
	input := &costexplorer.GetCostAndUsageInput{
		TimePeriod:  dateInterval(period),
		Granularity: cetypes.GranularityMonthly,
		Metrics:     []string{costMetric},
		GroupBy: []cetypes.GroupDefinition{
			{Type: cetypes.GroupDefinitionTypeDimension, Key: aws.String(string(cetypes.DimensionService))},
		},
	}

	totals := make(map[string]decimal.Decimal)
	var order []string

	for {
		out, err := r.client.GetCostAndUsage(ctx, input)
		if err != nil {
			return Summary{}, fmt.Errorf("get cost and usage: %w", err)
		}
		for _, result := range out.ResultsByTime {
			for _, group := range result.Groups {
				if len(group.Keys) == 0 {
					continue
				}
				amount, err := groupAmount(group)
				if err != nil {
					return Summary{}, err
				}
				name := group.Keys[0]
				if _, seen := totals[name]; !seen {
					order = append(order, name)
				}
				totals[name] = totals[name].Add(amount)
			}
		}
		if out.NextPageToken == nil {
			break
		}
		input.NextPageToken = out.NextPageToken
	}

	summary := Summary{Period: period, Total: decimal.Zero}
	for _, name := range order {
		amount := totals[name]
		if !amount.IsPositive() {
			continue
		}
		summary.Items = append(summary.Items, LineItem{ServiceName: name, Amount: amount})
		summary.Total = summary.Total.Add(amount)
	}
	SortLineItems(summary.Items)

	slog.Debug("Fetched costs by service", "period", period.String(), "services", len(summary.Items))
	return summary, nil
}

// CostsByResource returns the period's spend grouped by resource id for the
// given service names. An empty region queries all regions. Rows keep the
// order Cost Explorer returned them in.
func (r *Reader) CostsByResource(ctx context.Context, period Period, services []string, region string) ([]ResourceCost, error) {
	filter := &cetypes.Expression{
		Dimensions: &cetypes.DimensionValues{Key: cetypes.DimensionService, Values: services},
	}
	if region != "" {
		filter = &cetypes.Expression{
			And: []cetypes.Expression{
				*filter,
				{Dimensions: &cetypes.DimensionValues{Key: cetypes.DimensionRegion, Values: []string{region}}},
			},
		}
	}

	input := &costexplorer.GetCostAndUsageWithResourcesInput{
		TimePeriod:  dateInterval(period),
		Granularity: cetypes.GranularityMonthly,
		Metrics:     []string{costMetric},
		Filter:      filter,
		GroupBy: []cetypes.GroupDefinition{
			{Type: cetypes.GroupDefinitionTypeDimension, Key: aws.String(string(cetypes.DimensionResourceId))},
		},
	}

	var costs []ResourceCost
	for {
		out, err := r.client.GetCostAndUsageWithResources(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("get cost and usage with resources (%s): %w", regionLabel(region), err)
		}
		for _, result := range out.ResultsByTime {
			for _, group := range result.Groups {
				if len(group.Keys) == 0 {
					continue
				}
				amount, err := groupAmount(group)
				if err != nil {
					return nil, err
				}
				costs = append(costs, ResourceCost{ResourceID: group.Keys[0], Amount: amount})
			}
		}
		if out.NextPageToken == nil {
			break
		}
		input.NextPageToken = out.NextPageToken
	}

	return costs, nil
}

func dateInterval(p Period) *cetypes.DateInterval {
	return &cetypes.DateInterval{
		Start: aws.String(p.StartString()),
		End:   aws.String(p.EndString()),
	}
}

func groupAmount(group cetypes.Group) (decimal.Decimal, error) {
	metric, ok := group.Metrics[costMetric]
	if !ok || metric.Amount == nil {
		return decimal.Zero, nil
	}
	amount, err := decimal.NewFromString(aws.ToString(metric.Amount))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q for %v: %w", aws.ToString(metric.Amount), group.Keys, err)
	}
	return amount, nil
}

func regionLabel(region string) string {
	if region == "" {
		return "all regions"
	}
	return region
}
