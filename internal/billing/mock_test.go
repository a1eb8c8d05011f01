package billing

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	cetypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
)

// mockCostExplorer implements CostExplorerAPI for testing.
type mockCostExplorer struct {
	servicePages  []*costexplorer.GetCostAndUsageOutput
	resourcePages []*costexplorer.GetCostAndUsageWithResourcesOutput
	serviceErr    error
	resourceErr   error

	serviceCalls  int
	resourceCalls int
	lastResource  *costexplorer.GetCostAndUsageWithResourcesInput
}

func (m *mockCostExplorer) GetCostAndUsage(_ context.Context, _ *costexplorer.GetCostAndUsageInput, _ ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error) {
	if m.serviceErr != nil {
		return nil, m.serviceErr
	}
	page := m.servicePages[m.serviceCalls]
	m.serviceCalls++
	return page, nil
}

func (m *mockCostExplorer) GetCostAndUsageWithResources(_ context.Context, input *costexplorer.GetCostAndUsageWithResourcesInput, _ ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageWithResourcesOutput, error) {
	m.lastResource = input
	if m.resourceErr != nil {
		return nil, m.resourceErr
	}
	page := m.resourcePages[m.resourceCalls]
	m.resourceCalls++
	return page, nil
}

func makeGroup(key, amount string) cetypes.Group {
	return cetypes.Group{
		Keys: []string{key},
		Metrics: map[string]cetypes.MetricValue{
			costMetric: {Amount: aws.String(amount), Unit: aws.String("USD")},
		},
	}
}

func servicePage(next *string, groups ...cetypes.Group) *costexplorer.GetCostAndUsageOutput {
	return &costexplorer.GetCostAndUsageOutput{
		ResultsByTime: []cetypes.ResultByTime{{Groups: groups}},
		NextPageToken: next,
	}
}

func resourcePage(next *string, groups ...cetypes.Group) *costexplorer.GetCostAndUsageWithResourcesOutput {
	return &costexplorer.GetCostAndUsageWithResourcesOutput{
		ResultsByTime: []cetypes.ResultByTime{{Groups: groups}},
		NextPageToken: next,
	}
}
