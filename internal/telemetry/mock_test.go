package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// mockCloudWatch implements CloudWatchAPI for testing. Datapoints and errors
// are keyed by "namespace/metric".
type mockCloudWatch struct {
	points    map[string][]cwtypes.Datapoint
	statErr   map[string]error
	allErr    error
	listPages []*cloudwatch.ListMetricsOutput
	listErr   error

	mu        sync.Mutex
	queried   []string
	lastStat  *cloudwatch.GetMetricStatisticsInput
	listCalls int
}

func (m *mockCloudWatch) GetMetricStatistics(_ context.Context, input *cloudwatch.GetMetricStatisticsInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricStatisticsOutput, error) {
	key := aws.ToString(input.Namespace) + "/" + aws.ToString(input.MetricName)
	m.mu.Lock()
	m.queried = append(m.queried, key)
	m.lastStat = input
	m.mu.Unlock()

	if m.allErr != nil {
		return nil, m.allErr
	}
	if err := m.statErr[key]; err != nil {
		return nil, err
	}
	return &cloudwatch.GetMetricStatisticsOutput{Datapoints: m.points[key]}, nil
}

func (m *mockCloudWatch) ListMetrics(_ context.Context, _ *cloudwatch.ListMetricsInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.ListMetricsOutput, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.listPages) == 0 {
		return &cloudwatch.ListMetricsOutput{}, nil
	}
	page := m.listPages[m.listCalls]
	m.listCalls++
	return page, nil
}

var t0 = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func point(hour int, avg, max float64) cwtypes.Datapoint {
	return cwtypes.Datapoint{
		Timestamp: aws.Time(t0.Add(time.Duration(hour) * time.Hour)),
		Average:   aws.Float64(avg),
		Maximum:   aws.Float64(max),
	}
}

func metricsPage(next *string, names ...string) *cloudwatch.ListMetricsOutput {
	out := &cloudwatch.ListMetricsOutput{NextToken: next}
	for _, n := range names {
		out.Metrics = append(out.Metrics, cwtypes.Metric{MetricName: aws.String(n)})
	}
	return out
}
