package telemetry

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/samber/lo"
)

// CloudWatchAPI defines the subset of the CloudWatch API used for metric reads.
type CloudWatchAPI interface {
	GetMetricStatistics(ctx context.Context, input *cloudwatch.GetMetricStatisticsInput, opts ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricStatisticsOutput, error)
	ListMetrics(ctx context.Context, input *cloudwatch.ListMetricsInput, opts ...func(*cloudwatch.Options)) (*cloudwatch.ListMetricsOutput, error)
}

// Dimension narrows a metric to one resource.
type Dimension struct {
	Name  string
	Value string
}

// Query is one metric statistics request.
type Query struct {
	Namespace  string
	Metric     string
	Dimensions []Dimension
	Start      time.Time
	End        time.Time
	Period     time.Duration
}

// Datapoint is one aggregation period. Statistics CloudWatch did not return
// are nil.
type Datapoint struct {
	Timestamp time.Time
	Average   *float64
	Maximum   *float64
	Minimum   *float64
	Sum       *float64
}

var allStatistics = []cwtypes.Statistic{
	cwtypes.StatisticAverage,
	cwtypes.StatisticMaximum,
	cwtypes.StatisticMinimum,
	cwtypes.StatisticSum,
}

// Reader reads metrics from one region's CloudWatch endpoint.
type Reader struct {
	client CloudWatchAPI
}

// NewReader creates a reader over a CloudWatch client.
func NewReader(client CloudWatchAPI) *Reader {
	return &Reader{client: client}
}

// GetStatistics returns the query's datapoints in time order. An empty slice
// means the metric exists but has no data in the window.
func (r *Reader) GetStatistics(ctx context.Context, q Query) ([]Datapoint, error) {
	out, err := r.client.GetMetricStatistics(ctx, &cloudwatch.GetMetricStatisticsInput{
		Namespace:  aws.String(q.Namespace),
		MetricName: aws.String(q.Metric),
		Dimensions: toDimensions(q.Dimensions),
		StartTime:  aws.Time(q.Start),
		EndTime:    aws.Time(q.End),
		Period:     aws.Int32(int32(q.Period / time.Second)),
		Statistics: allStatistics,
	})
	if err != nil {
		return nil, fmt.Errorf("get %s/%s statistics: %w", q.Namespace, q.Metric, err)
	}

	points := make([]Datapoint, 0, len(out.Datapoints))
	for _, dp := range out.Datapoints {
		points = append(points, Datapoint{
			Timestamp: aws.ToTime(dp.Timestamp),
			Average:   dp.Average,
			Maximum:   dp.Maximum,
			Minimum:   dp.Minimum,
			Sum:       dp.Sum,
		})
	}
	slices.SortStableFunc(points, func(a, b Datapoint) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return points, nil
}

// ListAvailableMetrics returns the sorted, distinct metric names published in
// namespace for the given dimensions.
func (r *Reader) ListAvailableMetrics(ctx context.Context, namespace string, dims []Dimension) ([]string, error) {
	input := &cloudwatch.ListMetricsInput{
		Namespace: aws.String(namespace),
	}
	for _, d := range dims {
		input.Dimensions = append(input.Dimensions, cwtypes.DimensionFilter{
			Name:  aws.String(d.Name),
			Value: aws.String(d.Value),
		})
	}

	var names []string
	for {
		out, err := r.client.ListMetrics(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("list %s metrics: %w", namespace, err)
		}
		for _, m := range out.Metrics {
			if name := aws.ToString(m.MetricName); name != "" {
				names = append(names, name)
			}
		}
		if out.NextToken == nil {
			break
		}
		input.NextToken = out.NextToken
	}

	names = lo.Uniq(names)
	slices.Sort(names)
	return names, nil
}

func toDimensions(dims []Dimension) []cwtypes.Dimension {
	return lo.Map(dims, func(d Dimension, _ int) cwtypes.Dimension {
		return cwtypes.Dimension{Name: aws.String(d.Name), Value: aws.String(d.Value)}
	})
}
