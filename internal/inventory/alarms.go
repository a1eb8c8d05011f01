package inventory

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"github.com/ppiankov/billspectre/internal/classifier"
)

// AlarmsAPI defines the subset of the CloudWatch API used by the alarm lister.
type AlarmsAPI interface {
	DescribeAlarms(ctx context.Context, input *cloudwatch.DescribeAlarmsInput, opts ...func(*cloudwatch.Options)) (*cloudwatch.DescribeAlarmsOutput, error)
}

// AlarmLister lists CloudWatch metric alarms.
type AlarmLister struct {
	client func(region string) AlarmsAPI
}

// NewAlarmLister creates a lister that obtains a client per region.
func NewAlarmLister(client func(region string) AlarmsAPI) *AlarmLister {
	return &AlarmLister{client: client}
}

func (l *AlarmLister) Category() classifier.Category { return classifier.MetricsAlarms }
func (l *AlarmLister) Global() bool                  { return false }

func (l *AlarmLister) List(ctx context.Context, region string) ([]Record, error) {
	client := l.client(region)
	input := &cloudwatch.DescribeAlarmsInput{}

	var records []Record
	for {
		out, err := client.DescribeAlarms(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("describe alarms: %w", err)
		}
		for _, a := range out.MetricAlarms {
			records = append(records, Record{
				ID:       deref(a.AlarmName),
				Region:   region,
				Category: classifier.MetricsAlarms,
				Details: Alarm{
					State:          string(a.StateValue),
					Namespace:      deref(a.Namespace),
					MetricName:     deref(a.MetricName),
					ActionsEnabled: derefBool(a.ActionsEnabled),
				},
			})
		}
		if out.NextToken == nil {
			break
		}
		input.NextToken = out.NextToken
	}
	return records, nil
}
