package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"

	"github.com/ppiankov/billspectre/internal/classifier"
)

// ELBAPI defines the subset of the ELBv2 API used by the load balancer lister.
type ELBAPI interface {
	DescribeLoadBalancers(ctx context.Context, input *elbv2.DescribeLoadBalancersInput, opts ...func(*elbv2.Options)) (*elbv2.DescribeLoadBalancersOutput, error)
	DescribeTargetGroups(ctx context.Context, input *elbv2.DescribeTargetGroupsInput, opts ...func(*elbv2.Options)) (*elbv2.DescribeTargetGroupsOutput, error)
	DescribeTargetHealth(ctx context.Context, input *elbv2.DescribeTargetHealthInput, opts ...func(*elbv2.Options)) (*elbv2.DescribeTargetHealthOutput, error)
}

// LoadBalancerLister lists application, network and gateway load balancers.
type LoadBalancerLister struct {
	client func(region string) ELBAPI
}

// NewLoadBalancerLister creates a lister that obtains a client per region.
func NewLoadBalancerLister(client func(region string) ELBAPI) *LoadBalancerLister {
	return &LoadBalancerLister{client: client}
}

func (l *LoadBalancerLister) Category() classifier.Category { return classifier.LoadBalancer }
func (l *LoadBalancerLister) Global() bool                  { return false }

// List returns the region's load balancers. When target lookup fails the
// target count is left unknown.
func (l *LoadBalancerLister) List(ctx context.Context, region string) ([]Record, error) {
	client := l.client(region)
	input := &elbv2.DescribeLoadBalancersInput{}

	var records []Record
	for {
		out, err := client.DescribeLoadBalancers(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("describe load balancers: %w", err)
		}
		for _, lb := range out.LoadBalancers {
			arn := deref(lb.LoadBalancerArn)
			name := deref(lb.LoadBalancerName)
			if name == "" {
				name = arn[strings.LastIndex(arn, "/")+1:]
			}
			details := LoadBalancer{
				ARN:    arn,
				Type:   string(lb.Type),
				Scheme: string(lb.Scheme),
				VpcID:  deref(lb.VpcId),
			}
			if lb.State != nil {
				details.State = string(lb.State.Code)
			}

			groups, targets, err := countTargets(ctx, client, arn)
			if err != nil {
				slog.Debug("Target lookup failed", "region", region, "resource", name, "error", err)
			} else {
				details.TargetGroups = groups
				details.Targets = &targets
			}

			records = append(records, Record{
				ID:       name,
				Region:   region,
				Category: classifier.LoadBalancer,
				Details:  details,
			})
		}
		if out.NextMarker == nil {
			break
		}
		input.Marker = out.NextMarker
	}
	return records, nil
}

func countTargets(ctx context.Context, client ELBAPI, lbARN string) (groups, targets int, err error) {
	input := &elbv2.DescribeTargetGroupsInput{LoadBalancerArn: aws.String(lbARN)}
	for {
		out, err := client.DescribeTargetGroups(ctx, input)
		if err != nil {
			return 0, 0, fmt.Errorf("describe target groups: %w", err)
		}
		for _, tg := range out.TargetGroups {
			groups++
			health, err := client.DescribeTargetHealth(ctx, &elbv2.DescribeTargetHealthInput{
				TargetGroupArn: tg.TargetGroupArn,
			})
			if err != nil {
				return 0, 0, fmt.Errorf("describe target health: %w", err)
			}
			targets += len(health.TargetHealthDescriptions)
		}
		if out.NextMarker == nil {
			break
		}
		input.Marker = out.NextMarker
	}
	return groups, targets, nil
}
