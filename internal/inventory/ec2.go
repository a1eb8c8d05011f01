package inventory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/ppiankov/billspectre/internal/classifier"
)

// EC2API defines the subset of the EC2 API used for compute, network and
// region discovery.
type EC2API interface {
	DescribeInstances(ctx context.Context, input *ec2.DescribeInstancesInput, opts ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	DescribeVpcs(ctx context.Context, input *ec2.DescribeVpcsInput, opts ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error)
	DescribeSubnets(ctx context.Context, input *ec2.DescribeSubnetsInput, opts ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error)
	DescribeRegions(ctx context.Context, input *ec2.DescribeRegionsInput, opts ...func(*ec2.Options)) (*ec2.DescribeRegionsOutput, error)
}

// ComputeLister lists running and stopped EC2 instances.
type ComputeLister struct {
	client func(region string) EC2API
}

// NewComputeLister creates a lister that obtains a client per region.
func NewComputeLister(client func(region string) EC2API) *ComputeLister {
	return &ComputeLister{client: client}
}

func (l *ComputeLister) Category() classifier.Category { return classifier.Compute }
func (l *ComputeLister) Global() bool                  { return false }

// List returns the region's instances in the running or stopped state.
func (l *ComputeLister) List(ctx context.Context, region string) ([]Record, error) {
	client := l.client(region)
	input := &ec2.DescribeInstancesInput{
		Filters: []ec2types.Filter{{
			Name:   aws.String("instance-state-name"),
			Values: []string{"running", "stopped"},
		}},
	}

	var records []Record
	for {
		out, err := client.DescribeInstances(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("describe instances: %w", err)
		}
		for _, res := range out.Reservations {
			for _, inst := range res.Instances {
				state := ""
				if inst.State != nil {
					state = string(inst.State.Name)
				}
				if state != "running" && state != "stopped" {
					continue
				}
				records = append(records, Record{
					ID:       deref(inst.InstanceId),
					Region:   region,
					Category: classifier.Compute,
					Details:  instanceDetails(inst, state),
				})
			}
		}
		if out.NextToken == nil {
			break
		}
		input.NextToken = out.NextToken
	}

	slog.Debug("Listed EC2 instances", "region", region, "count", len(records))
	return records, nil
}

func instanceDetails(inst ec2types.Instance, state string) Instance {
	platform := "linux/unix"
	if inst.Platform != "" {
		platform = string(inst.Platform)
	}
	monitoring := ""
	if inst.Monitoring != nil {
		monitoring = string(inst.Monitoring.State)
	}
	return Instance{
		InstanceType: string(inst.InstanceType),
		State:        state,
		LaunchTime:   derefTime(inst.LaunchTime),
		VpcID:        deref(inst.VpcId),
		SubnetID:     deref(inst.SubnetId),
		Platform:     platform,
		ImageID:      deref(inst.ImageId),
		Monitoring:   monitoring,
		Tags:         ec2Tags(inst.Tags),
	}
}

func ec2Tags(tags []ec2types.Tag) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	out := make(map[string]string, len(tags))
	for _, t := range tags {
		out[deref(t.Key)] = deref(t.Value)
	}
	return out
}

// NetworkLister lists VPCs and counts their subnets.
type NetworkLister struct {
	client func(region string) EC2API
}

// NewNetworkLister creates a lister that obtains a client per region.
func NewNetworkLister(client func(region string) EC2API) *NetworkLister {
	return &NetworkLister{client: client}
}

func (l *NetworkLister) Category() classifier.Category { return classifier.Network }
func (l *NetworkLister) Global() bool                  { return false }

// List returns the region's VPCs. A failed subnet lookup leaves the count at zero.
func (l *NetworkLister) List(ctx context.Context, region string) ([]Record, error) {
	client := l.client(region)
	input := &ec2.DescribeVpcsInput{}

	var records []Record
	for {
		out, err := client.DescribeVpcs(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("describe vpcs: %w", err)
		}
		for _, vpc := range out.Vpcs {
			vpcID := deref(vpc.VpcId)
			subnets, err := l.countSubnets(ctx, client, vpcID)
			if err != nil {
				slog.Debug("Subnet lookup failed", "region", region, "resource", vpcID, "error", err)
			}
			records = append(records, Record{
				ID:       vpcID,
				Region:   region,
				Category: classifier.Network,
				Details: Network{
					CidrBlock:   deref(vpc.CidrBlock),
					State:       string(vpc.State),
					IsDefault:   derefBool(vpc.IsDefault),
					SubnetCount: subnets,
					Tags:        ec2Tags(vpc.Tags),
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

func (l *NetworkLister) countSubnets(ctx context.Context, client EC2API, vpcID string) (int, error) {
	input := &ec2.DescribeSubnetsInput{
		Filters: []ec2types.Filter{{Name: aws.String("vpc-id"), Values: []string{vpcID}}},
	}
	count := 0
	for {
		out, err := client.DescribeSubnets(ctx, input)
		if err != nil {
			return 0, fmt.Errorf("describe subnets for %s: %w", vpcID, err)
		}
		count += len(out.Subnets)
		if out.NextToken == nil {
			break
		}
		input.NextToken = out.NextToken
	}
	return count, nil
}
