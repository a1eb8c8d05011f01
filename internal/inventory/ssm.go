package inventory

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/ppiankov/billspectre/internal/classifier"
)

// SSMAPI defines the subset of the Systems Manager API used by the managed node lister.
type SSMAPI interface {
	DescribeInstanceInformation(ctx context.Context, input *ssm.DescribeInstanceInformationInput, opts ...func(*ssm.Options)) (*ssm.DescribeInstanceInformationOutput, error)
}

// ManagedNodeLister lists instances registered with Systems Manager.
type ManagedNodeLister struct {
	client func(region string) SSMAPI
}

// NewManagedNodeLister creates a lister that obtains a client per region.
func NewManagedNodeLister(client func(region string) SSMAPI) *ManagedNodeLister {
	return &ManagedNodeLister{client: client}
}

func (l *ManagedNodeLister) Category() classifier.Category { return classifier.ManagedOps }
func (l *ManagedNodeLister) Global() bool                  { return false }

func (l *ManagedNodeLister) List(ctx context.Context, region string) ([]Record, error) {
	client := l.client(region)
	input := &ssm.DescribeInstanceInformationInput{}

	var records []Record
	for {
		out, err := client.DescribeInstanceInformation(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("describe instance information: %w", err)
		}
		for _, info := range out.InstanceInformationList {
			records = append(records, Record{
				ID:       deref(info.InstanceId),
				Region:   region,
				Category: classifier.ManagedOps,
				Details: ManagedNode{
					PingStatus:   string(info.PingStatus),
					PlatformName: deref(info.PlatformName),
					AgentVersion: deref(info.AgentVersion),
					ResourceType: string(info.ResourceType),
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
