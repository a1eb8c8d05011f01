package inventory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eks"

	"github.com/ppiankov/billspectre/internal/classifier"
)

// EKSAPI defines the subset of the EKS API used by the cluster lister.
type EKSAPI interface {
	ListClusters(ctx context.Context, input *eks.ListClustersInput, opts ...func(*eks.Options)) (*eks.ListClustersOutput, error)
	DescribeCluster(ctx context.Context, input *eks.DescribeClusterInput, opts ...func(*eks.Options)) (*eks.DescribeClusterOutput, error)
	ListNodegroups(ctx context.Context, input *eks.ListNodegroupsInput, opts ...func(*eks.Options)) (*eks.ListNodegroupsOutput, error)
	DescribeNodegroup(ctx context.Context, input *eks.DescribeNodegroupInput, opts ...func(*eks.Options)) (*eks.DescribeNodegroupOutput, error)
}

// ClusterLister lists EKS clusters with their managed node groups.
type ClusterLister struct {
	client func(region string) EKSAPI
}

// NewClusterLister creates a lister that obtains a client per region.
func NewClusterLister(client func(region string) EKSAPI) *ClusterLister {
	return &ClusterLister{client: client}
}

func (l *ClusterLister) Category() classifier.Category { return classifier.ManagedKubernetes }
func (l *ClusterLister) Global() bool                  { return false }

// List returns the region's clusters. A cluster that cannot be described is
// skipped; node group failures leave the cluster without node groups.
func (l *ClusterLister) List(ctx context.Context, region string) ([]Record, error) {
	client := l.client(region)

	var names []string
	input := &eks.ListClustersInput{}
	for {
		out, err := client.ListClusters(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("list clusters: %w", err)
		}
		names = append(names, out.Clusters...)
		if out.NextToken == nil {
			break
		}
		input.NextToken = out.NextToken
	}

	var records []Record
	for _, name := range names {
		out, err := client.DescribeCluster(ctx, &eks.DescribeClusterInput{Name: aws.String(name)})
		if err != nil || out.Cluster == nil {
			slog.Debug("Describe cluster failed", "region", region, "resource", name, "error", err)
			continue
		}
		c := out.Cluster
		cluster := Cluster{
			Name:      deref(c.Name),
			Status:    string(c.Status),
			Version:   deref(c.Version),
			Endpoint:  deref(c.Endpoint),
			CreatedAt: derefTime(c.CreatedAt),
		}
		if c.ResourcesVpcConfig != nil {
			cluster.VpcID = deref(c.ResourcesVpcConfig.VpcId)
		}

		groups, undescribed, err := l.nodeGroups(ctx, client, name)
		if err != nil {
			slog.Debug("Node group lookup failed", "region", region, "resource", name, "error", err)
		} else {
			cluster.NodeGroups = groups
			cluster.NodeGroupsListed = true
			cluster.UndescribedNodeGroups = undescribed
		}

		records = append(records, Record{
			ID:       name,
			Region:   region,
			Category: classifier.ManagedKubernetes,
			Details:  cluster,
		})
	}
	return records, nil
}

// nodeGroups lists a cluster's node groups. Groups that cannot be described
// are skipped and counted.
func (l *ClusterLister) nodeGroups(ctx context.Context, client EKSAPI, cluster string) ([]NodeGroup, int, error) {
	var names []string
	input := &eks.ListNodegroupsInput{ClusterName: aws.String(cluster)}
	for {
		out, err := client.ListNodegroups(ctx, input)
		if err != nil {
			return nil, 0, fmt.Errorf("list node groups for %s: %w", cluster, err)
		}
		names = append(names, out.Nodegroups...)
		if out.NextToken == nil {
			break
		}
		input.NextToken = out.NextToken
	}

	var groups []NodeGroup
	undescribed := 0
	for _, name := range names {
		out, err := client.DescribeNodegroup(ctx, &eks.DescribeNodegroupInput{
			ClusterName:   aws.String(cluster),
			NodegroupName: aws.String(name),
		})
		if err != nil || out.Nodegroup == nil {
			slog.Debug("Describe node group failed", "resource", cluster+"/"+name, "error", err)
			undescribed++
			continue
		}
		ng := out.Nodegroup
		group := NodeGroup{
			Name:         deref(ng.NodegroupName),
			InstanceType: "N/A",
			CapacityType: string(ng.CapacityType),
			Status:       string(ng.Status),
		}
		if len(ng.InstanceTypes) > 0 {
			group.InstanceType = ng.InstanceTypes[0]
		}
		if sc := ng.ScalingConfig; sc != nil {
			group.DesiredSize = derefInt32(sc.DesiredSize)
			group.MinSize = derefInt32(sc.MinSize)
			group.MaxSize = derefInt32(sc.MaxSize)
		}
		groups = append(groups, group)
	}
	return groups, undescribed, nil
}
