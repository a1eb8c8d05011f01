package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/billspectre/internal/classifier"
)

var testRegions = []string{"us-east-1", "us-west-2", "eu-west-1"}

func TestDiscoverIsolatesFailingRegion(t *testing.T) {
	clients := map[string]*mockEC2{
		"us-east-1": {instancePages: []*ec2.DescribeInstancesOutput{instancesPage(nil, instance("i-east", "running", "t3.micro"))}},
		"us-west-2": {instancesErr: errors.New("RequestError: connection reset")},
		"eu-west-1": {instancePages: []*ec2.DescribeInstancesOutput{instancesPage(nil, instance("i-eu", "stopped", "m5.large"))}},
	}
	lister := NewComputeLister(func(region string) EC2API { return clients[region] })

	inv := New([]Lister{lister}, 4)
	result := inv.Discover(context.Background(), []classifier.Category{classifier.Compute}, testRegions, nil)

	require.NotNil(t, result)
	records := result.Records[classifier.Compute]
	require.Len(t, records, 2)
	assert.Equal(t, "i-east", records[0].ID)
	assert.Equal(t, "us-east-1", records[0].Region)
	assert.Equal(t, "i-eu", records[1].ID)
	for _, r := range records {
		assert.NotEqual(t, "us-west-2", r.Region)
	}

	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "EC2/us-west-2")
}

func TestDiscoverDeterministicRegionOrder(t *testing.T) {
	lister := &fakeLister{
		category: classifier.RelationalDB,
		list: func(region string) ([]Record, error) {
			return []Record{
				{ID: region + "-a", Region: region, Category: classifier.RelationalDB, Details: Database{}},
				{ID: region + "-b", Region: region, Category: classifier.RelationalDB, Details: Database{}},
			}, nil
		},
	}
	inv := New([]Lister{lister}, 3)

	for range 10 {
		result := inv.Discover(context.Background(), []classifier.Category{classifier.RelationalDB}, testRegions, nil)
		var ids []string
		for _, r := range result.Records[classifier.RelationalDB] {
			ids = append(ids, r.ID)
		}
		assert.Equal(t, []string{
			"us-east-1-a", "us-east-1-b",
			"us-west-2-a", "us-west-2-b",
			"eu-west-1-a", "eu-west-1-b",
		}, ids)
	}
}

func TestDiscoverGlobalRunsOnceInHomeRegion(t *testing.T) {
	global := &fakeLister{
		category: classifier.ObjectStorage,
		global:   true,
		list: func(region string) ([]Record, error) {
			return []Record{
				{ID: "logs", Region: "eu-west-1", Category: classifier.ObjectStorage, Details: Bucket{Name: "logs"}},
				{ID: "far-away", Region: "sa-east-1", Category: classifier.ObjectStorage, Details: Bucket{Name: "far-away"}},
			}, nil
		},
	}
	inv := New([]Lister{global}, 0)
	result := inv.Discover(context.Background(), []classifier.Category{classifier.ObjectStorage}, testRegions, nil)

	assert.Equal(t, []string{"us-east-1"}, global.calls)
	records := result.Records[classifier.ObjectStorage]
	require.Len(t, records, 1, "records outside the scanned regions are dropped")
	assert.Equal(t, "logs", records[0].ID)
}

func TestDiscoverRecoversListerPanic(t *testing.T) {
	boom := &fakeLister{
		category: classifier.Serverless,
		list: func(region string) ([]Record, error) {
			if region == "eu-west-1" {
				panic("nil map")
			}
			return []Record{{ID: "fn-" + region, Region: region, Category: classifier.Serverless, Details: Function{}}}, nil
		},
	}
	inv := New([]Lister{boom}, 2)
	result := inv.Discover(context.Background(), []classifier.Category{classifier.Serverless}, testRegions, nil)

	assert.Len(t, result.Records[classifier.Serverless], 2)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "panic")
}

func TestDiscoverMultipleCategoriesAndProgress(t *testing.T) {
	ok := func(c classifier.Category, d Details) *fakeLister {
		return &fakeLister{category: c, list: func(region string) ([]Record, error) {
			return []Record{{ID: string(c) + "@" + region, Region: region, Category: c, Details: d}}, nil
		}}
	}
	failing := &fakeLister{category: classifier.KeyValueStore, list: func(string) ([]Record, error) {
		return nil, errDenied
	}}
	inv := New([]Lister{ok(classifier.Compute, Instance{}), ok(classifier.Serverless, Function{}), failing}, 5)

	var mu sync.Mutex
	var events []Progress
	result := inv.Discover(context.Background(),
		[]classifier.Category{classifier.Compute, classifier.KeyValueStore, classifier.Serverless, classifier.DNS},
		testRegions,
		func(p Progress) {
			mu.Lock()
			events = append(events, p)
			mu.Unlock()
		})

	assert.Len(t, result.Records[classifier.Compute], 3)
	assert.Len(t, result.Records[classifier.Serverless], 3)
	assert.Empty(t, result.Records[classifier.KeyValueStore])
	assert.Len(t, result.Errors, 3)
	assert.Equal(t, 6, result.Count())

	// 3 categories with listers x 3 regions, DNS has no lister.
	assert.Len(t, events, 9)
	failed := 0
	for _, e := range events {
		if e.Err != nil {
			failed++
			assert.Equal(t, classifier.KeyValueStore, e.Category)
		}
	}
	assert.Equal(t, 3, failed)
}

func TestDiscoverNoRegions(t *testing.T) {
	inv := New([]Lister{&fakeLister{category: classifier.Compute}}, 1)
	result := inv.Discover(context.Background(), []classifier.Category{classifier.Compute}, nil, nil)
	assert.Empty(t, result.Records)
	assert.Empty(t, result.Errors)
}

func TestSupports(t *testing.T) {
	inv := New([]Lister{&fakeLister{category: classifier.Compute}}, 1)
	assert.True(t, inv.Supports(classifier.Compute))
	assert.False(t, inv.Supports(classifier.DNS))
}

func TestDetailsCategories(t *testing.T) {
	cases := map[classifier.Category]Details{
		classifier.Compute:           Instance{},
		classifier.ManagedKubernetes: Cluster{},
		classifier.ObjectStorage:     Bucket{},
		classifier.RelationalDB:      Database{},
		classifier.Network:           Network{},
		classifier.Serverless:        Function{},
		classifier.KeyValueStore:     Table{},
		classifier.LoadBalancer:      LoadBalancer{},
		classifier.DNS:               HostedZone{},
		classifier.SecretStore:       Secret{},
		classifier.ManagedOps:        ManagedNode{},
		classifier.MetricsAlarms:     Alarm{},
		classifier.ThreatDetection:   Detector{},
	}
	for want, d := range cases {
		assert.Equal(t, want, d.category())
	}
	assert.Len(t, cases, len(classifier.All()))
}

func TestIdle(t *testing.T) {
	assert.True(t, Instance{State: "stopped"}.Idle())
	assert.False(t, Instance{State: "running"}.Idle())
	assert.True(t, Database{Status: "stopped"}.Idle())
	assert.False(t, Database{Status: "available"}.Idle())

	zero := 0
	two := 2
	assert.True(t, LoadBalancer{Targets: &zero}.Idle())
	assert.False(t, LoadBalancer{Targets: &two}.Idle())
	assert.False(t, LoadBalancer{}.Idle(), "unknown targets are not idle")

	scaledDown := Cluster{NodeGroupsListed: true, NodeGroups: []NodeGroup{{DesiredSize: 0}}}
	assert.True(t, scaledDown.Idle())
	assert.False(t, Cluster{NodeGroupsListed: true}.Idle(), "no node groups may mean Fargate")
	assert.False(t, Cluster{NodeGroups: []NodeGroup{{DesiredSize: 0}}}.Idle())
	partial := Cluster{NodeGroupsListed: true, UndescribedNodeGroups: 1, NodeGroups: []NodeGroup{{DesiredSize: 0}}}
	assert.False(t, partial.Idle())
}
