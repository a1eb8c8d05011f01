package inventory

import (
	"context"
	"errors"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	ekstypes "github.com/aws/aws-sdk-go-v2/service/eks/types"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	"github.com/aws/aws-sdk-go-v2/service/guardduty"
	gdtypes "github.com/aws/aws-sdk-go-v2/service/guardduty/types"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/ppiankov/billspectre/internal/classifier"
)

var errDenied = errors.New("UnauthorizedOperation: you are not authorized")

// mockEC2 implements EC2API for testing.
type mockEC2 struct {
	instancePages []*ec2.DescribeInstancesOutput
	instancesErr  error
	vpcs          *ec2.DescribeVpcsOutput
	vpcsErr       error
	subnets       map[string]int
	subnetsErr    error
	regions       *ec2.DescribeRegionsOutput
	regionsErr    error

	instanceCalls int
	lastFilters   *ec2.DescribeInstancesInput
}

func (m *mockEC2) DescribeInstances(_ context.Context, input *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	m.lastFilters = input
	if m.instancesErr != nil {
		return nil, m.instancesErr
	}
	if len(m.instancePages) == 0 {
		return &ec2.DescribeInstancesOutput{}, nil
	}
	page := m.instancePages[m.instanceCalls]
	m.instanceCalls++
	return page, nil
}

func (m *mockEC2) DescribeVpcs(_ context.Context, _ *ec2.DescribeVpcsInput, _ ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error) {
	if m.vpcsErr != nil {
		return nil, m.vpcsErr
	}
	if m.vpcs == nil {
		return &ec2.DescribeVpcsOutput{}, nil
	}
	return m.vpcs, nil
}

func (m *mockEC2) DescribeSubnets(_ context.Context, input *ec2.DescribeSubnetsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error) {
	if m.subnetsErr != nil {
		return nil, m.subnetsErr
	}
	vpcID := input.Filters[0].Values[0]
	out := &ec2.DescribeSubnetsOutput{}
	for range m.subnets[vpcID] {
		out.Subnets = append(out.Subnets, ec2types.Subnet{VpcId: aws.String(vpcID)})
	}
	return out, nil
}

func (m *mockEC2) DescribeRegions(_ context.Context, _ *ec2.DescribeRegionsInput, _ ...func(*ec2.Options)) (*ec2.DescribeRegionsOutput, error) {
	if m.regionsErr != nil {
		return nil, m.regionsErr
	}
	return m.regions, nil
}

func instance(id, state, instanceType string) ec2types.Instance {
	return ec2types.Instance{
		InstanceId:   aws.String(id),
		InstanceType: ec2types.InstanceType(instanceType),
		State:        &ec2types.InstanceState{Name: ec2types.InstanceStateName(state)},
	}
}

func instancesPage(next *string, instances ...ec2types.Instance) *ec2.DescribeInstancesOutput {
	return &ec2.DescribeInstancesOutput{
		Reservations: []ec2types.Reservation{{Instances: instances}},
		NextToken:    next,
	}
}

// mockEKS implements EKSAPI for testing.
type mockEKS struct {
	clusters       []string
	describeErr    map[string]error
	nodegroups     map[string][]string
	nodegroupsErr  error
	nodegroupSizes map[string]int32
	nodegroupErr   map[string]error
}

func (m *mockEKS) ListClusters(_ context.Context, _ *eks.ListClustersInput, _ ...func(*eks.Options)) (*eks.ListClustersOutput, error) {
	return &eks.ListClustersOutput{Clusters: m.clusters}, nil
}

func (m *mockEKS) DescribeCluster(_ context.Context, input *eks.DescribeClusterInput, _ ...func(*eks.Options)) (*eks.DescribeClusterOutput, error) {
	name := aws.ToString(input.Name)
	if err := m.describeErr[name]; err != nil {
		return nil, err
	}
	return &eks.DescribeClusterOutput{Cluster: &ekstypes.Cluster{
		Name:    aws.String(name),
		Status:  ekstypes.ClusterStatusActive,
		Version: aws.String("1.30"),
	}}, nil
}

func (m *mockEKS) ListNodegroups(_ context.Context, input *eks.ListNodegroupsInput, _ ...func(*eks.Options)) (*eks.ListNodegroupsOutput, error) {
	if m.nodegroupsErr != nil {
		return nil, m.nodegroupsErr
	}
	return &eks.ListNodegroupsOutput{Nodegroups: m.nodegroups[aws.ToString(input.ClusterName)]}, nil
}

func (m *mockEKS) DescribeNodegroup(_ context.Context, input *eks.DescribeNodegroupInput, _ ...func(*eks.Options)) (*eks.DescribeNodegroupOutput, error) {
	name := aws.ToString(input.NodegroupName)
	if err := m.nodegroupErr[name]; err != nil {
		return nil, err
	}
	return &eks.DescribeNodegroupOutput{Nodegroup: &ekstypes.Nodegroup{
		NodegroupName: aws.String(name),
		InstanceTypes: []string{"m5.large"},
		Status:        ekstypes.NodegroupStatusActive,
		ScalingConfig: &ekstypes.NodegroupScalingConfig{
			DesiredSize: aws.Int32(m.nodegroupSizes[name]),
			MinSize:     aws.Int32(0),
			MaxSize:     aws.Int32(5),
		},
	}}, nil
}

// mockS3 implements S3API for testing.
type mockS3 struct {
	buckets     []string
	locations   map[string]string
	locationErr map[string]error
	objects     map[string][]s3types.Object
	objectsErr  map[string]error

	mu        sync.Mutex
	listedFor []string
}

func (m *mockS3) ListBuckets(_ context.Context, _ *s3.ListBucketsInput, _ ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	out := &s3.ListBucketsOutput{}
	for _, b := range m.buckets {
		out.Buckets = append(out.Buckets, s3types.Bucket{Name: aws.String(b)})
	}
	return out, nil
}

func (m *mockS3) GetBucketLocation(_ context.Context, input *s3.GetBucketLocationInput, _ ...func(*s3.Options)) (*s3.GetBucketLocationOutput, error) {
	name := aws.ToString(input.Bucket)
	if err := m.locationErr[name]; err != nil {
		return nil, err
	}
	return &s3.GetBucketLocationOutput{LocationConstraint: s3types.BucketLocationConstraint(m.locations[name])}, nil
}

func (m *mockS3) ListObjectsV2(_ context.Context, input *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	name := aws.ToString(input.Bucket)
	m.mu.Lock()
	m.listedFor = append(m.listedFor, name)
	m.mu.Unlock()
	if err := m.objectsErr[name]; err != nil {
		return nil, err
	}
	return &s3.ListObjectsV2Output{Contents: m.objects[name], IsTruncated: aws.Bool(false)}, nil
}

func object(key string, size int64, class s3types.ObjectStorageClass) s3types.Object {
	return s3types.Object{Key: aws.String(key), Size: aws.Int64(size), StorageClass: class}
}

// mockRDS implements RDSAPI for testing.
type mockRDS struct {
	pages []*rds.DescribeDBInstancesOutput
	err   error
	calls int
}

func (m *mockRDS) DescribeDBInstances(_ context.Context, _ *rds.DescribeDBInstancesInput, _ ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	page := m.pages[m.calls]
	m.calls++
	return page, nil
}

// mockLambda implements LambdaAPI for testing.
type mockLambda struct {
	out *lambda.ListFunctionsOutput
	err error
}

func (m *mockLambda) ListFunctions(_ context.Context, _ *lambda.ListFunctionsInput, _ ...func(*lambda.Options)) (*lambda.ListFunctionsOutput, error) {
	return m.out, m.err
}

// mockDynamoDB implements DynamoDBAPI for testing.
type mockDynamoDB struct {
	tables      []string
	describeErr map[string]error
}

func (m *mockDynamoDB) ListTables(_ context.Context, _ *dynamodb.ListTablesInput, _ ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error) {
	return &dynamodb.ListTablesOutput{TableNames: m.tables}, nil
}

func (m *mockDynamoDB) DescribeTable(_ context.Context, input *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	name := aws.ToString(input.TableName)
	if err := m.describeErr[name]; err != nil {
		return nil, err
	}
	return &dynamodb.DescribeTableOutput{Table: &ddbtypes.TableDescription{
		TableName:      aws.String(name),
		TableStatus:    ddbtypes.TableStatusActive,
		ItemCount:      aws.Int64(42),
		TableSizeBytes: aws.Int64(4096),
		BillingModeSummary: &ddbtypes.BillingModeSummary{
			BillingMode: ddbtypes.BillingModePayPerRequest,
		},
	}}, nil
}

// mockELB implements ELBAPI for testing.
type mockELB struct {
	lbs       []elbtypes.LoadBalancer
	groups    map[string][]string
	targets   map[string]int
	groupsErr error
}

func (m *mockELB) DescribeLoadBalancers(_ context.Context, _ *elbv2.DescribeLoadBalancersInput, _ ...func(*elbv2.Options)) (*elbv2.DescribeLoadBalancersOutput, error) {
	return &elbv2.DescribeLoadBalancersOutput{LoadBalancers: m.lbs}, nil
}

func (m *mockELB) DescribeTargetGroups(_ context.Context, input *elbv2.DescribeTargetGroupsInput, _ ...func(*elbv2.Options)) (*elbv2.DescribeTargetGroupsOutput, error) {
	if m.groupsErr != nil {
		return nil, m.groupsErr
	}
	out := &elbv2.DescribeTargetGroupsOutput{}
	for _, arn := range m.groups[aws.ToString(input.LoadBalancerArn)] {
		out.TargetGroups = append(out.TargetGroups, elbtypes.TargetGroup{TargetGroupArn: aws.String(arn)})
	}
	return out, nil
}

func (m *mockELB) DescribeTargetHealth(_ context.Context, input *elbv2.DescribeTargetHealthInput, _ ...func(*elbv2.Options)) (*elbv2.DescribeTargetHealthOutput, error) {
	out := &elbv2.DescribeTargetHealthOutput{}
	for range m.targets[aws.ToString(input.TargetGroupArn)] {
		out.TargetHealthDescriptions = append(out.TargetHealthDescriptions, elbtypes.TargetHealthDescription{})
	}
	return out, nil
}

// mockRoute53 implements Route53API for testing.
type mockRoute53 struct {
	pages []*route53.ListHostedZonesOutput
	calls int
}

func (m *mockRoute53) ListHostedZones(_ context.Context, _ *route53.ListHostedZonesInput, _ ...func(*route53.Options)) (*route53.ListHostedZonesOutput, error) {
	page := m.pages[m.calls]
	m.calls++
	return page, nil
}

// mockSecrets implements SecretsAPI for testing.
type mockSecrets struct {
	out *secretsmanager.ListSecretsOutput
}

func (m *mockSecrets) ListSecrets(_ context.Context, _ *secretsmanager.ListSecretsInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error) {
	return m.out, nil
}

// mockSSM implements SSMAPI for testing.
type mockSSM struct {
	out *ssm.DescribeInstanceInformationOutput
	err error
}

func (m *mockSSM) DescribeInstanceInformation(_ context.Context, _ *ssm.DescribeInstanceInformationInput, _ ...func(*ssm.Options)) (*ssm.DescribeInstanceInformationOutput, error) {
	return m.out, m.err
}

// mockAlarms implements AlarmsAPI for testing.
type mockAlarms struct {
	out *cloudwatch.DescribeAlarmsOutput
}

func (m *mockAlarms) DescribeAlarms(_ context.Context, _ *cloudwatch.DescribeAlarmsInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.DescribeAlarmsOutput, error) {
	return m.out, nil
}

// mockGuardDuty implements GuardDutyAPI for testing.
type mockGuardDuty struct {
	ids    []string
	getErr map[string]error
}

func (m *mockGuardDuty) ListDetectors(_ context.Context, _ *guardduty.ListDetectorsInput, _ ...func(*guardduty.Options)) (*guardduty.ListDetectorsOutput, error) {
	return &guardduty.ListDetectorsOutput{DetectorIds: m.ids}, nil
}

func (m *mockGuardDuty) GetDetector(_ context.Context, input *guardduty.GetDetectorInput, _ ...func(*guardduty.Options)) (*guardduty.GetDetectorOutput, error) {
	if err := m.getErr[aws.ToString(input.DetectorId)]; err != nil {
		return nil, err
	}
	return &guardduty.GetDetectorOutput{
		Status:                     gdtypes.DetectorStatusEnabled,
		FindingPublishingFrequency: gdtypes.FindingPublishingFrequencySixHours,
	}, nil
}

// fakeLister is a Lister driven by a function.
type fakeLister struct {
	category classifier.Category
	global   bool
	list     func(region string) ([]Record, error)

	mu    sync.Mutex
	calls []string
}

func (f *fakeLister) Category() classifier.Category { return f.category }
func (f *fakeLister) Global() bool                  { return f.global }

func (f *fakeLister) List(_ context.Context, region string) ([]Record, error) {
	f.mu.Lock()
	f.calls = append(f.calls, region)
	f.mu.Unlock()
	return f.list(region)
}
