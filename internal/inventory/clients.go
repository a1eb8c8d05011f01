package inventory

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/guardduty"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// Clients wraps the AWS SDK configuration for creating per-region service clients.
type Clients struct {
	cfg aws.Config
}

// NewClients loads AWS configuration using the specified profile and region.
func NewClients(ctx context.Context, profile, region string) (*Clients, error) {
	var opts []func(*awsconfig.LoadOptions) error

	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	return &Clients{cfg: cfg}, nil
}

// Config returns the underlying AWS config.
func (c *Clients) Config() aws.Config {
	return c.cfg
}

// Region returns the configured default region.
func (c *Clients) Region() string {
	return c.cfg.Region
}

func (c *Clients) EC2(region string) EC2API {
	return ec2.NewFromConfig(c.cfg, func(o *ec2.Options) { o.Region = region })
}

func (c *Clients) EKS(region string) EKSAPI {
	return eks.NewFromConfig(c.cfg, func(o *eks.Options) { o.Region = region })
}

func (c *Clients) S3(region string) S3API {
	return s3.NewFromConfig(c.cfg, func(o *s3.Options) { o.Region = region })
}

func (c *Clients) RDS(region string) RDSAPI {
	return rds.NewFromConfig(c.cfg, func(o *rds.Options) { o.Region = region })
}

func (c *Clients) Lambda(region string) LambdaAPI {
	return lambda.NewFromConfig(c.cfg, func(o *lambda.Options) { o.Region = region })
}

func (c *Clients) DynamoDB(region string) DynamoDBAPI {
	return dynamodb.NewFromConfig(c.cfg, func(o *dynamodb.Options) { o.Region = region })
}

func (c *Clients) ELB(region string) ELBAPI {
	return elbv2.NewFromConfig(c.cfg, func(o *elbv2.Options) { o.Region = region })
}

// Route53 ignores region; the API has a single global endpoint.
func (c *Clients) Route53(_ string) Route53API {
	return route53.NewFromConfig(c.cfg, func(o *route53.Options) { o.Region = "us-east-1" })
}

func (c *Clients) Secrets(region string) SecretsAPI {
	return secretsmanager.NewFromConfig(c.cfg, func(o *secretsmanager.Options) { o.Region = region })
}

func (c *Clients) SSM(region string) SSMAPI {
	return ssm.NewFromConfig(c.cfg, func(o *ssm.Options) { o.Region = region })
}

// CloudWatch returns the concrete client, which serves both alarm listing
// and metric queries.
func (c *Clients) CloudWatch(region string) *cloudwatch.Client {
	return cloudwatch.NewFromConfig(c.cfg, func(o *cloudwatch.Options) { o.Region = region })
}

func (c *Clients) GuardDuty(region string) GuardDutyAPI {
	return guardduty.NewFromConfig(c.cfg, func(o *guardduty.Options) { o.Region = region })
}

// Listers builds one lister per supported category. regions bounds which
// S3 buckets are enumerated.
func (c *Clients) Listers(regions []string) []Lister {
	return []Lister{
		NewComputeLister(c.EC2),
		NewClusterLister(c.EKS),
		NewBucketLister(c.S3, regions),
		NewDatabaseLister(c.RDS),
		NewNetworkLister(c.EC2),
		NewFunctionLister(c.Lambda),
		NewTableLister(c.DynamoDB),
		NewLoadBalancerLister(c.ELB),
		NewHostedZoneLister(c.Route53),
		NewSecretLister(c.Secrets),
		NewManagedNodeLister(c.SSM),
		NewAlarmLister(func(region string) AlarmsAPI { return c.CloudWatch(region) }),
		NewDetectorLister(c.GuardDuty),
	}
}
