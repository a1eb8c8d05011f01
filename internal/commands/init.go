package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var initFlags struct {
	force bool
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate sample config and IAM policy",
	Long:  `Creates a sample .billspectre.yaml config file and a read-only IAM policy covering Cost Explorer, inventory and CloudWatch.`,
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initFlags.force, "force", false, "Overwrite existing files")
}

func runInit(_ *cobra.Command, _ []string) error {
	configPath := ".billspectre.yaml"
	policyPath := "billspectre-policy.json"

	if err := writeIfNotExists(configPath, sampleConfig, initFlags.force); err != nil {
		return err
	}
	if err := writeIfNotExists(policyPath, sampleIAMPolicy, initFlags.force); err != nil {
		return err
	}

	fmt.Printf("Created %s and %s\n", configPath, policyPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit .billspectre.yaml to set profile, regions and thresholds")
	fmt.Println("  2. Apply billspectre-policy.json to your IAM role/user")
	fmt.Println("  3. Enable Cost Explorer (and resource-level data for per-resource costs)")
	fmt.Println("  4. Run: billspectre aws")
	return nil
}

func writeIfNotExists(path, content string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			fmt.Printf("Skipping %s (already exists, use --force to overwrite)\n", path)
			return nil
		}
	}

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return os.WriteFile(path, []byte(content), 0o644)
}

const sampleConfig = `# billspectre configuration
# See: https://github.com/ppiankov/billspectre

# AWS profile (or set AWS_PROFILE env var)
# profile: default

# Regions to scan (default: all enabled regions)
# regions:
#   - us-east-1
#   - eu-west-1

# Only analyze these services (default: everything on the bill)
# services:
#   - ec2
#   - rds
#   - s3

# Directory for the Excel report
# output_dir: reports

# Console output format: text, json, sarif, spectrehub
# format: text

# Run timeout
# timeout: 30m

# Parallel AWS calls
# concurrency: 8

# Days of CloudWatch history to read
# telemetry_days: 7

# Hide quantified findings below this monthly impact ($)
# min_monthly_impact: 5

# Run history database
# history_db: .billspectre/history.db

# Rule thresholds in $/month unless noted
# thresholds:
#   top_service: 1000
#   eks: 500
#   rds: 500
#   ec2: 500
#   s3: 100
#   lambda: 100
#   budget: 1000
#   storage_tiering_gb: 100
#   sprawl_services: 20
`

const sampleIAMPolicy = `{
  "Version": "2012-10-17",
  "Statement": [
    {
      "Sid": "BillspectreCostExplorer",
      "Effect": "Allow",
      "Action": [
        "ce:GetCostAndUsage",
        "ce:GetCostAndUsageWithResources"
      ],
      "Resource": "*"
    },
    {
      "Sid": "BillspectreInventory",
      "Effect": "Allow",
      "Action": [
        "ec2:DescribeInstances",
        "ec2:DescribeRegions",
        "ec2:DescribeVpcs",
        "ec2:DescribeSubnets",
        "eks:ListClusters",
        "eks:DescribeCluster",
        "eks:ListNodegroups",
        "eks:DescribeNodegroup",
        "s3:ListAllMyBuckets",
        "s3:GetBucketLocation",
        "s3:ListBucket",
        "rds:DescribeDBInstances",
        "lambda:ListFunctions",
        "dynamodb:ListTables",
        "dynamodb:DescribeTable",
        "elasticloadbalancing:DescribeLoadBalancers",
        "elasticloadbalancing:DescribeTargetGroups",
        "elasticloadbalancing:DescribeTargetHealth",
        "route53:ListHostedZones",
        "secretsmanager:ListSecrets",
        "ssm:DescribeInstanceInformation",
        "cloudwatch:DescribeAlarms",
        "cloudwatch:GetMetricStatistics",
        "cloudwatch:GetMetricData",
        "cloudwatch:ListMetrics",
        "guardduty:ListDetectors",
        "guardduty:GetDetector",
        "sts:GetCallerIdentity"
      ],
      "Resource": "*"
    }
  ]
}
`
