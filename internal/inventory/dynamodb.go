package inventory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/ppiankov/billspectre/internal/classifier"
)

// DynamoDBAPI defines the subset of the DynamoDB API used by the table lister.
type DynamoDBAPI interface {
	ListTables(ctx context.Context, input *dynamodb.ListTablesInput, opts ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error)
	DescribeTable(ctx context.Context, input *dynamodb.DescribeTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// TableLister lists DynamoDB tables.
type TableLister struct {
	client func(region string) DynamoDBAPI
}

// NewTableLister creates a lister that obtains a client per region.
func NewTableLister(client func(region string) DynamoDBAPI) *TableLister {
	return &TableLister{client: client}
}

func (l *TableLister) Category() classifier.Category { return classifier.KeyValueStore }
func (l *TableLister) Global() bool                  { return false }

// List returns the region's tables. Tables that cannot be described are skipped.
func (l *TableLister) List(ctx context.Context, region string) ([]Record, error) {
	client := l.client(region)

	var names []string
	input := &dynamodb.ListTablesInput{}
	for {
		out, err := client.ListTables(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("list tables: %w", err)
		}
		names = append(names, out.TableNames...)
		if out.LastEvaluatedTableName == nil {
			break
		}
		input.ExclusiveStartTableName = out.LastEvaluatedTableName
	}

	var records []Record
	for _, name := range names {
		out, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)})
		if err != nil || out.Table == nil {
			slog.Debug("Describe table failed", "region", region, "resource", name, "error", err)
			continue
		}
		t := out.Table
		billingMode := "PROVISIONED"
		if t.BillingModeSummary != nil && t.BillingModeSummary.BillingMode != "" {
			billingMode = string(t.BillingModeSummary.BillingMode)
		}
		records = append(records, Record{
			ID:       name,
			Region:   region,
			Category: classifier.KeyValueStore,
			Details: Table{
				Status:      string(t.TableStatus),
				ItemCount:   derefInt64(t.ItemCount),
				SizeBytes:   derefInt64(t.TableSizeBytes),
				BillingMode: billingMode,
			},
		})
	}
	return records, nil
}
