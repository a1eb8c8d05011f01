package inventory

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/lambda"

	"github.com/ppiankov/billspectre/internal/classifier"
)

// LambdaAPI defines the subset of the Lambda API used by the function lister.
type LambdaAPI interface {
	ListFunctions(ctx context.Context, input *lambda.ListFunctionsInput, opts ...func(*lambda.Options)) (*lambda.ListFunctionsOutput, error)
}

// FunctionLister lists Lambda functions.
type FunctionLister struct {
	client func(region string) LambdaAPI
}

// NewFunctionLister creates a lister that obtains a client per region.
func NewFunctionLister(client func(region string) LambdaAPI) *FunctionLister {
	return &FunctionLister{client: client}
}

func (l *FunctionLister) Category() classifier.Category { return classifier.Serverless }
func (l *FunctionLister) Global() bool                  { return false }

func (l *FunctionLister) List(ctx context.Context, region string) ([]Record, error) {
	client := l.client(region)
	input := &lambda.ListFunctionsInput{}

	var records []Record
	for {
		out, err := client.ListFunctions(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("list functions: %w", err)
		}
		for _, fn := range out.Functions {
			records = append(records, Record{
				ID:       deref(fn.FunctionName),
				Region:   region,
				Category: classifier.Serverless,
				Details: Function{
					Runtime:      string(fn.Runtime),
					MemoryMB:     derefInt32(fn.MemorySize),
					TimeoutSec:   derefInt32(fn.Timeout),
					CodeSize:     fn.CodeSize,
					LastModified: deref(fn.LastModified),
				},
			})
		}
		if out.NextMarker == nil {
			break
		}
		input.Marker = out.NextMarker
	}
	return records, nil
}
