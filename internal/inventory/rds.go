package inventory

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/rds"

	"github.com/ppiankov/billspectre/internal/classifier"
)

// RDSAPI defines the subset of the RDS API used by the database lister.
type RDSAPI interface {
	DescribeDBInstances(ctx context.Context, input *rds.DescribeDBInstancesInput, opts ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error)
}

// DatabaseLister lists RDS instances.
type DatabaseLister struct {
	client func(region string) RDSAPI
}

// NewDatabaseLister creates a lister that obtains a client per region.
func NewDatabaseLister(client func(region string) RDSAPI) *DatabaseLister {
	return &DatabaseLister{client: client}
}

func (l *DatabaseLister) Category() classifier.Category { return classifier.RelationalDB }
func (l *DatabaseLister) Global() bool                  { return false }

func (l *DatabaseLister) List(ctx context.Context, region string) ([]Record, error) {
	client := l.client(region)
	input := &rds.DescribeDBInstancesInput{}

	var records []Record
	for {
		out, err := client.DescribeDBInstances(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("describe db instances: %w", err)
		}
		for _, db := range out.DBInstances {
			d := Database{
				Class:         deref(db.DBInstanceClass),
				Engine:        deref(db.Engine),
				EngineVersion: deref(db.EngineVersion),
				Status:        deref(db.DBInstanceStatus),
				MultiAZ:       derefBool(db.MultiAZ),
				StorageType:   deref(db.StorageType),
				AllocatedGB:   derefInt32(db.AllocatedStorage),
				CreatedAt:     derefTime(db.InstanceCreateTime),
			}
			if db.DBSubnetGroup != nil {
				d.VpcID = deref(db.DBSubnetGroup.VpcId)
			}
			records = append(records, Record{
				ID:       deref(db.DBInstanceIdentifier),
				Region:   region,
				Category: classifier.RelationalDB,
				Details:  d,
			})
		}
		if out.Marker == nil {
			break
		}
		input.Marker = out.Marker
	}
	return records, nil
}
