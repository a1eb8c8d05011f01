package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/route53"

	"github.com/ppiankov/billspectre/internal/classifier"
)

// Route53API defines the subset of the Route 53 API used by the zone lister.
type Route53API interface {
	ListHostedZones(ctx context.Context, input *route53.ListHostedZonesInput, opts ...func(*route53.Options)) (*route53.ListHostedZonesOutput, error)
}

// HostedZoneLister lists Route 53 hosted zones. Zones are global; records
// carry the home region they were listed from.
type HostedZoneLister struct {
	client func(region string) Route53API
}

// NewHostedZoneLister creates a lister that obtains a client for the home region.
func NewHostedZoneLister(client func(region string) Route53API) *HostedZoneLister {
	return &HostedZoneLister{client: client}
}

func (l *HostedZoneLister) Category() classifier.Category { return classifier.DNS }
func (l *HostedZoneLister) Global() bool                  { return true }

func (l *HostedZoneLister) List(ctx context.Context, region string) ([]Record, error) {
	client := l.client(region)
	input := &route53.ListHostedZonesInput{}

	var records []Record
	for {
		out, err := client.ListHostedZones(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("list hosted zones: %w", err)
		}
		for _, z := range out.HostedZones {
			zone := HostedZone{
				Name:        deref(z.Name),
				RecordCount: derefInt64(z.ResourceRecordSetCount),
			}
			if z.Config != nil {
				zone.Private = z.Config.PrivateZone
			}
			records = append(records, Record{
				ID:       strings.TrimPrefix(deref(z.Id), "/hostedzone/"),
				Region:   region,
				Category: classifier.DNS,
				Details:  zone,
			})
		}
		if !out.IsTruncated || out.NextMarker == nil {
			break
		}
		input.Marker = out.NextMarker
	}
	return records, nil
}
