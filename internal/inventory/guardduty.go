package inventory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/guardduty"

	"github.com/ppiankov/billspectre/internal/classifier"
)

// GuardDutyAPI defines the subset of the GuardDuty API used by the detector lister.
type GuardDutyAPI interface {
	ListDetectors(ctx context.Context, input *guardduty.ListDetectorsInput, opts ...func(*guardduty.Options)) (*guardduty.ListDetectorsOutput, error)
	GetDetector(ctx context.Context, input *guardduty.GetDetectorInput, opts ...func(*guardduty.Options)) (*guardduty.GetDetectorOutput, error)
}

// DetectorLister lists GuardDuty detectors.
type DetectorLister struct {
	client func(region string) GuardDutyAPI
}

// NewDetectorLister creates a lister that obtains a client per region.
func NewDetectorLister(client func(region string) GuardDutyAPI) *DetectorLister {
	return &DetectorLister{client: client}
}

func (l *DetectorLister) Category() classifier.Category { return classifier.ThreatDetection }
func (l *DetectorLister) Global() bool                  { return false }

// List returns the region's detectors. A detector that cannot be read is
// kept with Described unset.
func (l *DetectorLister) List(ctx context.Context, region string) ([]Record, error) {
	client := l.client(region)

	var ids []string
	input := &guardduty.ListDetectorsInput{}
	for {
		out, err := client.ListDetectors(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("list detectors: %w", err)
		}
		ids = append(ids, out.DetectorIds...)
		if out.NextToken == nil {
			break
		}
		input.NextToken = out.NextToken
	}

	records := make([]Record, 0, len(ids))
	for _, id := range ids {
		var d Detector
		out, err := client.GetDetector(ctx, &guardduty.GetDetectorInput{DetectorId: aws.String(id)})
		if err != nil {
			slog.Debug("Get detector failed", "region", region, "resource", id, "error", err)
		} else {
			d = Detector{
				Status:             string(out.Status),
				PublishingInterval: string(out.FindingPublishingFrequency),
				Described:          true,
			}
		}
		records = append(records, Record{
			ID:       id,
			Region:   region,
			Category: classifier.ThreatDetection,
			Details:  d,
		})
	}
	return records, nil
}
