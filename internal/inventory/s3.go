package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ppiankov/billspectre/internal/classifier"
)

// S3API defines the subset of the S3 API used by the bucket lister.
type S3API interface {
	ListBuckets(ctx context.Context, input *s3.ListBucketsInput, opts ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	GetBucketLocation(ctx context.Context, input *s3.GetBucketLocationInput, opts ...func(*s3.Options)) (*s3.GetBucketLocationOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// BucketLister lists S3 buckets and totals their objects by storage class.
type BucketLister struct {
	client  func(region string) S3API
	regions []string
}

// NewBucketLister creates a lister for buckets located in one of regions.
// Buckets elsewhere are skipped before their objects are enumerated.
func NewBucketLister(client func(region string) S3API, regions []string) *BucketLister {
	return &BucketLister{client: client, regions: regions}
}

func (l *BucketLister) Category() classifier.Category { return classifier.ObjectStorage }
func (l *BucketLister) Global() bool                  { return true }

// List returns the account's buckets. region is where the bucket list is
// requested from; each bucket's objects are enumerated in its own region.
func (l *BucketLister) List(ctx context.Context, region string) ([]Record, error) {
	client := l.client(region)

	var records []Record
	input := &s3.ListBucketsInput{}
	for {
		out, err := client.ListBuckets(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("list buckets: %w", err)
		}
		for _, b := range out.Buckets {
			name := deref(b.Name)
			location := region
			if loc, err := bucketRegion(ctx, client, name); err != nil {
				slog.Debug("Bucket location lookup failed", "resource", name, "error", err)
			} else {
				location = loc
			}
			if len(l.regions) > 0 && !slices.Contains(l.regions, location) {
				slog.Debug("Skipping bucket outside scanned regions", "resource", name, "region", location)
				continue
			}

			bucket := Bucket{Name: name, CreatedAt: derefTime(b.CreationDate)}
			if err := enumerateObjects(ctx, l.client(location), &bucket); err != nil {
				slog.Debug("Object enumeration failed", "resource", name, "region", location, "error", err)
				bucket.SizeBytes, bucket.ObjectCount, bucket.StorageClasses = 0, 0, nil
			} else {
				bucket.Enumerated = true
			}

			records = append(records, Record{
				ID:       name,
				Region:   location,
				Category: classifier.ObjectStorage,
				Details:  bucket,
			})
		}
		if out.ContinuationToken == nil {
			break
		}
		input.ContinuationToken = out.ContinuationToken
	}
	return records, nil
}

// bucketRegion maps GetBucketLocation's constraint to a region name.
func bucketRegion(ctx context.Context, client S3API, bucket string) (string, error) {
	out, err := client.GetBucketLocation(ctx, &s3.GetBucketLocationInput{Bucket: aws.String(bucket)})
	if err != nil {
		return "", fmt.Errorf("get bucket location for %s: %w", bucket, err)
	}
	switch loc := string(out.LocationConstraint); loc {
	case "":
		return "us-east-1", nil
	case "EU":
		return "eu-west-1", nil
	default:
		return loc, nil
	}
}

func enumerateObjects(ctx context.Context, client S3API, bucket *Bucket) error {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(bucket.Name)}
	classes := make(map[string]int64)
	for {
		out, err := client.ListObjectsV2(ctx, input)
		if err != nil {
			return fmt.Errorf("list objects in %s: %w", bucket.Name, err)
		}
		for _, obj := range out.Contents {
			size := derefInt64(obj.Size)
			class := string(obj.StorageClass)
			if class == "" {
				class = "STANDARD"
			}
			bucket.SizeBytes += size
			bucket.ObjectCount++
			classes[class] += size
		}
		if !derefBool(out.IsTruncated) || out.NextContinuationToken == nil {
			break
		}
		input.ContinuationToken = out.NextContinuationToken
	}
	if len(classes) > 0 {
		bucket.StorageClasses = classes
	}
	return nil
}
