// Package storage implements the external object store holding order media
// attachments.
package storage

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"makerdesk/internal/core"
)

type s3Store struct {
	client *s3.Client
	bucket string
}

// NewS3MediaStore builds the S3-backed media store from MEDIA_BUCKET and the
// standard AWS credential environment.
func NewS3MediaStore(ctx context.Context) (core.MediaStore, error) {
	bucket := os.Getenv("MEDIA_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("MEDIA_BUCKET is not configured")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(os.Getenv("AWS_REGION")),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY"), "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config: %w", err)
	}

	return &s3Store{client: s3.NewFromConfig(awsCfg), bucket: bucket}, nil
}

func (s *s3Store) Delete(ctx context.Context, objectKey string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", objectKey, err)
	}
	return nil
}

// NoopMediaStore is used when no object store is configured; deletions log
// and succeed so the database-level soft delete is never blocked.
type NoopMediaStore struct{}

func (NoopMediaStore) Delete(_ context.Context, objectKey string) error {
	log.Printf("media store not configured; object %s left in place", objectKey)
	return nil
}
