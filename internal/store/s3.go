package store

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Mirror uploads lead-file snapshots to S3 after a cycle. Mirroring is
// best-effort: the local CSV remains the source of truth.
type S3Mirror struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Mirror builds a mirror from explicit credentials, falling back to
// the default AWS credential chain when the keys are empty.
func NewS3Mirror(ctx context.Context, bucket, prefix, region, accessKey, secretKey string) (*S3Mirror, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &S3Mirror{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
	}, nil
}

// Upload pushes the current lead file to s3://bucket/prefix/<basename> and
// a dated copy under prefix/history/ for point-in-time recovery.
func (m *S3Mirror) Upload(ctx context.Context, filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("reading lead file for mirror: %w", err)
	}

	base := path.Base(filePath)
	keys := []string{
		path.Join(m.prefix, base),
		path.Join(m.prefix, "history", time.Now().UTC().Format("2006-01-02"), base),
	}

	for _, key := range keys {
		_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(m.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String("text/csv"),
		})
		if err != nil {
			return fmt.Errorf("putting object %s to S3: %w", key, err)
		}
	}
	return nil
}
