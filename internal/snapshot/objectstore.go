package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// Object describes a stored snapshot.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ObjectStore is the slice of S3 the snapshots need.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, metadata map[string]string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]Object, error)
	Delete(ctx context.Context, key string) error
}

// S3Config contains configuration for an S3-compatible endpoint
// (AWS, DigitalOcean Spaces, MinIO).
type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	// PathStyle addresses the bucket in the path, which MinIO needs.
	PathStyle bool
}

// S3Store stores snapshots in an S3 bucket.
type S3Store struct {
	client *s3.S3
	bucket string
}

var _ ObjectStore = (*S3Store)(nil)

// NewS3Store creates a new S3-compatible object store
func NewS3Store(config S3Config) (*S3Store, error) {
	if config.Bucket == "" {
		return nil, fmt.Errorf("snapshot bucket is required")
	}

	awsConfig := &aws.Config{
		Region:           aws.String(config.Region),
		S3ForcePathStyle: aws.Bool(config.PathStyle),
	}
	if config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(config.Endpoint)
	}
	if config.AccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(config.AccessKey, config.SecretKey, "")
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &S3Store{
		client: s3.New(sess),
		bucket: config.Bucket,
	}, nil
}

// Put uploads body under key as JSON Lines.
func (s *S3Store) Put(ctx context.Context, key string, body []byte, metadata map[string]string) error {
	meta := make(map[string]*string, len(metadata))
	for k, v := range metadata {
		meta[k] = aws.String(v)
	}

	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		Metadata:    meta,
		ContentType: aws.String("application/x-jsonlines"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload snapshot: %w", err)
	}
	return nil
}

// Get opens the object at key. The caller closes it.
func (s *S3Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	result, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return result.Body, nil
}

// List returns every object under prefix, following continuation tokens.
func (s *S3Store) List(ctx context.Context, prefix string) ([]Object, error) {
	var objects []Object

	err := s.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, o := range page.Contents {
			objects = append(objects, Object{
				Key:          aws.StringValue(o.Key),
				Size:         aws.Int64Value(o.Size),
				LastModified: aws.TimeValue(o.LastModified),
			})
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return objects, nil
}

// Delete removes the object at key.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}
