// Package s3 stores backup artifacts in an S3 bucket. Uploads stream through
// the multipart upload manager so result files never sit in memory whole.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/balu-bunny/lambdaTest/shared/awsutil"
	"github.com/balu-bunny/lambdaTest/shared/config"
	"github.com/balu-bunny/lambdaTest/shared/observability"
	"github.com/balu-bunny/lambdaTest/shared/storage/types"
)

// API is the subset of *s3.Client the adapter calls directly.
type API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// Uploader is satisfied by *manager.Uploader.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// Client implements types.ObjectStorage for AWS S3
type Client struct {
	api      API
	uploader Uploader
	bucket   string
	region   string
	logger   observability.Logger
	metrics  observability.Metrics
}

// NewClient builds the SDK client from configuration and verifies the
// bucket. Against a custom endpoint (LocalStack, MinIO) a missing bucket is
// created.
func NewClient(ctx context.Context, cfg *config.StorageConfig, logger observability.Logger, metrics observability.Metrics) (*Client, error) {
	if cfg.S3.Bucket == "" {
		return nil, fmt.Errorf("invalid S3 configuration: bucket is required")
	}

	awsCfg, err := awsutil.LoadConfig(ctx, awsutil.Options{
		Region:          cfg.S3.Region,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
		MaxRetries:      cfg.MaxRetries,
		Timeout:         cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.S3.UsePathStyle {
			o.UsePathStyle = true
		}
	})

	uploader := manager.NewUploader(s3Client, func(u *manager.Uploader) {
		if cfg.S3.PartSize >= manager.MinUploadPartSize {
			u.PartSize = cfg.S3.PartSize
		}
		if cfg.S3.Concurrency > 0 {
			u.Concurrency = cfg.S3.Concurrency
		}
	})

	client := New(s3Client, uploader, cfg.S3.Bucket, cfg.S3.Region, logger, metrics)

	verifyCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := client.ensureBucketExists(verifyCtx, cfg.S3.Endpoint != ""); err != nil {
		return nil, fmt.Errorf("failed to verify bucket existence: %w", err)
	}

	return client, nil
}

// New wires a Client from already built SDK parts.
func New(api API, uploader Uploader, bucket, region string, logger observability.Logger, metrics observability.Metrics) *Client {
	return &Client{
		api:      api,
		uploader: uploader,
		bucket:   bucket,
		region:   region,
		logger:   logger,
		metrics:  metrics,
	}
}

// Bucket returns the target bucket name.
func (c *Client) Bucket() string { return c.bucket }

// Put streams reader to bucket/key.
func (c *Client) Put(ctx context.Context, key string, reader io.Reader, metadata types.ObjectMetadata) (*types.PutResult, error) {
	start := time.Now()
	c.metrics.StartOperation("s3_put")
	defer func() {
		c.metrics.EndOperation("s3_put")
		c.metrics.RecordDuration("s3_put", time.Since(start).Seconds())
	}()

	counter := &types.CountingReader{R: reader}

	input := &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
		Body:   counter,
	}
	if metadata.ContentType != "" {
		input.ContentType = aws.String(metadata.ContentType)
	}
	if len(metadata.UserMetadata) > 0 {
		input.Metadata = metadata.UserMetadata
	}

	out, err := c.uploader.Upload(ctx, input)
	if err != nil {
		c.metrics.RecordError("s3_put", "upload")
		c.logger.Error(ctx, "failed to put object", err, observability.Fields{
			"bucket": c.bucket,
			"key":    key,
		})
		return nil, fmt.Errorf("failed to put object %s: %w", key, err)
	}

	c.metrics.RecordSuccess("s3_put")
	c.metrics.RecordFileSize(contentLabel(metadata.ContentType), counter.N)
	c.logger.Debug(ctx, "object stored successfully", observability.Fields{
		"bucket": c.bucket,
		"key":    key,
		"size":   counter.N,
	})

	result := &types.PutResult{Key: key, Bytes: counter.N}
	if out != nil {
		result.Location = out.Location
	}
	return result, nil
}

// Get retrieves an object from S3
func (c *Client) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	result, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, types.ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to get object: %w", err)
	}

	return result.Body, nil
}

// Exists checks if an object exists in S3
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object existence: %w", err)
	}

	return true, nil
}

func (c *Client) ensureBucketExists(ctx context.Context, create bool) error {
	_, err := c.api.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err == nil {
		return nil
	}

	var nse *s3types.NotFound
	if !errors.As(err, &nse) || !create {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	c.logger.Info(ctx, "bucket does not exist, attempting to create", observability.Fields{
		"bucket": c.bucket,
	})

	input := &s3.CreateBucketInput{Bucket: aws.String(c.bucket)}
	// us-east-1 rejects an explicit location constraint
	if c.region != "" && c.region != "us-east-1" {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(c.region),
		}
	}

	if _, err := c.api.CreateBucket(ctx, input); err != nil {
		var bae *s3types.BucketAlreadyExists
		var baoyb *s3types.BucketAlreadyOwnedByYou
		if errors.As(err, &bae) || errors.As(err, &baoyb) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	return nil
}

func contentLabel(contentType string) string {
	switch contentType {
	case "text/csv":
		return "csv"
	case "application/json":
		return "json"
	case "":
		return "unknown"
	default:
		return "other"
	}
}

// isNotFoundError checks if an error is a not found error
func isNotFoundError(err error) bool {
	var nsk *s3types.NoSuchKey
	var nse *s3types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nse)
}
