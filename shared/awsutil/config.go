// Package awsutil builds the aws.Config shared by the S3, DynamoDB and
// Secrets Manager clients.
package awsutil

import (
	"context"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// Options selects region, credentials and transport limits. Zero values fall
// back to the SDK default chain.
type Options struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	MaxRetries      int
	Timeout         time.Duration
}

// LoadConfig resolves an aws.Config from opts and the default chain.
func LoadConfig(ctx context.Context, opts Options) (aws.Config, error) {
	var optFns []func(*awsconfig.LoadOptions) error

	if opts.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(opts.Region))
	}

	// Use static credentials if provided
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				opts.AccessKeyID,
				opts.SecretAccessKey,
				"",
			),
		))
	}

	if opts.MaxRetries > 0 {
		optFns = append(optFns, awsconfig.WithRetryMaxAttempts(opts.MaxRetries))
	}

	if opts.Timeout > 0 {
		optFns = append(optFns, awsconfig.WithHTTPClient(&http.Client{
			Timeout: opts.Timeout,
		}))
	}

	return awsconfig.LoadDefaultConfig(ctx, optFns...)
}
