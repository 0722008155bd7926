package events

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/balu-bunny/lambdaTest/shared/awsutil"
	"github.com/balu-bunny/lambdaTest/shared/config"
	"github.com/balu-bunny/lambdaTest/shared/observability/types"
)

// New builds the publisher selected by cfg.Events.Provider.
func New(ctx context.Context, cfg *config.Config, logger types.Logger, metrics types.Metrics) (Publisher, error) {
	switch cfg.Events.Provider {
	case "", "none":
		return Nop{}, nil

	case "memory":
		return &MemoryPublisher{}, nil

	case "sqs":
		awsCfg, err := awsutil.LoadConfig(ctx, awsutil.Options{
			Region:     cfg.AWS.Region,
			MaxRetries: cfg.Storage.MaxRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build AWS config: %w", err)
		}
		client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
			if cfg.IsLocal() && cfg.AWS.LocalStackEndpoint != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.LocalStackEndpoint)
			}
		})
		return NewSQSPublisher(client, cfg.Events.Queue, logger, metrics), nil

	default:
		return nil, fmt.Errorf("unsupported events provider: %s", cfg.Events.Provider)
	}
}
