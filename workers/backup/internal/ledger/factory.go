package ledger

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/balu-bunny/lambdaTest/shared/awsutil"
	"github.com/balu-bunny/lambdaTest/shared/config"
	"github.com/balu-bunny/lambdaTest/shared/observability/types"
)

// New builds the ledger selected by cfg.Ledger.Provider.
func New(ctx context.Context, cfg *config.Config, logger types.Logger, metrics types.Metrics) (Ledger, error) {
	switch cfg.Ledger.Provider {
	case "dynamodb":
		awsCfg, err := awsutil.LoadConfig(ctx, awsutil.Options{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.Storage.S3.AccessKeyID,
			SecretAccessKey: cfg.Storage.S3.SecretAccessKey,
			MaxRetries:      cfg.Storage.MaxRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build AWS config: %w", err)
		}
		client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			if cfg.IsLocal() && cfg.AWS.LocalStackEndpoint != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.LocalStackEndpoint)
			}
		})
		return NewDynamoLedger(client, cfg.Ledger.Table, logger, metrics), nil

	case "postgres":
		db, err := OpenPostgres(ctx, cfg.Ledger.Postgres)
		if err != nil {
			return nil, err
		}
		l := NewPostgresLedger(db, cfg.Ledger.Postgres.Table, logger, metrics)
		if err := l.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return l, nil

	case "memory":
		return NewMemoryLedger(), nil

	default:
		return nil, fmt.Errorf("unsupported ledger provider: %s", cfg.Ledger.Provider)
	}
}
