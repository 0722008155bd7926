package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/balu-bunny/lambdaTest/shared/observability/types"
	"github.com/balu-bunny/lambdaTest/workers/backup/internal/domain"
)

// DynamoAPI is the slice of the DynamoDB client the ledger uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoLedger writes one item per job with partition key pk.
type DynamoLedger struct {
	api     DynamoAPI
	table   string
	logger  types.Logger
	metrics types.Metrics
	now     func() time.Time
}

// NewDynamoLedger creates a ledger on table.
func NewDynamoLedger(api DynamoAPI, table string, logger types.Logger, metrics types.Metrics) *DynamoLedger {
	return &DynamoLedger{
		api:     api,
		table:   table,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

func (l *DynamoLedger) PutStatus(ctx context.Context, objectName, jobID string, state domain.State, extra map[string]interface{}) error {
	start := time.Now()
	item := BuildItem(objectName, jobID, state, extra, l.now())

	av, err := attributevalue.MarshalMap(map[string]interface{}(item))
	if err != nil {
		l.metrics.RecordError("ledger_put", "marshal")
		return storageError(objectName, jobID, fmt.Errorf("marshal item: %w", err))
	}

	_, err = l.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(l.table),
		Item:      av,
	})
	l.metrics.RecordDuration("ledger_put", time.Since(start).Seconds())
	if err != nil {
		l.metrics.RecordError("ledger_put", "put_item")
		l.logger.Error(ctx, "Failed to write job status", err, types.Fields{
			"table": l.table,
			"state": string(state),
		})
		return storageError(objectName, jobID, err)
	}

	l.metrics.RecordSuccess("ledger_put")
	l.logger.Debug(ctx, "Job status written", types.Fields{"table": l.table, "state": string(state)})
	return nil
}
