package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	obstypes "github.com/balu-bunny/lambdaTest/shared/observability/types"
	"github.com/balu-bunny/lambdaTest/workers/backup/internal/domain"
)

// SQSAPI is the part of the SQS client the publisher calls.
type SQSAPI interface {
	GetQueueUrl(ctx context.Context, in *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher sends events to one queue, given by name or URL. FIFO
// queues get the object name as group id and the job identity plus state
// as deduplication id, so a replayed stage is delivered once.
type SQSPublisher struct {
	api     SQSAPI
	queue   string
	logger  obstypes.Logger
	metrics obstypes.Metrics

	mu       sync.Mutex
	queueURL string
}

// NewSQSPublisher creates a publisher for queue.
func NewSQSPublisher(api SQSAPI, queue string, logger obstypes.Logger, metrics obstypes.Metrics) *SQSPublisher {
	p := &SQSPublisher{api: api, queue: queue, logger: logger, metrics: metrics}
	if strings.HasPrefix(queue, "https://") || strings.HasPrefix(queue, "http://") {
		p.queueURL = queue
	}
	return p
}

func (p *SQSPublisher) Publish(ctx context.Context, event Event) error {
	startTime := time.Now()
	defer func() {
		p.metrics.RecordDuration("events_publish", time.Since(startTime).Seconds())
	}()

	queueURL, err := p.resolveQueueURL(ctx)
	if err != nil {
		p.metrics.RecordError("events_publish", "queue_url_failed")
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.metrics.RecordError("events_publish", "marshal_failed")
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"type": {DataType: aws.String("String"), StringValue: aws.String(event.Type)},
		},
	}
	if strings.HasSuffix(queueURL, ".fifo") {
		input.MessageGroupId = aws.String(event.ObjectName)
		input.MessageDeduplicationId = aws.String(dedupID(event))
	}

	if _, err := p.api.SendMessage(ctx, input); err != nil {
		p.metrics.RecordError("events_publish", "send_failed")
		return &domain.TransientError{Op: "publish " + event.Type, Err: err}
	}

	p.metrics.RecordSuccess("events_publish")
	p.logger.Debug(ctx, "Event published", obstypes.Fields{"type": event.Type, "size": len(body)})
	return nil
}

func (p *SQSPublisher) resolveQueueURL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.queueURL != "" {
		return p.queueURL, nil
	}

	out, err := p.api.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(p.queue)})
	if err != nil {
		return "", fmt.Errorf("failed to get queue URL for %s: %w", p.queue, err)
	}
	p.queueURL = aws.ToString(out.QueueUrl)
	return p.queueURL, nil
}

// dedupID stays within the 128 character SQS limit.
func dedupID(event Event) string {
	id := strings.NewReplacer("#", "-", " ", "-").Replace(domain.Key(event.ObjectName, event.JobID) + "-" + string(event.State))
	if len(id) > 128 {
		id = id[len(id)-128:]
	}
	return id
}
