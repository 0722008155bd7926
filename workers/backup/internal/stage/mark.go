package stage

import (
	"context"

	"github.com/balu-bunny/lambdaTest/shared/observability"
	"github.com/balu-bunny/lambdaTest/workers/backup/internal/domain"
	"github.com/balu-bunny/lambdaTest/workers/backup/internal/events"
)

// UnknownObject names the ledger row of a failure that arrived without an
// object name.
const UnknownObject = "UNKNOWN"

// MarkCompleted records the job as done. Only a failed ledger write fails
// the stage.
func (s *Stages) MarkCompleted(ctx context.Context, in domain.StageInput) (*domain.MarkOutput, error) {
	if err := requireJob(in); err != nil {
		return nil, err
	}
	ctx = observability.WithJob(ctx, in.ObjectName, in.JobID)

	keys := in.S3Keys
	if keys == nil {
		keys = []string{}
	}
	completedAt := s.timestamp()
	extra := tenantFields(in.RequestDetails, map[string]interface{}{
		"completedAt": completedAt,
		"s3Keys":      keys,
	})
	if err := s.ledger.PutStatus(ctx, in.ObjectName, in.JobID, domain.StateCompleted, extra); err != nil {
		s.logger.Error(ctx, "ledger write failed", err, nil)
		return nil, err
	}

	s.logger.Info(ctx, "backup completed", observability.Fields{"keys": len(keys)})
	s.publish(ctx, events.Event{
		Type:           events.TypeCompleted,
		ObjectName:     in.ObjectName,
		JobID:          in.JobID,
		State:          domain.StateCompleted,
		S3Keys:         keys,
		OccurredAt:     completedAt,
		RequestDetails: in.RequestDetails,
	})
	return &domain.MarkOutput{
		OK:             true,
		ObjectName:     in.ObjectName,
		JobID:          in.JobID,
		State:          domain.StateCompleted,
		RequestDetails: in.RequestDetails,
	}, nil
}

// MarkFailed records a failure. It never returns an error: missing ids are
// synthesized and ledger failures are only logged.
func (s *Stages) MarkFailed(ctx context.Context, in domain.StageInput) (*domain.MarkOutput, error) {
	objectName := in.ObjectName
	if objectName == "" {
		objectName = UnknownObject
	}
	jobID := in.JobID
	if jobID == "" {
		jobID = s.newID()
	}
	ctx = observability.WithJob(ctx, objectName, jobID)

	failedAt := s.timestamp()
	extra := tenantFields(in.RequestDetails, map[string]interface{}{
		"failedAt": failedAt,
	})
	reason := in.ErrorText()
	if reason != "" {
		extra["error"] = reason
	}
	if err := s.ledger.PutStatus(ctx, objectName, jobID, domain.StateFailed, extra); err != nil {
		s.logger.Error(ctx, "failure not recorded", err, observability.Fields{"reason": reason})
	} else {
		s.logger.Warn(ctx, "backup failed", observability.Fields{"reason": reason})
	}
	s.publish(ctx, events.Event{
		Type:           events.TypeFailed,
		ObjectName:     objectName,
		JobID:          jobID,
		State:          domain.StateFailed,
		Error:          reason,
		OccurredAt:     failedAt,
		RequestDetails: in.RequestDetails,
	})

	return &domain.MarkOutput{
		OK:             true,
		ObjectName:     objectName,
		JobID:          jobID,
		State:          domain.StateFailed,
		RequestDetails: in.RequestDetails,
	}, nil
}

// publish is best effort. The ledger row is the record of truth.
func (s *Stages) publish(ctx context.Context, event events.Event) {
	if err := s.events.Publish(ctx, event); err != nil {
		s.metrics.RecordError("events", "publish_failed")
		s.logger.Error(ctx, "event not published", err, observability.Fields{"type": event.Type})
	}
}
