package stage

import (
	"context"
	"strings"

	"github.com/balu-bunny/lambdaTest/shared/observability"
	"github.com/balu-bunny/lambdaTest/workers/backup/internal/domain"
)

var defaultObjects = []string{"Account", "Contact", "Opportunity"}

// ListObjects returns the objects to back up for the org in requestDetails.
func (s *Stages) ListObjects(ctx context.Context, in domain.StageInput) (*domain.ListObjectsOutput, error) {
	var objects []string
	if s.objects != nil {
		objects = s.objects.Objects(in.RequestDetails.OrgID())
	}
	if len(objects) == 0 {
		objects = append([]string(nil), defaultObjects...)
	}

	s.logger.Info(ctx, "objects resolved", observability.Fields{"count": len(objects)})
	return &domain.ListObjectsOutput{Objects: objects, RequestDetails: in.RequestDetails}, nil
}

// InitJob submits the export job for one object. Objects with nothing to
// export get a deterministic placeholder job instead.
func (s *Stages) InitJob(ctx context.Context, in domain.StageInput) (*domain.InitJobOutput, error) {
	if in.ObjectName == "" {
		return nil, &domain.ValidationError{Field: "objectName", Message: "is required"}
	}
	ctx = observability.WithJob(ctx, in.ObjectName, "")

	remote, err := s.remote.Connect(ctx, in.RequestDetails)
	if err != nil {
		return nil, err
	}

	soql := "SELECT Id FROM " + in.ObjectName
	if s.cfg.DescribeFields {
		desc, err := remote.DescribeObject(ctx, in.ObjectName)
		if err != nil {
			s.logger.Error(ctx, "describe failed", err, nil)
			return nil, err
		}
		if !desc.Queryable {
			return s.skip(ctx, in, domain.StateSkipped, "object is not queryable")
		}
		if len(desc.Fields) > 0 {
			soql = "SELECT " + strings.Join(desc.Fields, ", ") + " FROM " + in.ObjectName
		}
	}

	var count int64
	if s.cfg.SkipEmpty {
		count, err = remote.CountRecords(ctx, in.ObjectName)
		if err != nil {
			s.logger.Error(ctx, "count query failed", err, nil)
			return nil, err
		}
		if count == 0 {
			return s.skip(ctx, in, domain.StateAborted, "no records to export")
		}
	}

	job, err := remote.CreateExportJob(ctx, in.ObjectName, soql)
	if err != nil {
		s.logger.Error(ctx, "export job not created", err, nil)
		return nil, err
	}
	ctx = observability.WithJob(ctx, in.ObjectName, job.ID)

	createdAt := s.timestamp()
	extra := tenantFields(in.RequestDetails, map[string]interface{}{
		"createdAt":   createdAt,
		"recordCount": count,
		"job":         job.Record,
	})
	if err := s.ledger.PutStatus(ctx, in.ObjectName, job.ID, domain.StateCreated, extra); err != nil {
		s.logger.Error(ctx, "ledger write failed", err, nil)
		return nil, err
	}

	s.logger.Info(ctx, "export job created", observability.Fields{"records": count, "remote_state": job.State})
	return &domain.InitJobOutput{
		ObjectName:     in.ObjectName,
		JobID:          job.ID,
		State:          domain.StateCreated,
		CreatedAt:      createdAt,
		RecordCount:    count,
		RequestDetails: in.RequestDetails,
	}, nil
}

// skip records an object that gets no export job. The job id only
// depends on the day, so a re-run overwrites the same row.
func (s *Stages) skip(ctx context.Context, in domain.StageInput, state domain.State, note string) (*domain.InitJobOutput, error) {
	jobID := "skipped-" + s.now().UTC().Format("20060102")
	ctx = observability.WithJob(ctx, in.ObjectName, jobID)

	createdAt := s.timestamp()
	extra := tenantFields(in.RequestDetails, map[string]interface{}{
		"createdAt":   createdAt,
		"recordCount": int64(0),
		"note":        note,
	})
	if err := s.ledger.PutStatus(ctx, in.ObjectName, jobID, state, extra); err != nil {
		s.logger.Error(ctx, "ledger write failed", err, nil)
		return nil, err
	}

	s.logger.Info(ctx, "export skipped", observability.Fields{"state": string(state), "note": note})
	return &domain.InitJobOutput{
		ObjectName:     in.ObjectName,
		JobID:          jobID,
		State:          state,
		CreatedAt:      createdAt,
		Note:           note,
		RequestDetails: in.RequestDetails,
	}, nil
}

// CheckStatus polls the export job and writes a heartbeat row.
func (s *Stages) CheckStatus(ctx context.Context, in domain.StageInput) (*domain.CheckStatusOutput, error) {
	if err := requireJob(in); err != nil {
		return nil, err
	}
	ctx = observability.WithJob(ctx, in.ObjectName, in.JobID)

	remote, err := s.remote.Connect(ctx, in.RequestDetails)
	if err != nil {
		return nil, err
	}

	status, err := remote.PollJobStatus(ctx, in.JobID)
	if err != nil {
		s.logger.Error(ctx, "poll failed", err, nil)
		return nil, err
	}

	extra := tenantFields(in.RequestDetails, map[string]interface{}{
		"lastRemoteStatus": status.RemoteState,
		"recordsProcessed": status.RecordsProcessed,
	})
	if status.State == domain.StateFailed && status.ErrorMessage != "" {
		extra["error"] = status.ErrorMessage
	}
	if err := s.ledger.PutStatus(ctx, in.ObjectName, in.JobID, status.State, extra); err != nil {
		s.logger.Error(ctx, "ledger heartbeat failed", err, nil)
		return nil, err
	}

	urls := status.DownloadURLs
	if urls == nil {
		urls = []string{}
	}

	s.logger.Info(ctx, "job polled", observability.Fields{
		"remote_state": status.RemoteState,
		"state":        string(status.State),
		"parts":        len(urls),
	})

	out := &domain.CheckStatusOutput{
		ObjectName:     in.ObjectName,
		JobID:          in.JobID,
		State:          status.State,
		DownloadURLs:   urls,
		StreamResults:  status.StreamResults,
		RequestDetails: in.RequestDetails,
	}
	if status.State == domain.StateFailed {
		out.Error = status.ErrorMessage
	}
	return out, nil
}
