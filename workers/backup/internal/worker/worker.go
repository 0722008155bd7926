// Package worker exposes the backup stages as a handler.Worker. The
// request type selects the stage.
package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/balu-bunny/lambdaTest/shared/handler"
	"github.com/balu-bunny/lambdaTest/shared/observability/types"
	"github.com/balu-bunny/lambdaTest/workers/backup/internal/domain"
)

// Stage names as they appear in request types and function names.
const (
	StageListObjects   = "listobjects"
	StageInitJob       = "initjob"
	StageCheckStatus   = "checkstatus"
	StageDownload      = "download"
	StageMarkCompleted = "markcompleted"
	StageMarkFailed    = "markfailed"
	StageListFiles     = "listfiles"
	StageDownloadFile  = "downloadfile"
)

// Stages lists every stage, in pipeline order. The file stages run after
// a ContentVersion export has been downloaded.
var Stages = []string{
	StageListObjects, StageInitJob, StageCheckStatus, StageDownload, StageMarkCompleted, StageMarkFailed,
	StageListFiles, StageDownloadFile,
}

// Runner runs the stages.
type Runner interface {
	ListObjects(ctx context.Context, in domain.StageInput) (*domain.ListObjectsOutput, error)
	InitJob(ctx context.Context, in domain.StageInput) (*domain.InitJobOutput, error)
	CheckStatus(ctx context.Context, in domain.StageInput) (*domain.CheckStatusOutput, error)
	Download(ctx context.Context, in domain.StageInput) (*domain.DownloadOutput, error)
	MarkCompleted(ctx context.Context, in domain.StageInput) (*domain.MarkOutput, error)
	MarkFailed(ctx context.Context, in domain.StageInput) (*domain.MarkOutput, error)
	ListFiles(ctx context.Context, in domain.StageInput) (*domain.ListFilesOutput, error)
	DownloadFile(ctx context.Context, in domain.StageInput) (*domain.DownloadFileOutput, error)
}

// StageWorker implements handler.Worker on top of a Runner.
type StageWorker struct {
	stages  Runner
	logger  types.Logger
	metrics types.Metrics
}

// NewStageWorker creates the worker.
func NewStageWorker(stages Runner, logger types.Logger, metrics types.Metrics) *StageWorker {
	return &StageWorker{stages: stages, logger: logger, metrics: metrics}
}

// Name returns the worker name
func (w *StageWorker) Name() string {
	return "backup"
}

// StageName folds "InitJob", "init-job" and "init_job" into "initjob".
func StageName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("-", "", "_", "").Replace(s)
}

// Process decodes the stage input, runs the stage and maps typed failures
// onto error responses.
func (w *StageWorker) Process(ctx context.Context, request handler.Request) (handler.Response, error) {
	stage := StageName(request.Type)

	w.metrics.StartOperation(stage)
	defer w.metrics.EndOperation(stage)

	startTime := time.Now()
	defer func() {
		w.metrics.RecordDuration(stage, time.Since(startTime).Seconds())
	}()

	var in domain.StageInput
	if len(request.Payload) > 0 {
		if err := request.Unmarshal(&in); err != nil && stage == StageMarkFailed {
			// MarkFailed records whatever identity survives the decode.
			var skipped []string
			in, skipped = domain.DecodeStageInputLenient(request.Payload)
			w.metrics.RecordError(stage, "invalid_payload")
			w.logger.Warn(ctx, "Stage input partly unreadable", types.Fields{"stage": stage, "skipped": skipped, "error": err.Error()})
		} else if err != nil {
			w.metrics.RecordError(stage, "invalid_payload")
			w.logger.Error(ctx, "Failed to parse stage input", err, types.Fields{"stage": stage})
			return handler.NewErrorResponse(request.ID, handler.CodeValidation, "invalid stage input", err.Error()), nil
		}
	}
	in.Normalize()

	out, err := w.run(ctx, stage, in)
	if err != nil {
		code, retryable := domain.CodeOf(err)
		w.metrics.RecordError(stage, code)
		w.logger.Error(ctx, "Stage failed", err, types.Fields{
			"stage":       stage,
			"object_name": in.ObjectName,
			"job_id":      in.JobID,
			"error_type":  code,
			"retryable":   retryable,
		})

		resp := handler.NewErrorResponse(request.ID, code, err.Error(), "")
		resp.Error.Retryable = retryable
		return resp, nil
	}

	resp, err := handler.NewSuccessResponse(request.ID, out)
	if err != nil {
		w.metrics.RecordError(stage, "response_creation")
		return handler.NewErrorResponse(request.ID, handler.CodeInternal, "failed to encode stage output", err.Error()), nil
	}

	w.metrics.RecordSuccess(stage)
	return resp, nil
}

func (w *StageWorker) run(ctx context.Context, stage string, in domain.StageInput) (interface{}, error) {
	switch stage {
	case StageListObjects:
		return w.stages.ListObjects(ctx, in)
	case StageInitJob:
		return w.stages.InitJob(ctx, in)
	case StageCheckStatus:
		return w.stages.CheckStatus(ctx, in)
	case StageDownload:
		return w.stages.Download(ctx, in)
	case StageMarkCompleted:
		return w.stages.MarkCompleted(ctx, in)
	case StageMarkFailed:
		return w.stages.MarkFailed(ctx, in)
	case StageListFiles:
		return w.stages.ListFiles(ctx, in)
	case StageDownloadFile:
		return w.stages.DownloadFile(ctx, in)
	default:
		return nil, unknownStage(stage)
	}
}

type unknownStage string

func (s unknownStage) Error() string   { return fmt.Sprintf("unknown stage %q", string(s)) }
func (s unknownStage) Code() string    { return handler.CodeNotFound }
func (s unknownStage) Retryable() bool { return false }

// Health reports the worker as ready.
func (w *StageWorker) Health(ctx context.Context) error {
	w.metrics.RecordSuccess("health_check")
	return nil
}
