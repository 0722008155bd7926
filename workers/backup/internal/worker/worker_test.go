package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/balu-bunny/lambdaTest/shared/handler"
	obsmocks "github.com/balu-bunny/lambdaTest/shared/observability/mocks"
	"github.com/balu-bunny/lambdaTest/workers/backup/internal/domain"
	"github.com/balu-bunny/lambdaTest/workers/backup/mocks"
)

func newWorker() (*StageWorker, *mocks.MockStages, *obsmocks.MockMetrics) {
	stages := new(mocks.MockStages)
	metrics := obsmocks.NewMockMetrics()
	return NewStageWorker(stages, obsmocks.NewMockLogger(), metrics), stages, metrics
}

func request(stageType, payload string) handler.Request {
	return handler.Request{ID: "req-1", Type: stageType, Payload: json.RawMessage(payload)}
}

func TestStageWorker_Name(t *testing.T) {
	w, _, _ := newWorker()
	assert.Equal(t, "backup", w.Name())
	assert.NoError(t, w.Health(context.Background()))
}

func TestStageName(t *testing.T) {
	for _, in := range []string{"InitJob", "init-job", " init_job ", "INITJOB"} {
		assert.Equal(t, StageInitJob, StageName(in), in)
	}
}

func TestStageWorker_DispatchesNormalizedInput(t *testing.T) {
	w, stages, metrics := newWorker()
	stages.On("CheckStatus", mock.Anything, mock.MatchedBy(func(in domain.StageInput) bool {
		return in.ObjectName == "Account" && in.JobID == "JOB1" && in.RequestDetails.OrgID() == "acme"
	})).Return(&domain.CheckStatusOutput{
		ObjectName:     "Account",
		JobID:          "JOB1",
		State:          domain.StateCompleted,
		DownloadURLs:   []string{"/part1"},
		RequestDetails: domain.RequestDetails(`{"orgId":"acme"}`),
	}, nil)

	resp, err := w.Process(context.Background(), request("CheckStatus",
		`{"backupJob":{"objectName":"Account","jobId":"JOB1"},"requestDetails":{"orgId":"acme"}}`))
	require.NoError(t, err)
	require.True(t, resp.Success)

	assert.JSONEq(t, `{
		"objectName":"Account","jobId":"JOB1","state":"Completed",
		"downloadUrls":["/part1"],"streamResults":false,
		"requestDetails":{"orgId":"acme"}
	}`, string(resp.Data))
	metrics.AssertCalled(t, "RecordSuccess", StageCheckStatus)
}

func TestStageWorker_MapsTypedErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      string
		retryable bool
	}{
		{"auth", &domain.AuthError{Reason: "no access token"}, handler.CodeAuth, false},
		{"remote client error", &domain.RemoteError{Op: "create export job", StatusCode: 400}, handler.CodeRemote, false},
		{"remote throttled", &domain.RemoteError{Op: "create export job", StatusCode: 503}, handler.CodeRemote, true},
		{"transient", &domain.TransientError{Op: "download", Err: context.DeadlineExceeded}, handler.CodeTransient, true},
		{"storage", &domain.StorageError{Op: "put status", Err: errors.New("throttled")}, handler.CodeStorage, true},
		{"unclassified", errors.New("boom"), handler.CodeInternal, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, stages, metrics := newWorker()
			stages.On("InitJob", mock.Anything, mock.Anything).Return(nil, tt.err)

			resp, err := w.Process(context.Background(), request("initjob", `{"objectName":"Account"}`))
			require.NoError(t, err)
			require.NotNil(t, resp.Error)

			assert.False(t, resp.Success)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, tt.retryable, resp.Error.Retryable)
			assert.Equal(t, tt.err.Error(), resp.Error.Message)
			metrics.AssertCalled(t, "RecordError", StageInitJob, tt.code)
		})
	}
}

func TestStageWorker_RejectsBadRequests(t *testing.T) {
	t.Run("unknown stage", func(t *testing.T) {
		w, _, _ := newWorker()
		resp, err := w.Process(context.Background(), request("rollback", `{}`))
		require.NoError(t, err)
		assert.Equal(t, handler.CodeNotFound, resp.Error.Code)
		assert.False(t, resp.Error.Retryable)
	})

	t.Run("malformed input", func(t *testing.T) {
		w, stages, _ := newWorker()
		resp, err := w.Process(context.Background(), request("download", `{"downloadUrls":"not-a-list"}`))
		require.NoError(t, err)
		assert.Equal(t, handler.CodeValidation, resp.Error.Code)
		stages.AssertNotCalled(t, "Download", mock.Anything, mock.Anything)
	})

	t.Run("malformed input still marks failed", func(t *testing.T) {
		w, stages, metrics := newWorker()
		stages.On("MarkFailed", mock.Anything, mock.MatchedBy(func(in domain.StageInput) bool {
			return in.ObjectName == "Lead" && in.JobID == "J1" && len(in.DownloadURLs) == 0
		})).Return(&domain.MarkOutput{OK: true, ObjectName: "Lead", JobID: "J1", State: domain.StateFailed}, nil)

		resp, err := w.Process(context.Background(), request("MarkFailed", `{"objectName":"Lead","jobId":"J1","downloadUrls":"not-a-list"}`))
		require.NoError(t, err)
		assert.True(t, resp.Success)
		metrics.AssertCalled(t, "RecordError", StageMarkFailed, "invalid_payload")
		stages.AssertExpectations(t)
	})
}

func TestStageWorker_EmptyPayload(t *testing.T) {
	w, stages, _ := newWorker()
	stages.On("ListObjects", mock.Anything, domain.StageInput{}).
		Return(&domain.ListObjectsOutput{Objects: []string{"Account"}}, nil)

	resp, err := w.Process(context.Background(), handler.Request{ID: "r", Type: "listobjects"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"objects":["Account"]}`, string(resp.Data))
}

func TestStageWorker_EveryStageRoutes(t *testing.T) {
	w, stages, _ := newWorker()
	stages.On("ListObjects", mock.Anything, mock.Anything).Return(&domain.ListObjectsOutput{}, nil)
	stages.On("InitJob", mock.Anything, mock.Anything).Return(&domain.InitJobOutput{}, nil)
	stages.On("CheckStatus", mock.Anything, mock.Anything).Return(&domain.CheckStatusOutput{}, nil)
	stages.On("Download", mock.Anything, mock.Anything).Return(&domain.DownloadOutput{}, nil)
	stages.On("MarkCompleted", mock.Anything, mock.Anything).Return(&domain.MarkOutput{OK: true}, nil)
	stages.On("MarkFailed", mock.Anything, mock.Anything).Return(&domain.MarkOutput{OK: true}, nil)
	stages.On("ListFiles", mock.Anything, mock.Anything).Return(&domain.ListFilesOutput{Files: []string{}}, nil)
	stages.On("DownloadFile", mock.Anything, mock.Anything).Return(&domain.DownloadFileOutput{}, nil)

	for _, stage := range Stages {
		resp, err := w.Process(context.Background(), request(stage, `{}`))
		require.NoError(t, err, stage)
		assert.True(t, resp.Success, stage)
	}
	stages.AssertExpectations(t)
}
