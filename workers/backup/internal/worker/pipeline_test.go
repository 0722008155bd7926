package worker

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/balu-bunny/lambdaTest/shared/config"
	"github.com/balu-bunny/lambdaTest/shared/handler"
	obsmocks "github.com/balu-bunny/lambdaTest/shared/observability/mocks"
	storagemocks "github.com/balu-bunny/lambdaTest/shared/storage/mocks"
	storage "github.com/balu-bunny/lambdaTest/shared/storage/types"
	"github.com/balu-bunny/lambdaTest/workers/backup/internal/catalog"
	"github.com/balu-bunny/lambdaTest/workers/backup/internal/domain"
	"github.com/balu-bunny/lambdaTest/workers/backup/internal/ledger"
	"github.com/balu-bunny/lambdaTest/workers/backup/internal/salesforce"
	"github.com/balu-bunny/lambdaTest/workers/backup/internal/stage"
	"github.com/balu-bunny/lambdaTest/workers/backup/mocks"
)

// pipeline runs real stages behind the worker, so each test threads one
// stage's response data into the next request exactly as the orchestrator
// does.
type pipeline struct {
	worker *StageWorker
	remote *mocks.MockRemote
	store  *storagemocks.MockStorage
	ledger *ledger.MemoryLedger
}

func newPipeline(t *testing.T, mutate func(*config.BackupConfig)) *pipeline {
	t.Helper()

	cfg := config.DefaultBackupConfig()
	cfg.KeyDate = false
	cfg.DescribeFields = false
	cfg.SkipEmpty = false
	cfg.MaxPages = 0
	if mutate != nil {
		mutate(&cfg)
	}

	p := &pipeline{
		remote: new(mocks.MockRemote),
		store:  new(storagemocks.MockStorage),
		ledger: ledger.NewMemoryLedger(),
	}
	p.store.On("Put", mock.Anything, mock.Anything, mock.Anything).Return(&storage.PutResult{Bytes: 8}, nil)

	stages := stage.New(stage.Deps{
		Remote: stage.ConnectFunc(func(ctx context.Context, d domain.RequestDetails) (stage.Remote, error) {
			return p.remote, nil
		}),
		Storage: p.store,
		Ledger:  p.ledger,
		Objects: catalog.Resolver{Defaults: []string{"Account"}},
		Config:  cfg,
		Logger:  obsmocks.NewMockLogger(),
		Metrics: obsmocks.NewMockMetrics(),
		Now:     func() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) },
		NewID:   func() string { return "generated-id" },
	})
	p.worker = NewStageWorker(stages, obsmocks.NewMockLogger(), obsmocks.NewMockMetrics())
	return p
}

// run invokes stageType with payload and returns the response data.
func (p *pipeline) run(t *testing.T, stageType string, payload json.RawMessage) json.RawMessage {
	t.Helper()
	resp, err := p.worker.Process(context.Background(), handler.Request{ID: "req", Type: stageType, Payload: payload})
	require.NoError(t, err)
	require.True(t, resp.Success, "%s failed: %+v", stageType, resp.Error)
	return resp.Data
}

func (p *pipeline) state(t *testing.T, pk string) ledger.Item {
	t.Helper()
	item, ok := p.ledger.Get(pk)
	require.True(t, ok, "ledger row %s", pk)
	return item
}

func csvPage(body, locator string, records int64) *salesforce.ResultPage {
	return &salesforce.ResultPage{Body: io.NopCloser(strings.NewReader(body)), Locator: locator, Records: records}
}

func TestPipeline_PartsThreadThroughToMarkCompleted(t *testing.T) {
	p := newPipeline(t, nil)
	p.remote.On("CreateExportJob", mock.Anything, "Account", mock.Anything).
		Return(&salesforce.ExportJob{ID: "JOB1", State: "UploadComplete", Object: "Account"}, nil)
	p.remote.On("PollJobStatus", mock.Anything, "JOB1").Return(&salesforce.JobStatus{
		RemoteState:  "JobComplete",
		State:        domain.StateCompleted,
		DownloadURLs: []string{"/r/1", "/r/2"},
	}, nil)
	p.remote.On("FetchArtifact", mock.Anything, "/r/1").Return("Id\n1\n", nil)
	p.remote.On("FetchArtifact", mock.Anything, "/r/2").Return("Id\n2\n", nil)

	out := p.run(t, "ListObjects", json.RawMessage(`{"requestDetails":{"orgId":"acme"}}`))
	var listed domain.ListObjectsOutput
	require.NoError(t, json.Unmarshal(out, &listed))
	require.Equal(t, []string{"Account"}, listed.Objects)

	initIn, _ := json.Marshal(map[string]interface{}{"objectName": listed.Objects[0], "requestDetails": listed.RequestDetails})
	out = p.run(t, "InitJob", initIn)
	out = p.run(t, "CheckStatus", out)
	out = p.run(t, "Download", out)

	var downloaded domain.DownloadOutput
	require.NoError(t, json.Unmarshal(out, &downloaded))
	assert.Equal(t, domain.DownloadCompleted, downloaded.Status)
	require.Len(t, downloaded.S3Keys, 2)

	out = p.run(t, "MarkCompleted", out)
	var marked domain.MarkOutput
	require.NoError(t, json.Unmarshal(out, &marked))
	assert.True(t, marked.OK)
	assert.Equal(t, "JOB1", marked.JobID)
	assert.JSONEq(t, `{"orgId":"acme"}`, string(marked.RequestDetails))

	item := p.state(t, "Account#JOB1")
	assert.Equal(t, "Completed", item["state"])
	assert.Equal(t, downloaded.S3Keys, item["s3Keys"])
}

func TestPipeline_PartialDownloadResumes(t *testing.T) {
	p := newPipeline(t, func(c *config.BackupConfig) { c.MaxPages = 1 })
	p.remote.On("FetchResults", mock.Anything, "JOB1", "", mock.Anything).Return(csvPage("Id\n1\n", "L2", 1), nil).Once()
	p.remote.On("FetchResults", mock.Anything, "JOB1", "L2", mock.Anything).Return(csvPage("Id\n2\n", "L3", 1), nil).Once()
	p.remote.On("FetchResults", mock.Anything, "JOB1", "L3", mock.Anything).Return(csvPage("Id\n3\n", "", 1), nil).Once()

	dir := "salesforce-backups/acme/Account/"
	out := p.run(t, "Download", json.RawMessage(
		`{"objectName":"Account","jobId":"JOB1","streamResults":true,"requestDetails":{"orgId":"acme"}}`))

	var partial domain.DownloadOutput
	require.NoError(t, json.Unmarshal(out, &partial))
	assert.Equal(t, domain.DownloadPartial, partial.Status)
	assert.True(t, partial.StreamResults)
	assert.Equal(t, "InProgress", p.state(t, "Account#JOB1")["state"])

	out = p.run(t, "Download", out)
	out = p.run(t, "Download", out)

	var done domain.DownloadOutput
	require.NoError(t, json.Unmarshal(out, &done))
	assert.Equal(t, domain.DownloadCompleted, done.Status)
	assert.Empty(t, done.Locator)
	want := []string{dir + "JOB1_first_1.csv", dir + "JOB1_L2_1.csv", dir + "JOB1_L3_1.csv"}
	assert.Equal(t, want, done.S3Keys)

	item := p.state(t, "Account#JOB1")
	assert.Equal(t, "Downloaded", item["state"])
	assert.Equal(t, want, item["s3Keys"])
	p.remote.AssertNumberOfCalls(t, "FetchResults", 3)

	p.run(t, "MarkCompleted", out)
	assert.Equal(t, want, p.state(t, "Account#JOB1")["s3Keys"])
}

func TestPipeline_ResumeReplaysSamePage(t *testing.T) {
	p := newPipeline(t, func(c *config.BackupConfig) { c.MaxPages = 1 })
	p.remote.On("FetchResults", mock.Anything, "JOB1", "L2", mock.Anything).Return(csvPage("Id\n2\n", "", 1), nil)

	// a retried resume whose key was already recorded lists it once
	key := "salesforce-backups/acme/Account/JOB1_L2_1.csv"
	out := p.run(t, "Download", json.RawMessage(`{"objectName":"Account","jobId":"JOB1","locator":"L2",
		"s3Keys":["salesforce-backups/acme/Account/JOB1_first_1.csv","`+key+`"],"requestDetails":{"orgId":"acme"}}`))

	var done domain.DownloadOutput
	require.NoError(t, json.Unmarshal(out, &done))
	assert.Equal(t, []string{"salesforce-backups/acme/Account/JOB1_first_1.csv", key}, done.S3Keys)
}

func TestPipeline_AnyOutputFeedsMarkFailed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		pk      string
	}{
		{
			name:    "download output",
			payload: `{"objectName":"Account","jobId":"JOB1","s3Keys":["k"],"status":"Partial","locator":"L2","streamResults":true}`,
			pk:      "Account#JOB1",
		},
		{
			name:    "status as a state string",
			payload: `{"objectName":"Account","jobId":"JOB1","status":"Failed"}`,
			pk:      "Account#JOB1",
		},
		{
			name:    "check status output with catch error",
			payload: `{"objectName":"Contact","jobId":"JOB2","state":"Failed","downloadUrls":[],"error":{"Error":"RemoteError","Cause":"HTTP 400"}}`,
			pk:      "Contact#JOB2",
		},
		{
			name:    "fields of the wrong shape",
			payload: `{"objectName":"Lead","jobId":"JOB3","downloadUrls":"not-a-list","backupJob":7}`,
			pk:      "Lead#JOB3",
		},
		{
			name:    "not an object",
			payload: `["Account"]`,
			pk:      stage.UnknownObject + "#generated-id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPipeline(t, nil)

			out := p.run(t, "MarkFailed", json.RawMessage(tt.payload))
			var marked domain.MarkOutput
			require.NoError(t, json.Unmarshal(out, &marked))
			assert.True(t, marked.OK)
			assert.Equal(t, "Failed", p.state(t, tt.pk)["state"])
		})
	}
}

func TestPipeline_DownloadOutputFeedsMarkCompleted(t *testing.T) {
	p := newPipeline(t, nil)

	out := p.run(t, "MarkCompleted", json.RawMessage(
		`{"objectName":"Account","jobId":"JOB1","s3Keys":["a.csv"],"status":"Completed","requestDetails":{"orgId":"acme"}}`))

	var marked domain.MarkOutput
	require.NoError(t, json.Unmarshal(out, &marked))
	assert.Equal(t, domain.StateCompleted, marked.State)
	assert.Equal(t, []string{"a.csv"}, p.state(t, "Account#JOB1")["s3Keys"])
}
