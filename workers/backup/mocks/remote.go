// Package mocks provides testify mocks of the backup stage dependencies.
package mocks

import (
	"context"
	"io"
	"strings"

	"github.com/stretchr/testify/mock"

	"github.com/balu-bunny/lambdaTest/workers/backup/internal/salesforce"
)

// MockRemote mocks the Salesforce client surface the stages use.
type MockRemote struct {
	mock.Mock
}

func (m *MockRemote) CountRecords(ctx context.Context, object string) (int64, error) {
	args := m.Called(ctx, object)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRemote) DescribeObject(ctx context.Context, object string) (*salesforce.ObjectDescription, error) {
	args := m.Called(ctx, object)
	desc, _ := args.Get(0).(*salesforce.ObjectDescription)
	return desc, args.Error(1)
}

func (m *MockRemote) CreateExportJob(ctx context.Context, object, soql string) (*salesforce.ExportJob, error) {
	args := m.Called(ctx, object, soql)
	job, _ := args.Get(0).(*salesforce.ExportJob)
	return job, args.Error(1)
}

func (m *MockRemote) PollJobStatus(ctx context.Context, jobID string) (*salesforce.JobStatus, error) {
	args := m.Called(ctx, jobID)
	status, _ := args.Get(0).(*salesforce.JobStatus)
	return status, args.Error(1)
}

func (m *MockRemote) FetchResults(ctx context.Context, jobID, locator string, maxRecords int) (*salesforce.ResultPage, error) {
	args := m.Called(ctx, jobID, locator, maxRecords)
	page, _ := args.Get(0).(*salesforce.ResultPage)
	return page, args.Error(1)
}

// FetchArtifact returns a fresh reader per call when the expectation
// returns a string body.
func (m *MockRemote) FetchArtifact(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	args := m.Called(ctx, rawURL)
	switch body := args.Get(0).(type) {
	case string:
		return io.NopCloser(strings.NewReader(body)), args.Error(1)
	case io.ReadCloser:
		return body, args.Error(1)
	default:
		return nil, args.Error(1)
	}
}
