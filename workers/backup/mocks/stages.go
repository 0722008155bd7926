package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/balu-bunny/lambdaTest/workers/backup/internal/domain"
)

// MockStages mocks the stage runner behind the worker.
type MockStages struct {
	mock.Mock
}

func (m *MockStages) ListObjects(ctx context.Context, in domain.StageInput) (*domain.ListObjectsOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*domain.ListObjectsOutput)
	return out, args.Error(1)
}

func (m *MockStages) InitJob(ctx context.Context, in domain.StageInput) (*domain.InitJobOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*domain.InitJobOutput)
	return out, args.Error(1)
}

func (m *MockStages) CheckStatus(ctx context.Context, in domain.StageInput) (*domain.CheckStatusOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*domain.CheckStatusOutput)
	return out, args.Error(1)
}

func (m *MockStages) Download(ctx context.Context, in domain.StageInput) (*domain.DownloadOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*domain.DownloadOutput)
	return out, args.Error(1)
}

func (m *MockStages) MarkCompleted(ctx context.Context, in domain.StageInput) (*domain.MarkOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*domain.MarkOutput)
	return out, args.Error(1)
}

func (m *MockStages) MarkFailed(ctx context.Context, in domain.StageInput) (*domain.MarkOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*domain.MarkOutput)
	return out, args.Error(1)
}

func (m *MockStages) ListFiles(ctx context.Context, in domain.StageInput) (*domain.ListFilesOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*domain.ListFilesOutput)
	return out, args.Error(1)
}

func (m *MockStages) DownloadFile(ctx context.Context, in domain.StageInput) (*domain.DownloadFileOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*domain.DownloadFileOutput)
	return out, args.Error(1)
}
