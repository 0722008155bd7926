// Package mocks provides a testify mock of handler.Worker.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/balu-bunny/lambdaTest/shared/handler"
)

var _ handler.Worker = (*MockWorker)(nil)

type MockWorker struct{ mock.Mock }

// NewMockWorker returns a worker reporting name. Health and Process need
// their own expectations.
func NewMockWorker(name string) *MockWorker {
	w := &MockWorker{}
	w.On("Name").Return(name).Maybe()
	return w
}

func (w *MockWorker) Name() string { return w.Called().String(0) }

func (w *MockWorker) Health(ctx context.Context) error { return w.Called(ctx).Error(0) }

func (w *MockWorker) Process(ctx context.Context, req handler.Request) (handler.Response, error) {
	args := w.Called(ctx, req)
	resp, _ := args.Get(0).(handler.Response)
	return resp, args.Error(1)
}

// ExpectProcess answers requests for stage with resp and err.
func (w *MockWorker) ExpectProcess(stage string, resp handler.Response, err error) *mock.Call {
	forStage := mock.MatchedBy(func(req handler.Request) bool { return req.Type == stage })
	return w.On("Process", mock.Anything, forStage).Return(resp, err)
}

// ExpectProcessAny answers every request with resp and err.
func (w *MockWorker) ExpectProcessAny(resp handler.Response, err error) *mock.Call {
	return w.On("Process", mock.Anything, mock.Anything).Return(resp, err)
}
