package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/balu-bunny/lambdaTest/workers/backup/internal/domain"
)

// MockLedger mocks the status ledger.
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) PutStatus(ctx context.Context, objectName, jobID string, state domain.State, extra map[string]interface{}) error {
	args := m.Called(ctx, objectName, jobID, state, extra)
	return args.Error(0)
}
