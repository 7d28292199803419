package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockStore is a mock implementation of the Store interface for testing
type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateRun(ctx context.Context, providerID, model, sourceText string) (Run, error) {
	args := m.Called(ctx, providerID, model, sourceText)
	return args.Get(0).(Run), args.Error(1)
}

func (m *MockStore) GetRun(ctx context.Context, id uuid.UUID) (Run, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(Run), args.Error(1)
}

func (m *MockStore) CompleteRun(ctx context.Context, id uuid.UUID, attempts int, nuggets []SavedNugget) error {
	args := m.Called(ctx, id, attempts, nuggets)
	return args.Error(0)
}

func (m *MockStore) FailRun(ctx context.Context, id uuid.UUID, attempts int, message string) error {
	args := m.Called(ctx, id, attempts, message)
	return args.Error(0)
}

func (m *MockStore) ListNuggets(ctx context.Context, runID uuid.UUID) ([]SavedNugget, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]SavedNugget), args.Error(1)
}
