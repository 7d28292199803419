package provider

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"
)

// MockClient is a mock implementation of the Client interface for testing
type MockClient struct {
	mock.Mock
}

func (m *MockClient) Extract(ctx context.Context, sourceText, instructionPrompt string) (json.RawMessage, error) {
	args := m.Called(ctx, sourceText, instructionPrompt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *MockClient) ValidateAPIKey(ctx context.Context, credential string) (bool, error) {
	args := m.Called(ctx, credential)
	return args.Bool(0), args.Error(1)
}
