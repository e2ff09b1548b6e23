package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/ideaforge/ideaforge/pkg/reasoning"
)

// MockReasoningClient is a mock implementation of reasoning.Client interface.
type MockReasoningClient struct {
	mock.Mock
}

func (m *MockReasoningClient) Complete(ctx context.Context, req reasoning.Request) (*reasoning.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*reasoning.Response), args.Error(1)
}
