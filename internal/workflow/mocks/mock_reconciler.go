package mocks

import (
	"context"
	"net/url"

	"signflow/internal/workflow"

	"github.com/stretchr/testify/mock"
)

type MockReconciler struct {
	mock.Mock
}

var _ workflow.Reconciler = (*MockReconciler)(nil)

func (m *MockReconciler) HandleCallback(ctx context.Context, raw []byte) error {
	args := m.Called(ctx, raw)
	return args.Error(0)
}

func (m *MockReconciler) HandleSignerReturn(ctx context.Context, signerID string, query url.Values) (workflow.Outcome, error) {
	args := m.Called(ctx, signerID, query)
	return args.Get(0).(workflow.Outcome), args.Error(1)
}
