package mocks

import (
	"context"
	"io"

	"signflow/internal/model"
	"signflow/internal/provider"

	"github.com/stretchr/testify/mock"
)

type MockGateway struct {
	mock.Mock
}

var _ provider.Gateway = (*MockGateway)(nil)

func (m *MockGateway) CreateEnvelope(ctx context.Context, req provider.EnvelopeRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) TemplateRoles(ctx context.Context, templateID string) ([]string, error) {
	args := m.Called(ctx, templateID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockGateway) GetRecipientStatus(ctx context.Context, envelopeID string, signer model.Signer) (*model.RecipientStatus, error) {
	args := m.Called(ctx, envelopeID, signer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RecipientStatus), args.Error(1)
}

func (m *MockGateway) GetSignedDocument(ctx context.Context, envelopeID string) (io.ReadCloser, error) {
	args := m.Called(ctx, envelopeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	if f, ok := args.Get(0).(func(context.Context, string) io.ReadCloser); ok {
		return f(ctx, envelopeID), args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *MockGateway) CreateRecipientView(ctx context.Context, envelopeID string, signer model.Signer, returnURL string) (string, error) {
	args := m.Called(ctx, envelopeID, signer, returnURL)
	return args.String(0), args.Error(1)
}
