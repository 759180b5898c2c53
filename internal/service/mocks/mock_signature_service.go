package mocks

import (
	"context"

	"signflow/internal/model"
	"signflow/internal/service"
	"github.com/stretchr/testify/mock"
)

type MockSignatureService struct {
	mock.Mock
}

var _ service.SignatureService = (*MockSignatureService)(nil)

func (m *MockSignatureService) Create(ctx context.Context, in service.CreateInput) (*model.Signature, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Signature), args.Error(1)
}

func (m *MockSignatureService) Get(ctx context.Context, id string) (*model.Signature, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Signature), args.Error(1)
}

func (m *MockSignatureService) List(ctx context.Context, limit, offset int) (*service.SignatureListResult, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SignatureListResult), args.Error(1)
}

func (m *MockSignatureService) DocumentURL(ctx context.Context, id string) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

func (m *MockSignatureService) SignerURL(ctx context.Context, signerID, returnURL string) (string, error) {
	args := m.Called(ctx, signerID, returnURL)
	return args.String(0), args.Error(1)
}
