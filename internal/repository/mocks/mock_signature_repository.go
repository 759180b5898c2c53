package mocks

import (
	"context"

	"signflow/internal/model"
	"signflow/internal/repository"
	"github.com/stretchr/testify/mock"
)

type MockSignatureRepository struct {
	mock.Mock
}

func (m *MockSignatureRepository) Create(ctx context.Context, sig *model.Signature) (*model.Signature, error) {
	args := m.Called(ctx, sig)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Signature), args.Error(1)
}

func (m *MockSignatureRepository) FindByID(ctx context.Context, id string) (*model.Signature, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Signature), args.Error(1)
}

func (m *MockSignatureRepository) FindByEnvelopeID(ctx context.Context, envelopeID string) (*model.Signature, error) {
	args := m.Called(ctx, envelopeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Signature), args.Error(1)
}

func (m *MockSignatureRepository) FindSignerByID(ctx context.Context, id string) (*model.Signer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Signer), args.Error(1)
}

func (m *MockSignatureRepository) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Signature], error) {
	args := m.Called(ctx, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Signature]), args.Error(1)
}

func (m *MockSignatureRepository) SetEnvelopeID(ctx context.Context, id, envelopeID string) error {
	args := m.Called(ctx, id, envelopeID)
	return args.Error(0)
}

// InTx runs fn against the store returned first, or returns the second value as the error.
func (m *MockSignatureRepository) InTx(ctx context.Context, fn func(ctx context.Context, store repository.SignatureStore) error) error {
	args := m.Called(ctx, fn)
	if store, ok := args.Get(0).(repository.SignatureStore); ok {
		return fn(ctx, store)
	}
	return args.Error(1)
}
