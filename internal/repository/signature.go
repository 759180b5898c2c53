package repository

import (
	"context"

	"signflow/internal/model"
)

// SignatureRepository defines data access for signatures and their signers.
// No business logic here, strictly persistence operations.
type SignatureRepository interface {
	// Create inserts a signature and all of its signers in one transaction.
	Create(ctx context.Context, sig *model.Signature) (*model.Signature, error)

	// FindByID returns a signature with its signers ordered by signing order.
	FindByID(ctx context.Context, id string) (*model.Signature, error)

	// FindByEnvelopeID returns the signature registered under a provider envelope id.
	FindByEnvelopeID(ctx context.Context, envelopeID string) (*model.Signature, error)

	// FindSignerByID returns a single signer.
	FindSignerByID(ctx context.Context, id string) (*model.Signer, error)

	// List returns a page of signatures, newest first, without signers.
	List(ctx context.Context, pq PageQuery) (*PageResult[model.Signature], error)

	// SetEnvelopeID records the provider envelope id. It can only be set once.
	SetEnvelopeID(ctx context.Context, id, envelopeID string) error

	// InTx runs fn inside one transaction. The transaction commits when fn returns nil
	// and rolls back otherwise, discarding every write made through the store.
	InTx(ctx context.Context, fn func(ctx context.Context, store SignatureStore) error) error
}

// SignatureStore is the unit of work handed to InTx callbacks.
type SignatureStore interface {
	// LoadForUpdate loads a signature with its signers and holds a row lock on it
	// until the transaction ends.
	LoadForUpdate(ctx context.Context, id string) (*model.Signature, error)

	// SaveSignature persists status, status time and document ref.
	SaveSignature(ctx context.Context, sig *model.Signature) error

	// SaveSigner persists status, status time and status details.
	SaveSigner(ctx context.Context, signer *model.Signer) error
}
