package provider

import (
	"context"
	"errors"
	"io"

	"signflow/internal/model"
)

var (
	// ErrProvider wraps every failure talking to the signing provider. Callers may retry.
	ErrProvider = errors.New("provider error")
	// ErrRecipientNotFound is returned when the envelope has no recipient for a signer.
	// It also matches ErrProvider.
	ErrRecipientNotFound = &recipientNotFound{}
)

type recipientNotFound struct{}

func (*recipientNotFound) Error() string { return "recipient not found" }

func (*recipientNotFound) Is(target error) bool { return target == ErrProvider }

// EnvelopeRecipient is one signer registered on an envelope.
// When the envelope comes from a template, RoleName binds the signer to a template role.
type EnvelopeRecipient struct {
	ID           string
	FullName     string
	Email        string
	RoutingOrder int
	RoleName     string
}

// EnvelopeDocument is a document attached to an envelope created from a document.
type EnvelopeDocument struct {
	Name    string
	Content io.Reader
}

// EnvelopeRequest describes an envelope to create and send.
type EnvelopeRequest struct {
	Subject     string
	Blurb       string
	CallbackURL string
	TemplateID  string
	Documents   []EnvelopeDocument
	Recipients  []EnvelopeRecipient
}

// Gateway is the signing provider as seen by the rest of the application.
// Implementations must honor ctx cancellation and deadlines.
type Gateway interface {
	// CreateEnvelope registers and sends a new envelope, returning its provider id.
	CreateEnvelope(ctx context.Context, req EnvelopeRequest) (string, error)

	// TemplateRoles returns the signer role names of a template, in routing order.
	TemplateRoles(ctx context.Context, templateID string) ([]string, error)

	// GetRecipientStatus returns the provider's current report for one signer.
	GetRecipientStatus(ctx context.Context, envelopeID string, signer model.Signer) (*model.RecipientStatus, error)

	// GetSignedDocument streams the signed envelope document. The caller closes it.
	GetSignedDocument(ctx context.Context, envelopeID string) (io.ReadCloser, error)

	// CreateRecipientView returns the embedded signing URL for signer.
	CreateRecipientView(ctx context.Context, envelopeID string, signer model.Signer, returnURL string) (string, error)
}
