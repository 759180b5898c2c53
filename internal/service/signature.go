package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"signflow/internal/model"
	"signflow/internal/provider"
	"signflow/internal/repository"
	"signflow/internal/storage"
)

var (
	ErrIDRequired     = errors.New("id is required")
	ErrNotFound       = errors.New("signature not found")
	ErrSignerNotFound = errors.New("signer not found")
	ErrReaderNil      = errors.New("reader is nil")
	ErrValidation     = errors.New("validation error")
	ErrNoEnvelope     = errors.New("signature has no envelope")
	ErrNoDocument     = errors.New("signature has no document")
)

// SignerInput describes one signer, in signing order.
type SignerInput struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

// CreateInput holds everything needed to start a signature.
// Document may be nil when TemplateID is set.
type CreateInput struct {
	Title       string
	TemplateID  string
	Document    io.Reader
	Filename    string
	ContentType string
	Size        int64
	Signers     []SignerInput
	Subject     string
	Blurb       string
	// CallbackURL is registered as the envelope's event notification target when non-empty.
	CallbackURL string
}

// SignatureListResult is the service-level DTO for paginated signatures.
type SignatureListResult struct {
	Items []model.Signature `json:"data"`
	Total int               `json:"total"`
}

// SignatureService defines the use cases around a signature besides status reconciliation.
type SignatureService interface {
	// Create uploads the document, persists the draft signature and registers the envelope.
	// If the envelope cannot be created the draft is kept without an envelope id.
	Create(ctx context.Context, in CreateInput) (*model.Signature, error)

	// Get returns a single signature with its signers.
	Get(ctx context.Context, id string) (*model.Signature, error)

	// List returns signatures using limit/offset and a total count.
	List(ctx context.Context, limit, offset int) (*SignatureListResult, error)

	// DocumentURL returns a presigned download URL for the current document.
	DocumentURL(ctx context.Context, id string) (string, error)

	// SignerURL returns the provider's embedded signing URL for a signer.
	SignerURL(ctx context.Context, signerID, returnURL string) (string, error)
}

type signatureService struct {
	store      storage.Storage
	repo       repository.SignatureRepository
	gateway    provider.Gateway
	logger     *zap.Logger
	presignTTL time.Duration
	now        func() time.Time
}

// NewSignatureService constructs a new SignatureService.
func NewSignatureService(store storage.Storage, repo repository.SignatureRepository, gateway provider.Gateway, logger *zap.Logger, presignTTL time.Duration) SignatureService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if presignTTL <= 0 {
		presignTTL = 15 * time.Minute
	}
	return &signatureService{
		store:      store,
		repo:       repo,
		gateway:    gateway,
		logger:     logger.With(zap.String("component", "signature_service")),
		presignTTL: presignTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *signatureService) Create(ctx context.Context, in CreateInput) (*model.Signature, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}
	roles, err := s.templateRoles(ctx, strings.TrimSpace(in.TemplateID), len(in.Signers))
	if err != nil {
		return nil, err
	}

	now := s.now()
	sig := &model.Signature{
		ID:         uuid.New().String(),
		Title:      strings.TrimSpace(in.Title),
		TemplateID: strings.TrimSpace(in.TemplateID),
		Status:     model.SignatureDraft,
		StatusAt:   now,
		CreatedAt:  now,
	}
	for i, si := range in.Signers {
		sig.Signers = append(sig.Signers, model.Signer{
			ID:           uuid.New().String(),
			SignatureID:  sig.ID,
			SigningOrder: i + 1,
			FullName:     strings.TrimSpace(si.FullName),
			Email:        strings.TrimSpace(si.Email),
			Status:       model.SignerDraft,
			StatusAt:     now,
		})
	}

	if in.Document != nil {
		filename := filepath.Base(in.Filename)
		if filename == "." || filename == string(filepath.Separator) {
			filename = ""
		}
		key := storage.DocumentKey(sig.ID, filename)
		objInfo, err := s.store.Put(ctx, key, in.Document, storage.PutObjectOptions{
			Size:        in.Size,
			ContentType: in.ContentType,
			Metadata: map[string]string{
				"original-filename": filename,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("upload to storage: %w", err)
		}
		sig.Document = model.Document{
			Filename:    filename,
			StoragePath: objInfo.Key,
			Size:        objInfo.Size,
			ContentType: objInfo.ContentType,
		}
	}

	stored, err := s.repo.Create(ctx, sig)
	if err != nil {
		if sig.Document.StoragePath == "" {
			return nil, fmt.Errorf("db save failed: %w", err)
		}
		// Rollback: delete the object from storage
		if delErr := s.store.Delete(ctx, sig.Document.StoragePath); delErr != nil {
			return nil, fmt.Errorf("db save failed: %v; rollback delete failed: %v", err, delErr)
		}
		return nil, fmt.Errorf("db save failed: %w", err)
	}

	envelopeID, err := s.createEnvelope(ctx, stored, in, roles)
	if err != nil {
		s.logger.Warn("envelope not created",
			zap.String("signature_id", stored.ID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("create envelope: %w", err)
	}
	if err := s.repo.SetEnvelopeID(ctx, stored.ID, envelopeID); err != nil {
		return nil, fmt.Errorf("save envelope id: %w", err)
	}
	stored.EnvelopeID = envelopeID
	return stored, nil
}

// templateRoles returns the roles of templateID, or nil when no template is used.
// A template with fewer roles than signers is a validation error.
func (s *signatureService) templateRoles(ctx context.Context, templateID string, signers int) ([]string, error) {
	if templateID == "" {
		return nil, nil
	}
	roles, err := s.gateway.TemplateRoles(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("template roles: %w", err)
	}
	if len(roles) < signers {
		return nil, fmt.Errorf("%w: template %s has %d roles for %d signers", ErrValidation, templateID, len(roles), signers)
	}
	return roles, nil
}

func (s *signatureService) createEnvelope(ctx context.Context, sig *model.Signature, in CreateInput, roles []string) (string, error) {
	subject := strings.TrimSpace(in.Subject)
	if subject == "" {
		subject = sig.Title
	}
	req := provider.EnvelopeRequest{
		Subject:     subject,
		Blurb:       in.Blurb,
		CallbackURL: in.CallbackURL,
		TemplateID:  sig.TemplateID,
	}
	for _, sg := range sig.Signers {
		req.Recipients = append(req.Recipients, provider.EnvelopeRecipient{
			ID:           sg.ID,
			FullName:     sg.FullName,
			Email:        sg.Email,
			RoutingOrder: sg.SigningOrder,
		})
	}

	if sig.TemplateID != "" {
		// Roles are matched to signers by signing order.
		for i := range req.Recipients {
			req.Recipients[i].RoleName = roles[req.Recipients[i].RoutingOrder-1]
		}
		return s.gateway.CreateEnvelope(ctx, req)
	}

	rc, _, err := s.store.Get(ctx, sig.Document.StoragePath)
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	defer rc.Close()
	name := sig.Document.Filename
	if name == "" {
		name = sig.Title
	}
	req.Documents = []provider.EnvelopeDocument{{Name: name, Content: rc}}
	return s.gateway.CreateEnvelope(ctx, req)
}

func validateCreate(in CreateInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if len(in.Signers) == 0 {
		return fmt.Errorf("%w: at least one signer is required", ErrValidation)
	}
	for i, si := range in.Signers {
		if strings.TrimSpace(si.FullName) == "" || strings.TrimSpace(si.Email) == "" {
			return fmt.Errorf("%w: signer %d needs a name and an email", ErrValidation, i+1)
		}
	}
	if strings.TrimSpace(in.TemplateID) == "" && in.Document == nil {
		return ErrReaderNil
	}
	return nil
}

// List returns paginated signatures without exposing repository types.
func (s *signatureService) List(ctx context.Context, limit, offset int) (*SignatureListResult, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.repo.List(ctx, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &SignatureListResult{Items: res.Items, Total: res.Total}, nil
}

// Get returns a signature by ID.
func (s *signatureService) Get(ctx context.Context, id string) (*model.Signature, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	sig, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sig, nil
}

func (s *signatureService) DocumentURL(ctx context.Context, id string) (string, error) {
	sig, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if sig.Document.StoragePath == "" {
		return "", ErrNoDocument
	}
	return s.store.PresignGet(ctx, sig.Document.StoragePath, s.presignTTL)
}

func (s *signatureService) SignerURL(ctx context.Context, signerID, returnURL string) (string, error) {
	if signerID == "" {
		return "", ErrIDRequired
	}
	signer, err := s.repo.FindSignerByID(ctx, signerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrSignerNotFound
		}
		return "", err
	}
	sig, err := s.Get(ctx, signer.SignatureID)
	if err != nil {
		return "", err
	}
	if sig.EnvelopeID == "" {
		return "", ErrNoEnvelope
	}
	return s.gateway.CreateRecipientView(ctx, sig.EnvelopeID, *signer, returnURL)
}
