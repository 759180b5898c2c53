// Package workflow reconciles provider status reports with persisted signatures.
//
// Every inbound report is applied as one unit per signature: the aggregate is
// read under an in-process lock, any signed document is fetched and uploaded
// before the store transaction, and the status changes plus the document ref
// swap are committed together under the store's row lock.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"signflow/internal/event"
	"signflow/internal/model"
	"signflow/internal/provider"
	"signflow/internal/repository"
	"signflow/internal/storage"
)

const signedContentType = "application/pdf"

// OutcomeKind tells the web layer which page a returning signer should see.
type OutcomeKind string

const (
	OutcomeCanceled OutcomeKind = "canceled"
	OutcomeError    OutcomeKind = "error"
	OutcomeDeclined OutcomeKind = "declined"
	OutcomeSigned   OutcomeKind = "signed"
)

// Outcome is the result of a signer returning from the provider's signing page.
type Outcome struct {
	Kind    OutcomeKind        `json:"kind"`
	Event   string             `json:"event,omitempty"`
	Status  model.SignerStatus `json:"status,omitempty"`
	Message string             `json:"message,omitempty"`
}

// Reconciler applies inbound provider reports. *Engine implements it.
type Reconciler interface {
	HandleCallback(ctx context.Context, raw []byte) error
	HandleSignerReturn(ctx context.Context, signerID string, query url.Values) (Outcome, error)
}

var _ Reconciler = (*Engine)(nil)

// Engine is safe for concurrent use.
type Engine struct {
	repo    repository.SignatureRepository
	gateway provider.Gateway
	objects storage.Storage
	logger  *zap.Logger
	metrics *Metrics
	tracer  trace.Tracer
	locks   *keyedMutex
	now     func() time.Time
	timeout time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics records committed transitions on m.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides the time source used when the provider reports no timestamp.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithProviderTimeout bounds every provider call made by the engine.
func WithProviderTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// WithTracer replaces the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// NewEngine wires the engine to its collaborators.
func NewEngine(repo repository.SignatureRepository, gateway provider.Gateway, objects storage.Storage, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		repo:    repo,
		gateway: gateway,
		objects: objects,
		logger:  logger.With(zap.String("component", "workflow")),
		tracer:  otel.Tracer("signflow/internal/workflow"),
		locks:   newKeyedMutex(),
		now:     func() time.Time { return time.Now().UTC() },
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HandleCallback parses a Connect payload and applies it to the matching signature.
//
// When the envelope is sent and every listed recipient is sent, the signature and
// those signers all move to sent. Otherwise only the most recent recipient event
// is applied, followed by any delivered, completed or declined envelope status.
func (e *Engine) HandleCallback(ctx context.Context, raw []byte) (err error) {
	ctx, span := e.tracer.Start(ctx, "workflow.HandleCallback")
	defer func() {
		e.metrics.event("callback", err)
		endSpan(span, err)
	}()

	n, err := event.Parse(raw)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.String("envelope.id", n.EnvelopeID))

	found, err := e.repo.FindByEnvelopeID(ctx, n.EnvelopeID)
	if err != nil {
		return e.lookupError(err, "envelope "+n.EnvelopeID)
	}

	var c change
	if n.Envelope.Status == model.SignatureSent && n.AllRecipients(model.SignerSent) {
		c.bulkSent = n.Recipients
		c.bulkSentAt = n.Envelope.At
	} else {
		if last, ok := n.Last(); ok {
			c.signer = &last
		}
		switch n.Envelope.Status {
		case model.SignatureDelivered, model.SignatureCompleted, model.SignatureDeclined:
			env := n.Envelope
			c.envelope = &env
		}
	}
	if c.empty() {
		e.logger.Debug("callback carries nothing to apply", zap.String("envelope_id", n.EnvelopeID))
		return nil
	}
	return e.reconcile(ctx, found.ID, c)
}

// HandleSignerReturn reconciles one signer after the provider redirected them back.
// event=cancel returns a canceled outcome without contacting the provider.
func (e *Engine) HandleSignerReturn(ctx context.Context, signerID string, query url.Values) (out Outcome, err error) {
	ctx, span := e.tracer.Start(ctx, "workflow.HandleSignerReturn",
		trace.WithAttributes(attribute.String("signer.id", signerID)))
	defer func() {
		e.metrics.event("return", err)
		endSpan(span, err)
	}()

	ev := query.Get("event")
	if ev == "cancel" {
		return Outcome{Kind: OutcomeCanceled, Event: ev}, nil
	}
	fail := func(err error) (Outcome, error) {
		return Outcome{Kind: OutcomeError, Event: ev, Message: err.Error()}, err
	}

	signer, err := e.repo.FindSignerByID(ctx, signerID)
	if err != nil {
		return fail(e.lookupError(err, "signer "+signerID))
	}
	sig, err := e.repo.FindByID(ctx, signer.SignatureID)
	if err != nil {
		return fail(e.lookupError(err, "signature "+signer.SignatureID))
	}
	if sig.EnvelopeID == "" {
		return fail(fmt.Errorf("%w: signature %s has no envelope", ErrInconsistentState, sig.ID))
	}

	pctx, cancel := e.providerContext(ctx)
	report, err := e.gateway.GetRecipientStatus(pctx, sig.EnvelopeID, *signer)
	cancel()
	if err != nil {
		return fail(providerError("get recipient status", err))
	}
	re, err := event.RecipientEventFrom(*report, e.now())
	if err != nil {
		return fail(err)
	}
	re.SignerID = signer.ID

	out = Outcome{Event: ev, Status: re.Status, Message: re.Message}
	switch re.Status {
	case model.SignerAuthenticationFailed, model.SignerAutoResponded:
		out.Kind = OutcomeError
	case model.SignerCompleted:
		out.Kind = OutcomeSigned
	case model.SignerDeclined:
		out.Kind = OutcomeDeclined
	default:
		// Not actionable yet for the returning signer. Nothing is written.
		out.Kind = OutcomeCanceled
		return out, nil
	}

	if err := e.reconcile(ctx, sig.ID, change{signer: &re}); err != nil {
		return fail(err)
	}
	return out, nil
}

// reconcile applies c to the signature under the per-signature lock. The lock
// also spans the signed-document fetch, so a process fetches once per completion.
func (e *Engine) reconcile(ctx context.Context, signatureID string, c change) error {
	unlock, err := e.locks.Lock(ctx, signatureID)
	if err != nil {
		return err
	}
	defer unlock()

	sig, err := e.repo.FindByID(ctx, signatureID)
	if err != nil {
		return e.lookupError(err, "signature "+signatureID)
	}
	log := e.logger.With(zap.String("signature_id", sig.ID), zap.String("envelope_id", sig.EnvelopeID))

	var doc *model.Document
	if c.needsDocument(sig) {
		if doc, err = e.stageSignedDocument(ctx, sig); err != nil {
			return err
		}
	}

	var u *unit
	err = e.repo.InTx(ctx, func(ctx context.Context, store repository.SignatureStore) error {
		locked, err := store.LoadForUpdate(ctx, signatureID)
		if err != nil {
			return e.lookupError(err, "signature "+signatureID)
		}
		u = &unit{store: store, sig: locked, logger: log, doc: doc}
		return u.apply(ctx, c)
	})
	if err != nil {
		if doc != nil {
			e.discard(doc.StoragePath, log)
		}
		if !errors.Is(err, ErrInconsistentState) && !errors.Is(err, ErrStore) {
			err = fmt.Errorf("%w: %w", ErrStore, err)
		}
		log.Warn("workflow change rejected", zap.Error(err))
		return err
	}

	switch {
	case u.docUsed:
		e.metrics.replacement()
		if old := u.prevDoc.StoragePath; old != "" && old != doc.StoragePath {
			e.discard(old, log)
		}
	case doc != nil:
		e.discard(doc.StoragePath, log)
	}
	for _, t := range u.transitions {
		e.metrics.transition(t.target, t.status)
		log.Info("status transition committed", zap.String("target", t.target), zap.String("status", t.status))
	}
	return nil
}

// stageSignedDocument fetches the signed document and uploads it under a fresh key.
// Nothing references the new object until the store transaction commits.
func (e *Engine) stageSignedDocument(ctx context.Context, sig *model.Signature) (*model.Document, error) {
	ctx, span := e.tracer.Start(ctx, "workflow.stageSignedDocument",
		trace.WithAttributes(attribute.String("signature.id", sig.ID)))
	defer span.End()

	pctx, cancel := e.providerContext(ctx)
	defer cancel()

	rc, err := e.gateway.GetSignedDocument(pctx, sig.EnvelopeID)
	if err != nil {
		err = providerError("get signed document", err)
		span.RecordError(err)
		return nil, err
	}
	defer rc.Close()

	filename := documentFilename(sig.Document.Filename, sig.Title)
	key := storage.DocumentKey(sig.ID, filename)
	info, err := e.objects.Put(pctx, key, rc, storage.PutObjectOptions{
		Size:        -1,
		ContentType: signedContentType,
		Metadata: map[string]string{
			"original-filename": filename,
			"envelope-id":       sig.EnvelopeID,
		},
	})
	if err != nil {
		if errors.Is(pctx.Err(), context.DeadlineExceeded) {
			err = providerError("stream signed document", err)
		} else {
			err = fmt.Errorf("%w: upload signed document: %w", ErrStore, err)
		}
		span.RecordError(err)
		return nil, err
	}
	return &model.Document{
		Filename:    filename,
		StoragePath: info.Key,
		Size:        info.Size,
		ContentType: signedContentType,
	}, nil
}

func (e *Engine) discard(key string, log *zap.Logger) {
	// Cleanup must not depend on the caller's request still being alive.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.objects.Delete(ctx, key); err != nil {
		log.Warn("orphaned document object", zap.String("key", key), zap.Error(err))
	}
}

func (e *Engine) providerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.timeout)
}

func (e *Engine) lookupError(err error, what string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	if errors.Is(err, ErrInconsistentState) || errors.Is(err, ErrStore) {
		return err
	}
	return fmt.Errorf("%w: load %s: %w", ErrStore, what, err)
}

func providerError(op string, err error) error {
	if errors.Is(err, provider.ErrProvider) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", provider.ErrProvider, op, err)
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, event.ErrParse):
		return "parse_error"
	case errors.Is(err, provider.ErrProvider):
		return "provider_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInconsistentState):
		return "inconsistent_state"
	case errors.Is(err, ErrStore):
		return "store_error"
	default:
		return "error"
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
