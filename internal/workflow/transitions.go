package workflow

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"signflow/internal/event"
	"signflow/internal/model"
	"signflow/internal/repository"
)

// change is what one inbound event asks of a signature.
type change struct {
	// bulkSent holds every recipient event when the start rule applies.
	bulkSent []event.RecipientEvent
	// bulkSentAt is the envelope sent time for the start rule.
	bulkSentAt time.Time
	signer     *event.RecipientEvent
	envelope   *event.EnvelopeEvent
}

func (c change) empty() bool {
	return len(c.bulkSent) == 0 && c.signer == nil && c.envelope == nil
}

// needsDocument reports whether applying c to sig would complete a signer or the
// signature, which requires the signed document to be fetched first.
func (c change) needsDocument(sig *model.Signature) bool {
	if sig.Status.IsTerminal() {
		return false
	}
	if c.envelope != nil && c.envelope.Status == model.SignatureCompleted {
		return true
	}
	if c.signer != nil && c.signer.Status == model.SignerCompleted {
		s := sig.Signer(c.signer.SignerID)
		return s != nil && model.CanTransitionSigner(s.Status, model.SignerCompleted)
	}
	return false
}

type transition struct {
	target string
	status string
}

// unit applies one change to a signature loaded under lock. Writes go through
// store and only become visible when the surrounding transaction commits.
type unit struct {
	store  repository.SignatureStore
	sig    *model.Signature
	logger *zap.Logger

	// doc is the signed document already uploaded under a fresh key, if fetched.
	doc     *model.Document
	docUsed bool
	prevDoc model.Document

	sigDirty    bool
	transitions []transition
}

func (u *unit) apply(ctx context.Context, c change) error {
	if len(c.bulkSent) > 0 {
		for _, ev := range c.bulkSent {
			if err := u.applySigner(ctx, ev); err != nil {
				return err
			}
		}
		if err := u.signatureSent(c.bulkSentAt); err != nil {
			return err
		}
	}
	if c.signer != nil {
		if err := u.applySigner(ctx, *c.signer); err != nil {
			return err
		}
	}
	if c.envelope != nil {
		if err := u.applySignature(*c.envelope); err != nil {
			return err
		}
	}
	return u.flush(ctx)
}

func (u *unit) applySigner(ctx context.Context, ev event.RecipientEvent) error {
	s := u.sig.Signer(ev.SignerID)
	if s == nil {
		return fmt.Errorf("signer %s in signature %s: %w", ev.SignerID, u.sig.ID, ErrNotFound)
	}
	switch ev.Status {
	case model.SignerDraft:
		return nil
	case model.SignerSent:
		return u.signerSent(ctx, s, ev)
	case model.SignerDelivered:
		return u.signerDelivered(ctx, s, ev)
	case model.SignerCompleted:
		return u.signerCompleted(ctx, s, ev)
	case model.SignerDeclined:
		return u.signerDeclined(ctx, s, ev)
	case model.SignerAuthenticationFailed:
		return u.signerAuthenticationFailed(ctx, s, ev)
	case model.SignerAutoResponded:
		return u.signerAutoResponded(ctx, s, ev)
	default:
		return fmt.Errorf("%w: unsupported signer status %q", ErrInconsistentState, ev.Status)
	}
}

func (u *unit) applySignature(ev event.EnvelopeEvent) error {
	switch ev.Status {
	case model.SignatureDraft, model.SignatureSent:
		// An envelope sent signal only counts through the bulk start rule.
		return nil
	case model.SignatureDelivered:
		return u.signatureDelivered(ev.At)
	case model.SignatureCompleted:
		return u.signatureCompleted(ev.At)
	case model.SignatureDeclined:
		return u.signatureDeclined(ev.At)
	default:
		return fmt.Errorf("%w: unsupported envelope status %q", ErrInconsistentState, ev.Status)
	}
}

func (u *unit) signerSent(ctx context.Context, s *model.Signer, ev event.RecipientEvent) error {
	_, err := u.advanceSigner(ctx, s, ev)
	return err
}

func (u *unit) signerDelivered(ctx context.Context, s *model.Signer, ev event.RecipientEvent) error {
	_, err := u.advanceSigner(ctx, s, ev)
	return err
}

func (u *unit) signerCompleted(ctx context.Context, s *model.Signer, ev event.RecipientEvent) error {
	if s.Status == model.SignerCompleted {
		return nil
	}
	switch u.sig.Status {
	case model.SignatureDeclined:
		return fmt.Errorf("%w: signer %s completed on declined signature %s", ErrInconsistentState, s.ID, u.sig.ID)
	case model.SignatureCompleted:
		_, err := u.advanceSigner(ctx, s, ev)
		return err
	}
	if !model.CanTransitionSigner(s.Status, model.SignerCompleted) {
		return u.signerConflict(s, model.SignerCompleted)
	}
	if err := u.replaceDocument(); err != nil {
		return err
	}
	if _, err := u.advanceSigner(ctx, s, ev); err != nil {
		return err
	}
	// Completion is decided from the locked aggregate, not from the batch.
	if u.sig.AllSignersCompletedExcept(s.ID) {
		return u.signatureCompleted(ev.At)
	}
	return nil
}

func (u *unit) signerDeclined(ctx context.Context, s *model.Signer, ev event.RecipientEvent) error {
	if u.sig.Status == model.SignatureCompleted && s.Status != model.SignerDeclined {
		return fmt.Errorf("%w: signer %s declined on completed signature %s", ErrInconsistentState, s.ID, u.sig.ID)
	}
	if _, err := u.advanceSigner(ctx, s, ev); err != nil {
		return err
	}
	if s.Status != model.SignerDeclined {
		return nil
	}
	// One decline aborts the whole envelope.
	return u.signatureDeclined(ev.At)
}

func (u *unit) signerAuthenticationFailed(ctx context.Context, s *model.Signer, ev event.RecipientEvent) error {
	_, err := u.advanceSigner(ctx, s, ev)
	return err
}

func (u *unit) signerAutoResponded(ctx context.Context, s *model.Signer, ev event.RecipientEvent) error {
	_, err := u.advanceSigner(ctx, s, ev)
	return err
}

// advanceSigner moves s forward to ev.Status. Repeats are no-ops, except that a
// decline reason may still be updated. Older statuses are skipped.
func (u *unit) advanceSigner(ctx context.Context, s *model.Signer, ev event.RecipientEvent) (bool, error) {
	to := ev.Status
	if s.Status == to {
		if carriesDetails(to) && ev.Message != "" && ev.Message != s.StatusDetails {
			s.StatusDetails = ev.Message
			return true, u.saveSigner(ctx, s)
		}
		return false, nil
	}
	if u.sig.Status.IsTerminal() || model.IsStaleSigner(s.Status, to) {
		u.logger.Info("stale signer event skipped",
			zap.String("signature_id", u.sig.ID),
			zap.String("signature_status", u.sig.Status.String()),
			zap.String("signer_id", s.ID),
			zap.String("from", s.Status.String()),
			zap.String("to", to.String()),
		)
		return false, nil
	}
	if !model.CanTransitionSigner(s.Status, to) {
		return false, u.signerConflict(s, to)
	}

	s.Status = to
	s.StatusAt = ev.At
	if carriesDetails(to) {
		s.StatusDetails = ev.Message
	}
	if err := u.saveSigner(ctx, s); err != nil {
		return false, err
	}
	u.transitions = append(u.transitions, transition{target: "signer", status: to.String()})
	return true, nil
}

func (u *unit) signerConflict(s *model.Signer, to model.SignerStatus) error {
	return fmt.Errorf("%w: signer %s cannot move from %s to %s", ErrInconsistentState, s.ID, s.Status, to)
}

func (u *unit) signatureSent(at time.Time) error {
	_, err := u.advanceSignature(model.SignatureSent, at)
	return err
}

func (u *unit) signatureDelivered(at time.Time) error {
	_, err := u.advanceSignature(model.SignatureDelivered, at)
	return err
}

func (u *unit) signatureCompleted(at time.Time) error {
	if u.sig.Status == model.SignatureCompleted {
		return nil
	}
	if !model.CanTransitionSignature(u.sig.Status, model.SignatureCompleted) {
		return u.signatureConflict(model.SignatureCompleted)
	}
	if err := u.replaceDocument(); err != nil {
		return err
	}
	_, err := u.advanceSignature(model.SignatureCompleted, at)
	return err
}

func (u *unit) signatureDeclined(at time.Time) error {
	_, err := u.advanceSignature(model.SignatureDeclined, at)
	return err
}

func (u *unit) advanceSignature(to model.SignatureStatus, at time.Time) (bool, error) {
	from := u.sig.Status
	if from == to {
		return false, nil
	}
	if model.IsStaleSignature(from, to) {
		u.logger.Info("stale signature event skipped",
			zap.String("signature_id", u.sig.ID),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
		return false, nil
	}
	if !model.CanTransitionSignature(from, to) {
		return false, u.signatureConflict(to)
	}
	u.sig.Status = to
	u.sig.StatusAt = at
	u.sigDirty = true
	u.transitions = append(u.transitions, transition{target: "signature", status: to.String()})
	return true, nil
}

func (u *unit) signatureConflict(to model.SignatureStatus) error {
	return fmt.Errorf("%w: signature %s cannot move from %s to %s", ErrInconsistentState, u.sig.ID, u.sig.Status, to)
}

// replaceDocument swaps the signature's document ref for the signed one, once per unit.
func (u *unit) replaceDocument() error {
	if u.docUsed {
		return nil
	}
	if u.doc == nil {
		return fmt.Errorf("%w: signed document of signature %s was not fetched", ErrInconsistentState, u.sig.ID)
	}
	u.prevDoc = u.sig.Document
	u.sig.Document = *u.doc
	u.docUsed = true
	u.sigDirty = true
	return nil
}

func (u *unit) saveSigner(ctx context.Context, s *model.Signer) error {
	if err := u.store.SaveSigner(ctx, s); err != nil {
		return fmt.Errorf("%w: save signer %s: %w", ErrStore, s.ID, err)
	}
	return nil
}

func (u *unit) flush(ctx context.Context) error {
	if !u.sigDirty {
		return nil
	}
	if err := u.store.SaveSignature(ctx, u.sig); err != nil {
		return fmt.Errorf("%w: save signature %s: %w", ErrStore, u.sig.ID, err)
	}
	return nil
}

func carriesDetails(s model.SignerStatus) bool {
	return s == model.SignerDeclined || s == model.SignerAuthenticationFailed
}
