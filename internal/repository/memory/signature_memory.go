// Package memory is an in-process repository.SignatureRepository backed by maps.
// Transactions are serialized and staged on copies, so a failed InTx leaves no trace.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"signflow/internal/model"
	"signflow/internal/repository"
)

// SignatureMemory stores signatures and their signers in memory. It is safe for
// concurrent use; signers is an index from signer id to signature id.
type SignatureMemory struct {
	tx sync.Mutex

	mu         sync.RWMutex
	signatures map[string]*model.Signature
	signers    map[string]string
}

var _ repository.SignatureRepository = (*SignatureMemory)(nil)

// NewSignatureMemory returns an empty repository.
func NewSignatureMemory() *SignatureMemory {
	return &SignatureMemory{
		signatures: make(map[string]*model.Signature),
		signers:    make(map[string]string),
	}
}

func (r *SignatureMemory) Create(_ context.Context, sig *model.Signature) (*model.Signature, error) {
	if err := sig.ValidateSigners(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.signatures[sig.ID]; ok {
		return nil, fmt.Errorf("signature %s already exists", sig.ID)
	}
	for _, s := range sig.Signers {
		if _, ok := r.signers[s.ID]; ok {
			return nil, fmt.Errorf("signer %s already exists", s.ID)
		}
	}
	stored := clone(sig)
	stored.SortSigners()
	for i := range stored.Signers {
		stored.Signers[i].SignatureID = stored.ID
		r.signers[stored.Signers[i].ID] = stored.ID
	}
	r.signatures[stored.ID] = stored
	return clone(stored), nil
}

func (r *SignatureMemory) FindByID(_ context.Context, id string) (*model.Signature, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.get(id)
}

func (r *SignatureMemory) FindByEnvelopeID(_ context.Context, envelopeID string) (*model.Signature, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, sig := range r.signatures {
		if envelopeID != "" && sig.EnvelopeID == envelopeID {
			return clone(sig), nil
		}
	}
	return nil, fmt.Errorf("envelope %s: %w", envelopeID, repository.ErrNotFound)
}

func (r *SignatureMemory) FindSignerByID(_ context.Context, id string) (*model.Signer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sigID, ok := r.signers[id]
	if !ok {
		return nil, fmt.Errorf("signer %s: %w", id, repository.ErrNotFound)
	}
	s := *r.signatures[sigID].Signer(id)
	return &s, nil
}

func (r *SignatureMemory) List(_ context.Context, pq repository.PageQuery) (*repository.PageResult[model.Signature], error) {
	r.mu.RLock()
	all := make([]model.Signature, 0, len(r.signatures))
	for _, sig := range r.signatures {
		c := *sig
		c.Signers = nil
		all = append(all, c)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	total := len(all)
	start := min(max(pq.Offset, 0), total)
	end := total
	if pq.Limit > 0 {
		end = min(start+pq.Limit, total)
	}
	return &repository.PageResult[model.Signature]{Items: all[start:end], Total: total}, nil
}

func (r *SignatureMemory) SetEnvelopeID(_ context.Context, id, envelopeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sig, ok := r.signatures[id]
	if !ok {
		return fmt.Errorf("signature %s: %w", id, repository.ErrNotFound)
	}
	if sig.EnvelopeID != "" {
		return fmt.Errorf("signature %s: %w", id, repository.ErrEnvelopeAlreadySet)
	}
	sig.EnvelopeID = envelopeID
	return nil
}

func (r *SignatureMemory) InTx(ctx context.Context, fn func(ctx context.Context, store repository.SignatureStore) error) error {
	r.tx.Lock()
	defer r.tx.Unlock()

	st := &store{repo: r, staged: make(map[string]*model.Signature)}
	if err := fn(ctx, st); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, sig := range st.staged {
		// The envelope id is not part of the unit of work.
		sig.EnvelopeID = r.signatures[id].EnvelopeID
		r.signatures[id] = sig
	}
	return nil
}

func (r *SignatureMemory) get(id string) (*model.Signature, error) {
	sig, ok := r.signatures[id]
	if !ok {
		return nil, fmt.Errorf("signature %s: %w", id, repository.ErrNotFound)
	}
	return clone(sig), nil
}

type store struct {
	repo   *SignatureMemory
	staged map[string]*model.Signature
}

func (s *store) LoadForUpdate(_ context.Context, id string) (*model.Signature, error) {
	sig, err := s.stage(id)
	if err != nil {
		return nil, err
	}
	return clone(sig), nil
}

func (s *store) SaveSignature(_ context.Context, sig *model.Signature) error {
	staged, err := s.stage(sig.ID)
	if err != nil {
		return err
	}
	staged.Status = sig.Status
	staged.StatusAt = sig.StatusAt
	staged.Document = sig.Document
	return nil
}

func (s *store) SaveSigner(_ context.Context, sg *model.Signer) error {
	s.repo.mu.RLock()
	sigID, ok := s.repo.signers[sg.ID]
	s.repo.mu.RUnlock()
	if !ok {
		return fmt.Errorf("signer %s: %w", sg.ID, repository.ErrNotFound)
	}
	staged, err := s.stage(sigID)
	if err != nil {
		return err
	}
	target := staged.Signer(sg.ID)
	target.Status = sg.Status
	target.StatusAt = sg.StatusAt
	target.StatusDetails = sg.StatusDetails
	return nil
}

func (s *store) stage(id string) (*model.Signature, error) {
	if sig, ok := s.staged[id]; ok {
		return sig, nil
	}
	s.repo.mu.RLock()
	sig, err := s.repo.get(id)
	s.repo.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	s.staged[id] = sig
	return sig, nil
}

func clone(sig *model.Signature) *model.Signature {
	c := *sig
	c.Signers = append([]model.Signer(nil), sig.Signers...)
	return &c
}
