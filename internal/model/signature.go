package model

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrInvalidSigners is returned when a signer set breaks the signing order invariant.
var ErrInvalidSigners = errors.New("invalid signers")

// Signature is the aggregate root of one signing transaction (a provider envelope).
// It exclusively owns its Signers.
type Signature struct {
	ID         string          `json:"id"`
	EnvelopeID string          `json:"envelope_id,omitempty"`
	Title      string          `json:"title"`
	TemplateID string          `json:"template_id,omitempty"`
	Document   Document        `json:"document"`
	Status     SignatureStatus `json:"status"`
	StatusAt   time.Time       `json:"status_at"`
	CreatedAt  time.Time       `json:"created_at"`
	Signers    []Signer        `json:"signers"`
}

// Signer is one recipient of a Signature. SigningOrder is 1-based and unique
// within its Signature. The signer ID doubles as the provider recipient id.
type Signer struct {
	ID            string       `json:"id"`
	SignatureID   string       `json:"signature_id"`
	SigningOrder  int          `json:"signing_order"`
	FullName      string       `json:"full_name"`
	Email         string       `json:"email"`
	Status        SignerStatus `json:"status"`
	StatusAt      time.Time    `json:"status_at"`
	StatusDetails string       `json:"status_details,omitempty"`
}

// Signer returns a pointer to the owned signer with the given id, or nil.
func (s *Signature) Signer(id string) *Signer {
	for i := range s.Signers {
		if s.Signers[i].ID == id {
			return &s.Signers[i]
		}
	}
	return nil
}

// SortSigners orders signers by SigningOrder.
func (s *Signature) SortSigners() {
	sort.SliceStable(s.Signers, func(i, j int) bool {
		return s.Signers[i].SigningOrder < s.Signers[j].SigningOrder
	})
}

// AllSignersCompletedExcept reports whether every signer other than id has completed.
func (s *Signature) AllSignersCompletedExcept(id string) bool {
	for _, sg := range s.Signers {
		if sg.ID == id {
			continue
		}
		if sg.Status != SignerCompleted {
			return false
		}
	}
	return true
}

// ValidateSigners checks that there is at least one signer and that signing orders
// are positive and unique.
func (s *Signature) ValidateSigners() error {
	if len(s.Signers) == 0 {
		return fmt.Errorf("%w: at least one signer is required", ErrInvalidSigners)
	}
	seen := make(map[int]bool, len(s.Signers))
	for _, sg := range s.Signers {
		if sg.SigningOrder < 1 {
			return fmt.Errorf("%w: signing order must be positive, got %d", ErrInvalidSigners, sg.SigningOrder)
		}
		if seen[sg.SigningOrder] {
			return fmt.Errorf("%w: duplicate signing order %d", ErrInvalidSigners, sg.SigningOrder)
		}
		seen[sg.SigningOrder] = true
	}
	return nil
}
