package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownStatus is returned when a provider reports a status outside the known vocabulary.
var ErrUnknownStatus = errors.New("unknown status")

// SignatureStatus is the lifecycle status of a Signature (envelope).
type SignatureStatus string

const (
	SignatureDraft     SignatureStatus = "draft"
	SignatureSent      SignatureStatus = "sent"
	SignatureDelivered SignatureStatus = "delivered"
	SignatureCompleted SignatureStatus = "completed"
	SignatureDeclined  SignatureStatus = "declined"
)

// signatureRank orders statuses along the forward transition graph.
// Terminal statuses share the highest rank so that one can never replace the other.
var signatureRank = map[SignatureStatus]int{
	SignatureDraft:     0,
	SignatureSent:      1,
	SignatureDelivered: 2,
	SignatureCompleted: 3,
	SignatureDeclined:  3,
}

// IsValid returns true if s belongs to the signature status vocabulary.
func (s SignatureStatus) IsValid() bool {
	_, ok := signatureRank[s]
	return ok
}

// IsTerminal returns true for completed and declined.
func (s SignatureStatus) IsTerminal() bool {
	return s == SignatureCompleted || s == SignatureDeclined
}

func (s SignatureStatus) String() string {
	return string(s)
}

// CanTransitionSignature reports whether a signature may move from one status to another.
// Staying on the same status is not a transition.
func CanTransitionSignature(from, to SignatureStatus) bool {
	if !from.IsValid() || !to.IsValid() || from == to || from.IsTerminal() {
		return false
	}
	return signatureRank[to] > signatureRank[from]
}

// IsStaleSignature reports whether status to lies behind from on the transition graph.
func IsStaleSignature(from, to SignatureStatus) bool {
	return signatureRank[to] < signatureRank[from]
}

// SignerStatus is the lifecycle status of one Signer (recipient).
type SignerStatus string

const (
	SignerDraft                SignerStatus = "draft"
	SignerSent                 SignerStatus = "sent"
	SignerDelivered            SignerStatus = "delivered"
	SignerCompleted            SignerStatus = "completed"
	SignerDeclined             SignerStatus = "declined"
	SignerAuthenticationFailed SignerStatus = "authentication_failed"
	SignerAutoResponded        SignerStatus = "auto_responded"
)

var signerRank = map[SignerStatus]int{
	SignerDraft:                0,
	SignerSent:                 1,
	SignerDelivered:            2,
	SignerCompleted:            3,
	SignerDeclined:             3,
	SignerAuthenticationFailed: 3,
	SignerAutoResponded:        3,
}

// IsValid returns true if s belongs to the signer status vocabulary.
func (s SignerStatus) IsValid() bool {
	_, ok := signerRank[s]
	return ok
}

// IsTerminal returns true once the signer's own workflow cannot advance any more.
func (s SignerStatus) IsTerminal() bool {
	return signerRank[s] == 3
}

func (s SignerStatus) String() string {
	return string(s)
}

// CanTransitionSigner reports whether a signer may move from one status to another.
func CanTransitionSigner(from, to SignerStatus) bool {
	if !from.IsValid() || !to.IsValid() || from == to || from.IsTerminal() {
		return false
	}
	return signerRank[to] > signerRank[from]
}

// IsStaleSigner reports whether status to lies behind from on the transition graph.
func IsStaleSigner(from, to SignerStatus) bool {
	return signerRank[to] < signerRank[from]
}

// SignerStatusFromProvider maps a raw provider recipient status (case-insensitive).
func SignerStatusFromProvider(raw string) (SignerStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "created":
		return SignerDraft, nil
	case "sent":
		return SignerSent, nil
	case "delivered":
		return SignerDelivered, nil
	case "completed", "signed":
		return SignerCompleted, nil
	case "declined":
		return SignerDeclined, nil
	case "autoresponded", "auto_responded":
		return SignerAutoResponded, nil
	case "authentication_failed", "authenticationfailed":
		return SignerAuthenticationFailed, nil
	default:
		return "", fmt.Errorf("%w: recipient status %q", ErrUnknownStatus, raw)
	}
}

// EnvelopeStatusFromProvider maps a raw provider envelope status (case-insensitive).
func EnvelopeStatusFromProvider(raw string) (SignatureStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "created":
		return SignatureDraft, nil
	case "sent":
		return SignatureSent, nil
	case "delivered":
		return SignatureDelivered, nil
	case "completed":
		return SignatureCompleted, nil
	case "declined":
		return SignatureDeclined, nil
	default:
		return "", fmt.Errorf("%w: envelope status %q", ErrUnknownStatus, raw)
	}
}
