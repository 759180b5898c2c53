package model

import (
	"strings"
	"time"
)

// RecipientStatus is a provider-reported snapshot of one recipient.
// Zero timestamps mean the provider did not report that step.
type RecipientStatus struct {
	RecipientID      string
	ClientUserID     string
	RoutingOrder     int
	Status           string
	AccessCodeResult string
	DeclinedReason   string

	SentAt          time.Time
	DeliveredAt     time.Time
	SignedAt        time.Time
	DeclinedAt      time.Time
	AutoRespondedAt time.Time
}

// CorrelationID returns the local signer id this recipient refers to.
func (r RecipientStatus) CorrelationID() string {
	if r.ClientUserID != "" {
		return r.ClientUserID
	}
	return r.RecipientID
}

// AuthenticationFailed reports whether an access code check was made and did not pass.
func (r RecipientStatus) AuthenticationFailed() bool {
	res := strings.TrimSpace(r.AccessCodeResult)
	return res != "" && !strings.EqualFold(res, "passed")
}

// Derived returns the local signer status for this report.
// A failed access code check wins over the raw status field.
func (r RecipientStatus) Derived() (SignerStatus, error) {
	if r.AuthenticationFailed() {
		return SignerAuthenticationFailed, nil
	}
	return SignerStatusFromProvider(r.Status)
}

// StatusTime returns the provider timestamp recorded for the given status, or the zero time.
func (r RecipientStatus) StatusTime(s SignerStatus) time.Time {
	switch s {
	case SignerSent:
		return r.SentAt
	case SignerDelivered:
		return r.DeliveredAt
	case SignerCompleted:
		return r.SignedAt
	case SignerDeclined:
		return r.DeclinedAt
	case SignerAutoResponded:
		return r.AutoRespondedAt
	case SignerAuthenticationFailed:
		return latest(r.DeliveredAt, r.SentAt)
	default:
		return time.Time{}
	}
}

// Message returns the status details to record alongside status s.
func (r RecipientStatus) Message(s SignerStatus) string {
	if s == SignerDeclined || s == SignerAuthenticationFailed {
		return r.DeclinedReason
	}
	return ""
}

func latest(ts ...time.Time) time.Time {
	var out time.Time
	for _, t := range ts {
		if t.After(out) {
			out = t
		}
	}
	return out
}
