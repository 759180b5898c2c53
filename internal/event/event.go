// Package event turns raw provider notifications into ordered status events.
//
// Two Connect formats are understood: the classic XML DocuSignEnvelopeInformation
// document and the JSON event envelope. The REST recipients listing used when
// polling shares the JSON recipient shape.
package event

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"time"

	"signflow/internal/model"
)

// ErrParse is wrapped by every error returned for malformed or unrecognized payloads.
var ErrParse = errors.New("parse error")

// Notification is one provider delivery for one envelope.
type Notification struct {
	EnvelopeID  string           `json:"envelope_id"`
	Envelope    EnvelopeEvent    `json:"envelope"`
	Recipients  []RecipientEvent `json:"recipients"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// EnvelopeEvent is the envelope-level status carried by a notification.
type EnvelopeEvent struct {
	Status model.SignatureStatus `json:"status"`
	At     time.Time             `json:"at"`
}

// RecipientEvent is the latest status of one signer, keyed by the local signer id.
type RecipientEvent struct {
	SignerID     string             `json:"signer_id"`
	RoutingOrder int                `json:"routing_order"`
	Status       model.SignerStatus `json:"status"`
	At           time.Time          `json:"at"`
	Message      string             `json:"message,omitempty"`
}

// Last returns the most recent recipient event, or false if there is none.
func (n *Notification) Last() (RecipientEvent, bool) {
	if len(n.Recipients) == 0 {
		return RecipientEvent{}, false
	}
	return n.Recipients[len(n.Recipients)-1], true
}

// AllRecipients reports whether the batch is non-empty and every event has status s.
func (n *Notification) AllRecipients(s model.SignerStatus) bool {
	if len(n.Recipients) == 0 {
		return false
	}
	for _, r := range n.Recipients {
		if r.Status != s {
			return false
		}
	}
	return true
}

// Parse decodes a Connect payload, XML or JSON, into a Notification.
func Parse(raw []byte) (*Notification, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrParse)
	}
	switch trimmed[0] {
	case '<':
		return parseXML(trimmed)
	case '{':
		return parseJSON(trimmed)
	default:
		return nil, fmt.Errorf("%w: unsupported payload format", ErrParse)
	}
}

// envelopeTimes holds the envelope-level timestamps of a report.
type envelopeTimes struct {
	Sent      time.Time
	Delivered time.Time
	Completed time.Time
	Declined  time.Time
	Created   time.Time
}

func (e envelopeTimes) at(s model.SignatureStatus) time.Time {
	switch s {
	case model.SignatureSent:
		return e.Sent
	case model.SignatureDelivered:
		return e.Delivered
	case model.SignatureCompleted:
		return e.Completed
	case model.SignatureDeclined:
		return e.Declined
	default:
		return e.Created
	}
}

func buildNotification(envelopeID, rawStatus string, times envelopeTimes, generated time.Time, recipients []model.RecipientStatus) (*Notification, error) {
	if envelopeID == "" {
		return nil, fmt.Errorf("%w: missing envelope id", ErrParse)
	}
	status, err := model.EnvelopeStatusFromProvider(rawStatus)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	n := &Notification{
		EnvelopeID:  envelopeID,
		Envelope:    EnvelopeEvent{Status: status, At: orTime(times.at(status), generated)},
		Recipients:  make([]RecipientEvent, 0, len(recipients)),
		GeneratedAt: generated,
	}
	for _, r := range recipients {
		ev, err := RecipientEventFrom(r, generated)
		if err != nil {
			return nil, err
		}
		n.Recipients = append(n.Recipients, ev)
	}
	sort.SliceStable(n.Recipients, func(i, j int) bool {
		a, b := n.Recipients[i], n.Recipients[j]
		if !a.At.Equal(b.At) {
			return a.At.Before(b.At)
		}
		return a.RoutingOrder < b.RoutingOrder
	})
	return n, nil
}

// RecipientEventFrom derives the event for one recipient report. fallback is
// used as the event time when the provider gave none for the derived status.
func RecipientEventFrom(r model.RecipientStatus, fallback time.Time) (RecipientEvent, error) {
	id := r.CorrelationID()
	if id == "" {
		return RecipientEvent{}, fmt.Errorf("%w: recipient without id", ErrParse)
	}
	status, err := r.Derived()
	if err != nil {
		return RecipientEvent{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return RecipientEvent{
		SignerID:     id,
		RoutingOrder: r.RoutingOrder,
		Status:       status,
		At:           orTime(r.StatusTime(status), fallback),
		Message:      r.Message(status),
	}, nil
}

func orTime(t, fallback time.Time) time.Time {
	if t.IsZero() {
		return fallback
	}
	return t
}

const zonelessLayout = "2006-01-02T15:04:05"

// parseTime accepts RFC3339 or the zone-less layout Connect XML uses, read in loc.
// Results are normalized to UTC. Empty input yields the zero time.
func parseTime(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation(zonelessLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid datetime %q", ErrParse, s)
	}
	return t.UTC(), nil
}
