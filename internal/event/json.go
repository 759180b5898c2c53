package event

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"signflow/internal/model"
)

type jsonConnectEvent struct {
	Event             string `json:"event"`
	GeneratedDateTime string `json:"generatedDateTime"`
	Data              struct {
		EnvelopeID      string               `json:"envelopeId"`
		EnvelopeSummary *jsonEnvelopeSummary `json:"envelopeSummary"`
	} `json:"data"`
}

type jsonEnvelopeSummary struct {
	Status            string         `json:"status"`
	CreatedDateTime   string         `json:"createdDateTime"`
	SentDateTime      string         `json:"sentDateTime"`
	DeliveredDateTime string         `json:"deliveredDateTime"`
	CompletedDateTime string         `json:"completedDateTime"`
	DeclinedDateTime  string         `json:"declinedDateTime"`
	Recipients        jsonRecipients `json:"recipients"`
}

// jsonRecipients is also the body of GET /envelopes/{id}/recipients.
type jsonRecipients struct {
	Signers []jsonSigner `json:"signers"`
}

type jsonSigner struct {
	RecipientID                   string          `json:"recipientId"`
	ClientUserID                  string          `json:"clientUserId"`
	RoutingOrder                  flexInt         `json:"routingOrder"`
	Status                        string          `json:"status"`
	DeclinedReason                string          `json:"declinedReason"`
	SentDateTime                  string          `json:"sentDateTime"`
	DeliveredDateTime             string          `json:"deliveredDateTime"`
	SignedDateTime                string          `json:"signedDateTime"`
	DeclinedDateTime              string          `json:"declinedDateTime"`
	AutoRespondedDateTime         string          `json:"autoRespondedDateTime"`
	RecipientAuthenticationStatus *jsonAuthStatus `json:"recipientAuthenticationStatus"`
}

type jsonAuthStatus struct {
	AccessCodeResult *struct {
		Status string `json:"status"`
	} `json:"accessCodeResult"`
}

// flexInt decodes numbers sent either as JSON numbers or as numeric strings.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid integer %q", s)
	}
	*f = flexInt(n)
	return nil
}

func parseJSON(raw []byte) (*Notification, error) {
	var ev jsonConnectEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if ev.Data.EnvelopeSummary == nil {
		return nil, fmt.Errorf("%w: missing envelope summary", ErrParse)
	}

	sum := ev.Data.EnvelopeSummary
	var times envelopeTimes
	var generated time.Time
	var err error
	for _, f := range []struct {
		dst *time.Time
		src string
	}{
		{&generated, ev.GeneratedDateTime},
		{&times.Created, sum.CreatedDateTime},
		{&times.Sent, sum.SentDateTime},
		{&times.Delivered, sum.DeliveredDateTime},
		{&times.Completed, sum.CompletedDateTime},
		{&times.Declined, sum.DeclinedDateTime},
	} {
		if *f.dst, err = parseTime(f.src, time.UTC); err != nil {
			return nil, err
		}
	}

	recipients, err := signersToModel(sum.Recipients.Signers)
	if err != nil {
		return nil, err
	}
	return buildNotification(strings.TrimSpace(ev.Data.EnvelopeID), sum.Status, times, generated, recipients)
}

// ParseRecipients decodes the REST recipients listing returned when polling an envelope.
func ParseRecipients(raw []byte) ([]model.RecipientStatus, error) {
	var body jsonRecipients
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return signersToModel(body.Signers)
}

func signersToModel(signers []jsonSigner) ([]model.RecipientStatus, error) {
	out := make([]model.RecipientStatus, 0, len(signers))
	for _, s := range signers {
		r := model.RecipientStatus{
			RecipientID:    strings.TrimSpace(s.RecipientID),
			ClientUserID:   strings.TrimSpace(s.ClientUserID),
			RoutingOrder:   int(s.RoutingOrder),
			Status:         s.Status,
			DeclinedReason: s.DeclinedReason,
		}
		if s.RecipientAuthenticationStatus != nil && s.RecipientAuthenticationStatus.AccessCodeResult != nil {
			r.AccessCodeResult = s.RecipientAuthenticationStatus.AccessCodeResult.Status
		}
		var err error
		for _, f := range []struct {
			dst *time.Time
			src string
		}{
			{&r.SentAt, s.SentDateTime},
			{&r.DeliveredAt, s.DeliveredDateTime},
			{&r.SignedAt, s.SignedDateTime},
			{&r.DeclinedAt, s.DeclinedDateTime},
			{&r.AutoRespondedAt, s.AutoRespondedDateTime},
		} {
			if *f.dst, err = parseTime(f.src, time.UTC); err != nil {
				return nil, err
			}
		}
		out = append(out, r)
	}
	return out, nil
}
