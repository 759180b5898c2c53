package event

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"signflow/internal/model"
)

// Tags carry no namespace so both the 3.0 API namespace and bare documents decode.
type xmlEnvelopeInformation struct {
	XMLName        xml.Name          `xml:"DocuSignEnvelopeInformation"`
	EnvelopeStatus xmlEnvelopeStatus `xml:"EnvelopeStatus"`
	TimeZoneOffset string            `xml:"TimeZoneOffset"`
}

type xmlEnvelopeStatus struct {
	RecipientStatuses []xmlRecipientStatus `xml:"RecipientStatuses>RecipientStatus"`
	TimeGenerated     string               `xml:"TimeGenerated"`
	EnvelopeID        string               `xml:"EnvelopeID"`
	Status            string               `xml:"Status"`
	Created           string               `xml:"Created"`
	Sent              string               `xml:"Sent"`
	Delivered         string               `xml:"Delivered"`
	Completed         string               `xml:"Completed"`
	Declined          string               `xml:"Declined"`
}

type xmlRecipientStatus struct {
	Type             string `xml:"Type"`
	RecipientID      string `xml:"RecipientId"`
	ClientUserID     string `xml:"ClientUserId"`
	RoutingOrder     string `xml:"RoutingOrder"`
	Status           string `xml:"Status"`
	DeclineReason    string `xml:"DeclineReason"`
	AccessCodeResult string `xml:"RecipientAuthenticationStatus>AccessCodeResult>Status"`
	Sent             string `xml:"Sent"`
	Delivered        string `xml:"Delivered"`
	Signed           string `xml:"Signed"`
	Declined         string `xml:"Declined"`
	AutoResponded    string `xml:"AutoResponded"`
}

func parseXML(raw []byte) (*Notification, error) {
	var doc xmlEnvelopeInformation
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	loc, err := offsetLocation(doc.TimeZoneOffset)
	if err != nil {
		return nil, err
	}

	es := doc.EnvelopeStatus
	var times envelopeTimes
	var generated time.Time
	for _, f := range []struct {
		dst *time.Time
		src string
	}{
		{&generated, es.TimeGenerated},
		{&times.Created, es.Created},
		{&times.Sent, es.Sent},
		{&times.Delivered, es.Delivered},
		{&times.Completed, es.Completed},
		{&times.Declined, es.Declined},
	} {
		if *f.dst, err = parseTime(f.src, loc); err != nil {
			return nil, err
		}
	}

	recipients := make([]model.RecipientStatus, 0, len(es.RecipientStatuses))
	for _, x := range es.RecipientStatuses {
		if x.Type != "" && !strings.EqualFold(x.Type, "signer") {
			continue
		}
		r, err := x.toModel(loc)
		if err != nil {
			return nil, err
		}
		recipients = append(recipients, r)
	}
	return buildNotification(strings.TrimSpace(es.EnvelopeID), es.Status, times, generated, recipients)
}

func (x xmlRecipientStatus) toModel(loc *time.Location) (model.RecipientStatus, error) {
	r := model.RecipientStatus{
		RecipientID:      strings.TrimSpace(x.RecipientID),
		ClientUserID:     strings.TrimSpace(x.ClientUserID),
		Status:           x.Status,
		AccessCodeResult: x.AccessCodeResult,
		DeclinedReason:   x.DeclineReason,
	}
	if x.RoutingOrder != "" {
		n, err := strconv.Atoi(strings.TrimSpace(x.RoutingOrder))
		if err != nil {
			return r, fmt.Errorf("%w: invalid routing order %q", ErrParse, x.RoutingOrder)
		}
		r.RoutingOrder = n
	}
	var err error
	for _, f := range []struct {
		dst *time.Time
		src string
	}{
		{&r.SentAt, x.Sent},
		{&r.DeliveredAt, x.Delivered},
		{&r.SignedAt, x.Signed},
		{&r.DeclinedAt, x.Declined},
		{&r.AutoRespondedAt, x.AutoResponded},
	} {
		if *f.dst, err = parseTime(f.src, loc); err != nil {
			return r, err
		}
	}
	return r, nil
}

// offsetLocation turns the TimeZoneOffset element (whole hours) into a fixed zone.
func offsetLocation(raw string) (*time.Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.UTC, nil
	}
	hours, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid time zone offset %q", ErrParse, raw)
	}
	return time.FixedZone("", hours*3600), nil
}
