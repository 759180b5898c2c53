package event

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signflow/internal/model"
)

const (
	signer1 = "11111111-1111-1111-1111-111111111111"
	signer2 = "22222222-2222-2222-2222-222222222222"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return b
}

func TestParse_XMLGolden(t *testing.T) {
	n, err := Parse(readFixture(t, "connect_completed.xml"))
	require.NoError(t, err)

	out, err := json.MarshalIndent(n, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "connect_completed", out)
}

func TestParse_XMLAllSent(t *testing.T) {
	n, err := Parse(readFixture(t, "connect_sent.xml"))
	require.NoError(t, err)

	assert.Equal(t, "env-0001", n.EnvelopeID)
	assert.Equal(t, model.SignatureSent, n.Envelope.Status)
	assert.True(t, n.AllRecipients(model.SignerSent))
	require.Len(t, n.Recipients, 2)

	// Equal timestamps keep routing order.
	assert.Equal(t, signer1, n.Recipients[0].SignerID)
	assert.Equal(t, signer2, n.Recipients[1].SignerID)

	// TimeZoneOffset -7 shifts zone-less timestamps.
	assert.Equal(t, time.Date(2024, 3, 1, 16, 0, 1, 0, time.UTC), n.Recipients[0].At)
	assert.Equal(t, time.Date(2024, 3, 1, 16, 0, 5, 0, time.UTC), n.GeneratedAt)
}

func TestParse_XMLAuthenticationFailed(t *testing.T) {
	n, err := Parse(readFixture(t, "connect_auth_failed.xml"))
	require.NoError(t, err)

	last, ok := n.Last()
	require.True(t, ok)
	assert.Equal(t, model.SignerAuthenticationFailed, last.Status)
	assert.Equal(t, time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC), last.At)
	assert.False(t, n.AllRecipients(model.SignerSent))
}

func TestParse_JSONDeclined(t *testing.T) {
	n, err := Parse(readFixture(t, "connect_declined.json"))
	require.NoError(t, err)

	assert.Equal(t, "env-0001", n.EnvelopeID)
	assert.Equal(t, model.SignatureDeclined, n.Envelope.Status)
	assert.Equal(t, time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC), n.Envelope.At)

	last, ok := n.Last()
	require.True(t, ok)
	assert.Equal(t, signer2, last.SignerID)
	assert.Equal(t, model.SignerDeclined, last.Status)
	assert.Equal(t, "Do not sign a test!", last.Message)
	assert.Equal(t, 2, last.RoutingOrder)

	assert.Equal(t, model.SignerCompleted, n.Recipients[0].Status)
	assert.Empty(t, n.Recipients[0].Message)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", "   "},
		{"unsupported", "status=sent"},
		{"broken xml", "<DocuSignEnvelopeInformation><EnvelopeStatus>"},
		{"wrong root", "<Other><EnvelopeStatus/></Other>"},
		{"missing envelope id", "<DocuSignEnvelopeInformation><EnvelopeStatus><Status>Sent</Status></EnvelopeStatus></DocuSignEnvelopeInformation>"},
		{"unknown envelope status", "<DocuSignEnvelopeInformation><EnvelopeStatus><EnvelopeID>e</EnvelopeID><Status>Voided</Status></EnvelopeStatus></DocuSignEnvelopeInformation>"},
		{"bad datetime", "<DocuSignEnvelopeInformation><EnvelopeStatus><EnvelopeID>e</EnvelopeID><Status>Sent</Status><Sent>yesterday</Sent></EnvelopeStatus></DocuSignEnvelopeInformation>"},
		{"bad offset", "<DocuSignEnvelopeInformation><EnvelopeStatus><EnvelopeID>e</EnvelopeID><Status>Sent</Status></EnvelopeStatus><TimeZoneOffset>PST</TimeZoneOffset></DocuSignEnvelopeInformation>"},
		{"recipient without id", "<DocuSignEnvelopeInformation><EnvelopeStatus><RecipientStatuses><RecipientStatus><Type>Signer</Type><Status>Sent</Status></RecipientStatus></RecipientStatuses><EnvelopeID>e</EnvelopeID><Status>Sent</Status></EnvelopeStatus></DocuSignEnvelopeInformation>"},
		{"unknown recipient status", "<DocuSignEnvelopeInformation><EnvelopeStatus><RecipientStatuses><RecipientStatus><ClientUserId>1</ClientUserId><Status>FaxPending</Status></RecipientStatus></RecipientStatuses><EnvelopeID>e</EnvelopeID><Status>Sent</Status></EnvelopeStatus></DocuSignEnvelopeInformation>"},
		{"broken json", `{"event":`},
		{"json without summary", `{"event":"envelope-sent","data":{"envelopeId":"e"}}`},
		{"json bad routing order", `{"data":{"envelopeId":"e","envelopeSummary":{"status":"sent","recipients":{"signers":[{"clientUserId":"1","status":"sent","routingOrder":"first"}]}}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := Parse([]byte(tt.raw))
			assert.ErrorIs(t, err, ErrParse)
			assert.Nil(t, n)
		})
	}
}

func TestParseRecipients(t *testing.T) {
	rs, err := ParseRecipients(readFixture(t, "recipients.json"))
	require.NoError(t, err)
	require.Len(t, rs, 2)

	st, err := rs[0].Derived()
	require.NoError(t, err)
	assert.Equal(t, model.SignerAuthenticationFailed, st)
	assert.Equal(t, 1, rs[0].RoutingOrder)
	assert.Equal(t, time.Date(2024, 3, 1, 9, 0, 1, 0, time.UTC), rs[0].SentAt)

	st, err = rs[1].Derived()
	require.NoError(t, err)
	assert.Equal(t, model.SignerDeclined, st)
	assert.Equal(t, "Jeg ønsker ikke\nå signere.", rs[1].Message(st))

	_, err = ParseRecipients([]byte("not json"))
	assert.ErrorIs(t, err, ErrParse)
}
