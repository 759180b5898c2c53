package docusign

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signflow/internal/config"
	"signflow/internal/model"
	"signflow/internal/provider"
)

func newTestClient(t *testing.T, h http.HandlerFunc, mutate ...func(*config.DocuSignConfig)) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := config.DocuSignConfig{
		AccountURL:    srv.URL + "/accounts/acct",
		Username:      "user",
		Password:      "secret",
		IntegratorKey: "key",
		Timeout:       2 * time.Second,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := New(cfg, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c
}

func TestNew_Validation(t *testing.T) {
	_, err := New(config.DocuSignConfig{})
	assert.Error(t, err)

	_, err = New(config.DocuSignConfig{RootURL: "https://x", AccountID: "1"})
	assert.Error(t, err)

	_, err = New(config.DocuSignConfig{RootURL: "https://x", AccountID: "1", AppToken: "tok"})
	assert.NoError(t, err)
}

func TestClient_CreateEnvelopeFromDocument(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/accounts/acct/envelopes", r.URL.Path)

		var creds map[string]string
		require.NoError(t, json.Unmarshal([]byte(r.Header.Get("X-DocuSign-Authentication")), &creds))
		assert.Equal(t, "user", creds["Username"])
		assert.Equal(t, "key", creds["IntegratorKey"])

		var def envelopeDefinition
		require.NoError(t, json.NewDecoder(r.Body).Decode(&def))
		assert.Equal(t, "sent", def.Status)
		assert.Equal(t, "Please sign", def.EmailSubject)
		require.Len(t, def.Documents, 1)
		raw, _ := base64.StdEncoding.DecodeString(def.Documents[0].DocumentBase64)
		assert.Equal(t, "%PDF-1.4", string(raw))
		assert.Equal(t, "1", def.Documents[0].DocumentID)
		require.Len(t, def.Recipients.Signers, 2)
		assert.Equal(t, "s1", def.Recipients.Signers[0].RecipientID)
		assert.Equal(t, "s1", def.Recipients.Signers[0].ClientUserID)
		assert.Equal(t, "2", def.Recipients.Signers[1].RoutingOrder)
		require.NotNil(t, def.EventNotification)
		assert.Equal(t, "https://app.test/callbacks/docusign", def.EventNotification.URL)

		_, _ = w.Write([]byte(`{"envelopeId":"env-1","status":"sent"}`))
	})

	id, err := c.CreateEnvelope(context.Background(), provider.EnvelopeRequest{
		Subject:     "Please sign",
		CallbackURL: "https://app.test/callbacks/docusign",
		Documents:   []provider.EnvelopeDocument{{Name: "contract.pdf", Content: strings.NewReader("%PDF-1.4")}},
		Recipients: []provider.EnvelopeRecipient{
			{ID: "s1", FullName: "A", Email: "a@example.com", RoutingOrder: 1},
			{ID: "s2", FullName: "B", Email: "b@example.com", RoutingOrder: 2},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "env-1", id)
}

func TestClient_CreateEnvelopeFromTemplate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var def envelopeDefinition
		require.NoError(t, json.NewDecoder(r.Body).Decode(&def))
		assert.Equal(t, "tpl-1", def.TemplateID)
		assert.Nil(t, def.Recipients)
		assert.Nil(t, def.EventNotification)
		require.Len(t, def.TemplateRoles, 1)
		assert.Equal(t, "Buyer", def.TemplateRoles[0].RoleName)
		_, _ = w.Write([]byte(`{"envelopeId":"env-2"}`))
	}, func(cfg *config.DocuSignConfig) { cfg.AppToken = "tok" })

	id, err := c.CreateEnvelope(context.Background(), provider.EnvelopeRequest{
		TemplateID: "tpl-1",
		Recipients: []provider.EnvelopeRecipient{{ID: "s1", RoutingOrder: 1, RoleName: "Buyer"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "env-2", id)
}

func TestClient_TemplateRoles(t *testing.T) {
	tests := []struct {
		name    string
		signers string
		want    []string
	}{
		{
			name:    "in order",
			signers: `[{"roleName":"Buyer","routingOrder":"1"},{"roleName":"Seller","routingOrder":"2"}]`,
			want:    []string{"Buyer", "Seller"},
		},
		{
			name:    "sorted by routing order",
			signers: `[{"roleName":"Witness","routingOrder":"3"},{"roleName":"Buyer","routingOrder":"1"},{"roleName":"Seller","routingOrder":"2"}]`,
			want:    []string{"Buyer", "Seller", "Witness"},
		},
		{
			name:    "numeric not lexical",
			signers: `[{"roleName":"Tenth","routingOrder":"10"},{"roleName":"Second","routingOrder":"2"}]`,
			want:    []string{"Second", "Tenth"},
		},
		{
			name:    "same order keeps payload order",
			signers: `[{"roleName":"B","routingOrder":"1"},{"roleName":"A","routingOrder":"1"}]`,
			want:    []string{"B", "A"},
		},
		{
			name:    "missing order sorts last",
			signers: `[{"roleName":"CC"},{"roleName":"Buyer","routingOrder":"1"}]`,
			want:    []string{"Buyer", "CC"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/accounts/acct/templates/tpl-1", r.URL.Path)
				_, _ = w.Write([]byte(`{"recipients":{"signers":` + tt.signers + `}}`))
			})

			roles, err := c.TemplateRoles(context.Background(), "tpl-1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, roles)
		})
	}
}

func TestClient_GetRecipientStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/acct/envelopes/env-1/recipients", r.URL.Path)
		_, _ = w.Write([]byte(`{"signers":[
			{"recipientId":"s1","clientUserId":"s1","routingOrder":"1","status":"completed","signedDateTime":"2024-03-01T10:00:00Z"},
			{"recipientId":"s2","clientUserId":"s2","routingOrder":"2","status":"sent"}
		]}`))
	})

	t.Run("found", func(t *testing.T) {
		rs, err := c.GetRecipientStatus(context.Background(), "env-1", model.Signer{ID: "s1"})
		require.NoError(t, err)
		assert.Equal(t, "completed", rs.Status)
		assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), rs.SignedAt)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := c.GetRecipientStatus(context.Background(), "env-1", model.Signer{ID: "zz"})
		assert.ErrorIs(t, err, provider.ErrRecipientNotFound)
		assert.ErrorIs(t, err, provider.ErrProvider)
	})
}

func TestClient_GetSignedDocument(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/accounts/acct/envelopes/env-1/documents":
			_, _ = w.Write([]byte(`{"envelopeDocuments":[{"documentId":"certificate","name":"Summary"},{"documentId":"1","name":"contract.pdf"}]}`))
		case "/accounts/acct/envelopes/env-1/documents/1":
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte("signed-bytes"))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	rc, err := c.GetSignedDocument(context.Background(), "env-1")
	require.NoError(t, err)
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "signed-bytes", string(b))
}

func TestClient_GetSignedDocument_OnlyCertificate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"envelopeDocuments":[{"documentId":"certificate"}]}`))
	})

	_, err := c.GetSignedDocument(context.Background(), "env-1")
	assert.ErrorIs(t, err, provider.ErrProvider)
}

func TestClient_CreateRecipientView(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/acct/envelopes/env-1/views/recipient", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "s2", body["clientUserId"])
		assert.Equal(t, "2", body["routingOrder"])
		assert.Equal(t, "https://app.test/signers/s2/return", body["returnUrl"])
		_, _ = w.Write([]byte(`{"url":"https://demo.docusign.net/Signing/abc"}`))
	})

	u, err := c.CreateRecipientView(context.Background(), "env-1",
		model.Signer{ID: "s2", SigningOrder: 2, FullName: "B", Email: "b@example.com"},
		"https://app.test/signers/s2/return")
	require.NoError(t, err)
	assert.Equal(t, "https://demo.docusign.net/Signing/abc", u)
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantMsg string
	}{
		{
			name: "api error payload",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"errorCode":"ENVELOPE_DOES_NOT_EXIST","message":"Invalid envelope"}`))
			},
			wantMsg: "ENVELOPE_DOES_NOT_EXIST",
		},
		{
			name: "bare status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			wantMsg: "unexpected status 502",
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{not json`))
			},
			wantMsg: "parse error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)
			_, err := c.GetRecipientStatus(context.Background(), "env-1", model.Signer{ID: "s1"})
			require.Error(t, err)
			assert.True(t, errors.Is(err, provider.ErrProvider))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestClient_Timeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}, func(cfg *config.DocuSignConfig) { cfg.Timeout = 20 * time.Millisecond })

	_, err := c.TemplateRoles(context.Background(), "tpl-1")
	assert.ErrorIs(t, err, provider.ErrProvider)
}
