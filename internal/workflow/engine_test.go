package workflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"signflow/internal/event"
	"signflow/internal/model"
	"signflow/internal/provider"
	"signflow/internal/provider/mocks"
	"signflow/internal/repository"
	"signflow/internal/repository/memory"
	"signflow/internal/storage"
)

const (
	testSignatureID = "sig-1"
	testEnvelopeID  = "env-1"
	signer1         = "11111111-1111-1111-1111-111111111111"
	signer2         = "22222222-2222-2222-2222-222222222222"
	originalKey     = "signatures/sig-1/original.pdf"
)

var (
	t0    = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	clock = time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC)
)

// objectStore is an in-memory storage.Storage.
type objectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	putErr  error
}

func newObjectStore() *objectStore {
	return &objectStore{objects: map[string][]byte{originalKey: []byte("original")}}
}

func (s *objectStore) Put(_ context.Context, key string, r io.Reader, _ storage.PutObjectOptions) (storage.ObjectInfo, error) {
	if s.putErr != nil {
		return storage.ObjectInfo{}, s.putErr
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = b
	return storage.ObjectInfo{Key: key, Size: int64(len(b))}, nil
}

func (s *objectStore) Get(_ context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[key]
	if !ok {
		return nil, storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), storage.ObjectInfo{Key: key, Size: int64(len(b))}, nil
}

func (s *objectStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *objectStore) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://objects.test/" + key, nil
}

func (s *objectStore) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.objects))
	for k := range s.objects {
		out = append(out, k)
	}
	return out
}

type fixture struct {
	repo    *memory.SignatureMemory
	gateway *mocks.MockGateway
	objects *objectStore
	metrics *Metrics
	engine  *Engine
}

func newFixture(t *testing.T, sigStatus model.SignatureStatus, s1, s2 model.SignerStatus) *fixture {
	t.Helper()
	f := &fixture{
		repo:    memory.NewSignatureMemory(),
		gateway: new(mocks.MockGateway),
		objects: newObjectStore(),
	}
	m, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	f.metrics = m

	_, err = f.repo.Create(context.Background(), &model.Signature{
		ID:    testSignatureID,
		Title: "Test contract",
		Document: model.Document{
			Filename:    "contract.pdf",
			StoragePath: originalKey,
			Size:        8,
			ContentType: "application/pdf",
		},
		Status:    sigStatus,
		StatusAt:  t0,
		CreatedAt: t0,
		Signers: []model.Signer{
			{ID: signer1, SigningOrder: 1, FullName: "John Accentué", Email: "john@example.com", Status: s1, StatusAt: t0},
			{ID: signer2, SigningOrder: 2, FullName: "Paul Doe", Email: "paul@example.com", Status: s2, StatusAt: t0},
		},
	})
	require.NoError(t, err)
	require.NoError(t, f.repo.SetEnvelopeID(context.Background(), testSignatureID, testEnvelopeID))

	f.engine = NewEngine(f.repo, f.gateway, f.objects, zap.NewNop(),
		WithClock(func() time.Time { return clock }),
		WithMetrics(m),
		WithProviderTimeout(time.Second),
	)
	return f
}

func (f *fixture) signature(t *testing.T) *model.Signature {
	t.Helper()
	sig, err := f.repo.FindByID(context.Background(), testSignatureID)
	require.NoError(t, err)
	return sig
}

func (f *fixture) expectSignedDocument(content string) {
	f.gateway.On("GetSignedDocument", mock.Anything, testEnvelopeID).
		Return(io.NopCloser(strings.NewReader(content)), nil).Once()
}

type recipient struct {
	id     string
	order  int
	status string
	at     time.Time
	reason string
}

// connectXML renders a minimal Connect XML notification.
func connectXML(envStatus string, envAt time.Time, rs ...recipient) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="utf-8"?>
<DocuSignEnvelopeInformation xmlns="http://www.docusign.net/API/3.0"><EnvelopeStatus><RecipientStatuses>`)
	for _, r := range rs {
		field := map[string]string{
			"Sent":      "Sent",
			"Delivered": "Delivered",
			"Completed": "Signed",
			"Declined":  "Declined",
		}[r.status]
		fmt.Fprintf(&b, `<RecipientStatus><Type>Signer</Type><RoutingOrder>%d</RoutingOrder><Status>%s</Status>`, r.order, r.status)
		if field != "" {
			fmt.Fprintf(&b, `<%s>%s</%s>`, field, r.at.Format(time.RFC3339), field)
		}
		if r.reason != "" {
			fmt.Fprintf(&b, `<DeclineReason>%s</DeclineReason>`, r.reason)
		}
		fmt.Fprintf(&b, `<ClientUserId>%s</ClientUserId><RecipientId>%s</RecipientId></RecipientStatus>`, r.id, r.id)
	}
	fmt.Fprintf(&b, `</RecipientStatuses><TimeGenerated>%s</TimeGenerated><EnvelopeID>%s</EnvelopeID><Status>%s</Status>`,
		envAt.Add(time.Second).Format(time.RFC3339), testEnvelopeID, envStatus)
	if envStatus != "Sent" {
		fmt.Fprintf(&b, `<%s>%s</%s>`, envStatus, envAt.Format(time.RFC3339), envStatus)
	}
	fmt.Fprintf(&b, `<Sent>%s</Sent></EnvelopeStatus><TimeZoneOffset>0</TimeZoneOffset></DocuSignEnvelopeInformation>`, t0.Format(time.RFC3339))
	return []byte(b.String())
}

func TestHandleCallback_AllSentStartsSignature(t *testing.T) {
	f := newFixture(t, model.SignatureDraft, model.SignerDraft, model.SignerDraft)
	sentAt := t0.Add(time.Minute)

	err := f.engine.HandleCallback(context.Background(), connectXML("Sent", sentAt,
		recipient{id: signer1, order: 1, status: "Sent", at: sentAt},
		recipient{id: signer2, order: 2, status: "Sent", at: sentAt.Add(time.Second)},
	))
	require.NoError(t, err)

	sig := f.signature(t)
	assert.Equal(t, model.SignatureSent, sig.Status)
	assert.True(t, sig.StatusAt.Equal(t0), "sent time comes from the envelope")
	for i, s := range sig.Signers {
		assert.Equal(t, model.SignerSent, s.Status, "signer %d", i+1)
	}
	assert.True(t, sig.Signer(signer2).StatusAt.Equal(sentAt.Add(time.Second)))
	f.gateway.AssertExpectations(t)
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.transitions.WithLabelValues("signer", "sent"))+
		testutil.ToFloat64(f.metrics.transitions.WithLabelValues("signature", "sent")))
}

func TestHandleCallback_SentWithoutAllRecipientsAdvancesLastOnly(t *testing.T) {
	f := newFixture(t, model.SignatureDraft, model.SignerDraft, model.SignerDraft)

	err := f.engine.HandleCallback(context.Background(), connectXML("Sent", t0,
		recipient{id: signer1, order: 1, status: "Delivered", at: t0.Add(2 * time.Minute)},
		recipient{id: signer2, order: 2, status: "Sent", at: t0.Add(time.Minute)},
	))
	require.NoError(t, err)

	sig := f.signature(t)
	assert.Equal(t, model.SignatureDraft, sig.Status)
	assert.Equal(t, model.SignerDelivered, sig.Signer(signer1).Status)
	assert.Equal(t, model.SignerDraft, sig.Signer(signer2).Status)
}

func TestHandleCallback_CompletionRequiresAllSigners(t *testing.T) {
	f := newFixture(t, model.SignatureSent, model.SignerSent, model.SignerSent)
	signed1 := t0.Add(time.Hour)
	signed2 := t0.Add(2 * time.Hour)

	f.expectSignedDocument("signed-by-1")
	err := f.engine.HandleCallback(context.Background(), connectXML("Sent", t0,
		recipient{id: signer1, order: 1, status: "Completed", at: signed1},
		recipient{id: signer2, order: 2, status: "Sent", at: t0},
	))
	require.NoError(t, err)

	sig := f.signature(t)
	assert.Equal(t, model.SignatureSent, sig.Status)
	assert.Equal(t, model.SignerCompleted, sig.Signer(signer1).Status)
	assert.True(t, sig.Signer(signer1).StatusAt.Equal(signed1))
	assert.Equal(t, model.SignerSent, sig.Signer(signer2).Status)
	assert.Equal(t, "contract.pdf", sig.Document.Filename)
	assert.NotEqual(t, originalKey, sig.Document.StoragePath)
	assert.True(t, strings.HasPrefix(sig.Document.StoragePath, "signatures/sig-1/"))
	assert.Contains(t, f.objects.deleted, originalKey)
	firstSigned := sig.Document.StoragePath

	f.expectSignedDocument("signed-by-all")
	err = f.engine.HandleCallback(context.Background(), connectXML("Completed", signed2,
		recipient{id: signer1, order: 1, status: "Completed", at: signed1},
		recipient{id: signer2, order: 2, status: "Completed", at: signed2},
	))
	require.NoError(t, err)

	sig = f.signature(t)
	assert.Equal(t, model.SignatureCompleted, sig.Status)
	assert.True(t, sig.StatusAt.Equal(signed2))
	assert.Equal(t, model.SignerCompleted, sig.Signer(signer2).Status)
	assert.ElementsMatch(t, []string{sig.Document.StoragePath}, f.objects.keys())
	assert.Contains(t, f.objects.deleted, firstSigned)

	rc, _, err := f.objects.Get(context.Background(), sig.Document.StoragePath)
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	assert.Equal(t, "signed-by-all", string(body))

	f.gateway.AssertNumberOfCalls(t, "GetSignedDocument", 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.replacements))
}

func TestHandleCallback_CompletedTwiceFetchesOnce(t *testing.T) {
	f := newFixture(t, model.SignatureSent, model.SignerSent, model.SignerSent)
	payload := connectXML("Sent", t0,
		recipient{id: signer2, order: 2, status: "Sent", at: t0},
		recipient{id: signer1, order: 1, status: "Completed", at: t0.Add(time.Hour)},
	)

	f.expectSignedDocument("signed")
	require.NoError(t, f.engine.HandleCallback(context.Background(), payload))
	first := f.signature(t)

	require.NoError(t, f.engine.HandleCallback(context.Background(), payload))
	second := f.signature(t)

	assert.Equal(t, first, second)
	f.gateway.AssertNumberOfCalls(t, "GetSignedDocument", 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.replacements))
}

func TestHandleCallback_DeclinePropagates(t *testing.T) {
	f := newFixture(t, model.SignatureSent, model.SignerCompleted, model.SignerDelivered)
	declinedAt := t0.Add(3 * time.Hour)

	err := f.engine.HandleCallback(context.Background(), connectXML("Declined", declinedAt,
		recipient{id: signer1, order: 1, status: "Completed", at: t0.Add(time.Hour)},
		recipient{id: signer2, order: 2, status: "Declined", at: declinedAt, reason: "Do not sign a test!"},
	))
	require.NoError(t, err)

	sig := f.signature(t)
	assert.Equal(t, model.SignatureDeclined, sig.Status)
	assert.True(t, sig.StatusAt.Equal(declinedAt))
	assert.Equal(t, model.SignerCompleted, sig.Signer(signer1).Status)
	s2 := sig.Signer(signer2)
	assert.Equal(t, model.SignerDeclined, s2.Status)
	assert.Equal(t, "Do not sign a test!", s2.StatusDetails)
	assert.Equal(t, originalKey, sig.Document.StoragePath)
	f.gateway.AssertNotCalled(t, "GetSignedDocument", mock.Anything, mock.Anything)
}

func TestHandleCallback_TerminalSignature(t *testing.T) {
	tests := []struct {
		name      string
		sigStatus model.SignatureStatus
		s1, s2    model.SignerStatus
		payload   []byte
		wantErr   error
	}{
		{
			name:      "late delivered on completed signature is skipped",
			sigStatus: model.SignatureCompleted,
			s1:        model.SignerCompleted,
			s2:        model.SignerCompleted,
			payload: connectXML("Delivered", t0,
				recipient{id: signer1, order: 1, status: "Delivered", at: t0}),
		},
		{
			name:      "complete after decline conflicts",
			sigStatus: model.SignatureDeclined,
			s1:        model.SignerSent,
			s2:        model.SignerDeclined,
			payload: connectXML("Sent", t0,
				recipient{id: signer1, order: 1, status: "Completed", at: t0.Add(time.Hour)}),
			wantErr: ErrInconsistentState,
		},
		{
			name:      "decline after completion conflicts",
			sigStatus: model.SignatureCompleted,
			s1:        model.SignerCompleted,
			s2:        model.SignerCompleted,
			payload: connectXML("Sent", t0,
				recipient{id: signer2, order: 2, status: "Declined", at: t0.Add(time.Hour), reason: "late"}),
			wantErr: ErrInconsistentState,
		},
		{
			name:      "envelope completed after decline conflicts",
			sigStatus: model.SignatureDeclined,
			s1:        model.SignerDeclined,
			s2:        model.SignerSent,
			payload:   connectXML("Completed", t0.Add(time.Hour)),
			wantErr:   ErrInconsistentState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.sigStatus, tt.s1, tt.s2)
			before := f.signature(t)

			err := f.engine.HandleCallback(context.Background(), tt.payload)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}

			assert.Equal(t, before, f.signature(t))
			f.gateway.AssertNotCalled(t, "GetSignedDocument", mock.Anything, mock.Anything)
		})
	}
}

func TestHandleCallback_StaleSignerEventSkipped(t *testing.T) {
	f := newFixture(t, model.SignatureSent, model.SignerDelivered, model.SignerSent)
	before := f.signature(t)

	err := f.engine.HandleCallback(context.Background(), connectXML("Sent", t0,
		recipient{id: signer2, order: 2, status: "Delivered", at: t0},
		recipient{id: signer1, order: 1, status: "Sent", at: t0.Add(time.Minute)},
	))
	require.NoError(t, err)
	assert.Equal(t, before, f.signature(t))
}

func TestHandleCallback_Errors(t *testing.T) {
	t.Run("parse error", func(t *testing.T) {
		f := newFixture(t, model.SignatureSent, model.SignerSent, model.SignerSent)
		err := f.engine.HandleCallback(context.Background(), []byte("not a payload"))
		require.ErrorIs(t, err, event.ErrParse)
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.events.WithLabelValues("callback", "parse_error")))
	})

	t.Run("unknown envelope", func(t *testing.T) {
		f := newFixture(t, model.SignatureSent, model.SignerSent, model.SignerSent)
		raw := bytes.Replace(connectXML("Delivered", t0), []byte(testEnvelopeID), []byte("env-unknown"), 1)
		err := f.engine.HandleCallback(context.Background(), raw)
		require.ErrorIs(t, err, ErrNotFound)
		require.ErrorIs(t, err, ErrInconsistentState)
	})

	t.Run("unknown signer", func(t *testing.T) {
		f := newFixture(t, model.SignatureSent, model.SignerSent, model.SignerSent)
		err := f.engine.HandleCallback(context.Background(), connectXML("Sent", t0,
			recipient{id: "33333333-3333-3333-3333-333333333333", order: 3, status: "Delivered", at: t0}))
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("provider error leaves state unchanged", func(t *testing.T) {
		f := newFixture(t, model.SignatureSent, model.SignerSent, model.SignerSent)
		before := f.signature(t)
		f.gateway.On("GetSignedDocument", mock.Anything, testEnvelopeID).
			Return(nil, errors.New("connection reset")).Once()

		err := f.engine.HandleCallback(context.Background(), connectXML("Sent", t0,
			recipient{id: signer1, order: 1, status: "Completed", at: t0.Add(time.Hour)}))
		require.ErrorIs(t, err, provider.ErrProvider)
		assert.Equal(t, before, f.signature(t))
		assert.ElementsMatch(t, []string{originalKey}, f.objects.keys())
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.events.WithLabelValues("callback", "provider_error")))
	})

	t.Run("upload failure is a store error", func(t *testing.T) {
		f := newFixture(t, model.SignatureSent, model.SignerSent, model.SignerSent)
		before := f.signature(t)
		f.objects.putErr = errors.New("bucket unavailable")
		f.expectSignedDocument("signed")

		err := f.engine.HandleCallback(context.Background(), connectXML("Sent", t0,
			recipient{id: signer1, order: 1, status: "Completed", at: t0.Add(time.Hour)}))
		require.ErrorIs(t, err, ErrStore)
		assert.Equal(t, before, f.signature(t))
	})
}

type failingRepo struct {
	repository.SignatureRepository
	err error
}

func (r failingRepo) InTx(ctx context.Context, fn func(ctx context.Context, store repository.SignatureStore) error) error {
	return r.SignatureRepository.InTx(ctx, func(ctx context.Context, store repository.SignatureStore) error {
		return fn(ctx, failingStore{SignatureStore: store, err: r.err})
	})
}

type failingStore struct {
	repository.SignatureStore
	err error
}

func (s failingStore) SaveSignature(context.Context, *model.Signature) error { return s.err }

func TestHandleCallback_StoreFailureRollsBack(t *testing.T) {
	f := newFixture(t, model.SignatureSent, model.SignerSent, model.SignerSent)
	before := f.signature(t)
	engine := NewEngine(failingRepo{SignatureRepository: f.repo, err: errors.New("disk full")}, f.gateway, f.objects, zap.NewNop())
	f.expectSignedDocument("signed")

	err := engine.HandleCallback(context.Background(), connectXML("Sent", t0,
		recipient{id: signer1, order: 1, status: "Completed", at: t0.Add(time.Hour)}))
	require.ErrorIs(t, err, ErrStore)

	after := f.signature(t)
	assert.Equal(t, before, after)
	assert.Equal(t, model.SignerSent, after.Signer(signer1).Status)
	assert.ElementsMatch(t, []string{originalKey}, f.objects.keys())
	require.Len(t, f.objects.deleted, 1)
	assert.NotEqual(t, originalKey, f.objects.deleted[0])
}

func TestHandleSignerReturn_CancelShortCircuits(t *testing.T) {
	repo := memory.NewSignatureMemory()
	gateway := new(mocks.MockGateway)
	engine := NewEngine(repo, gateway, newObjectStore(), zap.NewNop())

	out, err := engine.HandleSignerReturn(context.Background(), "unknown-signer", url.Values{"event": {"cancel"}})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCanceled, out.Kind)
	assert.Equal(t, "cancel", out.Event)
	gateway.AssertExpectations(t)
	assert.Empty(t, gateway.Calls)
}

func TestHandleSignerReturn(t *testing.T) {
	signedAt := t0.Add(time.Hour)

	tests := []struct {
		name       string
		s1, s2     model.SignerStatus
		report     model.RecipientStatus
		signedDoc  bool
		wantKind   OutcomeKind
		wantSigner model.SignerStatus
		wantSig    model.SignatureStatus
		wantAt     time.Time
		wantDetail string
	}{
		{
			name:       "failed access code wins over sent",
			s1:         model.SignerSent,
			s2:         model.SignerSent,
			report:     model.RecipientStatus{ClientUserID: signer1, Status: "sent", AccessCodeResult: "Failed", SentAt: t0},
			wantKind:   OutcomeError,
			wantSigner: model.SignerAuthenticationFailed,
			wantSig:    model.SignatureSent,
			wantAt:     t0,
		},
		{
			name:       "auto responded",
			s1:         model.SignerSent,
			s2:         model.SignerSent,
			report:     model.RecipientStatus{ClientUserID: signer1, Status: "autoresponded"},
			wantKind:   OutcomeError,
			wantSigner: model.SignerAutoResponded,
			wantSig:    model.SignatureSent,
			wantAt:     clock,
		},
		{
			name:       "declined",
			s1:         model.SignerDelivered,
			s2:         model.SignerSent,
			report:     model.RecipientStatus{ClientUserID: signer1, Status: "declined", DeclinedReason: "No thanks", DeclinedAt: signedAt},
			wantKind:   OutcomeDeclined,
			wantSigner: model.SignerDeclined,
			wantSig:    model.SignatureDeclined,
			wantAt:     signedAt,
			wantDetail: "No thanks",
		},
		{
			name:       "completed by last signer",
			s1:         model.SignerDelivered,
			s2:         model.SignerCompleted,
			report:     model.RecipientStatus{ClientUserID: signer1, Status: "completed", SignedAt: signedAt},
			signedDoc:  true,
			wantKind:   OutcomeSigned,
			wantSigner: model.SignerCompleted,
			wantSig:    model.SignatureCompleted,
			wantAt:     signedAt,
		},
		{
			name:       "completed with others pending",
			s1:         model.SignerDelivered,
			s2:         model.SignerSent,
			report:     model.RecipientStatus{ClientUserID: signer1, Status: "completed", SignedAt: signedAt},
			signedDoc:  true,
			wantKind:   OutcomeSigned,
			wantSigner: model.SignerCompleted,
			wantSig:    model.SignatureSent,
			wantAt:     signedAt,
		},
		{
			name:       "delivered is not actionable",
			s1:         model.SignerSent,
			s2:         model.SignerSent,
			report:     model.RecipientStatus{ClientUserID: signer1, Status: "delivered", DeliveredAt: signedAt},
			wantKind:   OutcomeCanceled,
			wantSigner: model.SignerSent,
			wantSig:    model.SignatureSent,
			wantAt:     t0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, model.SignatureSent, tt.s1, tt.s2)
			report := tt.report
			f.gateway.On("GetRecipientStatus", mock.Anything, testEnvelopeID, mock.MatchedBy(func(s model.Signer) bool {
				return s.ID == signer1
			})).Return(&report, nil).Once()
			if tt.signedDoc {
				f.expectSignedDocument("signed")
			}

			out, err := f.engine.HandleSignerReturn(context.Background(), signer1, url.Values{"event": {"signing_complete"}})
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, out.Kind)
			assert.Equal(t, "signing_complete", out.Event)

			sig := f.signature(t)
			assert.Equal(t, tt.wantSig, sig.Status)
			s := sig.Signer(signer1)
			assert.Equal(t, tt.wantSigner, s.Status)
			assert.True(t, s.StatusAt.Equal(tt.wantAt), "status_at = %s", s.StatusAt)
			assert.Equal(t, tt.wantDetail, s.StatusDetails)
			f.gateway.AssertExpectations(t)
		})
	}
}

func TestHandleSignerReturn_Errors(t *testing.T) {
	t.Run("unknown signer", func(t *testing.T) {
		f := newFixture(t, model.SignatureSent, model.SignerSent, model.SignerSent)
		out, err := f.engine.HandleSignerReturn(context.Background(), "nobody", url.Values{})
		require.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, OutcomeError, out.Kind)
		assert.Empty(t, f.gateway.Calls)
	})

	t.Run("provider failure", func(t *testing.T) {
		f := newFixture(t, model.SignatureSent, model.SignerSent, model.SignerSent)
		before := f.signature(t)
		f.gateway.On("GetRecipientStatus", mock.Anything, testEnvelopeID, mock.Anything).
			Return(nil, context.DeadlineExceeded).Once()

		out, err := f.engine.HandleSignerReturn(context.Background(), signer1, url.Values{})
		require.ErrorIs(t, err, provider.ErrProvider)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, OutcomeError, out.Kind)
		assert.Equal(t, before, f.signature(t))
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.events.WithLabelValues("return", "provider_error")))
	})

	t.Run("unknown provider status", func(t *testing.T) {
		f := newFixture(t, model.SignatureSent, model.SignerSent, model.SignerSent)
		f.gateway.On("GetRecipientStatus", mock.Anything, testEnvelopeID, mock.Anything).
			Return(&model.RecipientStatus{ClientUserID: signer1, Status: "voided"}, nil).Once()

		out, err := f.engine.HandleSignerReturn(context.Background(), signer1, url.Values{})
		require.ErrorIs(t, err, event.ErrParse)
		assert.Equal(t, OutcomeError, out.Kind)
	})
}

func TestEngine_ConcurrentCompletionsReplaceOnce(t *testing.T) {
	f := newFixture(t, model.SignatureSent, model.SignerSent, model.SignerCompleted)
	f.gateway.On("GetSignedDocument", mock.Anything, testEnvelopeID).
		Return(func(context.Context, string) io.ReadCloser { return io.NopCloser(strings.NewReader("signed")) }, nil)
	payload := connectXML("Sent", t0,
		recipient{id: signer1, order: 1, status: "Completed", at: t0.Add(time.Hour)})

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- f.engine.HandleCallback(context.Background(), payload)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	sig := f.signature(t)
	assert.Equal(t, model.SignatureCompleted, sig.Status)
	f.gateway.AssertNumberOfCalls(t, "GetSignedDocument", 1)
	assert.ElementsMatch(t, []string{sig.Document.StoragePath}, f.objects.keys())
	assert.Zero(t, f.engine.locks.size())
}

func TestResultLabel(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{fmt.Errorf("x: %w", event.ErrParse), "parse_error"},
		{fmt.Errorf("%w: timeout", provider.ErrProvider), "provider_error"},
		{provider.ErrRecipientNotFound, "provider_error"},
		{fmt.Errorf("signer x: %w", ErrNotFound), "not_found"},
		{ErrInconsistentState, "inconsistent_state"},
		{fmt.Errorf("%w: boom", ErrStore), "store_error"},
		{errors.New("other"), "error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, resultLabel(tt.err), "%v", tt.err)
	}
}
