// Package docusign implements provider.Gateway on top of the DocuSign eSignature REST API.
package docusign

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"signflow/internal/config"
	"signflow/internal/event"
	"signflow/internal/model"
	"signflow/internal/provider"
)

const certificateDocumentID = "certificate"

// Client is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	authz   func(*http.Request)
	logger  *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the instrumented default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for request logs.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

var _ provider.Gateway = (*Client)(nil)

// New builds a client from explicit configuration. Nothing is read from the environment here.
func New(cfg config.DocuSignConfig, opts ...Option) (*Client, error) {
	if cfg.AccountURL == "" && (cfg.RootURL == "" || cfg.AccountID == "") {
		return nil, errors.New("docusign root url and account id are required")
	}
	authz, err := authorizer(cfg)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL: cfg.BaseURL(),
		http:    &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		timeout: cfg.Timeout,
		authz:   authz,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func authorizer(cfg config.DocuSignConfig) (func(*http.Request), error) {
	if cfg.AppToken != "" {
		bearer := "Bearer " + cfg.AppToken
		return func(r *http.Request) { r.Header.Set("Authorization", bearer) }, nil
	}
	if cfg.Username == "" || cfg.Password == "" || cfg.IntegratorKey == "" {
		return nil, errors.New("docusign credentials are required")
	}
	creds, err := json.Marshal(map[string]string{
		"Username":      cfg.Username,
		"Password":      cfg.Password,
		"IntegratorKey": cfg.IntegratorKey,
	})
	if err != nil {
		return nil, err
	}
	header := string(creds)
	return func(r *http.Request) { r.Header.Set("X-DocuSign-Authentication", header) }, nil
}

type eventNotification struct {
	URL                   string            `json:"url"`
	LoggingEnabled        string            `json:"loggingEnabled"`
	RequireAcknowledgment string            `json:"requireAcknowledgment"`
	IncludeDocuments      string            `json:"includeDocuments"`
	EnvelopeEvents        []envelopeEvent   `json:"envelopeEvents"`
	RecipientEvents       []recipientEvent  `json:"recipientEvents"`
	EventData             map[string]string `json:"eventData,omitempty"`
}

type envelopeEvent struct {
	EnvelopeEventStatusCode string `json:"envelopeEventStatusCode"`
}

type recipientEvent struct {
	RecipientEventStatusCode string `json:"recipientEventStatusCode"`
}

type document struct {
	DocumentID     string `json:"documentId"`
	Name           string `json:"name"`
	DocumentBase64 string `json:"documentBase64"`
}

type signer struct {
	RecipientID  string `json:"recipientId,omitempty"`
	ClientUserID string `json:"clientUserId"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	RoutingOrder string `json:"routingOrder"`
	RoleName     string `json:"roleName,omitempty"`
}

type envelopeDefinition struct {
	EmailSubject      string             `json:"emailSubject"`
	EmailBlurb        string             `json:"emailBlurb,omitempty"`
	Status            string             `json:"status"`
	TemplateID        string             `json:"templateId,omitempty"`
	TemplateRoles     []signer           `json:"templateRoles,omitempty"`
	Documents         []document         `json:"documents,omitempty"`
	Recipients        *recipients        `json:"recipients,omitempty"`
	EventNotification *eventNotification `json:"eventNotification,omitempty"`
}

type recipients struct {
	Signers []signer `json:"signers"`
}

func notificationFor(callbackURL string) *eventNotification {
	if callbackURL == "" {
		return nil
	}
	n := &eventNotification{
		URL:                   callbackURL,
		LoggingEnabled:        "true",
		RequireAcknowledgment: "true",
		IncludeDocuments:      "false",
	}
	for _, s := range []string{"Sent", "Delivered", "Completed", "Declined"} {
		n.EnvelopeEvents = append(n.EnvelopeEvents, envelopeEvent{EnvelopeEventStatusCode: s})
	}
	for _, s := range []string{"Sent", "Delivered", "Completed", "Declined", "AuthenticationFailed", "AutoResponded"} {
		n.RecipientEvents = append(n.RecipientEvents, recipientEvent{RecipientEventStatusCode: s})
	}
	return n
}

// CreateEnvelope creates and sends an envelope, from the request documents or from a template.
func (c *Client) CreateEnvelope(ctx context.Context, req provider.EnvelopeRequest) (string, error) {
	def := envelopeDefinition{
		EmailSubject:      req.Subject,
		EmailBlurb:        req.Blurb,
		Status:            "sent",
		EventNotification: notificationFor(req.CallbackURL),
	}
	if req.TemplateID != "" {
		def.TemplateID = req.TemplateID
		for _, r := range req.Recipients {
			def.TemplateRoles = append(def.TemplateRoles, signer{
				ClientUserID: r.ID,
				Email:        r.Email,
				Name:         r.FullName,
				RoutingOrder: strconv.Itoa(r.RoutingOrder),
				RoleName:     r.RoleName,
			})
		}
	} else {
		for i, d := range req.Documents {
			b, err := io.ReadAll(d.Content)
			if err != nil {
				return "", fmt.Errorf("read document %q: %w", d.Name, err)
			}
			def.Documents = append(def.Documents, document{
				DocumentID:     strconv.Itoa(i + 1),
				Name:           d.Name,
				DocumentBase64: base64.StdEncoding.EncodeToString(b),
			})
		}
		def.Recipients = &recipients{}
		for _, r := range req.Recipients {
			def.Recipients.Signers = append(def.Recipients.Signers, signer{
				RecipientID:  r.ID,
				ClientUserID: r.ID,
				Email:        r.Email,
				Name:         r.FullName,
				RoutingOrder: strconv.Itoa(r.RoutingOrder),
			})
		}
	}

	var out struct {
		EnvelopeID string `json:"envelopeId"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/envelopes", def, &out); err != nil {
		return "", err
	}
	if out.EnvelopeID == "" {
		return "", fmt.Errorf("%w: create envelope: empty envelope id", provider.ErrProvider)
	}
	return out.EnvelopeID, nil
}

// TemplateRoles returns the signer role names of a template ordered by routing order.
func (c *Client) TemplateRoles(ctx context.Context, templateID string) ([]string, error) {
	var out struct {
		Recipients struct {
			Signers []struct {
				RoleName     string `json:"roleName"`
				RoutingOrder string `json:"routingOrder"`
			} `json:"signers"`
		} `json:"recipients"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/templates/"+url.PathEscape(templateID), nil, &out); err != nil {
		return nil, err
	}
	signers := out.Recipients.Signers
	// Unparsable routing orders sort last; ties keep payload order.
	order := func(i int) int {
		n, err := strconv.Atoi(strings.TrimSpace(signers[i].RoutingOrder))
		if err != nil {
			return math.MaxInt
		}
		return n
	}
	idx := make([]int, len(signers))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return order(idx[a]) < order(idx[b]) })

	roles := make([]string, 0, len(signers))
	for _, i := range idx {
		roles = append(roles, signers[i].RoleName)
	}
	return roles, nil
}

// GetRecipientStatus lists the envelope recipients and returns the one correlated with signer.
func (c *Client) GetRecipientStatus(ctx context.Context, envelopeID string, s model.Signer) (*model.RecipientStatus, error) {
	path := "/envelopes/" + url.PathEscape(envelopeID) + "/recipients?include_extended=true"
	resp, cancel, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read recipients: %v", provider.ErrProvider, err)
	}
	list, err := event.ParseRecipients(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrProvider, err)
	}
	for i := range list {
		if list[i].CorrelationID() == s.ID {
			return &list[i], nil
		}
	}
	return nil, fmt.Errorf("%w: signer %s in envelope %s", provider.ErrRecipientNotFound, s.ID, envelopeID)
}

// GetSignedDocument streams the first envelope document, skipping the signing certificate.
func (c *Client) GetSignedDocument(ctx context.Context, envelopeID string) (io.ReadCloser, error) {
	var list struct {
		EnvelopeDocuments []struct {
			DocumentID string `json:"documentId"`
			Name       string `json:"name"`
		} `json:"envelopeDocuments"`
	}
	base := "/envelopes/" + url.PathEscape(envelopeID) + "/documents"
	if err := c.doJSON(ctx, http.MethodGet, base, nil, &list); err != nil {
		return nil, err
	}
	for _, d := range list.EnvelopeDocuments {
		if d.DocumentID == certificateDocumentID {
			continue
		}
		resp, cancel, err := c.send(ctx, http.MethodGet, base+"/"+url.PathEscape(d.DocumentID), nil)
		if err != nil {
			return nil, err
		}
		return &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}, nil
	}
	return nil, fmt.Errorf("%w: envelope %s has no signed document", provider.ErrProvider, envelopeID)
}

// CreateRecipientView returns the embedded signing URL for s.
func (c *Client) CreateRecipientView(ctx context.Context, envelopeID string, s model.Signer, returnURL string) (string, error) {
	body := map[string]string{
		"authenticationMethod": "none",
		"clientUserId":         s.ID,
		"recipientId":          s.ID,
		"email":                s.Email,
		"userName":             s.FullName,
		"returnUrl":            returnURL,
		"routingOrder":         strconv.Itoa(s.SigningOrder),
	}
	var out struct {
		URL string `json:"url"`
	}
	path := "/envelopes/" + url.PathEscape(envelopeID) + "/views/recipient"
	if err := c.doJSON(ctx, http.MethodPost, path, body, &out); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", fmt.Errorf("%w: recipient view: empty url", provider.ErrProvider)
	}
	return out.URL, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%w: encode request: %v", provider.ErrProvider, err)
		}
		body = bytes.NewReader(b)
	}
	resp, cancel, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer cancel()
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s %s: %v", provider.ErrProvider, method, path, err)
	}
	return nil
}

// send performs one request bounded by the client timeout. On success the caller
// must close the body and then call cancel.
func (c *Client) send(ctx context.Context, method, path string, body io.Reader) (*http.Response, context.CancelFunc, error) {
	cancel := context.CancelFunc(func() {})
	if c.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("%w: build request: %v", provider.ErrProvider, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authz(req)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("%w: %s %s: %v", provider.ErrProvider, method, path, err)
	}
	c.logger.Debug("docusign request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer cancel()
		defer resp.Body.Close()
		return nil, nil, statusError(method, path, resp)
	}
	return resp, cancel, nil
}

func statusError(method, path string, resp *http.Response) error {
	var apiErr struct {
		ErrorCode string `json:"errorCode"`
		Message   string `json:"message"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(raw, &apiErr) == nil && apiErr.ErrorCode != "" {
		return fmt.Errorf("%w: %s %s: %d %s: %s", provider.ErrProvider, method, path, resp.StatusCode, apiErr.ErrorCode, apiErr.Message)
	}
	return fmt.Errorf("%w: %s %s: unexpected status %d", provider.ErrProvider, method, path, resp.StatusCode)
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
