package handler

import (
	"database/sql"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"signflow/docs"
	"signflow/internal/http/middleware"
	"signflow/internal/service"
	"signflow/internal/workflow"
)

// Config carries what the routes need besides their collaborators.
type Config struct {
	// PublicURL is the externally reachable base of this service.
	PublicURL string
	// ConnectSecret verifies Connect HMAC headers when non-empty.
	ConnectSecret string
	// UseCallback registers the callback URL on new envelopes.
	UseCallback bool
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// CallbackPath is where DocuSign Connect posts notifications.
const CallbackPath = "/callbacks/docusign"

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
func RegisterRoutes(app *fiber.App, db *sql.DB, sigSvc service.SignatureService, rec workflow.Reconciler, cfg Config) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	var callbackURL string
	if cfg.UseCallback {
		callbackURL = strings.TrimRight(cfg.PublicURL, "/") + CallbackPath
	}

	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())
	if cfg.Gatherer != nil {
		app.Get("/metrics", Metrics(cfg.Gatherer))
	}

	docs.SwaggerInfo.Host, docs.SwaggerInfo.Schemes = swaggerTarget(cfg.PublicURL)
	app.Get("/swagger/*", swagger.HandlerDefault)

	app.Post(CallbackPath, middleware.ConnectSignature(cfg.ConnectSecret), DocuSignCallback(rec, log))

	app.Get("/signatures", ListSignatures(sigSvc))
	app.Post("/signatures", CreateSignature(sigSvc, callbackURL))
	app.Get("/signatures/:id", GetSignature(sigSvc))
	app.Get("/signatures/:id/document", SignatureDocument(sigSvc))

	app.Get("/signers/:id/sign", SignerSign(sigSvc, cfg.PublicURL))
	app.Get("/signers/:id/return", SignerReturn(rec, cfg.PublicURL, log))
}

// swaggerTarget derives the host and schemes advertised by the API docs. An
// empty or relative publicURL leaves both empty so the UI uses its own origin.
func swaggerTarget(publicURL string) (string, []string) {
	u, err := url.Parse(strings.TrimSpace(publicURL))
	if err != nil || u.Host == "" {
		return "", []string{}
	}
	if u.Scheme == "" {
		return u.Host, []string{}
	}
	return u.Host, []string{u.Scheme}
}
