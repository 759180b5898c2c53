package handler

import (
	"net/url"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"signflow/internal/workflow"
)

// DocuSignCallback godoc
// @Summary Receive a DocuSign Connect notification
// @Tags callbacks
// @Accept xml,json
// @Success 200
// @Failure 400 {object} errorPayload
// @Failure 409 {object} errorPayload
// @Failure 503 {object} errorPayload
// @Router /callbacks/docusign [post]
func DocuSignCallback(rec workflow.Reconciler, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// fasthttp reuses the body buffer once the handler returns.
		body := append([]byte(nil), c.Body()...)
		if err := rec.HandleCallback(c.UserContext(), body); err != nil {
			status, code := workflowStatus(err)
			log.Warn("callback rejected",
				zap.String("request_id", requestIDFromCtx(c)),
				zap.Int("status", status),
				zap.Error(err),
			)
			return writeError(c, status, code, "callback not applied")
		}
		c.Status(fiber.StatusOK)
		return nil
	}
}

// SignerReturn godoc
// @Summary Reconcile a signer coming back from the signing page
// @Tags signers
// @Produce json
// @Param id path string true "signer id"
// @Param event query string false "provider event, e.g. signing_complete or cancel"
// @Success 302 {object} workflow.Outcome
// @Router /signers/{id}/return [get]
func SignerReturn(rec workflow.Reconciler, publicURL string, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		query, err := url.ParseQuery(string(c.Request().URI().QueryString()))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_QUERY", "invalid query string")
		}

		out, err := rec.HandleSignerReturn(c.UserContext(), id, query)
		if err != nil {
			log.Warn("signer return failed",
				zap.String("request_id", requestIDFromCtx(c)),
				zap.String("signer_id", id),
				zap.Error(err),
			)
			out.Kind = workflow.OutcomeError
		}
		c.Location(signerURL(publicURL, id, string(out.Kind)))
		return c.Status(fiber.StatusFound).JSON(out)
	}
}
