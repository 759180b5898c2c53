package handler

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"signflow/internal/service"
)

// ListSignatures godoc
// @Summary List signatures
// @Tags signatures
// @Produce json
// @Param limit query int false "page size" default(10)
// @Param offset query int false "page offset" default(0)
// @Success 200 {object} service.SignatureListResult
// @Router /signatures [get]
func ListSignatures(svc service.SignatureService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := svc.List(c.UserContext(), limit, offset)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// CreateSignature godoc
// @Summary Create a signature and send its envelope
// @Tags signatures
// @Accept multipart/form-data
// @Produce json
// @Param title formData string true "title"
// @Param signers formData string true "JSON array of {full_name, email}, in signing order"
// @Param template_id formData string false "provider template id"
// @Param subject formData string false "email subject"
// @Param blurb formData string false "email body"
// @Param file formData file false "document, required without template_id"
// @Success 201 {object} model.Signature
// @Router /signatures [post]
func CreateSignature(svc service.SignatureService, callbackURL string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var signers []service.SignerInput
		if raw := c.FormValue("signers"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &signers); err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_SIGNERS", "signers must be a JSON array")
			}
		}

		in := service.CreateInput{
			Title:       c.FormValue("title"),
			TemplateID:  c.FormValue("template_id"),
			Subject:     c.FormValue("subject"),
			Blurb:       c.FormValue("blurb"),
			Signers:     signers,
			CallbackURL: callbackURL,
		}

		if fh, err := c.FormFile("file"); err == nil {
			f, err := fh.Open()
			if err != nil {
				return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
			}
			defer f.Close()

			ct := fh.Header.Get("Content-Type")
			if ct == "" {
				ct = "application/pdf"
			}
			in.Document = f
			in.Filename = fh.Filename
			in.ContentType = ct
			in.Size = fh.Size
		} else if strings.TrimSpace(in.TemplateID) == "" {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required without template_id")
		}

		sig, err := svc.Create(c.UserContext(), in)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(sig)
	}
}

// GetSignature godoc
// @Summary Get a signature with its signers
// @Tags signatures
// @Produce json
// @Param id path string true "signature id"
// @Success 200 {object} model.Signature
// @Router /signatures/{id} [get]
func GetSignature(svc service.SignatureService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		sig, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(sig)
	}
}

// SignatureDocument godoc
// @Summary Redirect to the current, possibly signed, document
// @Tags signatures
// @Param id path string true "signature id"
// @Success 302
// @Router /signatures/{id}/document [get]
func SignatureDocument(svc service.SignatureService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		u, err := svc.DocumentURL(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Redirect(u, fiber.StatusFound)
	}
}

// SignerSign godoc
// @Summary Redirect a signer to the embedded signing page
// @Tags signers
// @Param id path string true "signer id"
// @Success 302
// @Router /signers/{id}/sign [get]
func SignerSign(svc service.SignatureService, publicURL string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		u, err := svc.SignerURL(c.UserContext(), id, signerURL(publicURL, id, "return"))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Redirect(u, fiber.StatusFound)
	}
}

func signerURL(publicURL, signerID, page string) string {
	return strings.TrimRight(publicURL, "/") + "/signers/" + signerID + "/" + page
}
