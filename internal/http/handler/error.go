package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"signflow/internal/event"
	"signflow/internal/http/middleware"
	"signflow/internal/provider"
	"signflow/internal/service"
	"signflow/internal/workflow"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response without leaking internal errors.
//
// Parameters:
// - status: HTTP status code to return
// - code: machine-readable short error code (e.g., "INVALID_ID", "NOT_FOUND", "INTERNAL_ERROR")
// - message: human-readable safe message (no internal details)
func writeError(c *fiber.Ctx, status int, code, message string) error {
	res := errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	}
	return c.Status(status).JSON(res)
}

// writeServiceError maps SignatureService errors to responses.
func writeServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrReaderNil):
		return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, service.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "signature not found")
	case errors.Is(err, service.ErrSignerNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "signer not found")
	case errors.Is(err, service.ErrNoEnvelope):
		return writeError(c, fiber.StatusConflict, "NO_ENVELOPE", "signature was not sent to the provider")
	case errors.Is(err, service.ErrNoDocument):
		return writeError(c, fiber.StatusNotFound, "NO_DOCUMENT", "signature has no document")
	case errors.Is(err, provider.ErrProvider):
		return writeError(c, fiber.StatusBadGateway, "PROVIDER_ERROR", "signature provider error")
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// workflowStatus maps engine errors to an HTTP status and error code.
// Provider errors are retryable, so Connect gets a 503 and delivers again.
func workflowStatus(err error) (int, string) {
	switch {
	case errors.Is(err, event.ErrParse):
		return fiber.StatusBadRequest, "PARSE_ERROR"
	case errors.Is(err, workflow.ErrNotFound):
		return fiber.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, workflow.ErrInconsistentState):
		return fiber.StatusConflict, "INCONSISTENT_STATE"
	case errors.Is(err, provider.ErrProvider):
		return fiber.StatusServiceUnavailable, "PROVIDER_UNAVAILABLE"
	default:
		return fiber.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var e *fiber.Error
		if errors.As(err, &e) {
			status = e.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusUnauthorized:
			return writeError(c, status, "UNAUTHORIZED", "invalid or missing signature")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "PAYLOAD_TOO_LARGE", "payload too large")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
