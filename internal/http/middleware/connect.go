package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"signflow/internal/webhook"
)

// ConnectSignature rejects webhook deliveries whose X-DocuSign-Signature-N headers do not
// carry a valid HMAC of the raw body. An empty secret lets every request through.
func ConnectSignature(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := webhook.Verify(secret, c.Body(), func(key string) string { return c.Get(key) })
		switch {
		case err == nil:
			return c.Next()
		case errors.Is(err, webhook.ErrMissingSignature), errors.Is(err, webhook.ErrInvalidSignature):
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		default:
			return err
		}
	}
}
