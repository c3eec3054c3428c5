package middleware

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	twilioClient "github.com/twilio/twilio-go/client"
)

// ValidateTwilioSignature validates that a form-encoded webhook request is
// from Twilio. JSON requests (the Meta Cloud API variant) pass through
// untouched; Meta uses its own verification handshake.
func ValidateTwilioSignature(authToken string) fiber.Handler {
	validator := twilioClient.NewRequestValidator(authToken)

	return func(c *fiber.Ctx) error {
		if c.Is("json") {
			return c.Next()
		}

		signature := c.Get("X-Twilio-Signature")
		if signature == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing Twilio signature",
			})
		}

		params := make(map[string]string)
		c.Request().PostArgs().VisitAll(func(key, value []byte) {
			params[string(key)] = string(value)
		})

		if !validator.Validate(fullURL(c), params, signature) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid signature",
			})
		}

		return c.Next()
	}
}

// fullURL reconstructs the URL Twilio signed against.
func fullURL(c *fiber.Ctx) string {
	protocol := "https"
	if c.Protocol() == "http" {
		protocol = "http"
	}
	return fmt.Sprintf("%s://%s%s", protocol, c.Hostname(), c.Path())
}
