package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// CORS returns a CORS middleware. An empty origin allows any origin.
func CORS(allowOrigin string) fiber.Handler {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return func(c *fiber.Ctx) error {
		c.Set("Access-Control-Allow-Origin", allowOrigin)
		c.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, "+RequestIDHeader)
		c.Set("Access-Control-Expose-Headers", "Content-Length, Content-Type, "+RequestIDHeader)
		c.Set("Access-Control-Max-Age", "86400")

		if c.Method() == fiber.MethodOptions {
			return c.SendStatus(fiber.StatusNoContent)
		}

		return c.Next()
	}
}
