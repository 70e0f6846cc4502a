package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
	httpUtil "github.com/sifan077/DealLink/internal/http/util"
)

const (
	// UserIDKey is the fiber.Locals key holding the authenticated user id.
	UserIDKey = "user_id"

	InternalSecretHeader = "X-Internal-Secret"
)

// BearerAuth requires a valid bearer JWT and stores its subject under UserIDKey.
func BearerAuth(verifier *httpUtil.TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := httpUtil.BearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing bearer token",
			})
		}

		userID, err := verifier.Validate(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid or expired token",
			})
		}

		c.Locals(UserIDKey, userID)
		return c.Next()
	}
}

// UserID returns the authenticated user id, or "" outside BearerAuth.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(UserIDKey).(string)
	return id
}

// InternalSecret guards service-to-service routes with a shared secret header.
// An empty configured secret locks the routes.
func InternalSecret(secret string) fiber.Handler {
	expected := []byte(secret)
	return func(c *fiber.Ctx) error {
		provided := []byte(c.Get(InternalSecretHeader))
		if len(expected) == 0 || subtle.ConstantTimeCompare(provided, expected) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthorized",
			})
		}
		return c.Next()
	}
}
