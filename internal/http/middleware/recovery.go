package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Recovery recovers from panics and logs the error
func Recovery(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				fields := []zap.Field{
					zap.Error(fmt.Errorf("panic recovered: %v", r)),
					zap.ByteString("stack", debug.Stack()),
					zap.String("method", c.Method()),
					zap.String("path", c.Path()),
				}
				if rid := GetRequestID(c); rid != "" {
					fields = append(fields, zap.String("request_id", rid))
				}

				logger.Error("panic recovered", fields...)

				err = c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "internal server error",
				})
			}
		}()

		return c.Next()
	}
}
