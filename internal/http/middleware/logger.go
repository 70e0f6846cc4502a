package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Logger creates a logging middleware using zap. Client addresses are not
// logged; only the anonymized fingerprint ever reaches storage.
func Logger(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("latency", time.Since(start)),
			zap.String("user_agent", c.Get(fiber.HeaderUserAgent)),
		}

		if rid := GetRequestID(c); rid != "" {
			fields = append(fields, zap.String("request_id", rid))
		}
		if uid := UserID(c); uid != "" {
			fields = append(fields, zap.String("user_id", uid))
		}

		if err != nil {
			logger.Error("request error", append(fields, zap.Error(err))...)
		} else {
			logger.Info("request", fields...)
		}

		return err
	}
}
