package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	infraPrometheus "github.com/sifan077/DealLink/internal/infra/prometheus"
)

// Metrics records request counts and latency per matched route.
func Metrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		// route path, not the raw URL, keeps label cardinality bounded
		route := c.Route().Path
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		infraPrometheus.HTTPRequests.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		infraPrometheus.HTTPDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		return err
	}
}
