package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/DealLink/internal/app/service"
	"github.com/sifan077/DealLink/internal/http/middleware"
	"go.uber.org/zap"
)

var validate = validator.New()

// validateBody runs struct tags and flattens the failures into one message.
func validateBody(body any) error {
	err := validate.Struct(body)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: %s", lowerFirst(fe.Field()), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
	})
}

// writeError maps service errors onto HTTP responses. Unknown errors are
// logged and hidden behind a generic 500.
func writeError(c *fiber.Ctx, logger *zap.Logger, err error, fields ...zap.Field) error {
	var conflict *service.ConflictError
	switch {
	case errors.As(err, &conflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":        "conversion already recorded",
			"conversionId": conflict.ExistingConversionID,
		})
	case errors.Is(err, service.ErrInvalidInput):
		return badRequest(c, err.Error())
	case errors.Is(err, service.ErrLinkNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "link not found",
		})
	case errors.Is(err, service.ErrCodeExhausted):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "could not allocate a short code, retry later",
		})
	}

	fields = append(fields, zap.Error(err), zap.String("path", c.Path()))
	if rid := middleware.GetRequestID(c); rid != "" {
		fields = append(fields, zap.String("request_id", rid))
	}
	logger.Error("request failed", fields...)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "internal server error",
	})
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx
}

// parseTimeQuery accepts RFC 3339 timestamps or plain dates (midnight UTC).
// An absent parameter yields nil.
func parseTimeQuery(c *fiber.Ctx, key string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%s must be an RFC 3339 timestamp or YYYY-MM-DD date", key)
}

func timeRange(c *fiber.Ctx) (from, to *time.Time, err error) {
	if from, err = parseTimeQuery(c, "from"); err != nil {
		return nil, nil, err
	}
	if to, err = parseTimeQuery(c, "to"); err != nil {
		return nil, nil, err
	}
	return from, to, nil
}
