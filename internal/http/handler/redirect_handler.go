package handler

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/DealLink/internal/app/service"
	"github.com/sifan077/DealLink/internal/http/view"
	"go.uber.org/zap"
)

// RedirectDeps groups dependencies required by redirect handlers.
type RedirectDeps struct {
	Logger *zap.Logger
	Links  service.ShortLinkService
	// Ping checks storage for /health; nil reports ok unconditionally.
	Ping func(ctx context.Context) error
}

// RedirectHandler serves the public short link pages.
type RedirectHandler struct {
	logger *zap.Logger
	links  service.ShortLinkService
	ping   func(ctx context.Context) error
}

// NewRedirectHandler creates a redirect handler with the provided dependencies.
func NewRedirectHandler(deps RedirectDeps) *RedirectHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedirectHandler{
		logger: logger,
		links:  deps.Links,
		ping:   deps.Ping,
	}
}

// Register wires redirect routes onto the provided router.
func (h *RedirectHandler) Register(router fiber.Router) {
	router.Get("/", h.Health)
	router.Get("/health", h.Health)
	router.Get("/r/:shortCode", h.Interstitial)
}

// Health is a simple root endpoint so we know the service is running.
func (h *RedirectHandler) Health(c *fiber.Ctx) error {
	status, code := "ok", fiber.StatusOK
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(requestContext(c), 2*time.Second)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			status, code = "degraded", fiber.StatusServiceUnavailable
		}
	}
	return c.Status(code).JSON(fiber.Map{
		"service": "DealLink",
		"status":  status,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Interstitial handles GET /r/:shortCode. The page records the click through
// the clickout endpoint and then leaves for the destination.
func (h *RedirectHandler) Interstitial(c *fiber.Ctx) error {
	code := c.Params("shortCode")

	link, err := h.links.Resolve(requestContext(c), code)
	if err != nil {
		if errors.Is(err, service.ErrLinkNotFound) {
			return h.renderNotFound(c, code)
		}
		h.logger.Error("failed to resolve link", zap.Error(err), zap.String("code", code))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	clickout := "/track/r/" + url.PathEscape(link.ShortCode) + "/clickout"
	if ch := c.Query("ch"); ch != "" {
		clickout += "?" + url.Values{"ch": {ch}}.Encode()
	}

	html, err := view.RenderRedirectPage(view.RedirectPageData{
		Code:        link.ShortCode,
		ClickoutURL: clickout,
		FallbackURL: link.DestinationURL,
	})
	if err != nil {
		h.logger.Error("failed to render redirect page", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to render page",
		})
	}

	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.
		Type("html", "utf-8").
		SendString(html)
}

func (h *RedirectHandler) renderNotFound(c *fiber.Ctx, code string) error {
	if !service.IsValidShortCode(code) {
		code = ""
	}
	html, err := view.RenderNotFoundPage(view.NotFoundPageData{Code: code})
	if err != nil {
		h.logger.Error("failed to render not found page", zap.Error(err))
		return c.SendStatus(fiber.StatusNotFound)
	}
	return c.Status(fiber.StatusNotFound).
		Type("html", "utf-8").
		SendString(html)
}
