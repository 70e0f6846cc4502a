package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/DealLink/internal/app/service"
	"github.com/sifan077/DealLink/internal/http/middleware"
	httpUtil "github.com/sifan077/DealLink/internal/http/util"
	"go.uber.org/zap"
)

// AnalyticsDeps groups dependencies required by owner analytics handlers.
type AnalyticsDeps struct {
	Logger    *zap.Logger
	Analytics service.AnalyticsService
	Tokens    *httpUtil.TokenVerifier
}

// AnalyticsHandler serves owner-scoped rollups.
type AnalyticsHandler struct {
	logger    *zap.Logger
	analytics service.AnalyticsService
	tokens    *httpUtil.TokenVerifier
}

// NewAnalyticsHandler creates an analytics handler with the provided dependencies.
func NewAnalyticsHandler(deps AnalyticsDeps) *AnalyticsHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsHandler{
		logger:    logger,
		analytics: deps.Analytics,
		tokens:    deps.Tokens,
	}
}

// Register wires analytics routes onto the provided router.
func (h *AnalyticsHandler) Register(router fiber.Router) {
	analytics := router.Group("/analytics", middleware.BearerAuth(h.tokens))
	{
		analytics.Get("/channels", h.Channels)
		analytics.Get("/heatmap", h.Heatmap)
	}
}

func (h *AnalyticsHandler) query(c *fiber.Ctx) (service.AnalyticsQuery, error) {
	from, to, err := timeRange(c)
	if err != nil {
		return service.AnalyticsQuery{}, err
	}
	return service.AnalyticsQuery{
		OwnerID:    middleware.UserID(c),
		LinkID:     c.Query("linkId"),
		ChannelRef: c.Query("channel"),
		From:       from,
		To:         to,
	}, nil
}

// Channels handles GET /analytics/channels
func (h *AnalyticsHandler) Channels(c *fiber.Ctx) error {
	q, err := h.query(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	breakdown, err := h.analytics.Channels(requestContext(c), q)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(breakdown)
}

// Heatmap handles GET /analytics/heatmap
func (h *AnalyticsHandler) Heatmap(c *fiber.Ctx) error {
	q, err := h.query(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	heatmap, err := h.analytics.Heatmap(requestContext(c), q)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(heatmap)
}
