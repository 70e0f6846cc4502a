package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/DealLink/internal/app/service"
	"github.com/sifan077/DealLink/internal/http/middleware"
	httpUtil "github.com/sifan077/DealLink/internal/http/util"
	"go.uber.org/zap"
)

// TrackingDeps groups dependencies required by tracking handlers.
type TrackingDeps struct {
	Logger      *zap.Logger
	Clicks      service.ClickRecorder
	Conversions service.ConversionService
	Stats       service.StatsService
	Tokens      *httpUtil.TokenVerifier
	// ClickLimiter guards the public clickout route; nil means unlimited.
	ClickLimiter fiber.Handler
}

// TrackingHandler implements the click, conversion and stats endpoints.
type TrackingHandler struct {
	logger       *zap.Logger
	clicks       service.ClickRecorder
	conversions  service.ConversionService
	stats        service.StatsService
	tokens       *httpUtil.TokenVerifier
	clickLimiter fiber.Handler
}

// NewTrackingHandler creates a tracking handler with the provided dependencies.
func NewTrackingHandler(deps TrackingDeps) *TrackingHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrackingHandler{
		logger:       logger,
		clicks:       deps.Clicks,
		conversions:  deps.Conversions,
		stats:        deps.Stats,
		tokens:       deps.Tokens,
		clickLimiter: deps.ClickLimiter,
	}
}

// Register wires tracking routes onto the provided router.
func (h *TrackingHandler) Register(router fiber.Router) {
	track := router.Group("/track")
	{
		clickout := []fiber.Handler{h.Clickout}
		if h.clickLimiter != nil {
			clickout = append([]fiber.Handler{h.clickLimiter}, clickout...)
		}
		track.Post("/r/:shortCode/clickout", clickout...)
		track.Post("/conversion", h.Conversion)
		track.Get("/stats/:linkId", middleware.BearerAuth(h.tokens), h.Stats)
	}
}

// ClickoutResponse is returned to the interstitial page.
type ClickoutResponse struct {
	RedirectURL string `json:"redirectUrl"`
	TrackingID  string `json:"trackingId"`
	Message     string `json:"message"`
}

// Clickout handles POST /track/r/:shortCode/clickout
func (h *TrackingHandler) Clickout(c *fiber.Ctx) error {
	code := c.Params("shortCode")

	result, err := h.clicks.RecordClick(requestContext(c), code, service.RequestContext{
		IP:         c.IP(),
		UserAgent:  c.Get(fiber.HeaderUserAgent),
		Referer:    c.Get(fiber.HeaderReferer),
		ChannelRef: c.Query("ch"),
	})
	if err != nil {
		return writeError(c, h.logger, err, zap.String("code", code))
	}

	message := "click tracked"
	if !result.Recorded {
		message = "redirecting"
	}
	return c.JSON(ClickoutResponse{
		RedirectURL: result.RedirectURL,
		TrackingID:  result.TrackingID,
		Message:     message,
	})
}

// ConversionRequest is the purchase notice body.
type ConversionRequest struct {
	TrackingID string   `json:"trackingId" validate:"required,max=64"`
	Revenue    float64  `json:"revenue" validate:"gt=0"`
	Commission *float64 `json:"commission,omitempty" validate:"omitempty,gte=0"`
}

// ConversionResponse acknowledges a stored conversion.
type ConversionResponse struct {
	Success      bool    `json:"success"`
	ConversionID string  `json:"conversionId"`
	Revenue      float64 `json:"revenue"`
	Commission   float64 `json:"commission"`
}

// Conversion handles POST /track/conversion
func (h *TrackingHandler) Conversion(c *fiber.Ctx) error {
	var req ConversionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := validateBody(&req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.conversions.RecordConversion(requestContext(c), service.ConversionInput{
		TrackingID: req.TrackingID,
		Revenue:    req.Revenue,
		Commission: req.Commission,
	})
	if err != nil {
		if errors.Is(err, service.ErrConflict) {
			h.logger.Info("duplicate conversion notice", zap.String("tracking_id", req.TrackingID))
		}
		return writeError(c, h.logger, err, zap.String("tracking_id", req.TrackingID))
	}

	return c.JSON(ConversionResponse{
		Success:      true,
		ConversionID: result.ConversionID,
		Revenue:      result.Revenue,
		Commission:   result.Commission,
	})
}

// StatsResponse is the owner dashboard summary for one link.
type StatsResponse struct {
	Clicks      int64     `json:"clicks"`
	Conversions int64     `json:"conversions"`
	Revenue     float64   `json:"revenue"`
	CVR         float64   `json:"cvr"`
	EPC         float64   `json:"epc"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Stats handles GET /track/stats/:linkId
func (h *TrackingHandler) Stats(c *fiber.Ctx) error {
	linkID := c.Params("linkId")

	stats, err := h.stats.GetStats(requestContext(c), linkID, middleware.UserID(c))
	if err != nil {
		return writeError(c, h.logger, err, zap.String("link_id", linkID))
	}

	return c.JSON(StatsResponse{
		Clicks:      stats.Clicks,
		Conversions: stats.Conversions,
		Revenue:     stats.Revenue,
		CVR:         stats.CVR,
		EPC:         stats.EPC,
		CreatedAt:   stats.CreatedAt,
	})
}
