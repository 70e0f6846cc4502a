package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/DealLink/internal/app/service"
	"github.com/sifan077/DealLink/internal/http/middleware"
	"go.uber.org/zap"
)

// InternalDeps groups dependencies required by service-to-service handlers.
type InternalDeps struct {
	Logger     *zap.Logger
	Links      service.ShortLinkService
	Onboarding service.OnboardingService
	Analytics  service.AnalyticsService
	Secret     string
	BaseURL    string
}

// InternalHandler serves the publishing pipeline and internal reports.
type InternalHandler struct {
	logger     *zap.Logger
	links      service.ShortLinkService
	onboarding service.OnboardingService
	analytics  service.AnalyticsService
	secret     string
	baseURL    string
}

// NewInternalHandler creates an internal handler with the provided dependencies.
func NewInternalHandler(deps InternalDeps) *InternalHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InternalHandler{
		logger:     logger,
		links:      deps.Links,
		onboarding: deps.Onboarding,
		analytics:  deps.Analytics,
		secret:     deps.Secret,
		baseURL:    strings.TrimRight(deps.BaseURL, "/"),
	}
}

// Register wires internal routes onto the provided router.
func (h *InternalHandler) Register(router fiber.Router) {
	internal := router.Group("/internal", middleware.InternalSecret(h.secret))
	{
		internal.Post("/links/create", h.CreateLink)
		internal.Post("/onboarding/events", h.RecordOnboarding)
		internal.Get("/analytics/funnel", h.Funnel)
	}
}

// CreateLinkRequest is sent by the deal publishing pipeline.
type CreateLinkRequest struct {
	ASIN       string  `json:"asin" validate:"required,alphanum,max=16"`
	AmazonURL  string  `json:"amazonUrl" validate:"required,url"`
	AmazonTag  string  `json:"amazonTag" validate:"required,max=64"`
	UserID     string  `json:"userId" validate:"required,max=64"`
	ChannelRef string  `json:"channelRef,omitempty" validate:"max=64"`
	Title      string  `json:"title,omitempty"`
	Price      float64 `json:"price,omitempty" validate:"gte=0"`
}

// CreateLinkResponse describes the issued short link.
type CreateLinkResponse struct {
	Success        bool   `json:"success"`
	ShortURL       string `json:"shortUrl"`
	ShortCode      string `json:"shortCode"`
	LinkID         string `json:"linkId"`
	DestinationURL string `json:"destinationUrl"`
}

// CreateLink handles POST /internal/links/create
func (h *InternalHandler) CreateLink(c *fiber.Ctx) error {
	var req CreateLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := validateBody(&req); err != nil {
		return badRequest(c, err.Error())
	}

	destination, err := service.AffiliateDestination(req.AmazonURL, req.AmazonTag)
	if err != nil {
		return writeError(c, h.logger, err)
	}

	link, err := h.links.CreateLink(requestContext(c), service.CreateLinkInput{
		DestinationURL: destination,
		OwnerID:        req.UserID,
		ChannelRef:     req.ChannelRef,
		ASIN:           req.ASIN,
		AmazonTag:      req.AmazonTag,
	})
	if err != nil {
		return writeError(c, h.logger, err, zap.String("asin", req.ASIN), zap.String("user_id", req.UserID))
	}

	h.logger.Info("short link created",
		zap.String("link_id", link.ID),
		zap.String("code", link.ShortCode),
		zap.String("asin", req.ASIN),
		zap.String("title", req.Title),
	)

	return c.JSON(CreateLinkResponse{
		Success:        true,
		ShortURL:       h.baseURL + "/r/" + link.ShortCode,
		ShortCode:      link.ShortCode,
		LinkID:         link.ID,
		DestinationURL: link.DestinationURL,
	})
}

// OnboardingEventRequest reports a funnel step.
type OnboardingEventRequest struct {
	UserID    string `json:"userId" validate:"required,max=64"`
	EventType string `json:"eventType" validate:"required"`
	Step      int    `json:"step,omitempty" validate:"gte=0"`
}

// RecordOnboarding handles POST /internal/onboarding/events
func (h *InternalHandler) RecordOnboarding(c *fiber.Ctx) error {
	var req OnboardingEventRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := validateBody(&req); err != nil {
		return badRequest(c, err.Error())
	}

	event, err := h.onboarding.Record(requestContext(c), service.OnboardingInput{
		UserID:    req.UserID,
		EventType: req.EventType,
		Step:      req.Step,
	})
	if err != nil {
		return writeError(c, h.logger, err, zap.String("user_id", req.UserID))
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id": event.ID,
	})
}

// Funnel handles GET /internal/analytics/funnel
func (h *InternalHandler) Funnel(c *fiber.Ctx) error {
	from, to, err := timeRange(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	funnel, err := h.analytics.Funnel(requestContext(c), from, to)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(funnel)
}
