package server

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sifan077/DealLink/internal/app/service"
	inthttp "github.com/sifan077/DealLink/internal/http/handler"
	"github.com/sifan077/DealLink/internal/http/middleware"
	httpUtil "github.com/sifan077/DealLink/internal/http/util"
	"go.uber.org/zap"
)

// Dependencies bundles the services and infrastructure required by the HTTP server.
type Dependencies struct {
	Logger *zap.Logger

	Links       service.ShortLinkService
	Clicks      service.ClickRecorder
	Conversions service.ConversionService
	Stats       service.StatsService
	Analytics   service.AnalyticsService
	Onboarding  service.OnboardingService

	Tokens         *httpUtil.TokenVerifier
	InternalSecret string
	BaseURL        string

	// HealthCheck is called by GET /health; nil always reports ok.
	HealthCheck func(ctx context.Context) error

	// ProxyHeader carries the client address when set, e.g. X-Forwarded-For.
	// It is honoured only for peers in TrustedProxies, or for every peer when
	// TrustedProxies is empty.
	ProxyHeader    string
	TrustedProxies []string

	// Redis backs the clickout rate limiter; nil disables limiting.
	Redis              *redis.Client
	RateLimitPerMinute int
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app  *fiber.App
	deps Dependencies
}

// New creates a new HTTP server instance with all routes registered.
func New(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		AppName:               "DealLink",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler:          errorHandler(deps.Logger),

		// c.IP() feeds click fingerprints and rate limit keys.
		ProxyHeader:             deps.ProxyHeader,
		EnableTrustedProxyCheck: len(deps.TrustedProxies) > 0,
		TrustedProxies:          deps.TrustedProxies,
		EnableIPValidation:      true,
	})

	s := &Server{
		app:  app,
		deps: deps,
	}

	s.registerMiddleware()
	s.registerRoutes()
	return s
}

// App exposes the Fiber application, mainly for app.Test in tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the Fiber server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the Fiber server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerMiddleware() {
	s.app.Use(
		middleware.RequestID(),
		middleware.Recovery(s.deps.Logger),
		middleware.Logger(s.deps.Logger),
		middleware.Metrics(),
		middleware.CORS(""),
	)
}

func (s *Server) registerRoutes() {
	inthttp.NewRedirectHandler(inthttp.RedirectDeps{
		Logger: s.deps.Logger,
		Links:  s.deps.Links,
		Ping:   s.deps.HealthCheck,
	}).Register(s.app)

	var limiter fiber.Handler
	if s.deps.Redis != nil {
		cfg := middleware.DefaultRateLimitConfig()
		if s.deps.RateLimitPerMinute > 0 {
			cfg.MaxRequests = s.deps.RateLimitPerMinute
		}
		cfg.KeyPrefix = "deallink:ratelimit:clickout"
		limiter = middleware.RateLimit(s.deps.Redis, cfg, s.deps.Logger)
	}

	inthttp.NewTrackingHandler(inthttp.TrackingDeps{
		Logger:       s.deps.Logger,
		Clicks:       s.deps.Clicks,
		Conversions:  s.deps.Conversions,
		Stats:        s.deps.Stats,
		Tokens:       s.deps.Tokens,
		ClickLimiter: limiter,
	}).Register(s.app)

	inthttp.NewAnalyticsHandler(inthttp.AnalyticsDeps{
		Logger:    s.deps.Logger,
		Analytics: s.deps.Analytics,
		Tokens:    s.deps.Tokens,
	}).Register(s.app)

	inthttp.NewInternalHandler(inthttp.InternalDeps{
		Logger:     s.deps.Logger,
		Links:      s.deps.Links,
		Onboarding: s.deps.Onboarding,
		Analytics:  s.deps.Analytics,
		Secret:     s.deps.InternalSecret,
		BaseURL:    s.deps.BaseURL,
	}).Register(s.app)
}

// errorHandler renders errors that escape handlers, such as unknown routes.
func errorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "internal server error"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			message = fe.Message
		} else {
			logger.Error("unhandled error", zap.Error(err), zap.String("path", c.Path()))
		}

		return c.Status(code).JSON(fiber.Map{
			"error": message,
		})
	}
}
