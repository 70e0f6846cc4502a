package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/nats-io/nats.go"
	"github.com/sifan077/DealLink/config"
	apprepository "github.com/sifan077/DealLink/internal/app/repository"
	appserver "github.com/sifan077/DealLink/internal/app/server"
	appservice "github.com/sifan077/DealLink/internal/app/service"
	httpUtil "github.com/sifan077/DealLink/internal/http/util"
	"github.com/sifan077/DealLink/internal/infra/logger"
	infraNATS "github.com/sifan077/DealLink/internal/infra/nats"
	infraPostgres "github.com/sifan077/DealLink/internal/infra/postgres"
	infraPrometheus "github.com/sifan077/DealLink/internal/infra/prometheus"
	infraRedis "github.com/sifan077/DealLink/internal/infra/redis"
	"go.uber.org/zap"
)

const (
	shutdownTimeout = 30 * time.Second

	// sized for the expected number of issued codes over the filter's lifetime
	codeFilterCapacity = 1_000_000
	codeFilterFPRate   = 0.001
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		logger.L().Fatal("Failed to load config", zap.Error(err))
	}

	isDev := !cfg.App.IsProduction()
	log := logger.MustInit(logger.Config{
		Development: isDev,
		Level:       cfg.App.LogLevel,
		Service:     "deallink",
	})
	defer func() { _ = logger.Sync() }()

	log.Info("Configuration loaded successfully",
		zap.String("postgres_host", cfg.Postgres.Host),
		zap.Int("postgres_port", cfg.Postgres.Port),
		zap.String("postgres_db", cfg.Postgres.Database),
		zap.String("redis_host", cfg.Redis.Host),
		zap.Int("redis_port", cfg.Redis.Port),
		zap.String("env", cfg.App.Env),
		zap.String("click_mode", cfg.Tracking.ClickMode),
		zap.String("report_timezone", cfg.Tracking.ReportTimezone),
	)

	gormDB, err := infraPostgres.NewGorm(cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to open GORM connection", zap.Error(err))
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatal("Failed to access underlying SQL DB", zap.Error(err))
	}

	if err := infraPostgres.AutoMigrate(ctx, gormDB, apprepository.Models()...); err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}

	pool, err := infraPostgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	log.Info("Connected to Postgres successfully")

	redisClient, err := infraRedis.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	log.Info("Connected to Redis successfully")

	store := apprepository.NewStore(gormDB)

	generator, err := appservice.NewCodeGenerator()
	if err != nil {
		log.Fatal("Failed to initialise code generator", zap.Error(err))
	}
	filter := appservice.NewCodeFilter(codeFilterCapacity, codeFilterFPRate)
	warmed, err := filter.Warm(ctx, store.Links())
	if err != nil {
		log.Fatal("Failed to warm short code filter", zap.Error(err))
	}
	log.Info("Short code filter warmed", zap.Int("codes", warmed))

	links := appservice.NewShortLinkService(appservice.ShortLinkDeps{
		Store:     store,
		Generator: generator,
		Filter:    filter,
		Cache:     infraRedis.NewLinkCache(redisClient, cfg.Tracking.ResolveCacheTTL),
		Logger:    logger.Component("links"),
	})

	clickDeps := appservice.ClickRecorderDeps{
		Links:  links,
		Store:  store,
		Logger: logger.Component("clicks"),
	}

	var (
		natsConn *nats.Conn
		consumer *appservice.ClickConsumer
		monitor  *appservice.ClickBacklogMonitor
	)
	if cfg.Tracking.ClickMode == config.ClickModeAsync {
		var js nats.JetStreamContext
		natsConn, js, err = infraNATS.Connect(cfg.NATS, logger.Component("nats"))
		if err != nil {
			log.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		log.Info("Connected to NATS successfully", zap.Bool("jetstream_ready", js != nil))

		consumer = appservice.NewClickConsumer(js, logger.Component("click-consumer"), store)
		if err := consumer.Start(); err != nil {
			log.Fatal("Failed to start click consumer", zap.Error(err))
		}
		monitor = appservice.NewClickBacklogMonitor(logger.Component("click-backlog"), js, cfg.Tracking.BacklogCheckInterval)
		monitor.Start()

		clickDeps.Publisher = appservice.NewClickPublisher(js)
	}

	var promServer *http.Server
	if !isDev {
		promServer = infraPrometheus.NewServer(cfg.Prometheus)
		go func() {
			log.Info("Starting Prometheus metrics server",
				zap.Int("port", cfg.Prometheus.Port))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
	} else {
		log.Info("Skipping Prometheus metrics server in development mode")
	}

	server := appserver.New(appserver.Dependencies{
		Logger: logger.Component("http"),
		Links:  links,
		Clicks: appservice.NewClickRecorder(clickDeps),
		Conversions: appservice.NewConversionService(appservice.ConversionDeps{
			Store:          store,
			Logger:         logger.Component("conversions"),
			CommissionRate: cfg.Tracking.DefaultCommissionRate,
		}),
		Stats:              appservice.NewStatsService(links),
		Analytics:          appservice.NewAnalyticsService(apprepository.NewEventReader(gormDB), cfg.Tracking.Location()),
		Onboarding:         appservice.NewOnboardingService(store),
		Tokens:             httpUtil.NewTokenVerifier([]byte(cfg.Auth.JWTSecret), cfg.Auth.JWTIssuer),
		InternalSecret:     cfg.Auth.InternalSecret,
		BaseURL:            cfg.App.BaseURL,
		ProxyHeader:        cfg.App.ProxyHeader,
		TrustedProxies:     cfg.App.TrustedProxies,
		HealthCheck:        pool.Ping,
		Redis:              redisClient,
		RateLimitPerMinute: cfg.Tracking.RateLimitPerMinute,
	})

	addr := fmt.Sprintf(":%d", cfg.App.Port)
	go func() {
		log.Info("Starting HTTP server", zap.String("addr", addr))
		if err := server.Listen(addr); err != nil {
			log.Error("Fiber server exited", zap.Error(err))
		}
	}()

	// Operations run concurrently; each one owns the resources it closes.
	wait := gfshutdown.GracefulShutdown(ctx, shutdownTimeout, map[string]gfshutdown.Operation{
		"http": func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
		"clicks": func(ctx context.Context) error {
			if monitor != nil {
				monitor.Stop()
			}
			if consumer != nil {
				consumer.Stop()
			}
			if natsConn != nil {
				return natsConn.Drain()
			}
			return nil
		},
		"prometheus": func(ctx context.Context) error {
			if promServer == nil {
				return nil
			}
			return promServer.Shutdown(ctx)
		},
	})

	exitCode := <-wait

	pool.Close()
	if err := redisClient.Close(); err != nil {
		log.Warn("Failed to close Redis client", zap.Error(err))
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("Failed to close Postgres connection", zap.Error(err))
	}

	log.Info("DealLink stopped", zap.Int("exit_code", exitCode))
	_ = logger.Sync()
	os.Exit(exitCode)
}
