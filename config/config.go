package config

import (
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Click delivery modes for tracking.click_mode.
const (
	ClickModeSync  = "sync"
	ClickModeAsync = "async"
)

type Config struct {
	// HTTP application
	App AppConfig `mapstructure:"app"`

	// PostgreSQL
	Postgres PostgresConfig `mapstructure:"postgres"`

	// Redis
	Redis RedisConfig `mapstructure:"redis"`

	// NATS
	NATS NATSConfig `mapstructure:"nats"`

	// Prometheus
	Prometheus PrometheusConfig `mapstructure:"prometheus"`

	// Auth secrets shared with the auth service and the publishing pipeline
	Auth AuthConfig `mapstructure:"auth"`

	// Attribution behaviour
	Tracking TrackingConfig `mapstructure:"tracking"`
}

type AppConfig struct {
	Port     int    `mapstructure:"port"`
	BaseURL  string `mapstructure:"base_url"`
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`

	// ProxyHeader names the header carrying the client address, e.g.
	// X-Forwarded-For. Empty means the connecting peer is the client.
	ProxyHeader string `mapstructure:"proxy_header"`
	// TrustedProxies lists addresses or CIDRs allowed to set ProxyHeader.
	// Empty trusts every peer.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

// IsProduction reports whether the service runs with production settings.
func (a AppConfig) IsProduction() bool {
	return a.Env == "production"
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	Port     int    `mapstructure:"port"`
	SSLMode  string `mapstructure:"sslmode"`
	// ApplicationName shows up in pg_stat_activity.
	ApplicationName string `mapstructure:"application_name"`

	MaxConns          int32  `mapstructure:"max_conns"`
	MinConns          int32  `mapstructure:"min_conns"`
	MaxConnLifetime   string `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   string `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod string `mapstructure:"health_check_period"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// PoolSize of zero keeps the go-redis default of ten per CPU.
	PoolSize int `mapstructure:"pool_size"`
}

type NATSConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	// ClientName identifies this process in NATS connection listings.
	ClientName string `mapstructure:"client_name"`
}

type PrometheusConfig struct {
	Port int    `mapstructure:"port"`
	Path string `mapstructure:"path"`
}

type AuthConfig struct {
	JWTSecret      string `mapstructure:"jwt_secret"`
	JWTIssuer      string `mapstructure:"jwt_issuer"`
	InternalSecret string `mapstructure:"internal_secret"`
}

type TrackingConfig struct {
	ClickMode             string        `mapstructure:"click_mode"`
	DefaultCommissionRate float64       `mapstructure:"default_commission_rate"`
	ReportTimezone        string        `mapstructure:"report_timezone"`
	ResolveCacheTTL       time.Duration `mapstructure:"resolve_cache_ttl"`
	RateLimitPerMinute    int           `mapstructure:"rate_limit_per_minute"`
	BacklogCheckInterval  time.Duration `mapstructure:"backlog_check_interval"`
}

// Location resolves the reporting timezone, falling back to UTC.
func (t TrackingConfig) Location() *time.Location {
	if t.ReportTimezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(t.ReportTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func Load() (*Config, error) {
	// Load local .env for development (ignored when missing).
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	// Search for config/config.yaml (plus root for overrides).
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Allow environment variables to override YAML entries.
	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Preserve legacy env variable names.
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	switch c.Tracking.ClickMode {
	case ClickModeSync, ClickModeAsync:
	default:
		return fmt.Errorf("config: tracking.click_mode must be %q or %q, got %q",
			ClickModeSync, ClickModeAsync, c.Tracking.ClickMode)
	}
	if c.Tracking.DefaultCommissionRate <= 0 || c.Tracking.DefaultCommissionRate > 1 {
		return fmt.Errorf("config: tracking.default_commission_rate must be within (0, 1]")
	}
	if _, err := time.LoadLocation(c.Tracking.ReportTimezone); err != nil {
		return fmt.Errorf("config: tracking.report_timezone: %w", err)
	}
	for _, proxy := range c.App.TrustedProxies {
		if !validProxy(proxy) {
			return fmt.Errorf("config: app.trusted_proxies: %q is not an address or CIDR", proxy)
		}
	}
	return nil
}

func validProxy(s string) bool {
	if strings.Contains(s, "/") {
		_, err := netip.ParsePrefix(s)
		return err == nil
	}
	_, err := netip.ParseAddr(s)
	return err == nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.base_url", "http://localhost:8080")
	v.SetDefault("app.env", "development")

	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.application_name", "deallink")

	v.SetDefault("nats.client_name", "deallink")

	v.SetDefault("prometheus.port", 9090)

	v.SetDefault("auth.jwt_issuer", "deallink-auth")

	v.SetDefault("tracking.click_mode", ClickModeSync)
	v.SetDefault("tracking.default_commission_rate", 0.05)
	v.SetDefault("tracking.report_timezone", "UTC")
	v.SetDefault("tracking.resolve_cache_ttl", 10*time.Minute)
	v.SetDefault("tracking.rate_limit_per_minute", 120)
	v.SetDefault("tracking.backlog_check_interval", 30*time.Second)
}

func bindEnvVars(v *viper.Viper) {
	// Application
	v.BindEnv("app.port", "PORT")
	v.BindEnv("app.base_url", "BASE_URL")
	v.BindEnv("app.env", "APP_ENV")
	v.BindEnv("app.log_level", "LOG_LEVEL")
	v.BindEnv("app.proxy_header", "PROXY_HEADER")
	v.BindEnv("app.trusted_proxies", "TRUSTED_PROXIES")

	// PostgreSQL
	v.BindEnv("postgres.host", "PG_HOST")
	v.BindEnv("postgres.user", "PG_USER")
	v.BindEnv("postgres.password", "PG_PASSWORD")
	v.BindEnv("postgres.database", "PG_DB")
	v.BindEnv("postgres.port", "PG_PORT")
	v.BindEnv("postgres.sslmode", "PG_SSLMODE")
	v.BindEnv("postgres.max_conns", "PG_MAX_CONNS")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")
	v.BindEnv("redis.pool_size", "REDIS_POOL_SIZE")

	// NATS
	v.BindEnv("nats.host", "NATS_HOST")
	v.BindEnv("nats.port", "NATS_PORT")
	v.BindEnv("nats.user", "NATS_USER")
	v.BindEnv("nats.password", "NATS_PASSWORD")
	v.BindEnv("nats.client_name", "NATS_CLIENT_NAME")

	// Prometheus
	v.BindEnv("prometheus.port", "PROM_PORT")
	v.BindEnv("prometheus.path", "PROM_PATH")

	// Auth
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("auth.jwt_issuer", "JWT_ISSUER")
	v.BindEnv("auth.internal_secret", "INTERNAL_API_SECRET")

	// Tracking
	v.BindEnv("tracking.click_mode", "CLICK_MODE")
	v.BindEnv("tracking.default_commission_rate", "DEFAULT_COMMISSION_RATE")
	v.BindEnv("tracking.report_timezone", "REPORT_TIMEZONE")
}
