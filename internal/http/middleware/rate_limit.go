package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
	KeyPrefix   string
}

// DefaultRateLimitConfig returns default rate limit configuration
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxRequests: 100,
		Window:      time.Minute,
		KeyPrefix:   "deallink:ratelimit",
	}
}

// fixedWindowScript counts a hit and returns {count, remaining ttl in ms}.
// Any key left without a TTL gets one, so a window always ends.
var fixedWindowScript = redis.NewScript(`
local current = redis.call('INCR', KEYS[1])
local ttl = redis.call('PTTL', KEYS[1])
if current == 1 or ttl < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// hitWindow records one request against key and reports the window's count
// and time left.
func hitWindow(ctx context.Context, client redis.Scripter, key string, window time.Duration) (int64, time.Duration, error) {
	reply, err := fixedWindowScript.Run(ctx, client, []string{key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, fmt.Errorf("rate limit script: %w", err)
	}
	if len(reply) != 2 {
		return 0, 0, fmt.Errorf("rate limit script: unexpected reply length %d", len(reply))
	}
	return reply[0], time.Duration(reply[1]) * time.Millisecond, nil
}

// RateLimit creates a fixed-window rate limiting middleware keyed by client IP.
// A nil client disables limiting and Redis errors let the request through.
func RateLimit(client redis.Scripter, config RateLimitConfig, logger *zap.Logger) fiber.Handler {
	if config.MaxRequests <= 0 {
		config.MaxRequests = DefaultRateLimitConfig().MaxRequests
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = DefaultRateLimitConfig().KeyPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if client == nil {
			return c.Next()
		}

		key := config.KeyPrefix + ":" + c.IP()
		count, ttl, err := hitWindow(c.UserContext(), client, key, config.Window)
		if err != nil {
			logger.Error("rate limit redis error", zap.Error(err))
			// fail open
			return c.Next()
		}

		remaining := config.MaxRequests - int(count)
		c.Set("X-RateLimit-Limit", strconv.Itoa(config.MaxRequests))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(max(0, remaining)))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(ttl).Unix(), 10))

		if count > int64(config.MaxRequests) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded",
			})
		}

		return c.Next()
	}
}
