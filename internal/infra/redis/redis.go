package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sifan077/DealLink/config"
)

const (
	defaultDialTimeout = 30 * time.Second
	// redirect-path reads give up quickly; callers treat errors as cache misses
	defaultReadTimeout = 500 * time.Millisecond
	clientName         = "deallink"
)

// NewClient builds a redis client using app config and verifies connectivity via PING.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(options(cfg))

	pingCtx, cancel := context.WithTimeout(ctx, defaultDialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", rdb.Options().Addr, err)
	}

	return rdb, nil
}

func options(cfg config.RedisConfig) *redis.Options {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 6379
	}

	return &redis.Options{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		ClientName:   clientName,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultReadTimeout,
		PoolSize:     cfg.PoolSize,
	}
}
