package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sifan077/DealLink/internal/app/model"
)

const (
	linkCachePrefix     = "deallink:code:"
	defaultLinkCacheTTL = 10 * time.Minute
)

// cachedLink is the subset of a short link that never changes after creation.
// Aggregate counters are deliberately absent: they are read from Postgres.
type cachedLink struct {
	ID             string    `json:"id"`
	ShortCode      string    `json:"short_code"`
	DestinationURL string    `json:"destination_url"`
	OwnerID        string    `json:"owner_id"`
	ChannelRef     string    `json:"channel_ref"`
	CreatedAt      time.Time `json:"created_at"`
}

// LinkCache is a cache-aside store for short code resolution.
type LinkCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLinkCache returns a LinkCache; a non-positive ttl selects the default.
func NewLinkCache(client *redis.Client, ttl time.Duration) *LinkCache {
	if ttl <= 0 {
		ttl = defaultLinkCacheTTL
	}
	return &LinkCache{client: client, ttl: ttl}
}

// Get returns the cached link for code. A miss is (nil, false, nil).
func (c *LinkCache) Get(ctx context.Context, code string) (*model.ShortLink, bool, error) {
	data, err := c.client.Get(ctx, linkCachePrefix+code).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis: get link: %w", err)
	}

	var cl cachedLink
	if err := json.Unmarshal(data, &cl); err != nil {
		return nil, false, fmt.Errorf("redis: decode link: %w", err)
	}
	return &model.ShortLink{
		ID:             cl.ID,
		ShortCode:      cl.ShortCode,
		DestinationURL: cl.DestinationURL,
		OwnerID:        cl.OwnerID,
		ChannelRef:     cl.ChannelRef,
		CreatedAt:      cl.CreatedAt,
	}, true, nil
}

// Set stores the immutable part of link under its short code.
func (c *LinkCache) Set(ctx context.Context, link *model.ShortLink) error {
	data, err := json.Marshal(cachedLink{
		ID:             link.ID,
		ShortCode:      link.ShortCode,
		DestinationURL: link.DestinationURL,
		OwnerID:        link.OwnerID,
		ChannelRef:     link.ChannelRef,
		CreatedAt:      link.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("redis: encode link: %w", err)
	}
	if err := c.client.Set(ctx, linkCachePrefix+link.ShortCode, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set link: %w", err)
	}
	return nil
}
