package service

import (
	"context"
	"time"

	"github.com/sifan077/DealLink/internal/app/analytics"
)

// LinkStats is the per-link dashboard summary.
type LinkStats struct {
	LinkID      string
	ShortCode   string
	Clicks      int64
	Conversions int64
	Revenue     float64
	CVR         float64
	EPC         float64
	CreatedAt   time.Time
}

// StatsService exposes aggregate counters to link owners.
type StatsService interface {
	GetStats(ctx context.Context, linkID, requesterID string) (*LinkStats, error)
}

type statsService struct {
	links ShortLinkService
}

// NewStatsService returns a StatsService backed by the short link service.
func NewStatsService(links ShortLinkService) StatsService {
	return &statsService{links: links}
}

// GetStats reports ErrLinkNotFound for links owned by someone else so callers
// cannot probe for ids.
func (s *statsService) GetStats(ctx context.Context, linkID, requesterID string) (*LinkStats, error) {
	link, err := s.links.GetLink(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if requesterID == "" || link.OwnerID != requesterID {
		return nil, ErrLinkNotFound
	}

	return &LinkStats{
		LinkID:      link.ID,
		ShortCode:   link.ShortCode,
		Clicks:      link.Clicks,
		Conversions: link.ConversionCount,
		Revenue:     analytics.Round2(link.TotalRevenue),
		CVR:         analytics.ConversionRate(link.ConversionCount, link.Clicks),
		EPC:         analytics.EarningsPerClick(link.TotalRevenue, link.Clicks),
		CreatedAt:   link.CreatedAt,
	}, nil
}
