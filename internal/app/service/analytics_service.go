package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sifan077/DealLink/internal/app/analytics"
	"github.com/sifan077/DealLink/internal/app/repository"
)

// DefaultFunnelWindow is the funnel range used when the caller gives none.
const DefaultFunnelWindow = 30 * 24 * time.Hour

// AnalyticsQuery scopes an owner report. Nil bounds are open.
type AnalyticsQuery struct {
	OwnerID    string
	LinkID     string
	ChannelRef string
	From       *time.Time
	To         *time.Time
}

// AnalyticsService builds read-only rollups from raw events.
type AnalyticsService interface {
	Channels(ctx context.Context, q AnalyticsQuery) (*analytics.ChannelBreakdown, error)
	Heatmap(ctx context.Context, q AnalyticsQuery) (*analytics.Heatmap, error)
	Funnel(ctx context.Context, from, to *time.Time) (*analytics.Funnel, error)
}

type analyticsService struct {
	reader repository.EventReader
	loc    *time.Location
	now    func() time.Time
}

// NewAnalyticsService returns an AnalyticsService; heatmaps are bucketed in loc
// (UTC when nil).
func NewAnalyticsService(reader repository.EventReader, loc *time.Location) AnalyticsService {
	if loc == nil {
		loc = time.UTC
	}
	return &analyticsService{reader: reader, loc: loc, now: time.Now}
}

func (s *analyticsService) filter(q AnalyticsQuery) (repository.EventFilter, error) {
	if q.OwnerID == "" {
		return repository.EventFilter{}, invalidInput("owner is required")
	}
	if q.From != nil && q.To != nil && !q.To.After(*q.From) {
		return repository.EventFilter{}, invalidInput("to must be after from")
	}
	return repository.EventFilter{
		From:       q.From,
		To:         q.To,
		ChannelRef: q.ChannelRef,
		LinkID:     q.LinkID,
		OwnerID:    q.OwnerID,
	}, nil
}

func (s *analyticsService) Channels(ctx context.Context, q AnalyticsQuery) (*analytics.ChannelBreakdown, error) {
	// breakdown is per channel, so a channel filter would collapse it
	q.ChannelRef = ""
	filter, err := s.filter(q)
	if err != nil {
		return nil, err
	}

	clicks, err := s.reader.ListClicks(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("channel breakdown: %w", err)
	}
	conversions, err := s.reader.ListConversions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("channel breakdown: %w", err)
	}

	breakdown := analytics.BuildChannelBreakdown(clicks, conversions)
	return &breakdown, nil
}

func (s *analyticsService) Heatmap(ctx context.Context, q AnalyticsQuery) (*analytics.Heatmap, error) {
	filter, err := s.filter(q)
	if err != nil {
		return nil, err
	}

	clicks, err := s.reader.ListClicks(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("heatmap: %w", err)
	}

	heatmap := analytics.BuildHeatmap(clicks, s.loc)
	return &heatmap, nil
}

// Funnel reports onboarding conversion within [from, to). Missing bounds
// default to the trailing DefaultFunnelWindow.
func (s *analyticsService) Funnel(ctx context.Context, from, to *time.Time) (*analytics.Funnel, error) {
	end := s.now().UTC()
	if to != nil {
		end = *to
	}
	start := end.Add(-DefaultFunnelWindow)
	if from != nil {
		start = *from
	}
	if !end.After(start) {
		return nil, invalidInput("to must be after from")
	}

	counts, err := s.reader.CountOnboardingUsers(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("funnel: %w", err)
	}

	funnel := analytics.BuildFunnel(start, end, counts)
	return &funnel, nil
}
