package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/sifan077/DealLink/internal/app/model"
	"gorm.io/gorm"
)

// EventFilter narrows analytics scans. Zero values mean "no constraint".
// From is inclusive and To exclusive.
type EventFilter struct {
	From       *time.Time
	To         *time.Time
	ChannelRef string
	LinkID     string
	OwnerID    string
}

// EventReader scans raw click, conversion and onboarding rows for read-side
// rollups. It never touches short link aggregates.
type EventReader interface {
	ListClicks(ctx context.Context, filter EventFilter) ([]model.ClickEvent, error)
	ListConversions(ctx context.Context, filter EventFilter) ([]model.ConversionEvent, error)
	CountOnboardingUsers(ctx context.Context, from, to time.Time) (map[model.OnboardingEventType]int64, error)
}

type eventReader struct {
	db *gorm.DB
}

// NewEventReader returns a GORM-backed EventReader. Event rows are joined to
// short_links so an OwnerID filter only ever sees that owner's links.
func NewEventReader(db *gorm.DB) EventReader {
	return &eventReader{db: db}
}

// scoped applies filter to a query over table, whose time column is
// timeColumn. Times are compared in UTC, the zone events are written in.
func scoped(db *gorm.DB, table, timeColumn string, filter EventFilter) *gorm.DB {
	q := db.Table(table + " AS e").
		Joins("JOIN short_links l ON l.id = e.link_id")
	if filter.From != nil {
		q = q.Where("e."+timeColumn+" >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		q = q.Where("e."+timeColumn+" < ?", filter.To.UTC())
	}
	if filter.ChannelRef != "" {
		q = q.Where("e.channel_ref = ?", filter.ChannelRef)
	}
	if filter.LinkID != "" {
		q = q.Where("e.link_id = ?", filter.LinkID)
	}
	if filter.OwnerID != "" {
		q = q.Where("l.owner_id = ?", filter.OwnerID)
	}
	return q.Select("e.*").Order("e." + timeColumn)
}

func (r *eventReader) ListClicks(ctx context.Context, filter EventFilter) ([]model.ClickEvent, error) {
	var events []model.ClickEvent
	err := scoped(r.db.WithContext(ctx), "click_events", "timestamp", filter).Scan(&events).Error
	if err != nil {
		return nil, fmt.Errorf("list click events: %w", err)
	}
	return events, nil
}

func (r *eventReader) ListConversions(ctx context.Context, filter EventFilter) ([]model.ConversionEvent, error) {
	var events []model.ConversionEvent
	err := scoped(r.db.WithContext(ctx), "conversion_events", "converted_at", filter).Scan(&events).Error
	if err != nil {
		return nil, fmt.Errorf("list conversion events: %w", err)
	}
	return events, nil
}

type onboardingCount struct {
	EventType model.OnboardingEventType
	Users     int64
}

// CountOnboardingUsers returns the number of distinct users per event type
// within [from, to).
func (r *eventReader) CountOnboardingUsers(ctx context.Context, from, to time.Time) (map[model.OnboardingEventType]int64, error) {
	var rows []onboardingCount
	err := r.db.WithContext(ctx).
		Model(&model.OnboardingEvent{}).
		Select("event_type, COUNT(DISTINCT user_id) AS users").
		Where("created_at >= ? AND created_at < ?", from.UTC(), to.UTC()).
		Group("event_type").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count onboarding users: %w", err)
	}

	counts := make(map[model.OnboardingEventType]int64, len(rows))
	for _, row := range rows {
		counts[row.EventType] = row.Users
	}
	return counts, nil
}
