package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sifan077/DealLink/internal/app/model"
	"github.com/sifan077/DealLink/internal/app/repository"
	"github.com/sifan077/DealLink/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)

type eventFixture struct {
	reader   repository.EventReader
	store    repository.Store
	mine     *model.ShortLink
	mineToo  *model.ShortLink
	theirs   *model.ShortLink
	clickIDs map[string]string
}

func newEventFixture(t *testing.T) *eventFixture {
	t.Helper()
	db := testutil.NewDB(t)
	f := &eventFixture{
		reader:   repository.NewEventReader(db),
		store:    repository.NewStore(db),
		clickIDs: map[string]string{},
	}
	ctx := context.Background()

	f.mine = newLink("mine001")
	f.mineToo = newLink("mine002")
	f.theirs = newLink("their01")
	f.theirs.OwnerID = "user-2"
	for _, l := range []*model.ShortLink{f.mine, f.mineToo, f.theirs} {
		require.NoError(t, f.store.Links().Create(ctx, l))
	}

	clicks := []struct {
		name    string
		link    *model.ShortLink
		channel string
		at      time.Time
	}{
		{"early", f.mine, "telegram", day.Add(-2 * time.Hour)},
		{"tg", f.mine, "telegram", day.Add(9 * time.Hour)},
		{"wa", f.mine, "whatsapp", day.Add(10 * time.Hour)},
		{"other-link", f.mineToo, "telegram", day.Add(11 * time.Hour)},
		{"foreign", f.theirs, "telegram", day.Add(9 * time.Hour)},
		{"late", f.mine, "telegram", day.Add(24 * time.Hour)},
	}
	for _, c := range clicks {
		id := uuid.NewString()
		f.clickIDs[c.name] = id
		require.NoError(t, f.store.Clicks().Create(ctx, &model.ClickEvent{
			ID: id, LinkID: c.link.ID, IPHash: "0123456789abcdef", ChannelRef: c.channel, Timestamp: c.at,
		}))
	}

	conversions := []struct {
		link    *model.ShortLink
		revenue float64
		at      time.Time
	}{
		{f.mine, 50, day.Add(12 * time.Hour)},
		{f.theirs, 70, day.Add(12 * time.Hour)},
	}
	for _, c := range conversions {
		require.NoError(t, f.store.Conversions().Create(ctx, &model.ConversionEvent{
			ID: uuid.NewString(), LinkID: c.link.ID, TrackingID: c.link.ID,
			Revenue: c.revenue, Commission: c.revenue * 0.05, ChannelRef: "telegram", ConvertedAt: c.at,
		}))
	}
	return f
}

func ids(events []model.ClickEvent) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.ID)
	}
	return out
}

func TestEventReader_ListClicksOwnerScoped(t *testing.T) {
	f := newEventFixture(t)

	events, err := f.reader.ListClicks(context.Background(), repository.EventFilter{OwnerID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		f.clickIDs["early"], f.clickIDs["tg"], f.clickIDs["wa"], f.clickIDs["other-link"], f.clickIDs["late"],
	}, ids(events), "ordered by time, foreign owner excluded")

	first := events[0]
	assert.Equal(t, f.mine.ID, first.LinkID)
	assert.Equal(t, "telegram", first.ChannelRef)
	assert.Equal(t, "0123456789abcdef", first.IPHash)
	assert.True(t, first.Timestamp.Equal(day.Add(-2*time.Hour)))

	events, err = f.reader.ListClicks(context.Background(), repository.EventFilter{OwnerID: "user-3"})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestEventReader_ListClicksFilters(t *testing.T) {
	f := newEventFixture(t)
	from, to := day, day.Add(24*time.Hour)

	tests := []struct {
		name   string
		filter repository.EventFilter
		want   []string
	}{
		{
			name:   "range is half open",
			filter: repository.EventFilter{OwnerID: "user-1", From: &from, To: &to},
			want:   []string{"tg", "wa", "other-link"},
		},
		{
			name:   "channel",
			filter: repository.EventFilter{OwnerID: "user-1", From: &from, To: &to, ChannelRef: "telegram"},
			want:   []string{"tg", "other-link"},
		},
		{
			name:   "link",
			filter: repository.EventFilter{OwnerID: "user-1", LinkID: f.mine.ID, ChannelRef: "telegram"},
			want:   []string{"early", "tg", "late"},
		},
		{
			name:   "another owner's link",
			filter: repository.EventFilter{OwnerID: "user-1", LinkID: f.theirs.ID},
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := f.reader.ListClicks(context.Background(), tt.filter)
			require.NoError(t, err)

			want := make([]string, 0, len(tt.want))
			for _, name := range tt.want {
				want = append(want, f.clickIDs[name])
			}
			assert.Equal(t, want, ids(events))
		})
	}
}

func TestEventReader_ListConversions(t *testing.T) {
	f := newEventFixture(t)

	events, err := f.reader.ListConversions(context.Background(), repository.EventFilter{OwnerID: "user-1"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, f.mine.ID, events[0].TrackingID)
	assert.InDelta(t, 50, events[0].Revenue, 1e-9)
	assert.InDelta(t, 2.5, events[0].Commission, 1e-9)

	to := day.Add(12 * time.Hour)
	events, err = f.reader.ListConversions(context.Background(), repository.EventFilter{OwnerID: "user-1", To: &to})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestEventReader_CountOnboardingUsers(t *testing.T) {
	db := testutil.NewDB(t)
	store := repository.NewStore(db)
	reader := repository.NewEventReader(db)
	ctx := context.Background()

	record := func(user string, eventType model.OnboardingEventType, at time.Time) {
		require.NoError(t, store.Onboarding().Create(ctx, &model.OnboardingEvent{
			ID: uuid.NewString(), UserID: user, EventType: eventType, CreatedAt: at,
		}))
	}
	record("u1", model.OnboardingSignup, day.Add(time.Hour))
	record("u2", model.OnboardingSignup, day.Add(2*time.Hour))
	record("u1", model.OnboardingStepViewed, day.Add(3*time.Hour))
	record("u1", model.OnboardingStepViewed, day.Add(4*time.Hour))
	record("u3", model.OnboardingSignup, day.Add(-time.Hour))

	counts, err := reader.CountOnboardingUsers(ctx, day, day.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, map[model.OnboardingEventType]int64{
		model.OnboardingSignup:     2,
		model.OnboardingStepViewed: 1,
	}, counts)
}
