package analytics

import (
	"testing"
	"time"

	"github.com/sifan077/DealLink/internal/app/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerivedMetrics(t *testing.T) {
	assert.Equal(t, 33.33, ConversionRate(1, 3))
	assert.Equal(t, 16.67, EarningsPerClick(50, 3))
	assert.Equal(t, 0.0, ConversionRate(5, 0))
	assert.Equal(t, 0.0, EarningsPerClick(50, 0))
	assert.Equal(t, 66.67, Share(2, 3))
	assert.Equal(t, 0.0, Share(2, 0))
}

func clicksOn(channel string, n int, at time.Time) []model.ClickEvent {
	out := make([]model.ClickEvent, n)
	for i := range out {
		out[i] = model.ClickEvent{ChannelRef: channel, Timestamp: at}
	}
	return out
}

func TestBuildChannelBreakdown(t *testing.T) {
	now := time.Now()
	var clicks []model.ClickEvent
	clicks = append(clicks, clicksOn("tg:deals", 6, now)...)
	clicks = append(clicks, clicksOn("tg:tech", 3, now)...)
	clicks = append(clicks, clicksOn("", 1, now)...)

	conversions := []model.ConversionEvent{
		{ChannelRef: "tg:deals", Revenue: 30},
		{ChannelRef: "tg:deals", Revenue: 20},
		{ChannelRef: "tg:tech", Revenue: 10},
		{ChannelRef: "tg:ghost", Revenue: 5},
	}

	got := BuildChannelBreakdown(clicks, conversions)

	assert.Equal(t, "tg:deals", got.TopChannel)
	assert.EqualValues(t, 10, got.TotalClicks)
	assert.EqualValues(t, 4, got.TotalConversions)
	assert.Equal(t, 65.0, got.TotalRevenue)
	require.Len(t, got.Channels, 4)

	deals := got.Channels[0]
	assert.Equal(t, "tg:deals", deals.Channel)
	assert.EqualValues(t, 6, deals.Clicks)
	assert.EqualValues(t, 2, deals.Conversions)
	assert.Equal(t, 50.0, deals.Revenue)
	assert.Equal(t, 33.33, deals.CVR)
	assert.Equal(t, 8.33, deals.EPC)
	assert.Equal(t, 60.0, deals.ClicksPercent)

	assert.Equal(t, "tg:tech", got.Channels[1].Channel)
	assert.Equal(t, DirectChannel, got.Channels[2].Channel)

	ghost := got.Channels[3]
	assert.Equal(t, "tg:ghost", ghost.Channel)
	assert.Zero(t, ghost.Clicks)
	assert.Zero(t, ghost.CVR)
	assert.Zero(t, ghost.EPC)
}

func TestBuildChannelBreakdown_Empty(t *testing.T) {
	got := BuildChannelBreakdown(nil, nil)
	assert.Empty(t, got.Channels)
	assert.Empty(t, got.TopChannel)
}

func TestBuildHeatmap(t *testing.T) {
	// 2026-10-19 is a Monday.
	monday9 := time.Date(2026, 10, 19, 9, 15, 0, 0, time.UTC)
	friday20 := time.Date(2026, 10, 23, 20, 5, 0, 0, time.UTC)

	var clicks []model.ClickEvent
	clicks = append(clicks, clicksOn("", 4, monday9)...)
	clicks = append(clicks, clicksOn("", 1, friday20)...)

	h := BuildHeatmap(clicks, time.UTC)

	require.Len(t, h.Cells, 7*24)
	assert.EqualValues(t, 4, h.MaxClicks)
	assert.EqualValues(t, 5, h.TotalClicks)
	require.NotNil(t, h.BestTime)
	assert.Equal(t, int(time.Monday), h.BestTime.Day)
	assert.Equal(t, 9, h.BestTime.Hour)
	assert.Equal(t, 100, h.BestTime.Intensity)

	fri := h.Cells[int(time.Friday)*24+20]
	assert.EqualValues(t, 1, fri.Clicks)
	assert.Equal(t, 25, fri.Intensity)

	empty := h.Cells[0]
	assert.Zero(t, empty.Clicks)
	assert.Zero(t, empty.Intensity)

	for _, c := range h.Cells {
		if c.Clicks == h.MaxClicks {
			assert.Equal(t, 100, c.Intensity)
		}
		if c.Clicks == 0 {
			assert.Equal(t, 0, c.Intensity)
		}
	}
}

func TestBuildHeatmap_Timezone(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	// Sunday 23:30 UTC is Monday 01:30 at UTC+2.
	ts := time.Date(2026, 10, 18, 23, 30, 0, 0, time.UTC)

	h := BuildHeatmap(clicksOn("", 1, ts), loc)
	require.NotNil(t, h.BestTime)
	assert.Equal(t, int(time.Monday), h.BestTime.Day)
	assert.Equal(t, 1, h.BestTime.Hour)
	assert.Equal(t, "UTC+2", h.Timezone)
}

func TestBuildHeatmap_Empty(t *testing.T) {
	h := BuildHeatmap(nil, nil)
	assert.Nil(t, h.BestTime)
	assert.Zero(t, h.MaxClicks)
	for _, c := range h.Cells {
		assert.Zero(t, c.Intensity)
	}
}

func TestBuildFunnel(t *testing.T) {
	from := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	f := BuildFunnel(from, to, map[model.OnboardingEventType]int64{
		model.OnboardingSignup:            200,
		model.OnboardingStepViewed:        150,
		model.OnboardingChannelConnected:  60,
		model.OnboardingAutomationCreated: 0,
	})

	assert.EqualValues(t, 200, f.Counts.Signups)
	assert.Equal(t, "75.0%", f.Rates.SignupToFirstStep)
	assert.Equal(t, "40.0%", f.Rates.StepToChannel)
	assert.Equal(t, "0.0%", f.Rates.ChannelToAutomation)
	assert.Equal(t, "0.0%", f.Rates.Overall)
}

func TestBuildFunnel_ZeroStages(t *testing.T) {
	f := BuildFunnel(time.Time{}, time.Time{}, nil)
	assert.Equal(t, "0%", f.Rates.SignupToFirstStep)
	assert.Equal(t, "0%", f.Rates.StepToChannel)
	assert.Equal(t, "0%", f.Rates.ChannelToAutomation)
	assert.Equal(t, "0%", f.Rates.Overall)
}
