package analytics

import (
	"sort"

	"github.com/sifan077/DealLink/internal/app/model"
)

// DirectChannel labels events that carry no channel reference.
const DirectChannel = "direct"

type ChannelStats struct {
	Channel       string  `json:"channel"`
	Clicks        int64   `json:"clicks"`
	Conversions   int64   `json:"conversions"`
	Revenue       float64 `json:"revenue"`
	CVR           float64 `json:"cvr"`
	EPC           float64 `json:"epc"`
	ClicksPercent float64 `json:"clicksPercent"`
}

type ChannelBreakdown struct {
	Channels         []ChannelStats `json:"channels"`
	TopChannel       string         `json:"topChannel,omitempty"`
	TotalClicks      int64          `json:"totalClicks"`
	TotalConversions int64          `json:"totalConversions"`
	TotalRevenue     float64        `json:"totalRevenue"`
}

func channelKey(ref string) string {
	if ref == "" {
		return DirectChannel
	}
	return ref
}

// BuildChannelBreakdown groups events by channel reference. Channels are
// ranked by clicks, ties broken by name, and the first one is the top channel.
func BuildChannelBreakdown(clicks []model.ClickEvent, conversions []model.ConversionEvent) ChannelBreakdown {
	groups := make(map[string]*ChannelStats)
	group := func(ref string) *ChannelStats {
		key := channelKey(ref)
		s, ok := groups[key]
		if !ok {
			s = &ChannelStats{Channel: key}
			groups[key] = s
		}
		return s
	}

	var out ChannelBreakdown
	for _, c := range clicks {
		group(c.ChannelRef).Clicks++
		out.TotalClicks++
	}
	for _, c := range conversions {
		g := group(c.ChannelRef)
		g.Conversions++
		g.Revenue += c.Revenue
		out.TotalConversions++
		out.TotalRevenue += c.Revenue
	}

	out.Channels = make([]ChannelStats, 0, len(groups))
	for _, g := range groups {
		g.CVR = ConversionRate(g.Conversions, g.Clicks)
		g.EPC = EarningsPerClick(g.Revenue, g.Clicks)
		g.ClicksPercent = Share(g.Clicks, out.TotalClicks)
		g.Revenue = Round2(g.Revenue)
		out.Channels = append(out.Channels, *g)
	}
	sort.Slice(out.Channels, func(i, j int) bool {
		a, b := out.Channels[i], out.Channels[j]
		if a.Clicks != b.Clicks {
			return a.Clicks > b.Clicks
		}
		return a.Channel < b.Channel
	})

	if len(out.Channels) > 0 {
		out.TopChannel = out.Channels[0].Channel
	}
	out.TotalRevenue = Round2(out.TotalRevenue)
	return out
}
