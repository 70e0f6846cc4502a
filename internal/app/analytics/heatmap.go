package analytics

import (
	"math"
	"time"

	"github.com/sifan077/DealLink/internal/app/model"
)

const (
	daysPerWeek = 7
	hoursPerDay = 24
)

type HeatmapCell struct {
	Day       int    `json:"day"`
	DayName   string `json:"dayName"`
	Hour      int    `json:"hour"`
	Clicks    int64  `json:"clicks"`
	Intensity int    `json:"intensity"`
}

type Heatmap struct {
	Timezone    string        `json:"timezone"`
	Cells       []HeatmapCell `json:"cells"`
	MaxClicks   int64         `json:"maxClicks"`
	TotalClicks int64         `json:"totalClicks"`
	BestTime    *HeatmapCell  `json:"bestTime"`
}

// BuildHeatmap buckets clicks into a 7x24 (weekday x hour) grid in loc.
// Day 0 is Sunday. Intensity is value/max*100 rounded, so the busiest bucket
// is 100 and empty buckets are 0. BestTime is nil when there are no clicks;
// on ties the earliest bucket in the week wins.
func BuildHeatmap(clicks []model.ClickEvent, loc *time.Location) Heatmap {
	if loc == nil {
		loc = time.UTC
	}

	var grid [daysPerWeek][hoursPerDay]int64
	for _, c := range clicks {
		t := c.Timestamp.In(loc)
		grid[t.Weekday()][t.Hour()]++
	}

	h := Heatmap{
		Timezone: loc.String(),
		Cells:    make([]HeatmapCell, 0, daysPerWeek*hoursPerDay),
	}
	best := -1
	for d := 0; d < daysPerWeek; d++ {
		for hr := 0; hr < hoursPerDay; hr++ {
			v := grid[d][hr]
			h.TotalClicks += v
			if v > h.MaxClicks {
				h.MaxClicks = v
				best = len(h.Cells)
			}
			h.Cells = append(h.Cells, HeatmapCell{
				Day:     d,
				DayName: time.Weekday(d).String(),
				Hour:    hr,
				Clicks:  v,
			})
		}
	}

	if h.MaxClicks == 0 {
		return h
	}
	for i := range h.Cells {
		h.Cells[i].Intensity = int(math.Round(float64(h.Cells[i].Clicks) / float64(h.MaxClicks) * 100))
	}
	bt := h.Cells[best]
	h.BestTime = &bt
	return h
}
