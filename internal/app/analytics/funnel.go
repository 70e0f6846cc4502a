package analytics

import (
	"fmt"
	"time"

	"github.com/sifan077/DealLink/internal/app/model"
)

type FunnelCounts struct {
	Signups           int64 `json:"signups"`
	FirstStepViewed   int64 `json:"firstStepViewed"`
	ChannelConnected  int64 `json:"channelConnected"`
	AutomationCreated int64 `json:"automationCreated"`
}

type FunnelRates struct {
	SignupToFirstStep   string `json:"signupToFirstStep"`
	StepToChannel       string `json:"stepToChannel"`
	ChannelToAutomation string `json:"channelToAutomation"`
	Overall             string `json:"overall"`
}

type Funnel struct {
	From   time.Time    `json:"from"`
	To     time.Time    `json:"to"`
	Counts FunnelCounts `json:"counts"`
	Rates  FunnelRates  `json:"rates"`
}

// Percent formats part/total as "12.3%"; a zero total yields "0%".
func Percent(part, total int64) string {
	if total <= 0 {
		return "0%"
	}
	return fmt.Sprintf("%.1f%%", float64(part)/float64(total)*100)
}

// BuildFunnel derives stage-to-stage conversion from per-stage user counts.
func BuildFunnel(from, to time.Time, counts map[model.OnboardingEventType]int64) Funnel {
	c := FunnelCounts{
		Signups:           counts[model.OnboardingSignup],
		FirstStepViewed:   counts[model.OnboardingStepViewed],
		ChannelConnected:  counts[model.OnboardingChannelConnected],
		AutomationCreated: counts[model.OnboardingAutomationCreated],
	}
	return Funnel{
		From:   from,
		To:     to,
		Counts: c,
		Rates: FunnelRates{
			SignupToFirstStep:   Percent(c.FirstStepViewed, c.Signups),
			StepToChannel:       Percent(c.ChannelConnected, c.FirstStepViewed),
			ChannelToAutomation: Percent(c.AutomationCreated, c.ChannelConnected),
			Overall:             Percent(c.AutomationCreated, c.Signups),
		},
	}
}
