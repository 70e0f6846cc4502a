package model

import "time"

// OnboardingEventType names a funnel stage.
type OnboardingEventType string

const (
	OnboardingSignup            OnboardingEventType = "signup"
	OnboardingStepViewed        OnboardingEventType = "onboarding_step_viewed"
	OnboardingChannelConnected  OnboardingEventType = "channel_connected"
	OnboardingAutomationCreated OnboardingEventType = "automation_created"
)

// Valid reports whether t is one of the known funnel stages.
func (t OnboardingEventType) Valid() bool {
	switch t {
	case OnboardingSignup, OnboardingStepViewed, OnboardingChannelConnected, OnboardingAutomationCreated:
		return true
	}
	return false
}

type OnboardingEvent struct {
	ID        string              `json:"id" gorm:"primaryKey;size:36"`
	UserID    string              `json:"user_id" gorm:"index;size:64;not null"`
	EventType OnboardingEventType `json:"event_type" gorm:"index;size:32;not null"`
	Step      int                 `json:"step" gorm:"not null;default:0"`
	CreatedAt time.Time           `json:"created_at" gorm:"index;autoCreateTime"`
}
