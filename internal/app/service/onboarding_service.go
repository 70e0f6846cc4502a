package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sifan077/DealLink/internal/app/model"
	"github.com/sifan077/DealLink/internal/app/repository"
)

// OnboardingInput is a funnel event reported by the onboarding flow.
type OnboardingInput struct {
	UserID    string
	EventType string
	Step      int
}

// OnboardingService appends onboarding funnel events.
type OnboardingService interface {
	Record(ctx context.Context, input OnboardingInput) (*model.OnboardingEvent, error)
}

type onboardingService struct {
	store repository.Store
	now   func() time.Time
}

// NewOnboardingService returns an OnboardingService.
func NewOnboardingService(store repository.Store) OnboardingService {
	return &onboardingService{store: store, now: time.Now}
}

func (s *onboardingService) Record(ctx context.Context, input OnboardingInput) (*model.OnboardingEvent, error) {
	if strings.TrimSpace(input.UserID) == "" {
		return nil, invalidInput("userId is required")
	}
	eventType := model.OnboardingEventType(input.EventType)
	if !eventType.Valid() {
		return nil, invalidInput("unknown event type %q", input.EventType)
	}
	if input.Step < 0 {
		return nil, invalidInput("step must not be negative")
	}

	event := &model.OnboardingEvent{
		ID:        uuid.NewString(),
		UserID:    input.UserID,
		EventType: eventType,
		Step:      input.Step,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Onboarding().Create(ctx, event); err != nil {
		return nil, fmt.Errorf("record onboarding event: %w", err)
	}
	return event, nil
}
