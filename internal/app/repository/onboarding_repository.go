package repository

import (
	"context"
	"fmt"

	"github.com/sifan077/DealLink/internal/app/model"
	"gorm.io/gorm"
)

// OnboardingRepository stores funnel events emitted by the onboarding flow.
type OnboardingRepository interface {
	Create(ctx context.Context, event *model.OnboardingEvent) error
}

type onboardingRepository struct {
	db *gorm.DB
}

// NewOnboardingRepository returns a GORM-backed OnboardingRepository.
func NewOnboardingRepository(db *gorm.DB) OnboardingRepository {
	return &onboardingRepository{db: db}
}

func (r *onboardingRepository) Create(ctx context.Context, event *model.OnboardingEvent) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("insert onboarding event: %w", err)
	}
	return nil
}
