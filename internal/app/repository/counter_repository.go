package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/sifan077/DealLink/internal/app/model"
	"gorm.io/gorm"
)

// ErrNegativeDelta is returned for decrements; counters are monotonic.
var ErrNegativeDelta = errors.New("counter delta must not be negative")

// CounterDelta is the amount added to each aggregate column of a short link.
type CounterDelta struct {
	Clicks      int64
	Conversions int64
	Revenue     float64
}

func (d CounterDelta) isZero() bool {
	return d.Clicks == 0 && d.Conversions == 0 && d.Revenue == 0
}

// CounterRepository applies atomic increments to short link aggregates.
// Each call is a single UPDATE ... SET col = col + ?; nothing is read first.
type CounterRepository interface {
	Increment(ctx context.Context, linkID string, delta CounterDelta) error
}

type counterRepository struct {
	db *gorm.DB
}

// NewCounterRepository returns a GORM-backed CounterRepository.
func NewCounterRepository(db *gorm.DB) CounterRepository {
	return &counterRepository{db: db}
}

func (r *counterRepository) Increment(ctx context.Context, linkID string, delta CounterDelta) error {
	if delta.Clicks < 0 || delta.Conversions < 0 || delta.Revenue < 0 {
		return ErrNegativeDelta
	}
	if delta.isZero() {
		return nil
	}

	updates := make(map[string]interface{}, 3)
	if delta.Clicks != 0 {
		updates["clicks"] = gorm.Expr("clicks + ?", delta.Clicks)
	}
	if delta.Conversions != 0 {
		updates["conversion_count"] = gorm.Expr("conversion_count + ?", delta.Conversions)
	}
	if delta.Revenue != 0 {
		updates["total_revenue"] = gorm.Expr("total_revenue + ?", delta.Revenue)
	}

	result := r.db.WithContext(ctx).
		Model(&model.ShortLink{}).
		Where("id = ?", linkID).
		UpdateColumns(updates)
	if result.Error != nil {
		return fmt.Errorf("increment counters: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrLinkNotFound
	}
	return nil
}
