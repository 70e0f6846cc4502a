package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/sifan077/DealLink/internal/app/model"
	"gorm.io/gorm"
)

var (
	// ErrDuplicateTrackingID is returned when the unique index on tracking_id
	// rejects an insert.
	ErrDuplicateTrackingID = errors.New("conversion with this tracking id already exists")
	// ErrConversionNotFound signals that no conversion carries the tracking id.
	ErrConversionNotFound = errors.New("conversion not found")
)

// ConversionRepository defines the data access contract for conversion events.
type ConversionRepository interface {
	Create(ctx context.Context, event *model.ConversionEvent) error
	GetByTrackingID(ctx context.Context, trackingID string) (*model.ConversionEvent, error)
}

type conversionRepository struct {
	db *gorm.DB
}

// NewConversionRepository returns a GORM-backed ConversionRepository.
func NewConversionRepository(db *gorm.DB) ConversionRepository {
	return &conversionRepository{db: db}
}

func (r *conversionRepository) Create(ctx context.Context, event *model.ConversionEvent) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateTrackingID
		}
		return fmt.Errorf("insert conversion event: %w", err)
	}
	return nil
}

func (r *conversionRepository) GetByTrackingID(ctx context.Context, trackingID string) (*model.ConversionEvent, error) {
	var event model.ConversionEvent
	if err := r.db.WithContext(ctx).Where("tracking_id = ?", trackingID).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversionNotFound
		}
		return nil, err
	}
	return &event, nil
}
