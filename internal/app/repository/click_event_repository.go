package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/sifan077/DealLink/internal/app/model"
	"gorm.io/gorm"
)

// ErrDuplicateClick signals a click event id that was already stored, which
// happens when the stream redelivers a message.
var ErrDuplicateClick = errors.New("click event already recorded")

// ClickEventRepository defines the data access contract for click events.
// Events are append-only: there is no update or delete.
type ClickEventRepository interface {
	Create(ctx context.Context, event *model.ClickEvent) error
	CountByLink(ctx context.Context, linkID string) (int64, error)
}

type clickEventRepository struct {
	db *gorm.DB
}

// NewClickEventRepository returns a GORM-backed ClickEventRepository.
func NewClickEventRepository(db *gorm.DB) ClickEventRepository {
	return &clickEventRepository{db: db}
}

func (r *clickEventRepository) Create(ctx context.Context, event *model.ClickEvent) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateClick
		}
		return fmt.Errorf("insert click event: %w", err)
	}
	return nil
}

func (r *clickEventRepository) CountByLink(ctx context.Context, linkID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.ClickEvent{}).Where("link_id = ?", linkID).Count(&count).Error
	return count, err
}
