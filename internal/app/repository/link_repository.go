package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/sifan077/DealLink/internal/app/model"
	"gorm.io/gorm"
)

var (
	// ErrLinkNotFound signals that the requested short link does not exist.
	ErrLinkNotFound = errors.New("link not found")
	// ErrDuplicateCode signals that the short code is already taken.
	ErrDuplicateCode = errors.New("short code already exists")
)

// LinkRepository defines the data access contract for short links.
type LinkRepository interface {
	Create(ctx context.Context, link *model.ShortLink) error
	GetByCode(ctx context.Context, code string) (*model.ShortLink, error)
	GetByID(ctx context.Context, id string) (*model.ShortLink, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	EachCode(ctx context.Context, batchSize int, fn func(codes []string) error) error
}

type linkRepository struct {
	db *gorm.DB
}

// NewLinkRepository returns a GORM-backed LinkRepository.
func NewLinkRepository(db *gorm.DB) LinkRepository {
	return &linkRepository{db: db}
}

func (r *linkRepository) Create(ctx context.Context, link *model.ShortLink) error {
	if err := r.db.WithContext(ctx).Create(link).Error; err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateCode
		}
		return fmt.Errorf("insert short link: %w", err)
	}
	return nil
}

func (r *linkRepository) GetByCode(ctx context.Context, code string) (*model.ShortLink, error) {
	return r.first(ctx, "short_code = ?", code)
}

func (r *linkRepository) GetByID(ctx context.Context, id string) (*model.ShortLink, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *linkRepository) first(ctx context.Context, query string, arg string) (*model.ShortLink, error) {
	var link model.ShortLink
	if err := r.db.WithContext(ctx).Where(query, arg).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

func (r *linkRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&model.ShortLink{}).
		Where("short_code = ?", code).
		Limit(1).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("count short codes: %w", err)
	}
	return count > 0, nil
}

// EachCode walks every stored short code in batches, ordered by code.
func (r *linkRepository) EachCode(ctx context.Context, batchSize int, fn func(codes []string) error) error {
	if batchSize <= 0 {
		batchSize = 1000
	}

	after := ""
	for {
		var codes []string
		if err := r.db.WithContext(ctx).
			Model(&model.ShortLink{}).
			Where("short_code > ?", after).
			Order("short_code ASC").
			Limit(batchSize).
			Pluck("short_code", &codes).Error; err != nil {
			return fmt.Errorf("list short codes: %w", err)
		}
		if len(codes) == 0 {
			return nil
		}
		if err := fn(codes); err != nil {
			return err
		}
		if len(codes) < batchSize {
			return nil
		}
		after = codes[len(codes)-1]
	}
}
