package repository

import (
	"context"

	"github.com/sifan077/DealLink/internal/app/model"
	"gorm.io/gorm"
)

// Models lists every table owned by this service, in migration order.
func Models() []interface{} {
	return []interface{}{
		&model.ShortLink{},
		&model.ClickEvent{},
		&model.ConversionEvent{},
		&model.OnboardingEvent{},
	}
}

// Store groups the repositories that share one database handle, so a unit of
// work can run them inside a single transaction.
type Store interface {
	Links() LinkRepository
	Clicks() ClickEventRepository
	Conversions() ConversionRepository
	Counters() CounterRepository
	Onboarding() OnboardingRepository

	// WithinTx runs fn against a Store bound to one transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

type gormStore struct {
	db *gorm.DB
}

// NewStore returns a GORM-backed Store.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Links() LinkRepository             { return NewLinkRepository(s.db) }
func (s *gormStore) Clicks() ClickEventRepository      { return NewClickEventRepository(s.db) }
func (s *gormStore) Conversions() ConversionRepository { return NewConversionRepository(s.db) }
func (s *gormStore) Counters() CounterRepository       { return NewCounterRepository(s.db) }
func (s *gormStore) Onboarding() OnboardingRepository  { return NewOnboardingRepository(s.db) }

func (s *gormStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}
