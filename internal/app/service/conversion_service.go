package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sifan077/DealLink/internal/app/model"
	"github.com/sifan077/DealLink/internal/app/repository"
	infraPrometheus "github.com/sifan077/DealLink/internal/infra/prometheus"
	"go.uber.org/zap"
)

// DefaultCommissionRate applies when a conversion notice omits the commission.
const DefaultCommissionRate = 0.05

// ConversionInput is a purchase notice from the affiliate side.
type ConversionInput struct {
	TrackingID string
	Revenue    float64
	// Commission is optional; nil means revenue times the default rate.
	Commission *float64
}

// ConversionResult describes the stored conversion.
type ConversionResult struct {
	ConversionID string
	LinkID       string
	Revenue      float64
	Commission   float64
}

// ConversionService attributes purchases to short links exactly once.
type ConversionService interface {
	RecordConversion(ctx context.Context, input ConversionInput) (*ConversionResult, error)
}

// ConversionDeps groups dependencies of the conversion service.
type ConversionDeps struct {
	Store          repository.Store
	Logger         *zap.Logger
	CommissionRate float64
	Now            func() time.Time
}

type conversionService struct {
	store  repository.Store
	logger *zap.Logger
	rate   float64
	now    func() time.Time
}

// NewConversionService returns a ConversionService. A non-positive rate falls
// back to DefaultCommissionRate.
func NewConversionService(deps ConversionDeps) ConversionService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	rate := deps.CommissionRate
	if rate <= 0 {
		rate = DefaultCommissionRate
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &conversionService{store: deps.Store, logger: logger, rate: rate, now: now}
}

func (s *conversionService) RecordConversion(ctx context.Context, input ConversionInput) (*ConversionResult, error) {
	if err := validateConversion(input); err != nil {
		infraPrometheus.Conversions.WithLabelValues(infraPrometheus.ConversionInvalid).Inc()
		return nil, err
	}

	link, err := s.store.Links().GetByID(ctx, input.TrackingID)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			infraPrometheus.Conversions.WithLabelValues(infraPrometheus.ConversionNotFound).Inc()
			return nil, ErrLinkNotFound
		}
		infraPrometheus.Conversions.WithLabelValues(infraPrometheus.ConversionFailed).Inc()
		return nil, fmt.Errorf("load link for conversion: %w", err)
	}

	commission := input.Revenue * s.rate
	if input.Commission != nil {
		commission = *input.Commission
	}
	commission = math.Round(commission*1e4) / 1e4

	event := &model.ConversionEvent{
		ID:          uuid.NewString(),
		LinkID:      link.ID,
		TrackingID:  input.TrackingID,
		Revenue:     input.Revenue,
		Commission:  commission,
		ChannelRef:  link.ChannelRef,
		ConvertedAt: s.now().UTC(),
	}

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Conversions().Create(ctx, event); err != nil {
			return err
		}
		return tx.Counters().Increment(ctx, link.ID, repository.CounterDelta{
			Conversions: 1,
			Revenue:     input.Revenue,
		})
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateTrackingID) {
			return nil, s.conflict(ctx, input.TrackingID)
		}
		infraPrometheus.Conversions.WithLabelValues(infraPrometheus.ConversionFailed).Inc()
		return nil, fmt.Errorf("record conversion: %w", err)
	}

	infraPrometheus.Conversions.WithLabelValues(infraPrometheus.ConversionCreated).Inc()
	infraPrometheus.ConversionRevenue.Add(input.Revenue)
	s.logger.Info("conversion recorded",
		zap.String("conversion_id", event.ID),
		zap.String("link_id", link.ID),
		zap.Float64("revenue", input.Revenue),
		zap.Float64("commission", commission),
	)

	return &ConversionResult{
		ConversionID: event.ID,
		LinkID:       link.ID,
		Revenue:      input.Revenue,
		Commission:   commission,
	}, nil
}

// conflict runs after the failed transaction rolled back, since Postgres
// refuses further statements inside an aborted transaction.
func (s *conversionService) conflict(ctx context.Context, trackingID string) error {
	infraPrometheus.Conversions.WithLabelValues(infraPrometheus.ConversionDuplicate).Inc()
	existing, err := s.store.Conversions().GetByTrackingID(ctx, trackingID)
	if err != nil {
		s.logger.Error("failed to load existing conversion",
			zap.String("tracking_id", trackingID), zap.Error(err))
		return &ConflictError{}
	}
	return &ConflictError{ExistingConversionID: existing.ID}
}

func validateConversion(input ConversionInput) error {
	if strings.TrimSpace(input.TrackingID) == "" {
		return invalidInput("trackingId is required")
	}
	if math.IsNaN(input.Revenue) || math.IsInf(input.Revenue, 0) || input.Revenue <= 0 {
		return invalidInput("revenue must be a positive number")
	}
	if c := input.Commission; c != nil {
		if math.IsNaN(*c) || math.IsInf(*c, 0) || *c < 0 {
			return invalidInput("commission must not be negative")
		}
	}
	return nil
}
