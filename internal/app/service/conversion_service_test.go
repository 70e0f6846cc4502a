package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/sifan077/DealLink/internal/app/repository"
	dbtest "github.com/sifan077/DealLink/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConversionService(t *testing.T) (ConversionService, repository.Store) {
	t.Helper()
	store := repository.NewStore(dbtest.NewDB(t))
	return NewConversionService(ConversionDeps{
		Store: store,
		Now:   func() time.Time { return fixedNow },
	}), store
}

func ptr(v float64) *float64 { return &v }

func TestConversionService_DefaultCommission(t *testing.T) {
	svc, store := newConversionService(t)
	link := seedLink(t, store, "Cnv0001", "user-1")
	ctx := context.Background()

	result, err := svc.RecordConversion(ctx, ConversionInput{TrackingID: link.ID, Revenue: 50})
	require.NoError(t, err)
	assert.NotEmpty(t, result.ConversionID)
	assert.Equal(t, link.ID, result.LinkID)
	assert.InDelta(t, 50, result.Revenue, 1e-9)
	assert.InDelta(t, 2.5, result.Commission, 1e-9)

	got, err := store.Links().GetByID(ctx, link.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.ConversionCount)
	assert.InDelta(t, 50, got.TotalRevenue, 1e-9)

	stored, err := store.Conversions().GetByTrackingID(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, "telegram", stored.ChannelRef)
	assert.True(t, stored.ConvertedAt.Equal(fixedNow))
}

func TestConversionService_ExplicitCommissionAndRate(t *testing.T) {
	store := repository.NewStore(dbtest.NewDB(t))
	svc := NewConversionService(ConversionDeps{Store: store, CommissionRate: 0.08})
	a := seedLink(t, store, "Cnv0002", "user-1")
	b := seedLink(t, store, "Cnv0003", "user-1")

	result, err := svc.RecordConversion(context.Background(), ConversionInput{TrackingID: a.ID, Revenue: 100, Commission: ptr(0)})
	require.NoError(t, err)
	assert.Zero(t, result.Commission)

	result, err = svc.RecordConversion(context.Background(), ConversionInput{TrackingID: b.ID, Revenue: 12.345})
	require.NoError(t, err)
	assert.InDelta(t, 0.9876, result.Commission, 1e-9)
}

func TestConversionService_Duplicate(t *testing.T) {
	svc, store := newConversionService(t)
	link := seedLink(t, store, "Cnv0004", "user-1")
	ctx := context.Background()

	first, err := svc.RecordConversion(ctx, ConversionInput{TrackingID: link.ID, Revenue: 50})
	require.NoError(t, err)

	_, err = svc.RecordConversion(ctx, ConversionInput{TrackingID: link.ID, Revenue: 70})
	require.ErrorIs(t, err, ErrConflict)
	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, first.ConversionID, conflict.ExistingConversionID)

	got, err := store.Links().GetByID(ctx, link.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.ConversionCount)
	assert.InDelta(t, 50, got.TotalRevenue, 1e-9)
}

func TestConversionService_ConcurrentDuplicates(t *testing.T) {
	svc, store := newConversionService(t)
	link := seedLink(t, store, "Cnv0005", "user-1")
	ctx := context.Background()

	const workers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   []string
		conflicts []string
		others    []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := svc.RecordConversion(ctx, ConversionInput{TrackingID: link.ID, Revenue: 50})
			mu.Lock()
			defer mu.Unlock()
			var conflict *ConflictError
			switch {
			case err == nil:
				created = append(created, result.ConversionID)
			case errors.As(err, &conflict):
				conflicts = append(conflicts, conflict.ExistingConversionID)
			default:
				others = append(others, err)
			}
		}()
	}
	wg.Wait()

	require.Empty(t, others)
	require.Len(t, created, 1)
	assert.Len(t, conflicts, workers-1)
	for _, id := range conflicts {
		assert.Equal(t, created[0], id)
	}

	got, err := store.Links().GetByID(ctx, link.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.ConversionCount)
	assert.InDelta(t, 50, got.TotalRevenue, 1e-9)
}

func TestConversionService_Validation(t *testing.T) {
	svc, store := newConversionService(t)
	link := seedLink(t, store, "Cnv0006", "user-1")

	tests := []struct {
		name  string
		input ConversionInput
	}{
		{name: "zero revenue", input: ConversionInput{TrackingID: link.ID, Revenue: 0}},
		{name: "negative revenue", input: ConversionInput{TrackingID: link.ID, Revenue: -5}},
		{name: "nan revenue", input: ConversionInput{TrackingID: link.ID, Revenue: math.NaN()}},
		{name: "infinite revenue", input: ConversionInput{TrackingID: link.ID, Revenue: math.Inf(1)}},
		{name: "negative commission", input: ConversionInput{TrackingID: link.ID, Revenue: 10, Commission: ptr(-1)}},
		{name: "missing tracking id", input: ConversionInput{Revenue: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RecordConversion(context.Background(), tt.input)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	got, err := store.Links().GetByID(context.Background(), link.ID)
	require.NoError(t, err)
	assert.Zero(t, got.ConversionCount)
}

func TestConversionService_UnknownTrackingID(t *testing.T) {
	svc, _ := newConversionService(t)

	_, err := svc.RecordConversion(context.Background(), ConversionInput{TrackingID: "does-not-exist", Revenue: 10})
	assert.ErrorIs(t, err, ErrLinkNotFound)
}

func TestConflictError(t *testing.T) {
	err := error(&ConflictError{ExistingConversionID: "c-1"})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "c-1")
}
