package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sifan077/DealLink/internal/app/model"
	"github.com/sifan077/DealLink/internal/app/privacy"
	"github.com/sifan077/DealLink/internal/app/repository"
	infraPrometheus "github.com/sifan077/DealLink/internal/infra/prometheus"
	"go.uber.org/zap"
)

// RequestContext carries the caller attributes a click is recorded from.
// IP is the raw address; it is anonymized before anything is stored or sent.
type RequestContext struct {
	IP         string
	UserAgent  string
	Referer    string
	ChannelRef string
}

// ClickResult tells the caller where to redirect.
type ClickResult struct {
	RedirectURL string
	TrackingID  string
	// Recorded is false when the click write failed and was skipped.
	Recorded bool
}

// ClickRecorder resolves a short code and records the click.
type ClickRecorder interface {
	RecordClick(ctx context.Context, code string, rc RequestContext) (*ClickResult, error)
}

// EventPublisher hands a click event to the asynchronous pipeline.
type EventPublisher interface {
	Publish(event *model.ClickEvent) error
}

// ClickRecorderDeps groups dependencies of the click recorder.
type ClickRecorderDeps struct {
	Links  ShortLinkService
	Store  repository.Store
	Logger *zap.Logger
	// Publisher switches the recorder to async mode when set.
	Publisher EventPublisher
	Now       func() time.Time
}

type clickRecorder struct {
	links     ShortLinkService
	store     repository.Store
	logger    *zap.Logger
	publisher EventPublisher
	now       func() time.Time
}

// NewClickRecorder returns a ClickRecorder.
func NewClickRecorder(deps ClickRecorderDeps) ClickRecorder {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &clickRecorder{
		links:     deps.Links,
		store:     deps.Store,
		logger:    logger,
		publisher: deps.Publisher,
		now:       now,
	}
}

// RecordClick never fails because of the click write itself: a failed write is
// logged and counted, and the redirect is still returned.
func (r *clickRecorder) RecordClick(ctx context.Context, code string, rc RequestContext) (*ClickResult, error) {
	link, err := r.links.Resolve(ctx, code)
	if err != nil {
		return nil, err
	}

	channel := clampText(rc.ChannelRef, model.ChannelRefMaxLength)
	if channel == "" {
		channel = link.ChannelRef
	}
	event := &model.ClickEvent{
		ID:         uuid.NewString(),
		LinkID:     link.ID,
		IPHash:     privacy.Process(rc.IP),
		UserAgent:  clampText(rc.UserAgent, model.UserAgentMaxLength),
		Referer:    clampText(rc.Referer, model.RefererMaxLength),
		ChannelRef: channel,
		Timestamp:  r.now().UTC(),
	}

	result := &ClickResult{
		RedirectURL: link.DestinationURL,
		TrackingID:  link.ID,
	}

	if r.publisher != nil {
		err := r.publisher.Publish(event)
		if err == nil {
			infraPrometheus.ClicksRecorded.WithLabelValues("async").Inc()
			result.Recorded = true
			return result, nil
		}
		r.logger.Warn("click publish failed, writing synchronously",
			zap.String("link_id", link.ID), zap.Error(err))
	}

	if err := PersistClick(ctx, r.store, event); err != nil {
		infraPrometheus.ClickRecordFailures.Inc()
		r.logger.Error("failed to record click",
			zap.String("link_id", link.ID),
			zap.String("code", code),
			zap.Error(err))
		return result, nil
	}

	infraPrometheus.ClicksRecorded.WithLabelValues("sync").Inc()
	result.Recorded = true
	return result, nil
}

// PersistClick appends the event and bumps the link's click counter in one
// transaction. An event id that is already stored is a no-op, so redelivered
// stream messages are not counted twice.
func PersistClick(ctx context.Context, store repository.Store, event *model.ClickEvent) error {
	err := store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Clicks().Create(ctx, event); err != nil {
			return err
		}
		return tx.Counters().Increment(ctx, event.LinkID, repository.CounterDelta{Clicks: 1})
	})
	if errors.Is(err, repository.ErrDuplicateClick) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("persist click: %w", err)
	}
	return nil
}

// clampText makes caller-supplied text storable: invalid UTF-8 and NUL bytes
// are dropped and the result is cut to at most limit runes.
func clampText(s string, limit int) string {
	s = strings.ReplaceAll(strings.ToValidUTF8(s, ""), "\x00", "")
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
