package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/sifan077/DealLink/internal/app/model"
	"github.com/sifan077/DealLink/internal/app/repository"
	infraPrometheus "github.com/sifan077/DealLink/internal/infra/prometheus"
	"go.uber.org/zap"
)

// MaxCodeAttempts bounds short code generation before ErrCodeExhausted.
const MaxCodeAttempts = 5

// ShortLinkService creates and resolves short links.
type ShortLinkService interface {
	CreateLink(ctx context.Context, input CreateLinkInput) (*model.ShortLink, error)
	// Resolve looks a link up by short code. Aggregate counters on the
	// returned link may be zero when it came from the cache.
	Resolve(ctx context.Context, code string) (*model.ShortLink, error)
	GetLink(ctx context.Context, id string) (*model.ShortLink, error)
}

// ResolveCache caches the immutable part of a short link by code.
type ResolveCache interface {
	Get(ctx context.Context, code string) (*model.ShortLink, bool, error)
	Set(ctx context.Context, link *model.ShortLink) error
}

// CreateLinkInput captures data required to create a link.
type CreateLinkInput struct {
	DestinationURL string
	OwnerID        string
	ChannelRef     string
	ASIN           string
	AmazonTag      string
}

// ShortLinkDeps groups dependencies of the short link service.
type ShortLinkDeps struct {
	Store     repository.Store
	Generator CodeGenerator
	Filter    *CodeFilter
	Cache     ResolveCache
	Logger    *zap.Logger
}

type shortLinkService struct {
	store     repository.Store
	generator CodeGenerator
	filter    *CodeFilter
	cache     ResolveCache
	logger    *zap.Logger
}

// NewShortLinkService returns a ShortLinkService. Generator is required;
// Filter and Cache are optional.
func NewShortLinkService(deps ShortLinkDeps) ShortLinkService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &shortLinkService{
		store:     deps.Store,
		generator: deps.Generator,
		filter:    deps.Filter,
		cache:     deps.Cache,
		logger:    logger,
	}
}

func (s *shortLinkService) CreateLink(ctx context.Context, input CreateLinkInput) (*model.ShortLink, error) {
	if err := validateDestination(input.DestinationURL); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.OwnerID) == "" {
		return nil, invalidInput("owner id is required")
	}

	for attempt := 1; attempt <= MaxCodeAttempts; attempt++ {
		code, err := s.generator()
		if err != nil {
			return nil, fmt.Errorf("generate short code: %w", err)
		}

		taken, err := s.codeTaken(ctx, code)
		if err != nil {
			return nil, err
		}
		if taken {
			s.collision(code, attempt)
			continue
		}

		link := &model.ShortLink{
			ID:             uuid.NewString(),
			ShortCode:      code,
			DestinationURL: input.DestinationURL,
			OwnerID:        input.OwnerID,
			ChannelRef:     input.ChannelRef,
			ASIN:           input.ASIN,
			AmazonTag:      input.AmazonTag,
		}
		if err := s.store.Links().Create(ctx, link); err != nil {
			if errors.Is(err, repository.ErrDuplicateCode) {
				// lost a race with a concurrent insert of the same code
				s.filter.Add(code)
				s.collision(code, attempt)
				continue
			}
			return nil, fmt.Errorf("create link: %w", err)
		}

		s.filter.Add(code)
		return link, nil
	}

	s.logger.Error("short code generation exhausted", zap.Int("attempts", MaxCodeAttempts))
	return nil, ErrCodeExhausted
}

func (s *shortLinkService) codeTaken(ctx context.Context, code string) (bool, error) {
	if !s.filter.MayContain(code) {
		return false, nil
	}
	exists, err := s.store.Links().ExistsByCode(ctx, code)
	if err != nil {
		return false, fmt.Errorf("check short code: %w", err)
	}
	return exists, nil
}

func (s *shortLinkService) collision(code string, attempt int) {
	infraPrometheus.ShortCodeCollisions.Inc()
	s.logger.Warn("short code collision", zap.String("code", code), zap.Int("attempt", attempt))
}

func (s *shortLinkService) Resolve(ctx context.Context, code string) (*model.ShortLink, error) {
	if !IsValidShortCode(code) {
		return nil, ErrLinkNotFound
	}

	if s.cache != nil {
		link, ok, err := s.cache.Get(ctx, code)
		if err != nil {
			s.logger.Warn("resolve cache read failed", zap.String("code", code), zap.Error(err))
		} else if ok {
			return link, nil
		}
	}

	link, err := s.store.Links().GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("resolve link: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, link); err != nil {
			s.logger.Warn("resolve cache write failed", zap.String("code", code), zap.Error(err))
		}
	}
	return link, nil
}

func (s *shortLinkService) GetLink(ctx context.Context, id string) (*model.ShortLink, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrLinkNotFound
	}
	link, err := s.store.Links().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("get link: %w", err)
	}
	return link, nil
}

func validateDestination(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return invalidInput("destination url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return invalidInput("destination url must be an absolute http(s) url")
	}
	return nil
}

// AffiliateDestination appends the partner tag to an Amazon product URL unless
// the URL already carries one.
func AffiliateDestination(amazonURL, tag string) (string, error) {
	if err := validateDestination(amazonURL); err != nil {
		return "", err
	}
	u, _ := url.Parse(amazonURL)
	if tag == "" {
		return u.String(), nil
	}
	q := u.Query()
	if q.Get("tag") == "" {
		q.Set("tag", tag)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
