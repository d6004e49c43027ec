package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/repository"
	apperrors "github.com/spec-kit/workorder-service/pkg/util/errorutil"
)

// CatalogBudget is the externally maintained list of budget options.
const CatalogBudget = "budget"

// CatalogService serves option lists: the budget catalog from the database
// (cached in Redis) and the fixed resolution vocabularies.
type CatalogService struct {
	repo    repository.OptionCatalogRepository
	cache   repository.OptionCache
	ttl     time.Duration
	timeout time.Duration
	logger  *zap.Logger
}

// CatalogDependencies bundles collaborators for the catalog service.
type CatalogDependencies struct {
	Repo    repository.OptionCatalogRepository
	Cache   repository.OptionCache
	TTL     time.Duration
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewCatalogService constructs the service. Cache may be nil.
func NewCatalogService(deps CatalogDependencies) *CatalogService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{
		repo:    deps.Repo,
		cache:   deps.Cache,
		ttl:     deps.TTL,
		timeout: deps.Timeout,
		logger:  logger,
	}
}

// Options returns the options for kind. Reason vocabularies are answered
// locally; the budget catalog goes cache first, then the database. Cache
// failures only degrade to a database read.
func (s *CatalogService) Options(ctx context.Context, kind string) ([]string, error) {
	if set := domain.ReasonSet(kind); set.Valid() {
		return set.Reasons(), nil
	}
	if kind != CatalogBudget {
		return nil, apperrors.NewNotFound("catalog", map[string]any{"kind": kind})
	}

	if s.cache != nil {
		cacheCtx, cancel := s.callContext(ctx)
		options, ok, err := s.cache.Get(cacheCtx, kind)
		cancel()
		switch {
		case err != nil:
			s.logger.Warn("catalog cache read failed", zap.String("kind", kind), zap.Error(err))
		case ok:
			return options, nil
		}
	}

	dbCtx, cancel := s.callContext(ctx)
	options, err := s.repo.ListOptions(dbCtx, kind)
	cancel()
	if err != nil {
		return nil, apperrors.NewRemoteUnavailable("option_catalog", err)
	}

	if s.cache != nil && s.ttl > 0 {
		cacheCtx, cancel := s.callContext(ctx)
		if err := s.cache.Set(cacheCtx, kind, options, s.ttl); err != nil {
			s.logger.Warn("catalog cache write failed", zap.String("kind", kind), zap.Error(err))
		}
		cancel()
	}
	return options, nil
}

func (s *CatalogService) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
