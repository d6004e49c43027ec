package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/workorder-service/internal/domain"
	apperrors "github.com/spec-kit/workorder-service/pkg/util/errorutil"
)

func TestCatalogBudgetIsCachedAfterFirstRead(t *testing.T) {
	repo := &fakeOptions{options: []string{"P-100"}}
	cache := newFakeCache()
	svc := NewCatalogService(CatalogDependencies{Repo: repo, Cache: cache, TTL: time.Minute})
	ctx := context.Background()

	first, err := svc.Options(ctx, CatalogBudget)
	require.NoError(t, err)
	second, err := svc.Options(ctx, CatalogBudget)
	require.NoError(t, err)

	assert.Equal(t, []string{"P-100"}, first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, repo.calls)
	assert.Equal(t, 1, cache.sets)
}

func TestCatalogFallsBackToDatabaseWhenCacheFails(t *testing.T) {
	repo := &fakeOptions{options: []string{"P-100", "P-200"}}
	cache := newFakeCache()
	cache.getErr = errStoreDown
	cache.setErr = errStoreDown
	svc := NewCatalogService(CatalogDependencies{Repo: repo, Cache: cache, TTL: time.Minute})

	options, err := svc.Options(context.Background(), CatalogBudget)
	require.NoError(t, err)
	assert.Equal(t, []string{"P-100", "P-200"}, options)
}

func TestCatalogDatabaseFailureIsRemoteUnavailable(t *testing.T) {
	svc := NewCatalogService(CatalogDependencies{Repo: &fakeOptions{err: errStoreDown}})
	_, err := svc.Options(context.Background(), CatalogBudget)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeRemoteUnavailable))
}

func TestCatalogServesReasonVocabularies(t *testing.T) {
	repo := &fakeOptions{}
	svc := NewCatalogService(CatalogDependencies{Repo: repo})

	options, err := svc.Options(context.Background(), string(domain.ReasonSetCancellation))
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonSetCancellation.Reasons(), options)
	assert.Zero(t, repo.calls)
}

func TestCatalogUnknownKind(t *testing.T) {
	svc := NewCatalogService(CatalogDependencies{Repo: &fakeOptions{}})
	_, err := svc.Options(context.Background(), "colours")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}
