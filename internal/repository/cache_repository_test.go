package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/schedule-quality-api/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, "quality", nil)
	ctx := context.Background()

	var out map[string]float64
	err := repo.Get(ctx, "recommendations:x", &out)
	assert.True(t, errors.Is(err, appErrors.ErrCacheMiss))

	require.NoError(t, repo.Set(ctx, "recommendations:x", map[string]float64{"a": 1}, time.Minute))
	require.NoError(t, repo.DeleteByPattern(ctx, "recommendations:*"))
	require.NoError(t, repo.Ping(ctx))
	require.NoError(t, repo.Close())
}

func TestCacheRepositoryNamespacesKeys(t *testing.T) {
	assert.Equal(t, "quality:recommendations:abc", NewCacheRepository(nil, "quality", nil).key("recommendations:abc"))
	assert.Equal(t, "recommendations:abc", NewCacheRepository(nil, "", nil).key("recommendations:abc"))
}
