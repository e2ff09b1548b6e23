package retrieval

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *RedisStore {
	t.Helper()

	server := miniredis.RunT(t)

	store, err := NewRedisStore("redis://"+server.Addr(), "ideaforge-test", nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		err := store.Close()
		assert.NoError(t, err)
	})

	return store
}

func TestRedisStore_AddAndSearch(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	require.NoError(t, store.Add(ctx, Snippet{ID: "s1", Text: "collaborative text editor with realtime sync", Source: "notes"}))
	require.NoError(t, store.Add(ctx, Snippet{ID: "s2", Text: "grocery delivery logistics platform"}))
	require.NoError(t, store.Add(ctx, Snippet{ID: "s3", Text: "realtime collaborative whiteboard product"}))

	results, err := store.Search(ctx, "realtime collaborative editor", 5)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "s1", results[0].ID)
	assert.Equal(t, "s3", results[1].ID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestRedisStore_Search_Limit(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	require.NoError(t, store.Add(ctx, Snippet{ID: "a", Text: "market analysis for editors"}))
	require.NoError(t, store.Add(ctx, Snippet{ID: "b", Text: "market analysis for platforms"}))
	require.NoError(t, store.Add(ctx, Snippet{ID: "c", Text: "market analysis for tooling"}))

	results, err := store.Search(ctx, "market analysis", 2)
	require.NoError(t, err)

	assert.Len(t, results, 2)
}

func TestRedisStore_Search_NoMatches(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	require.NoError(t, store.Add(ctx, Snippet{ID: "a", Text: "grocery delivery logistics"}))

	results, err := store.Search(ctx, "quantum cryptography", 5)
	require.NoError(t, err)

	assert.Empty(t, results)
}

func TestRedisStore_Add_RequiresID(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	assert.Error(t, store.Add(ctx, Snippet{Text: "missing id"}))
}

func TestRedisStore_HealthCheck(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	assert.NoError(t, store.HealthCheck(ctx))
}

func TestNewRedisStore_InvalidURL(t *testing.T) {
	_, err := NewRedisStore("not-a-url", "", nil)

	assert.Error(t, err)
}
