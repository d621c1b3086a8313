package objectstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chimeradata/chimera/internal/testutil"
)

func setupTestStore(t *testing.T) *RedisStore {
	t.Helper()

	_, client := testutil.NewMiniredisClient(t)

	return NewRedisStore(client, "chimera")
}

func TestStorePutGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.Put(ctx, "aligned/latest", []byte(`[{"timestamp":"2024-01-01T00:00:00Z"}]`))
	require.NoError(t, err)

	data, err := store.Get(ctx, "aligned/latest")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"timestamp":"2024-01-01T00:00:00Z"}]`, string(data))
}

func TestStoreGetMissing(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.Get(context.Background(), "correlations/latest")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStoreOverwriteLatestKeepsSnapshots(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "aligned/20240101_000000.json", []byte(`1`)))
	require.NoError(t, store.Put(ctx, "aligned/latest", []byte(`1`)))
	require.NoError(t, store.Put(ctx, "aligned/20240102_000000.json", []byte(`2`)))
	require.NoError(t, store.Put(ctx, "aligned/latest", []byte(`2`)))

	latest, err := store.Get(ctx, "aligned/latest")
	require.NoError(t, err)
	assert.Equal(t, "2", string(latest))

	older, err := store.Get(ctx, "aligned/20240101_000000.json")
	require.NoError(t, err)
	assert.Equal(t, "1", string(older))

	ok, err := store.Exists(ctx, "aligned/20240102_000000.json")
	require.NoError(t, err)
	assert.True(t, ok)
}
