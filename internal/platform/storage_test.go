package platform

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStorage(t *testing.T, s Storage) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.GetItem(ctx, "app_hash")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetItem(ctx, "app_hash", "abc123"))
	require.NoError(t, s.SetItem(ctx, "build_time", "2025-06-22T17:24:14Z"))

	v, ok, err := s.GetItem(ctx, "app_hash")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc123", v)

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"app_hash", "build_time"}, keys)

	require.NoError(t, s.RemoveItem(ctx, "app_hash"))
	_, ok, _ = s.GetItem(ctx, "app_hash")
	assert.False(t, ok)

	require.NoError(t, s.Clear(ctx))
	keys, err = s.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestMemoryStorage(t *testing.T) {
	exerciseStorage(t, NewMemoryStorage())
}

func TestRedisStorage(t *testing.T) {
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer rdb.Close()

	exerciseStorage(t, NewRedisStorage(rdb, "shop", "local"))
}

func TestRedisStorageAreasAreIsolated(t *testing.T) {
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer rdb.Close()
	ctx := context.Background()

	local := NewRedisStorage(rdb, "shop", "local")
	session := NewRedisStorage(rdb, "shop", "session")

	require.NoError(t, local.SetItem(ctx, "k", "local"))
	require.NoError(t, session.SetItem(ctx, "k", "session"))
	require.NoError(t, session.Clear(ctx))

	v, ok, err := local.GetItem(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "local", v)
	assert.True(t, srv.Exists("shop:storage:local"))
}

func TestRedisStorageUnavailable(t *testing.T) {
	srv, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr(), MaxRetries: -1})
	defer rdb.Close()
	srv.Close()

	s := NewRedisStorage(rdb, "shop", "local")
	assert.Error(t, s.SetItem(context.Background(), "k", "v"))
}
