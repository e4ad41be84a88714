package platform

import (
	"context"
	"errors"
	"fmt"
	"sort"

	errx "github.com/edahouse/shopcore/internal/core/error"
	logx "github.com/edahouse/shopcore/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// RedisStorage keeps one storage area as a Redis hash, so Clear is a single DEL and a page's
// whole local storage survives process restarts.
type RedisStorage struct {
	rdb redis.Cmdable
	key string
}

// NewRedisStorage returns the storage area "area" (e.g. "local") under namespace.
func NewRedisStorage(rdb redis.Cmdable, namespace, area string) *RedisStorage {
	return &RedisStorage{rdb: rdb, key: fmt.Sprintf("%s:storage:%s", namespace, area)}
}

func (r *RedisStorage) GetItem(ctx context.Context, key string) (string, bool, error) {
	v, err := r.rdb.HGet(ctx, r.key, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		logx.Error().Err(err).Str("hash", r.key).Str("key", key).Msg("failed to read storage item")
		return "", false, errx.WrapRedis(err)
	}
	return v, true, nil
}

func (r *RedisStorage) SetItem(ctx context.Context, key, value string) error {
	if err := r.rdb.HSet(ctx, r.key, key, value).Err(); err != nil {
		logx.Error().Err(err).Str("hash", r.key).Str("key", key).Msg("failed to write storage item")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisStorage) RemoveItem(ctx context.Context, key string) error {
	if err := r.rdb.HDel(ctx, r.key, key).Err(); err != nil {
		logx.Error().Err(err).Str("hash", r.key).Str("key", key).Msg("failed to remove storage item")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisStorage) Clear(ctx context.Context) error {
	if err := r.rdb.Del(ctx, r.key).Err(); err != nil {
		logx.Error().Err(err).Str("hash", r.key).Msg("failed to clear storage")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisStorage) Keys(ctx context.Context) ([]string, error) {
	keys, err := r.rdb.HKeys(ctx, r.key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		logx.Error().Err(err).Str("hash", r.key).Msg("failed to list storage keys")
		return nil, errx.WrapRedis(err)
	}
	sort.Strings(keys)
	return keys, nil
}

var _ Storage = (*RedisStorage)(nil)
