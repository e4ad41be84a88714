package errx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapRedis(t *testing.T) {
	assert.NoError(t, WrapRedis(nil))

	err := WrapRedis(redis.Nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, StatusOf(err))
	assert.ErrorIs(t, err, redis.Nil)

	boom := errors.New("connection refused")
	err = WrapRedis(boom)
	assert.Equal(t, http.StatusBadGateway, StatusOf(err))
	assert.ErrorIs(t, err, boom)

	err = WrapRedis(fmt.Errorf("get cart: %w", context.DeadlineExceeded))
	assert.Equal(t, http.StatusGatewayTimeout, StatusOf(err))
	assert.Same(t, err, WrapRedis(err))
}

func TestWrapHTTP(t *testing.T) {
	assert.NoError(t, WrapHTTP(nil, http.StatusOK))

	err := WrapHTTP(nil, http.StatusServiceUnavailable)
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, StatusOf(err))
	assert.Contains(t, err.Error(), "unexpected status 503")

	err = WrapHTTP(errors.New("dial tcp: timeout"), 0)
	assert.Equal(t, http.StatusBadGateway, StatusOf(err))
}

func TestStatusOfPlainError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, StatusOf(errors.New("x")))
}

func TestWrapStorage(t *testing.T) {
	assert.NoError(t, WrapStorage(nil))

	disk := errors.New("disk full")
	err := WrapStorage(disk)
	assert.Equal(t, http.StatusInternalServerError, StatusOf(err))
	assert.ErrorIs(t, err, disk)

	redisErr := WrapRedis(errors.New("connection refused"))
	assert.Same(t, redisErr, WrapStorage(redisErr))
}
