package errx

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/redis/go-redis/v9"
)

// WrapRedis maps Redis errors to AppError: a missing key is 404, a timed out or cancelled
// command 504, anything else 502. Errors that are already an AppError pass through.
func WrapRedis(err error) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return err
	}

	if errors.Is(err, redis.Nil) {
		return New(err, http.StatusNotFound, RedisNotFoundMessage)
	}
	if isTimeout(err) {
		return New(err, http.StatusGatewayTimeout, RedisTimeoutMessage)
	}

	return New(err, http.StatusBadGateway, RedisErrorMessage)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
