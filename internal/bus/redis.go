package bus

import (
	"context"
	"encoding/json"
	"fmt"

	errx "github.com/edahouse/shopcore/internal/core/error"
	logx "github.com/edahouse/shopcore/pkg/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisBridge relays bus messages over a Redis pub/sub channel so other processes (another
// storefront window, the admin console) see prompt triggers and update notices.
type RedisBridge struct {
	rdb     redis.Cmdable
	channel string
	id      string
	queue   chan Message
}

func NewRedisBridge(rdb redis.Cmdable, namespace string, buffer int) *RedisBridge {
	if buffer < 1 {
		buffer = 1
	}
	return &RedisBridge{
		rdb:     rdb,
		channel: fmt.Sprintf("%s:bus", namespace),
		id:      uuid.NewString(),
		queue:   make(chan Message, buffer),
	}
}

// Channel is the Redis channel messages are published on.
func (r *RedisBridge) Channel() string {
	return r.channel
}

// ID is stamped as Origin on every message this bridge relays.
func (r *RedisBridge) ID() string {
	return r.id
}

// Publish queues msg for Run; a full queue drops it.
func (r *RedisBridge) Publish(msg Message) {
	select {
	case r.queue <- msg:
	default:
		logx.Warn().Str("topic", string(msg.Topic)).Msg("redis bridge queue full, message dropped")
	}
}

// Run publishes queued messages until ctx is done.
func (r *RedisBridge) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-r.queue:
			if err := r.send(ctx, msg); err != nil {
				logx.Error().Err(err).Str("channel", r.channel).Msg("failed to publish bus message")
			}
		}
	}
}

// Drain publishes whatever is queued right now and returns. Short-lived commands call it
// instead of Run before exiting.
func (r *RedisBridge) Drain(ctx context.Context) error {
	for {
		select {
		case msg := <-r.queue:
			if err := r.send(ctx, msg); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func (r *RedisBridge) send(ctx context.Context, msg Message) error {
	msg.Origin = r.id
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal bus message: %w", err)
	}
	return errx.WrapRedis(r.rdb.Publish(ctx, r.channel, b).Err())
}

// Listen subscribes to the bridge channel and republishes every message another bridge
// relayed to target until ctx is done.
func (r *RedisBridge) Listen(ctx context.Context, client *redis.Client, target Publisher) error {
	sub := client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return errx.WrapRedis(err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var msg Message
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				logx.Warn().Err(err).Str("channel", r.channel).Msg("ignoring malformed bus message")
				continue
			}
			if msg.Origin == r.id {
				continue
			}
			target.Publish(msg)
		}
	}
}

var _ Publisher = (*RedisBridge)(nil)
