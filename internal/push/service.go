// Package push manages the web push subscription and decides when to ask for permission.
package push

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/edahouse/shopcore/internal/shop/model"
	logx "github.com/edahouse/shopcore/pkg/logger"
	"github.com/rs/zerolog"
)

var (
	ErrNoVAPIDKey          = errors.New("server has no vapid public key")
	ErrInvalidSubscription = errors.New("subscription needs an absolute endpoint and both keys")
)

// API is the shop's push subscription endpoint set.
type API interface {
	VAPIDKey(ctx context.Context) (string, error)
	Subscribe(ctx context.Context, sub model.PushSubscription) error
	Unsubscribe(ctx context.Context, endpoint string) error
}

type Service struct {
	api API
	log zerolog.Logger
}

func NewService(api API) *Service {
	return &Service{api: api, log: logx.Component("push")}
}

// ApplicationServerKey returns the decoded VAPID public key to subscribe with.
func (s *Service) ApplicationServerKey(ctx context.Context) ([]byte, error) {
	key, err := s.api.VAPIDKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch vapid key: %w", err)
	}
	if key == "" {
		return nil, ErrNoVAPIDKey
	}
	return DecodeApplicationServerKey(key)
}

// Subscribe registers a browser subscription with the shop. The keys are the raw bytes the
// push manager returned.
func (s *Service) Subscribe(ctx context.Context, endpoint string, p256dh, auth []byte) (model.PushSubscription, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" || len(p256dh) == 0 || len(auth) == 0 {
		return model.PushSubscription{}, ErrInvalidSubscription
	}

	sub := model.PushSubscription{
		Endpoint: endpoint,
		Keys:     model.PushKeys{P256dh: EncodeKey(p256dh), Auth: EncodeKey(auth)},
	}
	if err := s.api.Subscribe(ctx, sub); err != nil {
		return model.PushSubscription{}, fmt.Errorf("save subscription: %w", err)
	}
	s.log.Info().Str("host", u.Host).Msg("push subscription saved")
	return sub, nil
}

func (s *Service) Unsubscribe(ctx context.Context, endpoint string) error {
	if endpoint == "" {
		return ErrInvalidSubscription
	}
	if err := s.api.Unsubscribe(ctx, endpoint); err != nil {
		return fmt.Errorf("remove subscription: %w", err)
	}
	return nil
}
