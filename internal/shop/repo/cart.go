package repo

import (
	"context"
	"encoding/json"

	errx "github.com/edahouse/shopcore/internal/core/error"
	"github.com/edahouse/shopcore/internal/platform"
	"github.com/edahouse/shopcore/internal/shop/model"
	logx "github.com/edahouse/shopcore/pkg/logger"
	"github.com/rs/zerolog"
)

// EnvelopeVersion is the persist-middleware version the web shop writes.
const EnvelopeVersion = 0

// StorageCartRepository keeps the cart in a Storage area inside the web shop's persist
// envelope: {"state":{"items":[...],"isOpen":false},"version":0}.
type StorageCartRepository struct {
	storage platform.Storage
	key     string
	log     zerolog.Logger
}

func NewStorageCartRepository(storage platform.Storage) *StorageCartRepository {
	return &StorageCartRepository{
		storage: storage,
		key:     model.StorageKey,
		log:     logx.Component("cart-repo"),
	}
}

type envelope struct {
	State   *model.CartState `json:"state"`
	Version int              `json:"version"`
}

// Stored lines are decoded leniently: a quantity written as a string still loads, and one
// that is not a number at all loads as NaN for the store to drop.
type storedLine struct {
	Product  *model.Product `json:"product"`
	Quantity model.Numeric  `json:"quantity"`
}

type storedEnvelope struct {
	State struct {
		Items  []storedLine `json:"items"`
		IsOpen bool         `json:"isOpen"`
	} `json:"state"`
	Version int `json:"version"`
}

// Load returns the stored cart. Missing, unreadable or foreign-version data yields an empty
// cart; only a failing storage is an error.
func (r *StorageCartRepository) Load(ctx context.Context) (*model.CartState, error) {
	raw, ok, err := r.storage.GetItem(ctx, r.key)
	if err != nil {
		return nil, errx.WrapStorage(err)
	}
	if !ok || raw == "" {
		return &model.CartState{}, nil
	}

	var env storedEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		r.log.Warn().Err(err).Str("key", r.key).Msg("discarding unreadable cart")
		return &model.CartState{}, nil
	}
	if env.Version != EnvelopeVersion {
		r.log.Warn().Int("version", env.Version).Str("key", r.key).Msg("discarding cart of unknown version")
		return &model.CartState{}, nil
	}

	state := &model.CartState{IsOpen: env.State.IsOpen, Items: make([]model.CartLine, 0, len(env.State.Items))}
	for _, line := range env.State.Items {
		state.Items = append(state.Items, model.CartLine{
			Product:  line.Product,
			Quantity: line.Quantity.Float(),
		})
	}
	return state, nil
}

func (r *StorageCartRepository) Save(ctx context.Context, state *model.CartState) error {
	if state == nil {
		state = &model.CartState{}
	}
	items := state.Items
	if items == nil {
		items = []model.CartLine{}
	}
	b, err := json.Marshal(envelope{
		State:   &model.CartState{Items: items, IsOpen: state.IsOpen},
		Version: EnvelopeVersion,
	})
	if err != nil {
		return err
	}
	if err := r.storage.SetItem(ctx, r.key, string(b)); err != nil {
		return errx.WrapStorage(err)
	}
	return nil
}

var _ model.CartRepository = (*StorageCartRepository)(nil)
