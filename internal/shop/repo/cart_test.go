package repo

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/edahouse/shopcore/internal/platform"
	"github.com/edahouse/shopcore/internal/platform/platformtest"
	"github.com/edahouse/shopcore/internal/shop/model"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleState() *model.CartState {
	return &model.CartState{
		IsOpen: true,
		Items: []model.CartLine{
			{
				Product:    &model.Product{ID: 7, Name: "Борщ", Price: model.NumericString("45.00"), Unit: model.UnitPiece},
				Quantity:   2,
				TotalPrice: 90,
			},
		},
	}
}

func TestSaveWritesPersistEnvelope(t *testing.T) {
	ctx := context.Background()
	storage := platform.NewMemoryStorage()
	r := NewStorageCartRepository(storage)

	require.NoError(t, r.Save(ctx, sampleState()))

	raw, ok, err := storage.GetItem(ctx, model.StorageKey)
	require.NoError(t, err)
	require.True(t, ok)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	assert.EqualValues(t, 0, doc["version"])
	state := doc["state"].(map[string]any)
	assert.Equal(t, true, state["isOpen"])
	items := state["items"].([]any)
	require.Len(t, items, 1)
	line := items[0].(map[string]any)
	assert.EqualValues(t, 2, line["quantity"])
	assert.EqualValues(t, 90, line["totalPrice"])
}

func TestLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	r := NewStorageCartRepository(platform.NewMemoryStorage())
	require.NoError(t, r.Save(ctx, sampleState()))

	got, err := r.Load(ctx)
	require.NoError(t, err)
	assert.True(t, got.IsOpen)
	require.Len(t, got.Items, 1)
	assert.Equal(t, int64(7), got.Items[0].Product.ID)
	assert.Equal(t, 2.0, got.Items[0].Quantity)
	assert.Equal(t, "45.00", got.Items[0].Product.Price.String())
}

func TestLoadEmptyAndCorrupt(t *testing.T) {
	ctx := context.Background()
	storage := platform.NewMemoryStorage()
	r := NewStorageCartRepository(storage)

	got, err := r.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got.Items)

	require.NoError(t, storage.SetItem(ctx, model.StorageKey, "{not json"))
	got, err = r.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got.Items)
	assert.False(t, got.IsOpen)

	require.NoError(t, storage.SetItem(ctx, model.StorageKey, `{"state":{"items":[{"product":{"id":1},"quantity":1}]},"version":3}`))
	got, err = r.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got.Items)
}

func TestLoadLenientQuantities(t *testing.T) {
	ctx := context.Background()
	storage := platform.NewMemoryStorage()
	r := NewStorageCartRepository(storage)

	raw := `{"state":{"items":[
		{"product":{"id":1,"price":"10"},"quantity":"3"},
		{"product":{"id":2,"price":"10"},"quantity":"abc"}
	],"isOpen":false},"version":0}`
	require.NoError(t, storage.SetItem(ctx, model.StorageKey, raw))

	got, err := r.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.Equal(t, 3.0, got.Items[0].Quantity)
	assert.True(t, math.IsNaN(got.Items[1].Quantity))
}

func TestSaveFailure(t *testing.T) {
	boom := errors.New("quota exceeded")
	r := NewStorageCartRepository(&platformtest.FailingStorage{Storage: platform.NewMemoryStorage(), FailSet: boom})

	err := r.Save(context.Background(), sampleState())
	assert.ErrorIs(t, err, boom)
}

func TestRedisBackedCart(t *testing.T) {
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer rdb.Close()

	ctx := context.Background()
	r := NewStorageCartRepository(platform.NewRedisStorage(rdb, "test", "local"))
	require.NoError(t, r.Save(ctx, sampleState()))

	assert.True(t, srv.Exists("test:storage:local"))
	got, err := r.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
}
