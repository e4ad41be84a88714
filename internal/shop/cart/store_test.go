package cart

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/edahouse/shopcore/internal/bus"
	"github.com/edahouse/shopcore/internal/platform"
	"github.com/edahouse/shopcore/internal/platform/platformtest"
	"github.com/edahouse/shopcore/internal/shop/model"
	"github.com/edahouse/shopcore/internal/shop/pricing"
	"github.com/edahouse/shopcore/internal/shop/repo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func product(id int64, price string, unit model.Unit) *model.Product {
	return &model.Product{ID: id, Name: "p", Price: model.NumericString(price), Unit: unit}
}

func newStore(t *testing.T) (*Store, platform.Storage, *bus.Bus) {
	t.Helper()
	storage := platform.NewMemoryStorage()
	events := bus.New(8)
	return NewStore(repo.NewStorageCartRepository(storage), events), storage, events
}

func TestAddItemMergesSameProduct(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newStore(t)
	p := product(1, "12.5", model.UnitPiece)

	require.NoError(t, s.AddItem(ctx, p, 2))
	require.NoError(t, s.AddItem(ctx, p, 3))

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 5.0, items[0].Quantity)
	assert.Equal(t, pricing.CalculateTotal(12.5, 5, model.UnitPiece), items[0].TotalPrice)
}

func TestAddItemRepricesWithIncomingProduct(t *testing.T) {
	ctx := context.Background()
	s, storage, _ := newStore(t)

	require.NoError(t, s.AddItem(ctx, product(1, "10", model.UnitPiece), 2))
	require.NoError(t, s.AddItem(ctx, product(1, "20", model.UnitPiece), 3))

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 5.0, items[0].Quantity)
	assert.Equal(t, "20", items[0].Product.Price.String())
	assert.Equal(t, 100.0, items[0].TotalPrice)

	reloaded := NewStore(repo.NewStorageCartRepository(storage), nil)
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, 100.0, reloaded.GetTotalPrice())
}

func TestAddItemWeighedProduct(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newStore(t)

	require.NoError(t, s.AddItem(ctx, product(1, "10", model.Unit100g), 250))
	assert.InDelta(t, 25.0, s.GetTotalPrice(), 1e-9)
}

func TestAddItemRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	s, storage, _ := newStore(t)

	assert.ErrorIs(t, s.AddItem(ctx, nil, 1), model.ErrInvalidProduct)
	assert.ErrorIs(t, s.AddItem(ctx, product(0, "5", model.UnitPiece), 1), model.ErrInvalidProduct)

	require.NoError(t, s.AddItem(ctx, product(1, "5", model.UnitPiece), 0))
	require.NoError(t, s.AddItem(ctx, product(1, "5", model.UnitPiece), -2))
	require.NoError(t, s.AddItem(ctx, product(1, "5", model.UnitPiece), math.NaN()))
	assert.Empty(t, s.Items())

	_, ok, err := storage.GetItem(ctx, model.StorageKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAddItemPublishesPromptTrigger(t *testing.T) {
	ctx := context.Background()
	s, _, events := newStore(t)
	triggers, cancel := events.Subscribe(bus.TopicPromptTrigger)
	defer cancel()

	require.NoError(t, s.AddItem(ctx, product(1, "5", model.UnitPiece), 1))

	require.Len(t, triggers, 1)
	msg := <-triggers
	assert.Equal(t, bus.ActionCartAdd, msg.Data["action"])
}

func TestAddItemDoesNotWaitForSlowSubscribers(t *testing.T) {
	ctx := context.Background()
	storage := platform.NewMemoryStorage()
	events := bus.New(1)
	_, cancel := events.Subscribe(bus.TopicPromptTrigger)
	defer cancel()
	s := NewStore(repo.NewStorageCartRepository(storage), events)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.AddItem(ctx, product(1, "5", model.UnitPiece), 1))
	}
	assert.Equal(t, 5.0, s.GetTotalItems())
	assert.Equal(t, int64(4), events.Dropped())
}

func TestUpdateQuantity(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newStore(t)
	require.NoError(t, s.AddItem(ctx, product(1, "5", model.UnitPiece), 1))
	require.NoError(t, s.AddItem(ctx, product(2, "8", model.UnitKg), 1.5))

	require.NoError(t, s.UpdateQuantity(ctx, 1, 4))
	items := s.Items()
	require.Len(t, items, 2)
	assert.Equal(t, 4.0, items[0].Quantity)
	assert.InDelta(t, 20.0, items[0].TotalPrice, 1e-9)

	require.NoError(t, s.UpdateQuantity(ctx, 1, 0))
	items = s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, int64(2), items[0].Product.ID)

	require.NoError(t, s.UpdateQuantity(ctx, 2, -1))
	assert.Empty(t, s.Items())
	assert.Equal(t, 0.0, s.GetTotalPrice())
}

func TestRemoveItemAndClear(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newStore(t)
	require.NoError(t, s.SetCartOpen(ctx, true))
	require.NoError(t, s.AddItem(ctx, product(1, "5", model.UnitPiece), 1))
	require.NoError(t, s.AddItem(ctx, product(2, "5", model.UnitPiece), 1))

	require.NoError(t, s.RemoveItem(ctx, 99))
	assert.Len(t, s.Items(), 2)
	require.NoError(t, s.RemoveItem(ctx, 1))
	assert.Len(t, s.Items(), 1)

	require.NoError(t, s.ClearCart(ctx))
	assert.Empty(t, s.Items())
	assert.True(t, s.IsOpen())
}

func TestToggleCart(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newStore(t)
	assert.False(t, s.IsOpen())
	require.NoError(t, s.ToggleCart(ctx))
	assert.True(t, s.IsOpen())
	require.NoError(t, s.ToggleCart(ctx))
	assert.False(t, s.IsOpen())
}

func TestTotalPriceRoundsTheSum(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newStore(t)
	require.NoError(t, s.AddItem(ctx, product(1, "3.33", model.UnitPiece), 1))
	require.NoError(t, s.AddItem(ctx, product(2, "1.01", model.UnitPiece), 1))

	// 3.4 + 1.1
	assert.InDelta(t, 4.5, s.GetTotalPrice(), 1e-9)
	assert.Equal(t, 2.0, s.GetTotalItems())
}

func TestReloadYieldsIdenticalCart(t *testing.T) {
	ctx := context.Background()
	s, storage, _ := newStore(t)
	require.NoError(t, s.AddItem(ctx, product(1, "12.5", model.UnitPiece), 3))
	require.NoError(t, s.AddItem(ctx, product(2, "7.9", model.Unit100g), 350))
	require.NoError(t, s.AddItem(ctx, product(3, "42", model.UnitKg), 1.3))
	require.NoError(t, s.SetCartOpen(ctx, true))

	reloaded := NewStore(repo.NewStorageCartRepository(storage), nil)
	require.NoError(t, reloaded.Load(ctx))

	assert.Equal(t, s.GetTotalPrice(), reloaded.GetTotalPrice())
	assert.Equal(t, s.IsOpen(), reloaded.IsOpen())
	want, got := s.Items(), reloaded.Items()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Product.ID, got[i].Product.ID)
		assert.Equal(t, want[i].Quantity, got[i].Quantity)
		assert.Equal(t, want[i].TotalPrice, got[i].TotalPrice)
	}
}

func TestLoadNormalizesCorruptedState(t *testing.T) {
	ctx := context.Background()
	storage := platform.NewMemoryStorage()
	raw := `{"state":{"items":[
		{"product":null,"quantity":1,"totalPrice":5},
		{"product":{"id":0,"price":"5"},"quantity":1,"totalPrice":5},
		{"product":{"id":1,"price":"5","unit":"piece"},"quantity":2,"totalPrice":999},
		{"product":{"id":1,"price":"5","unit":"piece"},"quantity":1,"totalPrice":5},
		{"product":{"id":2,"price":"5","unit":"piece"},"quantity":0,"totalPrice":0},
		{"product":{"id":3,"price":"5","unit":"piece"},"quantity":"x","totalPrice":0}
	],"isOpen":true},"version":0}`
	require.NoError(t, storage.SetItem(ctx, model.StorageKey, raw))

	s := NewStore(repo.NewStorageCartRepository(storage), nil)
	require.NoError(t, s.Load(ctx))

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, int64(1), items[0].Product.ID)
	assert.Equal(t, 3.0, items[0].Quantity)
	assert.InDelta(t, 15.0, items[0].TotalPrice, 1e-9)
	assert.True(t, s.IsOpen())
}

func TestPersistFailureIsReported(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("quota exceeded")
	storage := &platformtest.FailingStorage{Storage: platform.NewMemoryStorage(), FailSet: boom}
	s := NewStore(repo.NewStorageCartRepository(storage), nil)

	err := s.AddItem(ctx, product(1, "5", model.UnitPiece), 1)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, s.Items(), 1)
}

func TestItemsReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newStore(t)
	require.NoError(t, s.AddItem(ctx, product(1, "5", model.UnitPiece), 1))

	items := s.Items()
	items[0].Quantity = 100
	items[0].Product.Name = "changed"

	assert.Equal(t, 1.0, s.Items()[0].Quantity)
	assert.Equal(t, "p", s.Items()[0].Product.Name)
}
