// Package cart holds the shopping cart state and keeps it persisted.
package cart

import (
	"context"
	"fmt"
	"sync"

	"github.com/edahouse/shopcore/internal/bus"
	"github.com/edahouse/shopcore/internal/shop/model"
	"github.com/edahouse/shopcore/internal/shop/pricing"
	logx "github.com/edahouse/shopcore/pkg/logger"
	"github.com/rs/zerolog"
)

// Store is the single source of truth for the cart. Every mutation updates the in-memory
// state and writes the whole state through the repository before returning.
type Store struct {
	mu     sync.Mutex
	state  model.CartState
	repo   model.CartRepository
	events bus.Publisher
	log    zerolog.Logger
}

func NewStore(repo model.CartRepository, events bus.Publisher) *Store {
	if events == nil {
		events = bus.Discard
	}
	return &Store{
		repo:   repo,
		events: events,
		log:    logx.Component("cart"),
	}
}

// Load replaces the in-memory cart with the persisted one.
func (s *Store) Load(ctx context.Context) error {
	state, err := s.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load cart: %w", err)
	}
	if state == nil {
		state = &model.CartState{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(state.Items)
	s.state = normalize(*state)
	if dropped := before - len(s.state.Items); dropped > 0 {
		s.log.Warn().Int("dropped", dropped).Msg("removed invalid or duplicate cart lines")
	}
	return nil
}

// AddItem adds quantity of product, merging into an existing line for the same product.
// A quantity that is not positive leaves the cart untouched.
func (s *Store) AddItem(ctx context.Context, product *model.Product, quantity float64) error {
	if product == nil || product.ID <= 0 {
		return model.ErrInvalidProduct
	}
	if !validQuantity(quantity) {
		return nil
	}

	p := *product
	err := s.mutate(ctx, func(state *model.CartState) {
		state.Items = append(state.Items, model.CartLine{Product: &p, Quantity: quantity})
	})
	s.events.Publish(bus.PromptTrigger(bus.ActionCartAdd))
	return err
}

// RemoveItem drops the line for productID, if any.
func (s *Store) RemoveItem(ctx context.Context, productID int64) error {
	return s.mutate(ctx, func(state *model.CartState) {
		kept := state.Items[:0]
		for _, line := range state.Items {
			if line.Product != nil && line.Product.ID == productID {
				continue
			}
			kept = append(kept, line)
		}
		state.Items = kept
	})
}

// UpdateQuantity sets the quantity of productID's line. A quantity that is not positive
// removes the line.
func (s *Store) UpdateQuantity(ctx context.Context, productID int64, quantity float64) error {
	if !validQuantity(quantity) {
		return s.RemoveItem(ctx, productID)
	}
	return s.mutate(ctx, func(state *model.CartState) {
		for i := range state.Items {
			if state.Items[i].Product != nil && state.Items[i].Product.ID == productID {
				state.Items[i].Quantity = quantity
			}
		}
	})
}

// ClearCart empties the cart and leaves its visibility alone.
func (s *Store) ClearCart(ctx context.Context) error {
	return s.mutate(ctx, func(state *model.CartState) {
		state.Items = nil
	})
}

func (s *Store) ToggleCart(ctx context.Context) error {
	return s.mutate(ctx, func(state *model.CartState) {
		state.IsOpen = !state.IsOpen
	})
}

func (s *Store) SetCartOpen(ctx context.Context, open bool) error {
	return s.mutate(ctx, func(state *model.CartState) {
		state.IsOpen = open
	})
}

func (s *Store) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.IsOpen
}

// Items returns a copy of the cart lines.
func (s *Store) Items() []model.CartLine {
	return s.Snapshot().Items
}

// Snapshot returns a copy of the whole cart state.
func (s *Store) Snapshot() model.CartState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// GetTotalPrice sums the line totals and rounds the sum up to the next 0.10 again.
func (s *Store) GetTotalPrice() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	totals := make([]float64, 0, len(s.state.Items))
	for _, line := range s.state.Items {
		totals = append(totals, line.TotalPrice)
	}
	return pricing.SumTotals(totals...)
}

// GetTotalItems sums the line quantities.
func (s *Store) GetTotalItems() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n float64
	for _, line := range s.state.Items {
		n += line.Quantity
	}
	return n
}

func (s *Store) mutate(ctx context.Context, fn func(*model.CartState)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.state)
	s.state = normalize(s.state)

	snapshot := s.state.Clone()
	if err := s.repo.Save(ctx, &snapshot); err != nil {
		s.log.Error().Err(err).Int("lines", len(snapshot.Items)).Msg("failed to persist cart")
		return fmt.Errorf("persist cart: %w", err)
	}
	return nil
}
