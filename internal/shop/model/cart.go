package model

import (
	"context"
	"errors"
)

// StorageKey is the fixed key the cart state lives under.
const StorageKey = "restaurant-cart-storage"

var ErrInvalidProduct = errors.New("product must have a positive id")

// CartLine is one product in the cart. TotalPrice is derived from the product price and
// quantity and is only ever set by the pricing function.
type CartLine struct {
	Product    *Product `json:"product"`
	Quantity   float64  `json:"quantity"`
	TotalPrice float64  `json:"totalPrice"`
}

// CartState is everything the cart persists.
type CartState struct {
	Items  []CartLine `json:"items"`
	IsOpen bool       `json:"isOpen"`
}

// Clone returns a deep copy so callers never share line slices or products with the store.
func (s CartState) Clone() CartState {
	out := CartState{IsOpen: s.IsOpen, Items: make([]CartLine, len(s.Items))}
	for i, line := range s.Items {
		out.Items[i] = line
		if line.Product != nil {
			p := *line.Product
			out.Items[i].Product = &p
		}
	}
	return out
}

type CartRepository interface {
	// Load returns the persisted cart, or an empty one when nothing was stored yet.
	Load(ctx context.Context) (*CartState, error)

	// Save durably replaces the persisted cart.
	Save(ctx context.Context, state *CartState) error
}
