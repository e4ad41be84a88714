package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/edahouse/shopcore/internal/bus"
	"github.com/edahouse/shopcore/internal/shop/model"
	"github.com/edahouse/shopcore/internal/shop/pricing"
	"github.com/shopspring/decimal"
)

var ErrEmptyCart = errors.New("cart is empty")

// Order builds the checkout payload for the current cart under the given delivery policy.
func (s *Store) Order(delivery pricing.DeliveryPolicy) (model.Order, error) {
	items := s.Items()
	if len(items) == 0 {
		return model.Order{}, ErrEmptyCart
	}

	order := model.Order{Items: make([]model.OrderLine, 0, len(items)), Status: model.OrderStatusPending}
	for _, line := range items {
		order.Items = append(order.Items, model.OrderLine{
			ProductID:    line.Product.ID,
			Quantity:     decimal.NewFromFloat(line.Quantity).String(),
			PricePerUnit: pricing.Money(pricing.EffectivePrice(line.Product)).StringFixed(2),
			TotalPrice:   pricing.Money(line.TotalPrice).StringFixed(2),
		})
	}

	subtotal := s.GetTotalPrice()
	fee := pricing.Money(delivery.FeeFor(subtotal))
	order.Subtotal = pricing.Money(subtotal).StringFixed(2)
	order.DeliveryFee = fee.StringFixed(2)
	order.TotalAmount = pricing.Money(subtotal).Add(fee).StringFixed(2)
	return order, nil
}

// Checkout submits the cart as an order and clears it once the shop accepted the order.
func (s *Store) Checkout(ctx context.Context, delivery pricing.DeliveryPolicy, placer model.OrderPlacer) (int64, error) {
	order, err := s.Order(delivery)
	if err != nil {
		return 0, err
	}

	id, err := placer.PlaceOrder(ctx, order)
	if err != nil {
		return 0, fmt.Errorf("place order: %w", err)
	}
	s.log.Info().Int64("order_id", id).Str("total", order.TotalAmount).Msg("order placed")
	s.events.Publish(bus.PromptTrigger(bus.ActionCheckout))

	if err := s.ClearCart(ctx); err != nil {
		return id, err
	}
	return id, nil
}
