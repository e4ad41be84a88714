package model

import "context"

// OrderStatusPending is the status every new order is created with.
const OrderStatusPending = "pending"

// OrderLine is one cart line as submitted to the order endpoint. Amounts are decimal strings.
type OrderLine struct {
	ProductID    int64  `json:"productId"`
	Quantity     string `json:"quantity"`
	PricePerUnit string `json:"pricePerUnit"`
	TotalPrice   string `json:"totalPrice"`
}

// Order is the checkout payload built from the cart.
type Order struct {
	Items       []OrderLine `json:"items"`
	Subtotal    string      `json:"subtotal"`
	DeliveryFee string      `json:"deliveryFee"`
	TotalAmount string      `json:"totalAmount"`
	Status      string      `json:"status"`
}

// OrderPlacer submits an order to the shop.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, order Order) (int64, error)
}
