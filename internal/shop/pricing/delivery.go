package pricing

import (
	"math"
	"strings"

	"github.com/edahouse/shopcore/internal/shop/model"
)

// DefaultDeliveryFee applies when store settings carry no usable fee.
const DefaultDeliveryFee = 15.00

// DeliveryPolicy is the store's delivery pricing. FreeFrom <= 0 disables free delivery.
type DeliveryPolicy struct {
	Fee      float64
	FreeFrom float64
}

// ParseDeliveryPolicy reads the store settings strings.
func ParseDeliveryPolicy(fee, freeFrom string) DeliveryPolicy {
	p := DeliveryPolicy{Fee: DefaultDeliveryFee}
	if strings.TrimSpace(fee) != "" {
		if v := model.ParseNumber(fee); !math.IsNaN(v) && v >= 0 {
			p.Fee = v
		}
	}
	if v, ok := ParseFreeDeliveryThreshold(freeFrom); ok {
		p.FreeFrom = v
	}
	return p
}

// ParseFreeDeliveryThreshold returns the threshold and whether one is configured.
func ParseFreeDeliveryThreshold(s string) (float64, bool) {
	if strings.TrimSpace(s) == "" {
		return 0, false
	}
	v := model.ParseNumber(s)
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// FeeFor returns the delivery fee for an order of the given total.
func (p DeliveryPolicy) FeeFor(orderTotal float64) float64 {
	if !finite(p.FreeFrom) || p.FreeFrom <= 0 {
		return p.Fee
	}
	if orderTotal >= p.FreeFrom {
		return 0
	}
	return p.Fee
}
