package pricing

import (
	"math"

	"github.com/edahouse/shopcore/internal/shop/model"
)

// BasePrice returns the product's undiscounted price: price, then the legacy pricePerKg
// column, then 0. A present but unparseable value yields NaN.
func BasePrice(p *model.Product) float64 {
	switch {
	case p == nil:
		return 0
	case !p.Price.IsEmpty():
		return p.Price.Float()
	case !p.PricePerKg.IsEmpty():
		return p.PricePerKg.Float()
	default:
		return 0
	}
}

// EffectivePrice applies a special-offer discount to the base price. Anything that makes the
// discount unusable (no offer flag, unknown type, non-numeric or non-positive value) leaves
// the base price untouched.
func EffectivePrice(p *model.Product) float64 {
	base := BasePrice(p)
	if p == nil || !p.IsSpecialOffer || p.DiscountValue.IsEmpty() {
		return base
	}

	v := p.DiscountValue.Float()
	if math.IsNaN(v) || v <= 0 {
		return base
	}

	switch p.DiscountType {
	case model.DiscountPercentage:
		return math.Max(0, base*(1-v/100))
	case model.DiscountFixed:
		return math.Max(0, base-v)
	default:
		return base
	}
}

// HasValidDiscount reports whether the offer actually lowers the price shown to the customer.
func HasValidDiscount(p *model.Product) bool {
	if p == nil || !p.IsSpecialOffer {
		return false
	}
	return EffectivePrice(p) < BasePrice(p)
}
