package cart

import (
	"math"

	"github.com/edahouse/shopcore/internal/shop/model"
	"github.com/edahouse/shopcore/internal/shop/pricing"
)

// normalize is the only place cart lines are validated. It drops lines without a usable
// product or with a quantity that is not a positive number, merges lines for the same product
// into the first one priced with the latest product seen, and recomputes every line total.
func normalize(state model.CartState) model.CartState {
	out := model.CartState{IsOpen: state.IsOpen, Items: make([]model.CartLine, 0, len(state.Items))}
	index := make(map[int64]int, len(state.Items))

	for _, line := range state.Items {
		if line.Product == nil || line.Product.ID <= 0 {
			continue
		}
		if !validQuantity(line.Quantity) {
			continue
		}
		if i, ok := index[line.Product.ID]; ok {
			out.Items[i].Product = line.Product
			out.Items[i].Quantity += line.Quantity
			continue
		}
		index[line.Product.ID] = len(out.Items)
		out.Items = append(out.Items, model.CartLine{Product: line.Product, Quantity: line.Quantity})
	}

	for i := range out.Items {
		out.Items[i].TotalPrice = pricing.LineTotal(out.Items[i].Product, out.Items[i].Quantity)
	}
	return out
}

func validQuantity(q float64) bool {
	return q > 0 && !math.IsInf(q, 0)
}
