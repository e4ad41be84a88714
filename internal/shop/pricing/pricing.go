// Package pricing turns a unit price, a quantity and a unit into the amount charged.
//
// Every total is rounded up to the next 0.10. The arithmetic is plain float64 and has to agree
// bit for bit with the totals the web shop shows for the same cart.
package pricing

import (
	"math"

	"github.com/edahouse/shopcore/internal/shop/model"
)

// RoundUpToTenth returns ceil(x*10)/10.
func RoundUpToTenth(x float64) float64 {
	return math.Ceil(x*10) / 10
}

// CalculateTotal prices quantity units of a product that costs price per unit.
//
// piece and kg multiply directly. For 100g and 100ml the price is per hundred and quantity is
// in raw grams or millilitres. Unknown units are priced like 100g. Unparseable input yields 0.
func CalculateTotal(price, quantity float64, unit model.Unit) float64 {
	if !finite(price) || !finite(quantity) {
		return 0
	}

	var total float64
	switch unit {
	case model.UnitPiece, model.UnitKg:
		total = price * quantity
	default:
		total = price * (quantity / 100)
	}

	if !finite(total) || total <= 0 {
		return 0
	}
	return RoundUpToTenth(total)
}

// CalculateTotalNumeric is CalculateTotal for values that may arrive as numeric strings.
func CalculateTotalNumeric(price, quantity model.Numeric, unit model.Unit) float64 {
	return CalculateTotal(price.Float(), quantity.Float(), unit)
}

// LineTotal prices a quantity of product after its discount.
func LineTotal(p *model.Product, quantity float64) float64 {
	if p == nil {
		return 0
	}
	return CalculateTotal(EffectivePrice(p), quantity, p.PricingUnit())
}

// SumTotals adds already rounded line totals and applies the rounding policy once more.
func SumTotals(totals ...float64) float64 {
	var sum float64
	for _, t := range totals {
		if finite(t) {
			sum += t
		}
	}
	if sum <= 0 {
		return 0
	}
	return RoundUpToTenth(sum)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
