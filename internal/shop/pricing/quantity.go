package pricing

import (
	"math"
	"strconv"

	"github.com/edahouse/shopcore/internal/shop/model"
)

// DefaultQuantity is what a product card preselects.
func DefaultQuantity(unit model.Unit) float64 {
	switch unit {
	case model.UnitPiece, model.UnitKg:
		return 1
	default:
		return 100
	}
}

// QuantityStep is the increment used by the +/- controls.
func QuantityStep(unit model.Unit) float64 {
	switch unit {
	case model.UnitPiece:
		return 1
	case model.UnitKg:
		return 0.1
	default:
		return 100
	}
}

// NormalizeQuantity snaps a user-entered quantity: whole pieces, one decimal otherwise.
func NormalizeQuantity(quantity float64, unit model.Unit) float64 {
	if !finite(quantity) {
		return 0
	}
	if unit == model.UnitPiece {
		return math.Round(quantity)
	}
	v, _ := strconv.ParseFloat(strconv.FormatFloat(quantity, 'f', 1, 64), 64)
	return v
}
