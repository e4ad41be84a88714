package pricing

import (
	"fmt"
	"math"
	"strconv"

	"github.com/edahouse/shopcore/internal/shop/model"
)

// Translator resolves a label key such as "units.kg". An empty result, or the key itself,
// means "no translation" and the built-in label is used.
type Translator func(key string) string

const (
	KeyGram     = "units.g"
	KeyKilogram = "units.kg"
	KeyMl       = "units.ml"
	KeyLitre    = "units.l"
	KeyPiece    = "units.piece"

	KeyPer100g  = "units.per100g"
	KeyPer100ml = "units.per100ml"
	KeyPerKg    = "units.perKg"
	KeyPerPiece = "units.perPiece"
)

var fallbackLabels = map[string]string{
	KeyGram:     "г",
	KeyKilogram: "кг",
	KeyMl:       "мл",
	KeyLitre:    "л",
	KeyPiece:    "шт.",

	KeyPer100g:  "за 100г",
	KeyPer100ml: "за 100мл",
	KeyPerKg:    "за кг",
	KeyPerPiece: "за шт.",
}

func (t Translator) label(key string) string {
	if t != nil {
		if s := t(key); s != "" && s != key {
			return s
		}
	}
	return fallbackLabels[key]
}

// FormatQuantity renders a quantity for display. Grams and millilitres switch to kilograms
// and litres from 1000 up.
func FormatQuantity(quantity float64, unit model.Unit, t Translator) string {
	if !finite(quantity) {
		quantity = 0
	}
	switch unit {
	case model.UnitPiece:
		return fmt.Sprintf("%.0f %s", math.Round(quantity), t.label(KeyPiece))
	case model.UnitKg:
		return fmt.Sprintf("%.2f %s", quantity, t.label(KeyKilogram))
	case model.Unit100ml:
		if quantity >= 1000 {
			return fmt.Sprintf("%.2f %s", quantity/1000, t.label(KeyLitre))
		}
		return formatPlain(quantity) + " " + t.label(KeyMl)
	default:
		if quantity >= 1000 {
			return fmt.Sprintf("%.2f %s", quantity/1000, t.label(KeyKilogram))
		}
		return formatPlain(quantity) + " " + t.label(KeyGram)
	}
}

// UnitLabel renders the "price per" suffix shown next to a unit price.
func UnitLabel(unit model.Unit, t Translator) string {
	switch unit {
	case model.UnitPiece:
		return t.label(KeyPerPiece)
	case model.UnitKg:
		return t.label(KeyPerKg)
	case model.Unit100ml:
		return t.label(KeyPer100ml)
	default:
		return t.label(KeyPer100g)
	}
}

func formatPlain(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
