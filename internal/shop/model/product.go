package model

import "strings"

// Unit is the pricing unit of a product.
type Unit string

const (
	UnitPiece Unit = "piece"
	UnitKg    Unit = "kg"
	Unit100g  Unit = "100g"
	Unit100ml Unit = "100ml"
)

// DefaultUnit is what the catalog assigns when a product has no unit.
const DefaultUnit = Unit100g

// Valid reports whether u is one of the known units.
func (u Unit) Valid() bool {
	switch u {
	case UnitPiece, UnitKg, Unit100g, Unit100ml:
		return true
	}
	return false
}

// ParseUnit normalises a unit string; empty or unknown values resolve to DefaultUnit.
func ParseUnit(s string) Unit {
	u := Unit(strings.ToLower(strings.TrimSpace(s)))
	if !u.Valid() {
		return DefaultUnit
	}
	return u
}

// DiscountType selects how DiscountValue is applied to the base price.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

type StockStatus string

const (
	InStock    StockStatus = "in_stock"
	LowStock   StockStatus = "low_stock"
	OutOfStock StockStatus = "out_of_stock"
)

// Product is the catalog entry as served by the storefront API.
type Product struct {
	ID             int64        `json:"id"`
	Name           string       `json:"name"`
	Description    string       `json:"description,omitempty"`
	CategoryID     int64        `json:"categoryId,omitempty"`
	Price          Numeric      `json:"price"`
	Unit           Unit         `json:"unit,omitempty"`
	PricePerKg     Numeric      `json:"pricePerKg"`
	ImageURL       string       `json:"imageUrl,omitempty"`
	IsActive       bool         `json:"isActive"`
	IsAvailable    bool         `json:"isAvailable"`
	StockStatus    StockStatus  `json:"stockStatus,omitempty"`
	IsSpecialOffer bool         `json:"isSpecialOffer"`
	DiscountType   DiscountType `json:"discountType,omitempty"`
	DiscountValue  Numeric      `json:"discountValue"`
}

// PricingUnit returns the product unit, defaulting like the catalog schema does.
func (p *Product) PricingUnit() Unit {
	return ParseUnit(string(p.Unit))
}
