package model

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNumber(t *testing.T) {
	assert.Equal(t, 12.5, ParseNumber("12.5"))
	assert.Equal(t, 12.5, ParseNumber("  12.5  "))
	assert.Equal(t, 12.5, ParseNumber("12.5kg"))
	assert.Equal(t, 0.5, ParseNumber(".5"))
	assert.Equal(t, -3.0, ParseNumber("-3"))
	assert.True(t, math.IsNaN(ParseNumber("abc")))
	assert.True(t, math.IsNaN(ParseNumber("")))
}

func TestNumericJSON(t *testing.T) {
	var p struct {
		A Numeric `json:"a"`
		B Numeric `json:"b"`
		C Numeric `json:"c"`
		D Numeric `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"12.50","b":7,"c":null}`), &p))

	assert.Equal(t, 12.5, p.A.Float())
	assert.Equal(t, "12.50", p.A.String())
	assert.Equal(t, 7.0, p.B.Float())
	assert.False(t, p.C.IsSet())
	assert.True(t, math.IsNaN(p.C.Float()))
	assert.False(t, p.D.IsSet())

	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"12.50","b":"7","c":null,"d":null}`, string(out))
}

func TestNumericEmpty(t *testing.T) {
	assert.True(t, Numeric{}.IsEmpty())
	assert.True(t, NumericString("  ").IsEmpty())
	assert.False(t, NumericFrom(0).IsEmpty())
}

func TestParseUnit(t *testing.T) {
	assert.Equal(t, UnitPiece, ParseUnit("piece"))
	assert.Equal(t, UnitKg, ParseUnit(" KG "))
	assert.Equal(t, Unit100ml, ParseUnit("100ml"))
	assert.Equal(t, Unit100g, ParseUnit(""))
	assert.Equal(t, Unit100g, ParseUnit("litre"))
}

func TestCartStateCloneIsDeep(t *testing.T) {
	s := CartState{Items: []CartLine{{Product: &Product{ID: 1, Name: "Borscht"}, Quantity: 2}}}
	c := s.Clone()
	c.Items[0].Product.Name = "Changed"
	c.Items[0].Quantity = 5
	assert.Equal(t, "Borscht", s.Items[0].Product.Name)
	assert.Equal(t, 2.0, s.Items[0].Quantity)
}
