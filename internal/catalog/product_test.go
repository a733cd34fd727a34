package catalog

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromDocument_CanonicalFields(t *testing.T) {
	p, err := FromDocument(KindProduct, map[string]any{
		"_id":         "65a1f0c2e4b0a1b2c3d4e5f6",
		"name":        "Keyboard",
		"description": "mechanical",
		"price":       float64(49.5),
		"image":       "https://img/kb.png",
		"category":    "hardware",
	})
	require.NoError(t, err)

	assert.Equal(t, "65a1f0c2e4b0a1b2c3d4e5f6", p.ID)
	assert.Equal(t, KindProduct, p.Kind)
	assert.Equal(t, "Keyboard", p.Name)
	assert.Equal(t, "mechanical", p.Description)
	assert.True(t, decimal.RequireFromString("49.5").Equal(p.Price))
	assert.Equal(t, "https://img/kb.png", p.ImageURL)
	assert.Equal(t, "hardware", p.Category)
}

func TestFromDocument_AlternateSpellings(t *testing.T) {
	p, err := FromDocument(KindService, map[string]any{
		"_id":       map[string]any{"$oid": "abc"},
		"title":     "Web design",
		"price":     "$1200",
		"thumbnail": "thumb.jpg",
	})
	require.NoError(t, err)

	assert.Equal(t, "abc", p.ID)
	assert.Equal(t, KindService, p.Kind)
	assert.Equal(t, "Web design", p.Name)
	assert.True(t, decimal.NewFromInt(1200).Equal(p.Price))
	assert.Equal(t, "thumb.jpg", p.ImageURL)
}

func TestFromDocument_NumericIDAndJSONNumber(t *testing.T) {
	p, err := FromDocument(KindProduct, map[string]any{
		"id":    json.Number("17"),
		"name":  "Mouse",
		"price": json.Number("19.99"),
	})
	require.NoError(t, err)

	assert.Equal(t, "17", p.ID)
	assert.Equal(t, "19.99", p.Price.String())
}

func TestFromDocument_Rejects(t *testing.T) {
	cases := map[string]map[string]any{
		"missing id":     {"name": "x", "price": float64(1)},
		"missing price":  {"_id": "1", "name": "x"},
		"bad price":      {"_id": "1", "price": "free"},
		"negative price": {"_id": "1", "price": float64(-1)},
		"bool price":     {"_id": "1", "price": true},
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromDocument(KindProduct, doc)
			assert.ErrorIs(t, err, ErrMalformedDocument)
		})
	}
}

func TestProduct_CartItem(t *testing.T) {
	p := Product{ID: "1", Name: "Mouse", Price: decimal.NewFromInt(20), ImageURL: "m.png", Category: "hw"}

	item := p.CartItem()

	assert.Equal(t, "1", item.ProductID)
	assert.True(t, decimal.NewFromInt(20).Equal(item.UnitPrice))
	assert.Equal(t, "Mouse", item.Display.Name)
	assert.Equal(t, "m.png", item.Display.ImageURL)
	assert.Equal(t, "hw", item.Display.Category)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, KindProduct, k)

	k, err = ParseKind("Service")
	require.NoError(t, err)
	assert.Equal(t, KindService, k)

	_, err = ParseKind("course")
	assert.Error(t, err)
}
