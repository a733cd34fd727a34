package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/riyad899/Jtech-sub000/internal/cart"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("catalog item not found")
	ErrMalformedDocument = errors.New("malformed catalog document")
	ErrUnavailable       = errors.New("catalog unavailable")
)

type Kind string

const (
	KindProduct Kind = "product"
	KindService Kind = "service"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(s)) {
	case "", KindProduct:
		return KindProduct, nil
	case KindService:
		return KindService, nil
	}
	return "", fmt.Errorf("unknown catalog kind %q", s)
}

// Product is the one shape the storefront works with. Catalog documents come
// in several spellings (name/title, image/thumbnail); FromDocument is the
// only place that knows about them.
type Product struct {
	ID          string          `json:"id"`
	Kind        Kind            `json:"kind"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"image,omitempty"`
	Category    string          `json:"category,omitempty"`
}

// CartItem snapshots the product for the cart, price included.
func (p Product) CartItem() cart.Item {
	return cart.Item{
		ProductID: p.ID,
		UnitPrice: p.Price,
		Display: cart.Display{
			Name:     p.Name,
			ImageURL: p.ImageURL,
			Category: p.Category,
		},
	}
}

func FromDocument(kind Kind, doc map[string]any) (Product, error) {
	id := documentID(doc)
	if id == "" {
		return Product{}, fmt.Errorf("%w: missing id", ErrMalformedDocument)
	}

	price, err := documentPrice(doc["price"])
	if err != nil {
		return Product{}, fmt.Errorf("%w: %s: %v", ErrMalformedDocument, id, err)
	}

	return Product{
		ID:          id,
		Kind:        kind,
		Name:        firstString(doc, "name", "title"),
		Description: firstString(doc, "description", "details"),
		Price:       price,
		ImageURL:    firstString(doc, "image", "thumbnail", "img", "imageUrl"),
		Category:    firstString(doc, "category"),
	}, nil
}

func documentID(doc map[string]any) string {
	for _, key := range []string{"_id", "id"} {
		switch v := doc[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case json.Number:
			return v.String()
		case map[string]any:
			if oid, ok := v["$oid"].(string); ok && oid != "" {
				return oid
			}
		}
	}
	return ""
}

func documentPrice(v any) (decimal.Decimal, error) {
	var (
		price decimal.Decimal
		err   error
	)
	switch p := v.(type) {
	case float64:
		price = decimal.NewFromFloat(p)
	case json.Number:
		price, err = decimal.NewFromString(p.String())
	case string:
		price, err = decimal.NewFromString(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(p), "$")))
	case nil:
		return decimal.Zero, errors.New("missing price")
	default:
		return decimal.Zero, fmt.Errorf("unsupported price type %T", v)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid price %v", v)
	}
	if price.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative price %s", price)
	}
	return price, nil
}

func firstString(doc map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := doc[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
