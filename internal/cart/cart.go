package cart

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidProduct  = errors.New("invalid product")
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrLineNotFound    = errors.New("product not in cart")
)

// MaxLineQuantity bounds one line so merged quantities cannot overflow.
const MaxLineQuantity = 1<<31 - 1

// Display is the denormalized product data a cart needs to render itself
// without going back to the catalog.
type Display struct {
	Name     string `json:"name"`
	ImageURL string `json:"image"`
	Category string `json:"category"`
}

// Item is the catalog snapshot handed to AddItem.
type Item struct {
	ProductID string
	UnitPrice decimal.Decimal
	Display   Display
}

func (i Item) validate() error {
	if i.ProductID == "" {
		return fmt.Errorf("%w: missing product id", ErrInvalidProduct)
	}
	if i.UnitPrice.IsNegative() {
		return fmt.Errorf("%w: negative price %s for %s", ErrInvalidProduct, i.UnitPrice, i.ProductID)
	}
	return nil
}

// Line is one product in the cart. UnitPrice is the price at the time the
// product was first added and is never refreshed from the catalog.
type Line struct {
	ProductID string
	UnitPrice decimal.Decimal
	Quantity  int
	Display   Display
}

// Amount is Quantity × UnitPrice.
func (l Line) Amount() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Totals struct {
	ItemCount int
	Subtotal  decimal.Decimal
}

// ComputeTotals sums lines from scratch.
func ComputeTotals(lines []Line) Totals {
	t := Totals{Subtotal: decimal.Zero}
	for _, l := range lines {
		t.ItemCount += l.Quantity
		t.Subtotal = t.Subtotal.Add(l.Amount())
	}
	return t
}

type Op string

const (
	OpAdd    Op = "add"
	OpRemove Op = "remove"
	OpUpdate Op = "update"
	OpClear  Op = "clear"

	// OpCheckout removes what an order took out of the cart.
	OpCheckout Op = "checkout"
)

// Change is delivered to subscribers after every applied mutation.
type Change struct {
	Op        Op
	ProductID string
	Version   uint64
	Lines     []Line
	Totals    Totals
}
