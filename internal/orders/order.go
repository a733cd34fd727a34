package orders

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyCart          = errors.New("cart is empty, nothing to checkout")
	ErrMissingTransaction = errors.New("transaction id is required")
	ErrUnauthenticated    = errors.New("buyer is not signed in")
	ErrSubmission         = errors.New("order submission failed")
)

type Status string

// StatusPending is set on every new order; approval happens in the admin tools.
const StatusPending Status = "pending"

// Request is the body of POST /orders. One request is sent per cart line.
type Request struct {
	ProductID     string          `json:"productId"`
	ProductName   string          `json:"productName"`
	Image         string          `json:"image,omitempty"`
	Category      string          `json:"category,omitempty"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	Total         decimal.Decimal `json:"total"`
	UserID        string          `json:"userId"`
	Email         string          `json:"email"`
	TransactionID string          `json:"transactionId"`
	Status        Status          `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type Buyer struct {
	UserID string
	Email  string
}

type Receipt struct {
	OrderIDs  []string        `json:"orderIds"`
	ItemCount int             `json:"itemCount"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}
