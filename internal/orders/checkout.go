package orders

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/riyad899/Jtech-sub000/internal/cart"
	"golang.org/x/sync/errgroup"
)

// Creator submits a single order.
type Creator interface {
	Create(ctx context.Context, req Request) (string, error)
}

// Checkout turns a cart into orders. The ordered lines leave the cart only
// once every one of them has been accepted by the order API; on any failure
// the cart is left as is.
type Checkout struct {
	orders      Creator
	concurrency int
	now         func() time.Time
	log         *slog.Logger
}

func NewCheckout(orders Creator, concurrency int, log *slog.Logger) *Checkout {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Checkout{
		orders:      orders,
		concurrency: concurrency,
		now:         time.Now,
		log:         log,
	}
}

func (c *Checkout) Place(ctx context.Context, store *cart.Store, buyer Buyer, transactionID string) (Receipt, error) {
	if buyer.UserID == "" {
		return Receipt{}, ErrUnauthenticated
	}
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return Receipt{}, ErrMissingTransaction
	}

	lines := store.Lines()
	if len(lines) == 0 {
		return Receipt{}, ErrEmptyCart
	}
	totals := cart.ComputeTotals(lines)

	now := c.now().UTC()
	ids := make([]string, len(lines))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, line := range lines {
		i := i // per-iteration copy (go directive < 1.22)
		req := Request{
			ProductID:     line.ProductID,
			ProductName:   line.Display.Name,
			Image:         line.Display.ImageURL,
			Category:      line.Display.Category,
			Quantity:      line.Quantity,
			UnitPrice:     line.UnitPrice,
			Total:         line.Amount(),
			UserID:        buyer.UserID,
			Email:         buyer.Email,
			TransactionID: transactionID,
			Status:        StatusPending,
			CreatedAt:     now,
		}
		g.Go(func() error {
			id, err := c.orders.Create(gctx, req)
			if err != nil {
				return fmt.Errorf("order for %s: %w", req.ProductID, err)
			}
			ids[i] = id
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		c.log.WarnContext(ctx, "checkout failed, cart kept",
			"user_id", buyer.UserID, "lines", len(lines), "error", err)
		return Receipt{}, err
	}

	store.RemoveLines(lines)
	c.log.InfoContext(ctx, "checkout completed",
		"user_id", buyer.UserID, "orders", len(ids), "subtotal", totals.Subtotal.String())

	return Receipt{
		OrderIDs:  ids,
		ItemCount: totals.ItemCount,
		Subtotal:  totals.Subtotal,
	}, nil
}
