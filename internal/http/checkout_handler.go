package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/riyad899/Jtech-sub000/internal/auth"
	"github.com/riyad899/Jtech-sub000/internal/cart"
	"github.com/riyad899/Jtech-sub000/internal/orders"
)

type Placer interface {
	Place(ctx context.Context, store *cart.Store, buyer orders.Buyer, transactionID string) (orders.Receipt, error)
}

type CheckoutHandler struct {
	sessions Sessions
	placer   Placer
	timeout  time.Duration
}

func NewCheckoutHandler(sessions Sessions, placer Placer, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		sessions: sessions,
		placer:   placer,
		timeout:  timeout,
	}
}

type CheckoutRequestDTO struct {
	TransactionID string `json:"transactionId"`
}

func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req CheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	s := h.sessions.Get(r.Context(), sessionID(r, id))
	receipt, err := h.placer.Place(ctx, s, orders.Buyer{UserID: id.UserID, Email: id.Email}, req.TransactionID)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, receipt)
}
