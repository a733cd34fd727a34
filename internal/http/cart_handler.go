package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/riyad899/Jtech-sub000/internal/auth"
	"github.com/riyad899/Jtech-sub000/internal/cart"
	"github.com/riyad899/Jtech-sub000/internal/catalog"
	"github.com/shopspring/decimal"
)

const (
	maxQuantityPerRequest = 99
	sessionHeader         = "X-Session-ID"
)

// Sessions resolves the cart store of a session.
type Sessions interface {
	Get(ctx context.Context, sessionID string) *cart.Store
}

type CartHandler struct {
	sessions Sessions
	catalog  Catalog
	timeout  time.Duration
}

func NewCartHandler(sessions Sessions, c Catalog, timeout time.Duration) *CartHandler {
	return &CartHandler{
		sessions: sessions,
		catalog:  c,
		timeout:  timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID string `json:"productId"`
	Kind      string `json:"kind"`
	Quantity  int    `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity *int `json:"quantity"`
}

type CartLineDTO struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Image     string          `json:"image,omitempty"`
	Category  string          `json:"category,omitempty"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	Amount    decimal.Decimal `json:"amount"`
}

type CartDTO struct {
	Lines     []CartLineDTO   `json:"lines"`
	ItemCount int             `json:"itemCount"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

func convertCart(lines []cart.Line) CartDTO {
	totals := cart.ComputeTotals(lines)
	dto := CartDTO{
		Lines:     make([]CartLineDTO, len(lines)),
		ItemCount: totals.ItemCount,
		Subtotal:  totals.Subtotal,
	}
	for i, l := range lines {
		dto.Lines[i] = CartLineDTO{
			ProductID: l.ProductID,
			Name:      l.Display.Name,
			Image:     l.Display.ImageURL,
			Category:  l.Display.Category,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
			Amount:    l.Amount(),
		}
	}
	return dto
}

// sessionID scopes the cart to the signed-in user. A client may keep several
// carts per user (one per device) with X-Session-ID.
func sessionID(r *http.Request, id auth.Identity) string {
	return sessionKey(id.UserID, strings.TrimSpace(r.Header.Get(sessionHeader)))
}

// sessionKey escapes both parts so no user id and device pair can produce
// another pair's key.
func sessionKey(userID, device string) string {
	if device == "" {
		return url.PathEscape(userID)
	}
	return url.PathEscape(userID) + "/" + url.PathEscape(device)
}

func (h *CartHandler) store(w http.ResponseWriter, r *http.Request) (*cart.Store, bool) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return nil, false
	}
	return h.sessions.Get(r.Context(), sessionID(r, id)), true
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	s, ok := h.store(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, convertCart(s.Lines()))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s, ok := h.store(w, r)
	if !ok {
		return
	}

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "productId is required")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 0 || req.Quantity > maxQuantityPerRequest {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}
	kind, err := catalog.ParseKind(req.Kind)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_kind", err.Error())
		return
	}

	// price is snapshotted here and never refreshed afterwards
	p, err := h.catalog.Get(ctx, kind, req.ProductID)
	if err != nil {
		handleError(w, err)
		return
	}

	if err := s.AddItem(p.CartItem(), req.Quantity); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, convertCart(s.Lines()))
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	s, ok := h.store(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Quantity == nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "body must be {\"quantity\": <integer>}")
		return
	}
	if *req.Quantity > maxQuantityPerRequest {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be at most 99")
		return
	}

	if err := s.UpdateQuantity(chi.URLParam(r, "productId"), *req.Quantity); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, convertCart(s.Lines()))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	s, ok := h.store(w, r)
	if !ok {
		return
	}
	s.RemoveItem(chi.URLParam(r, "productId"))
	respondJSON(w, http.StatusOK, convertCart(s.Lines()))
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	s, ok := h.store(w, r)
	if !ok {
		return
	}
	s.Clear()
	respondJSON(w, http.StatusOK, convertCart(s.Lines()))
}
