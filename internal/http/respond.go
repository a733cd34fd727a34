package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/riyad899/Jtech-sub000/internal/cart"
	"github.com/riyad899/Jtech-sub000/internal/catalog"
	"github.com/riyad899/Jtech-sub000/internal/orders"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleError maps domain errors to HTTP status codes.
func handleError(w http.ResponseWriter, err error) {
	var (
		status int
		code   string
	)
	switch {
	case errors.Is(err, cart.ErrInvalidProduct):
		status, code = http.StatusBadRequest, "invalid_product"
	case errors.Is(err, cart.ErrInvalidQuantity):
		status, code = http.StatusBadRequest, "invalid_quantity"
	case errors.Is(err, cart.ErrLineNotFound):
		status, code = http.StatusNotFound, "not_in_cart"
	case errors.Is(err, catalog.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, catalog.ErrMalformedDocument):
		status, code = http.StatusBadGateway, "bad_catalog_document"
	case errors.Is(err, catalog.ErrUnavailable):
		status, code = http.StatusServiceUnavailable, "service_unavailable"
	case errors.Is(err, orders.ErrEmptyCart):
		status, code = http.StatusConflict, "empty_cart"
	case errors.Is(err, orders.ErrMissingTransaction):
		status, code = http.StatusBadRequest, "missing_transaction_id"
	case errors.Is(err, orders.ErrUnauthenticated):
		status, code = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, orders.ErrSubmission):
		status, code = http.StatusBadGateway, "order_submission_failed"
	case errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusGatewayTimeout, "timeout"
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	respondError(w, status, code, err.Error())
}
