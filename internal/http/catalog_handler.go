package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/riyad899/Jtech-sub000/internal/catalog"
)

// Catalog is the read side of the catalog API the storefront needs.
type Catalog interface {
	ListProducts(ctx context.Context) ([]catalog.Product, error)
	Get(ctx context.Context, kind catalog.Kind, id string) (catalog.Product, error)
}

type CatalogHandler struct {
	catalog Catalog
	timeout time.Duration
}

func NewCatalogHandler(c Catalog, timeout time.Duration) *CatalogHandler {
	return &CatalogHandler{catalog: c, timeout: timeout}
}

type ProductsResponse struct {
	Products []catalog.Product `json:"products"`
}

func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.catalog.ListProducts(ctx)
	if err != nil {
		handleError(w, err)
		return
	}
	if products == nil {
		products = []catalog.Product{}
	}
	respondJSON(w, http.StatusOK, ProductsResponse{Products: products})
}

func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	h.get(w, r, catalog.KindProduct)
}

func (h *CatalogHandler) GetService(w http.ResponseWriter, r *http.Request) {
	h.get(w, r, catalog.KindService)
}

func (h *CatalogHandler) get(w http.ResponseWriter, r *http.Request, kind catalog.Kind) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, err := h.catalog.Get(ctx, kind, chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}
