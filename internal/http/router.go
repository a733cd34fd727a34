package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riyad899/Jtech-sub000/internal/auth"
)

type RouterConfig struct {
	Cart           *CartHandler
	Catalog        *CatalogHandler
	Checkout       *CheckoutHandler
	Verifier       *auth.Verifier
	Log            *slog.Logger
	RequestTimeout time.Duration
}

func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(auth.Middleware(cfg.Verifier))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", cfg.Catalog.ListProducts)
		r.Get("/products/{id}", cfg.Catalog.GetProduct)
		r.Get("/services/{id}", cfg.Catalog.GetService)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUser)
			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cfg.Cart.GetCart)
				r.Delete("/", cfg.Cart.ClearCart)
				r.Post("/items", cfg.Cart.AddItem)
				r.Put("/items/{productId}", cfg.Cart.UpdateQuantity)
				r.Delete("/items/{productId}", cfg.Cart.RemoveItem)
			})
			r.Post("/checkout", cfg.Checkout.Checkout)
		})
	})

	return r
}
