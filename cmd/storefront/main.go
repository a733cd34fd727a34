package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/riyad899/Jtech-sub000/internal/auth"
	"github.com/riyad899/Jtech-sub000/internal/cart"
	"github.com/riyad899/Jtech-sub000/internal/catalog"
	"github.com/riyad899/Jtech-sub000/internal/config"
	h "github.com/riyad899/Jtech-sub000/internal/http"
	"github.com/riyad899/Jtech-sub000/internal/orders"
	"github.com/riyad899/Jtech-sub000/internal/session"
	"github.com/riyad899/Jtech-sub000/internal/storage"
	"github.com/riyad899/Jtech-sub000/pkg/logger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to read .env", "error", err)
		os.Exit(1)
	}
	cfg, err := config.LoadStorefront()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New("storefront", cfg.LogLevel)

	ctx := context.Background()
	factory, closeStorage := cartStorage(ctx, cfg, log)
	defer closeStorage()

	sessions := session.NewManager(factory, log, cart.WithTimeouts(2*time.Second, 2*time.Second))
	sessions.Observe(func(sessionID string, c cart.Change) {
		log.Debug("cart changed",
			"session_id", sessionID, "op", c.Op, "product_id", c.ProductID,
			"version", c.Version, "items", c.Totals.ItemCount, "subtotal", c.Totals.Subtotal.String())
	})
	evictCtx, stopEvictor := context.WithCancel(ctx)
	defer stopEvictor()
	go sessions.RunEvictor(evictCtx, cfg.CartIdleTTL, max(cfg.CartIdleTTL/4, time.Second))

	catalogClient := catalog.NewClient(cfg.CatalogURL, cfg.UpstreamTimeout, log)
	orderClient := orders.NewClient(cfg.CatalogURL, cfg.UpstreamTimeout, auth.TokenFromContext, log)
	checkout := orders.NewCheckout(orderClient, cfg.CheckoutConcurrency, log)

	router := h.NewRouter(h.RouterConfig{
		Cart:           h.NewCartHandler(sessions, catalogClient, cfg.UpstreamTimeout),
		Catalog:        h.NewCatalogHandler(catalogClient, cfg.UpstreamTimeout),
		Checkout:       h.NewCheckoutHandler(sessions, checkout, cfg.RequestTimeout),
		Verifier:       auth.NewVerifier(cfg.JWTSecret),
		Log:            log,
		RequestTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(router, "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("storefront starting", "port", cfg.Port, "cart_backend", cfg.CartBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down storefront")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}
	// pending cart writes are flushed before storage goes away
	stopEvictor()
	sessions.Close()
	log.Info("storefront stopped")
}

// cartStorage picks the persistence backend for carts. A Redis outage at
// startup degrades to memory-only carts instead of failing the process.
func cartStorage(ctx context.Context, cfg config.Storefront, log *slog.Logger) (session.StorageFactory, func()) {
	switch cfg.CartBackend {
	case config.BackendFile:
		log.Info("cart storage on disk", "dir", cfg.CartDir)
		return func(sessionID string) cart.Storage {
			return storage.NewFileStorage(cfg.CartDir, sessionID)
		}, func() {}

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			log.Warn("redis unavailable, carts are memory-only", "addr", cfg.RedisAddr, "error", err)
			_ = client.Close()
			return nil, func() {}
		}
		log.Info("cart storage on redis", "addr", cfg.RedisAddr)
		return func(sessionID string) cart.Storage {
			return storage.NewRedisStorage(client, sessionID, cfg.CartTTL)
		}, func() { _ = client.Close() }
	}

	mem := storage.NewMemoryStorage()
	log.Info("cart storage in process memory")
	return func(sessionID string) cart.Storage {
		return mem.Session(sessionID)
	}, func() {}
}
