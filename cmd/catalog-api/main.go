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

	"github.com/riyad899/Jtech-sub000/internal/api"
	"github.com/riyad899/Jtech-sub000/internal/auth"
	"github.com/riyad899/Jtech-sub000/internal/config"
	"github.com/riyad899/Jtech-sub000/internal/events"
	"github.com/riyad899/Jtech-sub000/internal/repository"
	"github.com/riyad899/Jtech-sub000/pkg/logger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to read .env", "error", err)
		os.Exit(1)
	}
	cfg, err := config.LoadCatalogAPI()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New("catalog-api", cfg.LogLevel)

	ctx := context.Background()
	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		log.Error("failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	log.Info("connected to MongoDB", "db", cfg.MongoDBName)

	repo := repository.NewDocumentRepository(mongoDB)
	if err := repo.CreateIndexes(ctx); err != nil {
		log.Warn("index creation failed", "error", err)
	}

	// events stay off unless brokers are configured
	var publisher api.EventPublisher
	var kafkaPub *events.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPub = events.NewPublisher(log, cfg.KafkaBrokers...)
		publisher = kafkaPub
		log.Info("publishing order events", "brokers", cfg.KafkaBrokers, "topic", events.TopicOrderEvents)
	}

	router := api.NewRouter(api.RouterConfig{
		Handler:        api.NewHandler(repo, publisher, cfg.RequestTimeout, log),
		Verifier:       auth.NewVerifier(cfg.JWTSecret),
		Log:            log,
		RequestTimeout: cfg.RequestTimeout,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(router, "catalog-api"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("catalog API starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down catalog API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}
	if kafkaPub != nil {
		if err := kafkaPub.Close(); err != nil {
			log.Warn("kafka writer close failed", "error", err)
		}
	}
	if err := mongoDB.Client().Disconnect(shutdownCtx); err != nil {
		log.Warn("mongo disconnect failed", "error", err)
	}
	log.Info("catalog API stopped")
}
