// Package main provides the entrypoint for the Fairweather lookup worker.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/fairweather/fairweather/internal/config"
	"github.com/fairweather/fairweather/internal/database"
	"github.com/fairweather/fairweather/internal/lookups"
	"github.com/fairweather/fairweather/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

type healthResponse struct {
	Status  string       `json:"status"`
	Version string       `json:"version"`
	Stats   worker.Stats `json:"stats"`
}

func main() {
	const serviceName = "fairweather-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	log = log.Level(cfg.LogLevel)

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting Fairweather worker")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var repo lookups.Repository = lookups.NewMemoryRepository()
	if cfg.DatabaseEnabled {
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()

		if err := database.Migrate(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate database")
		}
		repo = lookups.NewPostgresRepository(pool)
		log.Info().Str("host", cfg.Database.Host).Msg("database connected")
	} else {
		log.Warn().Msg("database disabled - lookup counts are kept in memory")
	}

	lookupHandler := worker.NewLookupHandler(repo, log)

	// Health endpoint for the container platform
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(healthResponse{
			Status:  "healthy",
			Version: Version,
			Stats:   lookupHandler.Stats(),
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	if cfg.PubSubSubscribeEnabled() {
		subscriber, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.PubSubProjectID,
			SubscriptionName: cfg.PubSubSubscription,
			Handler:          lookupHandler,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer func() {
			if err := subscriber.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close pubsub client")
			}
		}()

		go func() {
			if err := subscriber.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub receive stopped")
				cancel()
			}
		}()
	} else {
		log.Warn().Msg("PUBSUB_PROJECT_ID or PUBSUB_SUBSCRIPTION not set - worker is idle")
	}

	// Wait for interrupt signal or a fatal receive error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	stats := lookupHandler.Stats()
	log.Info().
		Int64("recorded", stats.Recorded).
		Int64("duplicates", stats.Duplicates).
		Int64("malformed", stats.Malformed).
		Int64("failed", stats.Failed).
		Msg("worker stopped")
}
