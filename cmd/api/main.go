// Package main provides the entrypoint for the Fairweather API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/fairweather/fairweather/internal/api"
	"github.com/fairweather/fairweather/internal/api/handler"
	"github.com/fairweather/fairweather/internal/api/middleware"
	"github.com/fairweather/fairweather/internal/config"
	"github.com/fairweather/fairweather/internal/database"
	"github.com/fairweather/fairweather/internal/events"
	"github.com/fairweather/fairweather/internal/favorites"
	"github.com/fairweather/fairweather/internal/featureflags"
	"github.com/fairweather/fairweather/internal/lookups"
	"github.com/fairweather/fairweather/internal/provider/resilience"
	"github.com/fairweather/fairweather/internal/telemetry"
	"github.com/fairweather/fairweather/internal/weather"
	"github.com/fairweather/fairweather/internal/weather/openweathermap"
	"github.com/fairweather/fairweather/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "fairweather-api"

	// Setup structured logging
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
		Str("env", cfg.Environment).
		Msg("starting Fairweather API")

	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.OTelEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.OTelEnabled {
		log.Info().
			Str("otlp_endpoint", cfg.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	providerMetrics, err := resilience.NewProviderMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize provider metrics")
	}

	var checks []handler.ReadinessCheck

	// Storage: PostgreSQL when enabled, in-memory otherwise
	var (
		favoritesStore favorites.Store         = favorites.NewMemoryStore()
		lookupRepo     lookups.Repository      = lookups.NewMemoryRepository()
		ffRepo         featureflags.Repository = featureflags.NewInMemoryRepository()
	)
	if cfg.DatabaseEnabled {
		pool := connectDatabase(ctx, cfg.Database, log)
		defer pool.Close()

		favoritesStore = favorites.NewPostgresStore(pool)
		lookupRepo = lookups.NewPostgresRepository(pool)
		ffRepo = featureflags.NewPostgresRepository(pool)
		checks = append(checks, handler.ReadinessCheck{Name: "postgres", Check: pool.Ping})
	} else {
		log.Warn().Msg("database disabled - favorites and lookup counts are kept in memory")
	}

	ffService := featureflags.NewService(featureflags.ServiceConfig{
		Repository: ffRepo,
		Logger:     log,
		CacheTTL:   1 * time.Minute,
	})

	// Upstream provider behind the resilient client
	registry := resilience.NewRegistry()
	clientCfg := resilience.DefaultClientConfig(openweathermap.ProviderName)
	clientCfg.Timeout = cfg.OpenWeatherTimeout
	clientCfg.Registry = registry
	clientCfg.Metrics = providerMetrics
	clientCfg.Logger = log

	owm := openweathermap.NewClient(openweathermap.ClientConfig{
		APIKey:     cfg.OpenWeatherAPIKey,
		BaseURL:    cfg.OpenWeatherBaseURL,
		HTTPClient: resilience.NewClient(clientCfg),
		Logger:     log,
	})
	if err := owm.Ready(); err != nil {
		log.Warn().Err(err).Msg("weather lookups will fail until the API key is set")
	}
	checks = append(checks, handler.ReadinessCheck{
		Name:  openweathermap.ProviderName,
		Check: func(context.Context) error { return owm.Ready() },
	})

	// Lookup events: Pub/Sub when configured, in-process counting otherwise
	var publisher events.Publisher
	if cfg.PubSubPublishEnabled() {
		ps, err := events.NewPubSubPublisher(ctx, events.PubSubConfig{
			ProjectID: cfg.PubSubProjectID,
			Topic:     cfg.PubSubTopic,
			Logger:    log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub publisher")
		}
		defer func() {
			if err := ps.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close pubsub publisher")
			}
		}()
		publisher = ps
		log.Info().
			Str("project", cfg.PubSubProjectID).
			Str("topic", cfg.PubSubTopic).
			Msg("publishing lookup events to pubsub")
	} else {
		publisher = events.NewLocalPublisher(worker.NewLookupHandler(lookupRepo, log).Record)
		log.Info().Msg("recording lookup events in process")
	}

	weatherService := weather.NewService(weather.ServiceConfig{
		Provider:  owm,
		Flags:     ffService,
		Publisher: publisher,
		Logger:    log,
	})

	router := api.NewRouter(api.RouterConfig{
		Version:            Version,
		BuildTime:          BuildTime,
		Logger:             log,
		ServiceName:        serviceName,
		Metrics:            metrics,
		WeatherService:     weatherService,
		LookupTimeout:      cfg.LookupTimeout,
		FavoritesService:   favorites.NewService(favoritesStore, log),
		Lookups:            lookupRepo,
		FeatureFlagService: ffService,
		Registry:           registry,
		ReadinessChecks:    checks,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		RequireTLS:         cfg.RequireTLS,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.LookupTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}
	weatherService.Wait()

	log.Info().Msg("server stopped")
}

// connectDatabase opens the pool and applies the schema. Failures are fatal.
func connectDatabase(ctx context.Context, dbConfig database.Config, log zerolog.Logger) *pgxpool.Pool {
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	log.Info().
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Msg("database connected")
	return pool
}
