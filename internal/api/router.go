// Package api provides the HTTP API for Fairweather.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/fairweather/fairweather/internal/api/handler"
	"github.com/fairweather/fairweather/internal/api/middleware"
	"github.com/fairweather/fairweather/internal/api/models"
	"github.com/fairweather/fairweather/internal/favorites"
	"github.com/fairweather/fairweather/internal/featureflags"
	"github.com/fairweather/fairweather/internal/lookups"
	"github.com/fairweather/fairweather/internal/provider/resilience"
	"github.com/fairweather/fairweather/internal/weather"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	WeatherService     *weather.Service
	LookupTimeout      time.Duration
	FavoritesService   *favorites.Service
	Lookups            lookups.Repository
	FeatureFlagService *featureflags.Service
	Registry           *resilience.Registry
	ReadinessChecks    []handler.ReadinessCheck

	// CORSAllowedOrigins defaults to any origin.
	CORSAllowedOrigins []string
	// RateLimitPerMinute per client IP; zero disables limiting.
	RateLimitPerMinute int
	RequireTLS         bool
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "fairweather-api"
	}

	origins := cfg.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader, models.ClientIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader, "Retry-After"},
		MaxAge:         300,
	}))
	r.Use(middleware.ContentTypeJSON)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		models.NewError(middleware.GetRequestID(r.Context()), "Not found").Write(w, http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		models.NewError(middleware.GetRequestID(r.Context()), "Method not allowed").Write(w, http.StatusMethodNotAllowed)
	})

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Registry:  cfg.Registry,
		Flags:     cfg.FeatureFlagService,
		Checks:    cfg.ReadinessChecks,
	})

	rateLimit := middleware.RateLimitByIP(middleware.PerMinute(cfg.RateLimitPerMinute))

	r.Route("/api", func(r chi.Router) {
		// Ops endpoints are not rate limited.
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
			r.Get("/flags", opsHandler.ListFlags)
		})

		r.Group(func(r chi.Router) {
			r.Use(rateLimit)

			if cfg.WeatherService != nil {
				weatherHandler := handler.NewWeatherHandler(cfg.WeatherService, cfg.LookupTimeout)
				r.Get("/weather", weatherHandler.GetWeather)
			}

			if cfg.FavoritesService != nil {
				favoritesHandler := handler.NewFavoritesHandler(cfg.FavoritesService)
				r.Route("/favorites", func(r chi.Router) {
					r.Get("/", favoritesHandler.ListFavorites)
					r.With(middleware.RequireJSON).Post("/toggle", favoritesHandler.ToggleFavorite)
					r.Delete("/{key}", favoritesHandler.RemoveFavorite)
				})
			}

			if cfg.Lookups != nil {
				placesHandler := handler.NewPlacesHandler(cfg.Lookups)
				r.Get("/places/popular", placesHandler.ListPopular)
			}
		})
	})

	return r
}
