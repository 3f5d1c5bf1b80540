// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/fairweather/fairweather/internal/database"
)

// Config holds the settings for the API and worker processes.
type Config struct {
	Port        string
	Environment string
	LogLevel    zerolog.Level

	OpenWeatherAPIKey  string
	OpenWeatherBaseURL string
	OpenWeatherTimeout time.Duration
	LookupTimeout      time.Duration

	CORSAllowedOrigins []string
	RateLimitPerMinute int
	RequireTLS         bool

	OTelEnabled  bool
	OTLPEndpoint string

	DatabaseEnabled bool
	Database        database.Config

	PubSubProjectID    string
	PubSubTopic        string
	PubSubSubscription string
}

// PubSubPublishEnabled reports whether lookup events go to Pub/Sub.
func (c *Config) PubSubPublishEnabled() bool {
	return c.PubSubProjectID != "" && c.PubSubTopic != ""
}

// PubSubSubscribeEnabled reports whether the worker can subscribe.
func (c *Config) PubSubSubscribeEnabled() bool {
	return c.PubSubProjectID != "" && c.PubSubSubscription != ""
}

// Load reads an optional .env file and then the environment. A missing
// OPENWEATHER_API_KEY is not an error here; lookups report it per request.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading env file: %w", err)
	}

	cfg := &Config{
		Port:               getenvDefault("APP_PORT", "8080"),
		Environment:        getenvDefault("APP_ENV", "development"),
		OpenWeatherAPIKey:  strings.TrimSpace(os.Getenv("OPENWEATHER_API_KEY")),
		OpenWeatherBaseURL: os.Getenv("OPENWEATHER_BASE_URL"),
		CORSAllowedOrigins: splitList(getenvDefault("CORS_ALLOWED_ORIGINS", "*")),
		RequireTLS:         os.Getenv("REQUIRE_TLS") == "true",
		OTelEnabled:        os.Getenv("OTEL_ENABLED") == "true",
		OTLPEndpoint:       getenvDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		DatabaseEnabled:    os.Getenv("DATABASE_ENABLED") == "true",
		Database:           database.ConfigFromEnv(),
		PubSubProjectID:    os.Getenv("PUBSUB_PROJECT_ID"),
		PubSubTopic:        getenvDefault("PUBSUB_TOPIC", "place-lookups"),
		PubSubSubscription: getenvDefault("PUBSUB_SUBSCRIPTION", "place-lookups-worker"),
	}

	level, err := zerolog.ParseLevel(getenvDefault("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	cfg.LogLevel = level

	timeout, err := time.ParseDuration(getenvDefault("OPENWEATHER_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid OPENWEATHER_TIMEOUT: %w", err)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("invalid OPENWEATHER_TIMEOUT: must be positive")
	}
	cfg.OpenWeatherTimeout = timeout

	lookupTimeout, err := time.ParseDuration(getenvDefault("LOOKUP_TIMEOUT", "25s"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOOKUP_TIMEOUT: %w", err)
	}
	if lookupTimeout <= 0 {
		return nil, fmt.Errorf("invalid LOOKUP_TIMEOUT: must be positive")
	}
	cfg.LookupTimeout = lookupTimeout

	rate, err := strconv.Atoi(getenvDefault("RATE_LIMIT_PER_MINUTE", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE: %w", err)
	}
	cfg.RateLimitPerMinute = rate

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
