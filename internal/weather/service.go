package weather

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/fairweather/fairweather/internal/events"
	"github.com/fairweather/fairweather/internal/forecast"
	"github.com/fairweather/fairweather/internal/places"
)

// Flags are the runtime switches the service consults per lookup.
type Flags interface {
	ParallelUpstreamFetch(ctx context.Context) bool
	LookupEventsDisabled(ctx context.Context) bool
	ForecastDays(ctx context.Context) int
}

// ServiceConfig holds configuration for the weather service.
type ServiceConfig struct {
	// Provider is the upstream weather provider (required).
	Provider Provider

	// Flags are optional; nil uses parallel fetch, events on and DefaultDays.
	Flags Flags

	// Publisher receives a LookupEvent after every successful lookup. Optional.
	Publisher events.Publisher

	// PublishTimeout bounds each background publish. Defaults to DefaultPublishTimeout.
	PublishTimeout time.Duration

	Logger zerolog.Logger

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// DefaultPublishTimeout bounds a lookup event publish when ServiceConfig leaves it unset.
const DefaultPublishTimeout = 5 * time.Second

// Service orchestrates a lookup: geocode, fetch, aggregate, assemble.
// It keeps no state between requests.
type Service struct {
	provider       Provider
	flags          Flags
	publisher      events.Publisher
	publishTimeout time.Duration
	logger         zerolog.Logger
	clock          func() time.Time

	pending sync.WaitGroup
}

// NewService creates a new weather service.
func NewService(cfg ServiceConfig) *Service {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	publisher := cfg.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	publishTimeout := cfg.PublishTimeout
	if publishTimeout <= 0 {
		publishTimeout = DefaultPublishTimeout
	}

	return &Service{
		provider:       cfg.Provider,
		flags:          cfg.Flags,
		publisher:      publisher,
		publishTimeout: publishTimeout,
		logger:         cfg.Logger,
		clock:          clock,
	}
}

// Wait blocks until every lookup event publish started so far has finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

// Lookup resolves query and returns current conditions plus the daily forecast.
//
// Errors: *ConfigError, ErrMissingQuery, *UpstreamError, ErrLocationNotFound,
// or any transport error from the provider.
func (s *Service) Lookup(ctx context.Context, query string) (*Response, error) {
	if err := s.provider.Ready(); err != nil {
		return nil, err
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrMissingQuery
	}

	logger := s.logger.With().Str("query", query).Str("provider", s.provider.Name()).Logger()

	candidates, err := s.provider.Geocode(ctx, query, GeocodeLimit)
	if err != nil {
		logger.Warn().Err(err).Msg("geocoding failed")
		return nil, err
	}
	if len(candidates) == 0 {
		logger.Debug().Msg("no geocoding candidates")
		return nil, ErrLocationNotFound
	}

	place := places.SelectBestMatch(query, candidates)
	logger.Debug().
		Int("candidates", len(candidates)).
		Str("place", place.Key()).
		Float64("lat", place.Lat).
		Float64("lon", place.Lon).
		Msg("place resolved")

	current, feed, err := s.fetch(ctx, place)
	if err != nil {
		logger.Warn().Err(err).Str("place", place.Key()).Msg("weather fetch failed")
		return nil, err
	}

	days := forecast.Aggregate(feed.Samples, feed.TimezoneOffset, s.clock(), s.forecastDays(ctx))
	resp := Assemble(place, current, days)

	s.emit(ctx, query, place)
	return &resp, nil
}

// fetch loads current conditions and the forecast. When run concurrently the
// error reported is the one a sequential run would have hit first.
func (s *Service) fetch(ctx context.Context, place places.Candidate) (*CurrentConditions, *ForecastFeed, error) {
	if s.flags != nil && !s.flags.ParallelUpstreamFetch(ctx) {
		current, err := s.provider.CurrentWeather(ctx, place.Lat, place.Lon)
		if err != nil {
			return nil, nil, err
		}
		feed, err := s.provider.Forecast(ctx, place.Lat, place.Lon)
		if err != nil {
			return nil, nil, err
		}
		return current, feed, nil
	}

	var (
		current     *CurrentConditions
		feed        *ForecastFeed
		currentErr  error
		forecastErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		current, currentErr = s.provider.CurrentWeather(gctx, place.Lat, place.Lon)
		return currentErr
	})
	g.Go(func() error {
		feed, forecastErr = s.provider.Forecast(gctx, place.Lat, place.Lon)
		return forecastErr
	})
	_ = g.Wait()

	switch {
	case currentErr != nil && !errors.Is(currentErr, context.Canceled):
		return nil, nil, currentErr
	case forecastErr != nil:
		return nil, nil, forecastErr
	case currentErr != nil:
		return nil, nil, currentErr
	}
	return current, feed, nil
}

func (s *Service) forecastDays(ctx context.Context) int {
	if s.flags == nil {
		return forecast.DefaultDays
	}
	days := s.flags.ForecastDays(ctx)
	if days < 1 || days > forecast.DefaultDays {
		return forecast.DefaultDays
	}
	return days
}

// emit publishes a lookup event in the background. Failures are only logged.
func (s *Service) emit(ctx context.Context, query string, place places.Candidate) {
	if s.flags != nil && s.flags.LookupEventsDisabled(ctx) {
		return
	}

	event := events.LookupEvent{
		ID:         uuid.NewString(),
		Query:      query,
		PlaceKey:   place.Key(),
		Name:       place.Name,
		Country:    place.Country,
		State:      place.StateName(),
		Lat:        place.Lat,
		Lon:        place.Lon,
		OccurredAt: s.clock().UTC(),
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		defer cancel()

		if err := s.publisher.Publish(pubCtx, event); err != nil {
			s.logger.Warn().Err(fmt.Errorf("publishing lookup event: %w", err)).
				Str("place", event.PlaceKey).
				Msg("lookup event dropped")
		}
	}()
}
