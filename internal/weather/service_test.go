package weather_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairweather/fairweather/internal/events"
	"github.com/fairweather/fairweather/internal/forecast"
	"github.com/fairweather/fairweather/internal/places"
	"github.com/fairweather/fairweather/internal/weather"
)

func f(v float64) *float64 { return &v }
func s(v string) *string   { return &v }

// mockProvider is a scripted weather provider.
type mockProvider struct {
	mu          sync.Mutex
	readyErr    error
	candidates  []places.Candidate
	geocodeErr  error
	current     *weather.CurrentConditions
	currentErr  error
	feed        *weather.ForecastFeed
	forecastErr error
	calls       []string
	lastLat     float64
	lastLon     float64
}

func newMockProvider() *mockProvider {
	return &mockProvider{
		candidates: []places.Candidate{
			{Name: "Springfield", State: s("Missouri"), Country: "US", Lat: 37.2, Lon: -93.3},
			{Name: "Springfield", State: s("Illinois"), Country: "US", Lat: 39.8, Lon: -89.6},
		},
		current: &weather.CurrentConditions{Temp: f(21.5), Humidity: f(40), Icon: s("01d")},
		feed: &weather.ForecastFeed{
			TimezoneOffset: 0,
			Samples: []forecast.Sample{
				{Timestamp: time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC).Unix(), Temp: f(20)},
				{Timestamp: time.Date(2024, 6, 11, 12, 0, 0, 0, time.UTC).Unix(), Temp: f(22)},
			},
		},
	}
}

func (m *mockProvider) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *mockProvider) Name() string { return "mock" }
func (m *mockProvider) Ready() error { return m.readyErr }

func (m *mockProvider) Geocode(_ context.Context, _ string, limit int) ([]places.Candidate, error) {
	m.record("geocode")
	if limit != weather.GeocodeLimit {
		return nil, errors.New("unexpected limit")
	}
	return m.candidates, m.geocodeErr
}

func (m *mockProvider) CurrentWeather(_ context.Context, lat, lon float64) (*weather.CurrentConditions, error) {
	m.record("current")
	m.mu.Lock()
	m.lastLat, m.lastLon = lat, lon
	m.mu.Unlock()
	if m.currentErr != nil {
		return nil, m.currentErr
	}
	return m.current, nil
}

func (m *mockProvider) Forecast(ctx context.Context, _, _ float64) (*weather.ForecastFeed, error) {
	m.record("forecast")
	if m.forecastErr != nil {
		return nil, m.forecastErr
	}
	return m.feed, nil
}

type staticFlags struct {
	parallel       bool
	eventsDisabled bool
	days           int
}

func (f staticFlags) ParallelUpstreamFetch(context.Context) bool { return f.parallel }
func (f staticFlags) LookupEventsDisabled(context.Context) bool  { return f.eventsDisabled }
func (f staticFlags) ForecastDays(context.Context) int           { return f.days }

func fixedClock() time.Time {
	return time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)
}

func newService(p weather.Provider, flags weather.Flags, pub events.Publisher) *weather.Service {
	return weather.NewService(weather.ServiceConfig{
		Provider:  p,
		Flags:     flags,
		Publisher: pub,
		Logger:    zerolog.Nop(),
		Clock:     fixedClock,
	})
}

func TestService_Lookup(t *testing.T) {
	provider := newMockProvider()
	svc := newService(provider, nil, nil)

	resp, err := svc.Lookup(context.Background(), "  Springfield Illinois ")
	require.NoError(t, err)

	assert.Equal(t, "Springfield", resp.Location.Name)
	require.NotNil(t, resp.Location.State)
	assert.Equal(t, "Illinois", *resp.Location.State)
	assert.Equal(t, 39.8, provider.lastLat)
	assert.Equal(t, -89.6, provider.lastLon)

	assert.Equal(t, 21.5, *resp.Current.Temp)
	assert.Nil(t, resp.Current.WindSpeed)

	// The 10th is today and is excluded.
	require.Len(t, resp.Forecast, 1)
	assert.Equal(t, 22.0, *resp.Forecast[0].Max)
}

func TestService_Lookup_MissingCredential(t *testing.T) {
	provider := newMockProvider()
	provider.readyErr = &weather.ConfigError{Variable: "OPENWEATHER_API_KEY"}
	svc := newService(provider, nil, nil)

	_, err := svc.Lookup(context.Background(), "")

	var cfgErr *weather.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "OPENWEATHER_API_KEY")
	assert.Empty(t, provider.calls)
}

func TestService_Lookup_MissingQuery(t *testing.T) {
	provider := newMockProvider()
	svc := newService(provider, nil, nil)

	for _, q := range []string{"", "   ", "\t\n"} {
		_, err := svc.Lookup(context.Background(), q)
		assert.ErrorIs(t, err, weather.ErrMissingQuery)
	}
	assert.Empty(t, provider.calls)
}

func TestService_Lookup_NotFound(t *testing.T) {
	provider := newMockProvider()
	provider.candidates = nil
	svc := newService(provider, nil, nil)

	_, err := svc.Lookup(context.Background(), "Atlantis")
	assert.ErrorIs(t, err, weather.ErrLocationNotFound)
	assert.Equal(t, []string{"geocode"}, provider.calls)
}

func TestService_Lookup_GeocodeUpstreamError(t *testing.T) {
	provider := newMockProvider()
	provider.geocodeErr = &weather.UpstreamError{Stage: weather.StageGeocoding, StatusCode: 401, Body: `{"cod":401}`}
	svc := newService(provider, nil, nil)

	_, err := svc.Lookup(context.Background(), "Paris")

	var upErr *weather.UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, 401, upErr.StatusCode)
	assert.Equal(t, `Geocoding failed: {"cod":401}`, err.Error())
}

func TestService_Lookup_ErrorPrecedence(t *testing.T) {
	currentErr := &weather.UpstreamError{Stage: weather.StageCurrent, StatusCode: 500, Body: "current down"}
	forecastErr := &weather.UpstreamError{Stage: weather.StageForecast, StatusCode: 502, Body: "forecast down"}

	tests := []struct {
		name        string
		currentErr  error
		forecastErr error
		expected    error
	}{
		{"both fail reports current", currentErr, forecastErr, currentErr},
		{"only forecast fails", nil, forecastErr, forecastErr},
		{"only current fails", currentErr, nil, currentErr},
	}

	for _, tt := range tests {
		for _, parallel := range []bool{true, false} {
			t.Run(tt.name, func(t *testing.T) {
				provider := newMockProvider()
				provider.currentErr = tt.currentErr
				provider.forecastErr = tt.forecastErr
				svc := newService(provider, staticFlags{parallel: parallel, days: 5}, nil)

				_, err := svc.Lookup(context.Background(), "Springfield")
				assert.Equal(t, tt.expected, err)
			})
		}
	}
}

func TestService_Lookup_SequentialOrder(t *testing.T) {
	provider := newMockProvider()
	svc := newService(provider, staticFlags{parallel: false, days: 5}, nil)

	_, err := svc.Lookup(context.Background(), "Springfield")
	require.NoError(t, err)
	assert.Equal(t, []string{"geocode", "current", "forecast"}, provider.calls)

	provider.calls = nil
	provider.currentErr = errors.New("boom")
	_, err = svc.Lookup(context.Background(), "Springfield")
	require.Error(t, err)
	assert.Equal(t, []string{"geocode", "current"}, provider.calls)
}

func TestService_Lookup_ForecastDaysFlag(t *testing.T) {
	provider := newMockProvider()
	provider.feed = &weather.ForecastFeed{}
	for d := 1; d <= 7; d++ {
		provider.feed.Samples = append(provider.feed.Samples, forecast.Sample{
			Timestamp: fixedClock().AddDate(0, 0, d).Unix(),
			Temp:      f(float64(d)),
		})
	}

	tests := []struct {
		days     int
		expected int
	}{
		{3, 3},
		{5, 5},
		{0, 5},
		{9, 5},
	}

	for _, tt := range tests {
		svc := newService(provider, staticFlags{parallel: true, days: tt.days}, nil)
		resp, err := svc.Lookup(context.Background(), "Springfield")
		require.NoError(t, err)
		assert.Len(t, resp.Forecast, tt.expected, "days flag %d", tt.days)
	}
}

func TestService_Lookup_PublishesEvent(t *testing.T) {
	var got []events.LookupEvent
	pub := events.NewLocalPublisher(func(_ context.Context, e events.LookupEvent) error {
		got = append(got, e)
		return nil
	})

	svc := newService(newMockProvider(), nil, pub)
	_, err := svc.Lookup(context.Background(), "Springfield Illinois")
	require.NoError(t, err)
	svc.Wait()

	require.Len(t, got, 1)
	assert.Equal(t, "Springfield, Illinois, US", got[0].PlaceKey)
	assert.Equal(t, "Springfield Illinois", got[0].Query)
	assert.Equal(t, fixedClock(), got[0].OccurredAt)
}

func TestService_Lookup_EventFailureIgnored(t *testing.T) {
	pub := events.NewLocalPublisher(func(context.Context, events.LookupEvent) error {
		return errors.New("broker unavailable")
	})

	svc := newService(newMockProvider(), nil, pub)
	resp, err := svc.Lookup(context.Background(), "Springfield")
	require.NoError(t, err)
	assert.NotNil(t, resp)
	svc.Wait()
}

func TestService_Lookup_EventsDisabled(t *testing.T) {
	published := 0
	pub := events.NewLocalPublisher(func(context.Context, events.LookupEvent) error {
		published++
		return nil
	})

	svc := newService(newMockProvider(), staticFlags{parallel: true, eventsDisabled: true, days: 5}, pub)
	_, err := svc.Lookup(context.Background(), "Springfield")
	require.NoError(t, err)
	svc.Wait()
	assert.Zero(t, published)
}

func TestService_Lookup_DoesNotWaitForPublisher(t *testing.T) {
	release := make(chan struct{})
	done := make(chan struct{})
	pub := events.NewLocalPublisher(func(ctx context.Context, _ events.LookupEvent) error {
		defer close(done)
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	svc := newService(newMockProvider(), nil, pub)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	resp, err := svc.Lookup(ctx, "Springfield")
	require.NoError(t, err)
	assert.NotNil(t, resp)
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	close(release)
	svc.Wait()
	<-done
}

func TestService_Lookup_PublishTimeout(t *testing.T) {
	var (
		mu     sync.Mutex
		pubErr error
	)
	pub := events.NewLocalPublisher(func(ctx context.Context, _ events.LookupEvent) error {
		<-ctx.Done()
		mu.Lock()
		pubErr = ctx.Err()
		mu.Unlock()
		return ctx.Err()
	})

	svc := weather.NewService(weather.ServiceConfig{
		Provider:       newMockProvider(),
		Publisher:      pub,
		PublishTimeout: 20 * time.Millisecond,
		Logger:         zerolog.Nop(),
		Clock:          fixedClock,
	})

	// A cancelled request does not cancel the publish; only the timeout does.
	ctx, cancel := context.WithCancel(context.Background())
	_, err := svc.Lookup(ctx, "Springfield")
	require.NoError(t, err)
	cancel()

	svc.Wait()
	mu.Lock()
	defer mu.Unlock()
	assert.ErrorIs(t, pubErr, context.DeadlineExceeded)
}
