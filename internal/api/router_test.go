package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairweather/fairweather/internal/api"
	"github.com/fairweather/fairweather/internal/api/models"
	"github.com/fairweather/fairweather/internal/events"
	"github.com/fairweather/fairweather/internal/favorites"
	"github.com/fairweather/fairweather/internal/featureflags"
	"github.com/fairweather/fairweather/internal/lookups"
	"github.com/fairweather/fairweather/internal/places"
	"github.com/fairweather/fairweather/internal/weather"
)

type stubProvider struct{}

func (stubProvider) Name() string { return "stub" }

func (stubProvider) Ready() error { return nil }

func (stubProvider) Geocode(_ context.Context, query string, _ int) ([]places.Candidate, error) {
	if query == "Nowhere" {
		return nil, nil
	}
	return []places.Candidate{{Name: "Oslo", Country: "NO", Lat: 59.91, Lon: 10.75}}, nil
}

func (stubProvider) CurrentWeather(context.Context, float64, float64) (*weather.CurrentConditions, error) {
	temp := 4.0
	return &weather.CurrentConditions{Temp: &temp}, nil
}

func (stubProvider) Forecast(context.Context, float64, float64) (*weather.ForecastFeed, error) {
	return &weather.ForecastFeed{}, nil
}

type testEnv struct {
	router  http.Handler
	weather *weather.Service
	lookups *lookups.MemoryRepository
}

func newTestEnv(t *testing.T, rateLimit int) testEnv {
	t.Helper()
	log := zerolog.Nop()
	repo := lookups.NewMemoryRepository()
	flags := featureflags.NewService(featureflags.ServiceConfig{
		Repository: featureflags.NewInMemoryRepository(),
		Logger:     log,
	})

	weatherSvc := weather.NewService(weather.ServiceConfig{
		Provider:  stubProvider{},
		Flags:     flags,
		Publisher: events.NewLocalPublisher(repo.Record),
		Logger:    log,
	})

	router := api.NewRouter(api.RouterConfig{
		Version:            "test",
		Logger:             log,
		WeatherService:     weatherSvc,
		FavoritesService:   favorites.NewService(favorites.NewMemoryStore(), log),
		Lookups:            repo,
		FeatureFlagService: flags,
		CORSAllowedOrigins: []string{"https://app.example"},
		RateLimitPerMinute: rateLimit,
	})
	return testEnv{router: router, weather: weatherSvc, lookups: repo}
}

func (e testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Health(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/ops/health", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	var health models.Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.Equal(t, "test", health.Details["version"])
}

func TestRouter_WeatherRecordsLookup(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/weather?query=Oslo", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp weather.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Oslo", resp.Location.Name)
	env.weather.Wait()

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/places/popular", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)

	var popular models.PopularPlacesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &popular))
	require.Len(t, popular.Items, 1)
	assert.Equal(t, "Oslo", popular.Items[0].Name)
	assert.Equal(t, int64(1), popular.Items[0].Lookups)
}

func TestRouter_WeatherErrors(t *testing.T) {
	env := newTestEnv(t, 0)

	tests := []struct {
		path    string
		status  int
		message string
	}{
		{path: "/api/weather", status: http.StatusBadRequest, message: "Missing required 'query' parameter"},
		{path: "/api/weather?query=Nowhere", status: http.StatusNotFound, message: "Location not found"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := env.do(httptest.NewRequest(http.MethodGet, tt.path, http.NoBody))

			assert.Equal(t, tt.status, rec.Code)
			var body models.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.message, body.Error)
			assert.Equal(t, rec.Header().Get("X-Request-Id"), body.RequestID)
		})
	}
}

func TestRouter_Favorites(t *testing.T) {
	env := newTestEnv(t, 0)

	req := httptest.NewRequest(http.MethodPost, "/api/favorites/toggle", strings.NewReader(`{"key":"Oslo, NO","name":"Oslo"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(models.ClientIDHeader, "browser-1")
	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/favorites", http.NoBody)
	req.Header.Set(models.ClientIDHeader, "browser-1")
	rec = env.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[{"key":"Oslo, NO","name":"Oslo"}]}`, rec.Body.String())
}

func TestRouter_FavoritesRequireJSON(t *testing.T) {
	env := newTestEnv(t, 0)

	req := httptest.NewRequest(http.MethodPost, "/api/favorites/toggle", strings.NewReader("key=Oslo"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(models.ClientIDHeader, "browser-1")

	rec := env.do(req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestRouter_Flags(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/ops/flags", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), featureflags.FlagParallelUpstreamFetch)
}

func TestRouter_NotFoundAndMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/unknown", http.NoBody))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Not found","requestId":"`+rec.Header().Get("X-Request-Id")+`"}`, rec.Body.String())

	rec = env.do(httptest.NewRequest(http.MethodPut, "/api/ops/health", http.NoBody))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	env := newTestEnv(t, 0)

	tests := []struct {
		origin  string
		allowed bool
	}{
		{origin: "https://app.example", allowed: true},
		{origin: "https://evil.example", allowed: false},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/api/favorites/toggle", http.NoBody)
			req.Header.Set("Origin", tt.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			req.Header.Set("Access-Control-Request-Headers", "Content-Type, X-Client-Id")

			rec := env.do(req)

			if tt.allowed {
				assert.Equal(t, tt.origin, rec.Header().Get("Access-Control-Allow-Origin"))
			} else {
				assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

func TestRouter_RateLimit(t *testing.T) {
	env := newTestEnv(t, 2)

	var codes []int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/places/popular", http.NoBody)
		req.RemoteAddr = "203.0.113.7:5000"
		codes = append(codes, env.do(req).Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// Ops endpoints stay reachable.
	req := httptest.NewRequest(http.MethodGet, "/api/ops/health", http.NoBody)
	req.RemoteAddr = "203.0.113.7:5000"
	assert.Equal(t, http.StatusOK, env.do(req).Code)
}
