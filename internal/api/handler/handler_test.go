package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fairweather/fairweather/internal/api/middleware"
	"github.com/fairweather/fairweather/internal/api/models"
	"github.com/fairweather/fairweather/internal/places"
	"github.com/fairweather/fairweather/internal/weather"
)

// fakeProvider returns canned answers for every upstream stage.
type fakeProvider struct {
	readyErr    error
	hang        bool
	candidates  []places.Candidate
	geocodeErr  error
	current     *weather.CurrentConditions
	currentErr  error
	feed        *weather.ForecastFeed
	forecastErr error
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Ready() error { return p.readyErr }

func (p *fakeProvider) Geocode(ctx context.Context, _ string, _ int) ([]places.Candidate, error) {
	if p.hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return p.candidates, p.geocodeErr
}

func (p *fakeProvider) CurrentWeather(_ context.Context, _, _ float64) (*weather.CurrentConditions, error) {
	if p.currentErr != nil {
		return nil, p.currentErr
	}
	if p.current == nil {
		return &weather.CurrentConditions{}, nil
	}
	return p.current, nil
}

func (p *fakeProvider) Forecast(_ context.Context, _, _ float64) (*weather.ForecastFeed, error) {
	if p.forecastErr != nil {
		return nil, p.forecastErr
	}
	if p.feed == nil {
		return &weather.ForecastFeed{}, nil
	}
	return p.feed, nil
}

func ptr[T any](v T) *T { return &v }

// serve runs req through RequestID and h.
func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	middleware.RequestID(h).ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var body models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}
