// Package weather resolves a free-text place query to current conditions and
// a daily forecast.
package weather

import (
	"context"

	"github.com/fairweather/fairweather/internal/forecast"
	"github.com/fairweather/fairweather/internal/places"
)

// GeocodeLimit is the number of geocoding candidates requested per lookup.
const GeocodeLimit = 5

// CurrentConditions is the decoded current-weather payload. Any field the
// provider omitted or sent with an unexpected type is nil.
type CurrentConditions struct {
	Temp        *float64
	Humidity    *float64
	FeelsLike   *float64
	WindSpeed   *float64
	Description *string
	Icon        *string
}

// ForecastFeed is the decoded 3-hour forecast payload.
type ForecastFeed struct {
	// TimezoneOffset is the location's UTC offset in seconds.
	TimezoneOffset int64
	Samples        []forecast.Sample
}

// Provider fetches raw data from a weather service.
type Provider interface {
	// Name returns the provider name for logging.
	Name() string

	// Ready returns a *ConfigError when the provider cannot be called.
	Ready() error

	// Geocode resolves query to at most limit candidates.
	Geocode(ctx context.Context, query string, limit int) ([]places.Candidate, error)

	// CurrentWeather fetches current conditions at a coordinate.
	CurrentWeather(ctx context.Context, lat, lon float64) (*CurrentConditions, error)

	// Forecast fetches the 3-hour forecast at a coordinate.
	Forecast(ctx context.Context, lat, lon float64) (*ForecastFeed, error)
}

// Location is the resolved place returned to clients.
type Location struct {
	Name    string  `json:"name"`
	Country string  `json:"country"`
	State   *string `json:"state"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// Current is the current-conditions block returned to clients.
type Current struct {
	Temp        *float64 `json:"temp"`
	Humidity    *float64 `json:"humidity"`
	Description *string  `json:"description"`
	Icon        *string  `json:"icon"`
	FeelsLike   *float64 `json:"feels_like"`
	WindSpeed   *float64 `json:"wind_speed"`
}

// Response is the payload of GET /api/weather.
type Response struct {
	Location Location       `json:"location"`
	Current  Current        `json:"current"`
	Forecast []forecast.Day `json:"forecast"`
}
