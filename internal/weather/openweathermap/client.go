// Package openweathermap implements weather.Provider against the
// OpenWeatherMap geocoding, current-weather and 5-day forecast APIs.
package openweathermap

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/fairweather/fairweather/internal/forecast"
	"github.com/fairweather/fairweather/internal/places"
	"github.com/fairweather/fairweather/internal/provider/resilience"
	"github.com/fairweather/fairweather/internal/weather"
)

const (
	// ProviderName identifies this weather provider.
	ProviderName = "openweathermap"

	// DefaultBaseURL is the OpenWeatherMap API host.
	DefaultBaseURL = "https://api.openweathermap.org"

	// APIKeyVariable is the environment variable holding the API key.
	APIKeyVariable = "OPENWEATHER_API_KEY"

	geocodePath  = "/geo/1.0/direct"
	currentPath  = "/data/2.5/weather"
	forecastPath = "/data/2.5/forecast"

	maxBodyBytes = 4 << 20
)

// ClientConfig holds configuration for the OpenWeatherMap client.
type ClientConfig struct {
	// APIKey is the OpenWeatherMap API key. An empty key makes Ready fail.
	APIKey string

	// BaseURL is the API host (optional, defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an OpenWeatherMap API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new OpenWeatherMap client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Ready reports a missing API key.
func (c *Client) Ready() error {
	if c.apiKey == "" {
		return &weather.ConfigError{Variable: APIKeyVariable}
	}
	return nil
}

// Geocode resolves query to at most limit candidates. Entries that are not
// objects or carry no numeric coordinates are skipped; a body that is not an
// array yields no candidates.
func (c *Client) Geocode(ctx context.Context, query string, limit int) ([]places.Candidate, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, weather.StageGeocoding, geocodePath, params)
	if err != nil {
		return nil, err
	}

	root, err := parse(body)
	if err != nil {
		return nil, fmt.Errorf("decoding geocoding response: %w", err)
	}

	entries := root.arr()
	candidates := make([]places.Candidate, 0, len(entries))
	for _, entry := range entries {
		obj := entry.obj()
		if obj == nil {
			continue
		}
		lat, lon := obj.num("lat"), obj.num("lon")
		if lat == nil || lon == nil {
			continue
		}
		candidates = append(candidates, places.Candidate{
			Name:    deref(obj.str("name")),
			Country: deref(obj.str("country")),
			State:   obj.str("state"),
			Lat:     *lat,
			Lon:     *lon,
		})
	}

	c.logger.Debug().
		Str("query", query).
		Int("candidates", len(candidates)).
		Msg("geocoding completed")

	return candidates, nil
}

// CurrentWeather fetches current conditions at a coordinate.
func (c *Client) CurrentWeather(ctx context.Context, lat, lon float64) (*weather.CurrentConditions, error) {
	body, err := c.get(ctx, weather.StageCurrent, currentPath, coordParams(lat, lon))
	if err != nil {
		return nil, err
	}

	root, err := parse(body)
	if err != nil {
		return nil, fmt.Errorf("decoding current weather response: %w", err)
	}

	obj := root.obj()
	main := obj.field("main").obj()
	cond := obj.field("weather").arr().first().obj()

	return &weather.CurrentConditions{
		Temp:        main.num("temp"),
		Humidity:    main.num("humidity"),
		FeelsLike:   main.num("feels_like"),
		WindSpeed:   obj.field("wind").obj().num("speed"),
		Description: cond.str("description"),
		Icon:        cond.str("icon"),
	}, nil
}

// Forecast fetches the 3-hour forecast at a coordinate. A missing timezone
// or timestamp reads as zero.
func (c *Client) Forecast(ctx context.Context, lat, lon float64) (*weather.ForecastFeed, error) {
	body, err := c.get(ctx, weather.StageForecast, forecastPath, coordParams(lat, lon))
	if err != nil {
		return nil, err
	}

	root, err := parse(body)
	if err != nil {
		return nil, fmt.Errorf("decoding forecast response: %w", err)
	}

	obj := root.obj()
	feed := &weather.ForecastFeed{
		TimezoneOffset: int64(deref(obj.field("city").obj().num("timezone"))),
	}

	list := obj.field("list").arr()
	feed.Samples = make([]forecast.Sample, 0, len(list))
	for _, item := range list {
		entry := item.obj()
		main := entry.field("main").obj()
		cond := entry.field("weather").arr().first().obj()

		feed.Samples = append(feed.Samples, forecast.Sample{
			Timestamp:   int64(deref(entry.num("dt"))),
			Temp:        main.num("temp"),
			TempMin:     main.num("temp_min"),
			TempMax:     main.num("temp_max"),
			Icon:        cond.str("icon"),
			Description: cond.str("description"),
		})
	}

	return feed, nil
}

func (c *Client) get(ctx context.Context, stage, path string, params url.Values) ([]byte, error) {
	params.Set("appid", c.apiKey)
	endpoint := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing %s request: %w", stage, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", stage, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn().
			Str("stage", stage).
			Int("status", resp.StatusCode).
			Msg("upstream returned error status")
		return nil, &weather.UpstreamError{
			Stage:      stage,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	return body, nil
}

func coordParams(lat, lon float64) url.Values {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("units", "metric")
	return params
}

func deref[T any](v *T) T {
	var zero T
	if v == nil {
		return zero
	}
	return *v
}

var _ weather.Provider = (*Client)(nil)
