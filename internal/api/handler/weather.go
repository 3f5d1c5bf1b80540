package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/fairweather/fairweather/internal/api/response"
	"github.com/fairweather/fairweather/internal/weather"
)

// WeatherHandler serves place lookups.
type WeatherHandler struct {
	service *weather.Service
	timeout time.Duration
}

// NewWeatherHandler creates a new WeatherHandler. A positive timeout bounds
// each lookup end to end; zero leaves only the request context.
func NewWeatherHandler(service *weather.Service, timeout time.Duration) *WeatherHandler {
	return &WeatherHandler{service: service, timeout: timeout}
}

// GetWeather handles GET /api/weather?query=.
func (h *WeatherHandler) GetWeather(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	resp, err := h.service.Lookup(ctx, r.URL.Query().Get("query"))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = errors.Join(err, context.DeadlineExceeded)
		}
		writeLookupError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, resp)
}

// writeLookupError maps a lookup failure to its status and message.
func writeLookupError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		cfgErr      *weather.ConfigError
		upstreamErr *weather.UpstreamError
	)

	switch {
	case errors.As(err, &cfgErr):
		zerolog.Ctx(r.Context()).Error().Str("variable", cfgErr.Variable).Msg("provider not configured")
		response.InternalError(w, r, cfgErr.Error())
	case errors.Is(err, weather.ErrMissingQuery):
		response.BadRequest(w, r, "Missing required 'query' parameter", nil)
	case errors.As(err, &upstreamErr):
		response.Error(w, r, upstreamErr.StatusCode, upstreamErr.Error())
	case errors.Is(err, weather.ErrLocationNotFound):
		response.NotFound(w, r, "Location not found")
	case errors.Is(err, context.DeadlineExceeded):
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("lookup timed out")
		response.Error(w, r, http.StatusGatewayTimeout, "Weather lookup timed out")
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("lookup failed")
		msg := err.Error()
		if msg == "" {
			msg = "Unexpected server error"
		}
		response.InternalError(w, r, msg)
	}
}
