package weather

import (
	"errors"
	"fmt"
)

// Upstream call stages, used in UpstreamError messages.
const (
	StageGeocoding = "Geocoding"
	StageCurrent   = "Current weather"
	StageForecast  = "Forecast"
)

var (
	// ErrMissingQuery is returned for an empty or blank query.
	ErrMissingQuery = errors.New("missing required 'query' parameter")

	// ErrLocationNotFound is returned when geocoding yields no candidates.
	ErrLocationNotFound = errors.New("location not found")
)

// ConfigError reports a missing provider credential.
type ConfigError struct {
	Variable string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("Missing %s environment variable", e.Variable)
}

// UpstreamError is a non-2xx answer from the provider. Body is the raw
// response body.
type UpstreamError struct {
	Stage      string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Stage, e.Body)
}
