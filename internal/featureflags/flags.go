// Package featureflags provides runtime switches for the lookup pipeline.
package featureflags

import (
	"context"
	"errors"
	"sort"
	"time"
)

// ErrUnknownFlag means the repository holds no value for the key.
var ErrUnknownFlag = errors.New("unknown feature flag")

// Repository persists flag values. Keys it does not hold fall back to DefaultFlags.
type Repository interface {
	Load(ctx context.Context, key string) (*Flag, error)
	LoadAll(ctx context.Context) (map[string]*Flag, error)
	Save(ctx context.Context, flag *Flag) error
}

// Well-known feature flag keys.
const (
	// FlagParallelUpstreamFetch fetches current conditions and the forecast concurrently.
	FlagParallelUpstreamFetch = "parallel_upstream_fetch"

	// FlagDisableLookupEvents stops publishing lookup events.
	FlagDisableLookupEvents = "disable_lookup_events"

	// FlagForecastDays is the number of forecast days returned (1-5).
	FlagForecastDays = "forecast_days"
)

// Flag represents a feature flag with its current value.
type Flag struct {
	Key       string    `json:"key"`
	Value     any       `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BoolValue returns the flag value as a boolean.
// Returns the default value if the flag is nil or not a boolean.
func (f *Flag) BoolValue(defaultValue bool) bool {
	if f == nil {
		return defaultValue
	}
	switch v := f.Value.(type) {
	case bool:
		return v
	case float64:
		// JSON unmarshals numbers as float64
		return v != 0
	default:
		return defaultValue
	}
}

// IntValue returns the flag value as an integer.
// Returns the default value if the flag is nil or not a number.
func (f *Flag) IntValue(defaultValue int) int {
	if f == nil {
		return defaultValue
	}
	switch v := f.Value.(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return defaultValue
	}
}

// DefaultFlags returns the flag values used when the repository has none.
func DefaultFlags() map[string]*Flag {
	now := time.Now()
	return map[string]*Flag{
		FlagParallelUpstreamFetch: {
			Key:       FlagParallelUpstreamFetch,
			Value:     true,
			UpdatedAt: now,
		},
		FlagDisableLookupEvents: {
			Key:       FlagDisableLookupEvents,
			Value:     false,
			UpdatedAt: now,
		},
		FlagForecastDays: {
			Key:       FlagForecastDays,
			Value:     float64(5),
			UpdatedAt: now,
		},
	}
}

// sorted returns the flags ordered by key.
func sorted(flags map[string]*Flag) []Flag {
	out := make([]Flag, 0, len(flags))
	for _, f := range flags {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
