package featureflags

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ServiceConfig holds configuration for the feature flag service.
type ServiceConfig struct {
	Repository   Repository
	Logger       zerolog.Logger
	CacheTTL     time.Duration // How long to cache flags in memory
	DefaultFlags map[string]*Flag

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// Service provides feature flag evaluation with caching and fallback.
type Service struct {
	repo         Repository
	logger       zerolog.Logger
	cacheTTL     time.Duration
	defaultFlags map[string]*Flag
	now          func() time.Time

	mu    sync.RWMutex
	cache map[string]cachedFlag
}

type cachedFlag struct {
	flag    *Flag
	expires time.Time
}

// NewService creates a new feature flag service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = time.Minute
	}

	defaultFlags := cfg.DefaultFlags
	if defaultFlags == nil {
		defaultFlags = DefaultFlags()
	}

	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	return &Service{
		repo:         cfg.Repository,
		logger:       cfg.Logger,
		cacheTTL:     cacheTTL,
		defaultFlags: defaultFlags,
		now:          now,
		cache:        make(map[string]cachedFlag),
	}
}

// GetFlag retrieves a feature flag by key, from cache when fresh, with
// fallback to defaults. Returns nil for an unknown key.
func (s *Service) GetFlag(ctx context.Context, key string) *Flag {
	if flag, ok := s.getCached(key); ok {
		return flag
	}

	flag, err := s.repo.Load(ctx, key)
	if err == nil {
		s.setCached(key, flag)
		return flag
	}

	if !errors.Is(err, ErrUnknownFlag) {
		s.logger.Warn().Err(err).Str("flag", key).Msg("failed to get feature flag from repository")
	}

	return s.defaultFlags[key]
}

// GetAllFlags returns the effective flags ordered by key: repository values
// merged over defaults.
func (s *Service) GetAllFlags(ctx context.Context) []Flag {
	result := make(map[string]*Flag, len(s.defaultFlags))
	for k, v := range s.defaultFlags {
		result[k] = v
	}

	flags, err := s.repo.LoadAll(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to get feature flags from repository, using defaults")
		return sorted(result)
	}

	for k, v := range flags {
		result[k] = v
		s.setCached(k, v)
	}
	return sorted(result)
}

// SetFlag updates a feature flag and refreshes the cache.
func (s *Service) SetFlag(ctx context.Context, flag *Flag) error {
	flag.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, flag); err != nil {
		return err
	}
	s.setCached(flag.Key, flag)
	return nil
}

// InvalidateCache clears the cached flags, forcing a refresh on next access.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]cachedFlag)
}

func (s *Service) getCached(key string) (*Flag, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.cache[key]
	if !ok || !s.now().Before(entry.expires) {
		return nil, false
	}
	return entry.flag, true
}

func (s *Service) setCached(key string, flag *Flag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[key] = cachedFlag{flag: flag, expires: s.now().Add(s.cacheTTL)}
}

// Convenience methods for well-known flags.

// ParallelUpstreamFetch reports whether current and forecast fetches run concurrently.
func (s *Service) ParallelUpstreamFetch(ctx context.Context) bool {
	return s.GetFlag(ctx, FlagParallelUpstreamFetch).BoolValue(true)
}

// LookupEventsDisabled reports whether lookup events are suppressed.
func (s *Service) LookupEventsDisabled(ctx context.Context) bool {
	return s.GetFlag(ctx, FlagDisableLookupEvents).BoolValue(false)
}

// ForecastDays returns the configured number of forecast days.
func (s *Service) ForecastDays(ctx context.Context) int {
	return s.GetFlag(ctx, FlagForecastDays).IntValue(5)
}
