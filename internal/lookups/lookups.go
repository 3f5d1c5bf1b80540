// Package lookups counts resolved places to answer "popular places" queries.
package lookups

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/fairweather/fairweather/internal/events"
)

const (
	// DefaultPopularLimit is used when no limit is given.
	DefaultPopularLimit = 10

	// MaxPopularLimit bounds the number of places returned.
	MaxPopularLimit = 50

	// rememberedEvents is how many event IDs MemoryRepository keeps for
	// duplicate detection.
	rememberedEvents = 4096
)

// ErrDuplicateEvent is returned by Record when the event ID was already counted.
var ErrDuplicateEvent = errors.New("lookup event already recorded")

// PopularPlace is an aggregated lookup count for a place.
type PopularPlace struct {
	PlaceKey     string    `json:"placeKey"`
	Name         string    `json:"name"`
	Country      string    `json:"country"`
	State        *string   `json:"state"`
	Lat          float64   `json:"lat"`
	Lon          float64   `json:"lon"`
	Lookups      int64     `json:"lookups"`
	LastLookupAt time.Time `json:"lastLookupAt"`
}

// Repository stores lookup counts.
type Repository interface {
	// Record counts one lookup of the event's place. An event whose ID was
	// already counted returns ErrDuplicateEvent and changes nothing.
	Record(ctx context.Context, event events.LookupEvent) error

	// Popular returns up to limit places, most looked up first.
	Popular(ctx context.Context, limit int) ([]PopularPlace, error)
}

// ClampLimit maps a requested limit onto [1, MaxPopularLimit], using
// DefaultPopularLimit for non-positive values.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultPopularLimit
	case limit > MaxPopularLimit:
		return MaxPopularLimit
	default:
		return limit
	}
}

// MemoryRepository is an in-memory implementation of Repository.
type MemoryRepository struct {
	mu     sync.RWMutex
	places map[string]*PopularPlace

	// seen holds recent event IDs; order is a ring over the same IDs.
	seen  map[string]struct{}
	order []string
	next  int
}

// NewMemoryRepository creates a new in-memory lookup repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		places: make(map[string]*PopularPlace),
		seen:   make(map[string]struct{}),
		order:  make([]string, 0, rememberedEvents),
	}
}

// Record counts one lookup.
func (r *MemoryRepository) Record(_ context.Context, event events.LookupEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.ID != "" {
		if _, dup := r.seen[event.ID]; dup {
			return ErrDuplicateEvent
		}
		r.remember(event.ID)
	}

	p, ok := r.places[event.PlaceKey]
	if !ok {
		p = &PopularPlace{PlaceKey: event.PlaceKey}
		r.places[event.PlaceKey] = p
	}

	p.Name = event.Name
	p.Country = event.Country
	p.State = nil
	if event.State != "" {
		state := event.State
		p.State = &state
	}
	p.Lat = event.Lat
	p.Lon = event.Lon
	p.Lookups++
	if event.OccurredAt.After(p.LastLookupAt) {
		p.LastLookupAt = event.OccurredAt
	}
	return nil
}

func (r *MemoryRepository) remember(id string) {
	if len(r.order) < rememberedEvents {
		r.order = append(r.order, id)
	} else {
		delete(r.seen, r.order[r.next])
		r.order[r.next] = id
		r.next = (r.next + 1) % rememberedEvents
	}
	r.seen[id] = struct{}{}
}

// Popular returns the most looked-up places. Ties go to the most recent lookup.
func (r *MemoryRepository) Popular(_ context.Context, limit int) ([]PopularPlace, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]PopularPlace, 0, len(r.places))
	for _, p := range r.places {
		out = append(out, *p)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Lookups != out[j].Lookups {
			return out[i].Lookups > out[j].Lookups
		}
		if !out[i].LastLookupAt.Equal(out[j].LastLookupAt) {
			return out[i].LastLookupAt.After(out[j].LastLookupAt)
		}
		return out[i].PlaceKey < out[j].PlaceKey
	})

	limit = ClampLimit(limit)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ Repository = (*MemoryRepository)(nil)
