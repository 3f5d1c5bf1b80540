package featureflags

import (
	"context"
	"sync"
	"time"
)

// InMemoryRepository keeps flags in a map. cmd/api uses it when DATABASE_ENABLED is off.
type InMemoryRepository struct {
	mu    sync.RWMutex
	flags map[string]*Flag
}

// NewInMemoryRepository creates a repository holding the default flags.
func NewInMemoryRepository() *InMemoryRepository {
	return NewInMemoryRepositoryWithFlags(DefaultFlags())
}

// NewInMemoryRepositoryWithFlags creates a repository with initial flags.
func NewInMemoryRepositoryWithFlags(flags map[string]*Flag) *InMemoryRepository {
	repo := &InMemoryRepository{
		flags: make(map[string]*Flag, len(flags)),
	}
	for k, v := range flags {
		cpy := *v
		repo.flags[k] = &cpy
	}
	return repo
}

// Load returns a copy of the flag stored under key.
func (r *InMemoryRepository) Load(_ context.Context, key string) (*Flag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	flag, ok := r.flags[key]
	if !ok {
		return nil, ErrUnknownFlag
	}
	cpy := *flag
	return &cpy, nil
}

// LoadAll returns copies of every stored flag.
func (r *InMemoryRepository) LoadAll(_ context.Context) (map[string]*Flag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*Flag, len(r.flags))
	for k, v := range r.flags {
		cpy := *v
		result[k] = &cpy
	}
	return result, nil
}

// Save stores a copy of flag stamped with the current time.
func (r *InMemoryRepository) Save(_ context.Context, flag *Flag) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *flag
	cpy.UpdatedAt = time.Now()
	r.flags[flag.Key] = &cpy
	return nil
}

var _ Repository = (*InMemoryRepository)(nil)
