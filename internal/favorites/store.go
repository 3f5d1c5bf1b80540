package favorites

import (
	"context"
	"sync"
)

// Store persists one serialized favorites list per owner.
type Store interface {
	// Load returns the stored value for owner, or nil when nothing is stored.
	Load(ctx context.Context, owner string) ([]byte, error)

	// Save replaces the stored value for owner.
	Save(ctx context.Context, owner string, data []byte) error
}

// MemoryStore is an in-memory implementation of Store.
// Used when no database is configured and in tests.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string][]byte),
	}
}

// Load returns a copy of the stored value.
func (s *MemoryStore) Load(_ context.Context, owner string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[owner]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

// Save stores a copy of data.
func (s *MemoryStore) Save(_ context.Context, owner string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[owner] = append([]byte(nil), data...)
	return nil
}

var _ Store = (*MemoryStore)(nil)
