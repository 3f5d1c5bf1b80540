package favorites

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
)

// Service reads and writes favorites lists. Concurrent writers for the same
// owner are last-writer-wins.
type Service struct {
	store  Store
	logger zerolog.Logger
}

// NewService creates a new favorites service.
func NewService(store Store, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
	}
}

// List returns owner's favorites, most recent first.
func (s *Service) List(ctx context.Context, owner string) ([]City, error) {
	data, err := s.store.Load(ctx, owner)
	if err != nil {
		return nil, err
	}
	return s.decode(owner, data), nil
}

// Toggle adds c to the front of owner's list, or removes it when present.
// It returns the updated list.
func (s *Service) Toggle(ctx context.Context, owner string, c City) ([]City, error) {
	if c.Key == "" {
		return nil, ErrInvalidCity
	}

	list, err := s.List(ctx, owner)
	if err != nil {
		return nil, err
	}

	next := Toggle(list, c)
	if err := s.save(ctx, owner, next); err != nil {
		return nil, err
	}
	return next, nil
}

// Remove deletes key from owner's list and returns the updated list.
func (s *Service) Remove(ctx context.Context, owner, key string) ([]City, error) {
	list, err := s.List(ctx, owner)
	if err != nil {
		return nil, err
	}

	next := Remove(list, key)
	if err := s.save(ctx, owner, next); err != nil {
		return nil, err
	}
	return next, nil
}

func (s *Service) save(ctx context.Context, owner string, list []City) error {
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encoding favorites: %w", err)
	}
	return s.store.Save(ctx, owner, data)
}

// decode parses a stored list. Anything that is not a JSON array reads as
// empty; null and undecodable entries are dropped.
func (s *Service) decode(owner string, data []byte) []City {
	list := []City{}
	if len(data) == 0 {
		return list
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.Warn().Err(err).Str("owner", owner).Msg("discarding malformed favorites")
		return list
	}

	for _, item := range raw {
		var c City
		if string(item) == "null" || json.Unmarshal(item, &c) != nil {
			continue
		}
		list = append(list, c)
	}
	return list
}
