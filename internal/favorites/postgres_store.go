package favorites

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a PostgreSQL implementation of Store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL favorites store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Load retrieves the stored list for owner.
func (s *PostgresStore) Load(ctx context.Context, owner string) ([]byte, error) {
	query := `SELECT cities::text FROM favorites WHERE owner = $1`

	var data string
	err := s.pool.QueryRow(ctx, query, owner).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading favorites: %w", err)
	}

	return []byte(data), nil
}

// Save upserts the stored list for owner.
func (s *PostgresStore) Save(ctx context.Context, owner string, data []byte) error {
	query := `
		INSERT INTO favorites (owner, cities, updated_at)
		VALUES ($1, $2::jsonb, NOW())
		ON CONFLICT (owner) DO UPDATE SET
			cities = EXCLUDED.cities,
			updated_at = EXCLUDED.updated_at
	`

	if _, err := s.pool.Exec(ctx, query, owner, string(data)); err != nil {
		return fmt.Errorf("saving favorites: %w", err)
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)
