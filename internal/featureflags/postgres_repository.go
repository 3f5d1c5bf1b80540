package featureflags

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository reads and writes the feature_flags table. Values are JSONB.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository returns a repository backed by pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Load returns the flag stored under key.
func (r *PostgresRepository) Load(ctx context.Context, key string) (*Flag, error) {
	row := r.pool.QueryRow(ctx, `SELECT key, value, updated_at FROM feature_flags WHERE key = $1`, key)

	flag, err := scanFlag(row)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, ErrUnknownFlag
	case err != nil:
		return nil, fmt.Errorf("loading flag %s: %w", key, err)
	}
	return flag, nil
}

// LoadAll returns every stored flag keyed by name.
func (r *PostgresRepository) LoadAll(ctx context.Context) (map[string]*Flag, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, value, updated_at FROM feature_flags`)
	if err != nil {
		return nil, fmt.Errorf("loading flags: %w", err)
	}
	defer rows.Close()

	flags := make(map[string]*Flag)
	for rows.Next() {
		flag, err := scanFlag(rows)
		if err != nil {
			return nil, err
		}
		flags[flag.Key] = flag
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return flags, nil
}

// Save upserts flag with the current time.
func (r *PostgresRepository) Save(ctx context.Context, flag *Flag) error {
	value, err := json.Marshal(flag.Value)
	if err != nil {
		return fmt.Errorf("encoding flag %s: %w", flag.Key, err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO feature_flags (key, value, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		flag.Key, value, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("saving flag %s: %w", flag.Key, err)
	}
	return nil
}

func scanFlag(row pgx.Row) (*Flag, error) {
	var (
		flag      Flag
		valueJSON []byte
	)

	if err := row.Scan(&flag.Key, &valueJSON, &flag.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(valueJSON, &flag.Value); err != nil {
		return nil, fmt.Errorf("decoding flag %s: %w", flag.Key, err)
	}
	return &flag, nil
}

var _ Repository = (*PostgresRepository)(nil)
