package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS favorites (
		owner      TEXT PRIMARY KEY,
		cities     JSONB NOT NULL DEFAULT '[]'::jsonb,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS place_lookups (
		place_key      TEXT PRIMARY KEY,
		name           TEXT NOT NULL,
		country        TEXT NOT NULL,
		state          TEXT,
		lat            DOUBLE PRECISION NOT NULL,
		lon            DOUBLE PRECISION NOT NULL,
		lookups        BIGINT NOT NULL DEFAULT 0,
		last_lookup_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS place_lookups_popular_idx
		ON place_lookups (lookups DESC, last_lookup_at DESC)`,
	`CREATE TABLE IF NOT EXISTS lookup_events (
		event_id    TEXT PRIMARY KEY,
		recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS feature_flags (
		key        TEXT PRIMARY KEY,
		value      JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// Migrate creates the tables the services use. It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d: %w", i+1, err)
		}
	}
	return nil
}
