package lookups

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairweather/fairweather/internal/events"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL lookup repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Record upserts the place and increments its counter. The event ID, when
// present, is claimed in the same transaction.
func (r *PostgresRepository) Record(ctx context.Context, event events.LookupEvent) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("recording lookup: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if event.ID != "" {
		tag, err := tx.Exec(ctx,
			`INSERT INTO lookup_events (event_id) VALUES ($1) ON CONFLICT (event_id) DO NOTHING`,
			event.ID,
		)
		if err != nil {
			return fmt.Errorf("claiming lookup event: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrDuplicateEvent
		}
	}

	query := `
		INSERT INTO place_lookups (place_key, name, country, state, lat, lon, lookups, last_lookup_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, 1, $7)
		ON CONFLICT (place_key) DO UPDATE SET
			name = EXCLUDED.name,
			country = EXCLUDED.country,
			state = EXCLUDED.state,
			lat = EXCLUDED.lat,
			lon = EXCLUDED.lon,
			lookups = place_lookups.lookups + 1,
			last_lookup_at = GREATEST(place_lookups.last_lookup_at, EXCLUDED.last_lookup_at)
	`

	_, err = tx.Exec(ctx, query,
		event.PlaceKey,
		event.Name,
		event.Country,
		event.State,
		event.Lat,
		event.Lon,
		event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("recording lookup: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing lookup: %w", err)
	}
	return nil
}

// Popular returns the most looked-up places.
func (r *PostgresRepository) Popular(ctx context.Context, limit int) ([]PopularPlace, error) {
	query := `
		SELECT place_key, name, country, state, lat, lon, lookups, last_lookup_at
		FROM place_lookups
		ORDER BY lookups DESC, last_lookup_at DESC, place_key ASC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("querying popular places: %w", err)
	}
	defer rows.Close()

	places := make([]PopularPlace, 0)
	for rows.Next() {
		var p PopularPlace
		if err := rows.Scan(
			&p.PlaceKey,
			&p.Name,
			&p.Country,
			&p.State,
			&p.Lat,
			&p.Lon,
			&p.Lookups,
			&p.LastLookupAt,
		); err != nil {
			return nil, err
		}
		places = append(places, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return places, nil
}

var _ Repository = (*PostgresRepository)(nil)
