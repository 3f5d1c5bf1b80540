package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairweather/fairweather/internal/events"
	"github.com/fairweather/fairweather/internal/lookups"
	"github.com/fairweather/fairweather/internal/worker"
)

type failingRepository struct{}

func (failingRepository) Record(context.Context, events.LookupEvent) error {
	return errors.New("db down")
}

func (failingRepository) Popular(context.Context, int) ([]lookups.PopularPlace, error) {
	return nil, errors.New("db down")
}

func encoded(t *testing.T, key string) []byte {
	t.Helper()
	return encodedWithID(t, "", key)
}

func encodedWithID(t *testing.T, id, key string) []byte {
	t.Helper()
	data, err := events.LookupEvent{
		ID:         id,
		Query:      key,
		PlaceKey:   key,
		Name:       key,
		Country:    "FR",
		OccurredAt: time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC),
	}.Encode()
	require.NoError(t, err)
	return data
}

func TestLookupHandler_Handle(t *testing.T) {
	repo := lookups.NewMemoryRepository()
	h := worker.NewLookupHandler(repo, zerolog.Nop())
	ctx := context.Background()

	assert.Equal(t, worker.Ack, h.Handle(ctx, encoded(t, "Paris, FR")))
	assert.Equal(t, worker.Ack, h.Handle(ctx, encoded(t, "Paris, FR")))

	popular, err := repo.Popular(ctx, 10)
	require.NoError(t, err)
	require.Len(t, popular, 1)
	assert.Equal(t, int64(2), popular[0].Lookups)
	assert.Equal(t, worker.Stats{Recorded: 2}, h.Stats())
}

func TestLookupHandler_Malformed(t *testing.T) {
	h := worker.NewLookupHandler(lookups.NewMemoryRepository(), zerolog.Nop())

	tests := []struct {
		name string
		data string
	}{
		{"not json", "garbage"},
		{"missing place key", `{"query":"Paris"}`},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, worker.Ack, h.Handle(context.Background(), []byte(tt.data)))
		})
	}
	assert.Equal(t, int64(3), h.Stats().Malformed)
}

func TestLookupHandler_RepositoryFailure(t *testing.T) {
	h := worker.NewLookupHandler(failingRepository{}, zerolog.Nop())

	outcome := h.Handle(context.Background(), encoded(t, "Paris, FR"))

	assert.Equal(t, worker.Nack, outcome)
	assert.Equal(t, "nack", outcome.String())
	assert.Equal(t, int64(1), h.Stats().Failed)
}

func TestLookupHandler_Record(t *testing.T) {
	repo := lookups.NewMemoryRepository()
	h := worker.NewLookupHandler(repo, zerolog.Nop())
	pub := events.NewLocalPublisher(h.Record)

	require.NoError(t, pub.Publish(context.Background(), events.LookupEvent{PlaceKey: "Oslo, NO", Name: "Oslo"}))

	popular, err := repo.Popular(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, popular, 1)
	assert.Equal(t, "Oslo, NO", popular[0].PlaceKey)
	assert.Equal(t, worker.Stats{Recorded: 1}, h.Stats())
}

func TestLookupHandler_Redelivery(t *testing.T) {
	repo := lookups.NewMemoryRepository()
	h := worker.NewLookupHandler(repo, zerolog.Nop())
	ctx := context.Background()

	msg := encodedWithID(t, "evt-1", "Paris, FR")
	assert.Equal(t, worker.Ack, h.Handle(ctx, msg))
	assert.Equal(t, worker.Ack, h.Handle(ctx, msg))
	assert.Equal(t, worker.Ack, h.Handle(ctx, encodedWithID(t, "evt-2", "Paris, FR")))

	popular, err := repo.Popular(ctx, 10)
	require.NoError(t, err)
	require.Len(t, popular, 1)
	assert.Equal(t, int64(2), popular[0].Lookups)
	assert.Equal(t, worker.Stats{Recorded: 2, Duplicates: 1}, h.Stats())
}

func TestLookupHandler_RecordFailureCounted(t *testing.T) {
	h := worker.NewLookupHandler(failingRepository{}, zerolog.Nop())

	err := h.Record(context.Background(), events.LookupEvent{PlaceKey: "Oslo, NO"})

	require.Error(t, err)
	assert.Equal(t, worker.Stats{Failed: 1}, h.Stats())
}
