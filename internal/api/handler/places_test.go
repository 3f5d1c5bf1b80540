package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairweather/fairweather/internal/api/handler"
	"github.com/fairweather/fairweather/internal/api/models"
	"github.com/fairweather/fairweather/internal/events"
	"github.com/fairweather/fairweather/internal/lookups"
)

// limitSpy records the limit passed to Popular.
type limitSpy struct {
	limit int
	err   error
}

func (s *limitSpy) Record(context.Context, events.LookupEvent) error { return nil }

func (s *limitSpy) Popular(_ context.Context, limit int) ([]lookups.PopularPlace, error) {
	s.limit = limit
	return nil, s.err
}

func TestListPopular(t *testing.T) {
	repo := lookups.NewMemoryRepository()
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	for i, name := range []string{"Paris", "Oslo", "Paris", "Lima", "Paris", "Oslo"} {
		require.NoError(t, repo.Record(ctx, events.LookupEvent{
			Query:      name,
			PlaceKey:   name,
			Name:       name,
			OccurredAt: now.Add(time.Duration(i) * time.Minute),
		}))
	}

	h := http.HandlerFunc(handler.NewPlacesHandler(repo).ListPopular)
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/places/popular?limit=2", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.PopularPlacesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "Paris", resp.Items[0].Name)
	assert.Equal(t, int64(3), resp.Items[0].Lookups)
	assert.Equal(t, "Oslo", resp.Items[1].Name)
}

func TestListPopular_Limit(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{query: "", want: lookups.DefaultPopularLimit},
		{query: "?limit=5", want: 5},
		{query: "?limit=0", want: lookups.DefaultPopularLimit},
		{query: "?limit=-3", want: lookups.DefaultPopularLimit},
		{query: "?limit=500", want: lookups.MaxPopularLimit},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("limit %q", tt.query), func(t *testing.T) {
			spy := &limitSpy{}
			h := http.HandlerFunc(handler.NewPlacesHandler(spy).ListPopular)

			rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/places/popular"+tt.query, http.NoBody))

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, spy.limit)
			assert.JSONEq(t, `{"items":[]}`, rec.Body.String())
		})
	}
}

func TestListPopular_InvalidLimit(t *testing.T) {
	h := http.HandlerFunc(handler.NewPlacesHandler(&limitSpy{}).ListPopular)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/places/popular?limit=ten", http.NoBody))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	require.Len(t, body.Fields, 1)
	assert.Equal(t, "limit", body.Fields[0].Field)
}

func TestListPopular_RepositoryError(t *testing.T) {
	h := http.HandlerFunc(handler.NewPlacesHandler(&limitSpy{err: errors.New("db down")}).ListPopular)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/places/popular", http.NoBody))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
