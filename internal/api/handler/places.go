package handler

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/fairweather/fairweather/internal/api/models"
	"github.com/fairweather/fairweather/internal/api/response"
	"github.com/fairweather/fairweather/internal/lookups"
)

// PlacesHandler serves aggregated lookup statistics.
type PlacesHandler struct {
	repo lookups.Repository
}

// NewPlacesHandler creates a new PlacesHandler.
func NewPlacesHandler(repo lookups.Repository) *PlacesHandler {
	return &PlacesHandler{repo: repo}
}

// ListPopular handles GET /api/places/popular?limit=N.
func (h *PlacesHandler) ListPopular(w http.ResponseWriter, r *http.Request) {
	limit := lookups.DefaultPopularLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.BadRequest(w, r, "Invalid 'limit' parameter", []models.FieldError{
				{Field: "limit", Message: "must be an integer", Code: "numeric"},
			})
			return
		}
		limit = n
	}

	items, err := h.repo.Popular(r.Context(), lookups.ClampLimit(limit))
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("popular places query failed")
		response.InternalError(w, r, "Unexpected server error")
		return
	}
	if items == nil {
		items = []lookups.PopularPlace{}
	}
	response.JSON(w, r, http.StatusOK, models.PopularPlacesResponse{Items: items})
}
