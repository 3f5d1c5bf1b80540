package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/fairweather/fairweather/internal/api/models"
	"github.com/fairweather/fairweather/internal/api/response"
	"github.com/fairweather/fairweather/internal/favorites"
)

const maxToggleBodyBytes = 4 << 10

// FavoritesHandler handles favorites endpoints. The owning client is named by
// the X-Client-Id header.
type FavoritesHandler struct {
	service  *favorites.Service
	validate *validator.Validate
}

// NewFavoritesHandler creates a new FavoritesHandler.
func NewFavoritesHandler(service *favorites.Service) *FavoritesHandler {
	return &FavoritesHandler{
		service:  service,
		validate: newValidator(),
	}
}

// ListFavorites handles GET /api/favorites.
func (h *FavoritesHandler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.clientID(w, r)
	if !ok {
		return
	}

	list, err := h.service.List(r.Context(), owner)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.FavoritesResponse{Items: list})
}

// ToggleFavorite handles POST /api/favorites/toggle.
func (h *FavoritesHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.clientID(w, r)
	if !ok {
		return
	}

	var req models.ToggleFavoriteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxToggleBodyBytes)).Decode(&req); err != nil {
		response.BadRequest(w, r, "Invalid JSON body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, r, "Invalid request body", fieldErrors(err))
		return
	}

	list, err := h.service.Toggle(r.Context(), owner, favorites.City{Key: req.Key, Name: req.Name})
	if err != nil {
		if errors.Is(err, favorites.ErrInvalidCity) {
			response.BadRequest(w, r, "Invalid request body", nil)
			return
		}
		h.storeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.FavoritesResponse{Items: list})
}

// RemoveFavorite handles DELETE /api/favorites/{key}.
func (h *FavoritesHandler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.clientID(w, r)
	if !ok {
		return
	}

	// chi matches on RawPath when the URL has one, leaving the param escaped.
	key := chi.URLParam(r, "key")
	if r.URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(key); err == nil {
			key = unescaped
		}
	}

	list, err := h.service.Remove(r.Context(), owner, key)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.FavoritesResponse{Items: list})
}

func (h *FavoritesHandler) clientID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := models.ClientID{Value: strings.TrimSpace(r.Header.Get(models.ClientIDHeader))}
	if err := h.validate.Struct(id); err != nil {
		fields := fieldErrors(err)
		for i := range fields {
			fields[i].Field = models.ClientIDHeader
		}
		response.BadRequest(w, r, "Missing or invalid "+models.ClientIDHeader+" header", fields)
		return "", false
	}
	return id.Value, true
}

func (h *FavoritesHandler) storeError(w http.ResponseWriter, r *http.Request, err error) {
	zerolog.Ctx(r.Context()).Error().Err(err).Msg("favorites store failed")
	response.InternalError(w, r, "Unexpected server error")
}
