package models

import (
	"github.com/fairweather/fairweather/internal/favorites"
	"github.com/fairweather/fairweather/internal/lookups"
)

// ClientIDHeader identifies the browser owning a favorites list.
const ClientIDHeader = "X-Client-Id"

// ClientID is the validated owner of a favorites request.
type ClientID struct {
	Value string `validate:"required,max=128"`
}

// ToggleFavoriteRequest is the body of POST /api/favorites/toggle.
type ToggleFavoriteRequest struct {
	Key  string `json:"key" validate:"required,max=200"`
	Name string `json:"name" validate:"required,max=200"`
}

// FavoritesResponse lists a client's favorites, most recent first.
type FavoritesResponse struct {
	Items []favorites.City `json:"items"`
}

// PopularPlacesResponse lists the most looked-up places.
type PopularPlacesResponse struct {
	Items []lookups.PopularPlace `json:"items"`
}
