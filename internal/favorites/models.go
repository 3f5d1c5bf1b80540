// Package favorites keeps a capped, most-recent-first list of bookmarked
// places per client.
package favorites

import "errors"

// MaxFavorites is the maximum number of entries kept per owner.
const MaxFavorites = 12

// ErrInvalidCity is returned when a city has an empty key.
var ErrInvalidCity = errors.New("favorite city requires a key")

// City is a bookmarked place.
type City struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Toggle removes c when its key is present, otherwise prepends it and caps
// the result at MaxFavorites. The input slice is not modified.
func Toggle(list []City, c City) []City {
	if Contains(list, c.Key) {
		return Remove(list, c.Key)
	}

	next := make([]City, 0, len(list)+1)
	next = append(next, City{Key: c.Key, Name: c.Name})
	next = append(next, list...)
	if len(next) > MaxFavorites {
		next = next[:MaxFavorites]
	}
	return next
}

// Remove returns list without entries whose key equals key.
func Remove(list []City, key string) []City {
	next := make([]City, 0, len(list))
	for _, c := range list {
		if c.Key != key {
			next = append(next, c)
		}
	}
	return next
}

// Contains reports whether list has an entry with key.
func Contains(list []City, key string) bool {
	for _, c := range list {
		if c.Key == key {
			return true
		}
	}
	return false
}
