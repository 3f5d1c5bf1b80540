// Package events carries lookup notifications from the API to the worker.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// LookupEvent is emitted after a successful weather lookup. ID is unique per
// lookup and lets consumers drop redeliveries; events without one are never
// treated as duplicates.
type LookupEvent struct {
	ID         string    `json:"id,omitempty"`
	Query      string    `json:"query"`
	PlaceKey   string    `json:"placeKey"`
	Name       string    `json:"name"`
	Country    string    `json:"country"`
	State      string    `json:"state,omitempty"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Encode serializes the event for transport.
func (e LookupEvent) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeLookupEvent parses a transported event.
func DecodeLookupEvent(data []byte) (LookupEvent, error) {
	var e LookupEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return LookupEvent{}, fmt.Errorf("decoding lookup event: %w", err)
	}
	if e.PlaceKey == "" {
		return LookupEvent{}, fmt.Errorf("decoding lookup event: missing placeKey")
	}
	return e, nil
}

// Publisher sends lookup events somewhere.
type Publisher interface {
	Publish(ctx context.Context, event LookupEvent) error
}

// HandlerFunc consumes a lookup event.
type HandlerFunc func(ctx context.Context, event LookupEvent) error

// LocalPublisher delivers events in-process. Used when no broker is configured.
type LocalPublisher struct {
	handle HandlerFunc
}

// NewLocalPublisher returns a publisher that calls handle synchronously.
func NewLocalPublisher(handle HandlerFunc) *LocalPublisher {
	return &LocalPublisher{handle: handle}
}

// Publish calls the handler.
func (p *LocalPublisher) Publish(ctx context.Context, event LookupEvent) error {
	return p.handle(ctx, event)
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish does nothing.
func (NopPublisher) Publish(context.Context, LookupEvent) error { return nil }

var (
	_ Publisher = (*LocalPublisher)(nil)
	_ Publisher = NopPublisher{}
)
