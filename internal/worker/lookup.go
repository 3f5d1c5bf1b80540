// Package worker consumes lookup events off the message bus.
package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/fairweather/fairweather/internal/events"
	"github.com/fairweather/fairweather/internal/lookups"
)

// Outcome tells the transport what to do with a message.
type Outcome int

const (
	// Ack removes the message from the subscription.
	Ack Outcome = iota
	// Nack asks for redelivery.
	Nack
)

func (o Outcome) String() string {
	if o == Nack {
		return "nack"
	}
	return "ack"
}

// Stats are running counters for processed messages.
type Stats struct {
	Recorded   int64 `json:"recorded"`
	Duplicates int64 `json:"duplicates"`
	Malformed  int64 `json:"malformed"`
	Failed     int64 `json:"failed"`
}

// LookupHandler records lookup events in a repository.
type LookupHandler struct {
	repo   lookups.Repository
	logger zerolog.Logger

	recorded   atomic.Int64
	duplicates atomic.Int64
	malformed  atomic.Int64
	failed     atomic.Int64
}

// NewLookupHandler creates a handler writing to repo.
func NewLookupHandler(repo lookups.Repository, logger zerolog.Logger) *LookupHandler {
	return &LookupHandler{
		repo:   repo,
		logger: logger,
	}
}

// Handle decodes and records one message. Malformed payloads and
// redeliveries are acked; repository failures are nacked.
func (h *LookupHandler) Handle(ctx context.Context, data []byte) Outcome {
	event, err := events.DecodeLookupEvent(data)
	if err != nil {
		h.malformed.Add(1)
		h.logger.Warn().Err(err).Msg("dropping malformed lookup event")
		return Ack
	}

	if err := h.Record(ctx, event); err != nil {
		return Nack
	}
	return Ack
}

// Record counts event in the repository and updates the stats. It doubles as
// the in-process events.HandlerFunc. Duplicates are not an error.
func (h *LookupHandler) Record(ctx context.Context, event events.LookupEvent) error {
	start := time.Now()
	err := h.repo.Record(ctx, event)
	switch {
	case errors.Is(err, lookups.ErrDuplicateEvent):
		h.duplicates.Add(1)
		h.logger.Debug().Str("event_id", event.ID).Str("place", event.PlaceKey).Msg("duplicate lookup event")
		return nil
	case err != nil:
		h.failed.Add(1)
		h.logger.Error().Err(err).Str("place", event.PlaceKey).Msg("failed to record lookup")
		return err
	}

	h.recorded.Add(1)
	h.logger.Debug().
		Str("place", event.PlaceKey).
		Dur("duration", time.Since(start)).
		Msg("lookup recorded")
	return nil
}

// Stats returns a snapshot of the counters.
func (h *LookupHandler) Stats() Stats {
	return Stats{
		Recorded:   h.recorded.Load(),
		Duplicates: h.duplicates.Load(),
		Malformed:  h.malformed.Load(),
		Failed:     h.failed.Load(),
	}
}
