package telemetry

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Douglasgls/zona-verde-app/internal/domain/parking"
)

// Cache is the optional durable backing for the store, so last-known
// telemetry survives a restart.
type Cache interface {
	SaveTelemetrySnapshot(ctx context.Context, events map[int]parking.TelemetryEvent) error
	LoadTelemetrySnapshot(ctx context.Context) (map[int]parking.TelemetryEvent, error)
}

// Store holds the latest recognition event per spot. Every update replaces
// the whole entry for its spot; readers always see fully-formed events.
// Entries accumulate for the process lifetime, bounded by the number of
// distinct spots.
type Store struct {
	mu     sync.RWMutex
	events map[int]parking.TelemetryEvent

	cache Cache
	log   zerolog.Logger
}

func NewStore(cache Cache, log zerolog.Logger) *Store {
	return &Store{
		events: make(map[int]parking.TelemetryEvent),
		cache:  cache,
		log:    log.With().Str("component", "telemetry_store").Logger(),
	}
}

// Restore loads the cached snapshot from the durable cache, if one is
// configured. Called once at startup, before the stream is opened.
func (s *Store) Restore(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}

	events, err := s.cache.LoadTelemetrySnapshot(ctx)
	if err != nil {
		return err
	}
	if events == nil {
		events = make(map[int]parking.TelemetryEvent)
	}

	s.mu.Lock()
	s.events = events
	s.mu.Unlock()

	if len(events) > 0 {
		s.log.Info().Int("spots", len(events)).Msg("restored telemetry snapshot")
	}
	return nil
}

// Update replaces the entry for id with event. Stale or out-of-order events
// are applied as-is; the feed carries no ordering guard.
func (s *Store) Update(id int, event parking.TelemetryEvent) {
	s.mu.Lock()
	s.events[id] = event
	snapshot := s.copyLocked()
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.SaveTelemetrySnapshot(context.Background(), snapshot); err != nil {
			s.log.Error().Err(err).Int("spot_id", id).Msg("failed to persist telemetry snapshot")
		}
	}
}

func (s *Store) Get(id int) (parking.TelemetryEvent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	event, ok := s.events[id]
	return event, ok
}

// All returns a copy of the current mapping.
func (s *Store) All() map[int]parking.TelemetryEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

func (s *Store) copyLocked() map[int]parking.TelemetryEvent {
	out := make(map[int]parking.TelemetryEvent, len(s.events))
	for id, event := range s.events {
		out[id] = event
	}
	return out
}
