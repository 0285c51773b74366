package ledger

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Douglasgls/zona-verde-app/internal/domain/parking"
	"github.com/Douglasgls/zona-verde-app/internal/repository"
)

// Ledger tracks, per spot, the timestamp of the last acknowledged alert.
// Acknowledgments are written through to the local state store so they
// survive a restart; they never expire.
type Ledger struct {
	repo *repository.StateRepository
	log  zerolog.Logger

	mu   sync.Mutex
	acks map[int]string
}

func New(repo *repository.StateRepository, log zerolog.Logger) *Ledger {
	return &Ledger{
		repo: repo,
		log:  log.With().Str("component", "ledger").Logger(),
		acks: make(map[int]string),
	}
}

// Load reads every stored acknowledgment into the in-memory cache. Called
// once at startup.
func (l *Ledger) Load(ctx context.Context) error {
	acks, err := l.repo.Acknowledgments(ctx)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.acks = acks
	l.mu.Unlock()

	if len(acks) > 0 {
		l.log.Info().Int("spots", len(acks)).Msg("loaded alert acknowledgments")
	}
	return nil
}

// Acknowledge stores timestamp as the acknowledged alert for spotID. The
// same alert occurrence stays suppressed permanently; an event with any
// other timestamp becomes visible again.
func (l *Ledger) Acknowledge(ctx context.Context, spotID int, timestamp string) error {
	if err := l.repo.SetAcknowledgment(ctx, spotID, timestamp); err != nil {
		return err
	}

	l.mu.Lock()
	l.acks[spotID] = timestamp
	l.mu.Unlock()

	l.log.Info().
		Int("spot_id", spotID).
		Str("last_time", timestamp).
		Msg("alert acknowledged")
	return nil
}

// IsAlertVisible reports whether the event's alert should currently be
// shown: the alert flag is set and its timestamp differs from the stored
// acknowledgment for that spot.
func (l *Ledger) IsAlertVisible(spotID int, event *parking.TelemetryEvent) bool {
	if event == nil || !event.IsAlert {
		return false
	}

	l.mu.Lock()
	acked, ok := l.acks[spotID]
	l.mu.Unlock()

	return !ok || acked != event.LastTime
}
