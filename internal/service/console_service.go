package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Douglasgls/zona-verde-app/internal/capture"
	"github.com/Douglasgls/zona-verde-app/internal/domain/parking"
	"github.com/Douglasgls/zona-verde-app/internal/fetch"
	"github.com/Douglasgls/zona-verde-app/internal/ledger"
	"github.com/Douglasgls/zona-verde-app/internal/reconcile"
	"github.com/Douglasgls/zona-verde-app/internal/telemetry"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

// SpotOverview is one merged spot view annotated with the states only the
// service layer can resolve: alert visibility and capture progress.
type SpotOverview struct {
	parking.MergedSpotView
	AlertVisible bool               `json:"alert_visible"`
	Capture      capture.ImageState `json:"capture"`
}

// ConsoleService wires the snapshot fetcher, telemetry store, ledger and
// capture workflow into the operations the console surface consumes.
type ConsoleService struct {
	fetcher  *fetch.Fetcher
	store    *telemetry.Store
	ledger   *ledger.Ledger
	workflow *capture.Workflow
	log      zerolog.Logger

	mu       sync.Mutex
	snapshot *parking.Snapshot
}

func NewConsoleService(
	fetcher *fetch.Fetcher,
	store *telemetry.Store,
	alerts *ledger.Ledger,
	workflow *capture.Workflow,
	log zerolog.Logger,
) *ConsoleService {
	return &ConsoleService{
		fetcher:  fetcher,
		store:    store,
		ledger:   alerts,
		workflow: workflow,
		log:      log.With().Str("component", "console").Logger(),
	}
}

// Overview returns the merged view for every spot. With refresh set (or on
// first call) the reference snapshot is refetched; a failed refetch surfaces
// the error and keeps the prior snapshot in place.
func (s *ConsoleService) Overview(ctx context.Context, refresh bool) ([]SpotOverview, error) {
	snapshot, err := s.currentSnapshot(ctx, refresh)
	if err != nil {
		return nil, err
	}

	events := s.store.All()
	views := reconcile.Merge(snapshot.Spots, snapshot.Clients, snapshot.Reservations, events)

	result := make([]SpotOverview, 0, len(views))
	for _, view := range views {
		overview := SpotOverview{
			MergedSpotView: view,
			Capture:        s.workflow.ImageState(view.SpotID),
		}
		if event, ok := events[view.SpotID]; ok {
			overview.AlertVisible = s.ledger.IsAlertVisible(view.SpotID, &event)
		}
		result = append(result, overview)
	}
	return result, nil
}

// SpotDetail returns the merged view for a single spot.
func (s *ConsoleService) SpotDetail(ctx context.Context, spotID int) (*SpotOverview, error) {
	if spotID <= 0 {
		return nil, fmt.Errorf("%w: spot id must be positive", ErrInvalidInput)
	}

	views, err := s.Overview(ctx, false)
	if err != nil {
		return nil, err
	}
	for i := range views {
		if views[i].SpotID == spotID {
			return &views[i], nil
		}
	}
	return nil, fmt.Errorf("%w: spot %d", ErrNotFound, spotID)
}

// Acknowledge suppresses the spot's currently showing alert. Returns the
// acknowledged timestamp.
func (s *ConsoleService) Acknowledge(ctx context.Context, spotID int) (string, error) {
	if spotID <= 0 {
		return "", fmt.Errorf("%w: spot id must be positive", ErrInvalidInput)
	}

	event, ok := s.store.Get(spotID)
	if !ok || !event.IsAlert {
		return "", fmt.Errorf("%w: spot %d has no active alert", ErrInvalidInput, spotID)
	}

	if err := s.ledger.Acknowledge(ctx, spotID, event.LastTime); err != nil {
		s.log.Error().Err(err).Int("spot_id", spotID).Msg("failed to store acknowledgment")
		return "", fmt.Errorf("failed to store acknowledgment: %w", err)
	}
	return event.LastTime, nil
}

func (s *ConsoleService) TakePicture(ctx context.Context, spotID int) error {
	if spotID <= 0 {
		return fmt.Errorf("%w: spot id must be positive", ErrInvalidInput)
	}
	return s.workflow.TakePicture(ctx, spotID)
}

func (s *ConsoleService) RefreshPicture(ctx context.Context, spotID int) error {
	if spotID <= 0 {
		return fmt.Errorf("%w: spot id must be positive", ErrInvalidInput)
	}
	return s.workflow.Refresh(ctx, spotID)
}

func (s *ConsoleService) PictureState(spotID int) (capture.ImageState, error) {
	if spotID <= 0 {
		return capture.ImageState{}, fmt.Errorf("%w: spot id must be positive", ErrInvalidInput)
	}
	return s.workflow.ImageState(spotID), nil
}

func (s *ConsoleService) currentSnapshot(ctx context.Context, refresh bool) (*parking.Snapshot, error) {
	s.mu.Lock()
	cached := s.snapshot
	s.mu.Unlock()

	if cached != nil && !refresh {
		return cached, nil
	}

	snapshot, err := s.fetcher.Snapshot(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("reference snapshot fetch failed")
		return nil, err
	}

	s.mu.Lock()
	s.snapshot = snapshot
	s.mu.Unlock()

	s.log.Info().
		Int("spots", len(snapshot.Spots)).
		Int("clients", len(snapshot.Clients)).
		Int("reservations", len(snapshot.Reservations)).
		Msg("reference snapshot updated")
	return snapshot, nil
}
