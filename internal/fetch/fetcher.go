package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/Douglasgls/zona-verde-app/internal/domain/parking"
)

// FetchError reports a failed reference-backend request, carrying the
// backend's own message when it sent one.
type FetchError struct {
	Resource   string
	StatusCode int
	Message    string
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("failed to fetch %s: %s (status %d)", e.Resource, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("failed to fetch %s: %s", e.Resource, e.Message)
}

// Fetcher retrieves the reference collections on demand. No retries: a
// failed fetch surfaces the error and the caller keeps its prior snapshot.
type Fetcher struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

func NewFetcher(baseURL string, timeout time.Duration, log zerolog.Logger) *Fetcher {
	return &Fetcher{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "fetch").Logger(),
	}
}

func (f *Fetcher) ListSpots(ctx context.Context) ([]parking.Spot, error) {
	var spots []parking.Spot
	if err := f.getCollection(ctx, "/spots", "spots", &spots); err != nil {
		return nil, err
	}
	return spots, nil
}

func (f *Fetcher) ListClients(ctx context.Context) ([]parking.Client, error) {
	var clients []parking.Client
	if err := f.getCollection(ctx, "/client", "clients", &clients); err != nil {
		return nil, err
	}
	return clients, nil
}

func (f *Fetcher) ListReservations(ctx context.Context) ([]parking.Reservation, error) {
	var reservations []parking.Reservation
	if err := f.getCollection(ctx, "/reservations", "reservations", &reservations); err != nil {
		return nil, err
	}
	return reservations, nil
}

// Snapshot fetches all three reference collections. Any single failure fails
// the whole snapshot.
func (f *Fetcher) Snapshot(ctx context.Context) (*parking.Snapshot, error) {
	spots, err := f.ListSpots(ctx)
	if err != nil {
		return nil, err
	}
	clients, err := f.ListClients(ctx)
	if err != nil {
		return nil, err
	}
	reservations, err := f.ListReservations(ctx)
	if err != nil {
		return nil, err
	}

	f.log.Debug().
		Int("spots", len(spots)).
		Int("clients", len(clients)).
		Int("reservations", len(reservations)).
		Msg("fetched reference snapshot")

	return &parking.Snapshot{
		Spots:        spots,
		Clients:      clients,
		Reservations: reservations,
	}, nil
}

func (f *Fetcher) getCollection(ctx context.Context, path, resource string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+path, nil)
	if err != nil {
		return &FetchError{Resource: resource, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return &FetchError{Resource: resource, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &FetchError{Resource: resource, StatusCode: resp.StatusCode, Message: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &FetchError{
			Resource:   resource,
			StatusCode: resp.StatusCode,
			Message:    BackendMessage(body),
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &FetchError{Resource: resource, StatusCode: resp.StatusCode, Message: err.Error()}
	}
	return nil
}

// BackendMessage extracts the human-readable message or detail field from a
// backend error body, falling back to generic text.
func BackendMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Detail != "" {
			return payload.Detail
		}
	}
	return "backend request failed"
}
