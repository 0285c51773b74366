package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Douglasgls/zona-verde-app/internal/capture"
	"github.com/Douglasgls/zona-verde-app/internal/db"
	"github.com/Douglasgls/zona-verde-app/internal/domain/parking"
	"github.com/Douglasgls/zona-verde-app/internal/fetch"
	"github.com/Douglasgls/zona-verde-app/internal/ledger"
	"github.com/Douglasgls/zona-verde-app/internal/repository"
	"github.com/Douglasgls/zona-verde-app/internal/telemetry"
)

type referenceStub struct {
	failing atomic.Bool
}

func (s *referenceStub) handler(w http.ResponseWriter, r *http.Request) {
	if s.failing.Load() {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"backend down"}`))
		return
	}
	switch r.URL.Path {
	case "/spots":
		w.Write([]byte(`[{"id":3,"number":"03","sector":"A","status":"RESERVED","current_status":"FREE"}]`))
	case "/client":
		w.Write([]byte(`[{"id":10,"name":"Douglas","plate":"ABC-1234"}]`))
	case "/reservations":
		w.Write([]byte(`[{"id":5,"client_id":10,"spot_id":3,"day":"2026-08-30"}]`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestConsole(t *testing.T, stub *referenceStub) (*ConsoleService, *telemetry.Store) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(stub.handler))
	t.Cleanup(srv.Close)

	gdb, err := db.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	repo := repository.NewStateRepository(gdb)

	log := zerolog.Nop()
	store := telemetry.NewStore(nil, log)
	alerts := ledger.New(repo, log)
	workflow := capture.NewWorkflow(capture.NewBackend(srv.URL, time.Second), time.Second, 0, log)
	fetcher := fetch.NewFetcher(srv.URL, time.Second, log)

	return NewConsoleService(fetcher, store, alerts, workflow, log), store
}

func TestOverviewKeepsPriorSnapshotOnFailedRefetch(t *testing.T) {
	t.Parallel()

	stub := &referenceStub{}
	console, _ := newTestConsole(t, stub)
	ctx := context.Background()

	views, err := console.Overview(ctx, true)
	require.NoError(t, err)
	require.Len(t, views, 1)

	stub.failing.Store(true)

	_, err = console.Overview(ctx, true)
	require.Error(t, err)
	var fetchErr *fetch.FetchError
	require.ErrorAs(t, err, &fetchErr)

	// The prior snapshot is still served without a refetch.
	views, err = console.Overview(ctx, false)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, 3, views[0].SpotID)
}

func TestOverviewMergesLiveTelemetry(t *testing.T) {
	t.Parallel()

	stub := &referenceStub{}
	console, store := newTestConsole(t, stub)
	ctx := context.Background()

	store.Update(3, parking.TelemetryEvent{
		SpotID: 3, Status: parking.PresenceOccupied, IsAlert: true, LastTime: "t1",
	})

	views, err := console.Overview(ctx, true)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.True(t, views[0].IsAlert)
	assert.True(t, views[0].AlertVisible)
	assert.Equal(t, parking.PresenceOccupied, views[0].CurrentStatus)
	require.NotNil(t, views[0].ClientName)
	assert.Equal(t, "Douglas", *views[0].ClientName)
}

func TestAcknowledgeCurrentAlert(t *testing.T) {
	t.Parallel()

	stub := &referenceStub{}
	console, store := newTestConsole(t, stub)
	ctx := context.Background()

	store.Update(3, parking.TelemetryEvent{SpotID: 3, IsAlert: true, LastTime: "t1"})

	timestamp, err := console.Acknowledge(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "t1", timestamp)

	views, err := console.Overview(ctx, true)
	require.NoError(t, err)
	assert.False(t, views[0].AlertVisible)

	// A new alert occurrence becomes visible again.
	store.Update(3, parking.TelemetryEvent{SpotID: 3, IsAlert: true, LastTime: "t2"})
	views, err = console.Overview(ctx, false)
	require.NoError(t, err)
	assert.True(t, views[0].AlertVisible)
}

func TestAcknowledgeWithoutActiveAlert(t *testing.T) {
	t.Parallel()

	stub := &referenceStub{}
	console, store := newTestConsole(t, stub)
	ctx := context.Background()

	_, err := console.Acknowledge(ctx, 3)
	require.ErrorIs(t, err, ErrInvalidInput)

	store.Update(3, parking.TelemetryEvent{SpotID: 3, IsAlert: false, LastTime: "t1"})
	_, err = console.Acknowledge(ctx, 3)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestSpotDetail(t *testing.T) {
	t.Parallel()

	stub := &referenceStub{}
	console, _ := newTestConsole(t, stub)
	ctx := context.Background()

	view, err := console.SpotDetail(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "03", view.Number)

	_, err = console.SpotDetail(ctx, 42)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = console.SpotDetail(ctx, -1)
	require.ErrorIs(t, err, ErrInvalidInput)
}
