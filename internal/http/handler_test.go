package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Douglasgls/zona-verde-app/internal/capture"
	"github.com/Douglasgls/zona-verde-app/internal/config"
	"github.com/Douglasgls/zona-verde-app/internal/db"
	"github.com/Douglasgls/zona-verde-app/internal/domain/parking"
	"github.com/Douglasgls/zona-verde-app/internal/fetch"
	"github.com/Douglasgls/zona-verde-app/internal/ledger"
	"github.com/Douglasgls/zona-verde-app/internal/repository"
	"github.com/Douglasgls/zona-verde-app/internal/service"
	"github.com/Douglasgls/zona-verde-app/internal/telemetry"
)

func referenceHandler(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/spots":
		w.Write([]byte(`[{"id":1,"number":"01","sector":"A","status":"FREE","current_status":"FREE"},
			{"id":3,"number":"03","sector":"A","status":"RESERVED","current_status":"FREE"}]`))
	case "/client":
		w.Write([]byte(`[{"id":10,"name":"Douglas","plate":"ABC-1234","phone":"555-0101"}]`))
	case "/reservations":
		w.Write([]byte(`[{"id":5,"client_id":10,"spot_id":3,"day":"2026-08-30"}]`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type testEnv struct {
	engine *gin.Engine
	store  *telemetry.Store
}

func newTestEnv(t *testing.T, backend http.HandlerFunc, jwtSecret string) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	gdb, err := db.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	repo := repository.NewStateRepository(gdb)

	log := zerolog.Nop()
	store := telemetry.NewStore(nil, log)
	alerts := ledger.New(repo, log)
	workflow := capture.NewWorkflow(capture.NewBackend(srv.URL, time.Second), time.Second, 0, log)
	fetcher := fetch.NewFetcher(srv.URL, time.Second, log)
	console := service.NewConsoleService(fetcher, store, alerts, workflow, log)

	engine := gin.New()
	handler := NewHandler(console, &config.Config{}, log)
	handler.Register(engine, AuthMiddleware(jwtSecret))

	return &testEnv{engine: engine, store: store}
}

func (e *testEnv) do(method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	e.engine.ServeHTTP(rec, req)
	return rec
}

func TestOverview(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, referenceHandler, "")
	env.store.Update(3, parking.TelemetryEvent{
		SpotID: 3, Status: parking.PresenceOccupied, IsAlert: true,
		PlateOCR: "XYZ-9999", LastTime: "t1",
	})

	rec := env.do(http.MethodGet, "/api/v1/overview")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data []service.SpotOverview `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)

	spot3 := body.Data[1]
	assert.Equal(t, 3, spot3.SpotID)
	require.NotNil(t, spot3.ClientName)
	assert.Equal(t, "Douglas", *spot3.ClientName)
	assert.True(t, spot3.IsAlert)
	assert.True(t, spot3.AlertVisible)
	assert.Equal(t, parking.PresenceOccupied, spot3.CurrentStatus)
}

func TestOverviewRefreshParam(t *testing.T) {
	t.Parallel()

	var spotFetches int32
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/spots" {
			atomic.AddInt32(&spotFetches, 1)
		}
		referenceHandler(w, r)
	}, "")

	// The first plain GET populates the snapshot.
	rec := env.do(http.MethodGet, "/api/v1/overview")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, int32(1), atomic.LoadInt32(&spotFetches))

	// Further plain GETs reuse it.
	rec = env.do(http.MethodGet, "/api/v1/overview")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(http.MethodGet, "/api/v1/overview?refresh=0")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(&spotFetches))

	// Only an explicit refresh refetches.
	rec = env.do(http.MethodGet, "/api/v1/overview?refresh=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int32(2), atomic.LoadInt32(&spotFetches))
}

func TestOverviewBackendDown(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"reference service down"}`))
	}, "")

	rec := env.do(http.MethodGet, "/api/v1/overview")
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "reference service down")
}

func TestSpotDetailNotFound(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, referenceHandler, "")

	rec := env.do(http.MethodGet, "/api/v1/spots/42")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSpotDetailBadID(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, referenceHandler, "")

	rec := env.do(http.MethodGet, "/api/v1/spots/banana")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAcknowledgeSuppressesAlert(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, referenceHandler, "")
	env.store.Update(3, parking.TelemetryEvent{SpotID: 3, IsAlert: true, LastTime: "t1"})

	rec := env.do(http.MethodPost, "/api/v1/spots/3/acknowledge")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"last_time":"t1"`)

	rec = env.do(http.MethodGet, "/api/v1/spots/3")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data service.SpotOverview `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Data.IsAlert)
	assert.False(t, body.Data.AlertVisible)
}

func TestAcknowledgeWithoutAlert(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, referenceHandler, "")

	rec := env.do(http.MethodPost, "/api/v1/spots/1/acknowledge")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTakePictureBackendFailureSurfacesDetail(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/plate/take_picture/") {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"detail":"camera offline"}`))
			return
		}
		referenceHandler(w, r)
	}, "")

	rec := env.do(http.MethodPost, "/api/v1/spots/1/picture")
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "camera offline")
}

func TestPictureStateEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, referenceHandler, "")

	rec := env.do(http.MethodGet, "/api/v1/spots/1/picture")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"phase":"idle"`)
}

func TestAuthRequiredWhenSecretConfigured(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, referenceHandler, "test-secret")

	rec := env.do(http.MethodGet, "/api/v1/overview")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
