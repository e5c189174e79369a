package www

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"servicetrack/config"
	"servicetrack/engine"
	"servicetrack/store"
	"servicetrack/workflow"
)

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := config.Defaults()
	cfg.Database.SQLite.Path = filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(&cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	eng, err := engine.New(engine.Config{AppConfig: cfg, DB: db, LogFunc: t.Logf})
	require.NoError(t, err)
	eng.Start()
	t.Cleanup(eng.Stop)

	router, stop := NewRouter(eng)
	t.Cleanup(stop)
	return router
}

type call struct {
	method, path, body string
	cookies            []*http.Cookie
	form               url.Values
}

func do(t *testing.T, h http.Handler, c call) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	switch {
	case c.form != nil:
		req = httptest.NewRequest(c.method, c.path, strings.NewReader(c.form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	case c.body != "":
		req = httptest.NewRequest(c.method, c.path, strings.NewReader(c.body))
		req.Header.Set("Content-Type", "application/json")
	default:
		req = httptest.NewRequest(c.method, c.path, nil)
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	}
	return rec, body
}

func submit(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	return do(t, h, call{method: http.MethodPost, path: "/api/vehicle-check", body: body})
}

const (
	gateStart    = `{"vehicleNumber":" ka01ab1234 ","role":"Security Guard","stageName":"Security Gate","eventType":"Start","inKM":1200}`
	jobCardStart = `{"vehicleNumber":"KA01AB1234","role":"Service Advisor","stageName":"Job Card Creation + Customer Approval","eventType":"Start"}`
	jobCardEnd   = `{"vehicleNumber":"KA01AB1234","role":"Service Advisor","stageName":"Job Card Creation + Customer Approval","eventType":"End"}`
	washingEnd   = `{"vehicleNumber":"KA01AB1234","role":"Washing","stageName":"Washing","eventType":"End"}`
)

func TestVehicleCheckStatusCodes(t *testing.T) {
	h := testRouter(t)

	rec, body := submit(t, h, gateStart)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["newVehicle"])
	assert.Equal(t, "New vehicle entry recorded.", body["message"])
	vehicle := body["vehicle"].(map[string]any)
	assert.Equal(t, "KA01AB1234", vehicle["vehicleNumber"])

	rec, body = submit(t, h, jobCardStart)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Job Card Creation + Customer Approval started.", body["message"])
	_, hasNew := body["newVehicle"]
	assert.True(t, hasNew)
	assert.Equal(t, false, body["newVehicle"])

	rec, body = submit(t, h, jobCardStart)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "StageAlreadyStarted", body["kind"])

	rec, body = submit(t, h, jobCardEnd)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "TooSoonToEnd", body["kind"])

	rec, body = submit(t, h, washingEnd)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "StageNotStarted", body["kind"])
	assert.Equal(t, "Washing was not started.", body["message"])
}

func TestVehicleCheckBadInput(t *testing.T) {
	h := testRouter(t)

	rec, body := submit(t, h, `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body.", body["message"])

	rec, body = submit(t, h, `{"vehicleNumber":"KA01"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "MissingFields", body["kind"])

	rec, body = submit(t, h, `{"vehicleNumber":"KA01","role":"Astronaut","stageName":"Washing","eventType":"Start"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "UnknownRole", body["kind"])
}

func TestGetVehicle(t *testing.T) {
	h := testRouter(t)

	rec, body := do(t, h, call{method: http.MethodGet, path: "/api/vehicles/KA01AB1234"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Vehicle not found.", body["message"])

	submit(t, h, gateStart)

	rec, body = do(t, h, call{method: http.MethodGet, path: "/api/vehicles/ka01ab1234"})
	require.Equal(t, http.StatusOK, rec.Code)
	vehicle := body["vehicle"].(map[string]any)
	stages := vehicle["stages"].([]any)
	require.Len(t, stages, 1)
	assert.Equal(t, "Security Gate", stages[0].(map[string]any)["stageName"])

	rec, body = do(t, h, call{method: http.MethodGet, path: "/api/vehicles"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["vehicles"], 1)

	rec, body = do(t, h, call{method: http.MethodGet, path: "/api/vehicles/today"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["count"])

	rec, body = do(t, h, call{method: http.MethodGet, path: "/api/vehicles/KA01AB1234/audit"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["audit"], 2)
}

func TestListEndpointsReturnEmptyArrays(t *testing.T) {
	h := testRouter(t)
	for _, path := range []string{
		"/api/vehicles",
		"/api/vehicles/bay-allocation-started",
		"/api/vehicles/interactive-started",
		"/api/vehicles/bay-work-in-progress",
		"/api/vehicles/finished-interactive-bay",
		"/api/dashboard/all-vehicles",
		"/api/floor",
	} {
		rec, body := do(t, h, call{method: http.MethodGet, path: path})
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, []any{}, body["vehicles"], path)
	}

	rec, body := do(t, h, call{method: http.MethodGet, path: "/api/vehicles/bay-work-board"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, body["inProgressVehicles"])
	assert.Equal(t, []any{}, body["finishedVehicles"])
}

func TestDashboard(t *testing.T) {
	h := testRouter(t)
	submit(t, h, gateStart)
	submit(t, h, jobCardStart)

	rec, body := do(t, h, call{method: http.MethodGet, path: "/api/dashboard/vehicle/ka01ab1234"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "KA01AB1234", body["vehicleNumber"])
	assert.Equal(t, "Job Card Creation + Customer Approval", body["currentStage"])
	assert.Len(t, body["stageTimeline"], 2)

	rec, body = do(t, h, call{method: http.MethodGet, path: "/api/dashboard/all-vehicles"})
	require.Equal(t, http.StatusOK, rec.Code)
	all := body["vehicles"].([]any)
	require.Len(t, all, 1)
	entries := all[0].(map[string]any)["stageTimeline"].([]any)
	// Security IN bookend plus job card; the gate Start itself is hidden.
	require.Len(t, entries, 2)
	assert.Equal(t, "Security IN", entries[0].(map[string]any)["stageName"])

	rec, body = do(t, h, call{method: http.MethodGet, path: "/api/dashboard/stage-performance"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "All Data", body["filterDays"])
	assert.Equal(t, []any{}, body["avgStageTimes"])

	rec, body = do(t, h, call{method: http.MethodGet, path: "/api/dashboard/vehicle-count-per-stage?days=7"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "7", body["filterDays"])
	assert.Len(t, body["vehicleCountPerStage"], 2)

	rec, body = do(t, h, call{method: http.MethodGet, path: "/api/floor"})
	require.Equal(t, http.StatusOK, rec.Code)
	floor := body["vehicles"].([]any)
	require.Len(t, floor, 1)
	assert.Equal(t, "Job Card Creation + Customer Approval", floor[0].(map[string]any)["currentStage"])

	rec, _ = do(t, h, call{method: http.MethodGet, path: "/api/dashboard/vehicle/NOPE"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteRequiresLogin(t *testing.T) {
	h := testRouter(t)
	submit(t, h, gateStart)

	rec, body := do(t, h, call{method: http.MethodDelete, path: "/api/vehicles"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Access Denied", body["message"])

	rec, _ = do(t, h, call{method: http.MethodPost, path: "/login",
		form: url.Values{"username": {"admin"}, "password": {"wrong"}}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = do(t, h, call{method: http.MethodPost, path: "/login",
		form: url.Values{"username": {"admin"}, "password": {"admin"}}})
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	rec, body = do(t, h, call{method: http.MethodDelete, path: "/api/vehicles", cookies: cookies})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(1), body["deleted"])
	assert.Equal(t, "admin", body["by"])

	rec, body = do(t, h, call{method: http.MethodGet, path: "/api/vehicles"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, body["vehicles"])
}

func TestHealth(t *testing.T) {
	h := testRouter(t)
	rec, body := do(t, h, call{method: http.MethodGet, path: "/api/health"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["database"])
	assert.Equal(t, "sqlite", body["driver"])
	assert.Equal(t, false, body["redis"])
	assert.Equal(t, false, body["messaging"])
}

func TestEventHubFanOut(t *testing.T) {
	hub := NewEventHub()
	hub.Start()
	defer hub.Stop()

	ch := hub.AddClient()
	assert.Equal(t, 1, hub.ClientCount())
	hub.BroadcastJSON("stage-update", map[string]any{"visitId": 1})
	evt := <-ch
	assert.Equal(t, "stage-update", evt.Event)
	assert.JSONEq(t, `{"visitId":1}`, evt.Data)

	hub.RemoveClient(ch)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestRouterStopDetachesListeners(t *testing.T) {
	cfg := config.Defaults()
	cfg.Database.SQLite.Path = filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(&cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	eng, err := engine.New(engine.Config{AppConfig: cfg, DB: db, LogFunc: t.Logf})
	require.NoError(t, err)

	before := eng.Events.Len()
	_, stop := NewRouter(eng)
	assert.Greater(t, eng.Events.Len(), before)
	stop()
	assert.Equal(t, before, eng.Events.Len())
}

func TestSubmitBroadcastsStageUpdate(t *testing.T) {
	cfg := config.Defaults()
	cfg.Database.SQLite.Path = filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(&cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	eng, err := engine.New(engine.Config{AppConfig: cfg, DB: db, LogFunc: t.Logf})
	require.NoError(t, err)

	hub := NewEventHub()
	hub.Start()
	defer hub.Stop()
	detach := hub.SetupEngineListeners(eng)
	defer detach()
	ch := hub.AddClient()

	_, err = eng.Tracker().Submit(workflow.Submission{
		VehicleNumber: "KA01AB1234",
		Role:          workflow.RoleSecurityGuard,
		StageName:     workflow.StageSecurityGate,
		EventType:     "Start",
	})
	require.NoError(t, err)

	var names []string
	for len(names) < 2 {
		select {
		case evt := <-ch:
			names = append(names, evt.Event)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out; got %v", names)
		}
	}
	assert.ElementsMatch(t, []string{"visit-update", "stage-update"}, names)
}
