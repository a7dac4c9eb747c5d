package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkest/parkest/internal/api"
	"github.com/parkest/parkest/internal/api/handler"
	"github.com/parkest/parkest/internal/api/models"
	"github.com/parkest/parkest/internal/auth"
	"github.com/parkest/parkest/internal/candidate"
	"github.com/parkest/parkest/internal/geo"
	"github.com/parkest/parkest/internal/planner"
	"github.com/parkest/parkest/internal/provider/resilience"
	"github.com/parkest/parkest/internal/routing"
	"github.com/parkest/parkest/internal/trip"
	"github.com/parkest/parkest/pkg/polyline"
)

// straightRouter returns a straight line: 10 minutes by car, 5 on foot.
type straightRouter struct{}

func (straightRouter) GetDirections(_ context.Context, req routing.DirectionsRequest) (*routing.DirectionsResponse, error) {
	duration := 600.0
	if req.Profile == routing.ProfileWalk {
		duration = 300
	}
	return &routing.DirectionsResponse{Routes: []routing.Route{{
		DurationSeconds:  duration,
		DistanceMeters:   req.Origin.DistanceMeters(req.Destination),
		GeometryPolyline: polyline.Encode([]geo.Coordinate{req.Origin, req.Destination}),
	}}}, nil
}

// capacityEstimator knows the two lots nearest to Marienplatz.
type capacityEstimator struct{}

func (capacityEstimator) Estimate(_ context.Context, capacity int, _ geo.Coordinate) (float64, error) {
	switch capacity {
	case 310:
		return 10, nil
	case 362:
		return 20, nil
	}
	return 0, errors.New("no estimate")
}

type testServer struct {
	handler http.Handler
	store   *planner.Store
	trips   *trip.InMemoryRepository
	jwt     *auth.JWTService
}

func newTestServer(t *testing.T, checks map[string]handler.CheckFunc) *testServer {
	t.Helper()
	logger := zerolog.New(io.Discard)

	trips := trip.NewInMemoryRepository()
	engine := planner.NewEngine(planner.Config{
		Candidates: candidate.NewInMemoryRepository(candidate.MunichSeed()...),
		Estimator:  capacityEstimator{},
		Resolver:   routing.NewLegResolver(routing.ResolverConfig{Router: straightRouter{}, Logger: logger}),
		Recorder:   trips,
		Logger:     logger,
	})
	store := planner.NewStore(planner.StoreConfig{Engine: engine, Logger: logger})
	t.Cleanup(store.CloseAll)

	jwt := auth.NewJWTService(auth.JWTConfig{
		SigningKey: "test-secret-key-for-testing-only",
		Issuer:     "https://api.parkest.app",
		Audience:   "parkest-api",
	})

	return &testServer{
		handler: api.NewRouter(api.RouterConfig{
			Version:   "test",
			BuildTime: "2026-01-01T00:00:00Z",
			Logger:    logger,
			Sessions:  store,
			Tokens:    jwt,
			Registry:  resilience.NewRegistry(),
			Checks:    checks,
		}),
		store: store,
		trips: trips,
		jwt:   jwt,
	}
}

func (s *testServer) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func (s *testServer) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := s.jwt.Issue(userID)
	require.NoError(t, err)
	return token.Value
}

func decodeSession(t *testing.T, w *httptest.ResponseRecorder) models.Session {
	t.Helper()
	var out models.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) models.Problem {
	t.Helper()
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	var out models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestSessionFlow(t *testing.T) {
	srv := newTestServer(t, nil)

	w := srv.do(t, http.MethodPost, "/v1/sessions", `{"origin":{"lat":48.15,"lon":11.54}}`, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeSession(t, w)
	assert.Equal(t, "IDLE", created.State)
	assert.Equal(t, "/v1/sessions/"+created.ID, w.Header().Get("Location"))
	require.NotNil(t, created.Origin)
	base := "/v1/sessions/" + created.ID

	// Search returns the loaded candidate set.
	w = srv.do(t, http.MethodPost, base+"/search", `{"destination":{"lat":48.13743,"lon":11.57549},"radiusMeters":450}`, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	searched := decodeSession(t, w)
	assert.False(t, searched.Searching)
	require.Len(t, searched.Candidates, 2)
	assert.Equal(t, "muc-002", searched.Candidates[0].ID)
	assert.Equal(t, "LOW", searched.Candidates[0].Tier)
	assert.Equal(t, "#22c55e", searched.Candidates[0].Color)
	assert.Equal(t, "MEDIUM", searched.Candidates[1].Tier)
	require.NotNil(t, searched.CohortAverageMinutes)
	assert.InDelta(t, 15, *searched.CohortAverageMinutes, 1e-9)

	// Trips need a settled selection.
	token := srv.token(t, "usr_1")
	w = srv.do(t, http.MethodPost, base+"/trips", "", token)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, models.ProblemTypeNotReady, decodeProblem(t, w).Type)

	w = srv.do(t, http.MethodPut, base+"/selection", `{"candidateId":"muc-002"}`, "")
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	selected := decodeSession(t, w)
	require.NotNil(t, selected.Selection)
	assert.Equal(t, "muc-002", selected.Selection.Candidate.ID)

	w = srv.do(t, http.MethodGet, base+"?wait=2s", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	ready := decodeSession(t, w)
	assert.Equal(t, "READY", ready.State)
	require.NotNil(t, ready.Selection)
	sel := ready.Selection
	require.NotNil(t, sel.Breakdown)
	assert.InDelta(t, 25, sel.Breakdown.TotalMinutes, 1e-9)
	require.NotNil(t, sel.SavedMinutes)
	assert.Equal(t, 5, *sel.SavedMinutes)
	require.NotNil(t, sel.TripComparison)
	assert.Equal(t, "FASTER", sel.TripComparison.Verdict)
	require.NotNil(t, sel.Car)
	assert.Equal(t, models.LegStatusOK, sel.Car.Status)
	assert.Len(t, sel.Car.Path, 2)
	require.NotNil(t, sel.Walk)
	assert.InDelta(t, 5, *sel.Walk.DurationMinutes, 1e-9)

	// Trip start requires a bearer token and happens once per selection.
	w = srv.do(t, http.MethodPost, base+"/trips", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = srv.do(t, http.MethodPost, base+"/trips", "", token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var started models.TripResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &started))
	assert.Equal(t, "muc-002", started.ParkingID)
	require.NotNil(t, started.SavedMinutes)
	assert.Equal(t, 5, *started.SavedMinutes)
	assert.Contains(t, started.NavigationURL, "https://www.google.com/maps/dir/?")
	assert.Contains(t, started.NavigationURL, "travelmode=driving")
	assert.Contains(t, started.NavigationURL, "origin=48.150000%2C11.540000")

	recorded, err := srv.trips.ListByUser(context.Background(), "usr_1", 10)
	require.NoError(t, err)
	require.Len(t, recorded, 1)
	assert.Equal(t, started.ID, recorded[0].ID)

	w = srv.do(t, http.MethodPost, base+"/trips", "", token)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = srv.do(t, http.MethodDelete, base+"/selection", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	cleared := decodeSession(t, w)
	assert.Equal(t, "IDLE", cleared.State)
	assert.Nil(t, cleared.Selection)

	w = srv.do(t, http.MethodDelete, base, "", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = srv.do(t, http.MethodGet, base, "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Zero(t, srv.store.Len())
}

func TestSessionErrors(t *testing.T) {
	srv := newTestServer(t, nil)

	w := srv.do(t, http.MethodPost, "/v1/sessions", "", "")
	require.Equal(t, http.StatusCreated, w.Code)
	base := "/v1/sessions/" + decodeSession(t, w).ID

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantField  string
		wantCode   string
	}{
		{name: "unknown session", method: http.MethodGet, path: "/v1/sessions/nope", wantStatus: http.StatusNotFound},
		{name: "missing destination", method: http.MethodPost, path: base + "/search", body: `{}`, wantStatus: http.StatusBadRequest, wantField: "destination", wantCode: "REQUIRED"},
		{name: "latitude out of range", method: http.MethodPost, path: base + "/search", body: `{"destination":{"lat":95,"lon":11}}`, wantStatus: http.StatusBadRequest, wantField: "destination.lat", wantCode: "LTE"},
		{name: "radius too large", method: http.MethodPost, path: base + "/search", body: `{"destination":{"lat":48.1,"lon":11.5},"radiusMeters":20000}`, wantStatus: http.StatusBadRequest, wantField: "radiusMeters", wantCode: "LTE"},
		{name: "unknown field", method: http.MethodPost, path: base + "/search", body: `{"dest":{}}`, wantStatus: http.StatusBadRequest},
		{name: "bad wait", method: http.MethodGet, path: base + "?wait=soon", wantStatus: http.StatusBadRequest, wantField: "wait", wantCode: "DURATION"},
		{name: "select without endpoints", method: http.MethodPut, path: base + "/selection", body: `{"candidateId":"muc-001"}`, wantStatus: http.StatusConflict},
		{name: "empty candidate id", method: http.MethodPut, path: base + "/selection", body: `{"candidateId":""}`, wantStatus: http.StatusBadRequest, wantField: "candidateId", wantCode: "REQUIRED"},
		{name: "invalid origin", method: http.MethodPut, path: base + "/origin", body: `{"lat":48.1,"lon":200}`, wantStatus: http.StatusBadRequest, wantField: "lon", wantCode: "LTE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := srv.do(t, tt.method, tt.path, tt.body, "")
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())

			problem := decodeProblem(t, w)
			assert.Equal(t, tt.wantStatus, problem.Status)
			assert.NotEmpty(t, problem.TraceID)
			if tt.wantField != "" {
				require.Len(t, problem.Errors, 1)
				assert.Equal(t, tt.wantField, problem.Errors[0].Field)
				assert.Equal(t, tt.wantCode, problem.Errors[0].Code)
			}
		})
	}
}

func TestCreateSession_LocateWithoutProvider(t *testing.T) {
	srv := newTestServer(t, nil)

	w := srv.do(t, http.MethodPost, "/v1/sessions", `{"locate":true}`, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Zero(t, srv.store.Len(), "failed sessions are not kept")
}

func TestRequireJSON_RejectsForms(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", bytes.NewBufferString("origin=here"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	srv.handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestOps(t *testing.T) {
	failing := map[string]handler.CheckFunc{
		"candidate-store": func(context.Context) error { return nil },
		"database":        func(context.Context) error { return errors.New("connection refused") },
	}
	srv := newTestServer(t, failing)

	w := srv.do(t, http.MethodGet, "/v1/ops/health", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var health models.Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.Equal(t, "test", health.Details["version"])

	w = srv.do(t, http.MethodGet, "/v1/ops/ready", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = srv.do(t, http.MethodGet, "/v1/ops/status", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = srv.do(t, http.MethodGet, "/v1/ops/status", "", srv.token(t, "usr_ops"))
	require.Equal(t, http.StatusOK, w.Code)
	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, models.HealthStatusFail, status.Status)
	require.Len(t, status.Subsystems, 2)
	assert.Equal(t, "candidate-store", status.Subsystems[0].Name)
	assert.Equal(t, models.HealthStatusFail, status.Subsystems[1].Status)
}
