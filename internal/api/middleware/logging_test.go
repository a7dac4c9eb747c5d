package middleware_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkest/parkest/internal/api/middleware"
)

func serveLogged(t *testing.T, status int, path string) map[string]interface{} {
	t.Helper()

	var buf bytes.Buffer
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(zerolog.New(&buf)))
	r.Get("/v1/sessions/{sessionId}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte("response body"))
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, http.NoBody))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogger_LogsRequest(t *testing.T) {
	entry := serveLogged(t, http.StatusOK, "/v1/sessions/abc")

	assert.Equal(t, "request completed", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/v1/sessions/abc", entry["path"])
	assert.Equal(t, "/v1/sessions/{sessionId}", entry["route"])
	assert.Equal(t, "abc", entry["session_id"])
	assert.Equal(t, float64(200), entry["status"])
	assert.Equal(t, float64(13), entry["bytes"])
	assert.NotEmpty(t, entry["request_id"])
}

func TestLogger_LevelByStatus(t *testing.T) {
	assert.Equal(t, "warn", serveLogged(t, http.StatusNotFound, "/v1/sessions/x")["level"])
	assert.Equal(t, "error", serveLogged(t, http.StatusBadGateway, "/v1/sessions/x")["level"])
}
