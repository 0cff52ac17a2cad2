package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/plantwatch/plantwatch/pkg/plants"
	"github.com/plantwatch/plantwatch/pkg/storage/storagemock"
	"github.com/plantwatch/plantwatch/pkg/telemetry"
	"github.com/plantwatch/plantwatch/pkg/telemetry/telemetrymock"
	"github.com/plantwatch/plantwatch/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// testNow is 2024-03-15 12:00 in the civil zone.
var testNow = time.Date(2024, 3, 15, 11, 0, 0, 0, time.UTC)

type testServer struct {
	*Server
	src *telemetrymock.MockSource
	db  *storagemock.MockDatabase
}

func newTestServer(t *testing.T, registryYAML string) *testServer {
	t.Helper()
	reg, err := plants.Parse([]byte(registryYAML))
	require.NoError(t, err)
	src := &telemetrymock.MockSource{}
	db := &storagemock.MockDatabase{}
	t.Cleanup(func() {
		src.AssertExpectations(t)
		db.AssertExpectations(t)
	})
	return &testServer{
		Server: &Server{
			telemetry:  src,
			storage:    db,
			registry:   reg,
			now:        func() time.Time { return testNow },
			listenAddr: ":8080",
			serverName: "plantwatch-test",
		},
		src: src,
		db:  db,
	}
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	ts.setupHandler().ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(w.Body).Decode(v))
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	decodeJSON(t, w, &body)
	return body.Error
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, "")
	w := ts.do(httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())

	t.Run("Headers", func(t *testing.T) {
		assert.Equal(t, "plantwatch-test", w.Header().Get("Server"))
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
		assert.Contains(t, w.Header().Get("Strict-Transport-Security"), "max-age=63072000")
		assert.Contains(t, w.Header().Get("Content-Security-Policy"), "default-src 'none'")
	})
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, "")
	w := ts.do(httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestListPlants(t *testing.T) {
	t.Run("Merged With Registry", func(t *testing.T) {
		ts := newTestServer(t, "plants:\n  - id: 1\n    name: Renamed\n  - id: 3\n    hidden: true\n")
		ts.src.On("Plants", mock.Anything).Return([]types.Plant{
			{ID: 1, Name: "One"},
			{ID: 2, Name: "Two"},
			{ID: 3, Name: "Three"},
		}, nil)

		w := ts.do(httptest.NewRequest("GET", "/api/plants", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "private, max-age=60", w.Header().Get("Cache-Control"))

		var got []types.Plant
		decodeJSON(t, w, &got)
		assert.Equal(t, []types.Plant{{ID: 1, Name: "Renamed"}, {ID: 2, Name: "Two"}}, got)
	})

	t.Run("Source Failure", func(t *testing.T) {
		ts := newTestServer(t, "")
		ts.src.On("Plants", mock.Anything).Return(nil, errors.New("connection refused"))

		w := ts.do(httptest.NewRequest("GET", "/api/plants", nil))
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, "failed to get plants", errorMessage(t, w))
	})

	t.Run("Wrong Method", func(t *testing.T) {
		ts := newTestServer(t, "")
		w := ts.do(httptest.NewRequest("POST", "/api/plants", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}

func TestPlantIDValidation(t *testing.T) {
	ts := newTestServer(t, "")
	for _, path := range []string{
		"/api/plant/abc/production",
		"/api/plant/0/daily-yield",
		"/api/plant/-4/strings",
	} {
		t.Run(path, func(t *testing.T) {
			w := ts.do(httptest.NewRequest("GET", path, nil))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "invalid plant id", errorMessage(t, w))
		})
	}
}

func TestWriteTelemetryError(t *testing.T) {
	w := httptest.NewRecorder()
	writeTelemetryError(t.Context(), w, "inverter data", telemetry.ErrPlantNotFound)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "plant not found", errorMessage(t, w))
}
