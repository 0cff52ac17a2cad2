package server

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/plantwatch/plantwatch/pkg/storage"
	"github.com/plantwatch/plantwatch/pkg/telemetry"
	"github.com/plantwatch/plantwatch/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testProduction = types.ProductionData{
	Production: []types.RawSample{
		{Timestamp: "2024-03-15T08:00:00", ActivePower: 50},
		{Timestamp: "not a time", ActivePower: 1},
	},
	Consumption: []types.RawSample{
		{Timestamp: "2024-03-15T08:00:10Z", ActivePower: 10},
	},
}

type productionBody struct {
	Date           string               `json:"date"`
	Points         []types.AlignedPoint `json:"points"`
	LastUpdated    string               `json:"lastUpdated"`
	DroppedSamples int                  `json:"droppedSamples"`
	DayStart       int64                `json:"dayStart"`
	DayEnd         int64                `json:"dayEnd"`
	Ticks          []int64              `json:"ticks"`
	AxisMax        float64              `json:"axisMax"`
	Stale          bool                 `json:"stale"`
}

func TestProduction(t *testing.T) {
	t.Run("Fresh", func(t *testing.T) {
		ts := newTestServer(t, "")
		ts.src.On("ProductionData", mock.Anything, 7, "2024-03-15").Return(testProduction, nil)
		ts.db.On("PutSnapshot", mock.Anything, types.Snapshot{
			PlantID:   7,
			Date:      "2024-03-15",
			FetchedAt: testNow,
			Data:      testProduction,
		}).Return(nil)

		w := ts.do(httptest.NewRequest("GET", "/api/plant/7/production", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "private, max-age=60", w.Header().Get("Cache-Control"))

		var body productionBody
		decodeJSON(t, w, &body)
		assert.Equal(t, "2024-03-15", body.Date)
		assert.False(t, body.Stale)
		assert.Equal(t, 1, body.DroppedSamples)
		assert.Equal(t, "2024-03-15 09:00", body.LastUpdated)
		assert.Equal(t, int64(1710457200000), body.DayStart)
		assert.Equal(t, int64(1710457200000+24*3600*1000-1), body.DayEnd)
		assert.Len(t, body.Ticks, 25)
		assert.Equal(t, float64(100), body.AxisMax)

		require.Len(t, body.Points, 1)
		p := body.Points[0]
		assert.Equal(t, int64(1710489600000), p.TimestampRaw)
		require.NotNil(t, p.ActivePower)
		assert.Equal(t, 50.0, *p.ActivePower)
		require.NotNil(t, p.Consumption)
		assert.Equal(t, 60.0, *p.Consumption)
		require.NotNil(t, p.ConsumptionNeg)
		assert.Equal(t, -60.0, *p.ConsumptionNeg)
	})

	t.Run("Past Day Cached", func(t *testing.T) {
		ts := newTestServer(t, "")
		ts.src.On("ProductionData", mock.Anything, 7, "2024-03-01").Return(types.ProductionData{}, nil)
		ts.db.On("PutSnapshot", mock.Anything, mock.Anything).Return(errors.New("firestore down"))

		w := ts.do(httptest.NewRequest("GET", "/api/plant/7/production?date=2024-03-01", nil))
		require.Equal(t, http.StatusOK, w.Code, "a failed snapshot write does not fail the request")
		assert.Equal(t, "private, max-age=86400", w.Header().Get("Cache-Control"))

		var body productionBody
		decodeJSON(t, w, &body)
		assert.NotNil(t, body.Points)
		assert.Empty(t, body.Points)
		assert.Equal(t, "", body.LastUpdated)
	})

	t.Run("Snapshot Fallback", func(t *testing.T) {
		ts := newTestServer(t, "")
		ts.src.On("ProductionData", mock.Anything, 7, "2024-03-14").Return(types.ProductionData{}, errors.New("timeout"))
		ts.db.On("GetSnapshot", mock.Anything, 7, "2024-03-14").Return(types.Snapshot{
			PlantID: 7,
			Date:    "2024-03-14",
			Data:    testProduction,
		}, nil)

		w := ts.do(httptest.NewRequest("GET", "/api/plant/7/production?date=2024-03-14", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "private, max-age=60", w.Header().Get("Cache-Control"), "stale copies are not cached long")

		var body productionBody
		decodeJSON(t, w, &body)
		assert.True(t, body.Stale)
		assert.Equal(t, "2024-03-14", body.Date)
		// the snapshot's samples fall on another day but are still reconciled
		assert.Len(t, body.Points, 1)
		ts.db.AssertNotCalled(t, "PutSnapshot", mock.Anything, mock.Anything)
	})

	t.Run("No Snapshot", func(t *testing.T) {
		ts := newTestServer(t, "")
		ts.src.On("ProductionData", mock.Anything, 7, "2024-03-15").Return(types.ProductionData{}, errors.New("timeout"))
		ts.db.On("GetSnapshot", mock.Anything, 7, "2024-03-15").Return(types.Snapshot{}, fmt.Errorf("plant 7: %w", storage.ErrSnapshotNotFound))

		w := ts.do(httptest.NewRequest("GET", "/api/plant/7/production?date=2024-03-15", nil))
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, "failed to get production data", errorMessage(t, w))
	})

	t.Run("Unknown Plant", func(t *testing.T) {
		ts := newTestServer(t, "")
		ts.src.On("ProductionData", mock.Anything, 9, "2024-03-15").Return(types.ProductionData{}, fmt.Errorf("plant 9: %w", telemetry.ErrPlantNotFound))

		w := ts.do(httptest.NewRequest("GET", "/api/plant/9/production", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Invalid Date", func(t *testing.T) {
		ts := newTestServer(t, "")
		w := ts.do(httptest.NewRequest("GET", "/api/plant/7/production?date=15.03.2024", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, errorMessage(t, w), "invalid date")
	})
}
