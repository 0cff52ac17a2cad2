package server

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/plantwatch/plantwatch/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type dailyYieldBody struct {
	StartDate    string             `json:"startDate"`
	EndDate      string             `json:"endDate"`
	Label        string             `json:"label"`
	CanGoForward bool               `json:"canGoForward"`
	Days         []types.DailyYield `json:"days"`
}

func TestDailyYield(t *testing.T) {
	t.Run("Previous Month", func(t *testing.T) {
		ts := newTestServer(t, "")
		ts.src.On("DailyYieldRange", mock.Anything, 7, "2024-02-01", "2024-02-29").Return([]types.DailyYield{
			{Date: "2024-02-10", Yield: 41.5},
		}, nil)

		w := ts.do(httptest.NewRequest("GET", "/api/plant/7/daily-yield?offset=-1", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "private, max-age=86400", w.Header().Get("Cache-Control"))

		var body dailyYieldBody
		decodeJSON(t, w, &body)
		assert.Equal(t, "2024-02-01", body.StartDate)
		assert.Equal(t, "2024-02-29", body.EndDate)
		assert.Equal(t, "2024 February", body.Label)
		assert.True(t, body.CanGoForward)
		require.Len(t, body.Days, 29)
		assert.Equal(t, types.DailyYield{Date: "2024-02-10", Yield: 41.5}, body.Days[9])
		assert.Equal(t, types.DailyYield{Date: "2024-02-11", Yield: 0}, body.Days[10])
	})

	t.Run("Current Month", func(t *testing.T) {
		ts := newTestServer(t, "")
		ts.src.On("DailyYieldRange", mock.Anything, 7, "2024-03-01", "2024-03-31").Return(nil, nil)

		w := ts.do(httptest.NewRequest("GET", "/api/plant/7/daily-yield", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "private, max-age=60", w.Header().Get("Cache-Control"))

		var body dailyYieldBody
		decodeJSON(t, w, &body)
		assert.False(t, body.CanGoForward)
		assert.Len(t, body.Days, 31)
	})

	t.Run("Invalid Offset", func(t *testing.T) {
		ts := newTestServer(t, "")
		for _, offset := range []string{"1", "abc"} {
			w := ts.do(httptest.NewRequest("GET", "/api/plant/7/daily-yield?offset="+offset, nil))
			assert.Equal(t, http.StatusBadRequest, w.Code, offset)
		}
	})

	t.Run("Source Failure", func(t *testing.T) {
		ts := newTestServer(t, "")
		ts.src.On("DailyYieldRange", mock.Anything, 7, mock.Anything, mock.Anything).Return(nil, errors.New("boom"))

		w := ts.do(httptest.NewRequest("GET", "/api/plant/7/daily-yield", nil))
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, "failed to get daily yield", errorMessage(t, w))
	})
}

func TestDailyYieldExport(t *testing.T) {
	t.Run("XLSX", func(t *testing.T) {
		ts := newTestServer(t, "plants:\n  - id: 7\n    name: Kecskemét PV\n")
		ts.src.On("DailyYieldRange", mock.Anything, 7, "2024-02-01", "2024-02-29").Return([]types.DailyYield{
			{Date: "2024-02-10", Yield: 41.5},
		}, nil)
		ts.src.On("Plants", mock.Anything).Return([]types.Plant{{ID: 7, Name: "Plant 7"}}, nil)

		w := ts.do(httptest.NewRequest("GET", "/api/plant/7/daily-yield/export?offset=-1", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", w.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="plant-7-2024-02.xlsx"`, w.Header().Get("Content-Disposition"))

		f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
		require.NoError(t, err)
		defer f.Close()
		name, err := f.GetCellValue("summary", "B3")
		require.NoError(t, err)
		assert.Equal(t, "Kecskemét PV", name)
	})

	t.Run("PDF Without Plant List", func(t *testing.T) {
		ts := newTestServer(t, "")
		ts.src.On("DailyYieldRange", mock.Anything, 7, "2024-03-01", "2024-03-31").Return(nil, nil)
		ts.src.On("Plants", mock.Anything).Return(nil, errors.New("boom"))

		w := ts.do(httptest.NewRequest("GET", "/api/plant/7/daily-yield/export?format=pdf", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))
	})

	t.Run("Invalid Format", func(t *testing.T) {
		ts := newTestServer(t, "")
		w := ts.do(httptest.NewRequest("GET", "/api/plant/7/daily-yield/export?format=csv", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
