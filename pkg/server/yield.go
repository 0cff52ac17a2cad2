package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/plantwatch/plantwatch/pkg/export"
	"github.com/plantwatch/plantwatch/pkg/log"
	"github.com/plantwatch/plantwatch/pkg/metrics"
	"github.com/plantwatch/plantwatch/pkg/series"
	"github.com/plantwatch/plantwatch/pkg/types"
)

type dailyYieldResponse struct {
	series.MonthSpan
	CanGoForward bool               `json:"canGoForward"`
	Days         []types.DailyYield `json:"days"`
}

// parseOffset reads the month offset. Only the current month (0) and past
// months (negative) are valid.
func parseOffset(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("offset")
	if raw == "" {
		return 0, nil
	}
	offset, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid offset: %q", raw)
	}
	if offset > 0 {
		return 0, fmt.Errorf("offset must not be in the future")
	}
	return offset, nil
}

func monthCache(offset int) string {
	if offset < 0 {
		return cachePast
	}
	return cacheCurrent
}

// monthDays fetches and fills the month span offset months from now. It
// writes the error response itself and returns false on failure.
func (s *Server) monthDays(w http.ResponseWriter, r *http.Request, id, offset int) (series.MonthSpan, []types.DailyYield, bool) {
	ctx := r.Context()
	span := series.MonthRange(s.now(), offset)
	sparse, err := fetch("daily_yield", func() ([]types.DailyYield, error) {
		return s.telemetry.DailyYieldRange(ctx, id, span.StartDate, span.EndDate)
	})
	if err != nil {
		writeTelemetryError(ctx, w, "daily yield", err)
		return span, nil, false
	}
	days, err := series.FillMonth(span.StartDate, span.EndDate, sparse)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to fill month", slog.String("start", span.StartDate), slog.Any("error", err))
		writeJSONError(w, "failed to build daily yield", http.StatusInternalServerError)
		return span, nil, false
	}
	return span, days, true
}

func (s *Server) handleDailyYield(w http.ResponseWriter, r *http.Request) {
	id, ok := plantID(w, r)
	if !ok {
		return
	}
	r = r.WithContext(log.WithPlant(r.Context(), id))

	offset, err := parseOffset(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	span, days, ok := s.monthDays(w, r, id, offset)
	if !ok {
		return
	}
	writeJSON(w, monthCache(offset), dailyYieldResponse{
		MonthSpan:    span,
		CanGoForward: series.CanNavigateForward(s.now(), span),
		Days:         days,
	})
}

func (s *Server) handleDailyYieldExport(w http.ResponseWriter, r *http.Request) {
	id, ok := plantID(w, r)
	if !ok {
		return
	}
	r = r.WithContext(log.WithPlant(r.Context(), id))
	ctx := r.Context()

	offset, err := parseOffset(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = export.FormatXLSX
	}
	var render func(types.Plant, series.MonthSpan, []types.DailyYield) ([]byte, error)
	switch format {
	case export.FormatXLSX:
		render = export.MonthXLSX
	case export.FormatPDF:
		render = export.MonthPDF
	default:
		writeJSONError(w, "invalid format, expected xlsx or pdf", http.StatusBadRequest)
		return
	}

	span, days, ok := s.monthDays(w, r, id, offset)
	if !ok {
		return
	}
	plant := s.plant(ctx, id)
	b, err := render(plant, span, days)
	metrics.IncExport(format, err)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to render export", slog.String("format", format), slog.Any("error", err))
		writeJSONError(w, "failed to render export", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", export.ContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(plant, span, format)))
	w.Header().Set("Cache-Control", monthCache(offset))
	if _, err := w.Write(b); err != nil {
		panic(http.ErrAbortHandler)
	}
}
