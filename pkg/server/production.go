package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/plantwatch/plantwatch/pkg/log"
	"github.com/plantwatch/plantwatch/pkg/metrics"
	"github.com/plantwatch/plantwatch/pkg/series"
	"github.com/plantwatch/plantwatch/pkg/storage"
	"github.com/plantwatch/plantwatch/pkg/telemetry"
	"github.com/plantwatch/plantwatch/pkg/types"
)

type productionResponse struct {
	Date           string               `json:"date"`
	Points         []types.AlignedPoint `json:"points"`
	LastUpdated    string               `json:"lastUpdated"`
	DroppedSamples int                  `json:"droppedSamples"`
	series.Window
	Stale bool `json:"stale"`
}

func (s *Server) handleProduction(w http.ResponseWriter, r *http.Request) {
	id, ok := plantID(w, r)
	if !ok {
		return
	}
	ctx := log.WithPlant(r.Context(), id)

	now := s.now()
	today := series.FormatDate(now)
	date := r.URL.Query().Get("date")
	if date == "" {
		date = today
	}
	if _, err := series.ParseDate(date); err != nil {
		writeJSONError(w, "invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	var stale bool
	data, err := fetch("production", func() (types.ProductionData, error) {
		return s.telemetry.ProductionData(ctx, id, date)
	})
	if errors.Is(err, telemetry.ErrPlantNotFound) {
		writeJSONError(w, "plant not found", http.StatusNotFound)
		return
	} else if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to get production data, trying snapshot", slog.String("date", date), slog.Any("error", err))
		snap, serr := s.storage.GetSnapshot(ctx, id, date)
		if serr != nil {
			if !errors.Is(serr, storage.ErrSnapshotNotFound) {
				log.Ctx(ctx).ErrorContext(ctx, "failed to get snapshot", slog.String("date", date), slog.Any("error", serr))
			}
			writeJSONError(w, "failed to get production data", http.StatusBadGateway)
			return
		}
		metrics.IncSnapshotFallback()
		data = snap.Data
		stale = true
	}

	day, err := series.ReconcileDay(date, data)
	if err != nil {
		// the date was validated above
		log.Ctx(ctx).ErrorContext(ctx, "failed to reconcile day", slog.String("date", date), slog.Any("error", err))
		writeJSONError(w, "failed to reconcile production data", http.StatusInternalServerError)
		return
	}
	metrics.ObserveReconcile(len(day.Points), day.Stats)
	if dropped := day.Stats.Dropped(); dropped > 0 {
		log.Ctx(ctx).WarnContext(ctx, "dropped malformed samples",
			slog.String("date", date),
			slog.Int("production", day.Stats.DroppedProduction),
			slog.Int("consumption", day.Stats.DroppedConsumption),
		)
	}

	if !stale {
		err := s.storage.PutSnapshot(ctx, types.Snapshot{
			PlantID:   id,
			Date:      date,
			FetchedAt: now.UTC(),
			Data:      data,
		})
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to store snapshot", slog.String("date", date), slog.Any("error", err))
		}
	}

	points := day.Points
	if points == nil {
		points = []types.AlignedPoint{}
	}

	// past days no longer change, unless we are serving an old copy
	cache := cacheCurrent
	if date < today && !stale {
		cache = cachePast
	}
	writeJSON(w, cache, productionResponse{
		Date:           day.Date,
		Points:         points,
		LastUpdated:    day.LastUpdated,
		DroppedSamples: day.Stats.Dropped(),
		Window:         day.Window,
		Stale:          stale,
	})
}
