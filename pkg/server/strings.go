package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/plantwatch/plantwatch/pkg/log"
	"github.com/plantwatch/plantwatch/pkg/metrics"
	"github.com/plantwatch/plantwatch/pkg/stringhealth"
	"github.com/plantwatch/plantwatch/pkg/types"
)

type stringsResponse struct {
	Threshold    types.Threshold            `json:"threshold"`
	CalculatedAt *time.Time                 `json:"calculatedAt,omitempty"`
	Inverters    []types.ClassifiedInverter `json:"inverters"`
}

// baselines returns the stored baseline set for the plant, or the source's
// weekly averages when nothing has been calculated yet. Failures degrade to
// an empty set.
func (s *Server) baselines(r *http.Request, id int) types.BaselineSet {
	ctx := r.Context()
	set, err := s.storage.GetBaselines(ctx, id)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to get stored baselines", slog.Any("error", err))
		set = types.BaselineSet{PlantID: id}
	}
	if len(set.Baselines) > 0 || len(set.Inverters) > 0 || len(set.Hourly) > 0 {
		return set
	}
	weekly, err := fetch("weekly_avg", func() ([]types.StringBaseline, error) {
		return s.telemetry.WeeklyAverages(ctx, id)
	})
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to get weekly averages", slog.Any("error", err))
		return set
	}
	set.Baselines = weekly
	return set
}

func (s *Server) handleStrings(w http.ResponseWriter, r *http.Request) {
	id, ok := plantID(w, r)
	if !ok {
		return
	}
	r = r.WithContext(log.WithPlant(r.Context(), id))
	ctx := r.Context()

	threshold := s.registry.Threshold(id)
	if q := r.URL.Query(); q.Has("threshold") {
		th, err := types.ParseThreshold(q.Get("threshold"))
		if err != nil {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		threshold = th
	}

	inverters, err := fetch("inverter_data", func() ([]types.InverterReading, error) {
		return s.telemetry.InverterData(ctx, id)
	})
	if err != nil {
		writeTelemetryError(ctx, w, "inverter data", err)
		return
	}

	set := s.baselines(r, id)
	classified := stringhealth.ClassifyInverters(threshold, inverters, set)
	metrics.ObserveClassified(classified)

	resp := stringsResponse{
		Threshold: threshold,
		Inverters: classified,
	}
	if !set.CalculatedAt.IsZero() {
		resp.CalculatedAt = &set.CalculatedAt
	}
	writeJSON(w, cacheCurrent, resp)
}
