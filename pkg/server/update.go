package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/plantwatch/plantwatch/pkg/log"
	"github.com/plantwatch/plantwatch/pkg/metrics"
	"github.com/plantwatch/plantwatch/pkg/series"
	"github.com/plantwatch/plantwatch/pkg/stringhealth"
	"github.com/plantwatch/plantwatch/pkg/types"
)

type updateResult struct {
	PlantID          int    `json:"plantID"`
	Strings          int    `json:"strings"`
	SnapshotsDeleted int    `json:"snapshotsDeleted"`
	Error            string `json:"error,omitempty"`
}

// authorized checks the bearer token guarding write endpoints. Everything is
// allowed when no token is configured.
func (s *Server) authorized(r *http.Request) bool {
	if s.updateToken == "" {
		return true
	}
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.updateToken)) == 1
}

// handleUpdate recalculates every plant's string baselines and prunes old
// snapshots. It is called periodically by an external scheduler.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !s.authorized(r) {
		log.Ctx(ctx).WarnContext(ctx, "unauthorized update request")
		writeJSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	list, err := fetch("plants", func() ([]types.Plant, error) {
		return s.telemetry.Plants(ctx)
	})
	if err != nil {
		writeTelemetryError(ctx, w, "plants", err)
		return
	}

	now := s.now()
	since := now.Add(-stringhealth.BaselineWindow)
	var cutoff string
	if s.snapshotRetention > 0 {
		cutoff = series.FormatDate(now.Add(-s.snapshotRetention))
	}

	results := make([]updateResult, 0, len(list))
	var failed bool
	for _, p := range list {
		pctx := log.WithPlant(ctx, p.ID)
		res := updateResult{PlantID: p.ID}

		samples, err := fetch("string_samples", func() ([]types.StringSample, error) {
			return s.telemetry.StringSamples(pctx, p.ID, since)
		})
		if err == nil {
			set := stringhealth.ComputeSet(p.ID, now, samples)
			res.Strings = len(set.Baselines)
			err = s.storage.PutBaselines(pctx, set)
		}
		metrics.IncBaselineRun(err)
		if err != nil {
			log.Ctx(pctx).ErrorContext(pctx, "failed to update baselines", slog.Any("error", err))
			res.Error = err.Error()
			failed = true
		}

		if cutoff != "" {
			n, err := s.storage.DeleteSnapshotsBefore(pctx, p.ID, cutoff)
			if err != nil {
				log.Ctx(pctx).WarnContext(pctx, "failed to prune snapshots", slog.String("before", cutoff), slog.Any("error", err))
			}
			res.SnapshotsDeleted = n
		}

		log.Ctx(pctx).DebugContext(pctx, "update: plant done",
			slog.Int("strings", res.Strings),
			slog.Int("snapshotsDeleted", res.SnapshotsDeleted),
		)
		results = append(results, res)
	}

	// a failed plant makes the scheduler retry the whole run
	if failed {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
	}
	writeJSON(w, "", struct {
		Plants []updateResult `json:"plants"`
	}{Plants: results})
}
