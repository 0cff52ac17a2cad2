package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/plantwatch/plantwatch/pkg/log"
	"github.com/plantwatch/plantwatch/pkg/types"
)

func (s *Server) handleListPlants(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	list, err := fetch("plants", func() ([]types.Plant, error) {
		return s.telemetry.Plants(ctx)
	})
	if err != nil {
		writeTelemetryError(ctx, w, "plants", err)
		return
	}
	writeJSON(w, cacheCurrent, s.registry.Merge(list))
}

// plant looks up a plant's display record. The ID alone is returned when the
// source cannot be reached or does not list it.
func (s *Server) plant(ctx context.Context, id int) types.Plant {
	list, err := fetch("plants", func() ([]types.Plant, error) {
		return s.telemetry.Plants(ctx)
	})
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to get plants for name lookup", slog.Any("error", err))
		return types.Plant{ID: id}
	}
	for _, p := range s.registry.Merge(list) {
		if p.ID == id {
			return p
		}
	}
	return types.Plant{ID: id}
}
