package server

import (
	"net/http"

	"github.com/plantwatch/plantwatch/pkg/log"
	"github.com/plantwatch/plantwatch/pkg/stringhealth"
	"github.com/plantwatch/plantwatch/pkg/types"
)

func (s *Server) handleInverterPerformance(w http.ResponseWriter, r *http.Request) {
	id, ok := plantID(w, r)
	if !ok {
		return
	}
	ctx := log.WithPlant(r.Context(), id)

	inverters, err := fetch("inverter_data", func() ([]types.InverterReading, error) {
		return s.telemetry.InverterData(ctx, id)
	})
	if err != nil {
		writeTelemetryError(ctx, w, "inverter data", err)
		return
	}
	writeJSON(w, cacheCurrent, stringhealth.Performance(inverters))
}
