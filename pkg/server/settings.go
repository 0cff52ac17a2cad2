package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/plantwatch/plantwatch/pkg/log"
	"github.com/plantwatch/plantwatch/pkg/types"
)

// maxSettingsBody bounds the PUT body, which carries a single number.
const maxSettingsBody = 1 << 12

// plantSettings returns the stored settings, or the registry's defaults when
// nothing at the current version has been saved yet.
func (s *Server) plantSettings(ctx context.Context, id int) (types.PlantSettings, error) {
	settings, version, err := s.storage.GetSettings(ctx, id)
	if err != nil {
		return types.PlantSettings{}, err
	}
	if version < types.CurrentSettingsVersion {
		log.Ctx(ctx).DebugContext(ctx, "using configured settings", slog.Int("storedVersion", version))
		return s.registry.Settings(id), nil
	}
	return settings, nil
}

func (s *Server) handleGetPowerAdjustment(w http.ResponseWriter, r *http.Request) {
	id, ok := plantID(w, r)
	if !ok {
		return
	}
	ctx := log.WithPlant(r.Context(), id)

	settings, err := s.plantSettings(ctx, id)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get settings", slog.Any("error", err))
		writeJSONError(w, "failed to get settings", http.StatusInternalServerError)
		return
	}
	writeJSON(w, "no-store", settings)
}

// handleUpdatePowerAdjustment changes the price threshold of a plant. Only
// plants with price control enabled accept a new threshold.
func (s *Server) handleUpdatePowerAdjustment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !s.authorized(r) {
		log.Ctx(ctx).WarnContext(ctx, "unauthorized settings update")
		writeJSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	id, ok := plantID(w, r)
	if !ok {
		return
	}
	ctx = log.WithPlant(ctx, id)

	var req struct {
		PriceThreshold *float64 `json:"price_threshold"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSettingsBody)).Decode(&req); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to decode settings", slog.Any("error", err))
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.PriceThreshold == nil {
		writeJSONError(w, "price_threshold is required", http.StatusBadRequest)
		return
	}

	settings, err := s.plantSettings(ctx, id)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get settings", slog.Any("error", err))
		writeJSONError(w, "failed to get settings", http.StatusInternalServerError)
		return
	}
	if !settings.PriceControlEnabled {
		writeJSONError(w, "price control is disabled", http.StatusConflict)
		return
	}

	settings.PriceThreshold = *req.PriceThreshold
	if err := settings.Validate(); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.storage.SetSettings(ctx, id, settings, types.CurrentSettingsVersion); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to save settings", slog.Any("error", err))
		writeJSONError(w, "failed to save settings", http.StatusInternalServerError)
		return
	}
	log.Ctx(ctx).InfoContext(ctx, "updated price threshold", slog.Float64("priceThreshold", settings.PriceThreshold))

	writeJSON(w, "", struct {
		Status   string  `json:"status"`
		NewPrice float64 `json:"new_price"`
	}{Status: "ok", NewPrice: settings.PriceThreshold})
}
