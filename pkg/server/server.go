package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/levenlabs/go-lflag"
	"github.com/plantwatch/plantwatch/pkg/log"
	"github.com/plantwatch/plantwatch/pkg/metrics"
	"github.com/plantwatch/plantwatch/pkg/plants"
	"github.com/plantwatch/plantwatch/pkg/storage"
	"github.com/plantwatch/plantwatch/pkg/telemetry"
)

const (
	cachePast    = "private, max-age=86400"
	cacheCurrent = "private, max-age=60"
)

// Server handles the HTTP API. It reads plant telemetry from the source,
// keeps snapshots and baselines in storage and applies the local plant
// registry on top.
type Server struct {
	telemetry telemetry.Source
	storage   storage.Database
	registry  *plants.Registry
	now       func() time.Time

	listenAddr        string
	updateToken       string
	snapshotRetention time.Duration
	serverName        string
	httpServer        *http.Server
}

// Configured initializes the Server with dependencies.
// It uses lflag to register command-line flags for configuration.
func Configured(src telemetry.Source, db storage.Database, reg *plants.Registry) *Server {
	srv := &Server{
		telemetry:  src,
		storage:    db,
		registry:   reg,
		now:        time.Now,
		serverName: "plantwatch",
	}
	revision := os.Getenv("K_REVISION")
	if revision != "" {
		srv.serverName = revision
	}

	// get the port from PORT when running in cloud run
	port := os.Getenv("PORT")
	if port == "" {
		// otherwise default to 8080
		port = "8080"
	}

	listenAddr := lflag.String("http-listen", ":"+port, "HTTP server listen address")
	updateToken := lflag.String("update-token", "", "Bearer token required by /api/update and settings writes (empty disables the check)")
	snapshotRetention := lflag.Duration("snapshot-retention", 30*24*time.Hour, "How long stored production snapshots are kept. 0 keeps them forever.")

	lflag.Do(func() {
		srv.listenAddr = *listenAddr
		srv.updateToken = *updateToken
		if *snapshotRetention < 0 {
			panic("snapshot-retention must not be negative")
		}
		srv.snapshotRetention = *snapshotRetention
	})

	return srv
}

func (s *Server) setupHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/plants", s.handleListPlants)
	mux.HandleFunc("GET /api/plant/{id}/production", s.handleProduction)
	mux.HandleFunc("GET /api/plant/{id}/daily-yield", s.handleDailyYield)
	mux.HandleFunc("GET /api/plant/{id}/daily-yield/export", s.handleDailyYieldExport)
	mux.HandleFunc("GET /api/plant/{id}/strings", s.handleStrings)
	mux.HandleFunc("GET /api/plant/{id}/inverter-performance", s.handleInverterPerformance)
	mux.HandleFunc("GET /api/plant/{id}/power-adjustment", s.handleGetPowerAdjustment)
	mux.HandleFunc("PUT /api/plant/{id}/power-adjustment", s.handleUpdatePowerAdjustment)
	mux.HandleFunc("POST /api/update", s.handleUpdate)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("GET /metrics", metrics.Handler())
	return s.revisionMiddleware(gziphandler.GzipHandler(s.securityHeadersMiddleware(s.metricsMiddleware(mux))))
}

// Run starts the HTTP server and blocks until the context is canceled or an error occurs.
// It also handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.setupHandler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	// use a channel to capturing server errors
	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Ctx(ctx).InfoContext(ctx, "starting server", slog.String("addr", s.listenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		// Context canceled, shut down gracefully
		log.Ctx(ctx).InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg}); err != nil {
		slog.Warn("failed to write error response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

func writeJSON(w http.ResponseWriter, cacheControl string, v any) {
	w.Header().Set("Content-Type", "application/json")
	if cacheControl != "" {
		w.Header().Set("Cache-Control", cacheControl)
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) revisionMiddleware(next http.Handler) http.Handler {
	if s.serverName == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", s.serverName)
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)
		// the mux sets the matched pattern on r
		metrics.ObserveHTTP(r.Pattern, rec.code, time.Since(start))
	})
}

// plantID reads the {id} path value and answers 400 itself when it is not a
// positive integer.
func plantID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		writeJSONError(w, "invalid plant id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// fetch calls a telemetry operation and records its outcome.
func fetch[T any](operation string, fn func() (T, error)) (T, error) {
	start := time.Now()
	v, err := fn()
	metrics.ObserveTelemetry(operation, err, time.Since(start))
	return v, err
}

// writeTelemetryError answers a failed telemetry call: 404 for unknown
// plants, 502 for everything else.
func writeTelemetryError(ctx context.Context, w http.ResponseWriter, what string, err error) {
	if errors.Is(err, telemetry.ErrPlantNotFound) {
		writeJSONError(w, "plant not found", http.StatusNotFound)
		return
	}
	log.Ctx(ctx).ErrorContext(ctx, "failed to get "+what, slog.Any("error", err))
	writeJSONError(w, "failed to get "+what, http.StatusBadGateway)
}
