// Package metrics exposes Prometheus counters and histograms for the
// reconciliation pipeline and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/plantwatch/plantwatch/pkg/series"
	"github.com/plantwatch/plantwatch/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricPrefix = "plantwatch_"

	ResultSuccess = "success"
	ResultError   = "error"

	StreamProduction  = "production"
	StreamConsumption = "consumption"
)

var (
	registerOnce sync.Once

	reconciledPoints  prometheus.Counter
	droppedSamples    *prometheus.CounterVec
	unresolvedMinutes *prometheus.CounterVec
	neighborFills     prometheus.Counter

	telemetryRequests *prometheus.CounterVec
	telemetryLatency  *prometheus.HistogramVec
	snapshotFallbacks prometheus.Counter

	classifications *prometheus.CounterVec
	baselineRuns    *prometheus.CounterVec
	exportTotal     *prometheus.CounterVec

	httpLatency *prometheus.HistogramVec
)

// Init registers the metrics with the default registry. It is safe to call
// more than once.
func Init() {
	registerOnce.Do(func() {
		reconciledPoints = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "reconciled_points_total",
				Help: "Total minute points emitted by the reconciler",
			},
		)
		droppedSamples = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "dropped_samples_total",
				Help: "Total samples dropped for unparseable timestamps by stream",
			},
			[]string{"stream"},
		)
		unresolvedMinutes = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "unresolved_minutes_total",
				Help: "Total minutes where a stream had no value at or next to the minute",
			},
			[]string{"stream"},
		)
		neighborFills = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "neighbor_fills_total",
				Help: "Total values borrowed from an adjacent minute",
			},
		)
		telemetryRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "telemetry_requests_total",
				Help: "Total telemetry source calls by operation and result",
			},
			[]string{"operation", "result"},
		)
		telemetryLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "telemetry_latency_seconds",
				Help:    "Telemetry source latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		)
		snapshotFallbacks = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "snapshot_fallbacks_total",
				Help: "Total production responses served from a stored snapshot",
			},
		)
		classifications = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "string_classifications_total",
				Help: "Total string classifications by band",
			},
			[]string{"band"},
		)
		baselineRuns = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "baseline_runs_total",
				Help: "Total per-plant baseline recalculations by result",
			},
			[]string{"result"},
		)
		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total month exports by format and result",
			},
			[]string{"format", "result"},
		)
		httpLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds by route and status code",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "code"},
		)
		prometheus.MustRegister(
			reconciledPoints,
			droppedSamples,
			unresolvedMinutes,
			neighborFills,
			telemetryRequests,
			telemetryLatency,
			snapshotFallbacks,
			classifications,
			baselineRuns,
			exportTotal,
			httpLatency,
		)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveReconcile records the outcome of one reconciliation.
func ObserveReconcile(points int, stats series.Stats) {
	if reconciledPoints == nil {
		return
	}
	reconciledPoints.Add(float64(points))
	droppedSamples.WithLabelValues(StreamProduction).Add(float64(stats.DroppedProduction))
	droppedSamples.WithLabelValues(StreamConsumption).Add(float64(stats.DroppedConsumption))
	unresolvedMinutes.WithLabelValues(StreamProduction).Add(float64(stats.ProductionGaps))
	unresolvedMinutes.WithLabelValues(StreamConsumption).Add(float64(stats.ConsumptionGaps))
	neighborFills.Add(float64(stats.NeighborFills))
}

// ObserveTelemetry records one telemetry source call.
func ObserveTelemetry(operation string, err error, duration time.Duration) {
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	if telemetryRequests != nil {
		telemetryRequests.WithLabelValues(operation, result).Inc()
	}
	if telemetryLatency != nil {
		telemetryLatency.WithLabelValues(operation).Observe(duration.Seconds())
	}
}

// IncSnapshotFallback counts a response served from a stored snapshot.
func IncSnapshotFallback() {
	if snapshotFallbacks != nil {
		snapshotFallbacks.Inc()
	}
}

// ObserveClassified counts the bands of classified strings.
func ObserveClassified(inverters []types.ClassifiedInverter) {
	if classifications == nil {
		return
	}
	for _, inv := range inverters {
		for _, s := range inv.Strings {
			classifications.WithLabelValues(string(s.Band)).Inc()
		}
	}
}

// IncBaselineRun counts one per-plant baseline recalculation.
func IncBaselineRun(err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	if baselineRuns != nil {
		baselineRuns.WithLabelValues(result).Inc()
	}
}

// IncExport counts one month export.
func IncExport(format string, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
}

// ObserveHTTP records the latency of one HTTP request.
func ObserveHTTP(route string, code int, duration time.Duration) {
	if route == "" {
		route = "unknown"
	}
	if httpLatency != nil {
		httpLatency.WithLabelValues(route, strconv.Itoa(code)).Observe(duration.Seconds())
	}
}
