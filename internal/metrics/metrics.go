// Package metrics exposes the sync engine's Prometheus instrumentation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// runsTotal tracks completed sync runs by vendor and terminal status.
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_sync_runs_total",
		Help: "Total number of sync runs by vendor and status",
	}, []string{"vendor", "status"})

	// runDuration tracks end-to-end run duration per vendor.
	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_sync_run_duration_seconds",
		Help:    "End-to-end sync run duration by vendor",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	}, []string{"vendor"})

	// fetchDuration tracks the fetch phase alone.
	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_sync_fetch_duration_seconds",
		Help:    "Raw payload fetch duration by vendor and source",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"vendor", "source"})

	// itemMutations tracks per-run item writes by kind.
	itemMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_sync_item_mutations_total",
		Help: "Catalog item mutations by vendor and kind (created, updated, tombstoned)",
	}, []string{"vendor", "kind"})

	// noopRuns tracks runs short-circuited by an unchanged catalog hash.
	noopRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_sync_noop_runs_total",
		Help: "Sync runs skipped because the catalog hash was unchanged",
	}, []string{"vendor"})

	// runErrors tracks failed runs by classified error kind.
	runErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_sync_run_errors_total",
		Help: "Failed sync runs by vendor and error kind",
	}, []string{"vendor", "kind"})

	// catalogSize tracks the live (non-tombstoned) item count per vendor.
	catalogSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "catalog_live_items",
		Help: "Live catalog items per vendor after the last successful run",
	}, []string{"vendor"})

	// alertsIngested counts accepted alert events by level.
	alertsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_alerts_ingested_total",
		Help: "Alert events accepted by level",
	}, []string{"level"})
)

// Recorder provides methods to record sync engine metrics.
type Recorder struct{}

// NewRecorder creates a new metrics recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordRun records a terminal run with its duration.
func (r *Recorder) RecordRun(vendor, status string, duration time.Duration) {
	runsTotal.WithLabelValues(vendor, status).Inc()
	runDuration.WithLabelValues(vendor).Observe(duration.Seconds())
}

// RecordFetch records the fetch phase duration for one run.
func (r *Recorder) RecordFetch(vendor, source string, duration time.Duration) {
	fetchDuration.WithLabelValues(vendor, source).Observe(duration.Seconds())
}

// RecordMutations records the item writes of a successful run.
func (r *Recorder) RecordMutations(vendor string, created, updated, tombstoned int) {
	itemMutations.WithLabelValues(vendor, "created").Add(float64(created))
	itemMutations.WithLabelValues(vendor, "updated").Add(float64(updated))
	itemMutations.WithLabelValues(vendor, "tombstoned").Add(float64(tombstoned))
}

// RecordNoop records a run short-circuited on an unchanged hash.
func (r *Recorder) RecordNoop(vendor string) {
	noopRuns.WithLabelValues(vendor).Inc()
}

// RecordRunError records a failed run by classified kind.
func (r *Recorder) RecordRunError(vendor, kind string) {
	runErrors.WithLabelValues(vendor, kind).Inc()
}

// SetCatalogSize records the live item count after a successful run.
func (r *Recorder) SetCatalogSize(vendor string, items int) {
	catalogSize.WithLabelValues(vendor).Set(float64(items))
}

// RecordAlert records an accepted alert event.
func (r *Recorder) RecordAlert(level string) {
	alertsIngested.WithLabelValues(level).Inc()
}
