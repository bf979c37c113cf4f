package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, gauges, and histograms for the
// rainfall ETL run.
type Metrics struct {
	RecordsFetched     prometheus.Counter
	PagesFetched       prometheus.Counter
	PageErrors         prometheus.Counter
	BlocksFailed       prometheus.Counter
	RecordsQuarantined prometheus.Counter

	CoveragePct      prometheus.Gauge
	SensorsSurviving prometheus.Gauge
	LastRunSuccess   prometheus.Gauge

	RunDuration prometheus.Histogram
}

// NewMetrics creates and registers all run metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		RecordsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rainfall_etl",
			Name:      "records_fetched_total",
			Help:      "Total observation records retrieved from the portal.",
		}),
		PagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rainfall_etl",
			Name:      "pages_fetched_total",
			Help:      "Total pages successfully retrieved.",
		}),
		PageErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rainfall_etl",
			Name:      "page_errors_total",
			Help:      "Total page-level fetch failures, transient and fatal.",
		}),
		BlocksFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rainfall_etl",
			Name:      "blocks_failed_total",
			Help:      "Total one-day blocks lost after exhausting their retry budget.",
		}),
		RecordsQuarantined: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rainfall_etl",
			Name:      "records_quarantined_total",
			Help:      "Total raw records rejected at the fetch boundary for missing required fields.",
		}),
		CoveragePct: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rainfall_etl",
			Name:      "coverage_pct",
			Help:      "Retrieval coverage of the last attempt as a percentage of requested days.",
		}),
		SensorsSurviving: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rainfall_etl",
			Name:      "sensors_surviving",
			Help:      "Stations remaining after the quality gate.",
		}),
		LastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rainfall_etl",
			Name:      "last_run_success",
			Help:      "1 when the last run wrote its artifacts, 0 otherwise.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rainfall_etl",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete ingestion-to-artifact run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
	}

	prometheus.MustRegister(
		m.RecordsFetched,
		m.PagesFetched,
		m.PageErrors,
		m.BlocksFailed,
		m.RecordsQuarantined,
		m.CoveragePct,
		m.SensorsSurviving,
		m.LastRunSuccess,
		m.RunDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		RecordsFetched:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "rainfall_etl", Name: "records_fetched_total"}),
		PagesFetched:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: "rainfall_etl", Name: "pages_fetched_total"}),
		PageErrors:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: "rainfall_etl", Name: "page_errors_total"}),
		BlocksFailed:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: "rainfall_etl", Name: "blocks_failed_total"}),
		RecordsQuarantined: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "rainfall_etl", Name: "records_quarantined_total"}),
		CoveragePct:        prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "rainfall_etl", Name: "coverage_pct"}),
		SensorsSurviving:   prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "rainfall_etl", Name: "sensors_surviving"}),
		LastRunSuccess:     prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "rainfall_etl", Name: "last_run_success"}),
		RunDuration:        prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "rainfall_etl", Name: "run_duration_seconds"}),
	}
}
