package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "crimemap"

// Metrics holds the Prometheus counters, histograms, and gauges for one batch run.
type Metrics struct {
	registry *prometheus.Registry

	RowsLoaded      prometheus.Counter
	RowsCleaned     prometheus.Counter
	StageDuration   *prometheus.HistogramVec // labels: stage={clean,score,aggregate,render,publish,report}
	PipelineRunning prometheus.Gauge

	// Severity scoring.
	DescriptionsScored *prometheus.CounterVec // labels: outcome={matched,fallback}
	EmbedCache         *prometheus.CounterVec // labels: result={hit,miss}
	EmbedDuration      prometheus.Histogram

	// Aggregation.
	IncidentsRouted *prometheus.CounterVec // labels: route={compared,other_year,out_of_window,unscored}
	GridCells       prometheus.Gauge

	// Basemap tiles.
	TileRequests *prometheus.CounterVec // labels: outcome={success,error}
	TileCache    *prometheus.CounterVec // labels: result={hit,miss}

	RecordsPublished prometheus.Counter
}

// NewMetrics creates all run metrics on a dedicated registry. A CLI run is
// short-lived, so metrics are written out with WriteTextfile instead of being
// scraped.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := newMetrics()
	m.registry = reg
	reg.MustRegister(
		m.RowsLoaded,
		m.RowsCleaned,
		m.StageDuration,
		m.PipelineRunning,
		m.DescriptionsScored,
		m.EmbedCache,
		m.EmbedDuration,
		m.IncidentsRouted,
		m.GridCells,
		m.TileRequests,
		m.TileCache,
		m.RecordsPublished,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics; WriteTextfile is a no-op
// on them.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

// WriteTextfile writes every registered metric to path in the Prometheus
// text exposition format, for node_exporter's textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m.registry == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

func newMetrics() *Metrics {
	return &Metrics{
		RowsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_loaded_total",
			Help:      "Rows read from the raw CSV.",
		}),
		RowsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_cleaned_total",
			Help:      "Rows written to the cleaned snapshot.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each pipeline stage.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"stage"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a run is in progress.",
		}),
		DescriptionsScored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "descriptions_scored_total",
			Help:      "Unique crime descriptions scored, by outcome.",
		}, []string{"outcome"}),
		EmbedCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embed_cache_total",
			Help:      "Embedding cache lookups by result.",
		}, []string{"result"}),
		EmbedDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embed_duration_seconds",
			Help:      "Embedding engine call duration.",
			Buckets:   []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		IncidentsRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incidents_routed_total",
			Help:      "Incidents by aggregation route.",
		}, []string{"route"}),
		GridCells: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "grid_cells",
			Help:      "Grid cells in the last change table.",
		}),
		TileRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tile_requests_total",
			Help:      "Basemap tile fetches by outcome.",
		}, []string{"outcome"}),
		TileCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tile_cache_total",
			Help:      "Basemap tile cache lookups by result.",
		}, []string{"result"}),
		RecordsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_published_total",
			Help:      "Change records written to Kafka.",
		}),
	}
}
