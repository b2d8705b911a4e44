package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the update pipeline.
type Metrics struct {
	SamplesFetched  prometheus.Counter
	SamplesDropped  prometheus.Counter
	PeaksExtracted  prometheus.Counter
	EventsMerged    prometheus.Counter
	EventsDuplicate prometheus.Counter
	RunsTotal       *prometheus.CounterVec // labels: mode={incremental,backfill}, outcome={ok,noop,error}

	UpdateDuration prometheus.Histogram

	StoreEvents   prometheus.Gauge
	WatermarkUnix prometheus.Gauge
	PublishErrors prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.SamplesFetched,
		m.SamplesDropped,
		m.PeaksExtracted,
		m.EventsMerged,
		m.EventsDuplicate,
		m.RunsTotal,
		m.UpdateDuration,
		m.StoreEvents,
		m.WatermarkUnix,
		m.PublishErrors,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		SamplesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "floodpeaks",
			Name:      "samples_fetched_total",
			Help:      "Total water-level samples returned by the series source.",
		}),
		SamplesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "floodpeaks",
			Name:      "samples_dropped_total",
			Help:      "Total samples dropped for non-finite values before extraction.",
		}),
		PeaksExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "floodpeaks",
			Name:      "peaks_extracted_total",
			Help:      "Total peak events produced by extraction, before deduplication.",
		}),
		EventsMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "floodpeaks",
			Name:      "events_merged_total",
			Help:      "Total new events inserted into the cache.",
		}),
		EventsDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "floodpeaks",
			Name:      "events_duplicate_total",
			Help:      "Total extracted events skipped as already present.",
		}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "floodpeaks",
			Name:      "runs_total",
			Help:      "Update passes by mode and outcome.",
		}, []string{"mode", "outcome"}),
		UpdateDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "floodpeaks",
			Name:      "update_duration_seconds",
			Help:      "Duration of a complete fetch-extract-merge-persist pass.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		StoreEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "floodpeaks",
			Name:      "store_events",
			Help:      "Number of events in the persisted cache after the last pass.",
		}),
		WatermarkUnix: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "floodpeaks",
			Name:      "watermark_timestamp_seconds",
			Help:      "Watermark of the cache as a Unix timestamp.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "floodpeaks",
			Name:      "publish_errors_total",
			Help:      "Failed publishes of merged events to the notification sink.",
		}),
	}
}
