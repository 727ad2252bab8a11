package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/cipherdex/internal/license"
)

// Search and ingestion Prometheus metrics.
var (
	SearchStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cipherdex",
			Name:      "search_stage_duration_seconds",
			Help:      "Search request duration per stage",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"mode", "stage"}, // stage: "search" / "fetch" / "total"
	)

	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cipherdex",
			Name:      "search_requests_total",
			Help:      "Total number of search requests",
		},
		[]string{"mode", "outcome"}, // outcome: "ok" / "partial" / "error"
	)

	IngestRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cipherdex",
			Name:      "ingest_records_total",
			Help:      "Ingested records by two-store outcome",
		},
		[]string{"status"}, // "committed" / "rolled_back" / "failed"
	)

	IngestMismatchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cipherdex",
			Name:      "ingest_consistency_mismatches_total",
			Help:      "Sub-batches whose store counts disagreed",
		},
	)
)

var domainMetricsRegistered bool

// RegisterDomainMetrics registers search and ingestion metrics. Must be
// called once from main.
func RegisterDomainMetrics() {
	if domainMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchStageDuration)
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(IngestRecordsTotal)
	prometheus.MustRegister(IngestMismatchesTotal)
	domainMetricsRegistered = true
}

// GateCollector exposes the license gate counters as Prometheus metrics.
// It reads a snapshot on every scrape instead of duplicating state.
type GateCollector struct {
	gate *license.Gate

	current    *prometheus.Desc
	peak       *prometheus.Desc
	acquired   *prometheus.Desc
	throttled  *prometheus.Desc
	violations *prometheus.Desc
}

// NewGateCollector creates a collector over the given gate.
func NewGateCollector(gate *license.Gate) *GateCollector {
	return &GateCollector{
		gate: gate,
		current: prometheus.NewDesc(
			"cipherdex_license_current_requests",
			"Requests currently holding a license slot", nil, nil),
		peak: prometheus.NewDesc(
			"cipherdex_license_max_concurrent_reached",
			"Highest simultaneous slot usage observed", nil, nil),
		acquired: prometheus.NewDesc(
			"cipherdex_license_requests_total",
			"Total admitted requests", nil, nil),
		throttled: prometheus.NewDesc(
			"cipherdex_license_throttled_total",
			"Requests that had to wait or were rejected", nil, nil),
		violations: prometheus.NewDesc(
			"cipherdex_license_violations_total",
			"Observed ceiling violations", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *GateCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.current
	ch <- c.peak
	ch <- c.acquired
	ch <- c.throttled
	ch <- c.violations
}

// Collect implements prometheus.Collector.
func (c *GateCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.gate.Stats()
	ch <- prometheus.MustNewConstMetric(c.current, prometheus.GaugeValue, float64(s.Current))
	ch <- prometheus.MustNewConstMetric(c.peak, prometheus.GaugeValue, float64(s.Peak))
	ch <- prometheus.MustNewConstMetric(c.acquired, prometheus.CounterValue, float64(s.TotalAcquired))
	ch <- prometheus.MustNewConstMetric(c.throttled, prometheus.CounterValue, float64(s.TotalThrottled))
	ch <- prometheus.MustNewConstMetric(c.violations, prometheus.CounterValue, float64(s.TotalViolations))
}
