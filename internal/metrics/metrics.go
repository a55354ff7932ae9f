// Package metrics exposes ingestion cycle counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/weatherlink-logger/internal/weather"
)

const (
	resultSuccess = "success"
	resultPartial = "partial"
	resultFailure = "failure"
)

// Collector implements weather.Observer on top of its own Prometheus registry.
type Collector struct {
	registry *prometheus.Registry

	cycles        *prometheus.CounterVec
	inserts       *prometheus.CounterVec
	skipped       prometheus.Counter
	columnsAdded  *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	lastCycle     prometheus.Gauge
}

var _ weather.Observer = (*Collector)(nil)

// NewCollector creates a Collector. withRuntime adds the Go and process
// collectors, which only make sense for a long-running process.
func NewCollector(withRuntime bool) *Collector {
	registry := prometheus.NewRegistry()
	if withRuntime {
		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	c := &Collector{
		registry: registry,
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weatherlink_cycles_total",
			Help: "Ingestion cycles by result.",
		}, []string{"result"}),
		inserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weatherlink_inserts_total",
			Help: "Rows inserted by category.",
		}, []string{"category"}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "weatherlink_skipped_inserts_total",
			Help: "Readings not inserted because they matched the latest row.",
		}),
		columnsAdded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weatherlink_columns_added_total",
			Help: "Columns added by schema reconciliation, by table.",
		}, []string{"table"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "weatherlink_cycle_duration_seconds",
			Help:    "Duration of ingestion cycles.",
			Buckets: prometheus.DefBuckets,
		}),
		lastCycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "weatherlink_last_cycle_timestamp_seconds",
			Help: "Unix time of the last finished cycle.",
		}),
	}

	registry.MustRegister(
		c.cycles,
		c.inserts,
		c.skipped,
		c.columnsAdded,
		c.cycleDuration,
		c.lastCycle,
	)
	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ColumnAdded counts a schema addition.
func (c *Collector) ColumnAdded(table, _ string, _ weather.ColumnKind) {
	c.columnsAdded.WithLabelValues(table).Inc()
}

// CycleFinished records a finished cycle's outcome.
func (c *Collector) CycleFinished(summary weather.HealthSummary, elapsed time.Duration) {
	c.cycles.WithLabelValues(cycleResult(summary)).Inc()
	for _, cat := range weather.Categories() {
		if summary.Inserted(cat) {
			c.inserts.WithLabelValues(string(cat)).Inc()
		}
	}
	c.skipped.Add(float64(summary.SkippedInserts))
	c.cycleDuration.Observe(elapsed.Seconds())
	c.lastCycle.Set(float64(summary.Timestamp.Unix()))
}

// WriteTextfile writes the registry for the node-exporter textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}

func cycleResult(s weather.HealthSummary) string {
	switch {
	case s.APISuccess == 1 && s.DBSuccess == 1:
		return resultSuccess
	case s.APISuccess == 1:
		return resultPartial
	default:
		return resultFailure
	}
}
