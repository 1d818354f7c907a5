// Metrics for the pipeline worker, grounded on core/system_health_logging.go's
// HealthLogger: a small set of named gauges/histograms on a private
// registry, exposed over /metrics by whatever http.Server the caller wires
// it into (cmd/registrar's serve command mounts it alongside the API
// router).
package worker

import (
	"github.com/prometheus/client_golang/prometheus"

	"synnergy-registrar/internal/queue"
)

// Metrics holds the worker's Prometheus instrumentation.
type Metrics struct {
	registry     *prometheus.Registry
	cycleSeconds prometheus.Histogram
	backoffLevel prometheus.Gauge
	queueDepth   *prometheus.GaugeVec
	cycleErrors  prometheus.Counter
}

// NewMetrics builds and registers the worker's metric set on a fresh
// registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		cycleSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "registrar_worker_cycle_seconds",
			Help: "Duration of one pipeline worker cycle.",
		}),
		backoffLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "registrar_worker_backoff_seconds",
			Help: "Current backoff delay after a failed cycle.",
		}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "registrar_queue_depth",
			Help: "Number of rows currently queued, by category.",
		}, []string{"category"}),
		cycleErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "registrar_worker_cycle_errors_total",
			Help: "Total number of pipeline cycles that returned an error.",
		}),
	}
	reg.MustRegister(m.cycleSeconds, m.backoffLevel, m.queueDepth, m.cycleErrors)
	return m
}

// Registry exposes the underlying registry for mounting under promhttp.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) recordQueueDepth(q *queue.Queue) {
	for _, c := range queue.AllCategories {
		rows, err := q.All(c)
		if err != nil {
			continue
		}
		m.queueDepth.WithLabelValues(string(c)).Set(float64(len(rows)))
	}
}
