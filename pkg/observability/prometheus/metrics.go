// Package prometheus exposes dbflux runtime metrics through a
// prometheus/client_golang registry
package prometheus

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DefaultRegistry is the default Prometheus registry
	DefaultRegistry = prometheus.NewRegistry()

	// DefaultRegisterer labels every metric with the service name
	DefaultRegisterer = prometheus.WrapRegistererWith(
		prometheus.Labels{"service": "dbflux"}, DefaultRegistry)

	metricsOnce sync.Once
	metrics     *Metrics
)

// Metrics holds all dbflux Prometheus metrics
type Metrics struct {
	// Command execution metrics
	CommandsTotal   *prometheus.CounterVec // labels: kind, status
	CommandDuration *prometheus.HistogramVec

	// Command queue metrics
	QueueDepth     prometheus.Gauge
	QueueProcessed prometheus.Counter
	QueueFailed    prometheus.Counter
	QueueRejected  prometheus.Counter

	// Connection pool metrics
	PoolConnectionsOpen  prometheus.Gauge
	PoolConnectionsIdle  prometheus.Gauge
	PoolConnectionsInUse prometheus.Gauge
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = NewMetrics(DefaultRegisterer)
	})
	return metrics
}

// NewMetrics creates a metrics collection registered with registerer
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = DefaultRegisterer
	}

	return &Metrics{
		CommandsTotal: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dbflux_commands_total",
				Help: "Total number of executed database commands",
			},
			[]string{"kind", "status"},
		),
		CommandDuration: promauto.With(registerer).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dbflux_command_duration_seconds",
				Help:    "Database command execution duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		QueueDepth: promauto.With(registerer).NewGauge(
			prometheus.GaugeOpts{
				Name: "dbflux_queue_depth",
				Help: "Number of commands currently buffered in the queue",
			},
		),
		QueueProcessed: promauto.With(registerer).NewCounter(
			prometheus.CounterOpts{
				Name: "dbflux_queue_processed_total",
				Help: "Total number of queued commands completed successfully",
			},
		),
		QueueFailed: promauto.With(registerer).NewCounter(
			prometheus.CounterOpts{
				Name: "dbflux_queue_failed_total",
				Help: "Total number of queued commands that failed",
			},
		),
		QueueRejected: promauto.With(registerer).NewCounter(
			prometheus.CounterOpts{
				Name: "dbflux_queue_rejected_total",
				Help: "Total number of commands rejected at queue admission",
			},
		),
		PoolConnectionsOpen: promauto.With(registerer).NewGauge(
			prometheus.GaugeOpts{
				Name: "dbflux_pool_connections_open",
				Help: "Number of open database connections",
			},
		),
		PoolConnectionsIdle: promauto.With(registerer).NewGauge(
			prometheus.GaugeOpts{
				Name: "dbflux_pool_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		PoolConnectionsInUse: promauto.With(registerer).NewGauge(
			prometheus.GaugeOpts{
				Name: "dbflux_pool_connections_in_use",
				Help: "Number of database connections in use",
			},
		),
	}
}

// ObservePool updates the pool gauges from a fresh snapshot
func (m *Metrics) ObservePool(open, idle, inUse int) {
	if m == nil {
		return
	}
	m.PoolConnectionsOpen.Set(float64(open))
	m.PoolConnectionsIdle.Set(float64(idle))
	m.PoolConnectionsInUse.Set(float64(inUse))
}
