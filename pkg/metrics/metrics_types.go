package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for the join engine
type Registry struct {
	// Join Metrics
	JoinsTotal          *prometheus.CounterVec
	JoinDuration        *prometheus.HistogramVec
	JoinRowsEmitted     *prometheus.HistogramVec
	JoinBlocksPulled    *prometheus.CounterVec
	JoinOutOfOrderTotal *prometheus.CounterVec
	JoinUndefProbes     *prometheus.CounterVec
	SlowJoins           *prometheus.CounterVec

	// Block File Metrics
	BlockFilesWritten    prometheus.Counter
	BlockFileRowsWritten prometheus.Counter
	BlockDecompressions  prometheus.Counter
	BlockFileErrors      *prometheus.CounterVec

	// System Metrics
	UptimeSeconds    prometheus.Gauge
	GoRoutines       prometheus.Gauge
	MemoryAllocBytes prometheus.Gauge
	MemorySysBytes   prometheus.Gauge
	GCCycles         prometheus.Gauge

	registry *prometheus.Registry
}

var (
	// Global registry instance
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
	}

	r.initJoinMetrics()
	r.initBlockFileMetrics()
	r.initSystemMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
