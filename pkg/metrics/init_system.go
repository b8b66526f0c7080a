package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// namespace prefixes every metric of the registry.
const namespace = "mergejoin"

// initSystemMetrics registers the process gauges refreshed by
// UpdateSystemMetrics after a bench run.
func (r *Registry) initSystemMetrics() {
	gauges := []struct {
		dst  *prometheus.Gauge
		name string
		help string
	}{
		{&r.UptimeSeconds, "uptime_seconds", "Seconds since the run started"},
		{&r.GoRoutines, "goroutines", "Goroutines alive when the run finished"},
		{&r.MemoryAllocBytes, "memory_alloc_bytes", "Heap bytes allocated when the run finished"},
		{&r.MemorySysBytes, "memory_sys_bytes", "Bytes obtained from the OS when the run finished"},
		{&r.GCCycles, "gc_cycles", "Completed GC cycles when the run finished"},
	}
	factory := promauto.With(r.registry)
	for _, g := range gauges {
		*g.dst = factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      g.name,
			Help:      g.help,
		})
	}
}
