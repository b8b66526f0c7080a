package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initJoinMetrics() {
	r.JoinsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "mergejoin_executions_total",
			Help: "Total number of join executions",
		},
		[]string{"kind", "status"},
	)

	r.JoinDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mergejoin_execution_duration_seconds",
			Help:    "Join execution duration in seconds",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
		[]string{"kind"},
	)

	r.JoinRowsEmitted = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mergejoin_rows_emitted",
			Help:    "Number of rows handed to the output adder per join",
			Buckets: []float64{10, 100, 1000, 10000, 100000, 1000000},
		},
		[]string{"kind"},
	)

	r.JoinBlocksPulled = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "mergejoin_blocks_pulled_total",
			Help: "Total number of input blocks pulled by joins",
		},
		[]string{"kind", "side"},
	)

	r.JoinOutOfOrderTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "mergejoin_out_of_order_total",
			Help: "Total number of joins whose output was not sorted by join key",
		},
		[]string{"kind"},
	)

	r.JoinUndefProbes = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "mergejoin_undef_probes_total",
			Help: "Total number of UNDEF range lookups",
		},
		[]string{"kind"},
	)

	r.SlowJoins = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "mergejoin_slow_executions_total",
			Help: "Total number of slow joins (>1s)",
		},
		[]string{"kind"},
	)
}
