package metrics

import (
	"runtime"
	"time"
)

// SlowJoinThreshold is the duration above which a join counts as slow.
const SlowJoinThreshold = time.Second

// RecordJoin records a join execution with its duration and output size
func (r *Registry) RecordJoin(kind, status string, duration time.Duration, rowsEmitted int) {
	r.JoinsTotal.WithLabelValues(kind, status).Inc()
	r.JoinDuration.WithLabelValues(kind).Observe(duration.Seconds())
	r.JoinRowsEmitted.WithLabelValues(kind).Observe(float64(rowsEmitted))

	if duration > SlowJoinThreshold {
		r.SlowJoins.WithLabelValues(kind).Inc()
	}
}

// RecordBlocksPulled records how many blocks a join pulled from each side
func (r *Registry) RecordBlocksPulled(kind string, left, right int) {
	r.JoinBlocksPulled.WithLabelValues(kind, "left").Add(float64(left))
	r.JoinBlocksPulled.WithLabelValues(kind, "right").Add(float64(right))
}

// RecordUndefJoin records the UNDEF-specific outcome of a join
func (r *Registry) RecordUndefJoin(kind string, undefProbes int, outOfOrder bool) {
	if undefProbes > 0 {
		r.JoinUndefProbes.WithLabelValues(kind).Add(float64(undefProbes))
	}
	if outOfOrder {
		r.JoinOutOfOrderTotal.WithLabelValues(kind).Inc()
	}
}

// RecordBlockFileWritten records a completed block file
func (r *Registry) RecordBlockFileWritten(rows int) {
	r.BlockFilesWritten.Inc()
	r.BlockFileRowsWritten.Add(float64(rows))
}

// RecordDecompressions adds decoded blocks to the running total
func (r *Registry) RecordDecompressions(n int64) {
	if n > 0 {
		r.BlockDecompressions.Add(float64(n))
	}
}

// RecordBlockFileError records a failed block file operation
func (r *Registry) RecordBlockFileError(operation string) {
	r.BlockFileErrors.WithLabelValues(operation).Inc()
}

// UpdateSystemMetrics refreshes the process gauges
func (r *Registry) UpdateSystemMetrics(started time.Time) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	r.UptimeSeconds.Set(time.Since(started).Seconds())
	r.GoRoutines.Set(float64(runtime.NumGoroutine()))
	r.MemoryAllocBytes.Set(float64(mem.Alloc))
	r.MemorySysBytes.Set(float64(mem.Sys))
	r.GCCycles.Set(float64(mem.NumGC))
}
