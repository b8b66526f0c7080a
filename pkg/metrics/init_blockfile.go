package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initBlockFileMetrics() {
	r.BlockFilesWritten = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "mergejoin_block_files_written_total",
			Help: "Total number of block files written",
		},
	)

	r.BlockFileRowsWritten = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "mergejoin_block_file_rows_written_total",
			Help: "Total number of rows written to block files",
		},
	)

	r.BlockDecompressions = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "mergejoin_block_decompressions_total",
			Help: "Total number of blocks decompressed from block files",
		},
	)

	r.BlockFileErrors = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "mergejoin_block_file_errors_total",
			Help: "Total number of block file errors",
		},
		[]string{"operation"},
	)
}
