// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package writer

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	entriesWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "qsf_writer_entries_written",
		Help: "Count of entries fully written to a container.",
	})

	entryErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "qsf_writer_entry_errors",
		Help: "Count of entry write failures, by stage.",
	}, []string{"stage"})

	bytesWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "qsf_writer_bytes_written",
		Help: "Count of encoded bytes (frames and manifests) written to the sink.",
	})

	dataChunksWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "qsf_writer_data_chunks_written",
		Help: "Count of STREAM_DATA frames emitted across all entries.",
	})
)

// RegisterMonitoring registers this package's monitoring metrics.
func RegisterMonitoring(reg prometheus.Registerer) {
	reg.MustRegister(
		entriesWritten,
		entryErrors,
		bytesWritten,
		dataChunksWritten,
	)
}
