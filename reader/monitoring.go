// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package reader

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	streamsBegun = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "qsf_reader_streams_begun",
		Help: "Count of StreamFileBegin events emitted.",
	})

	streamsEnded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "qsf_reader_streams_ended",
		Help: "Count of StreamFileEnd events emitted.",
	})

	unresolvedFilters = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "qsf_reader_unresolved_filters",
		Help: "Count of Decode() calls that failed with ErrUnresolvedFilter, by filter type.",
	}, []string{"type"})

	danglingDataFrames = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "qsf_reader_dangling_data_frames",
		Help: "Count of STREAM_DATA frames seen for a stream id with no open pipe.",
	})
)

// RegisterMonitoring registers this package's monitoring metrics.
func RegisterMonitoring(reg prometheus.Registerer) {
	reg.MustRegister(
		streamsBegun,
		streamsEnded,
		unresolvedFilters,
		danglingDataFrames,
	)
}
