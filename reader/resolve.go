// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package reader

import (
	"github.com/mabels/qsf/filter"
	"github.com/mabels/qsf/manifest"
)

// resolve builds the entry list for a stream.config record and runs the
// resolver fold (C9): each factory, in order, gets a chance to claim any
// entry it recognizes that no earlier factory has already claimed.
func resolve(record *manifest.StreamConfigRecord, factories []filter.DecoderFactory) []filter.Entry {
	entries := make([]filter.Entry, len(record.Filters))
	for i, fc := range record.Filters {
		entries[i] = filter.Entry{Input: fc}
	}
	for _, f := range factories {
		entries = f.Detect(record, entries)
	}
	return entries
}
