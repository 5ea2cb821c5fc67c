// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package reader

import (
	"io"

	"github.com/pkg/errors"

	"github.com/mabels/qsf/filter"
	"github.com/mabels/qsf/manifest"
	"github.com/mabels/qsf/support/pipe"
	"github.com/mabels/qsf/varint"
)

// Event is either a *StreamFileBegin or a *StreamFileEnd.
type Event interface {
	streamFileEvent()
}

// StreamFileEnd is a stream's stream.result record, forwarded unchanged
// as the stream-end event.
type StreamFileEnd manifest.StreamResultRecord

func (*StreamFileEnd) streamFileEvent() {}

// StreamIDOf decodes a VarintObject carried on an event into the numeric
// stream id used to correlate begin/end pairs.
func StreamIDOf(id varint.Object) (uint64, error) { return id.ToValue() }

// StreamFileBegin is emitted once a stream's config and STREAM_HEADER
// have both arrived. Chunks exposes the still-encoded byte stream;
// Decode/DecodedReader apply the resolved decoder pipeline to it.
type StreamFileBegin struct {
	StreamID varint.Object
	Config   manifest.StreamConfigRecord

	pipe    *pipe.Pipe
	entries []filter.Entry
}

func (*StreamFileBegin) streamFileEvent() {}

// Chunks returns the stream's raw, still-encoded byte source. Each Recv
// corresponds to exactly one physical STREAM_DATA frame's payload.
func (b *StreamFileBegin) Chunks() *pipe.Pipe { return b.pipe }

// Cancel abandons this stream. Subsequent STREAM_DATA frames the binder
// encounters for this stream id are drained rather than delivered.
func (b *StreamFileBegin) Cancel() { b.pipe.Cancel() }

// Decode composes the resolved decoder instances' transforms in reverse
// order, matching the order encoders were applied on write. It fails
// with ErrUnresolvedFilter if any config entry never resolved to a
// decoder instance.
func (b *StreamFileBegin) Decode() (filter.Transform, error) {
	stages := make([]filter.Transform, len(b.entries))
	for i, e := range b.entries {
		if e.Instance == nil {
			unresolvedFilters.WithLabelValues(e.Input.Type).Inc()
			return nil, errors.Wrapf(ErrUnresolvedFilter, "type %q", e.Input.Type)
		}
		stages[len(b.entries)-1-i] = e.Instance.Decode()
	}
	return filter.Compose(stages), nil
}

// DecodedReader decodes the stream's chunk source and exposes the
// plaintext as an io.Reader, for a consumer that doesn't need direct
// access to the raw chunk boundaries.
func (b *StreamFileBegin) DecodedReader() (io.Reader, error) {
	transform, err := b.Decode()
	if err != nil {
		return nil, err
	}
	return &decodedReader{pipe: b.pipe, transform: transform}, nil
}

type decodedReader struct {
	pipe      *pipe.Pipe
	transform filter.Transform
	buf       []byte
	flushed   bool
	eof       bool
}

func (r *decodedReader) Read(dst []byte) (int, error) {
	for len(r.buf) == 0 {
		if r.eof {
			return 0, io.EOF
		}

		chunk, err := r.pipe.Recv()
		if err == io.EOF {
			out, ferr := r.transform.Flush()
			if ferr != nil {
				return 0, ferr
			}
			r.buf = out
			r.eof = true
			continue
		}
		if err != nil {
			return 0, err
		}

		out, err := r.transform.Process(chunk)
		if err != nil {
			return 0, err
		}
		r.buf = out
	}

	n := copy(dst, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}
