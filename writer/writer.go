// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package writer implements the writer state machine (C7): for each
// entry it assigns a stream id, runs the entry's encode pipeline, and
// interleaves manifest records with framed data on the sink.
package writer

import (
	"io"

	"github.com/pkg/errors"

	"github.com/mabels/qsf/filter"
	"github.com/mabels/qsf/frame"
	"github.com/mabels/qsf/manifest"
	"github.com/mabels/qsf/support/bufferpool"
	"github.com/mabels/qsf/support/logging"
	"github.com/mabels/qsf/varint"
)

// DefaultChunkSize is the number of bytes pulled from an entry's Source
// per read, absent an explicit WithChunkSize option.
const DefaultChunkSize = 32 * 1024

// Entry is one logical stream to be written.
type Entry struct {
	// Source supplies the stream's plaintext bytes.
	Source io.Reader
	// Filters are instantiated, per-entry encoder filters, applied in
	// this order (CID, if present, MUST come first: its accumulator
	// runs over pre-filter bytes).
	Filters []filter.EncoderFilter
	// CombineID, if set, is recorded on the stream.config record so a
	// filter.CIDCollector elsewhere can group this stream's CID with
	// others.
	CombineID *string
}

// Writer multiplexes entries into a single QSF container.
type Writer struct {
	sink io.Writer
	ser  manifest.Serializer
	pool *bufferpool.Pool
	log  logging.L

	nextID  uint64
	written uint64
}

// Option configures a Writer.
type Option func(*Writer)

// WithSerializer overrides the manifest byte serializer (default: JSON).
func WithSerializer(ser manifest.Serializer) Option {
	return func(w *Writer) { w.ser = ser }
}

// WithChunkSize overrides the read-buffer size used to pull bytes from
// each entry's Source (default: DefaultChunkSize).
func WithChunkSize(n int) Option {
	return func(w *Writer) { w.pool = bufferpool.New(n) }
}

// WithLogger attaches a logger; nil is treated as logging.Nop.
func WithLogger(l logging.L) Option {
	return func(w *Writer) { w.log = logging.Must(l) }
}

// New returns a Writer that emits a QSF container to sink.
func New(sink io.Writer, opts ...Option) *Writer {
	w := &Writer{
		sink: sink,
		ser:  manifest.DefaultSerializer,
		pool: bufferpool.New(DefaultChunkSize),
		log:  logging.Nop,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WriteEntries writes every entry in order, then closes the sink if it
// implements io.Closer, per spec: "after all entries: close the sink."
func (w *Writer) WriteEntries(entries []Entry) error {
	for i, e := range entries {
		if _, err := w.WriteEntry(e); err != nil {
			return errors.Wrapf(err, "entry #%d", i)
		}
	}
	return w.Close()
}

// Close closes the underlying sink, if it is an io.Closer.
func (w *Writer) Close() error {
	if c, ok := w.sink.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// WriteEntry writes a single logical stream end to end: stream.config,
// STREAM_HEADER, STREAM_DATA*, STREAM_TRAILER, stream.result. It returns
// the stream id assigned to the entry.
func (w *Writer) WriteEntry(e Entry) (uint64, error) {
	streamID := w.nextID
	w.nextID++

	configs := make([]manifest.FilterConfig, 0, len(e.Filters))
	transforms := make([]filter.Transform, 0, len(e.Filters))
	for _, ef := range e.Filters {
		configs = append(configs, ef.Config())
	}

	cfgRecord := manifest.StreamConfigRecord{
		Type:      manifest.TypeStreamConfig,
		StreamID:  varint.ToObject(streamID),
		CombineID: e.CombineID,
		Filters:   configs,
	}
	if err := w.emitManifest(streamID, &cfgRecord); err != nil {
		entryErrors.WithLabelValues("config").Inc()
		return streamID, errors.Wrap(err, "emit stream.config")
	}

	if err := w.emitFrame(frame.Frame{Type: frame.StreamHeader, StreamID: streamID}); err != nil {
		entryErrors.WithLabelValues("header").Inc()
		return streamID, errors.Wrap(err, "emit STREAM_HEADER")
	}

	// Transforms are built only now, after the config is on the wire.
	// Each EncoderFilter's per-stream state (for AES-GCM, the key and its
	// fingerprint) is fixed when the filter is constructed, so Config()
	// is already stable and none of the built-ins need the Transform to
	// exist before Config() is read.
	for _, ef := range e.Filters {
		transforms = append(transforms, ef.Encoder())
	}
	pipeline := filter.Compose(transforms)

	offset, length, err := w.pipeData(streamID, pipeline, e.Source)
	if err != nil {
		entryErrors.WithLabelValues("data").Inc()
		return streamID, errors.Wrap(err, "pipe entry data")
	}

	if err := w.emitTrailer(streamID); err != nil {
		entryErrors.WithLabelValues("trailer").Inc()
		return streamID, errors.Wrap(err, "emit STREAM_TRAILER")
	}

	filterResults := make([]manifest.FilterResult, 0, len(e.Filters))
	for _, ef := range e.Filters {
		if result, ok := ef.Result(); ok {
			filterResults = append(filterResults, result)
		}
	}

	resultRecord := manifest.StreamResultRecord{
		Type:         manifest.TypeStreamResult,
		StreamID:     varint.ToObject(streamID),
		Offset:       offset,
		Length:       length,
		FilterResult: filterResults,
	}
	if err := w.emitManifest(streamID, &resultRecord); err != nil {
		entryErrors.WithLabelValues("result").Inc()
		return streamID, errors.Wrap(err, "emit stream.result")
	}

	entriesWritten.Inc()
	w.log.Debugf("wrote stream %d: %d bytes across the data plane", streamID, length)
	return streamID, nil
}

// pipeData reads e.Source in chunks, feeds them through pipeline, and
// emits one STREAM_DATA frame per output chunk (including pipeline's
// final Flush output, if non-empty). It returns the byte offset of the
// first STREAM_DATA frame written and the total encoded length placed
// on the wire across all STREAM_DATA payloads.
func (w *Writer) pipeData(streamID uint64, pipeline filter.Transform, src io.Reader) (offset, length uint64, err error) {
	buf := w.pool.Get()
	defer buf.Release()

	haveOffset := false
	emit := func(out []byte) error {
		if len(out) == 0 {
			return nil
		}
		if !haveOffset {
			offset = w.written
			haveOffset = true
		}
		length += uint64(len(out))
		return w.emitFrame(frame.Frame{Type: frame.StreamData, StreamID: streamID, Payload: out})
	}

	for {
		n, rerr := src.Read(buf.Bytes())
		if n > 0 {
			out, perr := pipeline.Process(buf.Bytes()[:n])
			if perr != nil {
				return 0, 0, errors.Wrap(perr, "encode chunk")
			}
			if err := emit(out); err != nil {
				return 0, 0, err
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return 0, 0, errors.Wrap(rerr, "read entry source")
		}
	}

	final, err := pipeline.Flush()
	if err != nil {
		return 0, 0, errors.Wrap(err, "flush encode pipeline")
	}
	if err := emit(final); err != nil {
		return 0, 0, err
	}
	return offset, length, nil
}

func (w *Writer) emitTrailer(streamID uint64) error {
	payload, err := w.ser.Encode(struct{}{})
	if err != nil {
		return errors.Wrap(err, "encode trailer record")
	}
	return w.emitFrame(frame.Frame{Type: frame.StreamTrailer, StreamID: streamID, Payload: payload})
}

func (w *Writer) emitManifest(streamID uint64, record interface{}) error {
	payload, err := w.ser.Encode(record)
	if err != nil {
		return errors.Wrap(err, "encode manifest record")
	}
	return w.emitFrame(frame.Frame{Type: frame.ManifestEntry, StreamID: streamID, Payload: payload})
}

func (w *Writer) emitFrame(f frame.Frame) error {
	encoded, err := frame.Encode(f)
	if err != nil {
		return errors.Wrap(err, "encode frame")
	}
	if _, err := w.sink.Write(encoded); err != nil {
		return errors.Wrap(err, "write frame")
	}
	w.written += uint64(len(encoded))
	bytesWritten.Add(float64(len(encoded)))
	if f.Type == frame.StreamData {
		dataChunksWritten.Inc()
	}
	return nil
}
