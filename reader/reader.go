// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package reader implements the reader pipeline (C8-c binder, C9
// resolver fold, C10 public event API): it demultiplexes frames, types
// manifest records, binds them to live per-stream byte pipes, and
// resolves each stream's decoder chain.
package reader

import (
	"context"
	"io"
	"io/ioutil"

	"github.com/pkg/errors"

	"github.com/mabels/qsf/filter"
	"github.com/mabels/qsf/frame"
	"github.com/mabels/qsf/manifest"
	"github.com/mabels/qsf/support/logging"
	"github.com/mabels/qsf/support/pipe"
	"github.com/mabels/qsf/varint"
)

type pendingConfig struct {
	config  *manifest.StreamConfigRecord
	entries []filter.Entry
}

// Reader demultiplexes a QSF container into a sequence of StreamFileBegin
// and StreamFileEnd events.
type Reader struct {
	stage     *manifest.Stage
	factories []filter.DecoderFactory
	log       logging.L

	highWaterMark int

	pendingConfigs map[uint64]pendingConfig
	openPipes      map[uint64]*pipe.Pipe

	events chan Event
	err    error
}

// options collects Option values before the Reader (and its
// manifest.Stage, which needs the resolved serializer) is built.
type options struct {
	ser           manifest.Serializer
	highWaterMark int
	log           logging.L
}

// Option configures a Reader.
type Option func(*options)

// WithSerializer overrides the manifest byte serializer (default: JSON).
func WithSerializer(ser manifest.Serializer) Option {
	return func(o *options) { o.ser = ser }
}

// WithHighWaterMark overrides the per-stream pipe's buffered chunk
// capacity (default: pipe.DefaultHighWaterMark).
func WithHighWaterMark(n int) Option {
	return func(o *options) { o.highWaterMark = n }
}

// WithLogger attaches a logger; nil is treated as logging.Nop.
func WithLogger(l logging.L) Option {
	return func(o *options) { o.log = logging.Must(l) }
}

// New returns a Reader over src. decoders is the caller-supplied list of
// DecoderFactory; the built-in CID and ZStr factories are always
// prepended, so those filters resolve with no configuration.
func New(src io.Reader, decoders []filter.DecoderFactory, opts ...Option) *Reader {
	o := options{
		ser:           manifest.DefaultSerializer,
		highWaterMark: pipe.DefaultHighWaterMark,
		log:           logging.Nop,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Reader{
		stage:          manifest.NewStage(frame.NewChunkReader(src), o.ser),
		factories:      append([]filter.DecoderFactory{filter.CIDDecoderFactory{}, filter.ZStrDecoderFactory{}}, decoders...),
		log:            o.log,
		highWaterMark:  o.highWaterMark,
		pendingConfigs: map[uint64]pendingConfig{},
		openPipes:      map[uint64]*pipe.Pipe{},
	}
}

// Run starts the frame/manifest/binder pipeline on a dedicated background
// goroutine and returns the channel it delivers StreamFileBegin/
// StreamFileEnd events on, in arrival order. The channel is unbuffered:
// sending on it suspends the pipeline goroutine until the caller
// receives, which is the Go rendering of the cooperative suspension
// spec.md §5 describes at the top level.
//
// Running the pipeline on its own goroutine, separate from whichever
// goroutine drains a stream's Chunks()/DecodedReader(), is required for
// correctness: a consumer that calls DecodedReader and reads it to
// completion before receiving further events would otherwise deadlock,
// since draining a stream's pipe and pumping the frames that feed it are
// the same sequential loop.
//
// The channel closes at a clean end of stream or when ctx is cancelled;
// call Err after it closes (or after ctx is cancelled and the channel
// drains) to find out which. Cancelling ctx also cancels every open
// per-stream pipe, unblocking any goroutine suspended in Recv or Read.
func (r *Reader) Run(ctx context.Context) <-chan Event {
	r.events = make(chan Event)
	go r.run(ctx)
	return r.events
}

// Err returns the error that stopped the pipeline after the channel
// returned by Run has closed. It returns nil for a clean end of stream.
func (r *Reader) Err() error {
	if r.err == io.EOF {
		return nil
	}
	return r.err
}

func (r *Reader) run(ctx context.Context) {
	defer close(r.events)
	defer r.cancelOpenPipes()

	for {
		evt, err := r.next(ctx)
		if err != nil {
			r.err = err
			return
		}
		select {
		case r.events <- evt:
		case <-ctx.Done():
			r.err = ctx.Err()
			return
		}
	}
}

func (r *Reader) cancelOpenPipes() {
	for id, p := range r.openPipes {
		p.Cancel()
		delete(r.openPipes, id)
	}
}

// next parses and binds frames until the next public event is ready, or
// returns io.EOF at a clean end of stream. Leftover raw frames (unmatched
// STREAM_HEADER/DATA/TRAILER, unknown-type frames, manifest bodies that
// didn't type as a known record) are dropped silently, per spec.
//
// ctx is checked at the top of every iteration, not just while blocked in
// handleFrame's Pipe.SendCtx: a cancellation observed there must stop the
// whole pull loop immediately rather than let it carry on parsing frames
// for streams nobody will ever read again.
func (r *Reader) next(ctx context.Context) (Event, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		item, err := r.stage.Next()
		if err != nil {
			return nil, err
		}

		switch {
		case item.Config != nil:
			id, verr := item.Config.StreamID.ToValue()
			if verr != nil {
				return nil, errors.Wrap(verr, "reader: decoding stream.config streamId")
			}
			r.pendingConfigs[id] = pendingConfig{
				config:  item.Config,
				entries: resolve(item.Config, r.factories),
			}
			continue

		case item.Result != nil:
			end := StreamFileEnd(*item.Result)
			streamsEnded.Inc()
			return &end, nil

		default:
			evt, ok, herr := r.handleFrame(ctx, item.Header, item.Body)
			if herr != nil {
				return nil, herr
			}
			if ok {
				return evt, nil
			}
			continue
		}
	}
}

func (r *Reader) handleFrame(ctx context.Context, h frame.Header, body io.Reader) (Event, bool, error) {
	switch h.Type {
	case frame.StreamHeader:
		pc, ok := r.pendingConfigs[h.StreamID]
		if !ok {
			// Tolerant: no pending config for this stream id, nothing to
			// surface as a public event.
			r.log.Debugf("reader: STREAM_HEADER for stream %d with no pending config, dropping", h.StreamID)
			return nil, false, nil
		}
		delete(r.pendingConfigs, h.StreamID)

		p := pipe.New(r.highWaterMark)
		r.openPipes[h.StreamID] = p

		begin := &StreamFileBegin{
			StreamID: varint.ToObject(h.StreamID),
			Config:   *pc.config,
			pipe:     p,
			entries:  pc.entries,
		}
		streamsBegun.Inc()
		return begin, true, nil

	case frame.StreamData:
		chunk, err := ioutil.ReadAll(body)
		if err != nil {
			return nil, false, errors.Wrap(err, "reader: reading STREAM_DATA body")
		}
		if p, ok := r.openPipes[h.StreamID]; ok {
			if !p.SendCtx(ctx, chunk) {
				// Consumer cancelled, or the reader's own ctx was
				// cancelled while we were suspended here: stop tracking
				// so future data frames for this stream id are drained
				// without a Send attempt.
				delete(r.openPipes, h.StreamID)
			}
		} else {
			danglingDataFrames.Inc()
		}
		return nil, false, nil

	case frame.StreamTrailer:
		if p, ok := r.openPipes[h.StreamID]; ok {
			p.Close()
			delete(r.openPipes, h.StreamID)
		}
		return nil, false, nil

	default:
		return nil, false, nil
	}
}
