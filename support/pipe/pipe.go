// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package pipe implements a bounded, cancellable channel of byte chunks:
// the binder stage's per-stream backpressure mechanism.
package pipe

import (
	"context"
	"io"
	"sync"
)

// DefaultHighWaterMark is the default number of buffered chunks a Pipe
// holds before Send blocks, per spec.md §5.
const DefaultHighWaterMark = 16

// Pipe is a single-producer, single-consumer bounded channel of byte
// chunks with cancellation, modeled on the teacher's device.D.DoneC()
// pattern: closing done unblocks any goroutine currently suspended on a
// Send.
type Pipe struct {
	c    chan []byte
	done chan struct{}

	closeOnce  sync.Once
	cancelOnce sync.Once
}

// New returns a Pipe buffered to highWaterMark chunks. A highWaterMark of
// 0 or less uses DefaultHighWaterMark.
func New(highWaterMark int) *Pipe {
	if highWaterMark <= 0 {
		highWaterMark = DefaultHighWaterMark
	}
	return &Pipe{
		c:    make(chan []byte, highWaterMark),
		done: make(chan struct{}),
	}
}

// Send delivers chunk to the reader, suspending the caller if the pipe is
// at capacity until the reader pulls or the pipe is cancelled.
// It returns false if the pipe was cancelled before delivery. Send must
// not be called after Close.
func (p *Pipe) Send(chunk []byte) bool {
	select {
	case p.c <- chunk:
		return true
	case <-p.done:
		return false
	}
}

// SendCtx behaves like Send but also wakes if ctx is done, so a producer
// suspended on one backpressured stream's Send can still be released by an
// outer cancellation that has nothing to do with that particular stream.
// It returns false without delivering chunk if ctx is done first.
func (p *Pipe) SendCtx(ctx context.Context, chunk []byte) bool {
	select {
	case p.c <- chunk:
		return true
	case <-p.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// Close marks normal completion (STREAM_TRAILER received): the reader
// observes a clean end of stream after draining any chunks already sent.
func (p *Pipe) Close() {
	p.closeOnce.Do(func() { close(p.c) })
}

// Cancel unblocks any goroutine suspended in Send and causes Reader to
// return io.EOF immediately, discarding any chunks still buffered. It is
// safe to call Cancel and Close concurrently or more than once.
func (p *Pipe) Cancel() {
	p.cancelOnce.Do(func() { close(p.done) })
}

// Cancelled reports whether Cancel has been called.
func (p *Pipe) Cancelled() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Reader returns an io.Reader that consumes the pipe's chunks in order.
func (p *Pipe) Reader() io.Reader { return &pipeReader{p: p} }

// Recv returns the next chunk whole, exactly as it was Send, unlike
// Reader's io.Reader adapter which may split a chunk across two Read
// calls. Decoders whose Transform requires one-input-chunk-per-
// physical-frame fidelity (AES-GCM) must use Recv rather than Reader.
// It returns io.EOF once Close has been observed with nothing buffered,
// or immediately if the pipe has been cancelled.
func (p *Pipe) Recv() ([]byte, error) {
	select {
	case <-p.done:
		return nil, io.EOF
	default:
	}

	select {
	case chunk, ok := <-p.c:
		if !ok {
			return nil, io.EOF
		}
		return chunk, nil
	case <-p.done:
		return nil, io.EOF
	}
}

type pipeReader struct {
	p   *Pipe
	buf []byte
}

// Read implements io.Reader. It returns io.EOF once Close has been
// observed with no chunks remaining, or immediately if the pipe has been
// cancelled.
func (r *pipeReader) Read(dst []byte) (int, error) {
	for len(r.buf) == 0 {
		select {
		case <-r.p.done:
			return 0, io.EOF
		default:
		}

		select {
		case chunk, ok := <-r.p.c:
			if !ok {
				return 0, io.EOF
			}
			r.buf = chunk
		case <-r.p.done:
			return 0, io.EOF
		}
	}

	n := copy(dst, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}
