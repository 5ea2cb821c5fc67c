// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package frame implements QSF's on-wire frame layout: a fixed sequence of
// three varints (type, stream ID, payload length) followed by the payload
// itself.
package frame

import (
	"github.com/pkg/errors"

	"github.com/mabels/qsf/varint"
)

// Type is the frame type code carried in a frame header.
type Type uint8

// Frame type codes, per QSF's wire format.
const (
	StreamHeader  Type = 0x01
	StreamData    Type = 0x02
	StreamTrailer Type = 0x03
	ManifestEntry Type = 0x04
	Index         Type = 0x05 // reserved, not emitted by the core writer
	Footer        Type = 0x06 // reserved, not emitted by the core writer
)

// String returns a human-readable name for t, or "unknown" for a code the
// core doesn't recognize. Unrecognized codes are not an error: readers
// must tolerate and pass through frames of unknown type.
func (t Type) String() string {
	switch t {
	case StreamHeader:
		return "STREAM_HEADER"
	case StreamData:
		return "STREAM_DATA"
	case StreamTrailer:
		return "STREAM_TRAILER"
	case ManifestEntry:
		return "MANIFEST_ENTRY"
	case Index:
		return "INDEX"
	case Footer:
		return "FOOTER"
	default:
		return "unknown"
	}
}

// Frame is one on-wire frame: a typed, stream-scoped chunk of payload.
type Frame struct {
	Type     Type
	StreamID uint64
	Payload  []byte
}

// ErrTruncated is returned when a buffer ends before a frame's header or
// declared payload is fully present.
var ErrTruncated = varint.ErrTruncated

// Encode serializes f as varint(type) || varint(stream_id) || varint(len(payload)) || payload.
func Encode(f Frame) ([]byte, error) {
	buf, err := varint.EncodeUint64(uint64(f.Type))
	if err != nil {
		return nil, errors.Wrap(err, "encoding frame type")
	}

	buf, err = varint.AppendUint64(buf, f.StreamID)
	if err != nil {
		return nil, errors.Wrap(err, "encoding frame stream id")
	}

	buf, err = varint.AppendUint64(buf, uint64(len(f.Payload)))
	if err != nil {
		return nil, errors.Wrap(err, "encoding frame payload length")
	}

	return append(buf, f.Payload...), nil
}

// Decode reads one frame from buf starting at offset.
//
// It returns the decoded frame (whose Payload aliases buf, or is nil for an
// empty payload) and the number of bytes consumed. An unrecognized Type is not fatal: the frame is still
// decoded and returned with its raw type code so callers may choose to
// ignore it.
func Decode(buf []byte, offset int) (f Frame, bytesConsumed int, err error) {
	start := offset

	typeVal, n, err := varint.Decode(buf, offset)
	if err != nil {
		return Frame{}, 0, errors.Wrap(err, "decoding frame type")
	}
	offset += n

	streamID, n, err := varint.Decode(buf, offset)
	if err != nil {
		return Frame{}, 0, errors.Wrap(err, "decoding frame stream id")
	}
	offset += n

	length, n, err := varint.Decode(buf, offset)
	if err != nil {
		return Frame{}, 0, errors.Wrap(err, "decoding frame payload length")
	}
	offset += n

	if uint64(offset)+length > uint64(len(buf)) {
		return Frame{}, 0, ErrTruncated
	}

	var payload []byte
	if length > 0 {
		payload = buf[offset : offset+int(length)]
	}
	offset += int(length)

	return Frame{
		Type:     Type(typeVal),
		StreamID: streamID,
		Payload:  payload,
	}, offset - start, nil
}

// Iterator is a lazy, pull-based sequence of (frame, offset) pairs over a
// fully-buffered byte slice. An empty buffer yields no items.
type Iterator struct {
	buf    []byte
	offset int
}

// NewIterator returns an Iterator over buf, starting at offset 0.
func NewIterator(buf []byte) *Iterator {
	return &Iterator{buf: buf}
}

// Next decodes the next frame. ok is false (with a nil err) once the buffer
// is exhausted. offset is the byte offset of the returned frame's header
// within the original buffer.
func (it *Iterator) Next() (f Frame, offset int, ok bool, err error) {
	if it.offset >= len(it.buf) {
		return Frame{}, 0, false, nil
	}

	offset = it.offset
	f, n, err := Decode(it.buf, it.offset)
	if err != nil {
		return Frame{}, 0, false, err
	}
	it.offset += n
	return f, offset, true, nil
}
