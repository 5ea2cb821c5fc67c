// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package frame

import (
	"bufio"
	"io"

	"github.com/pkg/errors"

	"github.com/mabels/qsf/varint"
)

// Header is a decoded frame header: type, stream ID, and declared payload
// length, without the payload bytes themselves.
type Header struct {
	Type     Type
	StreamID uint64
	Length   uint64
}

// ChunkReader converts an arbitrarily chunked io.Reader into a sequence of
// (Header, body) items, where body is an io.Reader bounded to exactly
// Header.Length bytes.
//
// ChunkReader relies on the underlying io.Reader blocking when data isn't
// yet available; that block is this Go rendering of the cooperative
// suspension described by the spec this format is built to. bufio.Reader
// stitches together varints and payloads that arrive split across
// underlying Read calls, mirroring the teacher's protostream.Decoder.
type ChunkReader struct {
	br *bufio.Reader

	// lastBody is the LimitedReader handed back by the previous Next call.
	// Next drains any bytes the caller left unread before parsing the next
	// header, so a caller that doesn't fully consume a body doesn't corrupt
	// the stream.
	lastBody *io.LimitedReader
}

// NewChunkReader returns a ChunkReader over r.
func NewChunkReader(r io.Reader) *ChunkReader {
	return &ChunkReader{br: bufio.NewReaderSize(r, 64*1024)}
}

// readVarint reads one varint from br: it reads the first byte to learn the
// encoded width, reads the remaining bytes of that width, and decodes the
// result with varint.Decode.
func readVarint(br *bufio.Reader) (uint64, error) {
	first, err := br.ReadByte()
	if err != nil {
		return 0, err
	}

	w := 1 << (first >> 6)
	buf := make([]byte, w)
	buf[0] = first
	if w > 1 {
		if _, err := io.ReadFull(br, buf[1:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return 0, varint.ErrTruncated
			}
			return 0, err
		}
	}

	v, _, err := varint.Decode(buf, 0)
	return v, err
}

// Next parses and returns the next frame's header and a body reader bounded
// to exactly Length bytes.
//
// A clean EOF before any bytes of the next header are read is reported as
// io.EOF (end of stream); any other truncation is fatal and reported as
// ErrTruncated. Next drains any unread bytes remaining in the previous
// body before parsing the next header.
func (cr *ChunkReader) Next() (Header, io.Reader, error) {
	if cr.lastBody != nil {
		if _, err := io.Copy(io.Discard, cr.lastBody); err != nil {
			return Header{}, nil, errors.Wrap(err, "draining unread frame body")
		}
		if cr.lastBody.N > 0 {
			return Header{}, nil, errors.Wrap(varint.ErrTruncated, "reading frame payload")
		}
		cr.lastBody = nil
	}

	typeVal, err := readVarint(cr.br)
	if err != nil {
		if err == io.EOF {
			return Header{}, nil, io.EOF
		}
		return Header{}, nil, errors.Wrap(mapTruncation(err), "reading frame type")
	}

	streamID, err := readVarint(cr.br)
	if err != nil {
		return Header{}, nil, errors.Wrap(mapTruncation(err), "reading frame stream id")
	}

	length, err := readVarint(cr.br)
	if err != nil {
		return Header{}, nil, errors.Wrap(mapTruncation(err), "reading frame payload length")
	}

	h := Header{Type: Type(typeVal), StreamID: streamID, Length: length}
	body := &io.LimitedReader{R: cr.br, N: int64(length)}
	cr.lastBody = body
	return h, body, nil
}

func mapTruncation(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return varint.ErrTruncated
	}
	return err
}
