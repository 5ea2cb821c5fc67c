// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package filter

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"

	"github.com/mabels/qsf/manifest"
)

// ZStr codec names, matching the Node.js zlib / Web CompressionStream
// naming convention this spec's manifest JSON is drawn from.
const (
	CodecDeflate    = "deflate"     // zlib-wrapped, RFC 1950
	CodecDeflateRaw = "deflate-raw" // raw, RFC 1951
	CodecGzip       = "gzip"        // RFC 1952
)

type flusher interface {
	Flush() error
}

// ZStrEncoder wraps klauspost/compress's flate/zlib/gzip writers behind
// the chunk-in/chunk-out Transform contract: each Process call writes the
// chunk into the underlying compressor and forces it to emit whatever
// compressed bytes that produced.
type ZStrEncoder struct {
	codec string
	buf   bytes.Buffer
	wc    io.WriteCloser
	fl    flusher
}

// NewZStrEncoder builds an encoder for the given codec name.
func NewZStrEncoder(codec string) (*ZStrEncoder, error) {
	e := &ZStrEncoder{codec: codec}
	switch codec {
	case CodecDeflateRaw:
		w, err := flate.NewWriter(&e.buf, flate.DefaultCompression)
		if err != nil {
			return nil, errors.Wrap(err, "filter: creating deflate-raw writer")
		}
		e.wc, e.fl = w, w
	case CodecDeflate:
		w, err := zlib.NewWriterLevel(&e.buf, zlib.DefaultCompression)
		if err != nil {
			return nil, errors.Wrap(err, "filter: creating deflate writer")
		}
		e.wc, e.fl = w, w
	case CodecGzip:
		w, err := gzip.NewWriterLevel(&e.buf, gzip.DefaultCompression)
		if err != nil {
			return nil, errors.Wrap(err, "filter: creating gzip writer")
		}
		e.wc, e.fl = w, w
	default:
		return nil, errors.Errorf("filter: unknown ZStr codec %q", codec)
	}
	return e, nil
}

// Config implements EncoderFilter.
func (e *ZStrEncoder) Config() manifest.FilterConfig { return manifest.NewZStrConfig(e.codec) }

// Encoder implements EncoderFilter.
func (e *ZStrEncoder) Encoder() Transform { return &zstrEncodeTransform{e: e} }

// Result implements EncoderFilter.
func (e *ZStrEncoder) Result() (manifest.FilterResult, bool) {
	return manifest.NewZStrResult(e.codec), true
}

func (e *ZStrEncoder) drain() []byte {
	out := append([]byte(nil), e.buf.Bytes()...)
	e.buf.Reset()
	return out
}

type zstrEncodeTransform struct{ e *ZStrEncoder }

func (t *zstrEncodeTransform) Process(chunk []byte) ([]byte, error) {
	if _, err := t.e.wc.Write(chunk); err != nil {
		return nil, errors.Wrap(err, "filter: compressing chunk")
	}
	if err := t.e.fl.Flush(); err != nil {
		return nil, errors.Wrap(err, "filter: flushing compressor")
	}
	return t.e.drain(), nil
}

func (t *zstrEncodeTransform) Flush() ([]byte, error) {
	if err := t.e.wc.Close(); err != nil {
		return nil, errors.Wrap(err, "filter: closing compressor")
	}
	return t.e.drain(), nil
}

// ZStrDecoder is the inverse of ZStrEncoder. It buffers compressed bytes
// across Process calls and inflates the whole stream at Flush, since
// klauspost's inflate readers need a complete byte source rather than an
// incrementally-fed one; the transform contract permits a stage to return
// its output entirely at Flush.
type ZStrDecoder struct {
	codec string
	in    bytes.Buffer
}

// NewZStrDecoder builds a decoder for the given codec name.
func NewZStrDecoder(codec string) (*ZStrDecoder, error) {
	switch codec {
	case CodecDeflateRaw, CodecDeflate, CodecGzip:
		return &ZStrDecoder{codec: codec}, nil
	default:
		return nil, errors.Errorf("filter: unknown ZStr codec %q", codec)
	}
}

// Decode implements DecoderFilter.
func (d *ZStrDecoder) Decode() Transform { return &zstrDecodeTransform{d: d} }

type zstrDecodeTransform struct{ d *ZStrDecoder }

func (t *zstrDecodeTransform) Process(chunk []byte) ([]byte, error) {
	t.d.in.Write(chunk)
	return nil, nil
}

func (t *zstrDecodeTransform) Flush() ([]byte, error) {
	var r io.ReadCloser
	var err error
	switch t.d.codec {
	case CodecDeflateRaw:
		r = flate.NewReader(&t.d.in)
	case CodecDeflate:
		r, err = zlib.NewReader(&t.d.in)
	case CodecGzip:
		r, err = gzip.NewReader(&t.d.in)
	}
	if err != nil {
		return nil, errors.Wrap(err, "filter: opening decompressor")
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "filter: decompressing")
	}
	return out, nil
}

// ZStrDecoderFactory resolves ZStr.config entries. The codec is public
// information carried in the config itself, so this factory (like
// CIDDecoderFactory) is always prepended by the reader, per spec.md §4.8.
type ZStrDecoderFactory struct{}

// Detect implements DecoderFactory.
func (ZStrDecoderFactory) Detect(_ *manifest.StreamConfigRecord, entries []Entry) []Entry {
	for i, e := range entries {
		if e.Instance != nil || e.Input.Type != manifest.TypeZStrConfig {
			continue
		}
		codec, ok := e.Input.Codec()
		if !ok {
			continue
		}
		dec, err := NewZStrDecoder(codec)
		if err != nil {
			continue
		}
		entries[i].Instance = dec
	}
	return entries
}
