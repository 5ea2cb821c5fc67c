// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package frame

import (
	"bytes"
	"io"
	"io/ioutil"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

// slowReader trickles bytes one at a time regardless of how large the
// caller's buffer is, simulating an arbitrarily chunked network source.
type slowReader struct {
	buf []byte
}

func (s *slowReader) Read(p []byte) (int, error) {
	if len(s.buf) == 0 {
		return 0, io.EOF
	}
	p[0] = s.buf[0]
	s.buf = s.buf[1:]
	return 1, nil
}

var _ = Describe("ChunkReader", func() {
	buildContainer := func() []byte {
		frames := []Frame{
			{Type: ManifestEntry, StreamID: 0, Payload: []byte("config-0")},
			{Type: StreamHeader, StreamID: 0},
			{Type: StreamData, StreamID: 0, Payload: []byte("hello")},
			{Type: StreamTrailer, StreamID: 0},
			{Type: ManifestEntry, StreamID: 0, Payload: []byte("result-0")},
			{Type: ManifestEntry, StreamID: 1, Payload: []byte("config-1")},
			{Type: StreamHeader, StreamID: 1},
			{Type: StreamData, StreamID: 1, Payload: []byte("world")},
			{Type: StreamTrailer, StreamID: 1},
			{Type: ManifestEntry, StreamID: 1, Payload: []byte("result-1")},
		}
		var buf []byte
		for _, f := range frames {
			enc, err := Encode(f)
			Expect(err).ToNot(HaveOccurred())
			buf = append(buf, enc...)
		}
		return buf
	}

	readAll := func(cr *ChunkReader) []Frame {
		var got []Frame
		for {
			h, body, err := cr.Next()
			if err == io.EOF {
				break
			}
			Expect(err).ToNot(HaveOccurred())
			payload, err := ioutil.ReadAll(body)
			Expect(err).ToNot(HaveOccurred())
			got = append(got, Frame{Type: h.Type, StreamID: h.StreamID, Payload: payload})
		}
		return got
	}

	It("parses a whole-buffer container in one pass", func() {
		buf := buildContainer()
		cr := NewChunkReader(bytes.NewReader(buf))
		got := readAll(cr)
		Expect(got).To(HaveLen(10))
		Expect(got[2].Payload).To(Equal([]byte("hello")))
	})

	It("produces identical events when fed one byte at a time", func() {
		buf := buildContainer()

		wholeReader := NewChunkReader(bytes.NewReader(buf))
		want := readAll(wholeReader)

		trickled := NewChunkReader(&slowReader{buf: append([]byte(nil), buf...)})
		got := readAll(trickled)

		Expect(got).To(Equal(want))
	})

	It("reports a clean end of stream as io.EOF", func() {
		cr := NewChunkReader(bytes.NewReader(nil))
		_, _, err := cr.Next()
		Expect(err).To(Equal(io.EOF))
	})

	It("fails with a truncation error mid-header", func() {
		buf := buildContainer()
		cr := NewChunkReader(bytes.NewReader(buf[:1]))
		_, _, err := cr.Next()
		Expect(err).To(HaveOccurred())
		Expect(err).ToNot(Equal(io.EOF))
	})

	It("drains an unread body before parsing the next header", func() {
		buf := buildContainer()
		cr := NewChunkReader(bytes.NewReader(buf))

		h, _, err := cr.Next()
		Expect(err).ToNot(HaveOccurred())
		Expect(h.Type).To(Equal(ManifestEntry))
		// Deliberately don't read the body.

		h2, body2, err := cr.Next()
		Expect(err).ToNot(HaveOccurred())
		Expect(h2.Type).To(Equal(StreamHeader))
		payload, err := ioutil.ReadAll(body2)
		Expect(err).ToNot(HaveOccurred())
		Expect(payload).To(BeEmpty())
	})
})
