// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package frame

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestFrame(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Testing frame")
}

var _ = Describe("Encode/Decode", func() {
	It("round-trips a frame with an empty payload using the minimum 3-byte header", func() {
		f := Frame{Type: StreamHeader, StreamID: 0}
		enc, err := Encode(f)
		Expect(err).ToNot(HaveOccurred())
		Expect(enc).To(HaveLen(3))

		got, n, err := Decode(enc, 0)
		Expect(err).ToNot(HaveOccurred())
		Expect(n).To(Equal(3))
		Expect(got).To(Equal(f))
	})

	It("round-trips a frame with a payload and large ids", func() {
		f := Frame{Type: StreamData, StreamID: 1 << 20, Payload: []byte("hello world")}
		enc, err := Encode(f)
		Expect(err).ToNot(HaveOccurred())

		got, n, err := Decode(enc, 0)
		Expect(err).ToNot(HaveOccurred())
		Expect(n).To(Equal(len(enc)))
		Expect(got.Type).To(Equal(f.Type))
		Expect(got.StreamID).To(Equal(f.StreamID))
		Expect(got.Payload).To(Equal(f.Payload))
	})

	It("decodes but does not fail on an unknown type code", func() {
		f := Frame{Type: 0x7F, StreamID: 3, Payload: []byte("x")}
		enc, err := Encode(f)
		Expect(err).ToNot(HaveOccurred())

		got, _, err := Decode(enc, 0)
		Expect(err).ToNot(HaveOccurred())
		Expect(got.Type).To(Equal(Type(0x7F)))
	})

	It("fails with ErrTruncated when the payload is short", func() {
		f := Frame{Type: StreamData, StreamID: 1, Payload: []byte("hello")}
		enc, err := Encode(f)
		Expect(err).ToNot(HaveOccurred())

		_, _, err = Decode(enc[:len(enc)-2], 0)
		Expect(err).To(HaveOccurred())
		Expect(err).To(MatchError(ErrTruncated))
	})
})

var _ = Describe("Iterator", func() {
	It("yields no items for an empty buffer", func() {
		it := NewIterator(nil)
		_, _, ok, err := it.Next()
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("iterates every frame in a concatenated buffer, tracking offsets", func() {
		frames := []Frame{
			{Type: ManifestEntry, StreamID: 0, Payload: []byte("cfg")},
			{Type: StreamHeader, StreamID: 0},
			{Type: StreamData, StreamID: 0, Payload: []byte("data")},
			{Type: StreamTrailer, StreamID: 0},
		}

		var buf []byte
		var offsets []int
		for _, f := range frames {
			offsets = append(offsets, len(buf))
			enc, err := Encode(f)
			Expect(err).ToNot(HaveOccurred())
			buf = append(buf, enc...)
		}

		it := NewIterator(buf)
		for i, want := range frames {
			got, offset, ok, err := it.Next()
			Expect(err).ToNot(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(got).To(Equal(want))
			Expect(offset).To(Equal(offsets[i]))
		}

		_, _, ok, err := it.Next()
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeFalse())
	})
})
