// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package manifest

import (
	"bytes"
	"encoding/json"
	"io"
	"io/ioutil"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/mabels/qsf/frame"
	"github.com/mabels/qsf/varint"
)

func encodeFrame(f frame.Frame) []byte {
	enc, err := frame.Encode(f)
	Expect(err).ToNot(HaveOccurred())
	return enc
}

var _ = Describe("Stage", func() {
	It("types a stream.config MANIFEST_ENTRY frame", func() {
		rec := StreamConfigRecord{
			Type:     TypeStreamConfig,
			StreamID: varint.ToObject(0),
			Filters:  []FilterConfig{NewCIDConfig("")},
		}
		payload, err := DefaultSerializer.Encode(rec)
		Expect(err).ToNot(HaveOccurred())

		buf := encodeFrame(frame.Frame{Type: frame.ManifestEntry, StreamID: 0, Payload: payload})
		st := NewStage(frame.NewChunkReader(bytes.NewReader(buf)), nil)

		item, err := st.Next()
		Expect(err).ToNot(HaveOccurred())
		Expect(item.Config).ToNot(BeNil())
		Expect(item.Result).To(BeNil())
		Expect(item.ShapeErr).To(BeNil())
		Expect(item.Config.Type).To(Equal(TypeStreamConfig))
	})

	It("types a stream.result MANIFEST_ENTRY frame", func() {
		rec := StreamResultRecord{
			Type:     TypeStreamResult,
			StreamID: varint.ToObject(0),
			Offset:   3,
			Length:   5,
		}
		payload, err := DefaultSerializer.Encode(rec)
		Expect(err).ToNot(HaveOccurred())

		buf := encodeFrame(frame.Frame{Type: frame.ManifestEntry, StreamID: 0, Payload: payload})
		st := NewStage(frame.NewChunkReader(bytes.NewReader(buf)), nil)

		item, err := st.Next()
		Expect(err).ToNot(HaveOccurred())
		Expect(item.Result).ToNot(BeNil())
		Expect(item.Result.Offset).To(Equal(uint64(3)))
	})

	It("passes through a MANIFEST_ENTRY with an unrecognized type as UnknownManifestShape", func() {
		payload, err := json.Marshal(map[string]any{"type": "future.record", "x": 1})
		Expect(err).ToNot(HaveOccurred())

		buf := encodeFrame(frame.Frame{Type: frame.ManifestEntry, StreamID: 0, Payload: payload})
		st := NewStage(frame.NewChunkReader(bytes.NewReader(buf)), nil)

		item, err := st.Next()
		Expect(err).ToNot(HaveOccurred())
		Expect(item.Config).To(BeNil())
		Expect(item.Result).To(BeNil())
		Expect(item.ShapeErr).ToNot(BeNil())
		Expect(item.ShapeErr.Kind).To(Equal(UnknownManifestShape))
		Expect(item.Raw).To(Equal(payload))
	})

	It("passes through a malformed MANIFEST_ENTRY body as ManifestDecode", func() {
		buf := encodeFrame(frame.Frame{Type: frame.ManifestEntry, StreamID: 0, Payload: []byte("not json")})
		st := NewStage(frame.NewChunkReader(bytes.NewReader(buf)), nil)

		item, err := st.Next()
		Expect(err).ToNot(HaveOccurred())
		Expect(item.ShapeErr).ToNot(BeNil())
		Expect(item.ShapeErr.Kind).To(Equal(ManifestDecode))
	})

	It("leaves non-MANIFEST_ENTRY bodies unread for the caller", func() {
		buf := encodeFrame(frame.Frame{Type: frame.StreamData, StreamID: 0, Payload: []byte("hello")})
		st := NewStage(frame.NewChunkReader(bytes.NewReader(buf)), nil)

		item, err := st.Next()
		Expect(err).ToNot(HaveOccurred())
		Expect(item.Header.Type).To(Equal(frame.StreamData))
		Expect(item.Body).ToNot(BeNil())

		payload, err := ioutil.ReadAll(item.Body)
		Expect(err).ToNot(HaveOccurred())
		Expect(payload).To(Equal([]byte("hello")))
	})

	It("reports a clean end of stream as io.EOF", func() {
		st := NewStage(frame.NewChunkReader(bytes.NewReader(nil)), nil)
		_, err := st.Next()
		Expect(err).To(Equal(io.EOF))
	})
})
