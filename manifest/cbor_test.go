// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package manifest

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/mabels/qsf/varint"
)

var _ = Describe("CBORSerializer", func() {
	// FilterConfig/FilterResult carry map[string]json.RawMessage, and
	// StreamConfigRecord/StreamResultRecord carry varint.Object, all of
	// which only implement MarshalJSON/UnmarshalJSON, not a CBOR-specific
	// marshaler. Neither type is opaque to the CBOR library, though:
	// json.RawMessage is a plain []byte underneath, so CBOR encodes it as a
	// byte string carrying the raw JSON text, and varint.Object's exported
	// Width/Value fields get their own CBOR map entries. Both decode back
	// byte-for-byte and field-for-field, just under a different wire shape
	// than the JSON tagged-union form MarshalJSON/UnmarshalJSON produce.
	// These tests exist to pin that down rather than assume it.
	It("round-trips a StreamConfigRecord with a three-filter pipeline", func() {
		ser, err := NewCBORSerializer()
		Expect(err).ToNot(HaveOccurred())

		combineID := "rec-1"
		want := StreamConfigRecord{
			Type:      TypeStreamConfig,
			StreamID:  varint.ToObject(12345),
			CombineID: &combineID,
			Filters: []FilterConfig{
				NewCIDConfig("rec-1"),
				NewZStrConfig("deflate-raw"),
				NewAESGCMConfig("fingerprint-abc"),
			},
		}

		data, err := ser.Encode(want)
		Expect(err).ToNot(HaveOccurred())

		var got StreamConfigRecord
		Expect(ser.Decode(data, &got)).To(Succeed())

		Expect(got.Type).To(Equal(want.Type))
		id, err := got.StreamID.ToValue()
		Expect(err).ToNot(HaveOccurred())
		wantID, err := want.StreamID.ToValue()
		Expect(err).ToNot(HaveOccurred())
		Expect(id).To(Equal(wantID))
		Expect(got.StreamID.Width).To(Equal(want.StreamID.Width))
		Expect(*got.CombineID).To(Equal(*want.CombineID))
		Expect(got.Filters).To(HaveLen(3))

		gotCombine, ok := got.Filters[0].CombineID()
		Expect(ok).To(BeTrue())
		Expect(gotCombine).To(Equal("rec-1"))
		gotCodec, ok := got.Filters[1].Codec()
		Expect(ok).To(BeTrue())
		Expect(gotCodec).To(Equal("deflate-raw"))
		gotKeyID, ok := got.Filters[2].KeyID()
		Expect(ok).To(BeTrue())
		Expect(gotKeyID).To(Equal("fingerprint-abc"))
	})

	It("round-trips a StreamResultRecord with mixed filter results", func() {
		ser, err := NewCBORSerializer()
		Expect(err).ToNot(HaveOccurred())

		want := StreamResultRecord{
			Type:     TypeStreamResult,
			StreamID: varint.ToObject(1 << 20),
			Offset:   64,
			Length:   4096,
			FilterResult: []FilterResult{
				NewCIDResult("bafkreiabc"),
				NewZStrResult("gzip"),
			},
		}

		data, err := ser.Encode(want)
		Expect(err).ToNot(HaveOccurred())

		var got StreamResultRecord
		Expect(ser.Decode(data, &got)).To(Succeed())

		Expect(got).To(Equal(want))
	})

	It("preserves a FilterConfig's arbitrary extra fields opaquely", func() {
		ser, err := NewCBORSerializer()
		Expect(err).ToNot(HaveOccurred())

		fc := NewZStrConfig("gzip")
		fc.Fields["custom"] = []byte(`{"nested":[1,2,3]}`)

		data, err := ser.Encode(fc)
		Expect(err).ToNot(HaveOccurred())

		var got FilterConfig
		Expect(ser.Decode(data, &got)).To(Succeed())

		Expect(got.Type).To(Equal(fc.Type))
		Expect(got.Fields).To(HaveLen(len(fc.Fields)))
		Expect(string(got.Fields["custom"])).To(Equal(`{"nested":[1,2,3]}`))
	})
})
