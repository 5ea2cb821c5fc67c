// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package filter

import (
	"strings"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Compose", func() {
	It("round-trips a three-filter CID+ZStr+AES-GCM pipeline", func() {
		key := randomKey()
		original := []byte(strings.Repeat("x", 2200))

		cidEnc := NewCIDEncoder("")
		zstrEnc, err := NewZStrEncoder(CodecDeflateRaw)
		Expect(err).ToNot(HaveOccurred())
		aesEnc, err := NewAESGCMEncoder(key)
		Expect(err).ToNot(HaveOccurred())

		encodePipe := Compose([]Transform{cidEnc.Encoder(), zstrEnc.Encoder(), aesEnc.Encoder()})

		// Each Process/Flush call on the composed pipeline yields one
		// physical wire chunk (one STREAM_DATA frame payload in the
		// writer); AES-GCM's one-chunk-in/one-chunk-out contract means
		// these must stay separate rather than being concatenated into
		// a single byte stream.
		chunk1, err := encodePipe.Process(original)
		Expect(err).ToNot(HaveOccurred())
		chunk2, err := encodePipe.Flush()
		Expect(err).ToNot(HaveOccurred())

		cidResult, ok := cidEnc.Result()
		Expect(ok).To(BeTrue())
		cid, _ := cidResult.CID()
		Expect(cid).To(HavePrefix("bafkrei"))

		// Decode order is the reverse of encode order: AES-GCM first
		// (it owns the physical chunk boundary), then ZStr, then CID.
		aesDec, err := NewAESGCMDecoder(key)
		Expect(err).ToNot(HaveOccurred())
		zstrDec, err := NewZStrDecoder(CodecDeflateRaw)
		Expect(err).ToNot(HaveOccurred())
		cidDec := NewCIDDecoder(cid)

		decodePipe := Compose([]Transform{aesDec.Decode(), zstrDec.Decode(), cidDec.Decode()})
		var plaintext []byte
		for _, c := range [][]byte{chunk1, chunk2} {
			out, err := decodePipe.Process(c)
			Expect(err).ToNot(HaveOccurred())
			plaintext = append(plaintext, out...)
		}
		final, err := decodePipe.Flush()
		Expect(err).ToNot(HaveOccurred())
		plaintext = append(plaintext, final...)

		Expect(plaintext).To(Equal(original))
	})
})
