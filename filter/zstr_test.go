// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package filter

import (
	"strings"

	. "github.com/onsi/ginkgo"
	"github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
)

var _ = Describe("ZStr filter", func() {
	table.DescribeTable("round-trips through each codec and reduces size on compressible input",
		func(codec string) {
			original := []byte(strings.Repeat("compress me ", 200))

			enc, err := NewZStrEncoder(codec)
			Expect(err).ToNot(HaveOccurred())
			compressed := runEncode(enc.Encoder(), original)
			Expect(len(compressed)).To(BeNumerically("<", len(original)))

			dec, err := NewZStrDecoder(codec)
			Expect(err).ToNot(HaveOccurred())
			xform := dec.Decode()
			_, err = xform.Process(compressed)
			Expect(err).ToNot(HaveOccurred())
			out, err := xform.Flush()
			Expect(err).ToNot(HaveOccurred())
			Expect(out).To(Equal(original))
		},
		table.Entry("deflate", CodecDeflate),
		table.Entry("deflate-raw", CodecDeflateRaw),
		table.Entry("gzip", CodecGzip),
	)

	It("rejects an unknown codec", func() {
		_, err := NewZStrEncoder("brotli")
		Expect(err).To(HaveOccurred())
	})

	It("carries the codec name in its config and result", func() {
		enc, err := NewZStrEncoder(CodecGzip)
		Expect(err).ToNot(HaveOccurred())

		cfg := enc.Config()
		codec, ok := cfg.Codec()
		Expect(ok).To(BeTrue())
		Expect(codec).To(Equal(CodecGzip))

		result, ok := enc.Result()
		Expect(ok).To(BeTrue())
		codec, ok = result.Codec()
		Expect(ok).To(BeTrue())
		Expect(codec).To(Equal(CodecGzip))
	})
})
