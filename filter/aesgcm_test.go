// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package filter

import (
	"bytes"
	"crypto/rand"

	"github.com/pkg/errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func randomKey() []byte {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	Expect(err).ToNot(HaveOccurred())
	return key
}

type staticKeyResolver map[string][]byte

func (r staticKeyResolver) Lookup(keyID string) ([]byte, bool) {
	k, ok := r[keyID]
	return k, ok
}

var _ = Describe("AES-GCM filter", func() {
	It("round-trips plaintext with the correct key", func() {
		key := randomKey()
		enc, err := NewAESGCMEncoder(key)
		Expect(err).ToNot(HaveOccurred())

		ciphertext := runEncode(enc.Encoder(), []byte("top secret payload"))

		dec, err := NewAESGCMDecoder(key)
		Expect(err).ToNot(HaveOccurred())
		plaintext, err := dec.Decode().Process(ciphertext)
		Expect(err).ToNot(HaveOccurred())
		Expect(plaintext).To(Equal([]byte("top secret payload")))
	})

	It("fails with ErrDecryptFailure under a different key", func() {
		key := randomKey()
		enc, err := NewAESGCMEncoder(key)
		Expect(err).ToNot(HaveOccurred())
		ciphertext := runEncode(enc.Encoder(), []byte("top secret payload"))

		wrongKey := randomKey()
		dec, err := NewAESGCMDecoder(wrongKey)
		Expect(err).ToNot(HaveOccurred())
		_, err = dec.Decode().Process(ciphertext)
		Expect(errors.Is(err, ErrDecryptFailure)).To(BeTrue())
	})

	It("produces distinct ciphertexts for the same plaintext", func() {
		key := randomKey()
		enc, err := NewAESGCMEncoder(key)
		Expect(err).ToNot(HaveOccurred())

		a, err := enc.Encoder().Process([]byte("same content"))
		Expect(err).ToNot(HaveOccurred())
		b, err := enc.Encoder().Process([]byte("same content"))
		Expect(err).ToNot(HaveOccurred())
		Expect(bytes.Equal(a, b)).To(BeFalse())
	})

	It("preserves a one-chunk-in one-chunk-out contract", func() {
		key := randomKey()
		enc, err := NewAESGCMEncoder(key)
		Expect(err).ToNot(HaveOccurred())
		x := enc.Encoder()

		out1, err := x.Process([]byte("chunk one"))
		Expect(err).ToNot(HaveOccurred())
		out2, err := x.Process([]byte("chunk two"))
		Expect(err).ToNot(HaveOccurred())
		Expect(out1).ToNot(Equal(out2))

		flushed, err := x.Flush()
		Expect(err).ToNot(HaveOccurred())
		Expect(flushed).To(BeEmpty())
	})

	It("resolves via AESGCMDecoderFactory by keyId fingerprint", func() {
		key := randomKey()
		enc, err := NewAESGCMEncoder(key)
		Expect(err).ToNot(HaveOccurred())
		cfg := enc.Config()
		keyID, ok := cfg.KeyID()
		Expect(ok).To(BeTrue())

		factory := AESGCMDecoderFactory{Keys: staticKeyResolver{keyID: key}}
		entries := factory.Detect(nil, []Entry{{Input: cfg}})
		Expect(entries[0].Instance).ToNot(BeNil())
	})

	It("leaves the entry unresolved when the key isn't found", func() {
		enc, err := NewAESGCMEncoder(randomKey())
		Expect(err).ToNot(HaveOccurred())
		cfg := enc.Config()

		factory := AESGCMDecoderFactory{Keys: staticKeyResolver{}}
		entries := factory.Detect(nil, []Entry{{Input: cfg}})
		Expect(entries[0].Instance).To(BeNil())
	})

	It("computes a 16-character deterministic hex fingerprint", func() {
		key := randomKey()
		a := KeyFingerprint(key)
		b := KeyFingerprint(key)
		Expect(a).To(Equal(b))
		Expect(a).To(HaveLen(16))

		other := KeyFingerprint(randomKey())
		Expect(a).ToNot(Equal(other))
	})
})
