// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package filter

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"io"

	"github.com/pkg/errors"

	"github.com/mabels/qsf/manifest"
)

// KeyFingerprintSize is the number of raw digest bytes (before hex
// encoding) used for a key's fingerprint, per spec.md §4.6: first 8 bytes
// of SHA-256(raw key), producing a 16-character hex string.
const KeyFingerprintSize = 8

// KeyFingerprint returns the deterministic, collision-resistant
// fingerprint QSF uses to reference a key from manifest config/result
// records without embedding key material.
func KeyFingerprint(key []byte) string {
	sum := sha256.Sum256(key)
	return hex.EncodeToString(sum[:KeyFingerprintSize])
}

// KeyResolver looks up raw key bytes by fingerprint, for decoder factory
// use. support/keystore provides an on-disk implementation.
type KeyResolver interface {
	Lookup(keyID string) (key []byte, ok bool)
}

// AESGCMEncoder encrypts each input chunk independently: one input chunk
// becomes exactly one output chunk (IV ‖ ciphertext ‖ tag), so streaming
// decrypt never needs to buffer across chunk boundaries.
type AESGCMEncoder struct {
	keyID string
	aead  cipher.AEAD
}

// NewAESGCMEncoder builds an encoder from a raw AES key (16, 24, or 32
// bytes, selecting AES-128/192/256).
func NewAESGCMEncoder(key []byte) (*AESGCMEncoder, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return &AESGCMEncoder{keyID: KeyFingerprint(key), aead: aead}, nil
}

// Config implements EncoderFilter.
func (e *AESGCMEncoder) Config() manifest.FilterConfig {
	return manifest.NewAESGCMConfig(e.keyID)
}

// Encoder implements EncoderFilter.
func (e *AESGCMEncoder) Encoder() Transform { return &aesGCMEncodeTransform{e: e} }

// Result implements EncoderFilter.
func (e *AESGCMEncoder) Result() (manifest.FilterResult, bool) {
	return manifest.NewAESGCMResult(e.keyID), true
}

type aesGCMEncodeTransform struct{ e *AESGCMEncoder }

func (t *aesGCMEncodeTransform) Process(chunk []byte) ([]byte, error) {
	iv := make([]byte, t.e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, errors.Wrap(err, "filter: generating AES-GCM IV")
	}
	return t.e.aead.Seal(iv, iv, chunk, nil), nil
}

func (t *aesGCMEncodeTransform) Flush() ([]byte, error) { return nil, nil }

// AESGCMDecoder is the inverse of AESGCMEncoder: it splits each input
// chunk into its IV and ciphertext and decrypts, preserving the same
// one-chunk-in/one-chunk-out contract.
type AESGCMDecoder struct {
	aead cipher.AEAD
}

// NewAESGCMDecoder builds a decoder from the raw AES key.
func NewAESGCMDecoder(key []byte) (*AESGCMDecoder, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return &AESGCMDecoder{aead: aead}, nil
}

// Decode implements DecoderFilter.
func (d *AESGCMDecoder) Decode() Transform { return &aesGCMDecodeTransform{d: d} }

type aesGCMDecodeTransform struct{ d *AESGCMDecoder }

func (t *aesGCMDecodeTransform) Process(chunk []byte) ([]byte, error) {
	n := t.d.aead.NonceSize()
	if len(chunk) < n {
		return nil, errors.Wrapf(ErrDecryptFailure, "chunk of %d bytes shorter than IV", len(chunk))
	}
	iv, ciphertext := chunk[:n], chunk[n:]
	plaintext, err := t.d.aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, errors.Wrap(ErrDecryptFailure, err.Error())
	}
	return plaintext, nil
}

func (t *aesGCMDecodeTransform) Flush() ([]byte, error) { return nil, nil }

// AESGCMDecoderFactory resolves AES-GCM.config entries by looking up the
// config's keyId fingerprint in Keys. Entries whose key isn't found are
// left unresolved, surfacing as UnresolvedFilter at decode() time rather
// than failing the whole reader.
type AESGCMDecoderFactory struct {
	Keys KeyResolver
}

// Detect implements DecoderFactory.
func (f AESGCMDecoderFactory) Detect(_ *manifest.StreamConfigRecord, entries []Entry) []Entry {
	if f.Keys == nil {
		return entries
	}
	for i, e := range entries {
		if e.Instance != nil || e.Input.Type != manifest.TypeAESGCMConfig {
			continue
		}
		keyID, ok := e.Input.KeyID()
		if !ok {
			continue
		}
		key, ok := f.Keys.Lookup(keyID)
		if !ok {
			continue
		}
		dec, err := NewAESGCMDecoder(key)
		if err != nil {
			continue
		}
		entries[i].Instance = dec
	}
	return entries
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "filter: creating AES cipher")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "filter: creating AES-GCM")
	}
	return aead, nil
}
