// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package filter

import (
	"crypto/sha256"
	"encoding/base32"
	"encoding/json"
	"hash"

	"github.com/pkg/errors"

	"github.com/mabels/qsf/manifest"
)

// cidBase32 is the RFC 4648 lowercase base32 alphabet without padding,
// the encoding that produces CIDv1's "bafkrei..." prefix once the
// multibase "b" tag is prepended.
var cidBase32 = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)

// encodeCIDv1Raw wraps a 32-byte SHA-256 digest as a CIDv1 identifier with
// multicodec "raw" (0x55) and multihash "sha2-256" (0x12), base32-lowercase
// encoded with the "b" multibase prefix.
func encodeCIDv1Raw(sha256Sum []byte) (string, error) {
	if len(sha256Sum) != sha256.Size {
		return "", errors.Errorf("filter: sha-256 digest must be %d bytes, got %d", sha256.Size, len(sha256Sum))
	}
	buf := make([]byte, 0, 4+sha256.Size)
	buf = append(buf, 0x01,             // CID version 1
		0x55,                       // multicodec: raw
		0x12, byte(sha256.Size)) // multihash: sha2-256, 32-byte digest
	buf = append(buf, sha256Sum...)
	return "b" + cidBase32.EncodeToString(buf), nil
}

// CIDEncoder is the CID filter's encode side: a pass-through transform
// that accumulates a SHA-256 hash over every plaintext byte and resolves
// its CID on flush. combineID, if non-empty, is carried in its config so
// a CIDCollector can group related streams.
type CIDEncoder struct {
	combineID string
	hash      hash.Hash
	cid       string
	resolved  bool
}

// NewCIDEncoder returns a fresh, single-use CID encoder.
func NewCIDEncoder(combineID string) *CIDEncoder {
	return &CIDEncoder{combineID: combineID, hash: sha256.New()}
}

// Config implements EncoderFilter.
func (e *CIDEncoder) Config() manifest.FilterConfig { return manifest.NewCIDConfig(e.combineID) }

// Encoder implements EncoderFilter.
func (e *CIDEncoder) Encoder() Transform { return &cidEncodeTransform{e: e} }

// Result implements EncoderFilter. ok is false until Flush has run.
func (e *CIDEncoder) Result() (manifest.FilterResult, bool) {
	if !e.resolved {
		return manifest.FilterResult{}, false
	}
	return manifest.NewCIDResult(e.cid), true
}

type cidEncodeTransform struct{ e *CIDEncoder }

func (t *cidEncodeTransform) Process(chunk []byte) ([]byte, error) {
	t.e.hash.Write(chunk)
	return chunk, nil
}

func (t *cidEncodeTransform) Flush() ([]byte, error) {
	cid, err := encodeCIDv1Raw(t.e.hash.Sum(nil))
	if err != nil {
		return nil, err
	}
	t.e.cid = cid
	t.e.resolved = true
	return nil, nil
}

// CIDDecoder is the CID filter's decode side: a pass-through transform
// that verifies the reassembled plaintext hashes to an expected CID, if
// one was supplied. With no expected CID it only verifies that hashing
// completed without error, i.e. chunking integrity.
type CIDDecoder struct {
	expected string
	hash     hash.Hash
}

// NewCIDDecoder returns a decoder that verifies against expected. An
// empty expected disables the mismatch check.
func NewCIDDecoder(expected string) *CIDDecoder {
	return &CIDDecoder{expected: expected, hash: sha256.New()}
}

// Decode implements DecoderFilter.
func (d *CIDDecoder) Decode() Transform { return &cidDecodeTransform{d: d} }

type cidDecodeTransform struct{ d *CIDDecoder }

func (t *cidDecodeTransform) Process(chunk []byte) ([]byte, error) {
	t.d.hash.Write(chunk)
	return chunk, nil
}

func (t *cidDecodeTransform) Flush() ([]byte, error) {
	if t.d.expected == "" {
		return nil, nil
	}
	got, err := encodeCIDv1Raw(t.d.hash.Sum(nil))
	if err != nil {
		return nil, err
	}
	if got != t.d.expected {
		return nil, errors.Wrapf(ErrCidMismatch, "got %s, want %s", got, t.d.expected)
	}
	return nil, nil
}

// CIDDecoderFactory resolves CID.config entries with an unqualified
// verifier (no expected CID). It is one of the two factories the reader
// always prepends, per spec.md §4.8.
type CIDDecoderFactory struct{}

// Detect implements DecoderFactory.
func (CIDDecoderFactory) Detect(_ *manifest.StreamConfigRecord, entries []Entry) []Entry {
	for i, e := range entries {
		if e.Instance != nil || e.Input.Type != manifest.TypeCIDConfig {
			continue
		}
		entries[i].Instance = NewCIDDecoder("")
	}
	return entries
}

// CIDCollector combines an ordered sequence of CID encoder slots into one
// group CID once every member has resolved.
type CIDCollector struct {
	members []*CIDEncoder
}

// NewCIDCollector returns an empty collector.
func NewCIDCollector() *CIDCollector { return &CIDCollector{} }

// NewSlot registers and returns a fresh CID encoder in this collector,
// preserving registration order.
func (c *CIDCollector) NewSlot(combineID string) *CIDEncoder {
	e := NewCIDEncoder(combineID)
	c.members = append(c.members, e)
	return e
}

// memberCIDs returns the resolved per-slot CIDs in registration order.
func (c *CIDCollector) memberCIDs() ([]string, error) {
	cids := make([]string, len(c.members))
	for i, m := range c.members {
		result, ok := m.Result()
		if !ok {
			return nil, errors.Errorf("filter: CID collector slot %d has not resolved yet", i)
		}
		cid, _ := result.CID()
		cids[i] = cid
	}
	return cids, nil
}

// Result computes the combined CID: CIDv1 raw over SHA-256 of the
// canonical JSON encoding of the member CIDs, in registration order.
func (c *CIDCollector) Result() (string, error) {
	if len(c.members) == 0 {
		return "", ErrEmptyCollector
	}
	cids, err := c.memberCIDs()
	if err != nil {
		return "", err
	}
	canonical, err := json.Marshal(cids)
	if err != nil {
		return "", errors.Wrap(err, "filter: encoding member CID array")
	}
	sum := sha256.Sum256(canonical)
	return encodeCIDv1Raw(sum[:])
}
