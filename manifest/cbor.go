// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package manifest

import (
	cbor "github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

// CBORSerializer implements Serializer with core deterministic CBOR
// encoding (RFC 8949 §4.2.1). It is not the wire default (spec.md pins the
// manifest wire format to JSON) but exercises the Serializer contract with
// a second, real implementation callers may opt into.
//
// FilterConfig, FilterResult, and varint.Object implement
// MarshalJSON/UnmarshalJSON but not a CBOR-specific marshaler, so encoding
// one through CBORSerializer bypasses that JSON tagged-union shape
// entirely and falls back to cbor's plain struct/map reflection instead.
// That still round-trips every field losslessly (see manifest/cbor_test.go)
// because none of the fields underneath are JSON-only in representation:
// json.RawMessage is a plain []byte that CBOR carries as an opaque byte
// string, and varint.Object's Width/Value fields encode as ordinary CBOR
// map entries. What it does not do is produce the flattened
// {"type": ..., ...fields} shape MarshalJSON does; a CBOR-encoded record
// only decodes back through CBORSerializer, not through
// encoding/json.Unmarshal.
type CBORSerializer struct {
	encMode cbor.EncMode
}

// NewCBORSerializer builds a CBORSerializer configured for core
// deterministic encoding, so two encodes of an equal value always produce
// identical bytes.
func NewCBORSerializer() (*CBORSerializer, error) {
	encMode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, errors.Wrap(err, "manifest: building CBOR encode mode")
	}
	return &CBORSerializer{encMode: encMode}, nil
}

// Encode implements Serializer.
func (s *CBORSerializer) Encode(v any) ([]byte, error) {
	return s.encMode.Marshal(v)
}

// Decode implements Serializer.
func (s *CBORSerializer) Decode(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}
