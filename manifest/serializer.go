// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package manifest

import "encoding/json"

// Serializer is the pluggable byte codec manifest records ride over. The
// default is JSON; a lossless second implementation (CBOR) exercises the
// interface without changing the wire default.
type Serializer interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
}

// JSONSerializer implements Serializer with encoding/json, QSF's default
// manifest wire format.
type JSONSerializer struct{}

// Encode implements Serializer.
func (JSONSerializer) Encode(v any) ([]byte, error) { return json.Marshal(v) }

// Decode implements Serializer.
func (JSONSerializer) Decode(data []byte, v any) error { return json.Unmarshal(data, v) }

// DefaultSerializer is the JSON serializer used when none is configured.
var DefaultSerializer Serializer = JSONSerializer{}
