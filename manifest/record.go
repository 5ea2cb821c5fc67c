// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package manifest implements QSF's typed manifest records (stream.config,
// stream.result) and the pluggable byte serializer they ride over, plus the
// manifest-parse reader stage that types MANIFEST_ENTRY frame bodies.
package manifest

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/mabels/qsf/varint"
)

// Manifest record type discriminants.
const (
	TypeStreamConfig = "stream.config"
	TypeStreamResult = "stream.result"
)

// Built-in filter config/result type discriminants.
const (
	TypeCIDConfig    = "CID.config"
	TypeCIDResult    = "CID.result"
	TypeZStrConfig   = "ZStr.config"
	TypeZStrResult   = "ZStr.result"
	TypeAESGCMConfig = "AES-GCM.config"
	TypeAESGCMResult = "AES-GCM.result"
)

// FilterConfig is a tagged, open-world filter configuration record. Fields
// holds every JSON member except "type", so an unrecognized config round-
// trips opaquely through Fields without a typed accessor ever needing to
// know about it.
type FilterConfig struct {
	Type   string
	Fields map[string]json.RawMessage
}

// NewCIDConfig returns a "CID.config" record, optionally carrying a
// combineId grouping label.
func NewCIDConfig(combineID string) FilterConfig {
	fc := FilterConfig{Type: TypeCIDConfig, Fields: map[string]json.RawMessage{}}
	if combineID != "" {
		fc.setString("combineId", combineID)
	}
	return fc
}

// NewZStrConfig returns a "ZStr.config" record for the given codec name
// ("deflate", "deflate-raw", or "gzip").
func NewZStrConfig(codec string) FilterConfig {
	fc := FilterConfig{Type: TypeZStrConfig, Fields: map[string]json.RawMessage{}}
	fc.setString("codec", codec)
	return fc
}

// NewAESGCMConfig returns an "AES-GCM.config" record carrying a key
// fingerprint, never the key itself.
func NewAESGCMConfig(keyID string) FilterConfig {
	fc := FilterConfig{Type: TypeAESGCMConfig, Fields: map[string]json.RawMessage{}}
	fc.setString("keyId", keyID)
	return fc
}

func (fc *FilterConfig) setString(name, value string) {
	b, err := json.Marshal(value)
	if err != nil {
		// value is a plain string; json.Marshal of a string never fails.
		panic(err)
	}
	if fc.Fields == nil {
		fc.Fields = map[string]json.RawMessage{}
	}
	fc.Fields[name] = b
}

func (fc FilterConfig) stringField(name string) (string, bool) {
	raw, ok := fc.Fields[name]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// CombineID returns the CID.config combineId field, if present.
func (fc FilterConfig) CombineID() (string, bool) { return fc.stringField("combineId") }

// Codec returns the ZStr.config codec field, if present.
func (fc FilterConfig) Codec() (string, bool) { return fc.stringField("codec") }

// KeyID returns the AES-GCM.config keyId field, if present.
func (fc FilterConfig) KeyID() (string, bool) { return fc.stringField("keyId") }

// MarshalJSON flattens Type back in among Fields as the "type" member.
func (fc FilterConfig) MarshalJSON() ([]byte, error) {
	return marshalTagged(fc.Type, fc.Fields)
}

// UnmarshalJSON splits the "type" discriminant out of the flat object,
// keeping every other member in Fields.
func (fc *FilterConfig) UnmarshalJSON(data []byte) error {
	t, fields, err := unmarshalTagged(data)
	if err != nil {
		return err
	}
	fc.Type = t
	fc.Fields = fields
	return nil
}

// FilterResult mirrors FilterConfig's open-world tagging for the result
// side of a filter.
type FilterResult struct {
	Type   string
	Fields map[string]json.RawMessage
}

// NewCIDResult returns a "CID.result" record.
func NewCIDResult(cid string) FilterResult {
	fr := FilterResult{Type: TypeCIDResult, Fields: map[string]json.RawMessage{}}
	fr.setString("cid", cid)
	return fr
}

// NewZStrResult returns a "ZStr.result" record.
func NewZStrResult(codec string) FilterResult {
	fr := FilterResult{Type: TypeZStrResult, Fields: map[string]json.RawMessage{}}
	fr.setString("codec", codec)
	return fr
}

// NewAESGCMResult returns an "AES-GCM.result" record.
func NewAESGCMResult(keyID string) FilterResult {
	fr := FilterResult{Type: TypeAESGCMResult, Fields: map[string]json.RawMessage{}}
	fr.setString("keyId", keyID)
	return fr
}

func (fr *FilterResult) setString(name, value string) {
	b, err := json.Marshal(value)
	if err != nil {
		panic(err)
	}
	if fr.Fields == nil {
		fr.Fields = map[string]json.RawMessage{}
	}
	fr.Fields[name] = b
}

func (fr FilterResult) stringField(name string) (string, bool) {
	raw, ok := fr.Fields[name]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// CID returns the CID.result cid field, if present.
func (fr FilterResult) CID() (string, bool) { return fr.stringField("cid") }

// Codec returns the ZStr.result codec field, if present.
func (fr FilterResult) Codec() (string, bool) { return fr.stringField("codec") }

// KeyID returns the AES-GCM.result keyId field, if present.
func (fr FilterResult) KeyID() (string, bool) { return fr.stringField("keyId") }

// MarshalJSON flattens Type back in among Fields as the "type" member.
func (fr FilterResult) MarshalJSON() ([]byte, error) {
	return marshalTagged(fr.Type, fr.Fields)
}

// UnmarshalJSON splits the "type" discriminant out of the flat object.
func (fr *FilterResult) UnmarshalJSON(data []byte) error {
	t, fields, err := unmarshalTagged(data)
	if err != nil {
		return err
	}
	fr.Type = t
	fr.Fields = fields
	return nil
}

func marshalTagged(typ string, fields map[string]json.RawMessage) ([]byte, error) {
	m := make(map[string]json.RawMessage, len(fields)+1)
	for k, v := range fields {
		m[k] = v
	}
	typeJSON, err := json.Marshal(typ)
	if err != nil {
		return nil, err
	}
	m["type"] = typeJSON
	return json.Marshal(m)
}

func unmarshalTagged(data []byte) (string, map[string]json.RawMessage, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return "", nil, err
	}
	typeRaw, ok := m["type"]
	if !ok {
		return "", nil, errors.New("manifest: tagged record missing \"type\" discriminant")
	}
	var t string
	if err := json.Unmarshal(typeRaw, &t); err != nil {
		return "", nil, errors.Wrap(err, "manifest: decoding \"type\" discriminant")
	}
	delete(m, "type")
	return t, m, nil
}

// StreamConfigRecord is emitted once per logical stream, before its
// STREAM_HEADER frame.
type StreamConfigRecord struct {
	Type      string         `json:"type"`
	StreamID  varint.Object  `json:"streamId"`
	CombineID *string        `json:"combineId,omitempty"`
	Filters   []FilterConfig `json:"filters"`
}

// StreamResultRecord is emitted once per logical stream, after its
// STREAM_TRAILER frame.
type StreamResultRecord struct {
	Type         string         `json:"type"`
	StreamID     varint.Object  `json:"streamId"`
	Offset       uint64         `json:"offset"`
	Length       uint64         `json:"length"`
	FilterResult []FilterResult `json:"filterResult"`
}
