// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package manifest

import (
	"io"
	"io/ioutil"

	"github.com/pkg/errors"

	"github.com/mabels/qsf/frame"
)

// ShapeErrorKind names why a MANIFEST_ENTRY frame was passed through
// unrecognized rather than typed. Both kinds are non-fatal: the frame is
// still forwarded so the caller can inspect it.
type ShapeErrorKind string

// Manifest shape error kinds.
const (
	ManifestDecode       ShapeErrorKind = "ManifestDecode"
	UnknownManifestShape ShapeErrorKind = "UnknownManifestShape"
)

// ShapeError explains why a MANIFEST_ENTRY body didn't resolve to a known
// record type.
type ShapeError struct {
	Kind ShapeErrorKind
	Err  error
}

func (e *ShapeError) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Err.Error()
	}
	return string(e.Kind)
}

func (e *ShapeError) Unwrap() error { return e.Err }

// Item is one parsed unit from the manifest-parse stage. Exactly one of
// Config, Result, or (Raw != nil) is set when Header.Type is
// frame.ManifestEntry; for every other frame type, Body carries the
// frame's still-unread payload reader so streaming stages downstream (the
// binder) can consume it without this stage buffering it first.
type Item struct {
	Header frame.Header
	Body   io.Reader

	Config *StreamConfigRecord
	Result *StreamResultRecord

	// Raw is the MANIFEST_ENTRY payload when it didn't type as a known
	// record. ShapeErr explains why.
	Raw      []byte
	ShapeErr *ShapeError
}

// Stage wraps a frame.ChunkReader, typing MANIFEST_ENTRY frames against
// the known manifest record schemas (C8-b in the design notes) while
// leaving every other frame's body unread for the caller to consume.
type Stage struct {
	cr  *frame.ChunkReader
	ser Serializer
}

// NewStage returns a Stage reading frames from cr. A nil ser uses
// DefaultSerializer.
func NewStage(cr *frame.ChunkReader, ser Serializer) *Stage {
	if ser == nil {
		ser = DefaultSerializer
	}
	return &Stage{cr: cr, ser: ser}
}

type envelope struct {
	Type string `json:"type"`
}

// Next returns the next item, or io.EOF at a clean end of stream.
func (s *Stage) Next() (Item, error) {
	h, body, err := s.cr.Next()
	if err != nil {
		return Item{}, err
	}

	if h.Type != frame.ManifestEntry {
		return Item{Header: h, Body: body}, nil
	}

	payload, err := ioutil.ReadAll(body)
	if err != nil {
		return Item{}, errors.Wrap(err, "manifest: reading MANIFEST_ENTRY body")
	}

	var env envelope
	if err := s.ser.Decode(payload, &env); err != nil {
		return Item{
			Header:   h,
			Raw:      payload,
			ShapeErr: &ShapeError{Kind: ManifestDecode, Err: err},
		}, nil
	}

	switch env.Type {
	case TypeStreamConfig:
		var rec StreamConfigRecord
		if err := s.ser.Decode(payload, &rec); err != nil {
			return Item{
				Header:   h,
				Raw:      payload,
				ShapeErr: &ShapeError{Kind: ManifestDecode, Err: err},
			}, nil
		}
		return Item{Header: h, Config: &rec}, nil

	case TypeStreamResult:
		var rec StreamResultRecord
		if err := s.ser.Decode(payload, &rec); err != nil {
			return Item{
				Header:   h,
				Raw:      payload,
				ShapeErr: &ShapeError{Kind: ManifestDecode, Err: err},
			}, nil
		}
		return Item{Header: h, Result: &rec}, nil

	default:
		return Item{
			Header:   h,
			Raw:      payload,
			ShapeErr: &ShapeError{Kind: UnknownManifestShape, Err: errors.Errorf("manifest: unrecognized type %q", env.Type)},
		}, nil
	}
}
