// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package varint implements the QUIC RFC 9000 §16 variable-length integer
// encoding used throughout QSF's wire format: frame headers and the
// self-describing varint object embedded in manifest JSON.
//
// The high two bits of the first byte select the encoded width (1, 2, 4, or
// 8 bytes); the remaining bits, together with any following bytes, hold the
// big-endian value.
package varint

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// Width is the number of bytes used to encode a varint.
type Width int

// Valid varint widths.
const (
	Width1 Width = 1
	Width2 Width = 2
	Width4 Width = 4
	Width8 Width = 8
)

// Tag returns the width's JSON/manifest tag string, e.g. "4B".
func (w Width) Tag() string {
	switch w {
	case Width1:
		return "1B"
	case Width2:
		return "2B"
	case Width4:
		return "4B"
	case Width8:
		return "8B"
	default:
		return fmt.Sprintf("?%dB", int(w))
	}
}

// WidthFromTag parses a width tag string ("1B", "2B", "4B", "8B").
func WidthFromTag(tag string) (Width, error) {
	switch tag {
	case "1B":
		return Width1, nil
	case "2B":
		return Width2, nil
	case "4B":
		return Width4, nil
	case "8B":
		return Width8, nil
	default:
		return 0, errors.Errorf("varint: unknown width tag %q", tag)
	}
}

// MaxValue is the largest value representable by a varint (2^62 - 1).
const MaxValue = (uint64(1) << 62) - 1

// ErrValueOutOfRange is returned when a value is negative or exceeds
// MaxValue.
var ErrValueOutOfRange = errors.New("varint: value out of range")

// ErrTruncated is returned when a buffer ends before a varint (or its
// declared payload) is fully present.
var ErrTruncated = errors.New("varint: truncated")

// widthFor returns the minimum width that can hold n.
func widthFor(n uint64) Width {
	switch {
	case n < 1<<6:
		return Width1
	case n < 1<<14:
		return Width2
	case n < 1<<30:
		return Width4
	default:
		return Width8
	}
}

// Encode encodes n as a varint using the minimum width that fits.
//
// n must be in [0, MaxValue]; a negative n (passed as int64) or a value
// exceeding MaxValue fails with ErrValueOutOfRange.
func Encode(n int64) ([]byte, error) {
	if n < 0 {
		return nil, ErrValueOutOfRange
	}
	return EncodeUint64(uint64(n))
}

// EncodeUint64 encodes n as a varint using the minimum width that fits.
func EncodeUint64(n uint64) ([]byte, error) {
	if n > MaxValue {
		return nil, ErrValueOutOfRange
	}

	w := widthFor(n)
	buf := make([]byte, int(w))
	switch w {
	case Width1:
		buf[0] = byte(n)
	case Width2:
		binary.BigEndian.PutUint16(buf, uint16(n))
		buf[0] |= 0x40
	case Width4:
		binary.BigEndian.PutUint32(buf, uint32(n))
		buf[0] |= 0x80
	case Width8:
		binary.BigEndian.PutUint64(buf, n)
		buf[0] |= 0xC0
	}
	return buf, nil
}

// AppendUint64 appends the varint encoding of n to dst, returning the
// extended slice.
func AppendUint64(dst []byte, n uint64) ([]byte, error) {
	enc, err := EncodeUint64(n)
	if err != nil {
		return dst, err
	}
	return append(dst, enc...), nil
}

// Decode reads one varint from buf starting at offset.
//
// It returns the decoded value and the number of bytes consumed. If fewer
// bytes remain in buf than the encoded width demands, it fails with
// ErrTruncated.
func Decode(buf []byte, offset int) (value uint64, bytesRead int, err error) {
	if offset >= len(buf) {
		return 0, 0, ErrTruncated
	}

	first := buf[offset]
	w := Width(1 << (first >> 6))
	if offset+int(w) > len(buf) {
		return 0, 0, ErrTruncated
	}

	tmp := make([]byte, 8)
	copy(tmp[8-int(w):], buf[offset:offset+int(w)])
	tmp[8-int(w)] &^= 0xC0

	value = binary.BigEndian.Uint64(tmp)
	return value, int(w), nil
}

// Object is the self-describing varint form used inside manifest JSON:
// {"f": widthTag, "v": "0x..."}.
type Object struct {
	Width Width
	Value uint64
}

// ToObject wraps n in its self-describing Object form, choosing the
// minimum width that fits.
func ToObject(n uint64) Object {
	return Object{Width: widthFor(n), Value: n}
}

// ToValue returns the numeric value carried by o.
//
// Go's uint64 holds every value QSF can produce (< 2^62) exactly, so unlike
// the JavaScript-flavored origin of this format (whose Number type only
// safely represents integers up to 2^53), no separate "wide" decode path is
// needed here: ToValue never loses precision.
func (o Object) ToValue() (uint64, error) {
	if o.Value > MaxValue {
		return 0, ErrValueOutOfRange
	}
	return o.Value, nil
}

type objectJSON struct {
	F string `json:"f"`
	V string `json:"v"`
}

// MarshalJSON implements json.Marshaler.
func (o Object) MarshalJSON() ([]byte, error) {
	oj := objectJSON{
		F: o.Width.Tag(),
		V: fmt.Sprintf("0x%x", o.Value),
	}
	return json.Marshal(oj)
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *Object) UnmarshalJSON(data []byte) error {
	var oj objectJSON
	if err := json.Unmarshal(data, &oj); err != nil {
		return errors.Wrap(err, "decoding varint object")
	}

	w, err := WidthFromTag(oj.F)
	if err != nil {
		return err
	}

	var v uint64
	if _, err := fmt.Sscanf(oj.V, "0x%x", &v); err != nil {
		return errors.Wrapf(err, "decoding varint object value %q", oj.V)
	}

	o.Width = w
	o.Value = v
	return nil
}
