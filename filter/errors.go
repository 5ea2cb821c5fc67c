// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package filter

import "github.com/pkg/errors"

// ErrCidMismatch is returned when a CID decoder's computed CID disagrees
// with the expected value supplied to it.
var ErrCidMismatch = errors.New("filter: CID mismatch")

// ErrDecryptFailure is returned when AES-GCM tag verification fails.
var ErrDecryptFailure = errors.New("filter: decrypt failure")

// ErrEmptyCollector is returned by CIDCollector.Result when no slot was
// ever registered.
var ErrEmptyCollector = errors.New("filter: CID collector has no members")
