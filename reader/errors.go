// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package reader

import "github.com/pkg/errors"

// ErrUnresolvedFilter is raised by StreamFileBegin.Decode when a
// stream.config entry has no resolved decoder instance. It's raised at
// decode() call time rather than at resolve time, so a consumer can
// choose to read the raw stream instead of decoding it.
var ErrUnresolvedFilter = errors.New("reader: unresolved filter")
