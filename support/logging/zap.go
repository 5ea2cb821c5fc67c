// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package logging

import "go.uber.org/zap"

// NewProduction builds an L backed by a production zap.Logger: JSON output,
// info level and above, stack traces on error. The returned L is a
// *zap.SugaredLogger, which already satisfies L directly.
func NewProduction() (L, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// NewDevelopment builds an L backed by a development zap.Logger:
// console-friendly output, debug level and above, caller annotations.
func NewDevelopment() (L, error) {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// FromZap adapts an existing *zap.Logger to L.
func FromZap(logger *zap.Logger) L {
	return logger.Sugar()
}
