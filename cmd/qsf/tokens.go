// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package main

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/mabels/qsf/filter"
	"github.com/mabels/qsf/support/keystore"
)

// parseEncoderTokens builds one EncoderFilter per comma-separated token in
// spec, in order: "cid", "zstr" or "zstr:<codec>", "encrypt:<keyfile>".
// combineID is applied to every "cid" token in this entry.
func parseEncoderTokens(spec, combineID, keyDir string) ([]filter.EncoderFilter, error) {
	if spec == "" {
		return nil, nil
	}

	tokens := strings.Split(spec, ",")
	filters := make([]filter.EncoderFilter, 0, len(tokens))
	for _, tok := range tokens {
		ef, err := parseEncoderToken(tok, combineID, keyDir)
		if err != nil {
			return nil, errors.Wrapf(err, "token %q", tok)
		}
		filters = append(filters, ef)
	}
	return filters, nil
}

func parseEncoderToken(tok, combineID, keyDir string) (filter.EncoderFilter, error) {
	name, arg, _ := strings.Cut(tok, ":")
	switch name {
	case "cid":
		return filter.NewCIDEncoder(combineID), nil

	case "zstr":
		codec := arg
		if codec == "" {
			codec = filter.CodecDeflate
		}
		return filter.NewZStrEncoder(codec)

	case "encrypt":
		if arg == "" {
			return nil, errors.New("encrypt token requires a keyfile: encrypt:<keyfile>")
		}
		keyPath := arg
		if keyDir != "" && !strings.Contains(arg, "/") {
			keyPath = keyDir + "/" + arg
		}
		key, err := keystore.LoadOrGenerate(keyPath)
		if err != nil {
			return nil, errors.Wrap(err, "load or generate key")
		}
		return filter.NewAESGCMEncoder(key)

	default:
		return nil, errors.Errorf("unknown encoder token %q", name)
	}
}
