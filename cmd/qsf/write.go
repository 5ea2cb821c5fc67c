// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package main

import (
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/mabels/qsf/filter"
	"github.com/mabels/qsf/writer"
)

func runWrite(args []string) error {
	flagSet := pflag.NewFlagSet("write", pflag.ContinueOnError)
	out := flagSet.String("out", "", "path of the container file to write")
	combineID := flagSet.String("combine-id", "", "combineId recorded on every entry's stream.config")
	keyDir := flagSet.String("key-dir", "", "directory to resolve bare encrypt:<name> keyfiles against")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	if *out == "" {
		return errors.New("write: --out is required")
	}
	specs := flagSet.Args()
	if len(specs) == 0 {
		return errors.New("write: at least one file:token,token,... argument is required")
	}

	requestsCID := false
	for _, spec := range specs {
		_, tokenSpec, _ := strings.Cut(spec, ":")
		for _, tok := range strings.Split(tokenSpec, ",") {
			if tok == "cid" {
				requestsCID = true
			}
		}
	}
	effectiveCombineID := *combineID
	if effectiveCombineID == "" && requestsCID && len(specs) > 1 {
		effectiveCombineID = uuid.NewString()
	}

	f, err := os.Create(*out)
	if err != nil {
		return errors.Wrap(err, "create container file")
	}

	w := writer.New(f)
	entries := make([]writer.Entry, 0, len(specs))
	for _, spec := range specs {
		path, tokenSpec, _ := strings.Cut(spec, ":")
		src, err := os.Open(path)
		if err != nil {
			_ = f.Close()
			return errors.Wrapf(err, "open %q", path)
		}
		defer src.Close()

		filters, err := parseEncoderTokens(tokenSpec, effectiveCombineID, *keyDir)
		if err != nil {
			_ = f.Close()
			return errors.Wrapf(err, "parsing tokens for %q", path)
		}

		entry := writer.Entry{Source: src, Filters: filters}
		if effectiveCombineID != "" && containsCID(filters) {
			id := effectiveCombineID
			entry.CombineID = &id
		}
		entries = append(entries, entry)
	}

	return w.WriteEntries(entries)
}

func containsCID(filters []filter.EncoderFilter) bool {
	for _, ef := range filters {
		if _, ok := ef.(*filter.CIDEncoder); ok {
			return true
		}
	}
	return false
}
