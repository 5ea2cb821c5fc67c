// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package filter implements QSF's encoder/decoder filter contracts and the
// built-in CID, ZStr, and AES-GCM filters, plus the CID collector that
// combines several streams' CIDs into one.
package filter

import "github.com/mabels/qsf/manifest"

// Transform is a chunk-in/chunk-out byte pipeline stage with a flush hook.
// Process consumes exactly one input chunk and returns the (possibly
// empty) output produced so far; Flush finalizes the transform and
// returns any remaining buffered output.
type Transform interface {
	Process(chunk []byte) ([]byte, error)
	Flush() ([]byte, error)
}

// EncoderFilter is a filter's encode-side capability: it can describe its
// own manifest configuration, build a fresh Transform, and (after Flush)
// report a result record.
type EncoderFilter interface {
	Config() manifest.FilterConfig
	Encoder() Transform

	// Result returns the filter's result record. ok is false when the
	// filter has none to report (the writer drops such entries rather
	// than emitting an empty record).
	Result() (result manifest.FilterResult, ok bool)
}

// DecoderFilter is a filter's decode-side capability: a resolved decoder
// instance that can build the inverse Transform.
type DecoderFilter interface {
	Decode() Transform
}

// Entry pairs one filter config from a stream.config record with the
// decoder instance resolved for it, if any.
type Entry struct {
	Input    manifest.FilterConfig
	Instance DecoderFilter
}

// DecoderFactory claims entries it recognizes by setting Instance on the
// ones whose Input.Type it handles and whose Instance is still nil.
// First-claim-wins: a factory must never overwrite an already-resolved
// entry.
type DecoderFactory interface {
	Detect(cfg *manifest.StreamConfigRecord, entries []Entry) []Entry
}

// Compose chains stages into a single Transform. Encode pipelines compose
// left-to-right in filter-config order; decode pipelines compose in
// reverse order, per the resolver fold's decode() contract.
func Compose(stages []Transform) Transform {
	return &pipeline{stages: stages}
}

type pipeline struct {
	stages []Transform
}

// Process feeds chunk through every stage in order, each stage's output
// becoming the next stage's input.
func (p *pipeline) Process(chunk []byte) ([]byte, error) {
	cur := chunk
	for _, s := range p.stages {
		out, err := s.Process(cur)
		if err != nil {
			return nil, err
		}
		cur = out
	}
	return cur, nil
}

// Flush finalizes every stage in order. A stage's flushed bytes are fed
// through every downstream stage's Process before the next stage is
// itself flushed, so a stage that buffers everything until Flush (like
// ZStr's decoder) still has its final output reach the end of the chain.
func (p *pipeline) Flush() ([]byte, error) {
	var final []byte
	for i, s := range p.stages {
		flushed, err := s.Flush()
		if err != nil {
			return nil, err
		}

		cur := flushed
		for j := i + 1; j < len(p.stages) && len(cur) > 0; j++ {
			cur, err = p.stages[j].Process(cur)
			if err != nil {
				return nil, err
			}
		}
		final = append(final, cur...)
	}
	return final, nil
}
