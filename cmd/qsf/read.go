// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/mabels/qsf/filter"
	"github.com/mabels/qsf/frame"
	"github.com/mabels/qsf/reader"
	"github.com/mabels/qsf/support/fmtutil"
	"github.com/mabels/qsf/support/keystore"
	"github.com/mabels/qsf/support/stagingdir"
)

func runRead(args []string) error {
	flagSet := pflag.NewFlagSet("read", pflag.ContinueOnError)
	src := flagSet.String("src", "", "path of the container file to read")
	outDir := flagSet.String("out", "", "directory to write decoded stream files into")
	keyDir := flagSet.String("key-dir", "", "directory of AES key files, resolved by fingerprint")
	qrec := flagSet.Bool("qrec", false, "dump the raw frame sequence instead of decoding")
	manifestOnly := flagSet.Bool("manifest", false, "print manifest records only, without decoding stream data")
	streamMode := flagSet.Bool("stream", false, "decode every stream to a file in --out (default mode)")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	if *src == "" {
		return errors.New("read: --src is required")
	}

	switch {
	case *qrec:
		return runReadQrec(*src)
	case *manifestOnly:
		return runReadManifest(*src)
	default:
		_ = streamMode // --stream is the default; the flag exists for explicitness.
		if *outDir == "" {
			return errors.New("read: --out is required unless --qrec or --manifest is given")
		}
		return runReadStreams(*src, *outDir, *keyDir)
	}
}

// qrecDumpLimit caps how many payload bytes runReadQrec hex-dumps per frame,
// so a multi-megabyte STREAM_DATA frame doesn't flood the terminal.
const qrecDumpLimit = 64

func runReadQrec(src string) error {
	f, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, "open container")
	}
	defer f.Close()

	cr := frame.NewChunkReader(f)
	for {
		h, body, err := cr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "read frame")
		}
		fmt.Printf("%-14s stream=%d length=%d\n", h.Type, h.StreamID, h.Length)

		payload, err := io.ReadAll(io.LimitReader(body, qrecDumpLimit))
		if err != nil {
			return errors.Wrap(err, "peek frame body")
		}
		if len(payload) > 0 {
			fmt.Print(fmtutil.Hex(payload))
		}
		if _, err := io.Copy(io.Discard, body); err != nil {
			return errors.Wrap(err, "drain frame body")
		}
	}
}

// runReadManifest never touches a stream's Chunks()/DecodedReader(), so it
// cancels every begin's pipe as soon as it's printed: otherwise a stream
// with more physical STREAM_DATA frames than the pipe's high-water mark
// would stall the pipeline goroutine forever waiting for a Send that
// nobody drains.
func runReadManifest(src string) error {
	f, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, "open container")
	}
	defer f.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := reader.New(f, nil)
	enc := json.NewEncoder(os.Stdout)
	for evt := range r.Run(ctx) {
		switch e := evt.(type) {
		case *reader.StreamFileBegin:
			if err := enc.Encode(e.Config); err != nil {
				return err
			}
			e.Cancel()
		case *reader.StreamFileEnd:
			if err := enc.Encode(e); err != nil {
				return err
			}
		}
	}
	return r.Err()
}

// runReadStreams decodes every stream into a staging directory and only
// commits it to outDir once every stream has decoded cleanly, so a
// mid-container decode failure never leaves a partial outDir behind.
//
// Each stream is decoded on its own goroutine, concurrently with the
// reader's pipeline goroutine pumping the rest of the container: a
// stream's data can keep arriving (and filling that stream's pipe) while
// an earlier stream is still being written to disk, and a stream whose
// pipe fills past its high-water mark drains instead of stalling the
// whole read.
func runReadStreams(src, outDir, keyDir string) error {
	f, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, "open container")
	}
	defer f.Close()

	staging, err := stagingdir.New(filepath.Dir(outDir), "qsf-read")
	if err != nil {
		return errors.Wrap(err, "create staging directory")
	}
	committed := false
	defer func() {
		if !committed {
			_ = staging.Destroy()
		}
	}()

	var decoders []filter.DecoderFactory
	if keyDir != "" {
		decoders = append(decoders, filter.AESGCMDecoderFactory{Keys: keystore.NewDir(keyDir)})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	r := reader.New(f, decoders)
	for evt := range r.Run(ctx) {
		begin, ok := evt.(*reader.StreamFileBegin)
		if !ok {
			continue
		}
		wg.Add(1)
		go func(begin *reader.StreamFileBegin) {
			defer wg.Done()
			if err := decodeStreamToStaging(begin, staging); err != nil {
				fail(err)
			}
		}(begin)
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	if err := r.Err(); err != nil {
		return errors.Wrap(err, "read event")
	}

	if err := staging.Commit(outDir); err != nil {
		return errors.Wrap(err, "commit output directory")
	}
	committed = true
	return nil
}

func decodeStreamToStaging(begin *reader.StreamFileBegin, staging *stagingdir.D) error {
	id, err := reader.StreamIDOf(begin.StreamID)
	if err != nil {
		return errors.Wrap(err, "decode stream id")
	}

	out, err := begin.DecodedReader()
	if err != nil {
		return errors.Wrapf(err, "stream %d", id)
	}

	dstPath := staging.Path(fmt.Sprintf("stream-%d.bin", id))
	dst, err := os.Create(dstPath)
	if err != nil {
		return errors.Wrapf(err, "create %q", dstPath)
	}
	if _, err := io.Copy(dst, out); err != nil {
		_ = dst.Close()
		return errors.Wrapf(err, "stream %d", id)
	}
	return dst.Close()
}
