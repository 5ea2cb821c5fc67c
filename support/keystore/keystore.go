// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package keystore is the CLI-facing convenience for generating, saving,
// and resolving AES-GCM keys on disk by fingerprint. It sits outside the
// core filter package: the AES-GCM filter itself only ever accepts raw
// key bytes handed to it directly, per key material never being embedded
// in a manifest config.
package keystore

import (
	"crypto/rand"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/mabels/qsf/filter"
)

// KeySize is the length, in bytes, of a generated AES-256 key.
const KeySize = 32

// keyFilePerm restricts key files to owner read/write, since they hold
// raw symmetric key material.
const keyFilePerm = 0o600

// Generate returns a fresh, random AES-256 key suitable for
// filter.NewAESGCMEncoder.
func Generate() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, errors.Wrap(err, "generate key")
	}
	return key, nil
}

// Save writes key to path, atomically: it's written to a sibling
// temporary file first, then renamed into place, mirroring the
// write-then-rename commit step of support/stagingdir.
func Save(path string, key []byte) error {
	dir := filepath.Dir(path)
	tmp, err := ioutil.TempFile(dir, ".qsf-key-*")
	if err != nil {
		return errors.Wrap(err, "create temporary key file")
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(key); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "write temporary key file")
	}
	if err := tmp.Chmod(keyFilePerm); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "chmod temporary key file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temporary key file")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errors.Wrapf(err, "moving key into place (%q => %q)", tmpPath, path)
	}
	return nil
}

// Load reads a raw AES key from path.
func Load(path string) ([]byte, error) {
	key, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "load key %q", path)
	}
	return key, nil
}

// LoadOrGenerate loads the key at path if present, or generates and
// saves a fresh one there otherwise. This is what the CLI's write
// command uses for an encrypt:<keyfile> token pointing at a keyfile that
// doesn't exist yet.
func LoadOrGenerate(path string) ([]byte, error) {
	key, err := Load(path)
	if err == nil {
		return key, nil
	}
	if !os.IsNotExist(errors.Cause(err)) {
		return nil, err
	}
	key, err = Generate()
	if err != nil {
		return nil, err
	}
	if err := Save(path, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Dir resolves keys by fingerprint by scanning a directory of keyfiles,
// implementing filter.KeyResolver. It's built for the read command's
// --key-dir flag: every *.key file underneath dir is a candidate.
type Dir struct {
	path string
}

// NewDir returns a Dir resolver rooted at path.
func NewDir(path string) *Dir { return &Dir{path: path} }

var _ filter.KeyResolver = (*Dir)(nil)

// Lookup scans the directory for a key file whose fingerprint matches
// keyID, per filter.KeyResolver.
func (d *Dir) Lookup(keyID string) ([]byte, bool) {
	entries, err := ioutil.ReadDir(d.path)
	if err != nil {
		return nil, false
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".key" {
			continue
		}
		key, err := Load(filepath.Join(d.path, entry.Name()))
		if err != nil {
			continue
		}
		if filter.KeyFingerprint(key) == keyID {
			return key, true
		}
	}
	return nil, false
}
