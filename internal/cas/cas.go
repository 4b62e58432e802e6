/*
Copyright (C) 2026  Carl-Philip Hänsch

    This program is free software: you can redistribute it and/or modify
    it under the terms of the GNU General Public License as published by
    the Free Software Foundation, either version 3 of the License, or
    (at your option) any later version.

    This program is distributed in the hope that it will be useful,
    but WITHOUT ANY WARRANTY; without even the implied warranty of
    MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
    GNU General Public License for more details.

    You should have received a copy of the GNU General Public License
    along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package cas implements the content-addressable blob store: idempotent
// put-by-hash, integrity-checked get, and gc against a live-hash set
// supplied by the frame log (refcounting is derived, never stored, per
// the data model).
package cas

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/ulikunitz/xz"

	"github.com/launix-de/memcp/internal/xserr"
)

// Backend is the pluggable blob transport: local filesystem, S3, or Ceph.
// Keys passed to it are always full hash strings ("sha256-<b64>"); the
// backend never interprets them beyond using them as an opaque object key.
type Backend interface {
	Put(key string, data []byte) error
	Get(key string) ([]byte, error) // returns xserr.NotFound-wrapped error if absent
	Exists(key string) bool
	Delete(key string) error
	List() ([]string, error)
}

// Store wraps a Backend with hashing, integrity verification on read, and
// optional transparent xz compression of blob bodies.
type Store struct {
	backend  Backend
	compress bool
}

func New(backend Backend, compress bool) *Store {
	return &Store{backend: backend, compress: compress}
}

// Hash computes the digest used to address b, in "<alg>-<base64>" form.
func Hash(b []byte) string {
	sum := sha256.Sum256(b)
	return "sha256-" + base64.RawURLEncoding.EncodeToString(sum[:])
}

// Put stores b (idempotent by digest) and returns its hash.
func (s *Store) Put(b []byte) (string, error) {
	hash := Hash(b)
	if s.backend.Exists(hashObjectKey(hash, s.compress)) {
		return hash, nil
	}
	payload := b
	if s.compress {
		var buf bytes.Buffer
		w, err := xz.NewWriter(&buf)
		if err != nil {
			return "", fmt.Errorf("cas: xz writer: %w", err)
		}
		if _, err := w.Write(b); err != nil {
			return "", fmt.Errorf("cas: xz write: %w", err)
		}
		if err := w.Close(); err != nil {
			return "", fmt.Errorf("cas: xz close: %w", err)
		}
		payload = buf.Bytes()
	}
	if err := s.backend.Put(hashObjectKey(hash, s.compress), payload); err != nil {
		return "", fmt.Errorf("cas: put %s: %w", hash, err)
	}
	return hash, nil
}

// Get streams back the blob addressed by hash, verifying its digest.
// Returns xserr.NotFound if absent, xserr.Corrupted if the digest mismatches.
func (s *Store) Get(hash string) ([]byte, error) {
	raw, err := s.backend.Get(hashObjectKey(hash, s.compress))
	if err != nil {
		return nil, err
	}
	payload := raw
	if s.compress {
		r, err := xz.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: xz: %v", xserr.Corrupted, err)
		}
		payload, err = io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("%w: xz: %v", xserr.Corrupted, err)
		}
	}
	if Hash(payload) != hash {
		return nil, fmt.Errorf("%w: digest mismatch for %s", xserr.Corrupted, hash)
	}
	return payload, nil
}

// Exists reports whether hash is present without reading or verifying it.
func (s *Store) Exists(hash string) bool {
	return s.backend.Exists(hashObjectKey(hash, s.compress))
}

// GC removes every stored blob whose hash is not in live (the set of
// hashes still referenced by a persistent frame, per the frame log).
// Invoked by the TTL reaper after a batch of evictions commits.
func (s *Store) GC(live map[string]bool) (removed int, err error) {
	keys, err := s.backend.List()
	if err != nil {
		return 0, fmt.Errorf("cas: list: %w", err)
	}
	for _, key := range keys {
		hash := hashFromObjectKey(key, s.compress)
		if live[hash] {
			continue
		}
		if err := s.backend.Delete(key); err != nil {
			return removed, fmt.Errorf("cas: delete %s: %w", key, err)
		}
		removed++
	}
	return removed, nil
}

func hashObjectKey(hash string, compress bool) string {
	if compress {
		return hash + ".xz"
	}
	return hash
}

func hashFromObjectKey(key string, compress bool) string {
	if compress && len(key) > 3 && key[len(key)-3:] == ".xz" {
		return key[:len(key)-3]
	}
	return key
}
