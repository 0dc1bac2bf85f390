// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"encoding/hex"
	"os"

	"github.com/zeebo/blake3"
)

// Digest is the 32-byte BLAKE3 digest of a written artifact. It ties
// a run summary line to the exact bytes on disk.
type Digest [32]byte

// String returns the full hex encoding.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Ref returns the short artifact reference: the "out-" prefix followed
// by the first 12 hex characters.
func (d Digest) Ref() string {
	return "out-" + hex.EncodeToString(d[:6])
}

// digestFile hashes the file contents at path.
func digestFile(path string) (Digest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Digest{}, err
	}
	return Digest(blake3.Sum256(data)), nil
}
