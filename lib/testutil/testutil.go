// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for geotable packages.
//
// [WriteFile] writes a named fixture file into a per-test temporary
// directory, for tests that exercise the disk-facing loaders and the
// command line. All helpers call t.Fatalf on failure rather than
// returning errors, since test setup failures are not recoverable.
//
// This package has no geotable-internal dependencies.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile writes content to name under a fresh temporary directory
// and returns the full path. The directory is removed when the test
// completes.
func WriteFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture %s: %v", name, err)
	}
	return path
}

// WriteFileIn writes content to name under an existing directory and
// returns the full path. Use this when several fixtures must share one
// directory.
func WriteFileIn(t *testing.T, directory, name, content string) string {
	t.Helper()
	path := filepath.Join(directory, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture %s: %v", name, err)
	}
	return path
}
