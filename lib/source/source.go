// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package source loads feature tables from files. The format is picked
// by extension: GeoJSON (.geojson, .json) and CSV (.csv). Schema and
// column kinds are inferred from the data.
package source

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bureau-foundation/geotable/lib/feature"
)

// LoadError reports a failed load: an unreadable file, a malformed
// document, an unsupported extension, or a dataset with nothing to
// process. A load failure is fatal to the run.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

func loadError(path, format string, args ...any) error {
	return &LoadError{Path: path, Err: fmt.Errorf(format, args...)}
}

// Load reads the file at path into a feature table, dispatching on the
// file extension.
func Load(path string) (*feature.Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return loadGeoJSON(path)
	case ".csv":
		return loadCSV(path)
	default:
		return nil, loadError(path, "unsupported extension %q (supported: .geojson, .json, .csv)",
			filepath.Ext(path))
	}
}
