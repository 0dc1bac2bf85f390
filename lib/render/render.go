// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package render generates artifacts from a processed feature table:
// spreadsheets, statistical charts, and maps.
//
// Renderer construction is separated from generation the same way
// stage construction is separated from execution: Build validates
// every output declaration up front and fails the run on the first
// bad one, while Generate runs each artifact independently and a
// failed artifact never stops the remaining ones.
package render

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/bureau-foundation/geotable/lib/feature"
	"github.com/bureau-foundation/geotable/lib/jobdef"
	"github.com/bureau-foundation/geotable/lib/stage"
)

// Renderer writes one artifact from a feature table and returns the
// written path.
type Renderer interface {
	// Type returns the registry tag of the renderer, for example
	// "bar_chart".
	Type() string

	// Generate writes the artifact to path.
	Generate(table *feature.Table, path string) (string, error)
}

// Constructor builds a renderer from its raw output configuration.
// The object still contains the "type" and "path" tags; constructors
// ignore unknown keys.
type Constructor func(config json.RawMessage) (Renderer, error)

var registry = map[string]Constructor{
	"spreadsheet":    newSpreadsheet,
	"bar_chart":      newBarChart,
	"pie_chart":      newPieChart,
	"line_chart":     newLineChart,
	"scatter_chart":  newScatterChart,
	"simple_map":     newSimpleMap,
	"choropleth_map": newChoroplethMap,
	"heat_map":       newHeatMap,
}

// Types returns the registered output type tags, sorted.
func Types() []string {
	types := make([]string, 0, len(registry))
	for tag := range registry {
		types = append(types, tag)
	}
	sort.Strings(types)
	return types
}

// RenderError reports one failed artifact. Artifact failures are
// warnings: the run continues with the remaining outputs.
type RenderError struct {
	OutputType string
	Path       string
	Err        error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("rendering %s to %s: %v", e.OutputType, e.Path, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// validationError builds an unlocated configuration error; Build fills
// in the outputs list position.
func validationError(key, format string, args ...any) *stage.ValidationError {
	return &stage.ValidationError{Index: -1, Key: key, Message: fmt.Sprintf(format, args...)}
}

// decodeConfig unmarshals a renderer configuration object, reporting
// JSON-shape problems as ValidationErrors.
func decodeConfig(config json.RawMessage, target any) error {
	if len(config) == 0 {
		config = json.RawMessage("{}")
	}
	if err := json.Unmarshal(config, target); err != nil {
		return validationError("", "bad configuration: %v", err)
	}
	return nil
}

type artifact struct {
	renderer Renderer
	path     string
}

// Set is an ordered list of constructed artifacts ready to generate.
type Set struct {
	artifacts []artifact
	logger    *slog.Logger
}

// Options configures artifact generation.
type Options struct {
	// Logger receives per-artifact progress. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// Build constructs a renderer for every output declaration. Any
// invalid declaration fails the build with a located ValidationError
// before the pipeline has run.
func Build(outputs []jobdef.Output, options Options) (*Set, error) {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	set := &Set{logger: logger}
	for i, output := range outputs {
		if output.Path == "" {
			return nil, stage.Locate(validationError("path", "missing path"), "outputs", i, output.Type)
		}
		constructor, ok := registry[output.Type]
		if !ok {
			return nil, stage.Locate(
				validationError("type", "unknown output type %q (supported: %s)",
					output.Type, strings.Join(Types(), ", ")),
				"outputs", i, output.Type)
		}
		renderer, err := constructor(output.Config)
		if err != nil {
			return nil, stage.Locate(err, "outputs", i, output.Type)
		}
		set.artifacts = append(set.artifacts, artifact{renderer: renderer, path: output.Path})
	}
	return set, nil
}

// Len returns the number of artifacts in the set.
func (s *Set) Len() int { return len(s.artifacts) }

// Result is the outcome of one artifact.
type Result struct {
	// Type is the output type tag.
	Type string
	// Path is the artifact path (the written path on success, the
	// configured path on failure).
	Path string
	// Ref is the short content digest of the written file, empty on
	// failure.
	Ref string
	// Err is the RenderError on failure, nil on success.
	Err error
}

// Generate writes every artifact in declaration order. A failed
// artifact is logged as a warning and the remaining artifacts still
// run; the returned results carry the per-artifact status.
func (s *Set) Generate(table *feature.Table) []Result {
	results := make([]Result, 0, len(s.artifacts))
	for i, artifact := range s.artifacts {
		typeTag := artifact.renderer.Type()
		written, err := artifact.renderer.Generate(table, artifact.path)
		if err == nil {
			var digest Digest
			digest, err = digestFile(written)
			if err == nil {
				s.logger.Info("artifact written",
					"artifact", fmt.Sprintf("%d/%d", i+1, len(s.artifacts)),
					"type", typeTag,
					"path", written,
					"ref", digest.Ref(),
				)
				results = append(results, Result{Type: typeTag, Path: written, Ref: digest.Ref()})
				continue
			}
		}
		renderErr := &RenderError{OutputType: typeTag, Path: artifact.path, Err: err}
		s.logger.Warn("artifact failed",
			"artifact", fmt.Sprintf("%d/%d", i+1, len(s.artifacts)),
			"type", typeTag,
			"path", artifact.path,
			"error", err,
		)
		results = append(results, Result{Type: typeTag, Path: artifact.path, Err: renderErr})
	}
	return results
}
