// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stage

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/geotable/lib/feature"
	"github.com/bureau-foundation/geotable/lib/jobdef"
)

// Pipeline is an ordered list of constructed stages. Build a pipeline
// once, then execute it against a table.
type Pipeline struct {
	stages []Stage
	logger *slog.Logger
}

// Options configures pipeline construction.
type Options struct {
	// Logger receives per-stage progress at info level. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// Build constructs every stage in the operation list, in order. All
// configuration problems surface here, before any table is touched;
// the returned error is a *ValidationError locating the failed
// operation. A successful build means every stage accepted its
// configuration.
func Build(operations []jobdef.Operation, options Options) (*Pipeline, error) {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pipeline := &Pipeline{logger: logger, stages: make([]Stage, 0, len(operations))}
	for i, operation := range operations {
		built, err := New(operation.Type, operation.Config)
		if err != nil {
			return nil, Locate(err, "operations", i, operation.Type)
		}
		pipeline.stages = append(pipeline.stages, built)
	}
	return pipeline, nil
}

// Len returns the number of stages.
func (p *Pipeline) Len() int { return len(p.stages) }

// StageResult describes one executed stage.
type StageResult struct {
	Type       string
	RecordsIn  int
	RecordsOut int
}

// Execute runs the stages strictly in order, each consuming the
// previous stage's output table and producing a new one. The first
// failure aborts the run; because tables are immutable, a failed run
// leaves no partial effect. The returned results cover the stages
// that completed.
func (p *Pipeline) Execute(table *feature.Table) (*feature.Table, []StageResult, error) {
	current := table
	results := make([]StageResult, 0, len(p.stages))
	for i, s := range p.stages {
		next, err := s.Process(current)
		if err != nil {
			var validation *ValidationError
			if errors.As(err, &validation) {
				return nil, results, Locate(err, "operations", i, s.Type())
			}
			return nil, results, fmt.Errorf("operations[%d] %q: %w", i, s.Type(), err)
		}
		results = append(results, StageResult{
			Type:       s.Type(),
			RecordsIn:  current.NumRecords(),
			RecordsOut: next.NumRecords(),
		})
		p.logger.Info("stage complete",
			"stage", fmt.Sprintf("%d/%d", i+1, len(p.stages)),
			"type", s.Type(),
			"records_in", current.NumRecords(),
			"records_out", next.NumRecords())
		current = next
	}
	return current, results, nil
}
