// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package stage implements the pipeline transformation stages and
// their registry.
//
// A stage consumes a feature table and produces a new one; the input
// is never modified. Stage construction is fully separated from
// execution: a constructor validates its configuration eagerly and
// returns a ValidationError for anything malformed, so a bad job
// fails before any table is touched. Table-dependent problems (a
// column missing from the actual input, a kind mismatch) surface as
// ValidationErrors from Process.
package stage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bureau-foundation/geotable/lib/feature"
)

// Stage transforms one feature table into another.
type Stage interface {
	// Type returns the registry tag of the stage, for example
	// "filter".
	Type() string

	// Process derives a new table. On error the input table is
	// unaffected and no partial result exists.
	Process(table *feature.Table) (*feature.Table, error)
}

// Constructor builds a stage from its raw configuration object. The
// object still contains the "type" tag; constructors ignore unknown
// keys.
type Constructor func(config json.RawMessage) (Stage, error)

var registry = map[string]Constructor{
	"filter":    newFilter,
	"groupby":   newAggregate,
	"calculate": newCalculate,
	"sort":      newSort,
	"limit":     newLimit,
}

// Types returns the registered stage type tags, sorted.
func Types() []string {
	types := make([]string, 0, len(registry))
	for tag := range registry {
		types = append(types, tag)
	}
	sort.Strings(types)
	return types
}

// New constructs a single stage by type tag. Unknown tags are a
// ValidationError.
func New(typeTag string, config json.RawMessage) (Stage, error) {
	constructor, ok := registry[typeTag]
	if !ok {
		return nil, validationError("type", "unknown stage type %q (supported: %s)",
			typeTag, strings.Join(Types(), ", "))
	}
	return constructor(config)
}

// ValidationError reports a configuration problem: an unknown type
// tag, a malformed option, or a column that does not fit the table a
// stage was given. The pipeline and the artifact set locate the error
// with the list scope, index, and type tag of the owner.
type ValidationError struct {
	// Scope is "operations" or "outputs"; empty until the error is
	// located by a builder.
	Scope string
	// Index is the position in the operation or output list, -1
	// until located.
	Index int
	// Type is the stage or output type tag.
	Type string
	// Key is the configuration key at fault, when one is
	// identifiable.
	Key string
	// Message describes the problem.
	Message string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	if e.Scope != "" && e.Index >= 0 {
		fmt.Fprintf(&b, "%s[%d]", e.Scope, e.Index)
		if e.Type != "" {
			fmt.Fprintf(&b, " %q", e.Type)
		}
		b.WriteString(": ")
	}
	if e.Key != "" {
		fmt.Fprintf(&b, "%s: ", e.Key)
	}
	b.WriteString(e.Message)
	return b.String()
}

// Locate fills in the owning list scope, position, and type tag of an
// unlocated ValidationError anywhere in err's chain, and returns err.
func Locate(err error, scope string, index int, typeTag string) error {
	var validation *ValidationError
	if errors.As(err, &validation) && validation.Scope == "" {
		validation.Scope = scope
		validation.Index = index
		validation.Type = typeTag
	}
	return err
}

func validationError(key, format string, args ...any) *ValidationError {
	return &ValidationError{Index: -1, Key: key, Message: fmt.Sprintf(format, args...)}
}

// ComputeError reports a failed calculation: an unknown or non-numeric
// column reference, or an expression producing a non-finite value. It
// names the target column and the expression text.
type ComputeError struct {
	Column     string
	Expression string
	Err        error
}

func (e *ComputeError) Error() string {
	return fmt.Sprintf("computing %q from %q: %v", e.Column, e.Expression, e.Err)
}

func (e *ComputeError) Unwrap() error { return e.Err }

// decodeConfig unmarshals a stage configuration object, reporting
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
