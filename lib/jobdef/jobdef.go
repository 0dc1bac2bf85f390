// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package jobdef provides parsing and structural validation for
// geotable job definitions. A job is the declarative description of
// one run: an ordered list of transformation operations and a list of
// artifacts to generate from the result.
//
// Jobs are authored on disk as JSONC files (JSON extended with
// comments and trailing commas) or as YAML. Both formats decode into
// the same Job structure; each operation and output keeps its raw
// configuration object, which the owning stage or renderer
// constructor decodes and validates.
//
// The typical flow:
//
//  1. ReadFile or Parse: bytes → Job
//  2. Validate: structural checks (type tags present, output paths
//     present and unique)
//  3. stage.Build / render.Build: semantic validation and
//     construction, before any data is processed
package jobdef

import (
	"encoding/json"
	"fmt"
)

// Job is one parsed job definition.
type Job struct {
	// Operations run strictly in order against the loaded table.
	Operations []Operation `json:"operations"`

	// Outputs are generated from the final table, each independently.
	Outputs []Output `json:"outputs"`
}

// Operation is one transformation step: a stage type tag plus the raw
// configuration object it appeared in. The stage constructor owns
// decoding and validating Config.
type Operation struct {
	Type   string
	Config json.RawMessage
}

// UnmarshalJSON extracts the type tag and retains the whole object as
// the stage configuration.
func (o *Operation) UnmarshalJSON(data []byte) error {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return fmt.Errorf("operation is not an object: %w", err)
	}
	o.Type = tag.Type
	o.Config = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON writes back the retained configuration object.
func (o Operation) MarshalJSON() ([]byte, error) {
	if len(o.Config) == 0 {
		return json.Marshal(struct {
			Type string `json:"type"`
		}{Type: o.Type})
	}
	return o.Config, nil
}

// Output is one requested artifact: a renderer type tag, the
// destination path, and the raw configuration object for the
// renderer constructor.
type Output struct {
	Type   string
	Path   string
	Config json.RawMessage
}

// UnmarshalJSON extracts the type tag and path and retains the whole
// object as the renderer configuration.
func (o *Output) UnmarshalJSON(data []byte) error {
	var tag struct {
		Type string `json:"type"`
		Path string `json:"path"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return fmt.Errorf("output is not an object: %w", err)
	}
	o.Type = tag.Type
	o.Path = tag.Path
	o.Config = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON writes back the retained configuration object.
func (o Output) MarshalJSON() ([]byte, error) {
	if len(o.Config) == 0 {
		return json.Marshal(struct {
			Type string `json:"type"`
			Path string `json:"path,omitempty"`
		}{Type: o.Type, Path: o.Path})
	}
	return o.Config, nil
}
