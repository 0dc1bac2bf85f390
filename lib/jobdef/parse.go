// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package jobdef

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
)

// Parse strips JSONC comments and trailing commas from data, then
// unmarshals the result into a Job. The input is plain JSON extended
// with // line comments, /* block comments */, and trailing commas.
func Parse(data []byte) (*Job, error) {
	stripped := jsonc.ToJSON(data)

	var job Job
	if err := json.Unmarshal(stripped, &job); err != nil {
		return nil, fmt.Errorf("parsing job: %w", err)
	}

	return &job, nil
}

// ReadFile reads a job file from disk and parses it. The format is
// chosen by extension: .yaml and .yml are YAML, everything else is
// JSONC. Returns a descriptive error if the file cannot be read or
// the content is malformed.
func ReadFile(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var job *Job
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		job, err = ParseYAML(data)
	default:
		job, err = Parse(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return job, nil
}

// NameFromPath extracts a job name from a file path by stripping the
// directory prefix and the file extension. For example,
// "jobs/regions-by-population.jsonc" returns "regions-by-population".
func NameFromPath(path string) string {
	base := filepath.Base(path)
	extension := filepath.Ext(base)
	return strings.TrimSuffix(base, extension)
}
