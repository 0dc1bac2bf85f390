// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package jobdef

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseJSONC(t *testing.T) {
	t.Parallel()

	data := []byte(`{
		// keep the big ones, then total per region
		"operations": [
			{"type": "filter", "column": "population", "operator": ">", "value": 1000000},
			{"type": "groupby", "columns": ["region"], "aggregations": {"population": "sum"},},
		],
		"outputs": [
			{"type": "spreadsheet", "path": "out/table.xlsx"},
			{"type": "choropleth_map", "path": "out/map.png", "column": "population"},
		],
	}`)

	job, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(job.Operations) != 2 {
		t.Fatalf("got %d operations, want 2", len(job.Operations))
	}
	if job.Operations[0].Type != "filter" || job.Operations[1].Type != "groupby" {
		t.Errorf("operation types = %q, %q", job.Operations[0].Type, job.Operations[1].Type)
	}
	if !strings.Contains(string(job.Operations[0].Config), `"operator"`) {
		t.Errorf("operation config not retained: %s", job.Operations[0].Config)
	}
	if len(job.Outputs) != 2 {
		t.Fatalf("got %d outputs, want 2", len(job.Outputs))
	}
	if job.Outputs[1].Type != "choropleth_map" || job.Outputs[1].Path != "out/map.png" {
		t.Errorf("output[1] = %q %q", job.Outputs[1].Type, job.Outputs[1].Path)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	t.Parallel()

	if _, err := Parse([]byte(`{"operations": "not a list"}`)); err == nil {
		t.Error("operations as string accepted")
	}
	if _, err := Parse([]byte(`{"operations": ["not an object"]}`)); err == nil {
		t.Error("operation as string accepted")
	}
}

func TestParseYAMLPreservesKeyOrder(t *testing.T) {
	t.Parallel()

	data := []byte(`
operations:
  - type: groupby
    columns: [region]
    aggregations:
      population: sum
      area: mean
      density: max
outputs:
  - type: spreadsheet
    path: out.xlsx
    freeze_panes: false
`)

	job, err := ParseYAML(data)
	if err != nil {
		t.Fatalf("ParseYAML: %v", err)
	}
	if len(job.Operations) != 1 || job.Operations[0].Type != "groupby" {
		t.Fatalf("operations = %+v", job.Operations)
	}

	config := string(job.Operations[0].Config)
	population := strings.Index(config, `"population"`)
	area := strings.Index(config, `"area"`)
	density := strings.Index(config, `"density"`)
	if population < 0 || area < 0 || density < 0 {
		t.Fatalf("aggregation keys missing from config: %s", config)
	}
	if !(population < area && area < density) {
		t.Errorf("aggregation order lost: %s", config)
	}

	if job.Outputs[0].Path != "out.xlsx" {
		t.Errorf("output path = %q", job.Outputs[0].Path)
	}
	if !strings.Contains(string(job.Outputs[0].Config), `"freeze_panes":false`) {
		t.Errorf("boolean option lost: %s", job.Outputs[0].Config)
	}
}

func TestParseYAMLScalars(t *testing.T) {
	t.Parallel()

	data := []byte(`
operations:
  - type: filter
    column: name
    operator: "=="
    value: null
  - type: limit
    n: 0x10
`)
	job, err := ParseYAML(data)
	if err != nil {
		t.Fatalf("ParseYAML: %v", err)
	}
	if !strings.Contains(string(job.Operations[0].Config), `"value":null`) {
		t.Errorf("null lost: %s", job.Operations[0].Config)
	}
	if !strings.Contains(string(job.Operations[1].Config), `"n":16`) {
		t.Errorf("hex integer not normalized: %s", job.Operations[1].Config)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		source         string
		expectedIssues int
		wantSubstrings []string
	}{
		{
			name:           "empty job",
			source:         `{}`,
			expectedIssues: 1,
			wantSubstrings: []string{"no operations and no outputs"},
		},
		{
			name: "valid job",
			source: `{
				"operations": [{"type": "filter"}],
				"outputs": [{"type": "spreadsheet", "path": "a.xlsx"}]
			}`,
			expectedIssues: 0,
		},
		{
			name:           "operation missing type",
			source:         `{"operations": [{"column": "x"}]}`,
			expectedIssues: 1,
			wantSubstrings: []string{"operations[0]: missing type"},
		},
		{
			name:           "output missing path",
			source:         `{"outputs": [{"type": "spreadsheet"}]}`,
			expectedIssues: 1,
			wantSubstrings: []string{`outputs[0] "spreadsheet": missing path`},
		},
		{
			name: "duplicate output path",
			source: `{"outputs": [
				{"type": "spreadsheet", "path": "same.xlsx"},
				{"type": "bar_chart", "path": "same.xlsx"}
			]}`,
			expectedIssues: 1,
			wantSubstrings: []string{`path "same.xlsx" already used by outputs[0]`},
		},
		{
			name:           "output missing type and path",
			source:         `{"outputs": [{}]}`,
			expectedIssues: 2,
			wantSubstrings: []string{"outputs[0]: missing type", "missing path"},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			job, err := Parse([]byte(test.source))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			issues := Validate(job)
			if len(issues) != test.expectedIssues {
				t.Errorf("got %d issues, want %d: %v", len(issues), test.expectedIssues, issues)
			}
			joined := strings.Join(issues, "\n")
			for _, want := range test.wantSubstrings {
				if !strings.Contains(joined, want) {
					t.Errorf("issues %q do not contain %q", joined, want)
				}
			}
		})
	}
}

func TestReadFile(t *testing.T) {
	t.Parallel()

	directory := t.TempDir()

	jsoncPath := filepath.Join(directory, "job.jsonc")
	if err := os.WriteFile(jsoncPath, []byte(`{
		// trailing comma below
		"outputs": [{"type": "simple_map", "path": "map.png"},],
	}`), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	job, err := ReadFile(jsoncPath)
	if err != nil {
		t.Fatalf("ReadFile(jsonc): %v", err)
	}
	if len(job.Outputs) != 1 || job.Outputs[0].Type != "simple_map" {
		t.Errorf("jsonc outputs = %+v", job.Outputs)
	}

	yamlPath := filepath.Join(directory, "job.yaml")
	if err := os.WriteFile(yamlPath, []byte("outputs:\n  - type: spreadsheet\n    path: out.xlsx\n"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	job, err = ReadFile(yamlPath)
	if err != nil {
		t.Fatalf("ReadFile(yaml): %v", err)
	}
	if len(job.Outputs) != 1 || job.Outputs[0].Type != "spreadsheet" {
		t.Errorf("yaml outputs = %+v", job.Outputs)
	}

	if _, err := ReadFile(filepath.Join(directory, "absent.jsonc")); err == nil {
		t.Error("missing file accepted")
	}
}

func TestNameFromPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
	}{
		{"jobs/regions-by-population.jsonc", "regions-by-population"},
		{"simple.yaml", "simple"},
		{"/absolute/path/to/job.json", "job"},
		{"noextension", "noextension"},
	}
	for _, test := range tests {
		if got := NameFromPath(test.path); got != test.want {
			t.Errorf("NameFromPath(%q) = %q, want %q", test.path, got, test.want)
		}
	}
}
