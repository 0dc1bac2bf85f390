// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/bureau-foundation/geotable/lib/testutil"
)

const citiesGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"name": "porto", "region": "north", "population": 10},
      "geometry": {"type": "Point", "coordinates": [0, 0]}
    },
    {
      "type": "Feature",
      "properties": {"name": "vila", "region": "south", "population": 9},
      "geometry": {"type": "Point", "coordinates": [1, 1]}
    },
    {
      "type": "Feature",
      "properties": {"name": "campo", "region": "north", "population": 8},
      "geometry": {"type": "Point", "coordinates": [2, 2]}
    },
    {
      "type": "Feature",
      "properties": {"name": "serra", "region": null, "population": null},
      "geometry": null
    }
  ]
}`

// runArgs invokes run() with the given command line. Tests mutate
// os.Args, so none of them run in parallel.
func runArgs(t *testing.T, args ...string) error {
	t.Helper()
	os.Args = append([]string{"geotable"}, args...)
	return run()
}

func wantRunError(t *testing.T, err error, substrings ...string) {
	t.Helper()
	if err == nil {
		t.Fatalf("run() succeeded, want error containing %q", substrings)
	}
	for _, want := range substrings {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not contain %q", err, want)
		}
	}
}

func wantFileMagic(t *testing.T, path, magic string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading artifact: %v", err)
	}
	if !strings.HasPrefix(string(data), magic) {
		t.Errorf("artifact %s starts with %q, want prefix %q", path, data[:min(len(data), 8)], magic)
	}
}

func TestRunSimpleMode(t *testing.T) {
	input := testutil.WriteFile(t, "cities.geojson", citiesGeoJSON)
	outDir := t.TempDir()
	spreadsheet := filepath.Join(outDir, "report.xlsx")
	barChart := filepath.Join(outDir, "regions.png")

	err := runArgs(t, input,
		"--spreadsheet", spreadsheet,
		"--bar-chart", barChart, "--bar-column", "region")
	if err != nil {
		t.Fatalf("run() failed: %v", err)
	}

	wantFileMagic(t, spreadsheet, "PK\x03\x04")
	wantFileMagic(t, barChart, "\x89PNG\r\n\x1a\n")
}

func TestRunConfigMode(t *testing.T) {
	input := testutil.WriteFile(t, "cities.geojson", citiesGeoJSON)
	outDir := t.TempDir()
	spreadsheet := filepath.Join(outDir, "filtered.xlsx")
	choropleth := filepath.Join(outDir, "population.png")

	config := testutil.WriteFile(t, "job.jsonc", fmt.Sprintf(`{
	  // Keep the larger settlements, then report on them.
	  "operations": [
	    {"type": "filter", "column": "population", "operator": ">", "value": 8},
	  ],
	  "outputs": [
	    {"type": "spreadsheet", "path": %q},
	    {"type": "choropleth_map", "path": %q, "column": "population", "classes": 3},
	  ],
	}`, spreadsheet, choropleth))

	if err := runArgs(t, input, "--config", config); err != nil {
		t.Fatalf("run() failed: %v", err)
	}

	wantFileMagic(t, choropleth, "\x89PNG\r\n\x1a\n")

	// The filter ran before the spreadsheet: two records survive.
	workbook, err := excelize.OpenFile(spreadsheet)
	if err != nil {
		t.Fatalf("opening workbook: %v", err)
	}
	defer workbook.Close()
	for cell, want := range map[string]string{
		"A1": "name", "A2": "porto", "A3": "vila", "A4": "",
	} {
		got, err := workbook.GetCellValue("Data", cell)
		if err != nil {
			t.Fatalf("reading %s: %v", cell, err)
		}
		if got != want {
			t.Errorf("%s = %q, want %q", cell, got, want)
		}
	}
}

func TestRunArtifactFailureKeepsExitZero(t *testing.T) {
	// A CSV table has no geometry, so the map fails, but the run still
	// succeeds and the spreadsheet is written.
	input := testutil.WriteFile(t, "plain.csv", "name,value\na,1\nb,2\n")
	outDir := t.TempDir()
	spreadsheet := filepath.Join(outDir, "report.xlsx")
	geomap := filepath.Join(outDir, "map.png")

	err := runArgs(t, input, "--spreadsheet", spreadsheet, "--simple-map", geomap)
	if err != nil {
		t.Fatalf("run() failed: %v", err)
	}

	wantFileMagic(t, spreadsheet, "PK\x03\x04")
	if _, err := os.Stat(geomap); !os.IsNotExist(err) {
		t.Errorf("map artifact should not exist, stat err = %v", err)
	}
}

func TestRunStageFailureWritesNoArtifacts(t *testing.T) {
	input := testutil.WriteFile(t, "cities.geojson", citiesGeoJSON)
	spreadsheet := filepath.Join(t.TempDir(), "report.xlsx")

	config := testutil.WriteFile(t, "job.jsonc", fmt.Sprintf(`{
	  "operations": [
	    {"type": "filter", "column": "altitude", "operator": ">", "value": 100}
	  ],
	  "outputs": [{"type": "spreadsheet", "path": %q}]
	}`, spreadsheet))

	err := runArgs(t, input, "--config", config)
	wantRunError(t, err, `operations[0] "filter"`, `column "altitude" not in table`)

	if _, err := os.Stat(spreadsheet); !os.IsNotExist(err) {
		t.Errorf("artifact should not exist after a failed stage, stat err = %v", err)
	}
}

func TestRunConstructionPrecedesLoad(t *testing.T) {
	// The input file does not exist; a bad output declaration still
	// fails first because construction runs before loading.
	config := testutil.WriteFile(t, "job.jsonc", `{
	  "outputs": [{"type": "sculpture", "path": "art.png"}]
	}`)

	err := runArgs(t, "absent.geojson", "--config", config)
	wantRunError(t, err, `unknown output type "sculpture"`)
	if strings.Contains(err.Error(), "loading") {
		t.Errorf("error %q should come from construction, not loading", err)
	}
}

func TestRunLoadError(t *testing.T) {
	spreadsheet := filepath.Join(t.TempDir(), "report.xlsx")
	err := runArgs(t, filepath.Join(t.TempDir(), "absent.geojson"), "--spreadsheet", spreadsheet)
	wantRunError(t, err, "loading", "absent.geojson")
}

func TestRunConfigConflictsWithSimpleFlags(t *testing.T) {
	input := testutil.WriteFile(t, "cities.geojson", citiesGeoJSON)
	err := runArgs(t, input, "--config", "job.jsonc", "--spreadsheet", "report.xlsx")
	wantRunError(t, err, "--config cannot be combined")
}

func TestRunNoOutputs(t *testing.T) {
	input := testutil.WriteFile(t, "cities.geojson", citiesGeoJSON)
	err := runArgs(t, input)
	wantRunError(t, err, "no outputs requested")
}

func TestRunCompanionFlagRequired(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "bar chart without column",
			args: []string{"--bar-chart", "bars.png"},
			want: "--bar-column is required with --bar-chart",
		},
		{
			name: "pie chart without column",
			args: []string{"--pie-chart", "pie.png"},
			want: "--pie-column is required with --pie-chart",
		},
		{
			name: "choropleth without column",
			args: []string{"--choropleth-map", "map.png"},
			want: "--choropleth-column is required with --choropleth-map",
		},
	}

	input := testutil.WriteFile(t, "cities.geojson", citiesGeoJSON)
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := runArgs(t, append([]string{input}, test.args...)...)
			wantRunError(t, err, test.want)
		})
	}
}

func TestRunMissingInputPath(t *testing.T) {
	err := runArgs(t, "--spreadsheet", "report.xlsx")
	wantRunError(t, err, "missing input path")
}

func TestRunUnexpectedArgument(t *testing.T) {
	err := runArgs(t, "one.geojson", "two.geojson")
	wantRunError(t, err, "unexpected argument: two.geojson")
}

func TestRunValidationIssues(t *testing.T) {
	input := testutil.WriteFile(t, "cities.geojson", citiesGeoJSON)
	config := testutil.WriteFile(t, "job.jsonc", `{
	  "outputs": [{"type": "spreadsheet"}]
	}`)

	err := runArgs(t, input, "--config", config)
	wantRunError(t, err, `job "job" has validation errors`, "missing path")
}

func TestRunVersion(t *testing.T) {
	if err := runArgs(t, "--version"); err != nil {
		t.Fatalf("run() failed: %v", err)
	}
}

func TestAssembleJob(t *testing.T) {
	job, err := assembleJob(simpleFlags{
		spreadsheet:      "report.xlsx",
		barChart:         "bars.png",
		barColumn:        "region",
		barValue:         "population",
		pieChart:         "pie.png",
		pieColumn:        "region",
		simpleMap:        "map.png",
		choroplethMap:    "choropleth.png",
		choroplethColumn: "population",
	})
	if err != nil {
		t.Fatalf("assembleJob: %v", err)
	}

	wantTypes := []string{"spreadsheet", "bar_chart", "pie_chart", "simple_map", "choropleth_map"}
	if len(job.Outputs) != len(wantTypes) {
		t.Fatalf("got %d outputs, want %d", len(job.Outputs), len(wantTypes))
	}
	for i, want := range wantTypes {
		if job.Outputs[i].Type != want {
			t.Errorf("outputs[%d].Type = %q, want %q", i, job.Outputs[i].Type, want)
		}
	}

	var barConfig struct {
		X string `json:"x"`
		Y string `json:"y"`
	}
	if err := json.Unmarshal(job.Outputs[1].Config, &barConfig); err != nil {
		t.Fatalf("decoding bar config: %v", err)
	}
	if barConfig.X != "region" || barConfig.Y != "population" {
		t.Errorf("bar config = %+v, want x=region y=population", barConfig)
	}

	var choroplethConfig struct {
		Column string `json:"column"`
	}
	if err := json.Unmarshal(job.Outputs[4].Config, &choroplethConfig); err != nil {
		t.Fatalf("decoding choropleth config: %v", err)
	}
	if choroplethConfig.Column != "population" {
		t.Errorf("choropleth column = %q, want population", choroplethConfig.Column)
	}
}
