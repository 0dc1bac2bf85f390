// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// geotable processes geographic feature collections into spreadsheets,
// charts, and maps. It loads a GeoJSON or CSV file into an immutable
// feature table, runs the job's transformation stages over it in
// order, and generates the declared artifacts from the result.
//
// Two modes of operation:
//
// Config mode (--config): a JSONC or YAML job file declares the
// operations and outputs. This is the full surface: filters, grouping,
// computed columns, sorting, limits, and every output type.
//
// Simple mode: a handful of flags request common artifacts directly
// (--spreadsheet, --bar-chart, --pie-chart, --simple-map,
// --choropleth-map) with no transformation stages. The flags assemble
// the same job structure a config file would declare.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/geotable/lib/jobdef"
	"github.com/bureau-foundation/geotable/lib/render"
	"github.com/bureau-foundation/geotable/lib/source"
	"github.com/bureau-foundation/geotable/lib/stage"
	"github.com/bureau-foundation/geotable/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var simple simpleFlags
	var verbose bool

	flagSet := pflag.NewFlagSet("geotable", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "JSONC or YAML job file with operations and outputs")
	flagSet.StringVar(&simple.spreadsheet, "spreadsheet", "", "write an Excel workbook to this path")
	flagSet.StringVar(&simple.barChart, "bar-chart", "", "write a bar chart PNG to this path (requires --bar-column)")
	flagSet.StringVar(&simple.barColumn, "bar-column", "", "category column for --bar-chart")
	flagSet.StringVar(&simple.barValue, "bar-value", "", "value column for --bar-chart (default: count per category)")
	flagSet.StringVar(&simple.pieChart, "pie-chart", "", "write a pie chart PNG to this path (requires --pie-column)")
	flagSet.StringVar(&simple.pieColumn, "pie-column", "", "category column for --pie-chart")
	flagSet.StringVar(&simple.simpleMap, "simple-map", "", "write a geometry map PNG to this path")
	flagSet.StringVar(&simple.choroplethMap, "choropleth-map", "", "write a choropleth map PNG to this path (requires --choropleth-column)")
	flagSet.StringVar(&simple.choroplethColumn, "choropleth-column", "", "value column for --choropleth-map")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	flagSet.BoolP("help", "h", false, "show help")

	// Handle --version before flag parsing to match other Bureau binaries.
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("geotable")
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}

	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	args := flagSet.Args()
	if len(args) == 0 {
		return fmt.Errorf("missing input path (see --help)")
	}
	if len(args) > 1 {
		return fmt.Errorf("unexpected argument: %s", args[1])
	}
	inputPath := args[0]

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	job, jobName, err := resolveJob(configPath, simple)
	if err != nil {
		return err
	}

	if issues := jobdef.Validate(job); len(issues) > 0 {
		return fmt.Errorf("job %q has validation errors:\n  %s", jobName, strings.Join(issues, "\n  "))
	}

	// Construct every stage and renderer before touching any data, so a
	// bad job fails before artifacts exist.
	pipeline, err := stage.Build(job.Operations, stage.Options{Logger: logger})
	if err != nil {
		return fmt.Errorf("job %q: %w", jobName, err)
	}
	artifacts, err := render.Build(job.Outputs, render.Options{Logger: logger})
	if err != nil {
		return fmt.Errorf("job %q: %w", jobName, err)
	}

	table, err := source.Load(inputPath)
	if err != nil {
		return err
	}
	logger.Debug("table loaded",
		"path", inputPath,
		"records", table.NumRecords(),
		"columns", table.NumColumns())

	processed, stageResults, err := pipeline.Execute(table)
	if err != nil {
		return fmt.Errorf("job %q: %w", jobName, err)
	}

	// Artifact failures are warnings: the remaining outputs still run
	// and the summary lists each failure. The exit code stays zero.
	artifactResults := artifacts.Generate(processed)

	printSummary(os.Stdout, runSummary{
		inputPath: inputPath,
		loaded:    table,
		stages:    stageResults,
		artifacts: artifactResults,
	})
	return nil
}

// simpleFlags collects the direct-output flags. Any non-empty value
// makes simple mode active, which conflicts with --config.
type simpleFlags struct {
	spreadsheet      string
	barChart         string
	barColumn        string
	barValue         string
	pieChart         string
	pieColumn        string
	simpleMap        string
	choroplethMap    string
	choroplethColumn string
}

func (f simpleFlags) active() bool {
	return f.spreadsheet != "" || f.barChart != "" || f.barColumn != "" ||
		f.barValue != "" || f.pieChart != "" || f.pieColumn != "" ||
		f.simpleMap != "" || f.choroplethMap != "" || f.choroplethColumn != ""
}

// resolveJob produces the job to run: parsed from the --config file, or
// assembled from the simple-mode flags. The returned name identifies
// the job in error messages.
func resolveJob(configPath string, simple simpleFlags) (*jobdef.Job, string, error) {
	if configPath != "" {
		if simple.active() {
			return nil, "", fmt.Errorf("--config cannot be combined with simple output flags")
		}
		job, err := jobdef.ReadFile(configPath)
		if err != nil {
			return nil, "", err
		}
		return job, jobdef.NameFromPath(configPath), nil
	}
	job, err := assembleJob(simple)
	if err != nil {
		return nil, "", err
	}
	return job, "command line", nil
}

// assembleJob builds the in-memory job the simple-mode flags describe:
// no operations, and one output per requested artifact in a fixed
// order. Chart and choropleth outputs need their column flag.
func assembleJob(simple simpleFlags) (*jobdef.Job, error) {
	job := &jobdef.Job{}

	if simple.spreadsheet != "" {
		job.Outputs = append(job.Outputs, makeOutput("spreadsheet", simple.spreadsheet, nil))
	}
	if simple.barChart != "" {
		if simple.barColumn == "" {
			return nil, fmt.Errorf("--bar-column is required with --bar-chart")
		}
		options := map[string]any{"x": simple.barColumn}
		if simple.barValue != "" {
			options["y"] = simple.barValue
		}
		job.Outputs = append(job.Outputs, makeOutput("bar_chart", simple.barChart, options))
	}
	if simple.pieChart != "" {
		if simple.pieColumn == "" {
			return nil, fmt.Errorf("--pie-column is required with --pie-chart")
		}
		job.Outputs = append(job.Outputs, makeOutput("pie_chart", simple.pieChart,
			map[string]any{"column": simple.pieColumn}))
	}
	if simple.simpleMap != "" {
		job.Outputs = append(job.Outputs, makeOutput("simple_map", simple.simpleMap, nil))
	}
	if simple.choroplethMap != "" {
		if simple.choroplethColumn == "" {
			return nil, fmt.Errorf("--choropleth-column is required with --choropleth-map")
		}
		job.Outputs = append(job.Outputs, makeOutput("choropleth_map", simple.choroplethMap,
			map[string]any{"column": simple.choroplethColumn}))
	}

	if len(job.Outputs) == 0 {
		return nil, fmt.Errorf("no outputs requested: pass --config or at least one of " +
			"--spreadsheet, --bar-chart, --pie-chart, --simple-map, --choropleth-map")
	}
	return job, nil
}

// makeOutput builds the output declaration a config file would have
// carried, so the renderer constructor sees the same raw object either
// way.
func makeOutput(typeTag, path string, options map[string]any) jobdef.Output {
	declaration := map[string]any{"type": typeTag, "path": path}
	for key, value := range options {
		declaration[key] = value
	}
	raw, _ := json.Marshal(declaration)
	return jobdef.Output{Type: typeTag, Path: path, Config: raw}
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `geotable — feature table processing for GeoJSON and CSV data.

Loads the input into a feature table, runs the job's transformation
operations in order, and generates the declared artifacts from the
result. Artifact failures are reported as warnings; a failed operation
aborts the run before any artifact is written.

Usage:
  geotable [flags] <input.{geojson|json|csv}>

Examples:
  # Run a job file
  geotable data.geojson --config job.jsonc

  # Spreadsheet only
  geotable data.geojson --spreadsheet report.xlsx

  # Spreadsheet plus a bar chart of category counts
  geotable data.geojson --spreadsheet report.xlsx \
    --bar-chart types.png --bar-column type

  # Choropleth map classed on a numeric column
  geotable data.geojson --choropleth-map density.png \
    --choropleth-column density

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
