// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/geotable/lib/feature"
	"github.com/bureau-foundation/geotable/lib/render"
	"github.com/bureau-foundation/geotable/lib/stage"
)

// Summary styles. ANSI 256-color codes for broad terminal
// compatibility; lipgloss drops the escapes when stdout is not a
// terminal.
var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255"))
	sectionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("114")) // green
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208")) // orange
	refStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245")) // gray
)

// runSummary carries everything the end-of-run report prints.
type runSummary struct {
	inputPath string
	loaded    *feature.Table
	stages    []stage.StageResult
	artifacts []render.Result
}

// printSummary writes the human-readable run report: the input shape,
// per-operation record counts, and per-artifact status.
func printSummary(w io.Writer, summary runSummary) {
	fmt.Fprintf(w, "%s  %s\n", headerStyle.Render(summary.inputPath), describeTable(summary.loaded))

	if len(summary.stages) > 0 {
		fmt.Fprintln(w, sectionStyle.Render("operations"))
		for i, result := range summary.stages {
			fmt.Fprintf(w, "  %d. %-10s %d → %d\n", i+1, result.Type, result.RecordsIn, result.RecordsOut)
		}
	}

	if len(summary.artifacts) > 0 {
		fmt.Fprintln(w, sectionStyle.Render("outputs"))
	}
	failed := 0
	for _, result := range summary.artifacts {
		if result.Err != nil {
			failed++
			fmt.Fprintf(w, "  %s %-14s %s\n",
				warnStyle.Render("✗"), result.Type, warnStyle.Render(result.Err.Error()))
			continue
		}
		fmt.Fprintf(w, "  %s %-14s %s  %s\n",
			okStyle.Render("✔"), result.Type, result.Path, refStyle.Render(result.Ref))
	}
	if failed > 0 {
		fmt.Fprintln(w, warnStyle.Render(
			fmt.Sprintf("%d of %d artifacts failed", failed, len(summary.artifacts))))
	}
}

// describeTable renders the one-line table shape: record and column
// counts, plus the CRS when the table carries geometry.
func describeTable(table *feature.Table) string {
	description := fmt.Sprintf("%d records, %d columns", table.NumRecords(), table.NumColumns())
	if _, ok := table.GeometryColumn(); ok {
		description += fmt.Sprintf(" (geometry, %s)", table.CRS())
	}
	return description
}
