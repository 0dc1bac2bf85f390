// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package source

import (
	"encoding/csv"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/bureau-foundation/geotable/lib/feature"
)

// loadCSV reads a plain tabular file with a header row. Column kinds
// are inferred: numeric when every non-empty cell parses as a float,
// boolean when every non-empty cell is true or false, text otherwise.
// Empty cells are null. A CSV table carries no geometry and no CRS.
func loadCSV(path string) (*feature.Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	if len(records) == 0 {
		return nil, loadError(path, "missing header row")
	}
	header := records[0]
	rows := records[1:]
	if len(rows) == 0 {
		return nil, loadError(path, "no records after the header row")
	}

	columns := make([]feature.Column, len(header))
	for i, name := range header {
		columns[i] = feature.Column{Name: strings.TrimSpace(name), Kind: inferKind(rows, i)}
	}
	builder, err := feature.NewBuilder(columns)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	for _, row := range rows {
		cells := make([]any, len(columns))
		for i, column := range columns {
			raw := strings.TrimSpace(row[i])
			if raw == "" {
				continue
			}
			switch column.Kind {
			case feature.Numeric:
				cells[i], _ = strconv.ParseFloat(raw, 64)
			case feature.Boolean:
				cells[i] = strings.EqualFold(raw, "true")
			default:
				cells[i] = raw
			}
		}
		if err := builder.Append(cells...); err != nil {
			return nil, &LoadError{Path: path, Err: err}
		}
	}
	return builder.Table(), nil
}

// inferKind scans one column across every row. Non-finite floats do
// not count as numeric, so sentinel strings like "NaN" turn the column
// into text instead of smuggling non-finite values into the table.
func inferKind(rows [][]string, index int) feature.Kind {
	numeric, boolean := true, true
	nonEmpty := 0
	for _, row := range rows {
		value := strings.TrimSpace(row[index])
		if value == "" {
			continue
		}
		nonEmpty++
		if parsed, err := strconv.ParseFloat(value, 64); err != nil || math.IsInf(parsed, 0) || math.IsNaN(parsed) {
			numeric = false
		}
		if !strings.EqualFold(value, "true") && !strings.EqualFold(value, "false") {
			boolean = false
		}
	}
	switch {
	case nonEmpty == 0:
		return feature.Text
	case boolean:
		return feature.Boolean
	case numeric:
		return feature.Numeric
	default:
		return feature.Text
	}
}
