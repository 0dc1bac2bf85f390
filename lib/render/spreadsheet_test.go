// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/xuri/excelize/v2"

	"github.com/bureau-foundation/geotable/lib/feature"
)

// openWorkbook reopens a generated workbook for inspection.
func openWorkbook(t *testing.T, path string) *excelize.File {
	t.Helper()
	file, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile(%s): %v", path, err)
	}
	t.Cleanup(func() { file.Close() })
	return file
}

// cellValue reads one cell as text.
func cellValue(t *testing.T, file *excelize.File, sheet, cell string) string {
	t.Helper()
	value, err := file.GetCellValue(sheet, cell)
	if err != nil {
		t.Fatalf("GetCellValue(%s!%s): %v", sheet, cell, err)
	}
	return value
}

func TestSpreadsheetWorkbook(t *testing.T) {
	t.Parallel()

	path, err := generate(t, "spreadsheet", `{"include_geometry": true}`, cityTable(t), "cities.xlsx")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	file := openWorkbook(t, path)
	if sheets := file.GetSheetList(); len(sheets) != 1 || sheets[0] != "Data" {
		t.Fatalf("sheets = %v, want [Data]", sheets)
	}

	header := []struct{ cell, want string }{
		{"A1", "name"},
		{"B1", "region"},
		{"C1", "population"},
		{"D1", "geometry_wkt"},
	}
	for _, column := range header {
		if got := cellValue(t, file, "Data", column.cell); got != column.want {
			t.Errorf("%s = %q, want %q", column.cell, got, column.want)
		}
	}

	if got := cellValue(t, file, "Data", "A2"); got != "porto" {
		t.Errorf("A2 = %q, want porto", got)
	}
	if got := cellValue(t, file, "Data", "C2"); got != "10" {
		t.Errorf("C2 = %q, want 10", got)
	}
	if got := cellValue(t, file, "Data", "D2"); got != "POINT(0 0)" {
		t.Errorf("D2 = %q, want POINT(0 0)", got)
	}
	// serra's null region and null geometry stay empty.
	if got := cellValue(t, file, "Data", "B5"); got != "" {
		t.Errorf("B5 = %q, want empty", got)
	}
	if got := cellValue(t, file, "Data", "D5"); got != "" {
		t.Errorf("D5 = %q, want empty", got)
	}
}

func TestSpreadsheetColumnSubset(t *testing.T) {
	t.Parallel()

	config := `{"columns": ["population", "name"], "sheet_name": "Cities"}`
	path, err := generate(t, "spreadsheet", config, cityTable(t), "subset.xlsx")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	file := openWorkbook(t, path)
	if sheets := file.GetSheetList(); len(sheets) != 1 || sheets[0] != "Cities" {
		t.Fatalf("sheets = %v, want [Cities]", sheets)
	}
	if got := cellValue(t, file, "Cities", "A1"); got != "population" {
		t.Errorf("A1 = %q, want population", got)
	}
	if got := cellValue(t, file, "Cities", "B1"); got != "name" {
		t.Errorf("B1 = %q, want name", got)
	}
	if got := cellValue(t, file, "Cities", "C1"); got != "" {
		t.Errorf("C1 = %q, want empty", got)
	}
}

func TestSpreadsheetGeometryExcludedByDefault(t *testing.T) {
	t.Parallel()

	path, err := generate(t, "spreadsheet", `{}`, cityTable(t), "plain.xlsx")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	file := openWorkbook(t, path)
	if got := cellValue(t, file, "Data", "D1"); got != "" {
		t.Errorf("D1 = %q, want empty without include_geometry", got)
	}
}

func TestSpreadsheetTableWithoutGeometry(t *testing.T) {
	t.Parallel()

	table := buildTable(t,
		[]feature.Column{
			{Name: "name", Kind: feature.Text},
			{Name: "score", Kind: feature.Numeric},
		},
		[]any{"alpha", 1.0},
		[]any{"beta", 2.0},
	)
	path, err := generate(t, "spreadsheet", `{"include_geometry": true}`, table, "scores.xlsx")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	file := openWorkbook(t, path)
	if got := cellValue(t, file, "Data", "B1"); got != "score" {
		t.Errorf("B1 = %q, want score", got)
	}
	if got := cellValue(t, file, "Data", "C1"); got != "" {
		t.Errorf("C1 = %q, want no geometry_wkt column", got)
	}
}

func TestSpreadsheetConstructionErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		config string
		want   []string
	}{
		{
			name:   "empty column name",
			config: `{"columns": ["name", ""]}`,
			want:   []string{"columns[1] is empty"},
		},
		{
			name:   "malformed columns",
			config: `{"columns": "name"}`,
			want:   []string{"bad configuration"},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			_, err := newSpreadsheet(json.RawMessage(test.config))
			wantValidationError(t, err, test.want...)
		})
	}
}

func TestSpreadsheetTableErrors(t *testing.T) {
	t.Parallel()

	t.Run("unknown column", func(t *testing.T) {
		t.Parallel()
		_, err := generate(t, "spreadsheet", `{"columns": ["altitude"]}`, cityTable(t), "bad.xlsx")
		wantValidationError(t, err, `column "altitude" not in table`, "name, region, population")
	})

	t.Run("geometry only", func(t *testing.T) {
		t.Parallel()
		table := buildTable(t,
			[]feature.Column{{Name: "geometry", Kind: feature.Geometry}},
			[]any{orb.Point{0, 0}},
		)
		_, err := generate(t, "spreadsheet", `{}`, table, "empty.xlsx")
		wantValidationError(t, err, "no columns to write")
	})
}
