// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"encoding/json"
	"strings"

	"github.com/paulmach/orb/encoding/wkt"
	"github.com/xuri/excelize/v2"

	"github.com/bureau-foundation/geotable/lib/feature"
)

// wktColumn is the text column that carries the geometry when a
// spreadsheet includes it.
const wktColumn = "geometry_wkt"

// spreadsheetRenderer writes the table to an Excel workbook: header
// row, one record per row, numeric cells as numbers and boolean cells
// as booleans, nulls as empty cells.
type spreadsheetRenderer struct {
	sheetName       string
	columns         []string
	includeGeometry bool
	freezePanes     bool
	autoFilter      bool
	headerStyle     bool
}

type spreadsheetConfig struct {
	SheetName       string   `json:"sheet_name"`
	Columns         []string `json:"columns"`
	IncludeGeometry bool     `json:"include_geometry"`
	FreezePanes     *bool    `json:"freeze_panes"`
	AutoFilter      *bool    `json:"auto_filter"`
	HeaderStyle     *bool    `json:"header_style"`
}

func newSpreadsheet(config json.RawMessage) (Renderer, error) {
	var options spreadsheetConfig
	if err := decodeConfig(config, &options); err != nil {
		return nil, err
	}
	for i, column := range options.Columns {
		if column == "" {
			return nil, validationError("columns", "columns[%d] is empty", i)
		}
	}
	renderer := &spreadsheetRenderer{
		sheetName:       options.SheetName,
		columns:         options.Columns,
		includeGeometry: options.IncludeGeometry,
		freezePanes:     options.FreezePanes == nil || *options.FreezePanes,
		autoFilter:      options.AutoFilter == nil || *options.AutoFilter,
		headerStyle:     options.HeaderStyle == nil || *options.HeaderStyle,
	}
	if renderer.sheetName == "" {
		renderer.sheetName = "Data"
	}
	return renderer, nil
}

func (r *spreadsheetRenderer) Type() string { return "spreadsheet" }

func (r *spreadsheetRenderer) Generate(table *feature.Table, path string) (string, error) {
	columns, err := r.outputColumns(table)
	if err != nil {
		return "", err
	}

	file := excelize.NewFile()
	defer file.Close()
	sheet := r.sheetName
	if err := file.SetSheetName("Sheet1", sheet); err != nil {
		return "", err
	}

	// Column widths track the widest formatted cell, header included.
	widths := make([]int, len(columns))
	setCell := func(column, row int, value any) error {
		cell, err := excelize.CoordinatesToCellName(column+1, row+1)
		if err != nil {
			return err
		}
		return file.SetCellValue(sheet, cell, value)
	}

	for j, name := range columns {
		if err := setCell(j, 0, name); err != nil {
			return "", err
		}
		widths[j] = len(name)
	}

	for record := 0; record < table.NumRecords(); record++ {
		for j, name := range columns {
			value, text := r.cell(table, record, name)
			if value == nil {
				continue
			}
			if err := setCell(j, record+1, value); err != nil {
				return "", err
			}
			if len(text) > widths[j] {
				widths[j] = len(text)
			}
		}
	}

	for j := range columns {
		name, err := excelize.ColumnNumberToName(j + 1)
		if err != nil {
			return "", err
		}
		width := widths[j] + 2
		if width > 50 {
			width = 50
		}
		if err := file.SetColWidth(sheet, name, name, float64(width)); err != nil {
			return "", err
		}
	}

	if r.headerStyle {
		style, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return "", err
		}
		last, err := excelize.CoordinatesToCellName(len(columns), 1)
		if err != nil {
			return "", err
		}
		if err := file.SetCellStyle(sheet, "A1", last, style); err != nil {
			return "", err
		}
	}
	if r.freezePanes {
		panes := &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		}
		if err := file.SetPanes(sheet, panes); err != nil {
			return "", err
		}
	}
	if r.autoFilter {
		last, err := excelize.CoordinatesToCellName(len(columns), table.NumRecords()+1)
		if err != nil {
			return "", err
		}
		if err := file.AutoFilter(sheet, "A1:"+last, nil); err != nil {
			return "", err
		}
	}

	if err := file.SaveAs(path); err != nil {
		return "", err
	}
	return path, nil
}

// outputColumns resolves the written column list: every data column,
// plus the WKT column when the geometry is included, narrowed to the
// configured subset.
func (r *spreadsheetRenderer) outputColumns(table *feature.Table) ([]string, error) {
	available := make([]string, 0, table.NumColumns())
	geometryColumn, hasGeometry := table.GeometryColumn()
	for _, name := range table.ColumnNames() {
		if name == geometryColumn && hasGeometry {
			continue
		}
		available = append(available, name)
	}
	if r.includeGeometry && hasGeometry {
		available = append(available, wktColumn)
	}
	if len(available) == 0 {
		return nil, validationError("columns", "no columns to write")
	}
	if len(r.columns) == 0 {
		return available, nil
	}

	set := make(map[string]bool, len(available))
	for _, name := range available {
		set[name] = true
	}
	for _, name := range r.columns {
		if !set[name] {
			return nil, validationError("columns", "column %q not in table (columns: %s)",
				name, strings.Join(available, ", "))
		}
	}
	return r.columns, nil
}

// cell resolves one written cell value and its display text for width
// tracking. A nil value means an empty cell.
func (r *spreadsheetRenderer) cell(table *feature.Table, record int, column string) (any, string) {
	if column == wktColumn {
		geometry := table.Geometry(record)
		if geometry == nil {
			return nil, ""
		}
		text := wkt.MarshalString(geometry)
		return text, text
	}
	value := table.Value(record, column)
	if value == nil {
		return nil, ""
	}
	return value, feature.FormatCell(value)
}
