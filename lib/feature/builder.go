// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package feature

import (
	"fmt"

	"github.com/paulmach/orb"
)

// Builder assembles a new table record by record. Builders are not
// safe for concurrent use. Table hands the accumulated storage to the
// returned table; the builder must not be reused afterwards.
type Builder struct {
	columns []Column
	index   map[string]int
	geomCol int
	crs     string
	rows    [][]any
	built   bool
}

// NewBuilder returns a builder for a table with the given schema.
// Column names must be unique and non-empty, and at most one column
// may have the geometry kind.
func NewBuilder(columns []Column) (*Builder, error) {
	index := make(map[string]int, len(columns))
	geomCol := -1
	for i, column := range columns {
		if column.Name == "" {
			return nil, fmt.Errorf("column %d has an empty name", i)
		}
		if _, dup := index[column.Name]; dup {
			return nil, fmt.Errorf("duplicate column %q", column.Name)
		}
		index[column.Name] = i
		if column.Kind == Geometry {
			if geomCol >= 0 {
				return nil, fmt.Errorf("column %q: table already has geometry column %q", column.Name, columns[geomCol].Name)
			}
			geomCol = i
		}
	}
	schema := make([]Column, len(columns))
	copy(schema, columns)
	return &Builder{columns: schema, index: index, geomCol: geomCol}, nil
}

// SetCRS records the coordinate reference system identifier for the
// table's geometries, for example "EPSG:4326".
func (b *Builder) SetCRS(crs string) { b.crs = crs }

// Append adds one record. Cells are given in schema order; each must
// be nil (null) or match its column kind. Integer cells are widened
// to float64 for numeric columns.
func (b *Builder) Append(cells ...any) error {
	if len(cells) != len(b.columns) {
		return fmt.Errorf("record has %d cells, schema has %d columns", len(cells), len(b.columns))
	}
	row := make([]any, len(cells))
	for i, cell := range cells {
		normalized, err := normalizeCell(b.columns[i], cell)
		if err != nil {
			return fmt.Errorf("record %d: %w", len(b.rows), err)
		}
		row[i] = normalized
	}
	b.rows = append(b.rows, row)
	return nil
}

// Table returns the assembled table and invalidates the builder.
func (b *Builder) Table() *Table {
	if b.built {
		panic("feature: builder reused after Table")
	}
	b.built = true
	return &Table{
		columns: b.columns,
		index:   b.index,
		rows:    b.rows,
		geomCol: b.geomCol,
		crs:     b.crs,
	}
}

func normalizeCell(column Column, cell any) (any, error) {
	if cell == nil {
		return nil, nil
	}
	switch column.Kind {
	case Numeric:
		switch v := cell.(type) {
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		}
	case Text:
		if v, ok := cell.(string); ok {
			return v, nil
		}
	case Boolean:
		if v, ok := cell.(bool); ok {
			return v, nil
		}
	case Geometry:
		if v, ok := cell.(orb.Geometry); ok {
			return v, nil
		}
	}
	return nil, fmt.Errorf("column %q: cell %T does not fit kind %s", column.Name, cell, column.Kind)
}
