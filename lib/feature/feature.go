// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package feature provides the immutable feature table that pipeline
// stages consume and produce.
//
// A table is an ordered sequence of records under a single schema:
// named columns, each with a declared kind (numeric, text, boolean,
// geometry). Every cell is null-capable. A table holds at most one
// geometry column and carries a CRS identifier describing all of its
// geometries.
//
// Tables are immutable: every transformation returns a new table and
// never modifies its input. Derived tables may share backing storage
// with their source, which is safe because no write path exists after
// construction.
package feature

import (
	"fmt"

	"github.com/paulmach/orb"
)

// Kind is the declared value kind of a column.
type Kind int

const (
	// Numeric columns hold float64 cells.
	Numeric Kind = iota
	// Text columns hold string cells.
	Text
	// Boolean columns hold bool cells.
	Boolean
	// Geometry columns hold orb.Geometry cells. A table has at most
	// one geometry column.
	Geometry
)

// String returns the kind name used in error messages and schemas.
func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Text:
		return "text"
	case Boolean:
		return "boolean"
	case Geometry:
		return "geometry"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Column describes one schema entry: a name and a value kind.
type Column struct {
	Name string
	Kind Kind
}

// Table is an immutable ordered collection of records. The zero value
// is not usable; construct tables through a Builder or the derivation
// methods.
type Table struct {
	columns []Column
	index   map[string]int
	rows    [][]any
	geomCol int // position of the geometry column, -1 when absent
	crs     string
}

// NumRecords returns the number of records.
func (t *Table) NumRecords() int { return len(t.rows) }

// NumColumns returns the number of schema columns.
func (t *Table) NumColumns() int { return len(t.columns) }

// Columns returns a copy of the schema in column order.
func (t *Table) Columns() []Column {
	out := make([]Column, len(t.columns))
	copy(out, t.columns)
	return out
}

// ColumnNames returns the column names in schema order.
func (t *Table) ColumnNames() []string {
	out := make([]string, len(t.columns))
	for i, c := range t.columns {
		out[i] = c.Name
	}
	return out
}

// HasColumn reports whether the schema contains the named column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// ColumnKind returns the declared kind of the named column.
func (t *Table) ColumnKind(name string) (Kind, bool) {
	position, ok := t.index[name]
	if !ok {
		return 0, false
	}
	return t.columns[position].Kind, true
}

// GeometryColumn returns the name of the geometry column, if the
// table has one.
func (t *Table) GeometryColumn() (string, bool) {
	if t.geomCol < 0 {
		return "", false
	}
	return t.columns[t.geomCol].Name, true
}

// CRS returns the coordinate reference system identifier for the
// table's geometries, for example "EPSG:4326". Empty when the table
// has no geometry column.
func (t *Table) CRS() string { return t.crs }

// Value returns the cell at the given record for the named column.
// A nil result is a null cell. The column must exist and the record
// index must be in range; callers validate column names before
// iterating records.
func (t *Table) Value(record int, column string) any {
	position, ok := t.index[column]
	if !ok {
		panic(fmt.Sprintf("feature: no column %q", column))
	}
	return t.rows[record][position]
}

// ValueAt returns the cell at the given record and column position.
func (t *Table) ValueAt(record, position int) any {
	return t.rows[record][position]
}

// Geometry returns the geometry of the given record, or nil when the
// table has no geometry column or the cell is null.
func (t *Table) Geometry(record int) orb.Geometry {
	if t.geomCol < 0 {
		return nil
	}
	cell := t.rows[record][t.geomCol]
	if cell == nil {
		return nil
	}
	return cell.(orb.Geometry)
}

// Select returns a new table containing the records at the given
// indices, in the given order. Records are shared with the receiver.
// Indices must be in range.
func (t *Table) Select(indices []int) *Table {
	rows := make([][]any, len(indices))
	for i, index := range indices {
		rows[i] = t.rows[index]
	}
	return &Table{
		columns: t.columns,
		index:   t.index,
		rows:    rows,
		geomCol: t.geomCol,
		crs:     t.crs,
	}
}

// WithNumericColumn returns a new table with the named numeric column
// set to the given cells, one per record (nil cells are null). An
// existing non-geometry column of the same name is replaced in place
// and becomes numeric; a new name is appended to the schema. Replacing
// the geometry column is an error.
func (t *Table) WithNumericColumn(name string, cells []any) (*Table, error) {
	if len(cells) != len(t.rows) {
		return nil, fmt.Errorf("column %q: %d cells for %d records", name, len(cells), len(t.rows))
	}
	for i, cell := range cells {
		if cell == nil {
			continue
		}
		if _, ok := cell.(float64); !ok {
			return nil, fmt.Errorf("column %q: record %d holds %T, want float64 or nil", name, i, cell)
		}
	}

	position, exists := t.index[name]
	if exists && t.columns[position].Kind == Geometry {
		return nil, fmt.Errorf("column %q is the geometry column and cannot be replaced", name)
	}

	columns := make([]Column, len(t.columns))
	copy(columns, t.columns)
	if exists {
		columns[position].Kind = Numeric
	} else {
		position = len(columns)
		columns = append(columns, Column{Name: name, Kind: Numeric})
	}

	index := make(map[string]int, len(columns))
	for i, c := range columns {
		index[c.Name] = i
	}

	rows := make([][]any, len(t.rows))
	for i, row := range t.rows {
		cells2 := make([]any, len(columns))
		copy(cells2, row)
		cells2[position] = cells[i]
		rows[i] = cells2
	}

	return &Table{
		columns: columns,
		index:   index,
		rows:    rows,
		geomCol: t.geomCol,
		crs:     t.crs,
	}, nil
}
