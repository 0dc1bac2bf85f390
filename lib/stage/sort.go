// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stage

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/bureau-foundation/geotable/lib/feature"
)

// sortStage orders records by one or more key columns. The sort is
// stable: records equal under every key keep their input order.
type sortStage struct {
	columns   []string
	ascending []bool
}

// ascendingOption accepts a single boolean (applied to every sort
// column) or a per-column list.
type ascendingOption struct {
	set    bool
	values []bool
}

func (a *ascendingOption) UnmarshalJSON(data []byte) error {
	var single bool
	if err := json.Unmarshal(data, &single); err == nil {
		a.set = true
		a.values = []bool{single}
		return nil
	}
	var list []bool
	if err := json.Unmarshal(data, &list); err == nil {
		a.set = true
		a.values = list
		return nil
	}
	return fmt.Errorf("ascending must be a boolean or a list of booleans")
}

type sortConfig struct {
	Columns   []string        `json:"columns"`
	Ascending ascendingOption `json:"ascending"`
}

func newSort(config json.RawMessage) (Stage, error) {
	var options sortConfig
	if err := decodeConfig(config, &options); err != nil {
		return nil, err
	}

	if len(options.Columns) == 0 {
		return nil, validationError("columns", "sort needs at least one column")
	}
	for _, column := range options.Columns {
		if column == "" {
			return nil, validationError("columns", "sort column names must not be empty")
		}
	}

	ascending := make([]bool, len(options.Columns))
	switch {
	case !options.Ascending.set:
		for i := range ascending {
			ascending[i] = true
		}
	case len(options.Ascending.values) == 1:
		for i := range ascending {
			ascending[i] = options.Ascending.values[0]
		}
	case len(options.Ascending.values) == len(options.Columns):
		copy(ascending, options.Ascending.values)
	default:
		return nil, validationError("ascending", "%d directions for %d columns",
			len(options.Ascending.values), len(options.Columns))
	}

	return &sortStage{columns: options.Columns, ascending: ascending}, nil
}

func (s *sortStage) Type() string { return "sort" }

func (s *sortStage) Process(table *feature.Table) (*feature.Table, error) {
	for _, column := range s.columns {
		kind, ok := table.ColumnKind(column)
		if !ok {
			return nil, validationError("columns", "column %q not in table (columns: %s)",
				column, strings.Join(table.ColumnNames(), ", "))
		}
		if kind == feature.Geometry {
			return nil, validationError("columns", "cannot sort by geometry column %q", column)
		}
	}

	indices := make([]int, table.NumRecords())
	for i := range indices {
		indices[i] = i
	}
	slices.SortStableFunc(indices, func(a, b int) int {
		for i, column := range s.columns {
			comparison := compareCells(table.Value(a, column), table.Value(b, column), s.ascending[i])
			if comparison != 0 {
				return comparison
			}
		}
		return 0
	})
	return table.Select(indices), nil
}

// compareCells orders two cells of the same column. Nulls go last
// regardless of direction, matching pandas na_position.
func compareCells(a, b any, ascending bool) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return 1
		default:
			return -1
		}
	}

	comparison := 0
	switch aValue := a.(type) {
	case float64:
		bValue, _ := feature.Number(b)
		switch {
		case aValue < bValue:
			comparison = -1
		case aValue > bValue:
			comparison = 1
		}
	case string:
		bValue, _ := feature.Str(b)
		comparison = strings.Compare(aValue, bValue)
	case bool:
		bValue, _ := feature.Bool(b)
		switch {
		case !aValue && bValue:
			comparison = -1
		case aValue && !bValue:
			comparison = 1
		}
	}

	if !ascending {
		comparison = -comparison
	}
	return comparison
}
