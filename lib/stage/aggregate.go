// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/bureau-foundation/geotable/lib/feature"
)

// aggregateFunctions is the supported aggregation function set.
// Validity by column kind is checked against the actual table:
// numeric-only functions are sum, mean, median, std, var; min and max
// also accept text; count, nunique, first, and last accept any
// non-geometry kind.
var aggregateFunctions = map[string]bool{
	"sum": true, "mean": true, "median": true,
	"count": true, "min": true, "max": true,
	"std": true, "var": true,
	"first": true, "last": true, "nunique": true,
}

var numericOnlyAggregates = map[string]bool{
	"sum": true, "mean": true, "median": true, "std": true, "var": true,
}

// aggregation is one output column: a source column reduced by a
// function. The output column keeps the source column's name.
type aggregation struct {
	column   string
	function string
}

// aggregateStage groups records by key columns and reduces each
// group. Output groups appear in first-seen input order; that order
// is part of the stage's contract, not an implementation accident.
type aggregateStage struct {
	keys         []string
	aggregations []aggregation
	keepGeometry bool
}

type aggregateConfig struct {
	Columns      []string        `json:"columns"`
	Aggregations json.RawMessage `json:"aggregations"`
	KeepGeometry bool            `json:"keep_geometry"`
}

func newAggregate(config json.RawMessage) (Stage, error) {
	var options aggregateConfig
	if err := decodeConfig(config, &options); err != nil {
		return nil, err
	}

	if len(options.Columns) == 0 {
		return nil, validationError("columns", "groupby needs at least one group column")
	}
	keySet := make(map[string]bool, len(options.Columns))
	for _, key := range options.Columns {
		if key == "" {
			return nil, validationError("columns", "group column names must not be empty")
		}
		if keySet[key] {
			return nil, validationError("columns", "duplicate group column %q", key)
		}
		keySet[key] = true
	}

	aggregations, err := parseAggregations(options.Aggregations)
	if err != nil {
		return nil, err
	}
	if len(aggregations) == 0 {
		return nil, validationError("aggregations", "groupby needs at least one aggregation")
	}
	for _, agg := range aggregations {
		if keySet[agg.column] {
			return nil, validationError("aggregations", "column %q is a group key and cannot be aggregated", agg.column)
		}
		if !aggregateFunctions[agg.function] {
			supported := make([]string, 0, len(aggregateFunctions))
			for name := range aggregateFunctions {
				supported = append(supported, name)
			}
			sort.Strings(supported)
			return nil, validationError("aggregations", "unknown function %q for column %q (supported: %s)",
				agg.function, agg.column, strings.Join(supported, ", "))
		}
	}

	return &aggregateStage{
		keys:         options.Columns,
		aggregations: aggregations,
		keepGeometry: options.KeepGeometry,
	}, nil
}

// parseAggregations decodes the aggregations object preserving the
// order the keys appear in the job file. A plain map decode would
// randomize it, and the output column order follows the
// configuration.
func parseAggregations(raw json.RawMessage) ([]aggregation, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))

	openingToken, err := decoder.Token()
	if err != nil {
		return nil, validationError("aggregations", "bad aggregations: %v", err)
	}
	if delim, ok := openingToken.(json.Delim); !ok || delim != '{' {
		return nil, validationError("aggregations", "aggregations must be an object of column to function")
	}

	var aggregations []aggregation
	for decoder.More() {
		keyToken, err := decoder.Token()
		if err != nil {
			return nil, validationError("aggregations", "bad aggregations: %v", err)
		}
		column := keyToken.(string)

		var function string
		if err := decoder.Decode(&function); err != nil {
			return nil, validationError("aggregations", "function for column %q must be a string", column)
		}
		aggregations = append(aggregations, aggregation{column: column, function: function})
	}
	return aggregations, nil
}

func (a *aggregateStage) Type() string { return "groupby" }

func (a *aggregateStage) Process(table *feature.Table) (*feature.Table, error) {
	for _, key := range a.keys {
		kind, ok := table.ColumnKind(key)
		if !ok {
			return nil, validationError("columns", "group column %q not in table (columns: %s)",
				key, strings.Join(table.ColumnNames(), ", "))
		}
		if kind == feature.Geometry {
			return nil, validationError("columns", "cannot group by geometry column %q", key)
		}
	}
	geometryColumn, hasGeometry := table.GeometryColumn()
	for _, agg := range a.aggregations {
		kind, ok := table.ColumnKind(agg.column)
		if !ok {
			return nil, validationError("aggregations", "column %q not in table (columns: %s)",
				agg.column, strings.Join(table.ColumnNames(), ", "))
		}
		if kind == feature.Geometry {
			return nil, validationError("aggregations", "cannot aggregate geometry column %q; use keep_geometry", agg.column)
		}
		if numericOnlyAggregates[agg.function] && kind != feature.Numeric {
			return nil, validationError("aggregations", "%s needs a numeric column, %q is %s", agg.function, agg.column, kind)
		}
		if (agg.function == "min" || agg.function == "max") && kind == feature.Boolean {
			return nil, validationError("aggregations", "%s does not order boolean column %q", agg.function, agg.column)
		}
	}
	if a.keepGeometry && !hasGeometry {
		return nil, validationError("keep_geometry", "table has no geometry column")
	}

	// Group in first-seen order.
	groups := make(map[string][]int)
	var order []string
	for record := 0; record < table.NumRecords(); record++ {
		key := groupKey(table, record, a.keys)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], record)
	}

	// Output schema: group keys, aggregated columns, then geometry
	// when kept.
	columns := make([]feature.Column, 0, len(a.keys)+len(a.aggregations)+1)
	for _, key := range a.keys {
		kind, _ := table.ColumnKind(key)
		columns = append(columns, feature.Column{Name: key, Kind: kind})
	}
	for _, agg := range a.aggregations {
		columns = append(columns, feature.Column{Name: agg.column, Kind: a.outputKind(table, agg)})
	}
	if a.keepGeometry {
		columns = append(columns, feature.Column{Name: geometryColumn, Kind: feature.Geometry})
	}

	builder, err := feature.NewBuilder(columns)
	if err != nil {
		return nil, validationError("aggregations", "%v", err)
	}
	if a.keepGeometry {
		builder.SetCRS(table.CRS())
	}

	for _, key := range order {
		records := groups[key]
		cells := make([]any, 0, len(columns))
		for _, keyColumn := range a.keys {
			cells = append(cells, table.Value(records[0], keyColumn))
		}
		for _, agg := range a.aggregations {
			cells = append(cells, reduce(agg.function, collect(table, agg.column, records)))
		}
		if a.keepGeometry {
			cells = append(cells, firstGeometry(table, records))
		}
		if err := builder.Append(cells...); err != nil {
			return nil, fmt.Errorf("building group row: %w", err)
		}
	}

	return builder.Table(), nil
}

// outputKind returns the kind of an aggregated column: numeric for
// the counting and numeric reductions, the source kind for first,
// last, min, and max.
func (a *aggregateStage) outputKind(table *feature.Table, agg aggregation) feature.Kind {
	switch agg.function {
	case "first", "last", "min", "max":
		kind, _ := table.ColumnKind(agg.column)
		return kind
	default:
		return feature.Numeric
	}
}

// groupKey builds an unambiguous string key from the group cells.
func groupKey(table *feature.Table, record int, keys []string) string {
	var b strings.Builder
	for _, key := range keys {
		switch v := table.Value(record, key).(type) {
		case nil:
			b.WriteString("z;")
		case float64:
			fmt.Fprintf(&b, "n%x;", math.Float64bits(v))
		case string:
			fmt.Fprintf(&b, "s%q;", v)
		case bool:
			fmt.Fprintf(&b, "b%t;", v)
		}
	}
	return b.String()
}

func collect(table *feature.Table, column string, records []int) []any {
	cells := make([]any, len(records))
	for i, record := range records {
		cells[i] = table.Value(record, column)
	}
	return cells
}

func firstGeometry(table *feature.Table, records []int) any {
	for _, record := range records {
		if geometry := table.Geometry(record); geometry != nil {
			return geometry
		}
	}
	return nil
}

// reduce applies an aggregation function to a group's cells. Nulls
// are excluded; sum of an all-null group is 0 and the other
// reductions of one are null, matching pandas.
func reduce(function string, cells []any) any {
	switch function {
	case "count":
		count := 0.0
		for _, cell := range cells {
			if cell != nil {
				count++
			}
		}
		return count

	case "nunique":
		distinct := make(map[any]struct{})
		for _, cell := range cells {
			if cell != nil {
				distinct[cell] = struct{}{}
			}
		}
		return float64(len(distinct))

	case "first":
		for _, cell := range cells {
			if cell != nil {
				return cell
			}
		}
		return nil

	case "last":
		for i := len(cells) - 1; i >= 0; i-- {
			if cells[i] != nil {
				return cells[i]
			}
		}
		return nil

	case "min", "max":
		return reduceMinMax(function, cells)

	default:
		return reduceNumeric(function, numbers(cells))
	}
}

func numbers(cells []any) []float64 {
	values := make([]float64, 0, len(cells))
	for _, cell := range cells {
		if number, ok := feature.Number(cell); ok {
			values = append(values, number)
		}
	}
	return values
}

func reduceMinMax(function string, cells []any) any {
	var best any
	for _, cell := range cells {
		if cell == nil {
			continue
		}
		if best == nil {
			best = cell
			continue
		}
		switch bestValue := best.(type) {
		case float64:
			value, _ := feature.Number(cell)
			if function == "min" && value < bestValue || function == "max" && value > bestValue {
				best = cell
			}
		case string:
			value, _ := feature.Str(cell)
			if function == "min" && value < bestValue || function == "max" && value > bestValue {
				best = cell
			}
		}
	}
	return best
}

func reduceNumeric(function string, values []float64) any {
	if function == "sum" {
		sum := 0.0
		for _, value := range values {
			sum += value
		}
		return sum
	}
	if len(values) == 0 {
		return nil
	}

	switch function {
	case "mean":
		return mean(values)

	case "median":
		sorted := make([]float64, len(values))
		copy(sorted, values)
		sort.Float64s(sorted)
		middle := len(sorted) / 2
		if len(sorted)%2 == 1 {
			return sorted[middle]
		}
		return (sorted[middle-1] + sorted[middle]) / 2

	case "std":
		variance := sampleVariance(values)
		if variance == nil {
			return nil
		}
		return math.Sqrt(variance.(float64))

	case "var":
		return sampleVariance(values)

	default:
		return nil
	}
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, value := range values {
		sum += value
	}
	return sum / float64(len(values))
}

// sampleVariance is the n-1 denominator variance; a single value has
// none, matching pandas.
func sampleVariance(values []float64) any {
	if len(values) < 2 {
		return nil
	}
	center := mean(values)
	sum := 0.0
	for _, value := range values {
		deviation := value - center
		sum += deviation * deviation
	}
	return sum / float64(len(values)-1)
}
