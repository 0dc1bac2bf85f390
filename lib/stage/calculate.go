// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stage

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/bureau-foundation/geotable/lib/expr"
	"github.com/bureau-foundation/geotable/lib/feature"
)

// calculation is one parsed column derivation.
type calculation struct {
	column string
	parsed *expr.Expr
}

// calculateStage adds derived numeric columns. Calculations run
// strictly in order, so a later expression can reference columns
// created by an earlier one.
type calculateStage struct {
	calculations []calculation
}

type calculationConfig struct {
	NewColumn  string `json:"new_column"`
	Expression string `json:"expression"`
}

type calculateConfig struct {
	calculationConfig
	Calculations []calculationConfig `json:"calculations"`
}

func newCalculate(config json.RawMessage) (Stage, error) {
	var options calculateConfig
	if err := decodeConfig(config, &options); err != nil {
		return nil, err
	}

	single := options.NewColumn != "" || options.Expression != ""
	if single && len(options.Calculations) > 0 {
		return nil, validationError("calculations", "cannot combine new_column/expression with calculations")
	}

	items := options.Calculations
	if len(items) == 0 {
		if !single {
			return nil, validationError("new_column", "calculate needs new_column/expression or calculations")
		}
		items = []calculationConfig{options.calculationConfig}
	}

	stage := &calculateStage{calculations: make([]calculation, 0, len(items))}
	for i, item := range items {
		key := func(field string) string {
			if len(options.Calculations) > 0 {
				return fmt.Sprintf("calculations[%d].%s", i, field)
			}
			return field
		}
		if item.NewColumn == "" {
			return nil, validationError(key("new_column"), "missing new_column")
		}
		if item.Expression == "" {
			return nil, validationError(key("expression"), "missing expression")
		}
		parsed, err := expr.Parse(item.Expression)
		if err != nil {
			return nil, validationError(key("expression"), "bad expression %q: %v", item.Expression, err)
		}
		stage.calculations = append(stage.calculations, calculation{column: item.NewColumn, parsed: parsed})
	}
	return stage, nil
}

func (c *calculateStage) Type() string { return "calculate" }

func (c *calculateStage) Process(table *feature.Table) (*feature.Table, error) {
	current := table
	for _, calc := range c.calculations {
		next, err := c.apply(current, calc)
		if err != nil {
			return nil, err
		}
		current = next
	}
	return current, nil
}

func (c *calculateStage) apply(table *feature.Table, calc calculation) (*feature.Table, error) {
	computeError := func(err error) error {
		return &ComputeError{Column: calc.column, Expression: calc.parsed.String(), Err: err}
	}

	// Resolve referenced columns up front: they must exist and be
	// numeric. The geometry column is never an operand.
	for _, referenced := range calc.parsed.Columns() {
		kind, ok := table.ColumnKind(referenced)
		if !ok {
			return nil, computeError(fmt.Errorf("unknown column %q (columns: %s)",
				referenced, strings.Join(table.ColumnNames(), ", ")))
		}
		if kind == feature.Geometry {
			return nil, computeError(fmt.Errorf("geometry column %q cannot be used in an expression", referenced))
		}
		if kind != feature.Numeric {
			return nil, computeError(fmt.Errorf("column %q is %s, expressions need numeric columns", referenced, kind))
		}
	}
	if geometryColumn, ok := table.GeometryColumn(); ok && geometryColumn == calc.column {
		return nil, computeError(fmt.Errorf("cannot replace geometry column %q", geometryColumn))
	}

	cells := make([]any, table.NumRecords())
	for record := 0; record < table.NumRecords(); record++ {
		lookup := func(column string) (float64, bool, error) {
			cell := table.Value(record, column)
			if cell == nil {
				return 0, false, nil
			}
			number, _ := feature.Number(cell)
			return number, true, nil
		}
		value, ok, err := calc.parsed.Eval(lookup)
		if err != nil {
			return nil, computeError(err)
		}
		if !ok {
			// A null operand makes the result null for this record.
			continue
		}
		if math.IsInf(value, 0) || math.IsNaN(value) {
			return nil, computeError(fmt.Errorf("non-finite result at record %d", record))
		}
		cells[record] = value
	}

	next, err := table.WithNumericColumn(calc.column, cells)
	if err != nil {
		return nil, computeError(err)
	}
	return next, nil
}
