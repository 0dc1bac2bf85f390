// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stage

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bureau-foundation/geotable/lib/feature"
)

// filterOperators is the supported predicate operator set.
var filterOperators = map[string]bool{
	"==": true, "!=": true,
	">": true, "<": true, ">=": true, "<=": true,
	"in":       true,
	"contains": true, "startswith": true, "endswith": true,
	"between": true,
	"isnull":  true,
}

// textOnlyOperators require a text column.
var textOnlyOperators = map[string]bool{
	"contains": true, "startswith": true, "endswith": true,
}

type predicateConfig struct {
	Column   string `json:"column"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

type filterConfig struct {
	predicateConfig
	Conditions []predicateConfig `json:"conditions"`
	Logic      string            `json:"logic"`
}

// predicate is one validated filter condition.
type predicate struct {
	column   string
	operator string

	// Exactly one of these is populated, depending on the operator.
	scalar    any     // ==, !=, >, <, >=, <=, contains, startswith, endswith
	set       []any   // in
	low, high float64 // between
	keepNulls bool    // isnull
}

// filterStage keeps the records matching its predicates. With
// multiple predicates, "and" keeps records matching all of them and
// "or" records matching any. Record order is preserved.
type filterStage struct {
	predicates []predicate
	anyOf      bool
}

func newFilter(config json.RawMessage) (Stage, error) {
	var options filterConfig
	if err := decodeConfig(config, &options); err != nil {
		return nil, err
	}

	single := options.Column != "" || options.Operator != "" || options.Value != nil
	if single && len(options.Conditions) > 0 {
		return nil, validationError("conditions", "cannot combine a single predicate with conditions")
	}

	conditions := options.Conditions
	if len(conditions) == 0 {
		if !single {
			return nil, validationError("column", "filter needs a predicate (column/operator/value) or conditions")
		}
		conditions = []predicateConfig{options.predicateConfig}
	}

	anyOf := false
	switch options.Logic {
	case "", "and":
	case "or":
		anyOf = true
	default:
		return nil, validationError("logic", "unknown logic %q (supported: and, or)", options.Logic)
	}

	stage := &filterStage{anyOf: anyOf, predicates: make([]predicate, 0, len(conditions))}
	for i, condition := range conditions {
		built, err := buildPredicate(condition)
		if err != nil {
			if len(options.Conditions) > 0 {
				// Prefix the position inside the conditions list.
				var validation *ValidationError
				if errors.As(err, &validation) {
					validation.Key = fmt.Sprintf("conditions[%d].%s", i, validation.Key)
				}
			}
			return nil, err
		}
		stage.predicates = append(stage.predicates, built)
	}
	return stage, nil
}

func buildPredicate(condition predicateConfig) (predicate, error) {
	if condition.Column == "" {
		return predicate{}, validationError("column", "missing column")
	}
	if condition.Operator == "" {
		return predicate{}, validationError("operator", "missing operator")
	}
	if !filterOperators[condition.Operator] {
		return predicate{}, validationError("operator", "unknown operator %q (supported: ==, !=, >, <, >=, <=, in, contains, startswith, endswith, between, isnull)",
			condition.Operator)
	}

	built := predicate{column: condition.Column, operator: condition.Operator}
	value := condition.Value

	switch condition.Operator {
	case "isnull":
		keep, ok := value.(bool)
		if !ok {
			return predicate{}, validationError("value", "isnull needs a boolean value (true keeps nulls)")
		}
		built.keepNulls = keep

	case "between":
		bounds, ok := value.([]any)
		if !ok || len(bounds) != 2 {
			return predicate{}, validationError("value", "between needs a two-element list [low, high]")
		}
		low, okLow := bounds[0].(float64)
		high, okHigh := bounds[1].(float64)
		if !okLow || !okHigh {
			return predicate{}, validationError("value", "between bounds must be numbers")
		}
		built.low, built.high = low, high

	case "in":
		elements, ok := value.([]any)
		if !ok {
			if value == nil {
				return predicate{}, validationError("value", "in needs a value or a list of values")
			}
			elements = []any{value}
		}
		if len(elements) == 0 {
			return predicate{}, validationError("value", "in needs at least one value")
		}
		for _, element := range elements {
			if !isScalar(element) {
				return predicate{}, validationError("value", "in values must be numbers, text, or booleans")
			}
		}
		built.set = elements

	case "contains", "startswith", "endswith":
		text, ok := value.(string)
		if !ok {
			return predicate{}, validationError("value", "%s needs a text value", condition.Operator)
		}
		built.scalar = text

	case ">", "<", ">=", "<=":
		if !isScalar(value) {
			return predicate{}, validationError("value", "%s needs a number or text value", condition.Operator)
		}
		if _, isBool := value.(bool); isBool {
			return predicate{}, validationError("value", "%s does not order booleans", condition.Operator)
		}
		built.scalar = value

	default: // == and !=
		if !isScalar(value) {
			return predicate{}, validationError("value", "%s needs a number, text, or boolean value (use isnull for nulls)", condition.Operator)
		}
		built.scalar = value
	}

	return built, nil
}

func isScalar(value any) bool {
	switch value.(type) {
	case float64, string, bool:
		return true
	default:
		return false
	}
}

func (f *filterStage) Type() string { return "filter" }

func (f *filterStage) Process(table *feature.Table) (*feature.Table, error) {
	// Validate every predicate against the table before evaluating
	// any of them, so a bad column in a short-circuited branch still
	// fails the stage.
	for _, p := range f.predicates {
		if err := p.check(table); err != nil {
			return nil, err
		}
	}

	indices := make([]int, 0, table.NumRecords())
	for record := 0; record < table.NumRecords(); record++ {
		if f.matches(table, record) {
			indices = append(indices, record)
		}
	}
	return table.Select(indices), nil
}

func (f *filterStage) matches(table *feature.Table, record int) bool {
	for _, p := range f.predicates {
		matched := p.matches(table.Value(record, p.column))
		if f.anyOf {
			if matched {
				return true
			}
		} else if !matched {
			return false
		}
	}
	return !f.anyOf
}

// check validates the predicate against the table schema.
func (p *predicate) check(table *feature.Table) error {
	kind, ok := table.ColumnKind(p.column)
	if !ok {
		return validationError("column", "column %q not in table (columns: %s)",
			p.column, strings.Join(table.ColumnNames(), ", "))
	}
	if kind == feature.Geometry {
		return validationError("column", "cannot filter on geometry column %q", p.column)
	}
	if textOnlyOperators[p.operator] && kind != feature.Text {
		return validationError("operator", "%s needs a text column, %q is %s", p.operator, p.column, kind)
	}
	if p.operator == "between" && kind != feature.Numeric {
		return validationError("operator", "between needs a numeric column, %q is %s", p.column, kind)
	}
	if p.operator == ">" || p.operator == "<" || p.operator == ">=" || p.operator == "<=" {
		if kind == feature.Boolean {
			return validationError("operator", "%s does not order boolean column %q", p.operator, p.column)
		}
		if _, valueIsText := p.scalar.(string); valueIsText != (kind == feature.Text) {
			return validationError("value", "%s value %v does not match %s column %q",
				p.operator, p.scalar, kind, p.column)
		}
	}
	return nil
}

// matches evaluates the predicate against one cell. Null cells match
// only != (null is unequal to everything) and isnull with true.
func (p *predicate) matches(cell any) bool {
	if cell == nil {
		switch p.operator {
		case "isnull":
			return p.keepNulls
		case "!=":
			return true
		default:
			return false
		}
	}

	switch p.operator {
	case "isnull":
		return !p.keepNulls
	case "==":
		return scalarEqual(cell, p.scalar)
	case "!=":
		return !scalarEqual(cell, p.scalar)
	case "in":
		for _, element := range p.set {
			if scalarEqual(cell, element) {
				return true
			}
		}
		return false
	case "between":
		number, ok := feature.Number(cell)
		return ok && p.low <= number && number <= p.high
	case "contains":
		text, ok := feature.Str(cell)
		return ok && strings.Contains(text, p.scalar.(string))
	case "startswith":
		text, ok := feature.Str(cell)
		return ok && strings.HasPrefix(text, p.scalar.(string))
	case "endswith":
		text, ok := feature.Str(cell)
		return ok && strings.HasSuffix(text, p.scalar.(string))
	case ">", "<", ">=", "<=":
		return orderedMatch(p.operator, cell, p.scalar)
	default:
		return false
	}
}

func scalarEqual(cell, want any) bool {
	switch cellValue := cell.(type) {
	case float64:
		wantValue, ok := want.(float64)
		return ok && cellValue == wantValue
	case string:
		wantValue, ok := want.(string)
		return ok && cellValue == wantValue
	case bool:
		wantValue, ok := want.(bool)
		return ok && cellValue == wantValue
	default:
		return false
	}
}

func orderedMatch(operator string, cell, want any) bool {
	var comparison int
	switch cellValue := cell.(type) {
	case float64:
		wantValue, ok := want.(float64)
		if !ok {
			return false
		}
		switch {
		case cellValue < wantValue:
			comparison = -1
		case cellValue > wantValue:
			comparison = 1
		}
	case string:
		wantValue, ok := want.(string)
		if !ok {
			return false
		}
		comparison = strings.Compare(cellValue, wantValue)
	default:
		return false
	}

	switch operator {
	case ">":
		return comparison > 0
	case "<":
		return comparison < 0
	case ">=":
		return comparison >= 0
	default:
		return comparison <= 0
	}
}
