// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"encoding/json"
	"io"
	"math"
	"os"
	"slices"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"

	"github.com/bureau-foundation/geotable/lib/feature"
)

// chartOptions are the options every statistical chart shares.
type chartOptions struct {
	Title  string `json:"title"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

func (o *chartOptions) normalize() error {
	if o.Width < 0 || o.Height < 0 {
		return validationError("width", "width and height must be positive")
	}
	if o.Width == 0 {
		o.Width = 800
	}
	if o.Height == 0 {
		o.Height = 600
	}
	return nil
}

// renderPNG writes a rendered chart to path.
func renderPNG(graph interface {
	Render(chart.RendererProvider, io.Writer) error
}, path string) (string, error) {
	file, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := graph.Render(chart.PNG, file); err != nil {
		file.Close()
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", err
	}
	return path, nil
}

// category is one aggregated chart slice or bar.
type category struct {
	label string
	value float64
}

// categorize groups the table by a category column, in first-seen
// order. With a value column the groups carry the aggregated value,
// without one they carry record counts. Null categories are dropped.
// categoryKey and valueKey name the configuration keys for error
// reporting.
func categorize(table *feature.Table, categoryColumn, valueColumn, aggregate, categoryKey, valueKey string) ([]category, error) {
	kind, ok := table.ColumnKind(categoryColumn)
	if !ok {
		return nil, validationError(categoryKey, "column %q not in table (columns: %s)",
			categoryColumn, strings.Join(table.ColumnNames(), ", "))
	}
	if kind == feature.Geometry {
		return nil, validationError(categoryKey, "cannot chart the geometry column %q", categoryColumn)
	}
	if valueColumn != "" {
		valueKind, ok := table.ColumnKind(valueColumn)
		if !ok {
			return nil, validationError(valueKey, "column %q not in table (columns: %s)",
				valueColumn, strings.Join(table.ColumnNames(), ", "))
		}
		if valueKind != feature.Numeric {
			return nil, validationError(valueKey, "column %q is %s, chart values must be numeric",
				valueColumn, valueKind)
		}
	}

	type group struct {
		sum   float64
		count int
	}
	groups := map[string]*group{}
	var order []string
	for record := 0; record < table.NumRecords(); record++ {
		cell := table.Value(record, categoryColumn)
		if cell == nil {
			continue
		}
		label := feature.FormatCell(cell)
		g, ok := groups[label]
		if !ok {
			g = &group{}
			groups[label] = g
			order = append(order, label)
		}
		if valueColumn == "" {
			g.sum++
			g.count++
			continue
		}
		value := table.Value(record, valueColumn)
		if value == nil {
			continue
		}
		number, _ := feature.Number(value)
		g.sum += number
		g.count++
	}

	categories := make([]category, 0, len(order))
	for _, label := range order {
		g := groups[label]
		value := g.sum
		if aggregate == "mean" {
			if g.count == 0 {
				continue
			}
			value = g.sum / float64(g.count)
		}
		categories = append(categories, category{label: label, value: value})
	}
	return categories, nil
}

// sortCategories orders categories by value. Mode "none" keeps the
// first-seen order; ties keep their existing order either way.
func sortCategories(categories []category, mode string) {
	switch mode {
	case "asc":
		slices.SortStableFunc(categories, func(a, b category) int {
			switch {
			case a.value < b.value:
				return -1
			case a.value > b.value:
				return 1
			}
			return 0
		})
	case "desc":
		slices.SortStableFunc(categories, func(a, b category) int {
			switch {
			case a.value > b.value:
				return -1
			case a.value < b.value:
				return 1
			}
			return 0
		})
	}
}

// barChartRenderer draws one bar per category.
type barChartRenderer struct {
	options   chartOptions
	x         string
	y         string
	aggregate string
	topN      int
	sortMode  string
}

type barChartConfig struct {
	chartOptions
	X    string `json:"x"`
	Y    string `json:"y"`
	Agg  string `json:"agg"`
	TopN int    `json:"top_n"`
	Sort string `json:"sort"`
}

func newBarChart(config json.RawMessage) (Renderer, error) {
	var options barChartConfig
	if err := decodeConfig(config, &options); err != nil {
		return nil, err
	}
	if err := options.normalize(); err != nil {
		return nil, err
	}
	if options.X == "" {
		return nil, validationError("x", "missing x column")
	}
	switch options.Agg {
	case "":
		options.Agg = "sum"
	case "sum", "mean":
	default:
		return nil, validationError("agg", "unknown aggregate %q (supported: sum, mean)", options.Agg)
	}
	switch options.Sort {
	case "":
		options.Sort = "desc"
	case "desc", "asc", "none":
	default:
		return nil, validationError("sort", "unknown sort %q (supported: desc, asc, none)", options.Sort)
	}
	if options.TopN < 0 {
		return nil, validationError("top_n", "top_n must not be negative, got %d", options.TopN)
	}
	return &barChartRenderer{
		options:   options.chartOptions,
		x:         options.X,
		y:         options.Y,
		aggregate: options.Agg,
		topN:      options.TopN,
		sortMode:  options.Sort,
	}, nil
}

func (r *barChartRenderer) Type() string { return "bar_chart" }

func (r *barChartRenderer) Generate(table *feature.Table, path string) (string, error) {
	categories, err := categorize(table, r.x, r.y, r.aggregate, "x", "y")
	if err != nil {
		return "", err
	}
	if len(categories) == 0 {
		return "", validationError("x", "no categories to plot in column %q", r.x)
	}
	sortCategories(categories, r.sortMode)
	if r.topN > 0 && len(categories) > r.topN {
		categories = categories[:r.topN]
	}

	bars := make([]chart.Value, len(categories))
	low, high := 0.0, 0.0
	for i, c := range categories {
		bars[i] = chart.Value{Label: c.label, Value: c.value}
		low = math.Min(low, c.value)
		high = math.Max(high, c.value)
	}
	// Bars are measured from zero; a flat range is padded so the axis
	// keeps a nonzero span.
	if high == low {
		high = low + 1
	}
	graph := chart.BarChart{
		Title:  r.options.Title,
		Width:  r.options.Width,
		Height: r.options.Height,
		YAxis:  chart.YAxis{Range: &chart.ContinuousRange{Min: low, Max: high}},
		Bars:   bars,
	}
	return renderPNG(&graph, path)
}

// pieChartRenderer draws one slice per category; with top_n set, the
// remaining categories collapse into an "other" slice.
type pieChartRenderer struct {
	options chartOptions
	column  string
	values  string
	topN    int
}

type pieChartConfig struct {
	chartOptions
	Column string `json:"column"`
	Values string `json:"values"`
	TopN   int    `json:"top_n"`
}

func newPieChart(config json.RawMessage) (Renderer, error) {
	var options pieChartConfig
	if err := decodeConfig(config, &options); err != nil {
		return nil, err
	}
	if err := options.normalize(); err != nil {
		return nil, err
	}
	if options.Column == "" {
		return nil, validationError("column", "missing category column")
	}
	if options.TopN < 0 {
		return nil, validationError("top_n", "top_n must not be negative, got %d", options.TopN)
	}
	return &pieChartRenderer{
		options: options.chartOptions,
		column:  options.Column,
		values:  options.Values,
		topN:    options.TopN,
	}, nil
}

func (r *pieChartRenderer) Type() string { return "pie_chart" }

func (r *pieChartRenderer) Generate(table *feature.Table, path string) (string, error) {
	categories, err := categorize(table, r.column, r.values, "sum", "column", "values")
	if err != nil {
		return "", err
	}
	sortCategories(categories, "desc")
	if r.topN > 0 && len(categories) > r.topN {
		var rest float64
		for _, c := range categories[r.topN:] {
			rest += c.value
		}
		categories = append(categories[:r.topN], category{label: "other", value: rest})
	}

	values := make([]chart.Value, 0, len(categories))
	for _, c := range categories {
		// Zero and negative slices have no angular extent.
		if c.value <= 0 {
			continue
		}
		values = append(values, chart.Value{Label: c.label, Value: c.value})
	}
	if len(values) == 0 {
		return "", validationError("column", "no positive values to plot in column %q", r.column)
	}

	graph := chart.PieChart{
		Title:  r.options.Title,
		Width:  r.options.Width,
		Height: r.options.Height,
		Values: values,
	}
	return renderPNG(&graph, path)
}
