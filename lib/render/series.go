// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"

	"github.com/bureau-foundation/geotable/lib/feature"
)

// columnsOption accepts a single column name or a list of names.
type columnsOption struct {
	values []string
}

func (c *columnsOption) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		c.values = []string{single}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		c.values = list
		return nil
	}
	return fmt.Errorf("y must be a column name or a list of column names")
}

// numericPairs extracts (x, y) points for one series, skipping records
// where either cell is null.
func numericPairs(table *feature.Table, xColumn, yColumn string) ([]float64, []float64, error) {
	for _, axis := range []struct{ key, column string }{{"x", xColumn}, {"y", yColumn}} {
		kind, ok := table.ColumnKind(axis.column)
		if !ok {
			return nil, nil, validationError(axis.key, "column %q not in table (columns: %s)",
				axis.column, strings.Join(table.ColumnNames(), ", "))
		}
		if kind != feature.Numeric {
			return nil, nil, validationError(axis.key, "column %q is %s, chart axes must be numeric",
				axis.column, kind)
		}
	}

	var xs, ys []float64
	for record := 0; record < table.NumRecords(); record++ {
		xCell := table.Value(record, xColumn)
		yCell := table.Value(record, yColumn)
		if xCell == nil || yCell == nil {
			continue
		}
		x, _ := feature.Number(xCell)
		y, _ := feature.Number(yCell)
		xs = append(xs, x)
		ys = append(ys, y)
	}
	if len(xs) < 2 {
		return nil, nil, validationError("y",
			"series %q has %d plottable records, need at least 2", yColumn, len(xs))
	}
	return xs, ys, nil
}

// lineChartRenderer draws one line series per y column over a shared
// numeric x axis, ordered by x.
type lineChartRenderer struct {
	options chartOptions
	x       string
	y       []string
}

type lineChartConfig struct {
	chartOptions
	X string        `json:"x"`
	Y columnsOption `json:"y"`
}

func newLineChart(config json.RawMessage) (Renderer, error) {
	var options lineChartConfig
	if err := decodeConfig(config, &options); err != nil {
		return nil, err
	}
	if err := options.normalize(); err != nil {
		return nil, err
	}
	if options.X == "" {
		return nil, validationError("x", "missing x column")
	}
	if len(options.Y.values) == 0 {
		return nil, validationError("y", "missing y column")
	}
	for i, column := range options.Y.values {
		if column == "" {
			return nil, validationError("y", "y[%d] is empty", i)
		}
	}
	return &lineChartRenderer{options: options.chartOptions, x: options.X, y: options.Y.values}, nil
}

func (r *lineChartRenderer) Type() string { return "line_chart" }

func (r *lineChartRenderer) Generate(table *feature.Table, path string) (string, error) {
	series := make([]chart.Series, 0, len(r.y))
	for _, yColumn := range r.y {
		xs, ys, err := numericPairs(table, r.x, yColumn)
		if err != nil {
			return "", err
		}

		indices := make([]int, len(xs))
		for i := range indices {
			indices[i] = i
		}
		slices.SortStableFunc(indices, func(a, b int) int {
			switch {
			case xs[a] < xs[b]:
				return -1
			case xs[a] > xs[b]:
				return 1
			}
			return 0
		})
		sortedX := make([]float64, len(xs))
		sortedY := make([]float64, len(ys))
		for i, index := range indices {
			sortedX[i] = xs[index]
			sortedY[i] = ys[index]
		}

		series = append(series, chart.ContinuousSeries{
			Name:    yColumn,
			XValues: sortedX,
			YValues: sortedY,
		})
	}

	graph := chart.Chart{
		Title:  r.options.Title,
		Width:  r.options.Width,
		Height: r.options.Height,
		XAxis:  chart.XAxis{Name: r.x},
		Series: series,
	}
	if len(series) > 1 {
		graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	}
	return renderPNG(&graph, path)
}

// scatterChartRenderer draws dot-only points for two numeric columns.
type scatterChartRenderer struct {
	options  chartOptions
	x        string
	y        string
	dotWidth float64
}

type scatterChartConfig struct {
	chartOptions
	X        string   `json:"x"`
	Y        string   `json:"y"`
	DotWidth *float64 `json:"dot_width"`
}

func newScatterChart(config json.RawMessage) (Renderer, error) {
	var options scatterChartConfig
	if err := decodeConfig(config, &options); err != nil {
		return nil, err
	}
	if err := options.normalize(); err != nil {
		return nil, err
	}
	if options.X == "" {
		return nil, validationError("x", "missing x column")
	}
	if options.Y == "" {
		return nil, validationError("y", "missing y column")
	}
	dotWidth := 4.0
	if options.DotWidth != nil {
		if *options.DotWidth <= 0 {
			return nil, validationError("dot_width", "dot_width must be positive, got %v", *options.DotWidth)
		}
		dotWidth = *options.DotWidth
	}
	return &scatterChartRenderer{
		options:  options.chartOptions,
		x:        options.X,
		y:        options.Y,
		dotWidth: dotWidth,
	}, nil
}

func (r *scatterChartRenderer) Type() string { return "scatter_chart" }

func (r *scatterChartRenderer) Generate(table *feature.Table, path string) (string, error) {
	xs, ys, err := numericPairs(table, r.x, r.y)
	if err != nil {
		return "", err
	}

	graph := chart.Chart{
		Title:  r.options.Title,
		Width:  r.options.Width,
		Height: r.options.Height,
		XAxis:  chart.XAxis{Name: r.x},
		YAxis:  chart.YAxis{Name: r.y},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    r.y,
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeWidth: chart.Disabled,
					DotWidth:    r.dotWidth,
				},
			},
		},
	}
	return renderPNG(&graph, path)
}
