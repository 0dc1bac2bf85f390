// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"encoding/json"
	"fmt"
	"image/color"
	"sort"
	"strings"

	"github.com/paulmach/orb/planar"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/brewer"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/bureau-foundation/geotable/lib/feature"
)

// noDataGrey colors records whose class value is null.
var noDataGrey = color.RGBA{R: 0xbd, G: 0xbd, B: 0xbd, A: 0xff}

// swatch is a solid legend thumbnail for one map class.
type swatch struct {
	color color.Color
}

func (s swatch) Thumbnail(c *draw.Canvas) {
	points := []vg.Point{
		{X: c.Min.X, Y: c.Min.Y},
		{X: c.Min.X, Y: c.Max.Y},
		{X: c.Max.X, Y: c.Max.Y},
		{X: c.Max.X, Y: c.Min.Y},
	}
	c.FillPolygon(s.color, c.ClipPolygonXY(points))
}

// classing splits a value range into k classes. uppers holds each
// class's inclusive upper bound; the last is the data maximum.
type classing struct {
	lowers []float64
	uppers []float64
}

// classify bins the values by the named scheme: "equal_interval"
// splits the range evenly, "quantiles" puts an equal share of records
// in each class.
func classify(values []float64, k int, scheme string) classing {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	minimum, maximum := sorted[0], sorted[len(sorted)-1]

	uppers := make([]float64, k)
	if scheme == "quantiles" {
		n := len(sorted)
		for i := 0; i < k; i++ {
			rank := ((i + 1) * n) / k
			if rank < 1 {
				rank = 1
			}
			uppers[i] = sorted[rank-1]
		}
	} else {
		width := (maximum - minimum) / float64(k)
		for i := 0; i < k; i++ {
			uppers[i] = minimum + float64(i+1)*width
		}
	}
	uppers[k-1] = maximum

	lowers := make([]float64, k)
	lowers[0] = minimum
	for i := 1; i < k; i++ {
		lowers[i] = uppers[i-1]
	}
	return classing{lowers: lowers, uppers: uppers}
}

// index returns the class of one value.
func (c classing) index(value float64) int {
	for i, upper := range c.uppers {
		if value <= upper {
			return i
		}
	}
	return len(c.uppers) - 1
}

// label renders one class range for the legend.
func (c classing) label(i int) string {
	return fmt.Sprintf("%.4g - %.4g", c.lowers[i], c.uppers[i])
}

// choroplethRenderer colors geometries by a classed numeric column.
type choroplethRenderer struct {
	options    mapOptions
	column     string
	k          int
	scheme     string
	colors     []color.Color
	markerSize float64
}

type choroplethConfig struct {
	mapOptions
	Column     string   `json:"column"`
	K          int      `json:"k"`
	Scheme     string   `json:"scheme"`
	Cmap       string   `json:"cmap"`
	MarkerSize *float64 `json:"marker_size"`
}

func newChoroplethMap(config json.RawMessage) (Renderer, error) {
	var options choroplethConfig
	if err := decodeConfig(config, &options); err != nil {
		return nil, err
	}
	if err := options.normalize(); err != nil {
		return nil, err
	}
	if options.Column == "" {
		return nil, validationError("column", "missing column")
	}
	if options.K == 0 {
		options.K = 5
	}
	if options.K < 2 {
		return nil, validationError("k", "need at least 2 classes, got %d", options.K)
	}
	switch options.Scheme {
	case "":
		options.Scheme = "equal_interval"
	case "equal_interval", "quantiles":
	default:
		return nil, validationError("scheme", "unknown scheme %q (supported: equal_interval, quantiles)",
			options.Scheme)
	}
	if options.Cmap == "" {
		options.Cmap = "YlOrRd"
	}
	classPalette, err := brewer.GetPalette(brewer.TypeAny, options.Cmap, options.K)
	if err != nil {
		return nil, validationError("cmap", "palette %q with %d classes: %v", options.Cmap, options.K, err)
	}
	markerSize := 3.0
	if options.MarkerSize != nil {
		if *options.MarkerSize <= 0 {
			return nil, validationError("marker_size", "marker_size must be positive, got %v", *options.MarkerSize)
		}
		markerSize = *options.MarkerSize
	}
	return &choroplethRenderer{
		options:    options.mapOptions,
		column:     options.Column,
		k:          options.K,
		scheme:     options.Scheme,
		colors:     classPalette.Colors(),
		markerSize: markerSize,
	}, nil
}

func (r *choroplethRenderer) Type() string { return "choropleth_map" }

func (r *choroplethRenderer) Generate(table *feature.Table, path string) (string, error) {
	bound, err := tableBound(table)
	if err != nil {
		return "", err
	}
	kind, ok := table.ColumnKind(r.column)
	if !ok {
		return "", validationError("column", "column %q not in table (columns: %s)",
			r.column, strings.Join(table.ColumnNames(), ", "))
	}
	if kind != feature.Numeric {
		return "", validationError("column", "column %q is %s, choropleth values must be numeric",
			r.column, kind)
	}

	var values []float64
	for record := 0; record < table.NumRecords(); record++ {
		if cell := table.Value(record, r.column); cell != nil {
			number, _ := feature.Number(cell)
			values = append(values, number)
		}
	}
	if len(values) == 0 {
		return "", validationError("column", "no values to class in column %q", r.column)
	}
	classes := classify(values, r.k, r.scheme)

	p := newMapPlot(r.options.Title)
	frame(p, bound)

	drawers := make([]*geometryDrawer, r.k+1)
	for i := range drawers {
		fill := color.Color(noDataGrey)
		if i < r.k {
			fill = r.colors[i]
		}
		drawers[i] = &geometryDrawer{
			plot:    p,
			fill:    fill,
			outline: color.Black,
			radius:  vg.Points(r.markerSize),
		}
	}

	greyUsed := false
	for record := 0; record < table.NumRecords(); record++ {
		geometry := table.Geometry(record)
		if geometry == nil {
			continue
		}
		drawer := drawers[r.k]
		if cell := table.Value(record, r.column); cell != nil {
			number, _ := feature.Number(cell)
			drawer = drawers[classes.index(number)]
		} else {
			greyUsed = true
		}
		if err := drawer.add(geometry); err != nil {
			return "", err
		}
	}
	for _, drawer := range drawers {
		if err := drawer.flush(); err != nil {
			return "", err
		}
	}

	p.Legend.Top = true
	for i := 0; i < r.k; i++ {
		p.Legend.Add(classes.label(i), swatch{color: r.colors[i]})
	}
	if greyUsed {
		p.Legend.Add("no data", swatch{color: noDataGrey})
	}
	return saveMapPNG(p, r.options.Width, r.options.Height, path)
}

// heatMapRenderer draws point intensities; non-point geometries
// contribute their centroid.
type heatMapRenderer struct {
	options    mapOptions
	column     string
	colors     []color.Color
	markerSize float64
}

type heatMapConfig struct {
	mapOptions
	Column     string   `json:"column"`
	Cmap       string   `json:"cmap"`
	MarkerSize *float64 `json:"marker_size"`
}

func newHeatMap(config json.RawMessage) (Renderer, error) {
	var options heatMapConfig
	if err := decodeConfig(config, &options); err != nil {
		return nil, err
	}
	if err := options.normalize(); err != nil {
		return nil, err
	}
	var colors []color.Color
	if options.Cmap == "" {
		colors = palette.Heat(12, 1).Colors()
	} else {
		heatPalette, err := brewer.GetPalette(brewer.TypeAny, options.Cmap, 9)
		if err != nil {
			return nil, validationError("cmap", "palette %q: %v", options.Cmap, err)
		}
		colors = heatPalette.Colors()
	}
	markerSize := 4.0
	if options.MarkerSize != nil {
		if *options.MarkerSize <= 0 {
			return nil, validationError("marker_size", "marker_size must be positive, got %v", *options.MarkerSize)
		}
		markerSize = *options.MarkerSize
	}
	return &heatMapRenderer{
		options:    options.mapOptions,
		column:     options.Column,
		colors:     colors,
		markerSize: markerSize,
	}, nil
}

func (r *heatMapRenderer) Type() string { return "heat_map" }

func (r *heatMapRenderer) Generate(table *feature.Table, path string) (string, error) {
	bound, err := tableBound(table)
	if err != nil {
		return "", err
	}
	if r.column != "" {
		kind, ok := table.ColumnKind(r.column)
		if !ok {
			return "", validationError("column", "column %q not in table (columns: %s)",
				r.column, strings.Join(table.ColumnNames(), ", "))
		}
		if kind != feature.Numeric {
			return "", validationError("column", "column %q is %s, heat intensities must be numeric",
				r.column, kind)
		}
	}

	var points plotter.XYs
	var intensities []*float64
	for record := 0; record < table.NumRecords(); record++ {
		geometry := table.Geometry(record)
		if geometry == nil {
			continue
		}
		centroid, _ := planar.CentroidArea(geometry)
		points = append(points, plotter.XY{X: centroid[0], Y: centroid[1]})
		if r.column == "" {
			intensities = append(intensities, nil)
			continue
		}
		if cell := table.Value(record, r.column); cell != nil {
			number, _ := feature.Number(cell)
			intensities = append(intensities, &number)
		} else {
			intensities = append(intensities, nil)
		}
	}

	p := newMapPlot(r.options.Title)
	frame(p, bound)
	scatter, err := plotter.NewScatter(points)
	if err != nil {
		return "", err
	}

	if r.column == "" {
		scatter.Color = color.RGBA{R: 0xd0, G: 0x30, B: 0x20, A: 0xff}
		scatter.Radius = vg.Points(r.markerSize)
	} else {
		minimum, maximum, any := 0.0, 0.0, false
		for _, intensity := range intensities {
			if intensity == nil {
				continue
			}
			if !any || *intensity < minimum {
				minimum = *intensity
			}
			if !any || *intensity > maximum {
				maximum = *intensity
			}
			any = true
		}
		if !any {
			return "", validationError("column", "no intensities to draw in column %q", r.column)
		}
		scatter.GlyphStyleFunc = func(i int) draw.GlyphStyle {
			style := draw.GlyphStyle{
				Color:  color.Color(noDataGrey),
				Radius: vg.Points(r.markerSize),
				Shape:  draw.CircleGlyph{},
			}
			intensity := intensities[i]
			if intensity == nil {
				return style
			}
			normalized := 0.5
			if maximum > minimum {
				normalized = (*intensity - minimum) / (maximum - minimum)
			}
			style.Color = r.colors[int(normalized*float64(len(r.colors)-1))]
			return style
		}
	}
	p.Add(scatter)
	return saveMapPNG(p, r.options.Width, r.options.Height, path)
}
