// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"encoding/json"
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/bureau-foundation/geotable/lib/feature"
)

// mapOptions are the options every map shares. Width and height are
// pixels at 100 dpi.
type mapOptions struct {
	Title  string `json:"title"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

func (o *mapOptions) normalize() error {
	if o.Width < 0 || o.Height < 0 {
		return validationError("width", "width and height must be positive")
	}
	if o.Width == 0 {
		o.Width = 1000
	}
	if o.Height == 0 {
		o.Height = 1000
	}
	return nil
}

// newMapPlot starts a longitude/latitude plot.
func newMapPlot(title string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Longitude"
	p.Y.Label.Text = "Latitude"
	return p
}

// tableBound unions the bounds of every non-null geometry.
func tableBound(table *feature.Table) (orb.Bound, error) {
	if _, ok := table.GeometryColumn(); !ok {
		return orb.Bound{}, validationError("", "table has no geometry column")
	}
	var bound orb.Bound
	found := false
	for record := 0; record < table.NumRecords(); record++ {
		geometry := table.Geometry(record)
		if geometry == nil {
			continue
		}
		if !found {
			bound = geometry.Bound()
			found = true
			continue
		}
		bound = bound.Union(geometry.Bound())
	}
	if !found {
		return orb.Bound{}, validationError("", "no geometries to draw")
	}
	return bound, nil
}

// frame fits the plot axes to the bound with 5% padding on each side.
func frame(p *plot.Plot, bound orb.Bound) {
	padX := (bound.Max[0] - bound.Min[0]) * 0.05
	padY := (bound.Max[1] - bound.Min[1]) * 0.05
	if padX == 0 {
		padX = 0.5
	}
	if padY == 0 {
		padY = 0.5
	}
	p.X.Min = bound.Min[0] - padX
	p.X.Max = bound.Max[0] + padX
	p.Y.Min = bound.Min[1] - padY
	p.Y.Max = bound.Max[1] + padY
}

// saveMapPNG writes the plot at the configured pixel size.
func saveMapPNG(p *plot.Plot, width, height int, path string) (string, error) {
	w := vg.Length(width) * vg.Inch / 100
	h := vg.Length(height) * vg.Inch / 100
	if err := p.Save(w, h, path); err != nil {
		return "", err
	}
	return path, nil
}

// parseColor reads a "#rrggbb" hex color.
func parseColor(value string) (color.RGBA, error) {
	if !strings.HasPrefix(value, "#") || len(value) != 7 {
		return color.RGBA{}, fmt.Errorf("color %q is not #rrggbb", value)
	}
	parsed, err := strconv.ParseUint(value[1:], 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("color %q is not #rrggbb", value)
	}
	return color.RGBA{
		R: uint8(parsed >> 16),
		G: uint8(parsed >> 8),
		B: uint8(parsed),
		A: 0xff,
	}, nil
}

// geometryDrawer adds geometries to a plot with one style: polygons
// filled, line strings stroked, points batched into a single scatter.
type geometryDrawer struct {
	plot    *plot.Plot
	fill    color.Color
	outline color.Color
	radius  vg.Length
	points  plotter.XYs
}

func toXYs(points []orb.Point) plotter.XYs {
	xys := make(plotter.XYs, len(points))
	for i, point := range points {
		xys[i] = plotter.XY{X: point[0], Y: point[1]}
	}
	return xys
}

func (d *geometryDrawer) add(geometry orb.Geometry) error {
	switch g := geometry.(type) {
	case orb.Point:
		d.points = append(d.points, plotter.XY{X: g[0], Y: g[1]})
	case orb.MultiPoint:
		for _, point := range g {
			d.points = append(d.points, plotter.XY{X: point[0], Y: point[1]})
		}
	case orb.LineString:
		return d.addLine(g)
	case orb.MultiLineString:
		for _, line := range g {
			if err := d.addLine(line); err != nil {
				return err
			}
		}
	case orb.Ring:
		return d.addPolygon(orb.Polygon{g})
	case orb.Polygon:
		return d.addPolygon(g)
	case orb.MultiPolygon:
		for _, polygon := range g {
			if err := d.addPolygon(polygon); err != nil {
				return err
			}
		}
	case orb.Collection:
		for _, member := range g {
			if err := d.add(member); err != nil {
				return err
			}
		}
	case orb.Bound:
		return d.add(g.ToPolygon())
	default:
		return fmt.Errorf("unsupported geometry type %T", geometry)
	}
	return nil
}

func (d *geometryDrawer) addLine(line orb.LineString) error {
	plotted, err := plotter.NewLine(toXYs(line))
	if err != nil {
		return err
	}
	plotted.Color = d.outline
	plotted.Width = vg.Points(1)
	d.plot.Add(plotted)
	return nil
}

// addPolygon draws all rings of one polygon; inner rings become holes
// under the even-odd fill rule.
func (d *geometryDrawer) addPolygon(polygon orb.Polygon) error {
	rings := make([]plotter.XYer, 0, len(polygon))
	for _, ring := range polygon {
		rings = append(rings, toXYs(ring))
	}
	plotted, err := plotter.NewPolygon(rings...)
	if err != nil {
		return err
	}
	plotted.Color = d.fill
	plotted.LineStyle.Color = d.outline
	plotted.LineStyle.Width = vg.Points(0.5)
	d.plot.Add(plotted)
	return nil
}

// flush adds the batched point glyphs.
func (d *geometryDrawer) flush() error {
	if len(d.points) == 0 {
		return nil
	}
	scatter, err := plotter.NewScatter(d.points)
	if err != nil {
		return err
	}
	scatter.Color = d.fill
	scatter.Radius = d.radius
	d.plot.Add(scatter)
	return nil
}

// simpleMapRenderer draws every geometry in one style.
type simpleMapRenderer struct {
	options    mapOptions
	fill       color.RGBA
	markerSize float64
}

type simpleMapConfig struct {
	mapOptions
	FillColor  string   `json:"fill_color"`
	MarkerSize *float64 `json:"marker_size"`
}

func newSimpleMap(config json.RawMessage) (Renderer, error) {
	var options simpleMapConfig
	if err := decodeConfig(config, &options); err != nil {
		return nil, err
	}
	if err := options.normalize(); err != nil {
		return nil, err
	}
	fill := color.RGBA{R: 0x46, G: 0x82, B: 0xb4, A: 0xff}
	if options.FillColor != "" {
		parsed, err := parseColor(options.FillColor)
		if err != nil {
			return nil, validationError("fill_color", "%v", err)
		}
		fill = parsed
	}
	markerSize := 3.0
	if options.MarkerSize != nil {
		if *options.MarkerSize <= 0 {
			return nil, validationError("marker_size", "marker_size must be positive, got %v", *options.MarkerSize)
		}
		markerSize = *options.MarkerSize
	}
	return &simpleMapRenderer{options: options.mapOptions, fill: fill, markerSize: markerSize}, nil
}

func (r *simpleMapRenderer) Type() string { return "simple_map" }

func (r *simpleMapRenderer) Generate(table *feature.Table, path string) (string, error) {
	bound, err := tableBound(table)
	if err != nil {
		return "", err
	}

	p := newMapPlot(r.options.Title)
	frame(p, bound)
	drawer := &geometryDrawer{
		plot:    p,
		fill:    r.fill,
		outline: color.Black,
		radius:  vg.Points(r.markerSize),
	}
	for record := 0; record < table.NumRecords(); record++ {
		geometry := table.Geometry(record)
		if geometry == nil {
			continue
		}
		if err := drawer.add(geometry); err != nil {
			return "", err
		}
	}
	if err := drawer.flush(); err != nil {
		return "", err
	}
	return saveMapPNG(p, r.options.Width, r.options.Height, path)
}
