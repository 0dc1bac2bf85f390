// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package source

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"github.com/bureau-foundation/geotable/lib/feature"
	"github.com/bureau-foundation/geotable/lib/testutil"
)

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	return testutil.WriteFile(t, name, content)
}

const citiesGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"name": "porto", "population": 10, "coastal": true},
      "geometry": {"type": "Point", "coordinates": [1, 2]}
    },
    {
      "type": "Feature",
      "properties": {"name": "vila", "population": 9, "coastal": false, "river": "douro"},
      "geometry": {"type": "Point", "coordinates": [3, 4]}
    },
    {
      "type": "Feature",
      "properties": {"name": "serra", "population": null},
      "geometry": null
    }
  ]
}`

func TestLoadGeoJSON(t *testing.T) {
	t.Parallel()

	table, err := Load(writeFixture(t, "cities.geojson", citiesGeoJSON))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	wantColumns := []string{"name", "population", "coastal", "river", "geometry"}
	if got := table.ColumnNames(); !reflect.DeepEqual(got, wantColumns) {
		t.Fatalf("columns = %v, want %v", got, wantColumns)
	}
	wantKinds := map[string]feature.Kind{
		"name":       feature.Text,
		"population": feature.Numeric,
		"coastal":    feature.Boolean,
		"river":      feature.Text,
		"geometry":   feature.Geometry,
	}
	for name, want := range wantKinds {
		if kind, _ := table.ColumnKind(name); kind != want {
			t.Errorf("kind of %q = %s, want %s", name, kind, want)
		}
	}

	if table.NumRecords() != 3 {
		t.Fatalf("NumRecords = %d, want 3", table.NumRecords())
	}
	if table.CRS() != "EPSG:4326" {
		t.Errorf("CRS = %q, want EPSG:4326", table.CRS())
	}

	if v, _ := feature.Number(table.Value(0, "population")); v != 10 {
		t.Errorf("population[0] = %v, want 10", v)
	}
	if v, _ := feature.Bool(table.Value(1, "coastal")); v {
		t.Errorf("coastal[1] = %v, want false", v)
	}

	// Keys absent from a feature, explicit nulls, and a null geometry
	// all come through as null cells.
	for _, column := range []string{"population", "coastal", "river"} {
		if !feature.IsNull(table.Value(2, column)) {
			t.Errorf("%s[2] = %v, want null", column, table.Value(2, column))
		}
	}
	if !feature.IsNull(table.Value(0, "river")) {
		t.Errorf("river[0] = %v, want null", table.Value(0, "river"))
	}
	if table.Geometry(2) != nil {
		t.Errorf("geometry[2] = %v, want null", table.Geometry(2))
	}
	if point, ok := table.Geometry(0).(orb.Point); !ok || point != (orb.Point{1, 2}) {
		t.Errorf("geometry[0] = %v, want POINT(1 2)", table.Geometry(0))
	}
}

func TestLoadGeoJSONKeyOrder(t *testing.T) {
	t.Parallel()

	// Columns follow the document's key order, not alphabetical order.
	document := `{
	  "type": "FeatureCollection",
	  "features": [{
	    "type": "Feature",
	    "properties": {"zone": "a", "area": 1, "name": "x"},
	    "geometry": {"type": "Point", "coordinates": [0, 0]}
	  }]
	}`
	table, err := Load(writeFixture(t, "ordered.geojson", document))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"zone", "area", "name", "geometry"}
	if got := table.ColumnNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("columns = %v, want %v", got, want)
	}
}

func TestLoadGeoJSONMixedKindsBecomeText(t *testing.T) {
	t.Parallel()

	document := `{
	  "type": "FeatureCollection",
	  "features": [
	    {"type": "Feature", "properties": {"code": 42}, "geometry": null},
	    {"type": "Feature", "properties": {"code": "n/a"}, "geometry": null},
	    {"type": "Feature", "properties": {"code": {"nested": true}}, "geometry": null}
	  ]
	}`
	table, err := Load(writeFixture(t, "mixed.json", document))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if kind, _ := table.ColumnKind("code"); kind != feature.Text {
		t.Fatalf("kind = %s, want text", kind)
	}
	want := []string{"42", "n/a", `{"nested":true}`}
	for record, wantValue := range want {
		if got, _ := feature.Str(table.Value(record, "code")); got != wantValue {
			t.Errorf("code[%d] = %q, want %q", record, got, wantValue)
		}
	}
}

func TestLoadGeoJSONErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "empty collection",
			content: `{"type": "FeatureCollection", "features": []}`,
			wantErr: "feature collection is empty",
		},
		{
			name:    "malformed document",
			content: `{"type": "FeatureCollection", "features": [`,
			wantErr: "unexpected end of JSON input",
		},
		{
			name: "geometry property collision",
			content: `{"type": "FeatureCollection", "features": [
				{"type": "Feature", "properties": {"geometry": "x"}, "geometry": null}
			]}`,
			wantErr: "collides with the geometry column",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(writeFixture(t, "bad.geojson", test.content))
			var load *LoadError
			if !errors.As(err, &load) {
				t.Fatalf("error %v (%T) is not a LoadError", err, err)
			}
			if !strings.Contains(err.Error(), test.wantErr) {
				t.Errorf("error %q does not contain %q", err, test.wantErr)
			}
		})
	}
}

func TestLoadCSV(t *testing.T) {
	t.Parallel()

	content := "name,population,coastal,note\n" +
		"porto,10,true,old town\n" +
		"vila,9,false,\n" +
		"serra,,true,hills\n"
	table, err := Load(writeFixture(t, "cities.csv", content))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	wantKinds := map[string]feature.Kind{
		"name":       feature.Text,
		"population": feature.Numeric,
		"coastal":    feature.Boolean,
		"note":       feature.Text,
	}
	for name, want := range wantKinds {
		if kind, _ := table.ColumnKind(name); kind != want {
			t.Errorf("kind of %q = %s, want %s", name, kind, want)
		}
	}

	if _, ok := table.GeometryColumn(); ok {
		t.Error("CSV table has a geometry column")
	}
	if table.CRS() != "" {
		t.Errorf("CRS = %q, want none", table.CRS())
	}
	if v, _ := feature.Number(table.Value(0, "population")); v != 10 {
		t.Errorf("population[0] = %v, want 10", v)
	}
	if !feature.IsNull(table.Value(2, "population")) {
		t.Errorf("population[2] = %v, want null", table.Value(2, "population"))
	}
	if !feature.IsNull(table.Value(1, "note")) {
		t.Errorf("note[1] = %v, want null", table.Value(1, "note"))
	}
	if v, _ := feature.Bool(table.Value(2, "coastal")); !v {
		t.Errorf("coastal[2] = %v, want true", v)
	}
}

func TestLoadCSVSentinelsStayText(t *testing.T) {
	t.Parallel()

	// "NaN" parses as a float but would smuggle a non-finite value
	// into a numeric column, so the column falls back to text.
	content := "value\n1\nNaN\n"
	table, err := Load(writeFixture(t, "sentinel.csv", content))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if kind, _ := table.ColumnKind("value"); kind != feature.Text {
		t.Errorf("kind = %s, want text", kind)
	}
}

func TestLoadCSVErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "empty file",
			content: "",
			wantErr: "missing header row",
		},
		{
			name:    "header only",
			content: "name,population\n",
			wantErr: "no records after the header row",
		},
		{
			name:    "ragged rows",
			content: "name,population\nporto,10,extra\n",
			wantErr: "wrong number of fields",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(writeFixture(t, "bad.csv", test.content))
			var load *LoadError
			if !errors.As(err, &load) {
				t.Fatalf("error %v (%T) is not a LoadError", err, err)
			}
			if !strings.Contains(err.Error(), test.wantErr) {
				t.Errorf("error %q does not contain %q", err, test.wantErr)
			}
		})
	}
}

func TestLoadUnsupportedExtension(t *testing.T) {
	t.Parallel()

	_, err := Load(writeFixture(t, "cities.parquet", "x"))
	var load *LoadError
	if !errors.As(err, &load) {
		t.Fatalf("error %v (%T) is not a LoadError", err, err)
	}
	if !strings.Contains(err.Error(), ".geojson, .json, .csv") {
		t.Errorf("error %q does not list the supported extensions", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.geojson"))
	var load *LoadError
	if !errors.As(err, &load) {
		t.Fatalf("error %v (%T) is not a LoadError", err, err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error %v does not wrap os.ErrNotExist", err)
	}
}
