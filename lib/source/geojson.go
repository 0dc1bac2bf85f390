// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/paulmach/orb/geojson"

	"github.com/bureau-foundation/geotable/lib/feature"
)

// loadGeoJSON decodes a GeoJSON feature collection. The schema is
// inferred across all features: property keys in first-seen order, a
// key's kind numeric or boolean only when every non-null value agrees,
// text otherwise. The geometry column is always named "geometry" and
// the CRS is EPSG:4326 (RFC 7946 fixes GeoJSON to WGS84; a legacy crs
// member is ignored).
func loadGeoJSON(path string) (*feature.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	collection, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	if len(collection.Features) == 0 {
		return nil, loadError(path, "feature collection is empty")
	}

	// collection.Features holds properties in maps, which lose the
	// document's key order. A parallel raw decode recovers it so the
	// table's columns come out in first-seen order.
	keyOrder, err := propertyKeyOrder(data)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	var keys []string
	kinds := map[string]feature.Kind{}
	decided := map[string]bool{}
	seen := map[string]bool{}
	for i, featureKeys := range keyOrder {
		if collection.Features[i] == nil {
			return nil, loadError(path, "features[%d] is null", i)
		}
		properties := collection.Features[i].Properties
		for _, key := range featureKeys {
			if !seen[key] {
				if key == "geometry" {
					return nil, loadError(path, `property "geometry" collides with the geometry column`)
				}
				seen[key] = true
				keys = append(keys, key)
				kinds[key] = feature.Text
			}
			value, ok := properties[key]
			if !ok || value == nil {
				continue
			}
			kind := scalarKind(value)
			switch {
			case !decided[key]:
				decided[key] = true
				kinds[key] = kind
			case kinds[key] != kind:
				kinds[key] = feature.Text
			}
		}
	}

	columns := make([]feature.Column, 0, len(keys)+1)
	for _, key := range keys {
		columns = append(columns, feature.Column{Name: key, Kind: kinds[key]})
	}
	columns = append(columns, feature.Column{Name: "geometry", Kind: feature.Geometry})

	builder, err := feature.NewBuilder(columns)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	builder.SetCRS("EPSG:4326")

	for _, feat := range collection.Features {
		cells := make([]any, 0, len(keys)+1)
		for _, key := range keys {
			value, ok := feat.Properties[key]
			if !ok || value == nil {
				cells = append(cells, nil)
				continue
			}
			switch kinds[key] {
			case feature.Numeric:
				cells = append(cells, value.(float64))
			case feature.Boolean:
				cells = append(cells, value.(bool))
			default:
				cells = append(cells, textCell(value))
			}
		}
		if feat.Geometry != nil {
			cells = append(cells, feat.Geometry)
		} else {
			cells = append(cells, nil)
		}
		if err := builder.Append(cells...); err != nil {
			return nil, &LoadError{Path: path, Err: err}
		}
	}
	return builder.Table(), nil
}

// scalarKind maps a decoded JSON property value to a column kind.
// Arrays and objects have no scalar kind and land in text columns.
func scalarKind(value any) feature.Kind {
	switch value.(type) {
	case float64:
		return feature.Numeric
	case bool:
		return feature.Boolean
	case string:
		return feature.Text
	default:
		return feature.Text
	}
}

// textCell renders a property value for a text column. Scalars use
// their canonical formatting, arrays and objects their JSON encoding.
func textCell(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64, bool:
		return feature.FormatCell(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(encoded)
	}
}

// rawFeatureCollection mirrors just enough of the document to walk
// each feature's properties object in source order.
type rawFeatureCollection struct {
	Features []struct {
		Properties json.RawMessage `json:"properties"`
	} `json:"features"`
}

func propertyKeyOrder(data []byte) ([][]string, error) {
	var raw rawFeatureCollection
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	order := make([][]string, len(raw.Features))
	for i, feat := range raw.Features {
		keys, err := objectKeys(feat.Properties)
		if err != nil {
			return nil, fmt.Errorf("features[%d] properties: %w", i, err)
		}
		order[i] = keys
	}
	return order, nil
}

// objectKeys lists the keys of a JSON object in document order. A null
// or absent object has no keys.
func objectKeys(object json.RawMessage) ([]string, error) {
	if len(object) == 0 {
		return nil, nil
	}
	decoder := json.NewDecoder(bytes.NewReader(object))
	token, err := decoder.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return nil, nil
	}
	var keys []string
	for decoder.More() {
		token, err := decoder.Token()
		if err != nil {
			return nil, err
		}
		keys = append(keys, token.(string))
		if err := skipValue(decoder); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// skipValue consumes one complete JSON value from the decoder.
func skipValue(decoder *json.Decoder) error {
	token, err := decoder.Token()
	if err != nil {
		return err
	}
	delim, ok := token.(json.Delim)
	if !ok || (delim != '{' && delim != '[') {
		return nil
	}
	depth := 1
	for depth > 0 {
		token, err := decoder.Token()
		if err != nil {
			return err
		}
		if delim, ok := token.(json.Delim); ok {
			switch delim {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	return nil
}
