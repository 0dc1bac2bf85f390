// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package feature

import "strconv"

// IsNull reports whether a cell is null.
func IsNull(cell any) bool { return cell == nil }

// Number returns the cell as a float64. The second result is false
// for null cells and cells of any other kind.
func Number(cell any) (float64, bool) {
	v, ok := cell.(float64)
	return v, ok
}

// Str returns the cell as a string. The second result is false for
// null cells and cells of any other kind.
func Str(cell any) (string, bool) {
	v, ok := cell.(string)
	return v, ok
}

// Bool returns the cell as a bool. The second result is false for
// null cells and cells of any other kind.
func Bool(cell any) (bool, bool) {
	v, ok := cell.(bool)
	return v, ok
}

// FormatCell renders a scalar cell for display: numbers in their
// shortest exact form, booleans as true/false, nulls as the empty
// string. Geometry cells are not handled here.
func FormatCell(cell any) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}
