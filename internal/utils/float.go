package utils

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ToFloat64 converts various numeric types to float64.
// Returns the converted value and true if successful, or 0 and false if conversion fails.
// Supports: float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
// json.Number and numeric strings
func ToFloat64(v interface{}) (float64, bool) {
	if v == nil {
		return 0, false
	}

	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// ParseFiniteFloat parses a coordinate, rejecting NaN and infinities
func ParseFiniteFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	if !IsFinite(f) {
		return 0, fmt.Errorf("not a finite number: %q", s)
	}
	return f, nil
}

// IsFinite reports whether f is neither NaN nor infinite
func IsFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// FormatFloat renders f in the shortest form that round-trips
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
