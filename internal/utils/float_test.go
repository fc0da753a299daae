package utils

import (
	"encoding/json"
	"math"
	"testing"
)

func TestToFloat64(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		expected float64
		ok       bool
	}{
		// Float types
		{"float64", float64(3.14), 3.14, true},
		{"float32", float32(2.5), 2.5, true},

		// Signed integers
		{"int", int(42), 42, true},
		{"int8", int8(8), 8, true},
		{"int64", int64(64), 64, true},

		// Unsigned integers
		{"uint", uint(100), 100, true},
		{"uint64", uint64(64), 64, true},

		// Negative numbers
		{"negative int", int(-42), -42, true},
		{"negative float64", float64(-3.14), -3.14, true},

		// Numeric text
		{"json number", json.Number("1e3"), 1000, true},
		{"string", "2.5", 2.5, true},
		{"padded string", "  -7 ", -7, true},

		// Invalid types
		{"word", "hello", 0, false},
		{"empty string", "", 0, false},
		{"bool true", true, 0, false},
		{"nil", nil, 0, false},
		{"slice", []int{1, 2, 3}, 0, false},
		{"map", map[string]int{"a": 1}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, ok := ToFloat64(tt.input)
			if ok != tt.ok {
				t.Errorf("ToFloat64(%v) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if ok && result != tt.expected {
				t.Errorf("ToFloat64(%v) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestParseFiniteFloat(t *testing.T) {
	tests := []struct {
		input   string
		want    float64
		wantErr bool
	}{
		{"1", 1, false},
		{" 3.5 ", 3.5, false},
		{"-1e-3", -0.001, false},
		{"NaN", 0, true},
		{"Inf", 0, true},
		{"-Infinity", 0, true},
		{"1e400", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseFiniteFloat(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFiniteFloat(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseFiniteFloat(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestIsFinite(t *testing.T) {
	if !IsFinite(0) || !IsFinite(-1e308) {
		t.Error("expected ordinary values to be finite")
	}
	if IsFinite(math.NaN()) || IsFinite(math.Inf(1)) || IsFinite(math.Inf(-1)) {
		t.Error("expected NaN and infinities to be rejected")
	}
}

func TestFormatFloat(t *testing.T) {
	tests := map[float64]string{
		1:       "1",
		0.1:     "0.1",
		-2.5e-7: "-2.5e-07",
		1e21:    "1e+21",
	}
	for in, want := range tests {
		if got := FormatFloat(in); got != want {
			t.Errorf("FormatFloat(%v) = %q, want %q", in, got, want)
		}
	}
}
