package units

import (
	"math"
	"testing"
)

func TestConvertDistance(t *testing.T) {
	tests := []struct {
		name     string
		meters   float64
		units    string
		expected float64
	}{
		{"3 m to cm", 3.0, Centimeters, 300.0},
		{"1500 m to km", 1500.0, Kilometers, 1.5},
		{"1 m to ft", 1.0, Feet, 3.28084},
		{"3 m to m", 3.0, Meters, 3.0},
		{"unknown units default to m", 3.0, "furlong", 3.0},
		{"0 m to ft", 0.0, Feet, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertDistance(tt.meters, tt.units)
			if math.Abs(result-tt.expected) > 1e-9 {
				t.Errorf("ConvertDistance(%f, %s) = %f, want %f", tt.meters, tt.units, result, tt.expected)
			}
		})
	}
}

func TestIsValidDistance(t *testing.T) {
	tests := []struct {
		unit     string
		expected bool
	}{
		{Meters, true},
		{Centimeters, true},
		{Kilometers, true},
		{Feet, true},
		{"mph", false},
		{"", false},
		{"M", false},
	}

	for _, tt := range tests {
		if got := IsValidDistance(tt.unit); got != tt.expected {
			t.Errorf("IsValidDistance(%q) = %v, want %v", tt.unit, got, tt.expected)
		}
	}
}

func TestFormatDistance(t *testing.T) {
	if got := FormatDistance(3, Meters); got != "3.000m" {
		t.Errorf("FormatDistance(3, m) = %q", got)
	}
	if got := FormatDistance(3, Centimeters); got != "300.000cm" {
		t.Errorf("FormatDistance(3, cm) = %q", got)
	}
	if got := FormatDistance(3, "bogus"); got != "3.000m" {
		t.Errorf("FormatDistance(3, bogus) = %q", got)
	}
}

func TestRangeFormulas(t *testing.T) {
	// 50 MHz of bandwidth resolves ~3 m in range.
	if r := RangeResolution(50e6); math.Abs(r-2.99792458) > 1e-9 {
		t.Errorf("RangeResolution(50e6) = %f", r)
	}
	if s := RangeSampleSpacing(100e6); math.Abs(s-1.49896229) > 1e-8 {
		t.Errorf("RangeSampleSpacing(100e6) = %f", s)
	}
}
