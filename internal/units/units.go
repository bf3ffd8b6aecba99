// Package units provides shared constants and conversions for distance units
package units

import "fmt"

// SpeedOfLight is the propagation speed used for range calculations, in m/s.
const SpeedOfLight = 299792458.0

// Distance unit constants
const (
	Meters      = "m"
	Centimeters = "cm"
	Kilometers  = "km"
	Feet        = "ft"
)

// ValidDistanceUnits contains all valid distance unit values
var ValidDistanceUnits = []string{Meters, Centimeters, Kilometers, Feet}

// IsValidDistance checks if the given unit is in the list of valid units
func IsValidDistance(unit string) bool {
	for _, validUnit := range ValidDistanceUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidDistanceUnitsString returns a comma-separated string of valid units for error messages
func GetValidDistanceUnitsString() string {
	return "m, cm, km, ft"
}

// ConvertDistance converts a distance in meters to the target units.
// Unknown units fall back to meters.
func ConvertDistance(meters float64, targetUnits string) float64 {
	switch targetUnits {
	case Centimeters:
		return meters * 100
	case Kilometers:
		return meters / 1000
	case Feet:
		return meters * 3.28084
	default:
		return meters
	}
}

// FormatDistance renders a distance in meters in the target units, e.g. "3.000m".
func FormatDistance(meters float64, targetUnits string) string {
	if !IsValidDistance(targetUnits) {
		targetUnits = Meters
	}
	return fmt.Sprintf("%.3f%s", ConvertDistance(meters, targetUnits), targetUnits)
}

// RangeSampleSpacing returns the slant-range distance covered by one sample
// at the given sample rate (two-way travel).
func RangeSampleSpacing(sampleRateHz float64) float64 {
	return SpeedOfLight / (2 * sampleRateHz)
}

// RangeResolution returns the theoretical range resolution of a chirp with
// the given bandwidth.
func RangeResolution(bandwidthHz float64) float64 {
	return SpeedOfLight / (2 * bandwidthHz)
}
