package units

import "math"

// Velocity unit names accepted in configuration
const (
	CMPS = "cm/s"
	KMPS = "km/s"
)

// ValidVelocityUnits contains all valid velocity unit values
var ValidVelocityUnits = []string{CMPS, KMPS}

// IsValidVelocityUnit checks if the given unit is in the list of valid units
func IsValidVelocityUnit(unit string) bool {
	for _, validUnit := range ValidVelocityUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// ToCMPS converts a velocity in the given units to cm/s.
// Unknown units are treated as cm/s.
func ToCMPS(v float64, unit string) float64 {
	switch unit {
	case KMPS:
		return v * KmPerSec
	default:
		return v
	}
}

// Beta returns v/c for a velocity in cm/s.
func Beta(v float64) float64 { return v / SpeedOfLight }

// LorentzFactor returns 1/sqrt(1-beta^2). It returns +Inf for |beta| >= 1.
func LorentzFactor(beta float64) float64 {
	b2 := beta * beta
	if b2 >= 1 {
		return math.Inf(1)
	}
	return 1 / math.Sqrt(1-b2)
}
