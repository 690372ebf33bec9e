package units

import (
	"math"
	"testing"
)

func TestIsValidVelocityUnit(t *testing.T) {
	testCases := []struct {
		unit string
		want bool
	}{
		{CMPS, true},
		{KMPS, true},
		{"mph", false},
		{"", false},
	}
	for _, tc := range testCases {
		if got := IsValidVelocityUnit(tc.unit); got != tc.want {
			t.Errorf("IsValidVelocityUnit(%q) = %v, want %v", tc.unit, got, tc.want)
		}
	}
}

func TestToCMPS(t *testing.T) {
	testCases := []struct {
		name string
		v    float64
		unit string
		want float64
	}{
		{"kmps", 10000, KMPS, 1e9},
		{"cmps", 1e9, CMPS, 1e9},
		{"unknown_defaults_to_cmps", 5, "furlongs", 5},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ToCMPS(tc.v, tc.unit); got != tc.want {
				t.Errorf("ToCMPS(%g, %q) = %g, want %g", tc.v, tc.unit, got, tc.want)
			}
		})
	}
}

func TestLorentzFactor(t *testing.T) {
	if got := LorentzFactor(0); got != 1 {
		t.Errorf("LorentzFactor(0) = %g, want 1", got)
	}
	if got := LorentzFactor(0.6); math.Abs(got-1.25) > 1e-12 {
		t.Errorf("LorentzFactor(0.6) = %g, want 1.25", got)
	}
	if !math.IsInf(LorentzFactor(1), 1) {
		t.Error("LorentzFactor(1) should be +Inf")
	}
}
