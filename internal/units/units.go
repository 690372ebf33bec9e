// Package units provides shared CGS physical constants and conversions
// between wavelength, frequency, velocity and time units.
package units

import "math"

// Physical constants (CGS)
const (
	SpeedOfLight   = 2.99792458e10    // cm/s
	Planck         = 6.62607015e-27   // erg s
	Boltzmann      = 1.380649e-16     // erg/K
	ThomsonCross   = 6.6524587321e-25 // cm^2
	ElectronMass   = 9.1093837015e-28 // g
	ElectronCharge = 4.80320471e-10   // esu
	StefanBoltzman = 5.670374419e-5   // erg cm^-2 s^-1 K^-4
	AtomicMassUnit = 1.66053906660e-24
	ElectronVolt   = 1.602176634e-12 // erg
)

// Unit scale factors
const (
	Angstrom  = 1e-8     // cm
	KmPerSec  = 1e5      // cm/s
	SecPerDay = 86400.0  // s
	SolarLum  = 3.828e33 // erg/s
)

// SobolevCoefficient is pi e^2 / (m_e c), the classical line cross-section
// prefactor in cm^2/s.
var SobolevCoefficient = math.Pi * ElectronCharge * ElectronCharge / (ElectronMass * SpeedOfLight)

// SahaCoefficient is (2 pi m_e k / h^2)^(3/2); multiply by T^(3/2) to get cm^-3.
var SahaCoefficient = math.Pow(2*math.Pi*ElectronMass*Boltzmann/(Planck*Planck), 1.5)

// AngstromToHz converts a wavelength in Angstrom to a frequency in Hz.
// Non-positive wavelengths map to +Inf.
func AngstromToHz(lambda float64) float64 {
	if lambda <= 0 {
		return math.Inf(1)
	}
	return SpeedOfLight / (lambda * Angstrom)
}

// HzToAngstrom converts a frequency in Hz to a wavelength in Angstrom.
func HzToAngstrom(nu float64) float64 {
	if nu <= 0 {
		return math.Inf(1)
	}
	return SpeedOfLight / nu / Angstrom
}

// EVToErg converts an energy in electron volts to erg.
func EVToErg(ev float64) float64 { return ev * ElectronVolt }

// DaysToSeconds converts days to seconds.
func DaysToSeconds(days float64) float64 { return days * SecPerDay }
