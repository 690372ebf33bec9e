package plasma

import (
	"math"

	"gonum.org/v1/gonum/mathext"

	"github.com/banshee-data/ejecta.report/internal/units"
)

// tRadConstant converts the mean comoving frequency nubar/j of a diluted
// blackbody into its temperature: T = (h/k) pi^4 / (360 zeta(5)) * nubar/j.
var tRadConstant = units.Planck / units.Boltzmann * math.Pow(math.Pi, 4) / (360 * mathext.Zeta(5, 1))

// RadiationFieldFromEstimators returns the radiative temperature and
// dilution factor of a shell of the given volume from its path-length
// estimators. tSim is the simulation time that turns packet energy into erg/s.
func RadiationFieldFromEstimators(j, nuBar, tSim, volume float64) (tRad, w float64) {
	tRad = tRadConstant * nuBar / j
	w = j / (4 * units.StefanBoltzman * math.Pow(tRad, 4) * tSim * volume)
	return tRad, w
}

// EstimatorsForField is the inverse of RadiationFieldFromEstimators.
func EstimatorsForField(tRad, w, tSim, volume float64) (j, nuBar float64) {
	j = w * 4 * units.StefanBoltzman * math.Pow(tRad, 4) * tSim * volume
	nuBar = j * tRad / tRadConstant
	return j, nuBar
}

// GeometricDilution is the dilution factor at radius r of a photosphere of
// radius rPhot.
func GeometricDilution(rPhot, r float64) float64 {
	if r <= rPhot {
		return 0.5
	}
	x := rPhot / r
	return 0.5 * (1 - math.Sqrt(1-x*x))
}

// damp moves old towards estimate by the fraction d.
func damp(old, estimate, d float64) float64 {
	return old + d*(estimate-old)
}

// UpdateTInner rescales the inner boundary temperature so that the emitted
// luminosity approaches the requested one. It returns tInner unchanged when
// no luminosity is requested or nothing was emitted.
func (s *Solver) UpdateTInner(tInner, lEmitted float64) float64 {
	lReq := s.cfg.LuminosityRequested
	if !(lReq > 0) || !(lEmitted > 0) {
		return tInner
	}
	estimate := tInner * math.Pow(lEmitted/lReq, s.cfg.TInnerExponent)
	return damp(tInner, estimate, s.cfg.TInnerDamping)
}
