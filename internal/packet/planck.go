package packet

import (
	"math"

	"gonum.org/v1/gonum/integrate/quad"

	"github.com/banshee-data/ejecta.report/internal/simerr"
	"github.com/banshee-data/ejecta.report/internal/units"
)

// xMax is where the Planck integrand x^3/(e^x-1) drops below 1e-16 of its
// peak.
const xMax = 50.0

const quadPoints = 256

// planckIntegrand is x^3/(e^x-1) in x = h nu / kT.
func planckIntegrand(x float64) float64 {
	if x <= 0 {
		return 0
	}
	return x * x * x / math.Expm1(x)
}

// PlanckFraction returns the fraction of blackbody flux at temperature T
// between nuMin and nuMax (Hz). nuMax may be +Inf.
func PlanckFraction(temperature, nuMin, nuMax float64) float64 {
	scale := units.Planck / (units.Boltzmann * temperature)
	a := math.Max(nuMin*scale, 0)
	b := math.Min(nuMax*scale, xMax)
	if b <= a {
		return 0
	}
	total := math.Pow(math.Pi, 4) / 15
	return quad.Fixed(planckIntegrand, a, b, quadPoints, quad.Legendre{}, 0) / total
}

// MeanFrequency returns the mean photon-energy-weighted frequency of a
// blackbody, 4 zeta(5)/zeta(4) * kT/h, i.e. about 3.832 kT/h.
func MeanFrequency(temperature float64) float64 {
	return 3.8322 * units.Boltzmann * temperature / units.Planck
}

// Validate checks the structural contract of a packet ensemble.
func (p Packets) Validate(count int) error {
	const op = "packet.Validate"
	if len(p.Nus) != count || len(p.Mus) != count || len(p.Energies) != count {
		return simerr.New(simerr.KindSampling, op, "expected %d packets, got %d/%d/%d", count, len(p.Nus), len(p.Mus), len(p.Energies))
	}
	for i := range p.Nus {
		if !(p.Nus[i] > 0) || math.IsInf(p.Nus[i], 0) {
			return simerr.New(simerr.KindSampling, op, "packet %d has invalid frequency %g", i, p.Nus[i])
		}
		if p.Mus[i] < 0 || p.Mus[i] > 1 {
			return simerr.New(simerr.KindSampling, op, "packet %d has direction cosine %g outside [0, 1]", i, p.Mus[i])
		}
		if !(p.Energies[i] > 0) {
			return simerr.New(simerr.KindSampling, op, "packet %d has non-positive energy %g", i, p.Energies[i])
		}
	}
	return nil
}
