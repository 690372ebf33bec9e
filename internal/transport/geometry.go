package transport

import (
	"math"

	"github.com/banshee-data/ejecta.report/internal/units"
)

// closeLineThreshold treats a line closer than this relative frequency
// difference as already in resonance.
const closeLineThreshold = 1e-7

// missDistance stands in for "never" in distance comparisons.
var missDistance = math.Inf(1)

// frame converts between the lab frame and the comoving frame of a
// homologous flow, where the local velocity at radius r is r/t.
type frame struct {
	ct   float64 // c * t_explosion
	full bool
}

func (f frame) beta(r float64) float64 { return r / f.ct }

// doppler returns nu_cmf / nu_lab for a packet at r moving with lab-frame
// direction cosine mu.
func (f frame) doppler(r, mu float64) float64 {
	beta := f.beta(r)
	if f.full {
		return (1 - mu*beta) / math.Sqrt(1-beta*beta)
	}
	return 1 - mu*beta
}

// inverseDoppler returns nu_lab / nu_cmf for emission at r along mu. In full
// relativity mu is the comoving-frame direction.
func (f frame) inverseDoppler(r, mu float64) float64 {
	beta := f.beta(r)
	if f.full {
		return (1 + mu*beta) / math.Sqrt(1-beta*beta)
	}
	return 1 / (1 - mu*beta)
}

// toLab aberrates a comoving-frame direction cosine into the lab frame. It is
// the identity outside full relativity.
func (f frame) toLab(r, mu float64) float64 {
	if !f.full {
		return mu
	}
	beta := f.beta(r)
	return (mu + beta) / (1 + beta*mu)
}

// toComoving aberrates a lab-frame direction cosine into the comoving frame.
func (f frame) toComoving(r, mu float64) float64 {
	if !f.full {
		return mu
	}
	beta := f.beta(r)
	return (mu - beta) / (1 - beta*mu)
}

// distanceBoundary returns the path length to the next shell boundary and
// the shell step (+1 outward, -1 inward). The inner sphere is hit only when
// moving inward with a strictly positive discriminant; a packet tangent to it
// continues to the outer boundary.
func distanceBoundary(r, mu, rInner, rOuter float64) (float64, int) {
	if mu < 0 {
		check := rInner*rInner + r*r*(mu*mu-1)
		if check > 0 {
			return math.Max(-r*mu-math.Sqrt(check), 0), -1
		}
	}
	d := math.Sqrt(rOuter*rOuter+(mu*mu-1)*r*r) - r*mu
	if !(d > 0) {
		d = 0
	}
	return d, 1
}

// distanceElectron converts an optical depth to a path length for continuum
// opacity chi (cm^-1).
func distanceElectron(chi, tau float64) float64 {
	if chi <= 0 {
		return missDistance
	}
	return tau / chi
}

// distanceLine returns the path length until the comoving frequency comovNu
// of a packet with lab frequency nu redshifts to nuLine. A line already
// passed is clamped to zero distance and reported.
func (f frame) distanceLine(r, mu, nu, comovNu, nuLine float64) (float64, bool) {
	nuDiff := comovNu - nuLine
	if math.Abs(nuDiff/nu) < closeLineThreshold {
		nuDiff = 0
	}
	clamped := false
	if nuDiff < 0 {
		nuDiff = 0
		clamped = true
	}
	if !f.full {
		return nuDiff / nu * f.ct, clamped
	}
	if nuDiff == 0 {
		return 0, clamped
	}
	return f.distanceLineFull(r, mu, nu, nuLine), clamped
}

// distanceLineFull solves the exact resonance condition
// nu * gamma(r') * (1 - beta(r') mu') = nuLine along the ray.
func (f frame) distanceLineFull(r, mu, nu, nuLine float64) float64 {
	nuR := nuLine / nu
	ct := f.ct
	disc := ct*ct - r*r*(1-mu*mu)*(1+1/(nuR*nuR))
	if disc < 0 {
		return missDistance
	}
	d := -mu*r + (ct-nuR*nuR*math.Sqrt(disc))/(1+nuR*nuR)
	return math.Max(d, 0)
}

// newFrame builds the frame of a run at the given time since explosion.
func newFrame(timeExplosion float64, full bool) frame {
	return frame{ct: units.SpeedOfLight * timeExplosion, full: full}
}
