package transport

import (
	"math"
	"math/rand/v2"

	"github.com/banshee-data/ejecta.report/internal/spectrum"
)

// tracer propagates the packets of one chunk. It is used by a single
// goroutine.
type tracer struct {
	rc      *runContext
	rng     *rand.Rand
	acc     *chunkResult
	virtual bool
	spawn   *spectrum.Spectrum // frequency window that spawns virtual packets
}

// newPacket places a source packet on the inner boundary. Source values are
// comoving; the packet leaves with lab-frame frequency and energy.
func (t *tracer) newPacket(index int, nu, mu, energy float64) rPacket {
	rc := t.rc
	r := rc.rInner[0]
	inv := rc.frame.inverseDoppler(r, mu)
	p := rPacket{
		index:       index,
		r:           r,
		mu:          rc.frame.toLab(r, mu),
		nu:          nu * inv,
		energy:      energy * inv,
		state:       StateAtBoundary,
		lastLineIn:  -1,
		lastLineOut: -1,
	}
	p.nextLine = rc.startLine(nu)
	return p
}

func finite(p *rPacket) bool {
	return !math.IsNaN(p.r+p.mu+p.nu+p.energy) && !math.IsInf(p.r+p.nu+p.energy, 0)
}

// propagate runs the packet state machine to a terminal state.
func (t *tracer) propagate(p *rPacket) {
	if t.virtual {
		t.volley(p)
	}
	for !p.state.Done() {
		if p.steps >= t.rc.cfg.MaxSteps || !finite(p) {
			p.state = StateAbsorbed
			p.reabsorbed = false
			return
		}
		p.steps++

		d, kind, delta := t.trace(p)
		p.state = StateInShell
		switch kind {
		case InteractionBoundary:
			t.move(p, d)
			t.cross(p, delta)
		case InteractionLine:
			p.state = StateInteracting
			t.move(p, d)
			t.lineInteraction(p)
			p.state = StateInShell
			if t.virtual {
				t.volley(p)
			}
		case InteractionElectron:
			p.state = StateInteracting
			t.move(p, d)
			t.electronScatter(p)
			p.state = StateInShell
			if t.virtual {
				t.volley(p)
			}
		}
	}
}

// trace finds the next event in the current shell. Equal distances resolve
// boundary first, then electron scattering, then line. Line optical depths
// accumulate along the path until they exceed the drawn event depth.
func (t *tracer) trace(p *rPacket) (float64, Interaction, int) {
	rc := t.rc
	dBoundary, delta := distanceBoundary(p.r, p.mu, rc.rInner[p.shell], rc.rOuter[p.shell])

	tauEvent := t.rng.ExpFloat64()
	chi := rc.chiE[p.shell]
	dElectron := distanceElectron(chi, tauEvent)

	nLines := len(rc.lineNu)
	if nLines > 0 {
		comovNu := p.nu * rc.frame.doppler(p.r, p.mu)
		taus := rc.tau[p.shell]
		tauLines := 0.0
		for k := p.nextLine; k < nLines; k++ {
			tauLines += taus[k]
			dLine, clamped := rc.frame.distanceLine(p.r, p.mu, p.nu, comovNu, rc.lineNu[k])
			if clamped {
				t.acc.stats.ClampedLineDistances++
			}

			d := min(dLine, dBoundary, dElectron)
			if d == dBoundary {
				p.nextLine = k
				return dBoundary, InteractionBoundary, delta
			}
			if d == dElectron {
				p.nextLine = k
				return dElectron, InteractionElectron, delta
			}
			if tauLines+chi*dLine > tauEvent {
				p.nextLine = k
				return dLine, InteractionLine, delta
			}
			dElectron = distanceElectron(chi, tauEvent-tauLines)
		}
		p.nextLine = nLines
	}

	if dElectron < dBoundary {
		return dElectron, InteractionElectron, delta
	}
	return dBoundary, InteractionBoundary, delta
}

// move advances the packet by d and accumulates the path-length estimators
// of the current shell.
func (t *tracer) move(p *rPacket, d float64) {
	if !(d > 0) {
		return
	}
	df := t.rc.frame.doppler(p.r, p.mu)
	r := p.r
	newR := math.Sqrt(r*r + d*d + 2*r*d*p.mu)
	p.mu = math.Max(-1, math.Min(1, (p.mu*r+d)/newR))
	p.r = newR

	comovNu := p.nu * df
	comovEnergy := p.energy * df
	if t.rc.cfg.FullRelativity {
		d *= df
	}
	est := t.acc.estimators
	est.J[p.shell] += comovEnergy * d
	est.NuBar[p.shell] += comovEnergy * d * comovNu
}

// cross moves the packet onto the boundary it reached and into the next
// shell, or terminates it at the edges of the grid.
func (t *tracer) cross(p *rPacket, delta int) {
	rc := t.rc
	t.acc.stats.BoundaryCrossings++
	if delta > 0 {
		p.r = rc.rOuter[p.shell]
	} else {
		p.r = rc.rInner[p.shell]
	}
	next := p.shell + delta
	switch {
	case next >= rc.nShells:
		p.state = StateEscaped
	case next < 0:
		p.state = StateAbsorbed
		p.reabsorbed = true
	default:
		p.shell = next
		p.state = StateAtBoundary
	}
	p.lastInteraction = InteractionBoundary
}

func (t *tracer) randomMu() float64 { return 2*t.rng.Float64() - 1 }

// electronScatter redirects the packet isotropically in the comoving frame.
// The comoving frequency and energy are unchanged.
func (t *tracer) electronScatter(p *rPacket) {
	f := t.rc.frame
	old := f.doppler(p.r, p.mu)
	comovNu := p.nu * old
	comovEnergy := p.energy * old
	before := p.energy

	muCMF := t.randomMu()
	inv := f.inverseDoppler(p.r, muCMF)
	p.nu = comovNu * inv
	p.energy = comovEnergy * inv
	p.mu = f.toLab(p.r, muCMF)

	t.acc.adiabatic += before - p.energy
	t.acc.estimators.ElectronScatterings[p.shell]++
	t.acc.stats.ElectronScatterings++
	p.lastInteraction = InteractionElectron
}

// lineInteraction absorbs the packet in line p.nextLine and re-emits it
// isotropically in the comoving frame, in the same line or a downward
// branch.
func (t *tracer) lineInteraction(p *rPacket) {
	rc := t.rc
	f := rc.frame
	k := p.nextLine
	comovEnergy := p.energy * f.doppler(p.r, p.mu)
	before := p.energy

	muCMF := t.randomMu()
	inv := f.inverseDoppler(p.r, muCMF)
	emit := k
	if rc.cfg.LineInteraction == LineDownbranch {
		emit = rc.emissionLine(p.shell, k, t.rng.Float64())
	}
	p.energy = comovEnergy * inv
	p.nu = rc.lineNu[emit] * inv
	p.mu = f.toLab(p.r, muCMF)
	p.nextLine = emit + 1

	t.acc.adiabatic += before - p.energy
	est := t.acc.estimators
	est.LineInteractions[p.shell]++
	est.LineAbsorbedEnergy[p.shell] += comovEnergy
	est.LineEmittedEnergy[p.shell] += comovEnergy
	t.acc.stats.LineInteractions++
	p.lastInteraction = InteractionLine
	p.lastLineIn = k
	p.lastLineOut = emit
}
