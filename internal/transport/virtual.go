package transport

import "math"

// volley spawns the configured number of virtual packets from the current
// position of p, stratified in comoving direction over the cone that misses
// the photosphere, and bins their attenuated energy into the virtual
// spectrum.
func (t *tracer) volley(p *rPacket) {
	rc := t.rc
	n := rc.cfg.VirtualPackets
	if n == 0 || t.spawn.Bin(p.nu) < 0 {
		return
	}
	f := rc.frame
	rIn := rc.rInner[0]

	onInner := !(p.r > rIn)
	muMin := 0.0
	if !onInner {
		ratio := rIn / p.r
		muMin = f.toComoving(p.r, -math.Sqrt(1-ratio*ratio))
	}
	muBin := (1 - muMin) / float64(n)
	dfReal := f.doppler(p.r, p.mu)

	for i := 0; i < n; i++ {
		mu := muMin + (float64(i)+t.rng.Float64())*muBin
		var weight float64
		if onInner {
			weight = 2 * mu / float64(n)
		} else {
			weight = (1 - muMin) / (2 * float64(n))
		}
		mu = f.toLab(p.r, mu)

		ratio := dfReal / f.doppler(p.r, mu)
		v := rPacket{
			r:      p.r,
			mu:     mu,
			nu:     p.nu * ratio,
			energy: p.energy * weight * ratio,
			shell:  p.shell,
		}
		if len(rc.lineNu) > 0 {
			v.nextLine = rc.startLine(v.nu * f.doppler(v.r, v.mu))
		}
		tau := t.traceVirtual(&v)
		t.acc.stats.VirtualPackets++
		if v.energy > 0 {
			t.acc.virtual.Add(v.nu, v.energy*math.Exp(-tau))
		}
	}
}

// traceVirtual flies a virtual packet straight to the surface and returns
// the optical depth it collected since the last roulette. Packets that hit
// the photosphere or lose the roulette leave with zero energy.
func (t *tracer) traceVirtual(v *rPacket) float64 {
	rc := t.rc
	f := rc.frame
	tau := 0.0
	nLines := len(rc.lineNu)

	for step := 0; step < rc.cfg.MaxSteps; step++ {
		dBoundary, delta := distanceBoundary(v.r, v.mu, rc.rInner[v.shell], rc.rOuter[v.shell])
		tau += rc.chiE[v.shell] * dBoundary

		if nLines > 0 {
			comovNu := v.nu * f.doppler(v.r, v.mu)
			taus := rc.tau[v.shell]
			k := v.nextLine
			for ; k < nLines; k++ {
				dLine, _ := f.distanceLine(v.r, v.mu, v.nu, comovNu, rc.lineNu[k])
				if dBoundary <= dLine {
					break
				}
				tau += taus[k]
			}
			v.nextLine = k
		}

		r := v.r
		if dBoundary > 0 {
			newR := math.Sqrt(r*r + dBoundary*dBoundary + 2*r*dBoundary*v.mu)
			v.mu = math.Max(-1, math.Min(1, (v.mu*r+dBoundary)/newR))
		}
		if delta > 0 {
			v.r = rc.rOuter[v.shell]
		} else {
			v.r = rc.rInner[v.shell]
		}
		next := v.shell + delta
		if next >= rc.nShells {
			return tau
		}
		if next < 0 {
			v.energy = 0
			return tau
		}
		v.shell = next

		if tau > rc.cfg.TauRussian {
			s := rc.cfg.SurvivalProbability
			if s <= 0 || t.rng.Float64() > s {
				v.energy = 0
				return tau
			}
			v.energy = v.energy / s * math.Exp(-tau)
			tau = 0
		}
	}
	v.energy = 0
	return tau
}
