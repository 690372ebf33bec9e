// Package model holds the static shell grid, the versioned plasma state
// snapshot handed between the plasma solver and the transport engine, and
// the per-shell Monte Carlo estimators.
package model

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/ejecta.report/internal/atomdata"
	"github.com/banshee-data/ejecta.report/internal/config"
	"github.com/banshee-data/ejecta.report/internal/simerr"
	"github.com/banshee-data/ejecta.report/internal/units"
)

// W7 reference profile of Branch et al. (1985).
const (
	w7Rho0      = 3e29        // g/cm^3
	w7V0        = 1e5         // cm/s
	w7Time0Days = 0.000231481 // days
	w7Exponent  = -7.0
)

// Grid is the static radial grid of a run. Shells are contiguous and ordered
// by increasing velocity; nothing here changes during a run.
type Grid struct {
	TimeExplosion float64   // s
	VInner        []float64 // cm/s, per shell
	VOuter        []float64 // cm/s, per shell
	Density       []float64 // g/cm^3 at TimeExplosion

	// Elements lists the atomic numbers present in the composition.
	Elements []int
	// MassFraction and NumberDensity are indexed [shell][element].
	MassFraction  [][]float64
	NumberDensity [][]float64 // cm^-3
}

// NewGrid validates the shell geometry and derives element number densities.
// massFraction is indexed [shell][element] and is normalised per shell.
func NewGrid(timeExplosion float64, boundaries, density []float64, elements []int, massFraction [][]float64, table *atomdata.Table) (*Grid, error) {
	const op = "model.NewGrid"
	n := len(boundaries) - 1
	if n < 1 {
		return nil, simerr.New(simerr.KindConfiguration, op, "need at least two velocity boundaries")
	}
	if !(timeExplosion > 0) {
		return nil, simerr.New(simerr.KindConfiguration, op, "time of explosion must be positive")
	}
	if len(density) != n || len(massFraction) != n {
		return nil, simerr.New(simerr.KindConfiguration, op, "density and composition must have %d shells", n)
	}
	for i := 0; i < n; i++ {
		if !(boundaries[i] > 0) || !(boundaries[i+1] > boundaries[i]) {
			return nil, simerr.New(simerr.KindConfiguration, op, "velocity boundaries must be positive and increasing at shell %d", i)
		}
		if !(density[i] > 0) || math.IsInf(density[i], 0) {
			return nil, simerr.New(simerr.KindConfiguration, op, "density of shell %d must be positive, got %g", i, density[i])
		}
	}

	g := &Grid{
		TimeExplosion: timeExplosion,
		VInner:        append([]float64(nil), boundaries[:n]...),
		VOuter:        append([]float64(nil), boundaries[1:]...),
		Density:       append([]float64(nil), density...),
		Elements:      append([]int(nil), elements...),
		MassFraction:  make([][]float64, n),
		NumberDensity: make([][]float64, n),
	}

	masses := make([]float64, len(elements))
	for k, z := range elements {
		e, ok := table.ElementByZ(z)
		if !ok {
			return nil, simerr.New(simerr.KindAtomicData, op, "no atomic data for Z=%d", z)
		}
		masses[k] = e.Mass * units.AtomicMassUnit
	}

	for i := 0; i < n; i++ {
		if len(massFraction[i]) != len(elements) {
			return nil, simerr.New(simerr.KindConfiguration, op, "shell %d has %d mass fractions, want %d", i, len(massFraction[i]), len(elements))
		}
		total := floats.Sum(massFraction[i])
		if !(total > 0) {
			return nil, simerr.New(simerr.KindConfiguration, op, "shell %d has no mass", i)
		}
		g.MassFraction[i] = make([]float64, len(elements))
		floats.ScaleTo(g.MassFraction[i], 1/total, massFraction[i])
		g.NumberDensity[i] = make([]float64, len(elements))
		for k := range elements {
			g.NumberDensity[i][k] = g.Density[i] * g.MassFraction[i][k] / masses[k]
		}
	}
	return g, nil
}

// FromConfig builds the grid described by the model and supernova sections.
func FromConfig(cfg *config.RunConfig, table *atomdata.Table) (*Grid, error) {
	vc := cfg.Model.Velocity
	n := vc.GetNum()
	boundaries := make([]float64, n+1)
	floats.Span(boundaries, units.ToCMPS(vc.GetStart(), vc.GetUnit()), units.ToCMPS(vc.GetStop(), vc.GetUnit()))

	t := units.DaysToSeconds(cfg.Supernova.GetTimeExplosionDays())
	density := make([]float64, n)
	for i := range density {
		vMid := 0.5 * (boundaries[i] + boundaries[i+1])
		rho, err := densityAt(cfg.Model.Density, vc.GetUnit(), vMid, t)
		if err != nil {
			return nil, err
		}
		density[i] = rho
	}

	type component struct {
		z int
		x float64
	}
	var comps []component
	for symbol, x := range cfg.Model.GetAbundances() {
		e, err := table.ElementBySymbol(symbol)
		if err != nil {
			return nil, err
		}
		comps = append(comps, component{e.Z, x})
	}
	slices.SortFunc(comps, func(a, b component) int { return cmp.Compare(a.z, b.z) })

	elements := make([]int, len(comps))
	fractions := make([]float64, len(comps))
	for k, c := range comps {
		elements[k] = c.z
		fractions[k] = c.x
	}
	massFraction := make([][]float64, n)
	for i := range massFraction {
		massFraction[i] = fractions
	}
	return NewGrid(t, boundaries, density, elements, massFraction, table)
}

// densityAt evaluates a density profile at velocity v (cm/s) and time t (s).
func densityAt(dc config.DensityConfig, unit string, v, t float64) (float64, error) {
	switch dc.GetType() {
	case config.DensityUniform:
		return dc.GetValue(), nil
	case config.DensityPowerLaw:
		v0 := units.ToCMPS(dc.GetV0(), unit)
		t0 := units.DaysToSeconds(dc.GetTime0Days())
		return dc.GetValue() * math.Pow(v/v0, dc.GetExponent()) * math.Pow(t0/t, 3), nil
	case config.DensityExponential:
		v0 := units.ToCMPS(dc.GetV0(), unit)
		t0 := units.DaysToSeconds(dc.GetTime0Days())
		return dc.GetValue() * math.Exp(-v/v0) * math.Pow(t0/t, 3), nil
	case config.DensityBranch85W7:
		t0 := units.DaysToSeconds(w7Time0Days)
		return w7Rho0 * math.Pow(v/w7V0, w7Exponent) * math.Pow(t0/t, 3), nil
	default:
		return 0, simerr.New(simerr.KindConfiguration, "model.FromConfig", "unknown density type %q", dc.GetType())
	}
}

// NumShells returns the number of shells.
func (g *Grid) NumShells() int { return len(g.VInner) }

// RInner returns the inner radius of shell i in cm.
func (g *Grid) RInner(i int) float64 { return g.VInner[i] * g.TimeExplosion }

// ROuter returns the outer radius of shell i in cm.
func (g *Grid) ROuter(i int) float64 { return g.VOuter[i] * g.TimeExplosion }

// RInnerBoundary is the photospheric radius where packets are injected.
func (g *Grid) RInnerBoundary() float64 { return g.RInner(0) }

// ROuterBoundary is the radius beyond which packets escape.
func (g *Grid) ROuterBoundary() float64 { return g.ROuter(g.NumShells() - 1) }

// RMiddle returns the mid radius of shell i in cm.
func (g *Grid) RMiddle(i int) float64 { return 0.5 * (g.RInner(i) + g.ROuter(i)) }

// Volume returns the volume of shell i in cm^3.
func (g *Grid) Volume(i int) float64 {
	ri, ro := g.RInner(i), g.ROuter(i)
	return 4.0 / 3.0 * math.Pi * (ro*ro*ro - ri*ri*ri)
}

// ElementIndex returns the composition index of atomic number z.
func (g *Grid) ElementIndex(z int) (int, bool) {
	for k, e := range g.Elements {
		if e == z {
			return k, true
		}
	}
	return 0, false
}

// String summarises the grid for logs.
func (g *Grid) String() string {
	return fmt.Sprintf("%d shells, v=[%.0f, %.0f] km/s, t=%.2f d",
		g.NumShells(), g.VInner[0]/units.KmPerSec, g.VOuter[g.NumShells()-1]/units.KmPerSec, g.TimeExplosion/units.SecPerDay)
}
