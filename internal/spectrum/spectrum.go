// Package spectrum bins escaping packet energy by lab-frame frequency.
package spectrum

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/ejecta.report/internal/config"
	"github.com/banshee-data/ejecta.report/internal/simerr"
	"github.com/banshee-data/ejecta.report/internal/units"
)

// Spectrum holds energy per frequency bin. Bins are uniform in frequency and
// span the configured wavelength window. The zero value is not usable; build
// one with New or EmptyLike.
type Spectrum struct {
	edges      []float64 // Hz, ascending, len = bins+1
	luminosity []float64 // energy per bin
	dnu        float64
}

// New builds an empty spectrum covering [startAngstrom, stopAngstrom] with
// num bins.
func New(startAngstrom, stopAngstrom float64, num int) (*Spectrum, error) {
	if !(startAngstrom > 0) || !(stopAngstrom > startAngstrom) || num < 1 {
		return nil, simerr.New(simerr.KindConfiguration, "spectrum.New",
			"invalid spectrum grid: start=%g stop=%g num=%d", startAngstrom, stopAngstrom, num)
	}
	edges := make([]float64, num+1)
	floats.Span(edges, units.AngstromToHz(stopAngstrom), units.AngstromToHz(startAngstrom))
	return &Spectrum{
		edges:      edges,
		luminosity: make([]float64, num),
		dnu:        edges[1] - edges[0],
	}, nil
}

// FromConfig builds the spectrum described by the spectrum section.
func FromConfig(sc *config.SpectrumConfig) (*Spectrum, error) {
	return New(sc.GetStart(), sc.GetStop(), sc.GetNum())
}

// EmptyLike returns a zeroed spectrum with the same bins.
func (s *Spectrum) EmptyLike() *Spectrum {
	return &Spectrum{edges: s.edges, luminosity: make([]float64, len(s.luminosity)), dnu: s.dnu}
}

// Clone returns an independent copy.
func (s *Spectrum) Clone() *Spectrum {
	return &Spectrum{edges: s.edges, luminosity: slices.Clone(s.luminosity), dnu: s.dnu}
}

// NumBins returns the number of bins.
func (s *Spectrum) NumBins() int { return len(s.luminosity) }

// Bin returns the bin holding nu, or -1 outside the grid. The upper edge
// belongs to the last bin.
func (s *Spectrum) Bin(nu float64) int {
	lo, hi := s.edges[0], s.edges[len(s.edges)-1]
	if !(nu >= lo) || nu > hi {
		return -1
	}
	i := int((nu - lo) / s.dnu)
	if i >= len(s.luminosity) {
		i = len(s.luminosity) - 1
	}
	return i
}

// Add deposits energy at frequency nu and reports whether it landed on the
// grid.
func (s *Spectrum) Add(nu, energy float64) bool {
	i := s.Bin(nu)
	if i < 0 {
		return false
	}
	s.luminosity[i] += energy
	return true
}

// Merge adds other bin by bin.
func (s *Spectrum) Merge(other *Spectrum) error {
	if len(other.luminosity) != len(s.luminosity) || other.edges[0] != s.edges[0] || other.dnu != s.dnu {
		return fmt.Errorf("spectrum grid mismatch")
	}
	floats.Add(s.luminosity, other.luminosity)
	return nil
}

// Scale multiplies every bin by f.
func (s *Spectrum) Scale(f float64) { floats.Scale(f, s.luminosity) }

// Total returns the summed energy.
func (s *Spectrum) Total() float64 { return floats.Sum(s.luminosity) }

// Edges returns the bin edges in Hz. The result must not be modified.
func (s *Spectrum) Edges() []float64 { return s.edges }

// Luminosity returns energy per bin. The result must not be modified.
func (s *Spectrum) Luminosity() []float64 { return s.luminosity }

// Frequencies returns bin centres in Hz.
func (s *Spectrum) Frequencies() []float64 {
	out := make([]float64, len(s.luminosity))
	for i := range out {
		out[i] = 0.5 * (s.edges[i] + s.edges[i+1])
	}
	return out
}

// Wavelengths returns bin centres in Angstrom, in bin order (descending).
func (s *Spectrum) Wavelengths() []float64 {
	out := s.Frequencies()
	for i, nu := range out {
		out[i] = units.HzToAngstrom(nu)
	}
	return out
}

// LuminosityDensityNu returns L_nu = L / dnu per bin.
func (s *Spectrum) LuminosityDensityNu() []float64 {
	out := make([]float64, len(s.luminosity))
	floats.ScaleTo(out, 1/s.dnu, s.luminosity)
	return out
}

// LuminosityDensityLambda returns L_lambda per Angstrom, L_nu * nu^2 / c.
func (s *Spectrum) LuminosityDensityLambda() []float64 {
	out := s.LuminosityDensityNu()
	for i, nu := range s.Frequencies() {
		out[i] *= nu * nu / units.SpeedOfLight * units.Angstrom
	}
	return out
}

// Peak returns the wavelength (Angstrom) of the brightest bin in L_lambda,
// or NaN for an empty spectrum.
func (s *Spectrum) Peak() float64 {
	ll := s.LuminosityDensityLambda()
	if floats.Max(ll) <= 0 {
		return math.NaN()
	}
	return s.Wavelengths()[floats.MaxIdx(ll)]
}
