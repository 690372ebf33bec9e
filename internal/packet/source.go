// Package packet generates the initial packet ensemble at the inner boundary.
package packet

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/banshee-data/ejecta.report/internal/simerr"
	"github.com/banshee-data/ejecta.report/internal/units"
)

// DefaultSamplingSize is the number of terms of the blackbody series used to
// draw frequencies.
const DefaultSamplingSize = 1000

// streamBlackBody separates the source's PCG stream from the transport
// streams seeded from the same run seed.
const streamBlackBody = 0x5eed_b1ac_b0d1

// Packets is the ensemble produced by a Source. The three slices always have
// the same length. Frequencies are comoving-frame values at the inner
// boundary; energies are fractions of the boundary luminosity and sum to one.
type Packets struct {
	Nus      []float64
	Mus      []float64
	Energies []float64
}

// Len returns the number of packets.
func (p Packets) Len() int { return len(p.Nus) }

// Source creates packet ensembles. Implementations must return exactly count
// packets or an error.
type Source interface {
	CreatePackets(temperature float64, count int) (Packets, error)
}

// BlackBodySource draws frequencies from a Planck distribution using the
// series method of Bjorkman & Wood (2001) and directions with zero limb
// darkening. A source owns its generator and is not safe for concurrent use.
type BlackBodySource struct {
	Seed         uint64
	SamplingSize int

	rng     *rand.Rand
	cdf     []float64
	cdfSize int
}

// NewBlackBodySource returns a deterministic source for the given seed.
func NewBlackBodySource(seed uint64) *BlackBodySource {
	return &BlackBodySource{Seed: seed, SamplingSize: DefaultSamplingSize}
}

func (s *BlackBodySource) init() {
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(s.Seed, streamBlackBody))
	}
	size := s.SamplingSize
	if size < 1 {
		size = DefaultSamplingSize
	}
	if s.cdfSize == size {
		return
	}
	// cumulative sum of l^-4 normalised by zeta(4) = pi^4/90
	lCoef := math.Pow(math.Pi, 4) / 90
	s.cdf = make([]float64, size)
	acc := 0.0
	for l := 1; l <= size; l++ {
		acc += 1 / math.Pow(float64(l), 4)
		s.cdf[l-1] = acc / lCoef
	}
	s.cdfSize = size
}

func checkRequest(op string, temperature float64, count int) error {
	if count < 1 {
		return simerr.New(simerr.KindSampling, op, "packet count must be >= 1, got %d", count)
	}
	if !(temperature > 0) || math.IsInf(temperature, 0) {
		return simerr.New(simerr.KindSampling, op, "temperature must be positive, got %g", temperature)
	}
	return nil
}

// CreatePackets returns count packets at the given temperature.
func (s *BlackBodySource) CreatePackets(temperature float64, count int) (Packets, error) {
	if err := checkRequest("packet.BlackBodySource", temperature, count); err != nil {
		return Packets{}, err
	}
	s.init()
	return Packets{
		Nus:      s.drawNus(temperature, count),
		Mus:      s.drawMus(count),
		Energies: uniformEnergies(count),
	}, nil
}

// drawNus samples x = h nu / kT: pick series term l with probability
// proportional to l^-4, then x = -ln(xi1 xi2 xi3 xi4) / l.
func (s *BlackBodySource) drawNus(temperature float64, count int) []float64 {
	scale := units.Boltzmann * temperature / units.Planck
	nus := make([]float64, count)
	for i := range nus {
		xi0 := s.rng.Float64()
		l := sort.SearchFloat64s(s.cdf, xi0) + 1
		if l > len(s.cdf) {
			l = len(s.cdf)
		}
		prod := (1 - s.rng.Float64()) * (1 - s.rng.Float64()) * (1 - s.rng.Float64()) * (1 - s.rng.Float64())
		nus[i] = -math.Log(prod) / float64(l) * scale
	}
	return nus
}

func (s *BlackBodySource) drawMus(count int) []float64 {
	mus := make([]float64, count)
	for i := range mus {
		mus[i] = math.Sqrt(s.rng.Float64())
	}
	return mus
}

func uniformEnergies(count int) []float64 {
	energies := make([]float64, count)
	for i := range energies {
		energies[i] = 1 / float64(count)
	}
	return energies
}
