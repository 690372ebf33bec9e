package packet

import (
	"math"

	"github.com/banshee-data/ejecta.report/internal/monitoring"
	"github.com/banshee-data/ejecta.report/internal/simerr"
)

// DefaultMaxBatches bounds the resampling of a truncated source.
const DefaultMaxBatches = 100

// minAcceptance is the smallest Planck fraction a truncated window may hold
// before it is treated as empty.
const minAcceptance = 1e-9

// TruncatedBlackBodySource is a BlackBodySource that rejects frequencies
// outside [MinFrequency, MaxFrequency] and resamples the shortfall in
// batches. MaxFrequency <= 0 means no upper bound.
type TruncatedBlackBodySource struct {
	BlackBodySource
	MinFrequency float64
	MaxFrequency float64
	MaxBatches   int
}

// NewTruncatedBlackBodySource returns a deterministic truncated source.
func NewTruncatedBlackBodySource(seed uint64, minFrequency, maxFrequency float64) *TruncatedBlackBodySource {
	return &TruncatedBlackBodySource{
		BlackBodySource: *NewBlackBodySource(seed),
		MinFrequency:    minFrequency,
		MaxFrequency:    maxFrequency,
		MaxBatches:      DefaultMaxBatches,
	}
}

func (s *TruncatedBlackBodySource) upper() float64 {
	if s.MaxFrequency <= 0 {
		return math.Inf(1)
	}
	return s.MaxFrequency
}

// CreatePackets returns exactly count packets whose frequencies lie inside
// the window. An empty or vanishing window fails before any sampling; a
// window that does not fill within MaxBatches fails with a sampling error.
func (s *TruncatedBlackBodySource) CreatePackets(temperature float64, count int) (Packets, error) {
	const op = "packet.TruncatedBlackBodySource"
	if err := checkRequest(op, temperature, count); err != nil {
		return Packets{}, err
	}
	lo, hi := s.MinFrequency, s.upper()
	if lo < 0 || hi <= lo {
		return Packets{}, simerr.New(simerr.KindSampling, op, "empty frequency window [%g, %g]", lo, hi)
	}
	acceptance := PlanckFraction(temperature, lo, hi)
	if acceptance < minAcceptance {
		return Packets{}, simerr.New(simerr.KindSampling, op,
			"frequency window [%g, %g] holds a %.3g fraction of a %.0f K blackbody", lo, hi, acceptance, temperature)
	}

	maxBatches := s.MaxBatches
	if maxBatches < 1 {
		maxBatches = DefaultMaxBatches
	}
	s.init()

	nus := make([]float64, 0, count)
	for batch := 0; batch < maxBatches && len(nus) < count; batch++ {
		short := count - len(nus)
		size := int(math.Ceil(float64(short)/acceptance*1.1)) + 16
		if limit := 64 * count; size > limit {
			size = limit
		}
		for _, nu := range s.drawNus(temperature, size) {
			if nu < lo || nu > hi {
				continue
			}
			nus = append(nus, nu)
			if len(nus) == count {
				break
			}
		}
		if batch > 0 {
			monitoring.Debugf("[packet] truncated source batch %d: %d/%d accepted", batch+1, len(nus), count)
		}
	}
	if len(nus) < count {
		return Packets{}, simerr.New(simerr.KindSampling, op,
			"only %d of %d packets accepted after %d batches", len(nus), count, maxBatches)
	}
	return Packets{
		Nus:      nus,
		Mus:      s.drawMus(count),
		Energies: uniformEnergies(count),
	}, nil
}
