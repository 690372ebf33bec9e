package packet

import (
	"github.com/banshee-data/ejecta.report/internal/config"
	"github.com/banshee-data/ejecta.report/internal/simerr"
)

// FromConfig builds the source selected by the montecarlo section.
func FromConfig(mc config.MonteCarloConfig) (Source, error) {
	ps := mc.PacketSource
	switch ps.GetType() {
	case config.SourceBlackBody:
		src := NewBlackBodySource(mc.GetSeed())
		src.SamplingSize = ps.GetSamplingSize()
		return src, nil
	case config.SourceTruncatedBB:
		src := NewTruncatedBlackBodySource(mc.GetSeed(), ps.GetTruncationFrequency(), ps.GetMaxFrequency())
		src.SamplingSize = ps.GetSamplingSize()
		src.MaxBatches = ps.GetMaxBatches()
		return src, nil
	default:
		return nil, simerr.New(simerr.KindConfiguration, "packet.FromConfig", "unknown packet source %q", ps.GetType())
	}
}
