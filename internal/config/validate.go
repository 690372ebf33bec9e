package config

import (
	"math"
	"slices"

	"github.com/banshee-data/ejecta.report/internal/simerr"
	"github.com/banshee-data/ejecta.report/internal/units"
)

func invalid(format string, args ...interface{}) error {
	return simerr.New(simerr.KindConfiguration, "config.Validate", format, args...)
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Validate checks that the configuration values are within acceptable
// ranges. Every failure is a configuration error.
func (c *RunConfig) Validate() error {
	if c.GetVersion() == "" {
		return invalid("version is required")
	}
	if c.GetAtomData() == "" {
		return invalid("atom_data is required")
	}
	if c.Spectrum == nil {
		return invalid("spectrum is required")
	}
	if err := c.Spectrum.validate(); err != nil {
		return err
	}
	if err := c.Supernova.validate(); err != nil {
		return err
	}
	if err := c.Model.validate(); err != nil {
		return err
	}
	if err := c.Plasma.validate(); err != nil {
		return err
	}
	if err := c.MonteCarlo.validate(); err != nil {
		return err
	}
	if !c.Supernova.HasLuminosityTarget() && !c.Plasma.HasInitialTInner() {
		return invalid("one of supernova.luminosity_requested or plasma.initial_t_inner is required")
	}
	return nil
}

func (s *SpectrumConfig) validate() error {
	if s.Start == nil || s.Stop == nil || s.Num == nil {
		return invalid("spectrum start, stop and num are required")
	}
	if !finitePositive(s.GetStart()) || !finitePositive(s.GetStop()) {
		return invalid("spectrum bounds must be positive, got [%g, %g]", s.GetStart(), s.GetStop())
	}
	if s.GetStart() >= s.GetStop() {
		return invalid("spectrum start (%g) must be less than stop (%g)", s.GetStart(), s.GetStop())
	}
	if s.GetNum() < 1 {
		return invalid("spectrum num must be >= 1, got %d", s.GetNum())
	}
	return nil
}

func (s SupernovaConfig) validate() error {
	if !finitePositive(s.GetTimeExplosionDays()) {
		return invalid("time_explosion_days must be positive, got %g", s.GetTimeExplosionDays())
	}
	if s.HasLuminosityTarget() && !finitePositive(s.GetLuminosityRequested()) {
		return invalid("luminosity_requested must be positive, got %g", s.GetLuminosityRequested())
	}
	start, end := s.LuminosityBand()
	if start < 0 || start >= end {
		return invalid("luminosity wavelength band [%g, %g] is empty", start, end)
	}
	return nil
}

func (m ModelConfig) validate() error {
	v := m.Velocity
	if !units.IsValidVelocityUnit(v.GetUnit()) {
		return invalid("velocity unit must be one of %v, got %q", units.ValidVelocityUnits, v.GetUnit())
	}
	if !finitePositive(v.GetStart()) || v.GetStart() >= v.GetStop() {
		return invalid("velocity start (%g) must be positive and less than stop (%g)", v.GetStart(), v.GetStop())
	}
	if units.ToCMPS(v.GetStop(), v.GetUnit()) >= units.SpeedOfLight {
		return invalid("velocity stop %g %s is not below the speed of light", v.GetStop(), v.GetUnit())
	}
	if v.GetNum() < 1 {
		return invalid("velocity num must be >= 1, got %d", v.GetNum())
	}

	d := m.Density
	switch d.GetType() {
	case DensityBranch85W7:
	case DensityUniform:
		if !finitePositive(d.GetValue()) {
			return invalid("uniform density requires a positive value")
		}
	case DensityPowerLaw:
		if !finitePositive(d.GetValue()) || !finitePositive(d.GetV0()) || !finitePositive(d.GetTime0Days()) || d.Exponent == nil {
			return invalid("power_law density requires value, v_0, exponent and time_0_days")
		}
	case DensityExponential:
		if !finitePositive(d.GetValue()) || !finitePositive(d.GetV0()) || !finitePositive(d.GetTime0Days()) {
			return invalid("exponential density requires value, v_0 and time_0_days")
		}
	default:
		return invalid("unknown density type %q", d.GetType())
	}

	total := 0.0
	for symbol, x := range m.GetAbundances() {
		if x < 0 || math.IsNaN(x) {
			return invalid("abundance of %s must be non-negative, got %g", symbol, x)
		}
		total += x
	}
	if total <= 0 {
		return invalid("abundances must sum to a positive value")
	}
	return nil
}

func (p PlasmaConfig) validate() error {
	if !slices.Contains([]string{IonizationLTE, IonizationNebular}, p.GetIonization()) {
		return invalid("unknown ionization %q", p.GetIonization())
	}
	if !slices.Contains([]string{ExcitationLTE, ExcitationDilute}, p.GetExcitation()) {
		return invalid("unknown excitation %q", p.GetExcitation())
	}
	if !slices.Contains([]string{LineScatter, LineDownbranch}, p.GetLineInteractionType()) {
		return invalid("unknown line_interaction_type %q", p.GetLineInteractionType())
	}
	if !finitePositive(p.GetLinkTRadTElectron()) {
		return invalid("link_t_rad_t_electron must be positive, got %g", p.GetLinkTRadTElectron())
	}
	if !finitePositive(p.GetInitialTInner()) {
		return invalid("initial_t_inner must be positive, got %g", p.GetInitialTInner())
	}
	if z := p.GetNebularZeta(); z < 0 || z > 1 {
		return invalid("nebular_zeta must be in [0, 1], got %g", z)
	}
	return nil
}

func (m MonteCarloConfig) validate() error {
	if m.GetNoOfPackets() < 1 {
		return invalid("no_of_packets must be >= 1, got %d", m.GetNoOfPackets())
	}
	if m.GetLastNoOfPackets() < 1 {
		return invalid("last_no_of_packets must be >= 1, got %d", m.GetLastNoOfPackets())
	}
	if m.GetIterations() < 1 {
		return invalid("iterations must be >= 1, got %d", m.GetIterations())
	}
	if m.GetNoOfVirtualPackets() < 0 {
		return invalid("no_of_virtual_packets must be >= 0, got %d", m.GetNoOfVirtualPackets())
	}
	if m.GetWorkers() < 0 {
		return invalid("workers must be >= 0, got %d", m.GetWorkers())
	}
	if m.GetChunkSize() < 1 {
		return invalid("chunk_size must be >= 1, got %d", m.GetChunkSize())
	}

	ps := m.PacketSource
	switch ps.GetType() {
	case SourceBlackBody, SourceTruncatedBB:
	default:
		return invalid("unknown packet_source type %q", ps.GetType())
	}
	if ps.GetSamplingSize() < 1 {
		return invalid("sampling_size must be >= 1, got %d", ps.GetSamplingSize())
	}
	if ps.GetMaxBatches() < 1 {
		return invalid("max_batches must be >= 1, got %d", ps.GetMaxBatches())
	}
	if ps.GetTruncationFrequency() < 0 || ps.GetMaxFrequency() < 0 {
		return invalid("packet_source frequency bounds must be non-negative")
	}
	if ps.GetMaxFrequency() > 0 && ps.GetMaxFrequency() <= ps.GetTruncationFrequency() {
		return invalid("max_frequency (%g) must exceed truncation_frequency (%g)", ps.GetMaxFrequency(), ps.GetTruncationFrequency())
	}

	cv := m.Convergence
	if d := cv.GetDampingConstant(); d < 0 || d > 1 {
		return invalid("damping_constant must be in [0, 1], got %g", d)
	}
	if !finitePositive(cv.GetThreshold()) {
		return invalid("convergence threshold must be positive, got %g", cv.GetThreshold())
	}
	if f := cv.GetFraction(); f <= 0 || f > 1 {
		return invalid("convergence fraction must be in (0, 1], got %g", f)
	}
	if cv.GetHoldIterations() < 1 {
		return invalid("hold_iterations must be >= 1, got %d", cv.GetHoldIterations())
	}
	if d := cv.TInner.GetDampingConstant(); d < 0 || d > 1 {
		return invalid("t_inner damping_constant must be in [0, 1], got %g", d)
	}
	if !finitePositive(cv.TInner.GetThreshold()) {
		return invalid("t_inner threshold must be positive, got %g", cv.TInner.GetThreshold())
	}

	vp := m.VirtualPacket
	if !finitePositive(vp.GetTauRussian()) {
		return invalid("tau_russian must be positive, got %g", vp.GetTauRussian())
	}
	if s := vp.GetSurvivalProbability(); s < 0 || s >= 1 {
		return invalid("survival_probability must be in [0, 1), got %g", s)
	}
	return nil
}
