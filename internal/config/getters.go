package config

import "github.com/banshee-data/ejecta.report/internal/units"

// GetTimeExplosionDays returns the epoch in days (default 13).
func (s SupernovaConfig) GetTimeExplosionDays() float64 {
	if s.TimeExplosionDays == nil {
		return 13
	}
	return *s.TimeExplosionDays
}

// HasLuminosityTarget reports whether a requested luminosity drives T_inner.
func (s SupernovaConfig) HasLuminosityTarget() bool {
	return s.LuminosityRequested != nil
}

// GetLuminosityRequested returns the requested luminosity in erg/s, or 0.
func (s SupernovaConfig) GetLuminosityRequested() float64 {
	if s.LuminosityRequested == nil {
		return 0
	}
	return *s.LuminosityRequested
}

// GetStart returns the inner velocity in the configured unit (default 11000 km/s).
func (v VelocityConfig) GetStart() float64 {
	if v.Start == nil {
		return 11000
	}
	return *v.Start
}

// GetStop returns the outer velocity in the configured unit (default 20000 km/s).
func (v VelocityConfig) GetStop() float64 {
	if v.Stop == nil {
		return 20000
	}
	return *v.Stop
}

// GetNum returns the number of shells (default 20).
func (v VelocityConfig) GetNum() int {
	if v.Num == nil {
		return 20
	}
	return *v.Num
}

// GetUnit returns the velocity unit (default km/s).
func (v VelocityConfig) GetUnit() string {
	if v.Unit == nil {
		return units.KMPS
	}
	return *v.Unit
}

// GetType returns the density profile type (default branch85_w7).
func (d DensityConfig) GetType() string {
	if d.Type == nil {
		return DensityBranch85W7
	}
	return *d.Type
}

// GetValue returns rho_0 in g/cm^3, or 0 if unset.
func (d DensityConfig) GetValue() float64 {
	if d.Value == nil {
		return 0
	}
	return *d.Value
}

// GetV0 returns the reference velocity, or 0 if unset.
func (d DensityConfig) GetV0() float64 {
	if d.V0 == nil {
		return 0
	}
	return *d.V0
}

// GetExponent returns the power-law exponent, or 0 if unset.
func (d DensityConfig) GetExponent() float64 {
	if d.Exponent == nil {
		return 0
	}
	return *d.Exponent
}

// GetTime0Days returns the reference epoch of the profile, or 0 if unset.
func (d DensityConfig) GetTime0Days() float64 {
	if d.Time0Days == nil {
		return 0
	}
	return *d.Time0Days
}

// GetAbundances returns the configured mass fractions, or a default
// intermediate-mass-element mixture when none are given.
func (m ModelConfig) GetAbundances() map[string]float64 {
	if len(m.Abundances) == 0 {
		return map[string]float64{"O": 0.19, "Si": 0.52, "Ca": 0.09, "He": 0.2}
	}
	return m.Abundances
}

// GetIonization returns the ionization treatment (default lte).
func (p PlasmaConfig) GetIonization() string {
	if p.Ionization == nil {
		return IonizationLTE
	}
	return *p.Ionization
}

// GetExcitation returns the excitation treatment (default dilute-lte).
func (p PlasmaConfig) GetExcitation() string {
	if p.Excitation == nil {
		return ExcitationDilute
	}
	return *p.Excitation
}

// GetLineInteractionType returns the line interaction mode (default scatter).
func (p PlasmaConfig) GetLineInteractionType() string {
	if p.LineInteractionType == nil {
		return LineScatter
	}
	return *p.LineInteractionType
}

// GetLinkTRadTElectron returns T_e/T_rad (default 0.9).
func (p PlasmaConfig) GetLinkTRadTElectron() float64 {
	if p.LinkTRadTElectron == nil {
		return 0.9
	}
	return *p.LinkTRadTElectron
}

// GetInitialTInner returns the starting inner boundary temperature in K
// (default 10000).
func (p PlasmaConfig) GetInitialTInner() float64 {
	if p.InitialTInner == nil {
		return 10000
	}
	return *p.InitialTInner
}

// HasInitialTInner reports whether the starting temperature was set explicitly.
func (p PlasmaConfig) HasInitialTInner() bool {
	return p.InitialTInner != nil
}

// GetNebularZeta returns the recombination fraction to the ground state used
// by nebular ionization (default 1).
func (p PlasmaConfig) GetNebularZeta() float64 {
	if p.NebularZeta == nil {
		return 1
	}
	return *p.NebularZeta
}

// GetDisableElectronScattering returns whether electron scattering is off.
func (p PlasmaConfig) GetDisableElectronScattering() bool {
	return p.DisableElectronScattering != nil && *p.DisableElectronScattering
}

// GetDisableLineScattering returns whether line interactions are off.
func (p PlasmaConfig) GetDisableLineScattering() bool {
	return p.DisableLineScattering != nil && *p.DisableLineScattering
}

// GetSeed returns the RNG seed (default 23111963).
func (m MonteCarloConfig) GetSeed() uint64 {
	if m.Seed == nil {
		return 23111963
	}
	return *m.Seed
}

// GetNoOfPackets returns packets per iteration (default 40000).
func (m MonteCarloConfig) GetNoOfPackets() int {
	if m.NoOfPackets == nil {
		return 40000
	}
	return *m.NoOfPackets
}

// GetIterations returns the iteration cap (default 20).
func (m MonteCarloConfig) GetIterations() int {
	if m.Iterations == nil {
		return 20
	}
	return *m.Iterations
}

// GetLastNoOfPackets returns the packet count of the final run, defaulting
// to the per-iteration count.
func (m MonteCarloConfig) GetLastNoOfPackets() int {
	if m.LastNoOfPackets == nil {
		return m.GetNoOfPackets()
	}
	return *m.LastNoOfPackets
}

// GetNoOfVirtualPackets returns virtual packets per spawn point (default 0).
func (m MonteCarloConfig) GetNoOfVirtualPackets() int {
	if m.NoOfVirtualPackets == nil {
		return 0
	}
	return *m.NoOfVirtualPackets
}

// GetEnableFullRelativity returns whether full special relativity is used.
func (m MonteCarloConfig) GetEnableFullRelativity() bool {
	return m.EnableFullRelativity != nil && *m.EnableFullRelativity
}

// GetWorkers returns the configured worker count; 0 means one per CPU.
func (m MonteCarloConfig) GetWorkers() int {
	if m.Workers == nil {
		return 0
	}
	return *m.Workers
}

// GetChunkSize returns packets per work unit (default 1000).
func (m MonteCarloConfig) GetChunkSize() int {
	if m.ChunkSize == nil {
		return 1000
	}
	return *m.ChunkSize
}

// GetType returns the packet source type (default blackbody).
func (p PacketSourceConfig) GetType() string {
	if p.Type == nil {
		return SourceBlackBody
	}
	return *p.Type
}

// GetTruncationFrequency returns the lower frequency bound in Hz (default 0).
func (p PacketSourceConfig) GetTruncationFrequency() float64 {
	if p.TruncationFrequency == nil {
		return 0
	}
	return *p.TruncationFrequency
}

// GetMaxFrequency returns the upper frequency bound in Hz, 0 meaning none.
func (p PacketSourceConfig) GetMaxFrequency() float64 {
	if p.MaxFrequency == nil {
		return 0
	}
	return *p.MaxFrequency
}

// GetSamplingSize returns the number of terms in the blackbody series
// (default 1000).
func (p PacketSourceConfig) GetSamplingSize() int {
	if p.SamplingSize == nil {
		return 1000
	}
	return *p.SamplingSize
}

// GetMaxBatches returns the resampling limit of the truncated source
// (default 100).
func (p PacketSourceConfig) GetMaxBatches() int {
	if p.MaxBatches == nil {
		return 100
	}
	return *p.MaxBatches
}

// GetDampingConstant returns the shell damping factor (default 0.5).
func (c ConvergenceConfig) GetDampingConstant() float64 {
	if c.DampingConstant == nil {
		return 0.5
	}
	return *c.DampingConstant
}

// GetThreshold returns the relative change below which a shell counts as
// converged (default 0.05).
func (c ConvergenceConfig) GetThreshold() float64 {
	if c.Threshold == nil {
		return 0.05
	}
	return *c.Threshold
}

// GetFraction returns the fraction of shells that must converge (default 0.8).
func (c ConvergenceConfig) GetFraction() float64 {
	if c.Fraction == nil {
		return 0.8
	}
	return *c.Fraction
}

// GetHoldIterations returns how many consecutive converged iterations are
// required (default 3).
func (c ConvergenceConfig) GetHoldIterations() int {
	if c.HoldIterations == nil {
		return 3
	}
	return *c.HoldIterations
}

// GetDampingConstant returns the T_inner damping factor (default 0.5).
func (t TInnerControl) GetDampingConstant() float64 {
	if t.DampingConstant == nil {
		return 0.5
	}
	return *t.DampingConstant
}

// GetThreshold returns the T_inner convergence threshold (default 0.05).
func (t TInnerControl) GetThreshold() float64 {
	if t.Threshold == nil {
		return 0.05
	}
	return *t.Threshold
}

// GetUpdateExponent returns the exponent applied to L_emitted/L_requested
// (default -0.5).
func (t TInnerControl) GetUpdateExponent() float64 {
	if t.UpdateExponent == nil {
		return -0.5
	}
	return *t.UpdateExponent
}

// GetTauRussian returns the optical depth beyond which virtual packets are
// subject to russian roulette (default 10).
func (v VirtualPacketConfig) GetTauRussian() float64 {
	if v.TauRussian == nil {
		return 10
	}
	return *v.TauRussian
}

// GetSurvivalProbability returns the roulette survival probability
// (default 0, i.e. terminate).
func (v VirtualPacketConfig) GetSurvivalProbability() float64 {
	if v.SurvivalProbability == nil {
		return 0
	}
	return *v.SurvivalProbability
}

// GetStart returns the blue edge of the spectrum in Angstrom.
func (s *SpectrumConfig) GetStart() float64 {
	if s == nil || s.Start == nil {
		return 0
	}
	return *s.Start
}

// GetStop returns the red edge of the spectrum in Angstrom.
func (s *SpectrumConfig) GetStop() float64 {
	if s == nil || s.Stop == nil {
		return 0
	}
	return *s.Stop
}

// GetNum returns the number of spectrum bins.
func (s *SpectrumConfig) GetNum() int {
	if s == nil || s.Num == nil {
		return 0
	}
	return *s.Num
}
