package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"

	"github.com/banshee-data/ejecta.report/internal/simerr"
	"github.com/banshee-data/ejecta.report/internal/units"
)

// ExampleConfigPath is the path to the example run configuration shipped with
// the repository.
const ExampleConfigPath = "config/run.example.json"

// Density profile types
const (
	DensityUniform     = "uniform"
	DensityPowerLaw    = "power_law"
	DensityExponential = "exponential"
	DensityBranch85W7  = "branch85_w7"
)

// Plasma treatment names
const (
	IonizationLTE     = "lte"
	IonizationNebular = "nebular"
	ExcitationLTE     = "lte"
	ExcitationDilute  = "dilute-lte"
	LineScatter       = "scatter"
	LineDownbranch    = "downbranch"
)

// Packet source types
const (
	SourceBlackBody   = "blackbody"
	SourceTruncatedBB = "truncated_blackbody"
)

const maxConfigFileBytes = 1 * 1024 * 1024 // 1MB

// RunConfig is the root configuration object consumed by the simulation core.
// Fields are pointers so a partial JSON document is safe: the Get* methods
// supply defaults for anything omitted. Only version, atom_data and spectrum
// are required.
type RunConfig struct {
	Version    *string          `json:"version,omitempty"`
	AtomData   *string          `json:"atom_data,omitempty"` // "builtin:sample" or a directory of atomic data CSV files
	Supernova  SupernovaConfig  `json:"supernova"`
	Model      ModelConfig      `json:"model"`
	Plasma     PlasmaConfig     `json:"plasma"`
	MonteCarlo MonteCarloConfig `json:"montecarlo"`
	Spectrum   *SpectrumConfig  `json:"spectrum,omitempty"`
}

// SupernovaConfig holds the epoch and the luminosity target.
type SupernovaConfig struct {
	LuminosityRequested       *float64 `json:"luminosity_requested,omitempty"` // erg/s; nil keeps T_inner fixed
	TimeExplosionDays         *float64 `json:"time_explosion_days,omitempty"`
	LuminosityWavelengthStart *float64 `json:"luminosity_wavelength_start,omitempty"` // Angstrom
	LuminosityWavelengthEnd   *float64 `json:"luminosity_wavelength_end,omitempty"`   // Angstrom
}

// ModelConfig describes the shell grid and its composition.
type ModelConfig struct {
	Velocity   VelocityConfig     `json:"velocity"`
	Density    DensityConfig      `json:"density"`
	Abundances map[string]float64 `json:"abundances,omitempty"` // symbol -> mass fraction, uniform over shells
}

// VelocityConfig defines Num equal-width shells between Start and Stop.
type VelocityConfig struct {
	Start *float64 `json:"start,omitempty"`
	Stop  *float64 `json:"stop,omitempty"`
	Num   *int     `json:"num,omitempty"`
	Unit  *string  `json:"unit,omitempty"` // "km/s" (default) or "cm/s"
}

// DensityConfig selects a density profile. Value is rho_0 in g/cm^3, V0 is in
// the velocity unit of the grid.
type DensityConfig struct {
	Type      *string  `json:"type,omitempty"`
	Value     *float64 `json:"value,omitempty"`
	V0        *float64 `json:"v_0,omitempty"`
	Exponent  *float64 `json:"exponent,omitempty"`
	Time0Days *float64 `json:"time_0_days,omitempty"`
}

// PlasmaConfig selects the microphysics used by the plasma solver and the
// transport engine.
type PlasmaConfig struct {
	Ionization                *string  `json:"ionization,omitempty"`
	Excitation                *string  `json:"excitation,omitempty"`
	LineInteractionType       *string  `json:"line_interaction_type,omitempty"`
	LinkTRadTElectron         *float64 `json:"link_t_rad_t_electron,omitempty"`
	InitialTInner             *float64 `json:"initial_t_inner,omitempty"` // K
	NebularZeta               *float64 `json:"nebular_zeta,omitempty"`
	DisableElectronScattering *bool    `json:"disable_electron_scattering,omitempty"`
	DisableLineScattering     *bool    `json:"disable_line_scattering,omitempty"`
}

// MonteCarloConfig holds packet counts, iteration limits and engine tuning.
type MonteCarloConfig struct {
	Seed                 *uint64             `json:"seed,omitempty"`
	NoOfPackets          *int                `json:"no_of_packets,omitempty"`
	Iterations           *int                `json:"iterations,omitempty"`
	LastNoOfPackets      *int                `json:"last_no_of_packets,omitempty"`
	NoOfVirtualPackets   *int                `json:"no_of_virtual_packets,omitempty"`
	EnableFullRelativity *bool               `json:"enable_full_relativity,omitempty"`
	Workers              *int                `json:"workers,omitempty"`    // 0 = runtime.NumCPU()
	ChunkSize            *int                `json:"chunk_size,omitempty"` // packets per work unit
	PacketSource         PacketSourceConfig  `json:"packet_source"`
	Convergence          ConvergenceConfig   `json:"convergence_strategy"`
	VirtualPacket        VirtualPacketConfig `json:"virtual_packet"`
}

// PacketSourceConfig selects the packet source variant.
type PacketSourceConfig struct {
	Type                *string  `json:"type,omitempty"`
	TruncationFrequency *float64 `json:"truncation_frequency,omitempty"` // Hz; frequencies below are rejected
	MaxFrequency        *float64 `json:"max_frequency,omitempty"`        // Hz; frequencies above are rejected
	SamplingSize        *int     `json:"sampling_size,omitempty"`        // terms in the blackbody series
	MaxBatches          *int     `json:"max_batches,omitempty"`
}

// ConvergenceConfig controls damping and the convergence criterion.
type ConvergenceConfig struct {
	DampingConstant *float64      `json:"damping_constant,omitempty"`
	Threshold       *float64      `json:"threshold,omitempty"`
	Fraction        *float64      `json:"fraction,omitempty"`
	HoldIterations  *int          `json:"hold_iterations,omitempty"`
	TInner          TInnerControl `json:"t_inner"`
}

// TInnerControl controls the inner boundary temperature update.
type TInnerControl struct {
	DampingConstant *float64 `json:"damping_constant,omitempty"`
	Threshold       *float64 `json:"threshold,omitempty"`
	UpdateExponent  *float64 `json:"update_exponent,omitempty"`
}

// VirtualPacketConfig tunes virtual packet tracing.
type VirtualPacketConfig struct {
	TauRussian          *float64 `json:"tau_russian,omitempty"`
	SurvivalProbability *float64 `json:"survival_probability,omitempty"`
}

// SpectrumConfig defines the output binning in Angstrom.
type SpectrumConfig struct {
	Start *float64 `json:"start,omitempty"`
	Stop  *float64 `json:"stop,omitempty"`
	Num   *int     `json:"num,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrUint64(v uint64) *uint64    { return &v }

// EmptyRunConfig returns a RunConfig with all optional fields nil.
func EmptyRunConfig() *RunConfig {
	return &RunConfig{}
}

// DefaultRunConfig returns a small, valid configuration for tests and quick
// runs: a sample-atom-data model with a short convergence schedule.
func DefaultRunConfig() *RunConfig {
	return &RunConfig{
		Version:  ptrString("1.0"),
		AtomData: ptrString("builtin:sample"),
		Supernova: SupernovaConfig{
			TimeExplosionDays: ptrFloat64(13),
		},
		Model: ModelConfig{
			Velocity: VelocityConfig{Start: ptrFloat64(11000), Stop: ptrFloat64(20000), Num: ptrInt(10), Unit: ptrString(units.KMPS)},
			Density:  DensityConfig{Type: ptrString(DensityBranch85W7)},
		},
		Plasma: PlasmaConfig{InitialTInner: ptrFloat64(10000)},
		MonteCarlo: MonteCarloConfig{
			Seed:        ptrUint64(23111963),
			NoOfPackets: ptrInt(2000),
			Iterations:  ptrInt(5),
		},
		Spectrum: &SpectrumConfig{Start: ptrFloat64(500), Stop: ptrFloat64(20000), Num: ptrInt(200)},
	}
}

// ParseRunConfig decodes and validates a JSON configuration document.
func ParseRunConfig(data []byte) (*RunConfig, error) {
	cfg := EmptyRunConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, simerr.Wrap(simerr.KindConfiguration, "config.Parse", fmt.Errorf("failed to parse config JSON: %w", err))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadRunConfig loads a RunConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
func LoadRunConfig(path string) (*RunConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, simerr.New(simerr.KindConfiguration, "config.Load", "config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, simerr.Wrap(simerr.KindConfiguration, "config.Load", fmt.Errorf("failed to stat config file: %w", err))
	}
	if fileInfo.Size() > maxConfigFileBytes {
		return nil, simerr.New(simerr.KindConfiguration, "config.Load", "config file too large: %d bytes (max %d)", fileInfo.Size(), maxConfigFileBytes)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, simerr.Wrap(simerr.KindConfiguration, "config.Load", fmt.Errorf("failed to read config file: %w", err))
	}
	return ParseRunConfig(data)
}

// MustLoadExampleConfig loads ExampleConfigPath, searching the current
// directory and common parent directories. Panics if the file cannot be
// loaded; intended for test setup.
func MustLoadExampleConfig() *RunConfig {
	candidates := []string{
		ExampleConfigPath,
		"../" + ExampleConfigPath,
		"../../" + ExampleConfigPath,    // from internal/config/
		"../../../" + ExampleConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadRunConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + ExampleConfigPath + " - run tests from repository root")
}

// ToJSON serialises the configuration for persistence alongside a run.
func (c *RunConfig) ToJSON() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	return string(data), nil
}

// GetVersion returns the format version string.
func (c *RunConfig) GetVersion() string {
	if c.Version == nil {
		return ""
	}
	return *c.Version
}

// GetAtomData returns the atomic data reference.
func (c *RunConfig) GetAtomData() string {
	if c.AtomData == nil {
		return ""
	}
	return *c.AtomData
}

// Workers resolves the worker count, mapping 0 to runtime.NumCPU().
func (c *RunConfig) Workers() int {
	if n := c.MonteCarlo.GetWorkers(); n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// LuminosityBand returns the wavelength band (Angstrom) in which the emitted
// luminosity is measured against the requested luminosity.
func (s SupernovaConfig) LuminosityBand() (start, end float64) {
	start, end = 0, math.Inf(1)
	if s.LuminosityWavelengthStart != nil {
		start = *s.LuminosityWavelengthStart
	}
	if s.LuminosityWavelengthEnd != nil {
		end = *s.LuminosityWavelengthEnd
	}
	return start, end
}
