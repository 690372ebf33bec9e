package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/ejecta.report/internal/simerr"
)

func TestDefaultRunConfig(t *testing.T) {
	cfg := DefaultRunConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultRunConfig() should validate, got %v", err)
	}
	if cfg.GetVersion() != "1.0" {
		t.Errorf("GetVersion() = %q, want 1.0", cfg.GetVersion())
	}
	if cfg.GetAtomData() != "builtin:sample" {
		t.Errorf("GetAtomData() = %q, want builtin:sample", cfg.GetAtomData())
	}
	if cfg.MonteCarlo.GetNoOfPackets() != 2000 {
		t.Errorf("GetNoOfPackets() = %d, want 2000", cfg.MonteCarlo.GetNoOfPackets())
	}
	if cfg.MonteCarlo.GetLastNoOfPackets() != 2000 {
		t.Errorf("GetLastNoOfPackets() should fall back to no_of_packets, got %d", cfg.MonteCarlo.GetLastNoOfPackets())
	}
	if cfg.Model.Velocity.GetNum() != 10 {
		t.Errorf("velocity num = %d, want 10", cfg.Model.Velocity.GetNum())
	}
}

func TestGettersReturnDefaultsForEmptyConfig(t *testing.T) {
	cfg := EmptyRunConfig()

	assert.Equal(t, 13.0, cfg.Supernova.GetTimeExplosionDays())
	assert.False(t, cfg.Supernova.HasLuminosityTarget())
	assert.Equal(t, 11000.0, cfg.Model.Velocity.GetStart())
	assert.Equal(t, 20000.0, cfg.Model.Velocity.GetStop())
	assert.Equal(t, 20, cfg.Model.Velocity.GetNum())
	assert.Equal(t, "km/s", cfg.Model.Velocity.GetUnit())
	assert.Equal(t, DensityBranch85W7, cfg.Model.Density.GetType())
	assert.InDelta(t, 1.0, sum(cfg.Model.GetAbundances()), 1e-12)
	assert.Equal(t, IonizationLTE, cfg.Plasma.GetIonization())
	assert.Equal(t, ExcitationDilute, cfg.Plasma.GetExcitation())
	assert.Equal(t, LineScatter, cfg.Plasma.GetLineInteractionType())
	assert.Equal(t, 0.9, cfg.Plasma.GetLinkTRadTElectron())
	assert.Equal(t, 10000.0, cfg.Plasma.GetInitialTInner())
	assert.Equal(t, 1.0, cfg.Plasma.GetNebularZeta())
	assert.False(t, cfg.Plasma.GetDisableElectronScattering())
	assert.False(t, cfg.Plasma.GetDisableLineScattering())
	assert.Equal(t, uint64(23111963), cfg.MonteCarlo.GetSeed())
	assert.Equal(t, 40000, cfg.MonteCarlo.GetNoOfPackets())
	assert.Equal(t, 20, cfg.MonteCarlo.GetIterations())
	assert.Equal(t, 0, cfg.MonteCarlo.GetNoOfVirtualPackets())
	assert.False(t, cfg.MonteCarlo.GetEnableFullRelativity())
	assert.Equal(t, 1000, cfg.MonteCarlo.GetChunkSize())
	assert.Equal(t, SourceBlackBody, cfg.MonteCarlo.PacketSource.GetType())
	assert.Equal(t, 1000, cfg.MonteCarlo.PacketSource.GetSamplingSize())
	assert.Equal(t, 100, cfg.MonteCarlo.PacketSource.GetMaxBatches())
	assert.Equal(t, 0.5, cfg.MonteCarlo.Convergence.GetDampingConstant())
	assert.Equal(t, 0.05, cfg.MonteCarlo.Convergence.GetThreshold())
	assert.Equal(t, 0.8, cfg.MonteCarlo.Convergence.GetFraction())
	assert.Equal(t, 3, cfg.MonteCarlo.Convergence.GetHoldIterations())
	assert.Equal(t, -0.5, cfg.MonteCarlo.Convergence.TInner.GetUpdateExponent())
	assert.Equal(t, 10.0, cfg.MonteCarlo.VirtualPacket.GetTauRussian())
	assert.Equal(t, 0.0, cfg.MonteCarlo.VirtualPacket.GetSurvivalProbability())
	assert.Equal(t, 0, cfg.Spectrum.GetNum(), "nil spectrum section reads as zero")

	start, end := cfg.Supernova.LuminosityBand()
	assert.Equal(t, 0.0, start)
	assert.True(t, math.IsInf(end, 1))
}

func sum(m map[string]float64) float64 {
	total := 0.0
	for _, v := range m {
		total += v
	}
	return total
}

func TestWorkersResolvesZeroToNumCPU(t *testing.T) {
	cfg := DefaultRunConfig()
	assert.Equal(t, runtime.NumCPU(), cfg.Workers())

	cfg.MonteCarlo.Workers = ptrInt(3)
	assert.Equal(t, 3, cfg.Workers())
}

func TestLoadRunConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "run.json")

	testJSON := `{
  "version": "1.0",
  "atom_data": "builtin:sample",
  "supernova": {"luminosity_requested": 1e43, "time_explosion_days": 10},
  "model": {
    "velocity": {"start": 9000, "stop": 15000, "num": 5},
    "density": {"type": "uniform", "value": 1e-13},
    "abundances": {"Si": 1.0}
  },
  "montecarlo": {
    "no_of_packets": 500,
    "iterations": 3,
    "enable_full_relativity": true,
    "packet_source": {"type": "truncated_blackbody", "truncation_frequency": 1e14}
  },
  "spectrum": {"start": 1000, "stop": 10000, "num": 90}
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadRunConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	assert.Equal(t, 1e43, cfg.Supernova.GetLuminosityRequested())
	assert.Equal(t, 10.0, cfg.Supernova.GetTimeExplosionDays())
	assert.Equal(t, 5, cfg.Model.Velocity.GetNum())
	assert.Equal(t, DensityUniform, cfg.Model.Density.GetType())
	assert.Equal(t, map[string]float64{"Si": 1.0}, cfg.Model.GetAbundances())
	assert.Equal(t, 500, cfg.MonteCarlo.GetNoOfPackets())
	assert.True(t, cfg.MonteCarlo.GetEnableFullRelativity())
	assert.Equal(t, SourceTruncatedBB, cfg.MonteCarlo.PacketSource.GetType())
	assert.Equal(t, 1e14, cfg.MonteCarlo.PacketSource.GetTruncationFrequency())
	assert.Equal(t, 90, cfg.Spectrum.GetNum())
}

func TestLoadRunConfigMissing(t *testing.T) {
	_, err := LoadRunConfig("/nonexistent/path/to/config.json")
	if err == nil {
		t.Fatal("Expected error when loading missing file, got nil")
	}
	if !errors.Is(err, simerr.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestLoadRunConfigRejectsExtension(t *testing.T) {
	_, err := LoadRunConfig("run.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".json extension")
}

func TestLoadRunConfigRejectsLargeFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "big.json")
	big := strings.Repeat(" ", maxConfigFileBytes+1)
	require.NoError(t, os.WriteFile(configPath, []byte(big), 0644))

	_, err := LoadRunConfig(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestLoadRunConfigInvalid(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "invalid.json")
	invalidJSON := `{
  "version": 1.0
`
	if err := os.WriteFile(configPath, []byte(invalidJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := LoadRunConfig(configPath)
	if err == nil {
		t.Error("Expected error when loading invalid JSON, got nil")
	}
	assert.Equal(t, simerr.KindConfiguration, simerr.KindOf(err))
}

func TestLoadExampleConfigFile(t *testing.T) {
	cfg, err := LoadRunConfig("../../" + ExampleConfigPath)
	if err != nil {
		t.Fatalf("Failed to load example config: %v", err)
	}
	assert.Equal(t, IonizationNebular, cfg.Plasma.GetIonization())
	assert.Equal(t, LineDownbranch, cfg.Plasma.GetLineInteractionType())
	assert.Equal(t, 3, cfg.MonteCarlo.GetNoOfVirtualPackets())
	assert.Equal(t, 100000, cfg.MonteCarlo.GetLastNoOfPackets())

	start, end := cfg.Supernova.LuminosityBand()
	assert.Equal(t, 3500.0, start)
	assert.Equal(t, 9000.0, end)
}

func TestMustLoadExampleConfig(t *testing.T) {
	cfg := MustLoadExampleConfig()
	require.NotNil(t, cfg)
	assert.Equal(t, "1.0", cfg.GetVersion())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *RunConfig)
		wantErr string
	}{
		{name: "valid config", mutate: func(c *RunConfig) {}},
		{name: "missing version", mutate: func(c *RunConfig) { c.Version = nil }, wantErr: "version is required"},
		{name: "missing atom data", mutate: func(c *RunConfig) { c.AtomData = ptrString("") }, wantErr: "atom_data is required"},
		{name: "missing spectrum", mutate: func(c *RunConfig) { c.Spectrum = nil }, wantErr: "spectrum is required"},
		{name: "spectrum without num", mutate: func(c *RunConfig) { c.Spectrum.Num = nil }, wantErr: "start, stop and num"},
		{name: "inverted spectrum", mutate: func(c *RunConfig) { c.Spectrum.Start = ptrFloat64(30000) }, wantErr: "less than stop"},
		{name: "negative epoch", mutate: func(c *RunConfig) { c.Supernova.TimeExplosionDays = ptrFloat64(-1) }, wantErr: "time_explosion_days"},
		{name: "zero luminosity", mutate: func(c *RunConfig) { c.Supernova.LuminosityRequested = ptrFloat64(0) }, wantErr: "luminosity_requested"},
		{name: "empty luminosity band", mutate: func(c *RunConfig) {
			c.Supernova.LuminosityWavelengthStart = ptrFloat64(5000)
			c.Supernova.LuminosityWavelengthEnd = ptrFloat64(4000)
		}, wantErr: "band"},
		{name: "unknown velocity unit", mutate: func(c *RunConfig) { c.Model.Velocity.Unit = ptrString("mph") }, wantErr: "velocity unit"},
		{name: "inverted velocity", mutate: func(c *RunConfig) { c.Model.Velocity.Start = ptrFloat64(30000) }, wantErr: "velocity start"},
		{name: "superluminal grid", mutate: func(c *RunConfig) { c.Model.Velocity.Stop = ptrFloat64(400000) }, wantErr: "speed of light"},
		{name: "zero shells", mutate: func(c *RunConfig) { c.Model.Velocity.Num = ptrInt(0) }, wantErr: "velocity num"},
		{name: "uniform without value", mutate: func(c *RunConfig) { c.Model.Density.Type = ptrString(DensityUniform) }, wantErr: "uniform density"},
		{name: "power law without exponent", mutate: func(c *RunConfig) {
			c.Model.Density = DensityConfig{Type: ptrString(DensityPowerLaw), Value: ptrFloat64(1e-13), V0: ptrFloat64(10000), Time0Days: ptrFloat64(1)}
		}, wantErr: "power_law"},
		{name: "exponential without v0", mutate: func(c *RunConfig) {
			c.Model.Density = DensityConfig{Type: ptrString(DensityExponential), Value: ptrFloat64(1e-13), Time0Days: ptrFloat64(1)}
		}, wantErr: "exponential"},
		{name: "unknown density", mutate: func(c *RunConfig) { c.Model.Density.Type = ptrString("w7-ish") }, wantErr: "unknown density"},
		{name: "negative abundance", mutate: func(c *RunConfig) { c.Model.Abundances = map[string]float64{"Si": -0.1, "O": 1} }, wantErr: "non-negative"},
		{name: "zero abundances", mutate: func(c *RunConfig) { c.Model.Abundances = map[string]float64{"Si": 0} }, wantErr: "sum to a positive"},
		{name: "unknown ionization", mutate: func(c *RunConfig) { c.Plasma.Ionization = ptrString("nlte") }, wantErr: "ionization"},
		{name: "unknown excitation", mutate: func(c *RunConfig) { c.Plasma.Excitation = ptrString("nlte") }, wantErr: "excitation"},
		{name: "unknown line interaction", mutate: func(c *RunConfig) { c.Plasma.LineInteractionType = ptrString("macroatom") }, wantErr: "line_interaction_type"},
		{name: "zeta out of range", mutate: func(c *RunConfig) { c.Plasma.NebularZeta = ptrFloat64(1.5) }, wantErr: "nebular_zeta"},
		{name: "no temperature source", mutate: func(c *RunConfig) { c.Plasma.InitialTInner = nil }, wantErr: "initial_t_inner is required"},
		{name: "zero packets", mutate: func(c *RunConfig) { c.MonteCarlo.NoOfPackets = ptrInt(0) }, wantErr: "no_of_packets"},
		{name: "zero iterations", mutate: func(c *RunConfig) { c.MonteCarlo.Iterations = ptrInt(0) }, wantErr: "iterations"},
		{name: "negative workers", mutate: func(c *RunConfig) { c.MonteCarlo.Workers = ptrInt(-2) }, wantErr: "workers"},
		{name: "zero chunk size", mutate: func(c *RunConfig) { c.MonteCarlo.ChunkSize = ptrInt(0) }, wantErr: "chunk_size"},
		{name: "unknown source", mutate: func(c *RunConfig) { c.MonteCarlo.PacketSource.Type = ptrString("powerlaw") }, wantErr: "packet_source"},
		{name: "inverted frequency window", mutate: func(c *RunConfig) {
			c.MonteCarlo.PacketSource.TruncationFrequency = ptrFloat64(2e15)
			c.MonteCarlo.PacketSource.MaxFrequency = ptrFloat64(1e15)
		}, wantErr: "max_frequency"},
		{name: "damping out of range", mutate: func(c *RunConfig) { c.MonteCarlo.Convergence.DampingConstant = ptrFloat64(1.2) }, wantErr: "damping_constant"},
		{name: "zero fraction", mutate: func(c *RunConfig) { c.MonteCarlo.Convergence.Fraction = ptrFloat64(0) }, wantErr: "fraction"},
		{name: "zero hold", mutate: func(c *RunConfig) { c.MonteCarlo.Convergence.HoldIterations = ptrInt(0) }, wantErr: "hold_iterations"},
		{name: "certain survival", mutate: func(c *RunConfig) { c.MonteCarlo.VirtualPacket.SurvivalProbability = ptrFloat64(1) }, wantErr: "survival_probability"},
		{name: "disabled scattering is valid", mutate: func(c *RunConfig) {
			c.Plasma.DisableElectronScattering = ptrBool(true)
			c.Plasma.DisableLineScattering = ptrBool(true)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultRunConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want substring %q", err, tt.wantErr)
			}
			if !errors.Is(err, simerr.ErrConfiguration) {
				t.Errorf("Validate() error should be a configuration error, got %v", err)
			}
		})
	}
}

func TestToJSONRoundTrip(t *testing.T) {
	cfg := DefaultRunConfig()
	data, err := cfg.ToJSON()
	require.NoError(t, err)

	parsed, err := ParseRunConfig([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, cfg, parsed)
}
