// Package transport propagates packet ensembles through the shell grid. It
// is the Monte Carlo core: each packet is traced independently against a
// frozen plasma state while per-chunk accumulators collect the radiation
// field estimators and the escaping spectrum.
package transport

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/ejecta.report/internal/atomdata"
	"github.com/banshee-data/ejecta.report/internal/config"
	"github.com/banshee-data/ejecta.report/internal/model"
	"github.com/banshee-data/ejecta.report/internal/monitoring"
	"github.com/banshee-data/ejecta.report/internal/packet"
	"github.com/banshee-data/ejecta.report/internal/simerr"
	"github.com/banshee-data/ejecta.report/internal/spectrum"
	"github.com/banshee-data/ejecta.report/internal/units"
)

// Defaults for Config fields left at zero.
const (
	DefaultChunkSize = 1000
	DefaultMaxSteps  = 1_000_000
)

// Config tunes the engine.
type Config struct {
	FullRelativity            bool
	LineInteraction           LineInteraction
	DisableElectronScattering bool
	DisableLineScattering     bool

	VirtualPackets      int     // per spawn point
	TauRussian          float64 // roulette threshold for virtual packets
	SurvivalProbability float64

	Seed      uint64
	Workers   int // 0 = runtime.NumCPU()
	ChunkSize int // packets per work unit; fixes the reduction order
	MaxSteps  int // per packet, after which it is discarded as degenerate
}

// ConfigFromRun maps the run configuration onto an engine Config.
func ConfigFromRun(cfg *config.RunConfig) (Config, error) {
	li, err := ParseLineInteraction(cfg.Plasma.GetLineInteractionType())
	if err != nil {
		return Config{}, err
	}
	mc := cfg.MonteCarlo
	return Config{
		FullRelativity:            mc.GetEnableFullRelativity(),
		LineInteraction:           li,
		DisableElectronScattering: cfg.Plasma.GetDisableElectronScattering(),
		DisableLineScattering:     cfg.Plasma.GetDisableLineScattering(),
		VirtualPackets:            mc.GetNoOfVirtualPackets(),
		TauRussian:                mc.VirtualPacket.GetTauRussian(),
		SurvivalProbability:       mc.VirtualPacket.GetSurvivalProbability(),
		Seed:                      mc.GetSeed(),
		Workers:                   cfg.Workers(),
		ChunkSize:                 mc.GetChunkSize(),
	}, nil
}

// RunOptions vary between the runs of one simulation.
type RunOptions struct {
	// Iteration selects an independent random stream per run.
	Iteration int
	// Virtual enables virtual packet volleys.
	Virtual bool
}

// EnergyBalance tracks packet energy in lab-frame units where the emitted
// ensemble sums to about one. Emitted = Escaped + Reabsorbed + Lost + Adiabatic
// holds to rounding for every run; Adiabatic collects the work done on the
// flow by frame transformations at interactions.
type EnergyBalance struct {
	Emitted    float64 `json:"emitted"`
	Escaped    float64 `json:"escaped"`
	Reabsorbed float64 `json:"reabsorbed"`
	Lost       float64 `json:"lost"`
	Adiabatic  float64 `json:"adiabatic"`
}

// Residual returns Emitted minus the sum of the sinks.
func (b EnergyBalance) Residual() float64 {
	return b.Emitted - (b.Escaped + b.Reabsorbed + b.Lost + b.Adiabatic)
}

// Stats counts events of a run.
type Stats struct {
	Packets              int
	Escaped              int
	Reabsorbed           int
	Degenerate           int
	BoundaryCrossings    int64
	LineInteractions     int64
	ElectronScatterings  int64
	ClampedLineDistances int64
	VirtualPackets       int64
}

func (s *Stats) add(o Stats) {
	s.BoundaryCrossings += o.BoundaryCrossings
	s.LineInteractions += o.LineInteractions
	s.ElectronScatterings += o.ElectronScatterings
	s.ClampedLineDistances += o.ClampedLineDistances
	s.VirtualPackets += o.VirtualPackets
}

// Result is the output of one transport run.
type Result struct {
	Estimators *model.Estimators

	// Spectra are in erg/s per bin.
	Spectrum           *spectrum.Spectrum
	ReabsorbedSpectrum *spectrum.Spectrum
	VirtualSpectrum    *spectrum.Spectrum // nil unless virtual packets ran

	Energy EnergyBalance
	Stats  Stats

	// TimeOfSimulation is 1/L_inner: packet energy divided by it is erg/s.
	TimeOfSimulation float64
	LuminosityInner  float64

	// Per packet, lab frame at termination.
	FinalNus      []float64
	FinalEnergies []float64
	FinalStates   []PacketState
}

// EmittedLuminosity returns the luminosity (erg/s) of packets that escaped
// with lab frequency in [nuMin, nuMax].
func (r *Result) EmittedLuminosity(nuMin, nuMax float64) float64 {
	total := 0.0
	for i, s := range r.FinalStates {
		if s == StateEscaped && r.FinalNus[i] >= nuMin && r.FinalNus[i] <= nuMax {
			total += r.FinalEnergies[i]
		}
	}
	return total / r.TimeOfSimulation
}

// Engine runs packet ensembles through one grid.
type Engine struct {
	cfg   Config
	grid  *model.Grid
	table *atomdata.Table
}

// NewEngine validates cfg and binds the engine to a grid and atomic table.
func NewEngine(cfg Config, grid *model.Grid, table *atomdata.Table) (*Engine, error) {
	const op = "transport.NewEngine"
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.MaxSteps == 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	switch {
	case cfg.ChunkSize < 0:
		return nil, simerr.New(simerr.KindConfiguration, op, "chunk size must be positive, got %d", cfg.ChunkSize)
	case cfg.MaxSteps < 0:
		return nil, simerr.New(simerr.KindConfiguration, op, "max steps must be positive, got %d", cfg.MaxSteps)
	case cfg.VirtualPackets < 0:
		return nil, simerr.New(simerr.KindConfiguration, op, "virtual packets must be >= 0, got %d", cfg.VirtualPackets)
	case cfg.VirtualPackets > 0 && !(cfg.TauRussian > 0):
		return nil, simerr.New(simerr.KindConfiguration, op, "tau_russian must be positive, got %g", cfg.TauRussian)
	case cfg.SurvivalProbability < 0 || cfg.SurvivalProbability >= 1:
		return nil, simerr.New(simerr.KindConfiguration, op, "survival probability must be in [0, 1), got %g", cfg.SurvivalProbability)
	case grid == nil || table == nil:
		return nil, simerr.New(simerr.KindConfiguration, op, "grid and atomic table are required")
	}
	return &Engine{cfg: cfg, grid: grid, table: table}, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// chunkResult is the private accumulator of one chunk.
type chunkResult struct {
	estimators *model.Estimators
	virtual    *spectrum.Spectrum
	adiabatic  float64
	stats      Stats
}

// Run traces every packet against state, which must not change until Run
// returns. template fixes the spectrum binning. Chunks are reduced in index
// order, so results do not depend on Workers. A fatal error aborts the
// whole run; ctx is checked between chunks.
func (e *Engine) Run(ctx context.Context, state *model.State, packets packet.Packets, template *spectrum.Spectrum, opts RunOptions) (*Result, error) {
	n := packets.Len()
	if err := packets.Validate(n); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, simerr.New(simerr.KindSampling, "transport.Run", "empty packet ensemble")
	}
	rc, err := newRunContext(e.cfg, e.grid, e.table, state)
	if err != nil {
		return nil, err
	}

	rIn := e.grid.RInnerBoundary()
	lInner := 4 * math.Pi * rIn * rIn * units.StefanBoltzman * math.Pow(state.TInner, 4)
	virtual := opts.Virtual && e.cfg.VirtualPackets > 0

	res := &Result{
		Estimators:         model.NewEstimators(rc.nShells),
		Spectrum:           template.EmptyLike(),
		ReabsorbedSpectrum: template.EmptyLike(),
		TimeOfSimulation:   1 / lInner,
		LuminosityInner:    lInner,
		FinalNus:           make([]float64, n),
		FinalEnergies:      make([]float64, n),
		FinalStates:        make([]PacketState, n),
	}
	emitted := make([]float64, n)
	reabsorbed := make([]bool, n)

	chunkSize := e.cfg.ChunkSize
	nChunks := (n + chunkSize - 1) / chunkSize
	chunks := make([]chunkResult, nChunks)
	seedHi := splitmix64(e.cfg.Seed ^ splitmix64(uint64(opts.Iteration)+1))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for c := 0; c < nChunks; c++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			acc := chunkResult{estimators: model.NewEstimators(rc.nShells)}
			if virtual {
				acc.virtual = template.EmptyLike()
			}
			src := rand.NewPCG(0, 0)
			t := &tracer{rc: rc, rng: rand.New(src), acc: &acc, virtual: virtual, spawn: template}

			lo, hi := c*chunkSize, min((c+1)*chunkSize, n)
			for i := lo; i < hi; i++ {
				src.Seed(seedHi, splitmix64(uint64(i)))
				p := t.newPacket(i, packets.Nus[i], packets.Mus[i], packets.Energies[i])
				emitted[i] = p.energy
				t.propagate(&p)
				res.FinalNus[i] = p.nu
				res.FinalEnergies[i] = p.energy
				res.FinalStates[i] = p.state
				reabsorbed[i] = p.reabsorbed
			}
			chunks[c] = acc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("transport run cancelled: %w", err)
		}
		return nil, err
	}

	for c := range chunks {
		if err := res.Estimators.Merge(chunks[c].estimators); err != nil {
			return nil, err
		}
		res.Energy.Adiabatic += chunks[c].adiabatic
		res.Stats.add(chunks[c].stats)
		if virtual {
			if res.VirtualSpectrum == nil {
				res.VirtualSpectrum = template.EmptyLike()
			}
			if err := res.VirtualSpectrum.Merge(chunks[c].virtual); err != nil {
				return nil, err
			}
		}
	}

	res.Stats.Packets = n
	for i := 0; i < n; i++ {
		res.Energy.Emitted += emitted[i]
		switch {
		case res.FinalStates[i] == StateEscaped:
			res.Stats.Escaped++
			res.Energy.Escaped += res.FinalEnergies[i]
			res.Spectrum.Add(res.FinalNus[i], res.FinalEnergies[i])
		case reabsorbed[i]:
			res.Stats.Reabsorbed++
			res.Energy.Reabsorbed += res.FinalEnergies[i]
			res.ReabsorbedSpectrum.Add(res.FinalNus[i], res.FinalEnergies[i])
		default:
			res.Stats.Degenerate++
			res.Energy.Lost += res.FinalEnergies[i]
		}
	}

	res.Spectrum.Scale(lInner)
	res.ReabsorbedSpectrum.Scale(lInner)
	if res.VirtualSpectrum != nil {
		res.VirtualSpectrum.Scale(lInner)
	}

	if res.Stats.Degenerate > 0 || res.Stats.ClampedLineDistances > 0 {
		monitoring.Logf("[transport] iteration %d: %d degenerate packets discarded, %d line distances clamped",
			opts.Iteration, res.Stats.Degenerate, res.Stats.ClampedLineDistances)
	}
	return res, nil
}

// splitmix64 scrambles seeds so neighbouring packet indices get unrelated
// PCG states.
func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
