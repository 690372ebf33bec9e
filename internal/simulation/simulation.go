// Package simulation runs the convergence loop: repeated packet transport and
// plasma updates until the shell state settles, followed by one final
// high-statistics transport run that produces the reported spectrum.
package simulation

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/ejecta.report/internal/atomdata"
	"github.com/banshee-data/ejecta.report/internal/config"
	"github.com/banshee-data/ejecta.report/internal/model"
	"github.com/banshee-data/ejecta.report/internal/monitoring"
	"github.com/banshee-data/ejecta.report/internal/packet"
	"github.com/banshee-data/ejecta.report/internal/plasma"
	"github.com/banshee-data/ejecta.report/internal/simerr"
	"github.com/banshee-data/ejecta.report/internal/spectrum"
	"github.com/banshee-data/ejecta.report/internal/timeutil"
	"github.com/banshee-data/ejecta.report/internal/transport"
	"github.com/banshee-data/ejecta.report/internal/units"
)

// Phase is the state of the convergence loop.
type Phase string

const (
	PhaseInitializing Phase = "initializing"
	PhaseIterating    Phase = "iterating"
	PhaseConverged    Phase = "converged"
	PhaseFinalRun     Phase = "final_run"
	PhaseDone         Phase = "done"
)

// Settings are the loop parameters taken from the run configuration.
type Settings struct {
	Iterations      int // cap on ITERATING steps
	Packets         int
	LastPackets     int
	Threshold       float64 // relative change below which a shell has converged
	Fraction        float64 // fraction of converged shells needed
	HoldIterations  int     // consecutive converged iterations needed
	TInnerThreshold float64

	InitialTInner       float64 // K
	LuminosityRequested float64 // erg/s, 0 if T_inner is fixed
	BandMin             float64 // Hz
	BandMax             float64 // Hz
}

// PhaseChange records when the loop entered a phase.
type PhaseChange struct {
	Phase Phase     `json:"phase"`
	At    time.Time `json:"at"`
}

// Result is the outcome of a run.
type Result struct {
	Converged  bool // hold criterion met within the iteration cap
	Degraded   bool // not converged, or shells left unconverged by the solver
	Iterations int

	State           *model.State
	Final           *transport.Result
	Spectrum        *spectrum.Spectrum
	VirtualSpectrum *spectrum.Spectrum

	Diagnostics []IterationDiagnostics
	Warnings    []ConvergenceWarning
	Phases      []PhaseChange
	Elapsed     time.Duration
}

// Phase returns the phase the run ended in.
func (r *Result) Phase() Phase {
	if len(r.Phases) == 0 {
		return ""
	}
	return r.Phases[len(r.Phases)-1].Phase
}

// Simulation owns the components of one run.
type Simulation struct {
	settings Settings
	grid     *model.Grid
	table    *atomdata.Table
	engine   *transport.Engine
	solver   *plasma.Solver
	source   packet.Source
	template *spectrum.Spectrum

	clock     timeutil.Clock
	observers []IterationObserver
}

// Option customises a Simulation.
type Option func(*Simulation)

// WithClock sets the clock used for phase timestamps and durations.
func WithClock(c timeutil.Clock) Option {
	return func(s *Simulation) { s.clock = c }
}

// WithObserver registers an observer for every iteration record.
func WithObserver(o IterationObserver) Option {
	return func(s *Simulation) { s.observers = append(s.observers, o) }
}

// WithSource replaces the configured packet source.
func WithSource(src packet.Source) Option {
	return func(s *Simulation) { s.source = src }
}

// New validates cfg and assembles the grid, engine, solver, packet source
// and spectrum binning. Configuration and atomic data problems are reported
// here, before any transport work.
func New(cfg *config.RunConfig, table *atomdata.Table, opts ...Option) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if table == nil {
		return nil, simerr.New(simerr.KindAtomicData, "simulation.New", "no atomic data table")
	}
	if !cfg.Plasma.GetDisableLineScattering() && table.NumLines() == 0 {
		return nil, simerr.New(simerr.KindAtomicData, "simulation.New", "line scattering is enabled but the atomic data has no lines")
	}

	grid, err := model.FromConfig(cfg, table)
	if err != nil {
		return nil, err
	}
	ec, err := transport.ConfigFromRun(cfg)
	if err != nil {
		return nil, err
	}
	engine, err := transport.NewEngine(ec, grid, table)
	if err != nil {
		return nil, err
	}
	solver, err := plasma.NewSolver(plasma.ConfigFromRun(cfg), grid, table)
	if err != nil {
		return nil, err
	}
	template, err := spectrum.FromConfig(cfg.Spectrum)
	if err != nil {
		return nil, err
	}

	s := &Simulation{
		settings: SettingsFromRun(cfg, grid),
		grid:     grid,
		table:    table,
		engine:   engine,
		solver:   solver,
		template: template,
		clock:    timeutil.RealClock{},
	}
	for _, o := range opts {
		o(s)
	}
	if s.source == nil {
		if s.source, err = packet.FromConfig(cfg.MonteCarlo); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// SettingsFromRun derives the loop settings. Without an explicit
// initial_t_inner and with a requested luminosity, the starting temperature
// is the blackbody temperature of the photosphere at that luminosity.
func SettingsFromRun(cfg *config.RunConfig, grid *model.Grid) Settings {
	mc := cfg.MonteCarlo
	conv := mc.Convergence
	start, end := cfg.Supernova.LuminosityBand()
	st := Settings{
		Iterations:          mc.GetIterations(),
		Packets:             mc.GetNoOfPackets(),
		LastPackets:         mc.GetLastNoOfPackets(),
		Threshold:           conv.GetThreshold(),
		Fraction:            conv.GetFraction(),
		HoldIterations:      conv.GetHoldIterations(),
		TInnerThreshold:     conv.TInner.GetThreshold(),
		InitialTInner:       cfg.Plasma.GetInitialTInner(),
		LuminosityRequested: cfg.Supernova.GetLuminosityRequested(),
		BandMin:             units.AngstromToHz(end),
		BandMax:             units.AngstromToHz(start),
	}
	if !cfg.Plasma.HasInitialTInner() && cfg.Supernova.HasLuminosityTarget() {
		r := grid.RInnerBoundary()
		st.InitialTInner = math.Pow(st.LuminosityRequested/(4*math.Pi*r*r*units.StefanBoltzman), 0.25)
	}
	return st
}

// Settings returns the loop settings.
func (s *Simulation) Settings() Settings { return s.settings }

// Grid returns the shell grid of the run.
func (s *Simulation) Grid() *model.Grid { return s.grid }

// Run executes INITIALIZING, ITERATING (at most Settings.Iterations times),
// CONVERGED when the hold criterion is met, FINAL_RUN and DONE. Fatal errors
// abort the run; convergence problems are returned as warnings on a degraded
// result.
func (s *Simulation) Run(ctx context.Context) (*Result, error) {
	sw := timeutil.StartStopwatch(s.clock)
	res := &Result{}

	s.enter(res, PhaseInitializing)
	state, _, err := s.solver.Initialize(ctx, s.settings.InitialTInner)
	if err != nil {
		return nil, fmt.Errorf("initialising plasma: %w", err)
	}
	monitoring.Logf("[simulation] %d shells, %d lines, T_inner %.1f K, %d iterations of %d packets",
		s.grid.NumShells(), s.table.NumLines(), state.TInner, s.settings.Iterations, s.settings.Packets)

	s.enter(res, PhaseIterating)
	hold := 0
	for it := 0; it < s.settings.Iterations; it++ {
		next, d, err := s.iterate(ctx, it, state)
		if err != nil {
			return nil, err
		}
		res.Diagnostics = append(res.Diagnostics, d)
		res.Warnings = append(res.Warnings, d.Warnings...)
		res.Iterations = it + 1
		s.notify(ctx, d)
		state = next

		if d.Converged {
			hold++
		} else {
			hold = 0
		}
		if hold >= s.settings.HoldIterations {
			res.Converged = true
			break
		}
	}

	if res.Converged {
		s.enter(res, PhaseConverged)
		monitoring.Logf("[simulation] converged after %d iterations", res.Iterations)
	} else {
		w := ConvergenceWarning{
			Iteration: res.Iterations - 1,
			Shell:     -1,
			Message:   fmt.Sprintf("plasma state did not converge within %d iterations", s.settings.Iterations),
		}
		res.Warnings = append(res.Warnings, w)
		monitoring.Logf("[simulation] warning: %v", w)
	}

	s.enter(res, PhaseFinalRun)
	final, err := s.finalRun(ctx, res.Iterations, state)
	if err != nil {
		return nil, err
	}
	res.State = state
	res.Final = final
	res.Spectrum = final.Spectrum
	res.VirtualSpectrum = final.VirtualSpectrum
	res.Degraded = !res.Converged
	for _, ok := range state.SolverConverged {
		if !ok {
			res.Degraded = true
		}
	}

	s.enter(res, PhaseDone)
	res.Elapsed = sw.Elapsed()
	monitoring.Logf("[simulation] done in %v: L_emitted %.4e erg/s, %d/%d packets escaped",
		res.Elapsed, final.EmittedLuminosity(s.settings.BandMin, s.settings.BandMax), final.Stats.Escaped, final.Stats.Packets)
	return res, nil
}

// iterate runs one transport and plasma update against state.
func (s *Simulation) iterate(ctx context.Context, it int, state *model.State) (*model.State, IterationDiagnostics, error) {
	sw := timeutil.StartStopwatch(s.clock)
	packets, err := s.source.CreatePackets(state.TInner, s.settings.Packets)
	if err != nil {
		return nil, IterationDiagnostics{}, fmt.Errorf("iteration %d: %w", it, err)
	}
	tr, err := s.engine.Run(ctx, state, packets, s.template, transport.RunOptions{Iteration: it})
	if err != nil {
		return nil, IterationDiagnostics{}, fmt.Errorf("iteration %d: %w", it, err)
	}
	lEmitted := tr.EmittedLuminosity(s.settings.BandMin, s.settings.BandMax)
	next, reports, err := s.solver.Update(ctx, state, tr.Estimators, plasma.Measurement{
		TimeOfSimulation:  tr.TimeOfSimulation,
		EmittedLuminosity: lEmitted,
	})
	if err != nil {
		return nil, IterationDiagnostics{}, fmt.Errorf("iteration %d: %w", it, err)
	}

	d := s.diagnose(it, state, next, reports, tr, lEmitted)
	d.Duration = sw.Elapsed()
	monitoring.Logf("[simulation] iteration %d/%d: T_inner %.1f K -> %.1f K, L_emitted %.4e erg/s, %.0f%% shells converged, max dT_rad %.3f",
		it+1, s.settings.Iterations, d.TInner, d.NextTInner, lEmitted, 100*d.FractionConverged, d.MaxDeltaTRad)
	if monitoring.Verbose() {
		for _, sd := range d.Shells {
			monitoring.Debugf("[simulation]   shell %2d: T_rad %8.1f K  W %.4f  n_e %.3e  dT %.4f  dW %.4f",
				sd.Shell, sd.TRad, sd.W, sd.ElectronDensity, sd.DeltaTRad, sd.DeltaW)
		}
	}
	return next, d, nil
}

// finalRun transports the high-statistics ensemble with virtual packets.
func (s *Simulation) finalRun(ctx context.Context, it int, state *model.State) (*transport.Result, error) {
	packets, err := s.source.CreatePackets(state.TInner, s.settings.LastPackets)
	if err != nil {
		return nil, fmt.Errorf("final run: %w", err)
	}
	final, err := s.engine.Run(ctx, state, packets, s.template, transport.RunOptions{Iteration: it, Virtual: true})
	if err != nil {
		return nil, fmt.Errorf("final run: %w", err)
	}
	return final, nil
}

func (s *Simulation) enter(res *Result, p Phase) {
	res.Phases = append(res.Phases, PhaseChange{Phase: p, At: s.clock.Now()})
	monitoring.Debugf("[simulation] phase %s", p)
}
