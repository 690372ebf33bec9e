// Package plasma recomputes the plasma state of every shell from the
// radiation field measured by a transport run: radiative temperature and
// dilution factor, Saha-Boltzmann ionization and excitation balance, and the
// Sobolev optical depth of every line.
package plasma

import (
	"context"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/ejecta.report/internal/atomdata"
	"github.com/banshee-data/ejecta.report/internal/config"
	"github.com/banshee-data/ejecta.report/internal/model"
	"github.com/banshee-data/ejecta.report/internal/monitoring"
	"github.com/banshee-data/ejecta.report/internal/simerr"
)

// IonizationMode selects the ionization balance.
type IonizationMode string

const (
	IonizationLTE     IonizationMode = config.IonizationLTE     // Saha equation at T_rad
	IonizationNebular IonizationMode = config.IonizationNebular // Saha with dilute radiation correction
)

// ExcitationMode selects the level populations within an ion.
type ExcitationMode string

const (
	ExcitationLTE    ExcitationMode = config.ExcitationLTE    // Boltzmann at T_rad
	ExcitationDilute ExcitationMode = config.ExcitationDilute // non-metastable levels scaled by W
)

// Bisection defaults for the electron density.
const (
	DefaultMaxIterations = 200
	DefaultTolerance     = 1e-10 // bracket width in log n_e
)

// Config holds the plasma solver parameters.
type Config struct {
	Ionization        IonizationMode
	Excitation        ExcitationMode
	LinkTRadTElectron float64 // T_e / T_rad
	NebularZeta       float64 // fraction of recombinations to the ground state
	DampingConstant   float64 // fraction of the T_rad and W estimates applied per update

	LuminosityRequested float64 // erg/s; zero keeps T_inner fixed
	TInnerDamping       float64
	TInnerExponent      float64

	Workers       int // 0 = runtime.NumCPU()
	MaxIterations int
	Tolerance     float64
}

// DefaultConfig returns the default solver configuration.
func DefaultConfig() Config {
	return Config{
		Ionization:        IonizationLTE,
		Excitation:        ExcitationDilute,
		LinkTRadTElectron: 0.9,
		NebularZeta:       1,
		DampingConstant:   0.5,
		TInnerDamping:     0.5,
		TInnerExponent:    -0.5,
		MaxIterations:     DefaultMaxIterations,
		Tolerance:         DefaultTolerance,
	}
}

// ConfigFromRun maps the run configuration onto a solver Config.
func ConfigFromRun(cfg *config.RunConfig) Config {
	c := DefaultConfig()
	p := cfg.Plasma
	conv := cfg.MonteCarlo.Convergence
	c.Ionization = IonizationMode(p.GetIonization())
	c.Excitation = ExcitationMode(p.GetExcitation())
	c.LinkTRadTElectron = p.GetLinkTRadTElectron()
	c.NebularZeta = p.GetNebularZeta()
	c.DampingConstant = conv.GetDampingConstant()
	c.LuminosityRequested = cfg.Supernova.GetLuminosityRequested()
	c.TInnerDamping = conv.TInner.GetDampingConstant()
	c.TInnerExponent = conv.TInner.GetUpdateExponent()
	c.Workers = cfg.Workers()
	return c
}

// Measurement is what a transport run reports about the inner boundary.
type Measurement struct {
	TimeOfSimulation  float64 // s per unit packet energy
	EmittedLuminosity float64 // erg/s inside the luminosity band
}

// ShellReport describes the update of one shell.
type ShellReport struct {
	Shell        int
	TRadEstimate float64 // from the estimators, before damping
	WEstimate    float64
	NoEstimate   bool // no packet crossed the shell; T_rad and W were kept
	Iterations   int
	Converged    bool
}

// Solver updates plasma states for one grid. It is safe for concurrent use.
type Solver struct {
	cfg   Config
	grid  *model.Grid
	table *atomdata.Table
}

// NewSolver validates cfg against the grid and atomic table.
func NewSolver(cfg Config, grid *model.Grid, table *atomdata.Table) (*Solver, error) {
	const op = "plasma.NewSolver"
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.Tolerance == 0 {
		cfg.Tolerance = DefaultTolerance
	}
	switch {
	case cfg.Ionization != IonizationLTE && cfg.Ionization != IonizationNebular:
		return nil, simerr.New(simerr.KindConfiguration, op, "unknown ionization mode %q", cfg.Ionization)
	case cfg.Excitation != ExcitationLTE && cfg.Excitation != ExcitationDilute:
		return nil, simerr.New(simerr.KindConfiguration, op, "unknown excitation mode %q", cfg.Excitation)
	case !(cfg.LinkTRadTElectron > 0):
		return nil, simerr.New(simerr.KindConfiguration, op, "link_t_rad_t_electron must be positive, got %g", cfg.LinkTRadTElectron)
	case cfg.NebularZeta < 0 || cfg.NebularZeta > 1:
		return nil, simerr.New(simerr.KindConfiguration, op, "nebular zeta must be in [0, 1], got %g", cfg.NebularZeta)
	case cfg.DampingConstant < 0 || cfg.DampingConstant > 1:
		return nil, simerr.New(simerr.KindConfiguration, op, "damping constant must be in [0, 1], got %g", cfg.DampingConstant)
	case cfg.TInnerDamping < 0 || cfg.TInnerDamping > 1:
		return nil, simerr.New(simerr.KindConfiguration, op, "t_inner damping must be in [0, 1], got %g", cfg.TInnerDamping)
	case cfg.MaxIterations < 0 || !(cfg.Tolerance > 0):
		return nil, simerr.New(simerr.KindConfiguration, op, "bisection needs a positive iteration cap and tolerance")
	case grid == nil || table == nil:
		return nil, simerr.New(simerr.KindConfiguration, op, "grid and atomic table are required")
	}
	for _, z := range grid.Elements {
		if start, end := table.IonRange(z); end-start < 2 {
			return nil, simerr.New(simerr.KindAtomicData, op, "element Z=%d has no ionization stages", z)
		}
	}
	return &Solver{cfg: cfg, grid: grid, table: table}, nil
}

// Config returns the effective configuration.
func (s *Solver) Config() Config { return s.cfg }

// Initialize builds the state of the first iteration: T_rad equal to tInner
// and the geometric dilution factor of the photosphere in every shell.
func (s *Solver) Initialize(ctx context.Context, tInner float64) (*model.State, []ShellReport, error) {
	if !(tInner > 0) || math.IsInf(tInner, 0) {
		return nil, nil, simerr.New(simerr.KindConfiguration, "plasma.Initialize", "inner temperature must be positive, got %g", tInner)
	}
	next := s.newState()
	next.TInner = tInner
	reports := make([]ShellReport, s.grid.NumShells())
	rPhot := s.grid.RInnerBoundary()
	for i := range reports {
		next.TRad[i] = tInner
		next.W[i] = GeometricDilution(rPhot, s.grid.RMiddle(i))
		next.TElectron[i] = s.cfg.LinkTRadTElectron * tInner
		reports[i].Shell = i
	}
	if err := s.populate(ctx, next, nil, reports); err != nil {
		return nil, nil, err
	}
	return next, reports, nil
}

// Update derives the next state from prev and the estimators of a transport
// run against prev. prev is not modified. Shells whose ionization balance
// does not converge keep their previous populations and are flagged in the
// returned state and reports. A diverged radiation field is fatal.
func (s *Solver) Update(ctx context.Context, prev *model.State, est *model.Estimators, m Measurement) (*model.State, []ShellReport, error) {
	const op = "plasma.Update"
	n := s.grid.NumShells()
	if prev.NumShells() != n || est.NumShells() != n {
		return nil, nil, simerr.New(simerr.KindNumerical, op, "state has %d shells and estimators %d, grid has %d", prev.NumShells(), est.NumShells(), n)
	}
	if !(m.TimeOfSimulation > 0) {
		return nil, nil, simerr.New(simerr.KindNumerical, op, "time of simulation must be positive, got %g", m.TimeOfSimulation)
	}

	next := s.newState()
	next.Version = prev.Version + 1
	reports := make([]ShellReport, n)
	for i := 0; i < n; i++ {
		rep := ShellReport{Shell: i}
		tRad, w := prev.TRad[i], prev.W[i]
		if est.J[i] > 0 {
			rep.TRadEstimate, rep.WEstimate = RadiationFieldFromEstimators(est.J[i], est.NuBar[i], m.TimeOfSimulation, s.grid.Volume(i))
			tRad = damp(tRad, rep.TRadEstimate, s.cfg.DampingConstant)
			w = damp(w, rep.WEstimate, s.cfg.DampingConstant)
		} else {
			rep.NoEstimate = true
		}
		if !(tRad > 0) || math.IsInf(tRad, 0) || !(w >= 0) || math.IsInf(w, 0) {
			return nil, nil, simerr.New(simerr.KindNumerical, op, "shell %d radiation field diverged: t_rad=%g w=%g", i, tRad, w)
		}
		next.TRad[i] = tRad
		next.W[i] = w
		next.TElectron[i] = s.cfg.LinkTRadTElectron * tRad
		reports[i] = rep
	}

	if err := s.populate(ctx, next, prev, reports); err != nil {
		return nil, nil, err
	}
	next.TInner = s.UpdateTInner(prev.TInner, m.EmittedLuminosity)
	return next, reports, nil
}

func (s *Solver) newState() *model.State {
	return model.NewState(s.grid.NumShells(), len(s.table.Ions), len(s.table.Levels), s.table.NumLines())
}

// populate solves every shell of next in parallel from its radiation field.
// Non-converged shells fall back to prev when it is non-nil.
func (s *Solver) populate(ctx context.Context, next, prev *model.State, reports []ShellReport) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i := range reports {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sol := s.SolveShell(i, next.TRad[i], next.W[i], next.TElectron[i])
			reports[i].Iterations = sol.Iterations
			reports[i].Converged = sol.Converged
			next.SolverConverged[i] = sol.Converged

			if !sol.Converged && prev != nil {
				monitoring.Debugf("[plasma] shell %d: electron density did not converge after %d iterations, keeping previous populations", i, sol.Iterations)
				next.ElectronDensity[i] = prev.ElectronDensity[i]
				copy(next.IonNumberDensity[i], prev.IonNumberDensity[i])
				copy(next.LevelNumberDensity[i], prev.LevelNumberDensity[i])
				copy(next.TauSobolev[i], prev.TauSobolev[i])
				return nil
			}
			if !finiteSolution(sol) {
				return simerr.New(simerr.KindNumerical, "plasma.Update", "shell %d populations are not finite at t_rad=%g w=%g", i, next.TRad[i], next.W[i])
			}
			next.ElectronDensity[i] = sol.ElectronDensity
			copy(next.IonNumberDensity[i], sol.IonNumberDensity)
			copy(next.LevelNumberDensity[i], sol.LevelNumberDensity)
			s.sobolevDepths(sol.LevelNumberDensity, next.TauSobolev[i])
			return nil
		})
	}
	return g.Wait()
}

func finiteSolution(sol ShellSolution) bool {
	if math.IsNaN(sol.ElectronDensity) || math.IsInf(sol.ElectronDensity, 0) {
		return false
	}
	for _, rows := range [][]float64{sol.IonNumberDensity, sol.LevelNumberDensity} {
		for _, v := range rows {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}
