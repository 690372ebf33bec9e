package simulation

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/ejecta.report/internal/model"
	"github.com/banshee-data/ejecta.report/internal/plasma"
	"github.com/banshee-data/ejecta.report/internal/simerr"
	"github.com/banshee-data/ejecta.report/internal/transport"
)

// ShellDelta compares one shell across an iteration. Deltas are relative
// changes from the previous state.
type ShellDelta struct {
	Shell                int     `json:"shell"`
	TRad                 float64 `json:"t_rad"`
	W                    float64 `json:"w"`
	ElectronDensity      float64 `json:"electron_density"`
	DeltaTRad            float64 `json:"delta_t_rad"`
	DeltaW               float64 `json:"delta_w"`
	DeltaElectronDensity float64 `json:"delta_electron_density"`
	SolverConverged      bool    `json:"solver_converged"`
	NoEstimate           bool    `json:"no_estimate,omitempty"` // no packet reached the shell
	Converged            bool    `json:"converged"`             // every delta below the threshold
}

// IterationDiagnostics is the convergence record of one iteration.
type IterationDiagnostics struct {
	Iteration int   `json:"iteration"`
	Phase     Phase `json:"phase"`

	TInner              float64 `json:"t_inner"`      // used by this iteration's transport
	NextTInner          float64 `json:"next_t_inner"` // for the next iteration
	DeltaTInner         float64 `json:"delta_t_inner"`
	LuminosityEmitted   float64 `json:"luminosity_emitted"`
	LuminosityRequested float64 `json:"luminosity_requested,omitempty"`

	Shells            []ShellDelta `json:"shells"`
	MeanDeltaTRad     float64      `json:"mean_delta_t_rad"`
	StdDevDeltaTRad   float64      `json:"stddev_delta_t_rad"`
	MaxDeltaTRad      float64      `json:"max_delta_t_rad"`
	MeanDeltaW        float64      `json:"mean_delta_w"`
	MaxDeltaW         float64      `json:"max_delta_w"`
	FractionConverged float64      `json:"fraction_converged"`
	Converged         bool         `json:"converged"`

	Packets        int     `json:"packets"`
	Escaped        int     `json:"escaped"`
	Reabsorbed     int     `json:"reabsorbed"`
	Degenerate     int     `json:"degenerate"`
	EnergyResidual float64 `json:"energy_residual"`

	Warnings []ConvergenceWarning `json:"warnings,omitempty"`
	Duration time.Duration        `json:"duration_ns"`
}

// ConvergenceWarning records a recoverable convergence problem. Shell is -1
// for warnings about the whole run. It matches simerr.ErrConvergence under
// errors.Is.
type ConvergenceWarning struct {
	Iteration int    `json:"iteration"`
	Shell     int    `json:"shell"`
	Message   string `json:"message"`
}

func (w ConvergenceWarning) Error() string {
	if w.Shell < 0 {
		return fmt.Sprintf("iteration %d: %s", w.Iteration, w.Message)
	}
	return fmt.Sprintf("iteration %d shell %d: %s", w.Iteration, w.Shell, w.Message)
}

// Is reports whether target is the convergence sentinel.
func (w ConvergenceWarning) Is(target error) bool { return target == simerr.ErrConvergence }

// relChange is |next-prev|/|prev|, or 1 when prev is zero and next is not.
func relChange(prev, next float64) float64 {
	if prev == 0 {
		if next == 0 {
			return 0
		}
		return 1
	}
	return math.Abs(next-prev) / math.Abs(prev)
}

// diagnose compares consecutive states.
func (s *Simulation) diagnose(iteration int, prev, next *model.State, reports []plasma.ShellReport, tr *transport.Result, lEmitted float64) IterationDiagnostics {
	n := prev.NumShells()
	d := IterationDiagnostics{
		Iteration:           iteration,
		Phase:               PhaseIterating,
		TInner:              prev.TInner,
		NextTInner:          next.TInner,
		DeltaTInner:         relChange(prev.TInner, next.TInner),
		LuminosityEmitted:   lEmitted,
		LuminosityRequested: s.settings.LuminosityRequested,
		Shells:              make([]ShellDelta, n),
		Packets:             tr.Stats.Packets,
		Escaped:             tr.Stats.Escaped,
		Reabsorbed:          tr.Stats.Reabsorbed,
		Degenerate:          tr.Stats.Degenerate,
		EnergyResidual:      tr.Energy.Residual(),
	}

	dTRad := make([]float64, n)
	dW := make([]float64, n)
	converged := 0
	for i := 0; i < n; i++ {
		sd := ShellDelta{
			Shell:                i,
			TRad:                 next.TRad[i],
			W:                    next.W[i],
			ElectronDensity:      next.ElectronDensity[i],
			DeltaTRad:            relChange(prev.TRad[i], next.TRad[i]),
			DeltaW:               relChange(prev.W[i], next.W[i]),
			DeltaElectronDensity: relChange(prev.ElectronDensity[i], next.ElectronDensity[i]),
			SolverConverged:      next.SolverConverged[i],
			NoEstimate:           reports[i].NoEstimate,
		}
		thr := s.settings.Threshold
		sd.Converged = sd.SolverConverged && sd.DeltaTRad < thr && sd.DeltaW < thr && sd.DeltaElectronDensity < thr
		if sd.Converged {
			converged++
		}
		if !sd.SolverConverged {
			d.Warnings = append(d.Warnings, ConvergenceWarning{
				Iteration: iteration,
				Shell:     i,
				Message:   fmt.Sprintf("electron density did not converge in %d iterations", reports[i].Iterations),
			})
		}
		dTRad[i], dW[i] = sd.DeltaTRad, sd.DeltaW
		d.Shells[i] = sd
	}

	d.MeanDeltaTRad = stat.Mean(dTRad, nil)
	if n > 1 {
		d.StdDevDeltaTRad = stat.StdDev(dTRad, nil)
	}
	d.MaxDeltaTRad = floats.Max(dTRad)
	d.MeanDeltaW = stat.Mean(dW, nil)
	d.MaxDeltaW = floats.Max(dW)
	d.FractionConverged = float64(converged) / float64(n)
	d.Converged = d.FractionConverged >= s.settings.Fraction && d.DeltaTInner < s.settings.TInnerThreshold
	return d
}
