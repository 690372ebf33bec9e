package plasma

import (
	"math"

	"github.com/banshee-data/ejecta.report/internal/units"
)

// ShellSolution is the ionization and excitation balance of one shell.
type ShellSolution struct {
	ElectronDensity    float64   // cm^-3
	IonNumberDensity   []float64 // indexed like Table.Ions
	LevelNumberDensity []float64 // indexed like Table.Levels
	Iterations         int
	Converged          bool
}

// neutralFloor bounds the electron density search from below at this
// fraction of the fully ionized value.
const neutralFloor = 1e-20

// species caches the per-element quantities of one solve.
type species struct {
	number float64   // element number density
	first  int       // index of the neutral stage in Table.Ions
	logPhi []float64 // log Saha factor per stage, without the 1/n_e
	charge []float64
}

// SolveShell computes the electron density and the ion and level number
// densities of a shell for the given radiation field. The electron density
// is bracketed between a neutral floor and full ionization and found by
// bisection in log space.
func (s *Solver) SolveShell(shell int, tRad, w, tElectron float64) ShellSolution {
	t := s.table
	sol := ShellSolution{
		IonNumberDensity:   make([]float64, len(t.Ions)),
		LevelNumberDensity: make([]float64, len(t.Levels)),
	}

	weights, logZ := s.levelWeights(tRad, w)
	var elems []species
	maxElectrons := 0.0
	for k, z := range s.grid.Elements {
		n := s.grid.NumberDensity[shell][k]
		if !(n > 0) {
			continue
		}
		start, end := t.IonRange(z)
		sp := species{
			number: n,
			first:  start,
			logPhi: make([]float64, end-start-1),
			charge: make([]float64, end-start),
		}
		for j := start; j < end; j++ {
			sp.charge[j-start] = float64(t.Ions[j].Charge)
		}
		for j := start; j < end-1; j++ {
			sp.logPhi[j-start] = s.logSaha(j, logZ, tRad, w, tElectron)
		}
		maxElectrons += n * sp.charge[len(sp.charge)-1]
		elems = append(elems, sp)
	}

	if !(maxElectrons > 0) {
		sol.Converged = true
	} else {
		hi := math.Log(maxElectrons)
		lo := hi + math.Log(neutralFloor)
		balance := func(x float64) float64 {
			return electrons(elems, x, nil) - math.Exp(x)
		}
		if balance(lo) <= 0 {
			hi = lo
			sol.Converged = true
		}
		for !sol.Converged && sol.Iterations < s.cfg.MaxIterations {
			sol.Iterations++
			mid := 0.5 * (lo + hi)
			f := balance(mid)
			if math.IsNaN(f) {
				break
			}
			if f > 0 {
				lo = mid
			} else {
				hi = mid
			}
			sol.Converged = hi-lo < s.cfg.Tolerance
		}
		x := 0.5 * (lo + hi)
		sol.ElectronDensity = math.Exp(x)
		electrons(elems, x, sol.IonNumberDensity)
	}

	for ion, n := range sol.IonNumberDensity {
		if n == 0 {
			continue
		}
		z := math.Exp(logZ[ion])
		for _, level := range t.LevelsOf(ion) {
			sol.LevelNumberDensity[level] = n * weights[level] / z
		}
	}
	return sol
}

// electrons returns the free electron density implied by log n_e = x and,
// when ions is non-nil, stores the ion number densities.
func electrons(elems []species, x float64, ions []float64) float64 {
	total := 0.0
	for _, sp := range elems {
		logR := make([]float64, len(sp.charge))
		maxR := 0.0
		for j, phi := range sp.logPhi {
			logR[j+1] = logR[j] + phi - x
			maxR = math.Max(maxR, logR[j+1])
		}
		sum := 0.0
		for _, r := range logR {
			sum += math.Exp(r - maxR)
		}
		for j, r := range logR {
			n := sp.number * math.Exp(r-maxR) / sum
			total += sp.charge[j] * n
			if ions != nil {
				ions[sp.first+j] = n
			}
		}
	}
	return total
}

// levelWeights returns the Boltzmann weight of every level and the log
// partition function of every ion. Under dilute-LTE excitation the weights of
// non-metastable levels are scaled by w.
func (s *Solver) levelWeights(tRad, w float64) ([]float64, []float64) {
	t := s.table
	kT := units.Boltzmann * tRad
	weights := make([]float64, len(t.Levels))
	logZ := make([]float64, len(t.Ions))
	for ion := range t.Ions {
		z := 0.0
		for _, level := range t.LevelsOf(ion) {
			lv := t.Levels[level]
			b := lv.G * math.Exp(-lv.Energy/kT)
			if s.cfg.Excitation == ExcitationDilute && !lv.Metastable && lv.Number > 0 {
				b *= w
			}
			weights[level] = b
			z += b
		}
		logZ[ion] = math.Log(z)
	}
	return weights, logZ
}

// logSaha returns log(n_{j+1} n_e / n_j) for stage j.
func (s *Solver) logSaha(j int, logZ []float64, tRad, w, tElectron float64) float64 {
	chi := s.table.Ions[j].IonizationEnergy
	phi := math.Ln2 + logZ[j+1] - logZ[j] + math.Log(units.SahaCoefficient) +
		1.5*math.Log(tRad) - chi/(units.Boltzmann*tRad)
	if s.cfg.Ionization == IonizationNebular {
		zeta := s.cfg.NebularZeta
		phi += math.Log(w*(zeta+w*(1-zeta))) + 0.5*math.Log(tElectron/tRad)
	}
	return phi
}
