package model

import "fmt"

// Estimators are the per-shell Monte Carlo accumulators of one transport
// run. J and NuBar are path-length weighted:
//
//	J     += E_cmf * d
//	NuBar += E_cmf * d * nu_cmf
//
// which makes them the volume-integrated mean intensity and its first
// frequency moment once divided by the simulation time.
type Estimators struct {
	J     []float64 // erg cm
	NuBar []float64 // erg cm Hz

	LineInteractions    []int64
	ElectronScatterings []int64
	LineAbsorbedEnergy  []float64 // comoving-frame energy absorbed in lines
	LineEmittedEnergy   []float64 // comoving-frame energy re-emitted by lines
}

// NewEstimators returns zeroed accumulators for n shells.
func NewEstimators(n int) *Estimators {
	return &Estimators{
		J:                   make([]float64, n),
		NuBar:               make([]float64, n),
		LineInteractions:    make([]int64, n),
		ElectronScatterings: make([]int64, n),
		LineAbsorbedEnergy:  make([]float64, n),
		LineEmittedEnergy:   make([]float64, n),
	}
}

// NumShells returns the number of shells covered.
func (e *Estimators) NumShells() int { return len(e.J) }

// Reset zeroes every accumulator.
func (e *Estimators) Reset() {
	clear(e.J)
	clear(e.NuBar)
	clear(e.LineInteractions)
	clear(e.ElectronScatterings)
	clear(e.LineAbsorbedEnergy)
	clear(e.LineEmittedEnergy)
}

// Merge adds other into e. Merging in a fixed order keeps sums reproducible.
func (e *Estimators) Merge(other *Estimators) error {
	if other.NumShells() != e.NumShells() {
		return fmt.Errorf("estimator shape mismatch: %d vs %d shells", e.NumShells(), other.NumShells())
	}
	for i := range e.J {
		e.J[i] += other.J[i]
		e.NuBar[i] += other.NuBar[i]
		e.LineInteractions[i] += other.LineInteractions[i]
		e.ElectronScatterings[i] += other.ElectronScatterings[i]
		e.LineAbsorbedEnergy[i] += other.LineAbsorbedEnergy[i]
		e.LineEmittedEnergy[i] += other.LineEmittedEnergy[i]
	}
	return nil
}
