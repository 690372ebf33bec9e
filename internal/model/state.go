package model

import "slices"

// State is the plasma state of every shell at one iteration. A State is
// owned by whoever produced it: the plasma solver builds a new one each
// iteration and the transport engine only reads it. Version increases by one
// per solver update.
type State struct {
	Version int
	TInner  float64 // K

	TRad            []float64 // K
	W               []float64 // dilution factor
	TElectron       []float64 // K
	ElectronDensity []float64 // cm^-3

	// IonNumberDensity is [shell][ion index in the atomic table].
	IonNumberDensity [][]float64
	// LevelNumberDensity is [shell][level index in the atomic table].
	LevelNumberDensity [][]float64
	// TauSobolev is [shell][line index], in ascending line frequency order.
	TauSobolev [][]float64

	// SolverConverged marks shells whose ionization balance converged in the
	// update that produced this state.
	SolverConverged []bool
}

// NewState allocates a zeroed state for the given dimensions.
func NewState(shells, ions, levels, lines int) *State {
	s := &State{
		TRad:               make([]float64, shells),
		W:                  make([]float64, shells),
		TElectron:          make([]float64, shells),
		ElectronDensity:    make([]float64, shells),
		IonNumberDensity:   make([][]float64, shells),
		LevelNumberDensity: make([][]float64, shells),
		TauSobolev:         make([][]float64, shells),
		SolverConverged:    make([]bool, shells),
	}
	for i := 0; i < shells; i++ {
		s.IonNumberDensity[i] = make([]float64, ions)
		s.LevelNumberDensity[i] = make([]float64, levels)
		s.TauSobolev[i] = make([]float64, lines)
	}
	return s
}

// NumShells returns the number of shells in the state.
func (s *State) NumShells() int { return len(s.TRad) }

// Clone returns a deep copy.
func (s *State) Clone() *State {
	return &State{
		Version:            s.Version,
		TInner:             s.TInner,
		TRad:               slices.Clone(s.TRad),
		W:                  slices.Clone(s.W),
		TElectron:          slices.Clone(s.TElectron),
		ElectronDensity:    slices.Clone(s.ElectronDensity),
		IonNumberDensity:   cloneRows(s.IonNumberDensity),
		LevelNumberDensity: cloneRows(s.LevelNumberDensity),
		TauSobolev:         cloneRows(s.TauSobolev),
		SolverConverged:    slices.Clone(s.SolverConverged),
	}
}

func cloneRows(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = slices.Clone(r)
	}
	return out
}
