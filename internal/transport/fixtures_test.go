package transport

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/banshee-data/ejecta.report/internal/atomdata"
	"github.com/banshee-data/ejecta.report/internal/model"
	"github.com/banshee-data/ejecta.report/internal/packet"
	"github.com/banshee-data/ejecta.report/internal/spectrum"
	"github.com/banshee-data/ejecta.report/internal/units"
)

const testDays = 10.0

// fixture builds a silicon and calcium grid of uniform shells between vIn
// and vOut (km/s) with electron density ne in every shell and Sobolev depths
// tauScale * (1 + line%4).
func fixture(t *testing.T, shells int, vIn, vOut, ne, tauScale float64) (*model.Grid, *atomdata.Table, *model.State) {
	t.Helper()
	table := atomdata.MustSampleTable()

	boundaries := make([]float64, shells+1)
	density := make([]float64, shells)
	fractions := make([][]float64, shells)
	for i := range boundaries {
		boundaries[i] = (vIn + (vOut-vIn)*float64(i)/float64(shells)) * units.KmPerSec
	}
	for i := range density {
		density[i] = 1e-14
		fractions[i] = []float64{0.7, 0.3}
	}
	grid, err := model.NewGrid(units.DaysToSeconds(testDays), boundaries, density, []int{14, 20}, fractions, table)
	require.NoError(t, err)

	state := model.NewState(shells, len(table.Ions), len(table.Levels), table.NumLines())
	state.TInner = 10000
	for i := 0; i < shells; i++ {
		state.TRad[i] = 9000
		state.W[i] = 0.3
		state.ElectronDensity[i] = ne
		for l := range state.TauSobolev[i] {
			state.TauSobolev[i][l] = tauScale * float64(1+l%4)
		}
	}
	return grid, table, state
}

func testPackets(t *testing.T, n int, seed uint64) packet.Packets {
	t.Helper()
	p, err := packet.NewBlackBodySource(seed).CreatePackets(10000, n)
	require.NoError(t, err)
	return p
}

func testSpectrum(t *testing.T) *spectrum.Spectrum {
	t.Helper()
	s, err := spectrum.New(100, 1e6, 1000)
	require.NoError(t, err)
	return s
}

func newTestEngine(t *testing.T, cfg Config, grid *model.Grid, table *atomdata.Table) *Engine {
	t.Helper()
	e, err := NewEngine(cfg, grid, table)
	require.NoError(t, err)
	return e
}

// testTracer returns a tracer over a run context for single-packet tests.
func testTracer(t *testing.T, cfg Config, grid *model.Grid, table *atomdata.Table, state *model.State) *tracer {
	t.Helper()
	if cfg.MaxSteps == 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	rc, err := newRunContext(cfg, grid, table, state)
	require.NoError(t, err)
	acc := &chunkResult{estimators: model.NewEstimators(grid.NumShells())}
	return &tracer{rc: rc, rng: newTestRNG(1), acc: acc, spawn: testSpectrum(t)}
}
