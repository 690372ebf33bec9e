package transport

import (
	"math"
	"sort"

	"github.com/banshee-data/ejecta.report/internal/atomdata"
	"github.com/banshee-data/ejecta.report/internal/model"
	"github.com/banshee-data/ejecta.report/internal/simerr"
	"github.com/banshee-data/ejecta.report/internal/units"
)

// runContext is the read-only view of one transport run shared by all
// workers. Lines are stored in descending frequency: descending index k is
// table index n-1-k.
type runContext struct {
	cfg     Config
	frame   frame
	nShells int
	rInner  []float64
	rOuter  []float64
	chiE    []float64 // electron scattering opacity, cm^-1

	lineNu    []float64   // descending
	lineNuAsc []float64   // ascending, for start-line lookup
	tau       [][]float64 // [shell][descending line]
	lineUpper []int       // descending line -> table level

	// downbranch tables: per level the descending indices of its downward
	// lines, and per shell and level their cumulative emission probability.
	downLines [][]int
	downCDF   [][][]float64
}

func newRunContext(cfg Config, grid *model.Grid, table *atomdata.Table, state *model.State) (*runContext, error) {
	const op = "transport.Run"
	n := grid.NumShells()
	if state.NumShells() != n {
		return nil, simerr.New(simerr.KindNumerical, op, "state has %d shells, grid has %d", state.NumShells(), n)
	}
	if !(state.TInner > 0) || math.IsInf(state.TInner, 0) {
		return nil, simerr.New(simerr.KindNumerical, op, "inner boundary temperature %g is not usable", state.TInner)
	}

	rc := &runContext{
		cfg:     cfg,
		frame:   newFrame(grid.TimeExplosion, cfg.FullRelativity),
		nShells: n,
		rInner:  make([]float64, n),
		rOuter:  make([]float64, n),
		chiE:    make([]float64, n),
	}
	for i := 0; i < n; i++ {
		rc.rInner[i] = grid.RInner(i)
		rc.rOuter[i] = grid.ROuter(i)
		ne := state.ElectronDensity[i]
		if ne < 0 || math.IsNaN(ne) || math.IsInf(ne, 0) {
			return nil, simerr.New(simerr.KindNumerical, op, "shell %d electron density %g", i, ne)
		}
		if !cfg.DisableElectronScattering {
			rc.chiE[i] = ne * units.ThomsonCross
		}
	}

	if cfg.DisableLineScattering {
		return rc, nil
	}

	nl := table.NumLines()
	rc.lineNuAsc = table.LineFrequencies()
	rc.lineNu = make([]float64, nl)
	rc.lineUpper = make([]int, nl)
	for k := 0; k < nl; k++ {
		line := table.Lines[nl-1-k]
		rc.lineNu[k] = line.Nu
		rc.lineUpper[k] = line.Upper
	}
	rc.tau = make([][]float64, n)
	for i := 0; i < n; i++ {
		if len(state.TauSobolev[i]) != nl {
			return nil, simerr.New(simerr.KindNumerical, op, "shell %d has %d line opacities, table has %d lines", i, len(state.TauSobolev[i]), nl)
		}
		row := make([]float64, nl)
		for k := 0; k < nl; k++ {
			tau := state.TauSobolev[i][nl-1-k]
			if tau < 0 || math.IsNaN(tau) {
				return nil, simerr.New(simerr.KindNumerical, op, "shell %d line %d has Sobolev optical depth %g", i, nl-1-k, tau)
			}
			row[k] = tau
		}
		rc.tau[i] = row
	}

	if cfg.LineInteraction == LineDownbranch {
		rc.buildDownbranch(table)
	}
	return rc, nil
}

// sobolevEscape is beta = (1 - exp(-tau)) / tau.
func sobolevEscape(tau float64) float64 {
	if tau < 1e-6 {
		return 1 - 0.5*tau
	}
	return -math.Expm1(-tau) / tau
}

func (rc *runContext) buildDownbranch(table *atomdata.Table) {
	nl := len(rc.lineNu)
	rc.downLines = make([][]int, len(table.Levels))
	for level := range table.Levels {
		asc := table.DownwardLines(level)
		if len(asc) == 0 {
			continue
		}
		desc := make([]int, len(asc))
		for j, li := range asc {
			desc[j] = nl - 1 - li
		}
		rc.downLines[level] = desc
	}

	rc.downCDF = make([][][]float64, rc.nShells)
	for s := 0; s < rc.nShells; s++ {
		perLevel := make([][]float64, len(table.Levels))
		for level, desc := range rc.downLines {
			if len(desc) == 0 {
				continue
			}
			cdf := make([]float64, len(desc))
			acc := 0.0
			for j, k := range desc {
				line := table.Lines[nl-1-k]
				acc += line.AUl * line.Nu * sobolevEscape(rc.tau[s][k])
				cdf[j] = acc
			}
			if acc > 0 {
				for j := range cdf {
					cdf[j] /= acc
				}
			}
			perLevel[level] = cdf
		}
		rc.downCDF[s] = perLevel
	}
}

// emissionLine picks the re-emission channel for an absorption in
// descending line k. xi is uniform on [0, 1).
func (rc *runContext) emissionLine(shell, k int, xi float64) int {
	if rc.cfg.LineInteraction != LineDownbranch {
		return k
	}
	level := rc.lineUpper[k]
	cdf := rc.downCDF[shell][level]
	if len(cdf) == 0 || !(cdf[len(cdf)-1] > 0) {
		return k
	}
	j := sort.SearchFloat64s(cdf, xi)
	if j >= len(cdf) {
		j = len(cdf) - 1
	}
	return rc.downLines[level][j]
}

// startLine returns the descending index of the first line redward of the
// comoving frequency.
func (rc *runContext) startLine(comovNu float64) int {
	below := sort.SearchFloat64s(rc.lineNuAsc, comovNu)
	return len(rc.lineNuAsc) - below
}
