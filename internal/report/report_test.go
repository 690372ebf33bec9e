package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/ejecta.report/internal/atomdata"
	"github.com/banshee-data/ejecta.report/internal/config"
	"github.com/banshee-data/ejecta.report/internal/fsutil"
	"github.com/banshee-data/ejecta.report/internal/model"
	"github.com/banshee-data/ejecta.report/internal/monitoring"
	"github.com/banshee-data/ejecta.report/internal/simulation"
	"github.com/banshee-data/ejecta.report/internal/spectrum"
	"github.com/banshee-data/ejecta.report/internal/transport"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

func testSpectrum(t *testing.T) *spectrum.Spectrum {
	t.Helper()
	sp, err := spectrum.New(2000, 8000, 30)
	require.NoError(t, err)
	for i, nu := range sp.Frequencies() {
		sp.Add(nu, float64(1+i%7)*1e41)
	}
	return sp
}

func testResult(t *testing.T, virtual bool) (*model.Grid, *simulation.Result) {
	t.Helper()
	table := atomdata.MustSampleTable()
	grid, err := model.FromConfig(config.DefaultRunConfig(), table)
	require.NoError(t, err)

	n := grid.NumShells()
	state := model.NewState(n, len(table.Ions), len(table.Levels), table.NumLines())
	state.TInner = 11000
	diags := make([]simulation.IterationDiagnostics, 3)
	for it := range diags {
		diags[it] = simulation.IterationDiagnostics{Iteration: it, TInner: 11000, NextTInner: 11000 + 50*float64(it), Shells: make([]simulation.ShellDelta, n)}
		for i := 0; i < n; i++ {
			diags[it].Shells[i] = simulation.ShellDelta{Shell: i, TRad: 10000 - 200*float64(i) + 10*float64(it), W: 0.3}
		}
	}
	for i := 0; i < n; i++ {
		state.TRad[i] = diags[2].Shells[i].TRad
		state.W[i] = 0.3
		state.TElectron[i] = 0.9 * state.TRad[i]
		state.ElectronDensity[i] = 1e9
		state.SolverConverged[i] = true
	}

	res := &simulation.Result{
		Converged:   true,
		Iterations:  3,
		State:       state,
		Final:       &transport.Result{Energy: transport.EnergyBalance{Emitted: 1, Escaped: 0.8, Reabsorbed: 0.2}},
		Spectrum:    testSpectrum(t),
		Diagnostics: diags,
		Phases:      []simulation.PhaseChange{{Phase: simulation.PhaseDone}},
	}
	if virtual {
		res.VirtualSpectrum = testSpectrum(t)
	}
	return grid, res
}

func readCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteSpectrumCSV(t *testing.T) {
	sp := testSpectrum(t)
	var buf bytes.Buffer
	require.NoError(t, WriteSpectrumCSV(&buf, sp))

	rows := readCSV(t, buf.Bytes())
	require.Len(t, rows, sp.NumBins()+1)
	assert.Equal(t, "wavelength_angstrom", rows[0][0])

	total := 0.0
	prev := 0.0
	for _, row := range rows[1:] {
		wl, err := strconv.ParseFloat(row[0], 64)
		require.NoError(t, err)
		assert.Greater(t, wl, prev, "wavelength ascends")
		prev = wl
		l, err := strconv.ParseFloat(row[2], 64)
		require.NoError(t, err)
		total += l
	}
	assert.InDelta(t, sp.Total(), total, 1e-9*sp.Total())
}

func TestWriteConvergenceAndShellsCSV(t *testing.T) {
	grid, res := testResult(t, false)

	var conv bytes.Buffer
	require.NoError(t, WriteConvergenceCSV(&conv, res.Diagnostics))
	rows := readCSV(t, conv.Bytes())
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"2", "11000", "11100"}, rows[3][:3])

	var shells bytes.Buffer
	require.NoError(t, WriteShellsCSV(&shells, grid, res.State))
	rows = readCSV(t, shells.Bytes())
	require.Len(t, rows, grid.NumShells()+1)
	assert.Equal(t, "11000", rows[1][1], "inner velocity in km/s")
	assert.Equal(t, "true", rows[1][8])
}

func TestPlots(t *testing.T) {
	_, res := testResult(t, true)
	pngMagic := []byte("\x89PNG")

	testCases := []struct {
		name string
		plot func(*bytes.Buffer) error
	}{
		{"spectrum", func(b *bytes.Buffer) error { return PlotSpectrum(b, "W7", res.Spectrum, nil) }},
		{"spectrum with virtual", func(b *bytes.Buffer) error { return PlotSpectrum(b, "W7", res.Spectrum, res.VirtualSpectrum) }},
		{"convergence", func(b *bytes.Buffer) error { return PlotConvergence(b, res.Diagnostics) }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, tc.plot(&buf))
			assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
		})
	}
}

func TestRenderHTML(t *testing.T) {
	grid, res := testResult(t, true)
	var buf bytes.Buffer
	require.NoError(t, RenderHTML(&buf, "W7 at 13 days", grid, res))
	html := buf.String()
	assert.Contains(t, html, "W7 at 13 days")
	assert.Contains(t, html, "virtual packets")
	assert.Contains(t, html, "Shell state")
}

func TestGenerateColors(t *testing.T) {
	assert.Nil(t, generateColors(0))
	colors := generateColors(5)
	require.Len(t, colors, 5)
	seen := map[[3]uint32]bool{}
	for _, c := range colors {
		r, g, b, a := c.RGBA()
		assert.Equal(t, uint32(0xffff), a)
		seen[[3]uint32{r, g, b}] = true
	}
	assert.Len(t, seen, 5)
}

func TestWriterWriteAll(t *testing.T) {
	testCases := []struct {
		name    string
		virtual bool
		want    []string
	}{
		{"real only", false, []string{ConvergencePNG, ConvergenceCSV, ReportHTML, ShellsCSV, SpectrumCSV, SpectrumPNG, SummaryJSON}},
		{"with virtual", true, []string{ConvergencePNG, ConvergenceCSV, ReportHTML, ShellsCSV, SpectrumCSV, SpectrumPNG, VirtualSpectrumCSV, SummaryJSON}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			grid, res := testResult(t, tc.virtual)
			mem := fsutil.NewMemoryFileSystem()
			w := NewWriter(mem, "out/run", "W7")

			written, err := w.WriteAll("run-1", grid, res)
			require.NoError(t, err)
			assert.Len(t, written, len(tc.want))
			assert.True(t, mem.Exists("out/run"))

			var want []string
			for _, name := range tc.want {
				want = append(want, filepath.Join("out/run", name))
			}
			assert.ElementsMatch(t, want, mem.Files("out/run"))

			data, err := mem.ReadFile(filepath.Join("out/run", SummaryJSON))
			require.NoError(t, err)
			var sum Summary
			require.NoError(t, json.Unmarshal(data, &sum))
			assert.Equal(t, "run-1", sum.RunID)
			assert.Equal(t, simulation.PhaseDone, sum.Phase)
			assert.True(t, sum.Converged)
			assert.Equal(t, 11000.0, sum.TInner)
			assert.InDelta(t, res.Spectrum.Total(), sum.LuminosityEmitted, 1e-9*sum.LuminosityEmitted)
			assert.Greater(t, sum.PeakWavelength, 2000.0)
		})
	}
}

func TestNewSummaryEmptySpectrum(t *testing.T) {
	_, res := testResult(t, false)
	res.Spectrum = res.Spectrum.EmptyLike()
	sum := NewSummary("", res)
	assert.Zero(t, sum.PeakWavelength)
	data, err := json.Marshal(sum)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(data), "NaN"))
}
