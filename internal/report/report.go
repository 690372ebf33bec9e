// Package report writes the artefacts of a finished run: CSV tables of the
// spectra, convergence history and shell state, PNG plots, an interactive
// HTML page and a JSON summary.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"time"

	"github.com/banshee-data/ejecta.report/internal/fsutil"
	"github.com/banshee-data/ejecta.report/internal/model"
	"github.com/banshee-data/ejecta.report/internal/monitoring"
	"github.com/banshee-data/ejecta.report/internal/simulation"
	"github.com/banshee-data/ejecta.report/internal/transport"
)

// Artefact file names inside the output directory.
const (
	SpectrumCSV        = "spectrum.csv"
	VirtualSpectrumCSV = "spectrum_virtual.csv"
	ConvergenceCSV     = "convergence.csv"
	ShellsCSV          = "shells.csv"
	SpectrumPNG        = "spectrum.png"
	ConvergencePNG     = "convergence.png"
	ReportHTML         = "report.html"
	SummaryJSON        = "summary.json"
)

// Summary is the JSON digest of a run.
type Summary struct {
	RunID             string                          `json:"run_id,omitempty"`
	Phase             simulation.Phase                `json:"phase"`
	Converged         bool                            `json:"converged"`
	Degraded          bool                            `json:"degraded"`
	Iterations        int                             `json:"iterations"`
	TInner            float64                         `json:"t_inner"`
	LuminosityEmitted float64                         `json:"luminosity_emitted"`
	PeakWavelength    float64                         `json:"peak_wavelength_angstrom,omitempty"`
	Energy            transport.EnergyBalance         `json:"energy"`
	Stats             transport.Stats                 `json:"stats"`
	Warnings          []simulation.ConvergenceWarning `json:"warnings,omitempty"`
	Elapsed           time.Duration                   `json:"elapsed_ns"`
}

// NewSummary digests res.
func NewSummary(runID string, res *simulation.Result) Summary {
	s := Summary{
		RunID:             runID,
		Phase:             res.Phase(),
		Converged:         res.Converged,
		Degraded:          res.Degraded,
		Iterations:        res.Iterations,
		TInner:            res.State.TInner,
		LuminosityEmitted: res.Spectrum.Total(),
		Energy:            res.Final.Energy,
		Stats:             res.Final.Stats,
		Warnings:          res.Warnings,
		Elapsed:           res.Elapsed,
	}
	// An empty spectrum has no peak, and NaN is not valid JSON.
	if peak := res.Spectrum.Peak(); !math.IsNaN(peak) {
		s.PeakWavelength = peak
	}
	return s
}

// Writer writes run artefacts into one directory.
type Writer struct {
	fs    fsutil.FileSystem
	dir   string
	title string
}

// NewWriter returns a Writer for dir. A nil fs writes to disk.
func NewWriter(fs fsutil.FileSystem, dir, title string) *Writer {
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	return &Writer{fs: fs, dir: dir, title: title}
}

// WriteAll writes every artefact and returns the paths written.
func (w *Writer) WriteAll(runID string, grid *model.Grid, res *simulation.Result) ([]string, error) {
	if err := w.fs.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	type artefact struct {
		name  string
		write func(io.Writer) error
	}
	artefacts := []artefact{
		{SpectrumCSV, func(out io.Writer) error { return WriteSpectrumCSV(out, res.Spectrum) }},
		{ConvergenceCSV, func(out io.Writer) error { return WriteConvergenceCSV(out, res.Diagnostics) }},
		{ShellsCSV, func(out io.Writer) error { return WriteShellsCSV(out, grid, res.State) }},
		{SpectrumPNG, func(out io.Writer) error { return PlotSpectrum(out, w.title, res.Spectrum, res.VirtualSpectrum) }},
		{ConvergencePNG, func(out io.Writer) error { return PlotConvergence(out, res.Diagnostics) }},
		{ReportHTML, func(out io.Writer) error { return RenderHTML(out, w.title, grid, res) }},
		{SummaryJSON, func(out io.Writer) error {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(NewSummary(runID, res))
		}},
	}
	if res.VirtualSpectrum != nil {
		artefacts = append(artefacts, artefact{VirtualSpectrumCSV, func(out io.Writer) error {
			return WriteSpectrumCSV(out, res.VirtualSpectrum)
		}})
	}

	var written []string
	for _, a := range artefacts {
		path := filepath.Join(w.dir, a.name)
		if err := w.writeFile(path, a.write); err != nil {
			return written, fmt.Errorf("write %s: %w", a.name, err)
		}
		written = append(written, path)
	}
	monitoring.Logf("[report] wrote %d files to %s", len(written), w.dir)
	return written, nil
}

func (w *Writer) writeFile(path string, write func(io.Writer) error) error {
	f, err := w.fs.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
