package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/banshee-data/ejecta.report/internal/model"
	"github.com/banshee-data/ejecta.report/internal/simulation"
	"github.com/banshee-data/ejecta.report/internal/spectrum"
	"github.com/banshee-data/ejecta.report/internal/units"
)

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', 10, 64) }

// WriteSpectrumCSV writes one row per bin in ascending wavelength order.
func WriteSpectrumCSV(w io.Writer, sp *spectrum.Spectrum) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"wavelength_angstrom", "frequency_hz", "luminosity_erg_s", "l_nu_erg_s_hz", "l_lambda_erg_s_angstrom"}); err != nil {
		return err
	}
	nus := sp.Frequencies()
	lum := sp.Luminosity()
	lnu := sp.LuminosityDensityNu()
	llam := sp.LuminosityDensityLambda()
	for i := len(nus) - 1; i >= 0; i-- {
		row := []string{
			formatFloat(units.HzToAngstrom(nus[i])),
			formatFloat(nus[i]),
			formatFloat(lum[i]),
			formatFloat(lnu[i]),
			formatFloat(llam[i]),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteConvergenceCSV writes one row per iteration.
func WriteConvergenceCSV(w io.Writer, diags []simulation.IterationDiagnostics) error {
	cw := csv.NewWriter(w)
	header := []string{
		"iteration", "t_inner", "next_t_inner", "luminosity_emitted", "luminosity_requested",
		"mean_delta_t_rad", "max_delta_t_rad", "mean_delta_w", "fraction_converged", "converged",
		"escaped", "reabsorbed", "degenerate",
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, d := range diags {
		row := []string{
			strconv.Itoa(d.Iteration),
			formatFloat(d.TInner),
			formatFloat(d.NextTInner),
			formatFloat(d.LuminosityEmitted),
			formatFloat(d.LuminosityRequested),
			formatFloat(d.MeanDeltaTRad),
			formatFloat(d.MaxDeltaTRad),
			formatFloat(d.MeanDeltaW),
			formatFloat(d.FractionConverged),
			strconv.FormatBool(d.Converged),
			strconv.Itoa(d.Escaped),
			strconv.Itoa(d.Reabsorbed),
			strconv.Itoa(d.Degenerate),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteShellsCSV writes the plasma state of every shell. Velocities are in
// km/s.
func WriteShellsCSV(w io.Writer, grid *model.Grid, state *model.State) error {
	cw := csv.NewWriter(w)
	header := []string{"shell", "v_inner_km_s", "v_outer_km_s", "density", "t_rad", "w", "t_electron", "electron_density", "solver_converged"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for i := 0; i < state.NumShells(); i++ {
		row := []string{
			strconv.Itoa(i),
			formatFloat(grid.VInner[i] / units.KmPerSec),
			formatFloat(grid.VOuter[i] / units.KmPerSec),
			formatFloat(grid.Density[i]),
			formatFloat(state.TRad[i]),
			formatFloat(state.W[i]),
			formatFloat(state.TElectron[i]),
			formatFloat(state.ElectronDensity[i]),
			strconv.FormatBool(state.SolverConverged[i]),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
