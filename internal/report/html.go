package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/ejecta.report/internal/model"
	"github.com/banshee-data/ejecta.report/internal/simulation"
	"github.com/banshee-data/ejecta.report/internal/spectrum"
	"github.com/banshee-data/ejecta.report/internal/units"
)

func spectrumLineData(sp *spectrum.Spectrum) []opts.LineData {
	pts := spectrumXYs(sp)
	data := make([]opts.LineData, len(pts))
	for i, pt := range pts {
		data[i] = opts.LineData{Value: []interface{}{pt.X, pt.Y}}
	}
	return data
}

func spectrumChart(title string, sp, virtual *spectrum.Spectrum) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "1200px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("bins=%d L=%.4e erg/s", sp.NumBins(), sp.Total())}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "Wavelength (Å)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "L_λ (erg/s/Å)"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}, opts.DataZoom{Type: "slider"}),
	)
	line.AddSeries("real packets", spectrumLineData(sp))
	if virtual != nil {
		line.AddSeries("virtual packets", spectrumLineData(virtual))
	}
	return line
}

func convergenceChart(diags []simulation.IterationDiagnostics) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1200px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: "Convergence", Subtitle: fmt.Sprintf("iterations=%d", len(diags))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "Iteration", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "Temperature (K)"}),
	)
	tInner := make([]opts.LineData, len(diags))
	for i, d := range diags {
		tInner[i] = opts.LineData{Value: []interface{}{d.Iteration, d.NextTInner}}
	}
	line.AddSeries("T_inner", tInner)
	if len(diags) == 0 {
		return line
	}
	for s := range diags[0].Shells {
		data := make([]opts.LineData, 0, len(diags))
		for _, d := range diags {
			if s < len(d.Shells) {
				data = append(data, opts.LineData{Value: []interface{}{d.Iteration, d.Shells[s].TRad}})
			}
		}
		line.AddSeries(fmt.Sprintf("shell %d", s), data)
	}
	return line
}

func shellsChart(grid *model.Grid, state *model.State) *charts.Bar {
	x := make([]string, state.NumShells())
	tRad := make([]opts.BarData, state.NumShells())
	w := make([]opts.BarData, state.NumShells())
	for i := range x {
		x[i] = fmt.Sprintf("%.0f", 0.5*(grid.VInner[i]+grid.VOuter[i])/units.KmPerSec)
		tRad[i] = opts.BarData{Value: state.TRad[i]}
		w[i] = opts.BarData{Value: state.W[i]}
	}
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1200px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Shell state", Subtitle: fmt.Sprintf("T_inner=%.1f K", state.TInner)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "v (km/s)", NameLocation: "middle", NameGap: 25}),
	)
	bar.SetXAxis(x).
		AddSeries("T_rad (K)", tRad).
		AddSeries("W", w)
	return bar
}

// RenderHTML writes an interactive page with the spectrum, the convergence
// history and the final shell state.
func RenderHTML(w io.Writer, title string, grid *model.Grid, res *simulation.Result) error {
	page := components.NewPage()
	page.PageTitle = title
	page.AddCharts(
		spectrumChart(title, res.Spectrum, res.VirtualSpectrum),
		convergenceChart(res.Diagnostics),
		shellsChart(grid, res.State),
	)
	return page.Render(w)
}
