package report

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/ejecta.report/internal/simulation"
	"github.com/banshee-data/ejecta.report/internal/spectrum"
)

const (
	plotWidth  = 14 * vg.Inch
	plotHeight = 6 * vg.Inch
)

// spectrumXYs returns (wavelength, L_lambda) points in ascending wavelength.
func spectrumXYs(sp *spectrum.Spectrum) plotter.XYs {
	wl := sp.Wavelengths()
	ll := sp.LuminosityDensityLambda()
	pts := make(plotter.XYs, len(wl))
	for i := range wl {
		pts[len(wl)-1-i] = plotter.XY{X: wl[i], Y: ll[i]}
	}
	return pts
}

func addLine(p *plot.Plot, label string, pts plotter.XYs, c color.Color) error {
	if len(pts) == 0 {
		return nil
	}
	l, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	l.Color = c
	l.Width = vg.Points(1)
	p.Add(l)
	p.Legend.Add(label, l)
	return nil
}

func legendTopRight(p *plot.Plot) {
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
}

func writePNG(w io.Writer, p *plot.Plot) error {
	wt, err := p.WriterTo(plotWidth, plotHeight, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// PlotSpectrum renders L_lambda against wavelength as PNG. virtual may be
// nil.
func PlotSpectrum(w io.Writer, title string, sp, virtual *spectrum.Spectrum) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Wavelength (Å)"
	p.Y.Label.Text = "L_λ (erg/s/Å)"
	p.Add(plotter.NewGrid())

	colors := generateColors(2)
	if err := addLine(p, "real packets", spectrumXYs(sp), colors[0]); err != nil {
		return fmt.Errorf("spectrum line: %w", err)
	}
	if virtual != nil {
		if err := addLine(p, "virtual packets", spectrumXYs(virtual), colors[1]); err != nil {
			return fmt.Errorf("virtual spectrum line: %w", err)
		}
	}
	legendTopRight(p)
	return writePNG(w, p)
}

// PlotConvergence renders T_inner and the radiation temperature of every
// shell against iteration as PNG.
func PlotConvergence(w io.Writer, diags []simulation.IterationDiagnostics) error {
	p := plot.New()
	p.Title.Text = "Convergence"
	p.X.Label.Text = "Iteration"
	p.Y.Label.Text = "Temperature (K)"
	p.Add(plotter.NewGrid())
	if len(diags) == 0 {
		return fmt.Errorf("no iterations to plot")
	}

	tInner := make(plotter.XYs, len(diags))
	for i, d := range diags {
		tInner[i] = plotter.XY{X: float64(d.Iteration), Y: d.NextTInner}
	}
	if err := addLine(p, "T_inner", tInner, color.Black); err != nil {
		return err
	}

	nShells := len(diags[0].Shells)
	colors := generateColors(nShells)
	for s := 0; s < nShells; s++ {
		pts := make(plotter.XYs, 0, len(diags))
		for _, d := range diags {
			if s < len(d.Shells) {
				pts = append(pts, plotter.XY{X: float64(d.Iteration), Y: d.Shells[s].TRad})
			}
		}
		if err := addLine(p, fmt.Sprintf("shell %d", s), pts, colors[s]); err != nil {
			return fmt.Errorf("shell %d: %w", s, err)
		}
	}
	legendTopRight(p)
	return writePNG(w, p)
}

// generateColors returns n colours spread evenly in hue.
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}
	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		r, g, b := hslToRGB(float64(i)/float64(n), 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL in [0,1] to 8-bit RGB.
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	if s == 0 {
		v := uint8(l * 255)
		return v, v, v
	}
	q := l + s - l*s
	if l < 0.5 {
		q = l * (1 + s)
	}
	p := 2*l - q
	return uint8(hueToRGB(p, q, h+1.0/3) * 255), uint8(hueToRGB(p, q, h) * 255), uint8(hueToRGB(p, q, h-1.0/3) * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6:
		return p + (q-p)*6*t
	case t < 0.5:
		return q
	case t < 2.0/3:
		return p + (q-p)*(2.0/3-t)*6
	}
	return p
}
