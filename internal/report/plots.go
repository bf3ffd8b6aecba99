// Package report renders run artifacts as PNG plots and an HTML report.
package report

import (
	"fmt"
	"image/color"
	"math"
	"math/cmplx"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/sarsim/internal/artifact"
	"github.com/banshee-data/sarsim/internal/monitoring"
	"github.com/banshee-data/sarsim/internal/sar"
)

var logf = monitoring.Component("Report")

var (
	realColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	imagColor = color.RGBA{R: 255, G: 127, B: 14, A: 255}
	magColor  = color.RGBA{R: 44, G: 160, B: 44, A: 255}
)

// series is one line of a waveform plot.
type series struct {
	label string
	color color.Color
	value func(complex128) float64
}

// waveformPlot describes one PNG written by WriteWaveformPlots.
type waveformPlot struct {
	artifact string
	file     string
	title    string
	xLabel   string
	yLabel   string
	lines    []series
}

var waveformPlots = []waveformPlot{
	{
		artifact: sar.Chirp,
		file:     "chirp.png",
		title:    "Transmitted chirp",
		xLabel:   "Sample",
		yLabel:   "Amplitude",
		lines: []series{
			{"real", realColor, func(v complex128) float64 { return real(v) }},
			{"imag", imagColor, func(v complex128) float64 { return imag(v) }},
		},
	},
	{
		artifact: sar.CompressedPulse,
		file:     "compressed_pulse.png",
		title:    "Compressed pulse",
		xLabel:   "Lag (samples)",
		yLabel:   "Magnitude (dB)",
		lines:    []series{{"|p|", magColor, decibels}},
	},
	{
		artifact: sar.ChirpFFT,
		file:     "chirp_spectrum.png",
		title:    "Chirp spectrum",
		xLabel:   "Frequency bin",
		yLabel:   "Magnitude",
		lines:    []series{{"|X|", magColor, cmplx.Abs}},
	},
}

// decibels returns 20 log10 |v|, floored at -120 dB.
func decibels(v complex128) float64 {
	a := cmplx.Abs(v)
	if a < 1e-6 {
		return -120
	}
	return 20 * math.Log10(a)
}

// WriteWaveformPlots writes a PNG line plot into dir for each waveform
// artifact present in store: the chirp's real and imaginary parts, the
// compressed pulse magnitude and the chirp spectrum magnitude. It returns
// the paths written.
func WriteWaveformPlots(store *artifact.Store, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create plot directory: %w", err)
	}

	var written []string
	for _, wp := range waveformPlots {
		a, ok := store.Lookup(wp.artifact)
		if !ok || a.Len() == 0 {
			continue
		}
		path := filepath.Join(dir, wp.file)
		if err := savePlot(wp, a.Data, path); err != nil {
			return written, fmt.Errorf("failed to plot %s: %w", wp.artifact, err)
		}
		written = append(written, path)
	}
	logf("wrote %d waveform plots to %s", len(written), dir)
	return written, nil
}

func savePlot(wp waveformPlot, data []complex128, path string) error {
	p := plot.New()
	p.Title.Text = wp.title
	p.X.Label.Text = wp.xLabel
	p.Y.Label.Text = wp.yLabel

	for _, s := range wp.lines {
		pts := make(plotter.XYs, len(data))
		for i, v := range data {
			pts[i] = plotter.XY{X: float64(i), Y: s.value(v)}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = s.color
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(s.label, line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	return p.Save(10*vg.Inch, 4*vg.Inch, path)
}
