// Package dsp provides the reference signal-processing stages of a SAR run:
// linear-FM chirp synthesis, FFT-based pulse compression, scene insertion,
// a stripmap radar imager, CinSnow denoising, global backprojection and
// 2-D spectra.
//
// The kernels favor clarity over speed. All of them operate on
// artifact.Matrix values and report ill-shaped input as ErrBadInput.
package dsp

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/banshee-data/sarsim/internal/config"
	"github.com/banshee-data/sarsim/internal/monitoring"
	"github.com/banshee-data/sarsim/internal/units"
)

var logf = monitoring.Component("DSP")

// ErrBadInput is returned when a stage receives a missing or ill-shaped
// artifact.
var ErrBadInput = errors.New("invalid stage input")

func badInput(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrBadInput, fmt.Sprintf(format, args...))
}

// Processor implements every processing stage interface of the pipeline.
// It is stateless; a zero Processor is ready to use.
type Processor struct{}

// New returns a Processor.
func New() *Processor { return &Processor{} }

// transform returns the n-point DFT of data, zero-padded or truncated to n.
func transform(data []complex128, n int) []complex128 {
	seq := make([]complex128, n)
	copy(seq, data)
	return fourier.NewCmplxFFT(n).Coefficients(nil, seq)
}

// inverse returns the normalized inverse DFT of coeff.
func inverse(coeff []complex128) []complex128 {
	n := len(coeff)
	out := fourier.NewCmplxFFT(n).Sequence(nil, coeff)
	scale := complex(1/float64(n), 0)
	for i := range out {
		out[i] *= scale
	}
	return out
}

// convolve returns the full linear convolution of x and h, computed in the
// frequency domain. The result has len(x)+len(h)-1 samples.
func convolve(x, h []complex128) []complex128 {
	n := len(x) + len(h) - 1
	X := transform(x, n)
	H := transform(h, n)
	for i := range X {
		X[i] *= H[i]
	}
	return inverse(X)
}

func magnitudes(data []complex128) []float64 {
	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = cmplx.Abs(v)
	}
	return out
}

// carrierWavelength is the wavelength at the chirp's center frequency.
func carrierWavelength(cfg *config.RadarConfig) float64 {
	fc := cfg.GetStartFrequencyHz() + cfg.GetBandwidthHz()/2
	return units.SpeedOfLight / fc
}

// twoWayPhase is the round-trip carrier phase term for slant range r.
func twoWayPhase(r, wavelength float64) complex128 {
	return cmplx.Rect(1, -4*math.Pi*r/wavelength)
}
