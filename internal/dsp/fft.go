package dsp

import (
	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/banshee-data/sarsim/internal/artifact"
)

// FFT returns the n-point DFT of a waveform as an n x 1 vector. Shorter
// waveforms are zero-padded; longer ones are truncated.
func (p *Processor) FFT(waveform artifact.Matrix, n int) (artifact.Matrix, error) {
	if n < 1 {
		return artifact.Matrix{}, badInput("fft length must be positive, got %d", n)
	}
	if waveform.Len() == 0 {
		return artifact.Matrix{}, badInput("fft of empty waveform")
	}
	return artifact.Vector(transform(waveform.Data, n)), nil
}

// Spectrum2D returns the 2-D DFT of image: a DFT along every row followed
// by a DFT along every column.
func (p *Processor) Spectrum2D(image artifact.Matrix) (artifact.Matrix, error) {
	if image.Rows == 0 || image.Cols == 0 || image.Len() != image.Rows*image.Cols {
		return artifact.Matrix{}, badInput("spectrum of %dx%d image with %d samples", image.Rows, image.Cols, image.Len())
	}

	out := image.Clone()
	rowFFT := fourier.NewCmplxFFT(out.Cols)
	for r := 0; r < out.Rows; r++ {
		row := out.Row(r)
		rowFFT.Coefficients(row, row)
	}

	colFFT := fourier.NewCmplxFFT(out.Rows)
	col := make([]complex128, out.Rows)
	for c := 0; c < out.Cols; c++ {
		for r := range col {
			col[r] = out.At(r, c)
		}
		colFFT.Coefficients(col, col)
		for r, v := range col {
			out.Set(r, c, v)
		}
	}
	return out, nil
}
