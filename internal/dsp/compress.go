package dsp

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/sarsim/internal/artifact"
	"github.com/banshee-data/sarsim/internal/sar"
	"github.com/banshee-data/sarsim/internal/units"
)

// CompressPulse correlates the chirp with its matched filter. The
// compressed pulse has len(chirp)+len(match)-1 samples with its peak at
// index len(chirp)-1. The reported resolution is the -3 dB main-lobe width
// converted to slant range.
func (p *Processor) CompressPulse(chirp, match artifact.Matrix, st *sar.State) (sar.PulseCompression, error) {
	if chirp.Len() == 0 || match.Len() == 0 {
		return sar.PulseCompression{}, badInput("pulse compression needs a chirp and a matched filter")
	}
	if st.SampleRateHz <= 0 {
		return sar.PulseCompression{}, badInput("sample rate must be positive, got %v", st.SampleRateHz)
	}

	pulse := convolve(chirp.Data, match.Data)
	width, err := halfPowerWidth(magnitudes(pulse))
	if err != nil {
		return sar.PulseCompression{}, err
	}

	res := width * units.RangeSampleSpacing(st.SampleRateHz)
	logf("compressed pulse main lobe %.2f samples (%.3f m)", width, res)
	return sar.PulseCompression{Pulse: artifact.Vector(pulse), ResolutionM: res}, nil
}

// halfPowerWidth returns the width, in fractional samples, of the main
// lobe of mag measured at 1/sqrt(2) of its peak. Edges are linearly
// interpolated between samples.
func halfPowerWidth(mag []float64) (float64, error) {
	peakIdx := floats.MaxIdx(mag)
	peak := mag[peakIdx]
	if peak == 0 || math.IsNaN(peak) {
		return 0, badInput("compressed pulse has no energy")
	}
	thr := peak / math.Sqrt2

	left := float64(peakIdx)
	for i := peakIdx; i > 0; i-- {
		if mag[i-1] < thr {
			left = float64(i) - (mag[i]-thr)/(mag[i]-mag[i-1])
			break
		}
		left = float64(i - 1)
	}

	right := float64(peakIdx)
	for i := peakIdx; i < len(mag)-1; i++ {
		if mag[i+1] < thr {
			right = float64(i) + (mag[i]-thr)/(mag[i]-mag[i+1])
			break
		}
		right = float64(i + 1)
	}
	return right - left, nil
}

// CompressImage matched-filters every range line of the radar image in
// place. Output bin b holds the correlation peak of an echo that started
// at bin b, so the image keeps its dimensions.
func (p *Processor) CompressImage(image *artifact.Artifact, match artifact.Matrix, st *sar.State) error {
	if image == nil || image.Len() == 0 {
		return badInput("radar image is empty")
	}
	if match.Len() == 0 {
		return badInput("matched filter is empty")
	}

	img := image.Matrix()
	out := artifact.NewMatrix(img.Rows, img.Cols)
	lag := match.Len() - 1
	for r := 0; r < img.Rows; r++ {
		full := convolve(img.Row(r), match.Data)
		copy(out.Row(r), full[lag:lag+img.Cols])
	}
	return image.Replace(out)
}
