package dsp

import (
	"math"
	"math/cmplx"

	"github.com/banshee-data/sarsim/internal/artifact"
	"github.com/banshee-data/sarsim/internal/config"
	"github.com/banshee-data/sarsim/internal/sar"
)

// GenerateChirp synthesizes a complex baseband linear-FM pulse sweeping
// from the start frequency across the configured bandwidth. The result is
// a ChirpSamples x 1 column vector; st.ChirpSamples is updated to match.
func (p *Processor) GenerateChirp(cfg *config.RadarConfig, st *sar.State) (artifact.Matrix, error) {
	n := cfg.ChirpSamples()
	if n < 2 {
		return artifact.Matrix{}, badInput("chirp needs at least 2 samples, got %d", n)
	}

	fs := cfg.GetSampleRateHz()
	f0 := cfg.GetStartFrequencyHz()
	rate := cfg.GetBandwidthHz() / cfg.GetPulseDurationS()

	data := make([]complex128, n)
	for i := range data {
		t := float64(i) / fs
		data[i] = cmplx.Rect(1, 2*math.Pi*(f0*t+0.5*rate*t*t))
	}

	st.ChirpSamples = n
	st.SampleRateHz = fs
	st.BandwidthHz = cfg.GetBandwidthHz()
	logf("generated %d-sample chirp (B=%.3g Hz, fs=%.3g Hz)", n, st.BandwidthHz, fs)
	return artifact.Vector(data), nil
}

// GenerateMatchedChirp returns the matched filter for the chirp: its
// time-reversed complex conjugate.
func (p *Processor) GenerateMatchedChirp(cfg *config.RadarConfig, st *sar.State) (artifact.Matrix, error) {
	chirp, err := p.GenerateChirp(cfg, st)
	if err != nil {
		return artifact.Matrix{}, err
	}
	return matchedFilter(chirp.Data), nil
}

func matchedFilter(chirp []complex128) artifact.Matrix {
	n := len(chirp)
	data := make([]complex128, n)
	for i, v := range chirp {
		data[n-1-i] = cmplx.Conj(v)
	}
	return artifact.Vector(data)
}
