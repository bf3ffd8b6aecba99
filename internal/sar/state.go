// Package sar holds the mutable working state threaded through every stage
// of a run, and the geometry helpers stages share.
package sar

import (
	"math"

	"github.com/banshee-data/sarsim/internal/config"
	"github.com/banshee-data/sarsim/internal/units"
)

// State is the working state of one run. It is created from the immutable
// RadarConfig and Options before the first stage and is passed by pointer
// to each stage, which may record values later stages need.
type State struct {
	Mode       config.Mode
	InputPath  string
	OutputPath string

	// Scene grid in use. The file reader overwrites these in process mode.
	SceneRows     int
	SceneCols     int
	SceneSpacingM float64

	// Chirp parameters.
	ChirpSamples int
	SampleRateHz float64
	BandwidthHz  float64

	// Scan geometry. The platform flies along x at AltitudeM; the scene
	// lies on the ground plane centered at (0, AltitudeM).
	AltitudeM     float64
	ScanPositions int
	ScanSpacingM  float64
	RangeBins     int
	// NearRangeM is the slant range of the first range bin, set by the
	// radar imager (or restored by the file reader).
	NearRangeM float64

	// RangeResolutionM is the measured resolution of the compressed pulse.
	RangeResolutionM float64

	// History of in-place transformations applied to the radar image.
	Denoised        bool
	PulseCompressed bool
}

// NewState seeds a working state from the run configuration.
func NewState(cfg *config.RadarConfig, opts config.Options) *State {
	return &State{
		Mode:          opts.Mode,
		InputPath:     opts.InputPath,
		OutputPath:    opts.OutputPath,
		SceneRows:     cfg.GetSceneRows(),
		SceneCols:     cfg.GetSceneCols(),
		SceneSpacingM: cfg.GetSceneSpacingM(),
		ChirpSamples:  cfg.ChirpSamples(),
		SampleRateHz:  cfg.GetSampleRateHz(),
		BandwidthHz:   cfg.GetBandwidthHz(),
		AltitudeM:     cfg.GetAltitudeM(),
		ScanPositions: cfg.GetScanPositions(),
		ScanSpacingM:  cfg.GetScanSpacingM(),
		RangeBins:     cfg.GetRangeBins(),
	}
}

// RangeBinSpacingM is the slant-range distance between adjacent samples.
func (s *State) RangeBinSpacingM() float64 {
	return units.RangeSampleSpacing(s.SampleRateHz)
}

// PlatformX returns the along-track position of scan position i. The
// track is centered on x = 0.
func (s *State) PlatformX(i int) float64 {
	return (float64(i) - float64(s.ScanPositions-1)/2) * s.ScanSpacingM
}

// PixelPosition returns the ground coordinates of scene pixel (r, c).
func (s *State) PixelPosition(r, c int) (x, y float64) {
	x = (float64(c) - float64(s.SceneCols-1)/2) * s.SceneSpacingM
	y = s.AltitudeM + (float64(r)-float64(s.SceneRows-1)/2)*s.SceneSpacingM
	return x, y
}

// SlantRange returns the distance from scan position i to scene pixel (r, c).
func (s *State) SlantRange(i, r, c int) float64 {
	x, y := s.PixelPosition(r, c)
	dx := x - s.PlatformX(i)
	return math.Sqrt(dx*dx + y*y + s.AltitudeM*s.AltitudeM)
}

// RangeBin maps a slant range to a fractional range-bin index.
func (s *State) RangeBin(rangeM float64) float64 {
	return (rangeM - s.NearRangeM) / s.RangeBinSpacingM()
}
