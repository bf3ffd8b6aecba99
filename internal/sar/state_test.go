package sar

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/sarsim/internal/config"
)

func TestNewState_SeedsFromConfig(t *testing.T) {
	cfg := config.EmptyRadarConfig()
	opts := config.Options{Mode: config.ModeProcess, InputPath: "in.dat", OutputPath: "out.dat"}

	st := NewState(cfg, opts)

	assert.Equal(t, config.ModeProcess, st.Mode)
	assert.Equal(t, "in.dat", st.InputPath)
	assert.Equal(t, "out.dat", st.OutputPath)
	assert.Equal(t, cfg.GetSceneRows(), st.SceneRows)
	assert.Equal(t, cfg.ChirpSamples(), st.ChirpSamples)
	assert.Equal(t, cfg.GetRangeBins(), st.RangeBins)
	assert.Zero(t, st.RangeResolutionM)
}

func TestGeometry(t *testing.T) {
	st := &State{
		SceneRows:     3,
		SceneCols:     3,
		SceneSpacingM: 2,
		SampleRateHz:  100e6,
		AltitudeM:     10,
		ScanPositions: 5,
		ScanSpacingM:  1,
	}

	// The track is centered on x = 0.
	assert.InDelta(t, -2.0, st.PlatformX(0), 1e-12)
	assert.InDelta(t, 0.0, st.PlatformX(2), 1e-12)
	assert.InDelta(t, 2.0, st.PlatformX(4), 1e-12)

	x, y := st.PixelPosition(1, 1)
	assert.InDelta(t, 0.0, x, 1e-12)
	assert.InDelta(t, 10.0, y, 1e-12)

	// Center pixel seen from the center of the track.
	assert.InDelta(t, math.Sqrt(200), st.SlantRange(2, 1, 1), 1e-9)

	st.NearRangeM = st.SlantRange(2, 1, 1)
	assert.InDelta(t, 0.0, st.RangeBin(st.NearRangeM), 1e-12)
	assert.InDelta(t, 1.0, st.RangeBin(st.NearRangeM+st.RangeBinSpacingM()), 1e-12)
}
