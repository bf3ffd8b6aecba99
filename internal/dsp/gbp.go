package dsp

import (
	"math"
	"math/cmplx"

	"github.com/banshee-data/sarsim/internal/artifact"
	"github.com/banshee-data/sarsim/internal/config"
	"github.com/banshee-data/sarsim/internal/sar"
)

// Backproject forms a SceneRows x SceneCols image from the radar image by
// global backprojection: for every pixel, the range line of each scan
// position is sampled at the pixel's slant range (linear interpolation
// between bins), phase-corrected, and summed coherently.
func (p *Processor) Backproject(image artifact.Matrix, cfg *config.RadarConfig, st *sar.State) (artifact.Matrix, error) {
	if image.Len() == 0 || image.Len() != image.Rows*image.Cols {
		return artifact.Matrix{}, badInput("radar image is empty or ill-shaped")
	}
	if image.Rows != st.ScanPositions {
		return artifact.Matrix{}, badInput("radar image has %d scan positions, state expects %d", image.Rows, st.ScanPositions)
	}
	if st.SceneRows < 1 || st.SceneCols < 1 {
		return artifact.Matrix{}, badInput("scene must be at least 1x1, got %dx%d", st.SceneRows, st.SceneCols)
	}

	wavelength := carrierWavelength(cfg)
	out := artifact.NewMatrix(st.SceneRows, st.SceneCols)
	last := float64(image.Cols - 1)

	for r := 0; r < st.SceneRows; r++ {
		for c := 0; c < st.SceneCols; c++ {
			var acc complex128
			for i := 0; i < image.Rows; i++ {
				rng := st.SlantRange(i, r, c)
				b := st.RangeBin(rng)
				if b < 0 || b > last {
					continue
				}
				acc += sampleAt(image.Row(i), b) * cmplx.Conj(twoWayPhase(rng, wavelength))
			}
			out.Set(r, c, acc)
		}
	}

	peak, idx := out.Peak()
	if idx >= 0 {
		logf("backprojection peak %.4g at (%d, %d)", peak, idx/out.Cols, idx%out.Cols)
	}
	return out, nil
}

// sampleAt linearly interpolates line at fractional index b, which must be
// within [0, len(line)-1].
func sampleAt(line []complex128, b float64) complex128 {
	i := int(math.Floor(b))
	if i >= len(line)-1 {
		return line[len(line)-1]
	}
	frac := b - float64(i)
	return line[i]*complex(1-frac, 0) + line[i+1]*complex(frac, 0)
}
