package dsp

import (
	"math"

	"github.com/banshee-data/sarsim/internal/artifact"
	"github.com/banshee-data/sarsim/internal/config"
	"github.com/banshee-data/sarsim/internal/sar"
)

// BuildScene returns an empty reflectivity grid with the chirp's samples
// written along its center row, centered horizontally. Samples that do not
// fit in the row are dropped.
func (p *Processor) BuildScene(chirp artifact.Matrix, cfg *config.RadarConfig, st *sar.State) (artifact.Matrix, error) {
	if chirp.Len() == 0 {
		return artifact.Matrix{}, badInput("scene insertion needs a chirp")
	}
	rows, cols := cfg.GetSceneRows(), cfg.GetSceneCols()
	if rows < 1 || cols < 1 {
		return artifact.Matrix{}, badInput("scene must be at least 1x1, got %dx%d", rows, cols)
	}

	scene := artifact.NewMatrix(rows, cols)
	center := rows / 2
	start := (cols - chirp.Len()) / 2
	for i, v := range chirp.Data {
		c := start + i
		if c >= 0 && c < cols {
			scene.Set(center, c, v)
		}
	}

	st.SceneRows, st.SceneCols = rows, cols
	st.SceneSpacingM = cfg.GetSceneSpacingM()
	return scene, nil
}

// Image simulates a stripmap pass over scene. Each scan position receives
// the sum of chirp echoes from every reflector inside the beam, delayed by
// the reflector's slant range and rotated by its two-way carrier phase.
// The result is ScanPositions x RangeBins; st.NearRangeM is set to the
// slant range of the first bin.
func (p *Processor) Image(scene artifact.Matrix, cfg *config.RadarConfig, st *sar.State) (artifact.Matrix, error) {
	if scene.Rows != st.SceneRows || scene.Cols != st.SceneCols || scene.Len() != scene.Rows*scene.Cols {
		return artifact.Matrix{}, badInput("scene is %dx%d, state expects %dx%d", scene.Rows, scene.Cols, st.SceneRows, st.SceneCols)
	}
	chirp, err := p.GenerateChirp(cfg, st)
	if err != nil {
		return artifact.Matrix{}, err
	}

	positions, bins := st.ScanPositions, st.RangeBins
	if positions < 1 || bins < 1 {
		return artifact.Matrix{}, badInput("need at least one scan position and range bin, got %d and %d", positions, bins)
	}
	st.NearRangeM = nearRange(st)

	halfBeam := cfg.GetBeamwidthDeg() / 2 * math.Pi / 180
	wavelength := carrierWavelength(cfg)
	img := artifact.NewMatrix(positions, bins)
	dropped := 0

	for i := 0; i < positions; i++ {
		line := img.Row(i)
		px := st.PlatformX(i)
		for r := 0; r < scene.Rows; r++ {
			for c := 0; c < scene.Cols; c++ {
				sigma := scene.At(r, c)
				if sigma == 0 {
					continue
				}
				x, y := st.PixelPosition(r, c)
				ground := math.Hypot(y, st.AltitudeM)
				if math.Abs(math.Atan2(x-px, ground)) > halfBeam {
					continue
				}
				rng := st.SlantRange(i, r, c)
				delay := st.RangeBin(rng)
				b0 := int(math.Floor(delay))
				if b0 >= bins {
					dropped++
					continue
				}
				// Fractional delays are split linearly between two bins.
				frac := delay - float64(b0)
				echo := sigma * twoWayPhase(rng, wavelength)
				near, far := echo*complex(1-frac, 0), echo*complex(frac, 0)
				for k, s := range chirp.Data {
					if b := b0 + k; b >= 0 && b < bins {
						line[b] += near * s
					}
					if b := b0 + k + 1; b >= 0 && b < bins {
						line[b] += far * s
					}
				}
			}
		}
	}

	if dropped > 0 {
		logf("%d echoes fell beyond the last of %d range bins", dropped, bins)
	}
	return img, nil
}

// nearRange is the shortest slant range between the track and the scene.
func nearRange(st *sar.State) float64 {
	near := math.Inf(1)
	for i := 0; i < st.ScanPositions; i++ {
		for r := 0; r < st.SceneRows; r++ {
			for c := 0; c < st.SceneCols; c++ {
				near = math.Min(near, st.SlantRange(i, r, c))
			}
		}
	}
	return near
}
