package dsp

import (
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/sarsim/internal/artifact"
	"github.com/banshee-data/sarsim/internal/config"
	"github.com/banshee-data/sarsim/internal/sar"
)

// Denoise applies the CinSnow filter to the radar image in place: every
// sample's magnitude is replaced by the median magnitude of its k x k
// neighborhood (k = denoise_kernel, clipped at the edges) while its phase
// is kept. Zero samples take the median with zero phase.
func (p *Processor) Denoise(image *artifact.Artifact, cfg *config.RadarConfig, st *sar.State) error {
	if image == nil || image.Len() == 0 {
		return badInput("radar image is empty")
	}
	k := cfg.GetDenoiseKernel()
	if k < 1 || k%2 == 0 {
		return badInput("denoise kernel must be odd and positive, got %d", k)
	}

	img := image.Matrix()
	mag := magnitudes(img.Data)
	out := artifact.NewMatrix(img.Rows, img.Cols)
	half := k / 2
	window := make([]float64, 0, k*k)

	for r := 0; r < img.Rows; r++ {
		for c := 0; c < img.Cols; c++ {
			window = window[:0]
			for dr := -half; dr <= half; dr++ {
				rr := r + dr
				if rr < 0 || rr >= img.Rows {
					continue
				}
				for dc := -half; dc <= half; dc++ {
					cc := c + dc
					if cc < 0 || cc >= img.Cols {
						continue
					}
					window = append(window, mag[rr*img.Cols+cc])
				}
			}
			sort.Float64s(window)
			med := stat.Quantile(0.5, stat.Empirical, window, nil)

			v := img.At(r, c)
			if v == 0 {
				out.Set(r, c, complex(med, 0))
				continue
			}
			out.Set(r, c, cmplx.Rect(med, cmplx.Phase(v)))
		}
	}

	before := stat.Mean(mag, nil)
	after := stat.Mean(magnitudes(out.Data), nil)
	logf("CinSnow %dx%d: mean magnitude %.4g -> %.4g", k, k, before, after)
	return image.Replace(out)
}
