package report

import (
	"fmt"
	"math"
	"math/cmplx"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/sarsim/internal/artifact"
	"github.com/banshee-data/sarsim/internal/fsutil"
	"github.com/banshee-data/sarsim/internal/sar"
)

// maxHeatmapSide bounds each heatmap axis; larger images are decimated.
const maxHeatmapSide = 128

var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// Summary is the run information shown in the report header.
type Summary struct {
	RunID           string
	Mode            string
	OutputPath      string
	RangeResolution string
}

// WriteHTMLReport writes a self-contained echarts page to path: a heatmap
// of the backprojected image magnitude (dB) and a bar chart of the sample
// count of every artifact in store. A nil fs writes to the OS filesystem.
func WriteHTMLReport(fs fsutil.FileSystem, store *artifact.Store, path string, summary Summary) error {
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}

	page := components.NewPage()
	page.SetPageTitle("SAR run " + summary.RunID)

	if img, ok := store.Lookup(sar.GBPImage); ok && img.Len() > 0 {
		page.AddCharts(imageHeatmap(img.Matrix(), summary))
	}
	page.AddCharts(artifactBar(store, summary))

	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := page.Render(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to render report: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close report: %w", err)
	}
	logf("wrote report %s", path)
	return nil
}

func imageHeatmap(img artifact.Matrix, summary Summary) *charts.HeatMap {
	stride := 1
	for img.Rows/stride > maxHeatmapSide || img.Cols/stride > maxHeatmapSide {
		stride++
	}

	peak, _ := img.Peak()
	floor := -60.0
	var xs, ys []int
	for c := 0; c < img.Cols; c += stride {
		xs = append(xs, c)
	}
	for r := 0; r < img.Rows; r += stride {
		ys = append(ys, r)
	}

	data := make([]opts.HeatMapData, 0, len(xs)*len(ys))
	for yi, r := range ys {
		for xi, c := range xs {
			db := floor
			if peak > 0 {
				if a := cmplx.Abs(img.At(r, c)); a > 0 {
					db = math.Max(floor, 20*math.Log10(a/peak))
				}
			}
			data = append(data, opts.HeatMapData{Value: [3]interface{}{xi, yi, math.Round(db*10) / 10}})
		}
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "800px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Backprojected image",
			Subtitle: fmt.Sprintf("mode=%s %dx%d stride=%d resolution=%s", summary.Mode, img.Rows, img.Cols, stride, summary.RangeResolution),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: xs, Name: "Column"}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: ys, Name: "Row"}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(floor),
			Max:        0,
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	hm.AddSeries("gbp_image dB", data)
	return hm
}

func artifactBar(store *artifact.Store, summary Summary) *charts.Bar {
	names := store.Names()
	data := make([]opts.BarData, 0, len(names))
	for _, a := range store.Artifacts() {
		data = append(data, opts.BarData{Name: a.Name(), Value: a.Len()})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Artifacts", Subtitle: fmt.Sprintf("run=%s output=%s", summary.RunID, summary.OutputPath)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(names).AddSeries("samples", data,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
	)
	return bar
}
