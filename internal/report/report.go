// Package report renders culling diagnostics to files: statistic
// histograms and fitted-curve plots as PNG, rejection masks as heatmap
// HTML. Rendering is observational only; failures are logged and
// swallowed so a bad plot never aborts a culling run.
package report

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/pulsar.cull/internal/monitoring"
)

const histogramBins = 16

// viridis endpoints for the mask heatmap.
var heatmapColors = []string{"#440154", "#fde725"}

// FileRenderer writes every diagnostic it receives into a single output
// directory, one file per tag.
type FileRenderer struct {
	mu  sync.Mutex
	dir string
}

// NewFileRenderer creates the output directory and returns a renderer
// writing into it.
func NewFileRenderer(dir string) (*FileRenderer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("report: create output dir: %w", err)
	}
	return &FileRenderer{dir: dir}, nil
}

// Dir returns the output directory.
func (r *FileRenderer) Dir() string { return r.dir }

// Histogram plots the distribution of a rejection statistic with its
// fitted normal density overlaid. NaN samples (excised cells) are left
// out of the histogram.
func (r *FileRenderer) Histogram(tag string, samples []float64, mean, stddev float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	finite := make(plotter.Values, 0, len(samples))
	for _, v := range samples {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		monitoring.Verbosef("report: no finite samples for %s histogram, skipping", tag)
		return
	}

	p := plot.New()
	p.Title.Text = tag + " distribution"
	p.X.Label.Text = tag
	p.Y.Label.Text = "density"

	hist, err := plotter.NewHist(finite, histogramBins)
	if err != nil {
		monitoring.Logf("report: build %s histogram: %v", tag, err)
		return
	}
	hist.Normalize(1)
	p.Add(hist)

	if stddev > 0 {
		pdf := plotter.NewFunction(func(x float64) float64 {
			d := (x - mean) / stddev
			return math.Exp(-d*d/2) / (stddev * math.Sqrt(2*math.Pi))
		})
		pdf.Color = color.RGBA{R: 255, G: 78, B: 96, A: 255}
		pdf.Width = vg.Points(1)
		p.Add(pdf)
		p.Legend.Add("normal fit", pdf)
	}

	file := filepath.Join(r.dir, tag+"_hist.png")
	if err := p.Save(8*vg.Inch, 5*vg.Inch, file); err != nil {
		monitoring.Logf("report: save %s: %v", file, err)
	}
}

// Curve plots a sequence against a fitted model of it.
func (r *FileRenderer) Curve(tag string, series, fitted []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := plot.New()
	p.Title.Text = tag
	p.X.Label.Text = "bin"
	p.Y.Label.Text = "amplitude"

	dataLine, err := plotter.NewLine(indexedXYs(series))
	if err != nil {
		monitoring.Logf("report: build %s data line: %v", tag, err)
		return
	}
	dataLine.Width = vg.Points(1)
	p.Add(dataLine)
	p.Legend.Add("data", dataLine)

	fitLine, err := plotter.NewLine(indexedXYs(fitted))
	if err != nil {
		monitoring.Logf("report: build %s fit line: %v", tag, err)
		return
	}
	fitLine.Width = vg.Points(1)
	fitLine.Color = color.RGBA{R: 255, G: 78, B: 96, A: 255}
	p.Add(fitLine)
	p.Legend.Add("fit", fitLine)

	file := filepath.Join(r.dir, tag+"_curve.png")
	if err := p.Save(8*vg.Inch, 5*vg.Inch, file); err != nil {
		monitoring.Logf("report: save %s: %v", file, err)
	}
}

// Mask renders the rejection mask as a subint/channel heatmap.
func (r *FileRenderer) Mask(tag string, mask [][]bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	nsubint := len(mask)
	if nsubint == 0 {
		return
	}
	nchan := len(mask[0])

	data := make([]opts.HeatMapData, 0, nsubint*nchan)
	for i, row := range mask {
		for j, rejected := range row {
			v := 0
			if rejected {
				v = 1
			}
			data = append(data, opts.HeatMapData{Value: [3]interface{}{j, i, v}})
		}
	}

	channels := make([]int, nchan)
	for j := range channels {
		channels[j] = j
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: tag + " rejection mask", Width: "900px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: tag + " rejection mask", Subtitle: fmt.Sprintf("%d subints x %d channels", nsubint, nchan)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Name: "channel"}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Name: "subint"}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(false),
			Min:        0,
			Max:        1,
			InRange:    &opts.VisualMapInRange{Color: heatmapColors},
		}),
	)
	hm.SetXAxis(channels).AddSeries(tag, data)

	file := filepath.Join(r.dir, tag+"_mask.html")
	f, err := os.Create(file)
	if err != nil {
		monitoring.Logf("report: create %s: %v", file, err)
		return
	}
	defer f.Close()
	if err := hm.Render(f); err != nil {
		monitoring.Logf("report: render %s: %v", file, err)
	}
}

func indexedXYs(xs []float64) plotter.XYs {
	pts := make(plotter.XYs, 0, len(xs))
	for i, v := range xs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		pts = append(pts, plotter.XY{X: float64(i), Y: v})
	}
	return pts
}
