package report

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/rotvar/internal/fsutil"
)

const (
	histDelta = 0.05
	// heatmapColors is the number of palette steps used for mag-dist plots.
	heatmapColors = 255
)

// series is one named line of a period-dependent std dev plot.
type series struct {
	Name   string
	Values []float64
}

// savePlot renders p as a PNG into fsys.
func savePlot(fsys fsutil.FileSystem, path string, p *plot.Plot, w, h vg.Length) error {
	wt, err := p.WriterTo(w, h, "png")
	if err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := wt.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func newPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p
}

func periodXYs(periods, values []float64) plotter.XYs {
	pts := make(plotter.XYs, len(periods))
	for i := range periods {
		pts[i] = plotter.XY{X: periods[i], Y: values[i]}
	}
	return pts
}

// plotStdDevs draws one thin line per site and a thick black total line of
// std dev against period.
func plotStdDevs(fsys fsutil.FileSystem, path, title string, periods []float64, sites []series, total series) error {
	p := newPlot(title, "Period (s)", "Standard Deviation")
	colors := generateColors(len(sites))
	for i, s := range sites {
		l, err := plotter.NewLine(periodXYs(periods, s.Values))
		if err != nil {
			return fmt.Errorf("%s line: %w", s.Name, err)
		}
		l.Color = colors[i]
		l.Width = vg.Points(1.5)
		p.Add(l)
		p.Legend.Add(s.Name, l)
	}
	l, pts, err := plotter.NewLinePoints(periodXYs(periods, total.Values))
	if err != nil {
		return fmt.Errorf("%s line: %w", total.Name, err)
	}
	l.Color = color.Black
	l.Width = vg.Points(3)
	pts.GlyphStyle.Shape = draw.CircleGlyph{}
	pts.GlyphStyle.Color = color.Black
	pts.GlyphStyle.Radius = vg.Points(3)
	p.Add(l, pts)
	p.Legend.Add(total.Name, l, pts)

	p.X.Min, p.X.Max = periods[0], periods[len(periods)-1]
	p.Y.Min, p.Y.Max = 0, 1
	return savePlot(fsys, path, p, 8*vg.Inch, 6*vg.Inch)
}

// stdDevHistogram bins std devs into bins of width histDelta centred on 0,
// 0.05, ..., 1 and normalises the weights to sum to one. Values outside
// [0, 1] land in the end bins.
func stdDevHistogram(stdDevs []float64) []plotter.HistogramBin {
	n := int(math.Round(1/histDelta)) + 1
	bins := make([]plotter.HistogramBin, n)
	for i := range bins {
		c := float64(i) * histDelta
		bins[i] = plotter.HistogramBin{Min: c - histDelta/2, Max: c + histDelta/2}
	}
	for _, sd := range stdDevs {
		i := int(math.Round(sd / histDelta))
		i = min(max(i, 0), n-1)
		bins[i].Weight++
	}
	if len(stdDevs) > 0 {
		for i := range bins {
			bins[i].Weight /= float64(len(stdDevs))
		}
	}
	return bins
}

func verticalLine(x float64) (*plotter.Line, error) {
	return plotter.NewLine(plotter.XYs{{X: x, Y: 0}, {X: x, Y: 1}})
}

// plotStdDevHistogram draws the distribution of per-group std devs with a
// vertical line at each site's total and a thick line at the overall total.
func plotStdDevHistogram(fsys fsutil.FileSystem, path, title string, groupStdDevs []float64, total float64, sites []string, siteTotals []float64) error {
	p := newPlot(title, "Standard Deviation", "")
	h := &plotter.Histogram{
		Bins:      stdDevHistogram(groupStdDevs),
		Width:     histDelta,
		FillColor: color.Gray{Y: 160},
		LineStyle: plotter.DefaultLineStyle,
	}
	p.Add(h)
	p.Legend.Add("Total Histogram", h)

	colors := generateColors(len(sites))
	for i, name := range sites {
		l, err := verticalLine(siteTotals[i])
		if err != nil {
			return err
		}
		l.Color = colors[i]
		l.Width = vg.Points(1.5)
		p.Add(l)
		p.Legend.Add(name, l)
	}
	l, err := verticalLine(total)
	if err != nil {
		return err
	}
	l.Color = color.Black
	l.Width = vg.Points(4)
	p.Add(l)
	p.Legend.Add("Total", l)

	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1
	return savePlot(fsys, path, p, 8*vg.Inch, 4.5*vg.Inch)
}

// plotScatter draws ys against xs with crosses. A log y axis is padded when
// every value is equal.
func plotScatter(fsys fsutil.FileSystem, path, title, xLabel, yLabel string, xs, ys []float64, logY bool) error {
	p := newPlot(title, xLabel, yLabel)
	pts := make(plotter.XYs, len(xs))
	for i := range xs {
		pts[i] = plotter.XY{X: xs[i], Y: ys[i]}
	}
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("scatter: %w", err)
	}
	s.GlyphStyle.Shape = draw.CrossGlyph{}
	s.GlyphStyle.Color = color.Black
	s.GlyphStyle.Radius = vg.Points(3)
	p.Add(s)
	if logY {
		p.Y.Scale = plot.LogScale{}
		p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
		if p.Y.Min == p.Y.Max {
			p.Y.Min, p.Y.Max = p.Y.Min/2, p.Y.Max*2
		}
	} else {
		p.Y.Min, p.Y.Max = 0, 1
	}
	return savePlot(fsys, path, p, 8*vg.Inch, 4.5*vg.Inch)
}

// magDistGrid is a magnitude (rows) by distance (columns) grid of values.
// It implements plotter.GridXYZ.
type magDistGrid struct {
	dists []float64
	mags  []float64
	z     [][]float64 // z[mag][dist]
}

func newMagDistGrid(dists, mags []float64) *magDistGrid {
	g := &magDistGrid{dists: dists, mags: mags, z: make([][]float64, len(mags))}
	for i := range g.z {
		g.z[i] = make([]float64, len(dists))
		for j := range g.z[i] {
			g.z[i][j] = math.NaN()
		}
	}
	return g
}

func (g *magDistGrid) Dims() (c, r int)   { return len(g.dists), len(g.mags) }
func (g *magDistGrid) Z(c, r int) float64 { return g.z[r][c] }
func (g *magDistGrid) X(c int) float64    { return g.dists[c] }
func (g *magDistGrid) Y(r int) float64    { return g.mags[r] }

func (g *magDistGrid) set(distIdx, magIdx int, v float64) { g.z[magIdx][distIdx] = v }

// plotMagDist draws a checkerboard of values coloured by cm over [lo, hi].
// Values outside the range take the end colours.
func plotMagDist(fsys fsutil.FileSystem, path, title, xLabel, zLabel string, g *magDistGrid, cm palette.ColorMap, lo, hi float64) error {
	cm.SetMin(lo)
	cm.SetMax(hi)
	pal := cm.Palette(heatmapColors)
	h := plotter.NewHeatMap(g, pal)
	h.Min, h.Max = lo, hi
	colors := pal.Colors()
	h.Underflow = colors[0]
	h.Overflow = colors[len(colors)-1]

	p := newPlot(title+"\n"+zLabel, xLabel, "Magnitude")
	p.Add(h)
	return savePlot(fsys, path, p, 7*vg.Inch, 5.5*vg.Inch)
}

// generateColors returns n evenly spaced hues.
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}
	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	if s == 0 {
		v := uint8(l * 255)
		return v, v, v
	}
	q := l + s - l*s
	if l < 0.5 {
		q = l * (1 + s)
	}
	p := 2*l - q
	return uint8(hueToRGB(p, q, h+1.0/3.0) * 255),
		uint8(hueToRGB(p, q, h) * 255),
		uint8(hueToRGB(p, q, h-1.0/3.0) * 255)
}

func hueToRGB(p, q, t float64) float64 {
	switch {
	case t < 0:
		t += 1
	case t > 1:
		t -= 1
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 1.0/2.0:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
