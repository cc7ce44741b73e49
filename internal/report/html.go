package report

import (
	"bytes"
	"fmt"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/rotvar/internal/fsutil"
)

// magnitudeChart is the std dev against period of every summary row of one
// magnitude.
type magnitudeChart struct {
	Magnitude float64
	Series    []series
}

// renderHTMLPage draws one interactive line chart per magnitude.
func renderHTMLPage(title string, periods []float64, mags []magnitudeChart) ([]byte, error) {
	x := make([]string, len(periods))
	for i, p := range periods {
		x[i] = periodLabel(p)
	}

	page := components.NewPage()
	page.PageTitle = title
	for _, m := range mags {
		line := charts.NewLine()
		line.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "520px"}),
			charts.WithTitleOpts(opts.Title{Title: "M" + num(m.Magnitude) + " Variability", Subtitle: title}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
			charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
			charts.WithXAxisOpts(opts.XAxis{Name: "Period", NameLocation: "middle", NameGap: 25}),
			charts.WithYAxisOpts(opts.YAxis{Name: "Std. Dev.", Min: 0, NameLocation: "middle", NameGap: 35}),
		)
		line.SetXAxis(x)
		for _, s := range m.Series {
			data := make([]opts.LineData, len(s.Values))
			for i, v := range s.Values {
				data[i] = opts.LineData{Value: math.Round(v*1000) / 1000}
			}
			line.AddSeries(s.Name, data, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)}))
		}
		page.AddCharts(line)
	}

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return nil, fmt.Errorf("render html page: %w", err)
	}
	return buf.Bytes(), nil
}

func writeHTMLPage(fsys fsutil.FileSystem, path, title string, periods []float64, mags []magnitudeChart) error {
	data, err := renderHTMLPage(title, periods, mags)
	if err != nil {
		return err
	}
	if err := fsys.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
