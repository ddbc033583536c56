// Package report writes the human-readable processing report for a run:
// parameters, generated products, and an elevation histogram of the
// bare-earth grid, rendered as a standalone HTML page.
package report

import (
	"fmt"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/relief.report/internal/raster"
)

// Data collects everything the report page shows.
type Data struct {
	RunID          string
	Input          string
	OutputDir      string
	Resolution     float64
	Method         string
	TerrainProfile string
	TileCount      int
	Advanced       bool

	Products  []raster.Product
	Elevation *raster.Summary // nil when the ASC export was unavailable
	HistEdges []float64
	HistBins  []int
}

// Write renders the report page to path.
func Write(d Data, path string) error {
	page := components.NewPage()
	page.PageTitle = "LiDAR Relief Processing Report"

	if chart := elevationChart(d); chart != nil {
		page.AddCharts(chart)
	}
	page.AddCharts(productChart(d))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer f.Close()

	if err := page.Render(f); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

// elevationChart plots the bare-earth elevation histogram.
func elevationChart(d Data) components.Charter {
	if d.Elevation == nil || len(d.HistBins) == 0 {
		return nil
	}

	x := make([]string, len(d.HistBins))
	y := make([]opts.BarData, len(d.HistBins))
	for i, count := range d.HistBins {
		x[i] = fmt.Sprintf("%.1f", d.HistEdges[i])
		y[i] = opts.BarData{Value: count}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: "Bare-earth elevation distribution",
			Subtitle: fmt.Sprintf("min %.2f / median %.2f / max %.2f m, %d valid cells",
				d.Elevation.Min, d.Elevation.Median, d.Elevation.Max, d.Elevation.ValidCells),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).AddSeries("cells", y)
	return bar
}

// productChart lists generated products by file size.
func productChart(d Data) components.Charter {
	x := make([]string, 0, len(d.Products))
	y := make([]opts.BarData, 0, len(d.Products))
	for _, p := range d.Products {
		size := int64(0)
		if st, err := os.Stat(p.Path); err == nil {
			size = st.Size()
		}
		x = append(x, p.Name)
		y = append(y, opts.BarData{Value: float64(size) / (1024 * 1024)})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: "Generated products (MB)",
			Subtitle: fmt.Sprintf("run %s | %s | %.2fm | %s/%s | %d tiles",
				d.RunID, d.OutputDir, d.Resolution, d.Method, d.TerrainProfile, d.TileCount),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("size", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}
