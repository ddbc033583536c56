// Package quicklook renders a PNG preview of the bare-earth grid so a run's
// output can be sanity-checked without GIS tooling.
package quicklook

import (
	"fmt"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/relief.report/internal/raster"
)

// elevationGrid adapts a raster.Grid to the plotter.GridXYZ interface.
// Grid rows are stored top-first; plot rows run bottom-up.
type elevationGrid struct {
	g   *raster.Grid
	min float64
}

func (e elevationGrid) Dims() (c, r int) { return e.g.Cols, e.g.Rows }

func (e elevationGrid) X(c int) float64 {
	return e.g.XLL + (float64(c)+0.5)*e.g.CellSize
}

func (e elevationGrid) Y(r int) float64 {
	return e.g.YLL + (float64(r)+0.5)*e.g.CellSize
}

func (e elevationGrid) Z(c, r int) float64 {
	v := e.g.Value(c, e.g.Rows-1-r)
	if v == e.g.NoData || math.IsNaN(v) {
		// Render gaps at the elevation floor rather than skewing the palette.
		return e.min
	}
	return v
}

// Render writes a heatmap PNG of the grid to path.
func Render(g *raster.Grid, title, path string) error {
	s := raster.Summarize(g)
	if s.ValidCells == 0 {
		return fmt.Errorf("quicklook: grid has no valid samples")
	}

	pal := moreland.SmoothBlueRed().Palette(255)
	hm := plotter.NewHeatMap(elevationGrid{g: g, min: s.Min}, pal)

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Easting (m)"
	p.Y.Label.Text = "Northing (m)"
	p.Add(hm)

	// Keep the plot roughly proportional to the grid without collapsing
	// narrow strips.
	width := 8 * vg.Inch
	height := vg.Length(float64(width) * float64(g.Rows) / float64(g.Cols))
	if height < 2*vg.Inch {
		height = 2 * vg.Inch
	}
	if height > 16*vg.Inch {
		height = 16 * vg.Inch
	}

	if err := p.Save(width, height, path); err != nil {
		return fmt.Errorf("save quicklook: %w", err)
	}
	return nil
}
