package quicklook

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/relief.report/internal/raster"
)

func testGrid() *raster.Grid {
	return &raster.Grid{
		Cols: 4, Rows: 3,
		XLL: 500000, YLL: 4100000, CellSize: 0.5,
		NoData: -9999,
		Values: []float64{
			10, 11, 12, 13,
			14, -9999, 16, 17,
			18, 19, 20, 21,
		},
	}
}

func TestRenderWritesPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preview.png")
	require.NoError(t, Render(testGrid(), "Bare-earth elevation", path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Positive(t, img.Bounds().Dx())
}

func TestRenderAllNoData(t *testing.T) {
	g := &raster.Grid{Cols: 2, Rows: 2, NoData: -9999, CellSize: 1,
		Values: []float64{-9999, -9999, -9999, -9999}}

	err := Render(g, "empty", filepath.Join(t.TempDir(), "preview.png"))
	assert.Error(t, err)
}

func TestGridAdapterOrientation(t *testing.T) {
	e := elevationGrid{g: testGrid(), min: 10}

	c, r := e.Dims()
	assert.Equal(t, 4, c)
	assert.Equal(t, 3, r)

	// Plot row 0 is the bottom of the grid, which is the last file row.
	assert.Equal(t, 18.0, e.Z(0, 0))
	assert.Equal(t, 10.0, e.Z(0, 2))

	// NoData renders at the elevation floor.
	assert.Equal(t, 10.0, e.Z(1, 1))

	// Cell-center coordinates.
	assert.Equal(t, 500000.25, e.X(0))
	assert.Equal(t, 4100000.75, e.Y(1))
}
