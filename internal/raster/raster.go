// Package raster holds the value types shared by the derivation pipeline:
// georeferenced product descriptors, grid footprints, and parsers for the
// metadata formats the external engines emit.
package raster

import (
	"fmt"
	"math"
)

// Default nodata sentinel used for every float grid the pipeline writes.
const NoDataValue = -9999.0

// PixelType is the sample type of a raster product.
type PixelType string

const (
	PixelFloat32 PixelType = "float32"
	PixelByte    PixelType = "byte"
)

// Footprint is the spatial frame of a grid: origin, cell size and pixel
// dimensions. Derivative rasters must carry their source DTM's footprint
// exactly so later band fusion stays pixel-aligned.
type Footprint struct {
	OriginX float64
	OriginY float64
	PixelW  float64
	PixelH  float64
	Width   int
	Height  int
}

// footprintEps absorbs float noise in geotransforms round-tripped through
// tool output. Anything larger is a real misalignment.
const footprintEps = 1e-6

// Equal reports whether two footprints describe the same grid frame.
func (f Footprint) Equal(o Footprint) bool {
	return f.Width == o.Width && f.Height == o.Height &&
		math.Abs(f.OriginX-o.OriginX) < footprintEps &&
		math.Abs(f.OriginY-o.OriginY) < footprintEps &&
		math.Abs(f.PixelW-o.PixelW) < footprintEps &&
		math.Abs(f.PixelH-o.PixelH) < footprintEps
}

func (f Footprint) String() string {
	return fmt.Sprintf("%dx%d @ (%.3f, %.3f) cell %.3fx%.3f",
		f.Width, f.Height, f.OriginX, f.OriginY, f.PixelW, f.PixelH)
}

// Product describes one georeferenced output raster.
type Product struct {
	Name      string
	Path      string
	PixelType PixelType
	NoData    float64
}
