// Package derive computes scalar derivative rasters from the materialized
// bare-earth grid: canopy height, multi-azimuth hillshade, slope, curvature
// and (when the advanced engine is present) sky-view-factor and local relief
// model. Inputs are immutable; every operation writes a new raster that
// preserves the source grid's footprint exactly.
package derive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/banshee-data/relief.report/internal/engine"
	"github.com/banshee-data/relief.report/internal/raster"
)

// ErrAdvancedUnavailable reports that SVF/LRM were requested without the
// optional relief-visualization engine. Recoverable: downstream formula
// tiers fall back to hillshade-derived channels.
var ErrAdvancedUnavailable = errors.New("advanced terrain derivatives unavailable")

// ErrFootprintMismatch is fatal: derivative inputs must be pixel-aligned or
// later band fusion would silently blend unrelated cells.
var ErrFootprintMismatch = errors.New("raster footprint mismatch")

// Hillshade geometry. Averaging four opposing azimuths removes the
// directional shadow bias that would mask features aligned with a single
// light direction.
var hillshadeAzimuths = [4]int{315, 45, 135, 225}

const hillshadeAltitude = 35

// Advanced-engine parameters (RVT conventions).
const (
	svfDirections = 16
	svfRadius     = 10.0
	lrmRadius     = 20.0
)

// Engine runs derivative computations through the external raster tooling.
type Engine struct {
	Runner  engine.Runner
	Caps    engine.Capabilities
	Scratch string // per-run scratch directory for intermediate rasters
}

// Footprint reads the spatial frame of a raster via gdalinfo.
func (e *Engine) Footprint(ctx context.Context, path string) (raster.Footprint, error) {
	out, err := e.Runner.Run(ctx, "gdalinfo", "-json", path)
	if err != nil {
		return raster.Footprint{}, fmt.Errorf("gdalinfo %s: %w", path, err)
	}
	info, err := raster.ParseInfo(out)
	if err != nil {
		return raster.Footprint{}, fmt.Errorf("%s: %w", path, err)
	}
	return info.Footprint()
}

// CheckAligned verifies every raster shares the first one's footprint.
// Skipped on a dry run: there are no rasters to inspect.
func (e *Engine) CheckAligned(ctx context.Context, paths ...string) error {
	if len(paths) < 2 || engine.IsDry(e.Runner) {
		return nil
	}
	ref, err := e.Footprint(ctx, paths[0])
	if err != nil {
		return err
	}
	for _, p := range paths[1:] {
		fp, err := e.Footprint(ctx, p)
		if err != nil {
			return err
		}
		if !fp.Equal(ref) {
			return fmt.Errorf("%w: %s is %s, %s is %s", ErrFootprintMismatch, paths[0], ref, p, fp)
		}
	}
	return nil
}

// CanopyHeight writes surface minus ground, pixelwise, propagating nodata
// where either input is nodata. Inputs must be pixel-aligned.
func (e *Engine) CanopyHeight(ctx context.Context, surface, ground, out string) error {
	if err := e.CheckAligned(ctx, ground, surface); err != nil {
		return err
	}
	_, err := e.Runner.Run(ctx, "gdal_calc.py",
		"-A", surface,
		"-B", ground,
		"--outfile", out,
		"--calc", "A-B",
		fmt.Sprintf("--NoDataValue=%g", raster.NoDataValue),
		"--type=Float32",
		"--overwrite",
	)
	if err != nil {
		return fmt.Errorf("canopy height: %w", err)
	}
	return nil
}

// MultiHillshade computes illumination at the four fixed azimuths and
// averages them into a single 8-bit raster. Per-azimuth intermediates live
// under the scratch directory and are removed before returning.
func (e *Engine) MultiHillshade(ctx context.Context, ground, out string) error {
	tmpDir := filepath.Join(e.Scratch, "hillshade")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return fmt.Errorf("hillshade scratch: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	shades := make([]string, 0, len(hillshadeAzimuths))
	for _, az := range hillshadeAzimuths {
		hs := filepath.Join(tmpDir, fmt.Sprintf("hs_%d.tif", az))
		_, err := e.Runner.Run(ctx, "gdaldem", "hillshade", ground, hs,
			"-az", strconv.Itoa(az),
			"-alt", strconv.Itoa(hillshadeAltitude),
			"-compute_edges",
		)
		if err != nil {
			return fmt.Errorf("hillshade az %d: %w", az, err)
		}
		shades = append(shades, hs)
	}

	_, err := e.Runner.Run(ctx, "gdal_calc.py",
		"--overwrite",
		"-A", shades[0],
		"-B", shades[1],
		"-C", shades[2],
		"-D", shades[3],
		"--calc", "(A + B + C + D) / 4.0",
		"--outfile", out,
		"--type=Byte",
	)
	if err != nil {
		return fmt.Errorf("hillshade average: %w", err)
	}
	return nil
}

// Slope computes slope in degrees with the Zevenbergen-Thorne kernel, which
// is less noise-sensitive than Horn on fine-resolution grids.
func (e *Engine) Slope(ctx context.Context, ground, out string) error {
	_, err := e.Runner.Run(ctx, "gdaldem", "slope", ground, out,
		"-alg", "ZevenbergenThorne",
		"-compute_edges",
		"-s", "1.0",
	)
	if err != nil {
		return fmt.Errorf("slope: %w", err)
	}
	return nil
}

// Curvature approximates surface curvature with the topographic position
// index, which highlights linear features such as walls and roads.
func (e *Engine) Curvature(ctx context.Context, ground, out string) error {
	_, err := e.Runner.Run(ctx, "gdaldem", "TPI", ground, out, "-compute_edges")
	if err != nil {
		return fmt.Errorf("curvature: %w", err)
	}
	return nil
}

// SkyViewFactor computes the visible-sky fraction per cell. Requires the
// advanced engine; otherwise returns ErrAdvancedUnavailable.
func (e *Engine) SkyViewFactor(ctx context.Context, ground, out string) error {
	if !e.Caps.Advanced {
		return ErrAdvancedUnavailable
	}
	_, err := e.Runner.Run(ctx, engine.AdvancedTool, "svf",
		"--dem", ground,
		"--out", out,
		"--directions", strconv.Itoa(svfDirections),
		"--radius", strconv.FormatFloat(svfRadius, 'f', -1, 64),
	)
	if err != nil {
		return fmt.Errorf("sky view factor: %w", err)
	}
	return nil
}

// LocalReliefModel removes the broad elevation trend, emphasizing
// small-scale relief. Requires the advanced engine.
func (e *Engine) LocalReliefModel(ctx context.Context, ground, out string) error {
	if !e.Caps.Advanced {
		return ErrAdvancedUnavailable
	}
	_, err := e.Runner.Run(ctx, engine.AdvancedTool, "lrm",
		"--dem", ground,
		"--out", out,
		"--radius", strconv.FormatFloat(lrmRadius, 'f', -1, 64),
	)
	if err != nil {
		return fmt.Errorf("local relief model: %w", err)
	}
	return nil
}
