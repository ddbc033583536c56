// Package advisor estimates point density from tile metadata and recommends
// an output grid resolution. It is strictly best-effort: any metadata
// failure falls back to a default resolution and the run continues.
package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/banshee-data/relief.report/internal/engine"
	"github.com/banshee-data/relief.report/internal/monitoring"
)

// DefaultResolution is used whenever density cannot be estimated.
const DefaultResolution = 1.0

// degreesToMeters is the fixed equatorial degree length used when tile
// metadata reports geographic coordinates. A known approximation, not a
// reprojection; it is only used to pick a resolution bucket.
const degreesToMeters = 111320.0

// buckets maps density thresholds (points per square meter) to grid
// resolutions, finest first. Denser clouds support finer grids without
// excessive nodata gaps.
var buckets = []struct {
	MinDensity float64
	Resolution float64
}{
	{15, 0.25},
	{8, 0.5},
	{2, 1.0},
	{0, 2.0},
}

// Estimate is the derived density of one representative tile.
type Estimate struct {
	PointCount int64
	AreaM2     float64
	Density    float64 // points per square meter
	Geographic bool    // bbox was in degrees and converted approximately
}

// infoDoc mirrors the metadata layout of `pdal info --metadata`.
type infoDoc struct {
	Metadata struct {
		Statistics []struct {
			Count int64 `json:"count"`
			BBox  *struct {
				MinX float64 `json:"minx"`
				MaxX float64 `json:"maxx"`
				MinY float64 `json:"miny"`
				MaxY float64 `json:"maxy"`
			} `json:"bbox"`
		} `json:"statistics"`
		SRS struct {
			Units struct {
				Horizontal string `json:"horizontal"`
			} `json:"units"`
		} `json:"srs"`
	} `json:"metadata"`
}

// ParseEstimate derives a density estimate from `pdal info --metadata`
// output. The SRS horizontal unit decides whether the bounding box is in
// degrees; when the tile carries no SRS, a bbox that fits inside
// +/-180 x +/-90 is assumed geographic. Degree extents are converted with
// the fixed equatorial factor.
func ParseEstimate(data []byte) (Estimate, error) {
	var doc infoDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return Estimate{}, fmt.Errorf("parse pdal info output: %w", err)
	}
	stats := doc.Metadata.Statistics
	if len(stats) == 0 || stats[0].BBox == nil || stats[0].Count == 0 {
		return Estimate{}, fmt.Errorf("pdal info output missing point statistics")
	}

	s := stats[0]
	dx := s.BBox.MaxX - s.BBox.MinX
	dy := s.BBox.MaxY - s.BBox.MinY
	if dx <= 0 || dy <= 0 {
		return Estimate{}, fmt.Errorf("degenerate bounding box %.6f x %.6f", dx, dy)
	}

	est := Estimate{PointCount: s.Count}
	if geographicCRS(doc.Metadata.SRS.Units.Horizontal, s.BBox.MinX, s.BBox.MaxX, s.BBox.MinY, s.BBox.MaxY) {
		est.Geographic = true
		dx *= degreesToMeters
		dy *= degreesToMeters
	}
	est.AreaM2 = dx * dy
	est.Density = float64(s.Count) / est.AreaM2
	return est, nil
}

// geographicCRS trusts the SRS horizontal unit when the tile carries one;
// a site-local projected grid can otherwise have coordinates small enough
// to pass for degrees. The bbox range is only a fallback for SRS-less tiles.
func geographicCRS(unit string, minx, maxx, miny, maxy float64) bool {
	switch u := strings.ToLower(unit); {
	case strings.HasPrefix(u, "degree"):
		return true
	case u != "" && u != "unknown":
		return false
	}
	return minx >= -180 && maxx <= 180 && miny >= -90 && maxy <= 90
}

// ResolutionFor maps a density to its resolution bucket. The mapping is
// monotonic: higher density never yields a coarser grid.
func ResolutionFor(density float64) float64 {
	for _, b := range buckets {
		if density > b.MinDensity {
			return b.Resolution
		}
	}
	return buckets[len(buckets)-1].Resolution
}

// Recommend reads summary metadata from the tile via the point-cloud engine
// and returns the recommended resolution. Metadata failures are logged and
// degrade to DefaultResolution; this function never fails the run.
func Recommend(ctx context.Context, runner engine.Runner, tile string) (float64, *Estimate) {
	out, err := runner.Run(ctx, "pdal", "info", tile, "--metadata")
	if err != nil {
		monitoring.Logf("resolution advisor: pdal info failed for %s: %v (using default %.2fm)", tile, err, DefaultResolution)
		return DefaultResolution, nil
	}
	est, err := ParseEstimate(out)
	if err != nil {
		monitoring.Logf("resolution advisor: %v (using default %.2fm)", err, DefaultResolution)
		return DefaultResolution, nil
	}
	res := ResolutionFor(est.Density)
	monitoring.Logf("resolution advisor: %.2f points/m2 over %.0f m2 -> %.2fm grid", est.Density, est.AreaM2, res)
	return res, &est
}
