package pointcloud

import (
	"encoding/json"

	"github.com/banshee-data/relief.report/internal/raster"
)

// Stage is one PDAL stage descriptor. Map keys marshal in sorted order, so
// a pipeline serializes identically for identical inputs.
type Stage map[string]interface{}

// Pipeline is an ordered stage chain, serialized as {"pipeline": [...]} and
// consumed exactly once by the point-cloud engine.
type Pipeline struct {
	Stages []Stage `json:"pipeline"`
}

// JSON serializes the pipeline for submission.
func (p Pipeline) JSON() ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}

// Outlier removal constants. The statistical pass (neighbourhood mean and
// deviation) runs first; the radius pass runs second because it catches
// isolated clusters whose members individually survive the statistical test.
const (
	statOutlierMeanK      = 12
	statOutlierMultiplier = 2.5
	radiusOutlierMinK     = 3
)

// IDW gridding constants.
const (
	idwPower          = 2.0
	idwWindowSize     = 5
	idwRadiusFloor    = 0.75 // prevents radius collapse at very fine resolutions
	idwRadiusPerCell  = 1.5
	radiusPerCellOutl = 2.0
)

// GroundPipeline builds the bare-earth extraction chain: read every tile,
// isolate ground points (existing classification or SMRF reclassification
// per the terrain profile), strip outliers in two passes, and interpolate
// onto a regular grid with inverse-distance weighting.
func GroundPipeline(files []string, outTIF string, resolution float64, method GroundMethod, profile TerrainProfile) (Pipeline, error) {
	stages := readerStages(files)

	if method == MethodSMRF {
		params, err := ProfileFor(profile)
		if err != nil {
			return Pipeline{}, err
		}
		stages = append(stages, Stage{
			"type":      "filters.smrf",
			"scalar":    params.Scalar,
			"slope":     params.Slope,
			"threshold": params.Threshold,
			"window":    params.Window,
		})
	}
	stages = append(stages, Stage{
		"type":   "filters.range",
		"limits": "Classification[2:2]",
	})

	stages = append(stages,
		Stage{
			"type":       "filters.outlier",
			"method":     "statistical",
			"mean_k":     statOutlierMeanK,
			"multiplier": statOutlierMultiplier,
		},
		Stage{
			"type":   "filters.outlier",
			"method": "radius",
			"radius": resolution * radiusPerCellOutl,
			"min_k":  radiusOutlierMinK,
		},
	)

	radius := resolution * idwRadiusPerCell
	if radius < idwRadiusFloor {
		radius = idwRadiusFloor
	}
	stages = append(stages, Stage{
		"type":        "writers.gdal",
		"filename":    outTIF,
		"resolution":  resolution,
		"radius":      radius,
		"output_type": "idw", // preserves sharp feature edges
		"power":       idwPower,
		"gdaldriver":  "GTiff",
		"data_type":   "float32",
		"window_size": idwWindowSize,
		"nodata":      raster.NoDataValue,
		"gdalopts":    []string{"TILED=YES", "COMPRESS=DEFLATE", "PREDICTOR=3"},
	})

	return Pipeline{Stages: stages}, nil
}

// SurfacePipeline builds the top-of-canopy chain: every point, unfiltered,
// gridded to the maximum elevation per cell.
func SurfacePipeline(files []string, outTIF string, resolution float64) Pipeline {
	stages := readerStages(files)
	stages = append(stages, Stage{
		"type":        "writers.gdal",
		"filename":    outTIF,
		"resolution":  resolution,
		"output_type": "max",
		"gdaldriver":  "GTiff",
		"data_type":   "float32",
		"nodata":      raster.NoDataValue,
	})
	return Pipeline{Stages: stages}
}

func readerStages(files []string) []Stage {
	stages := make([]Stage, 0, len(files)+6)
	for _, f := range files {
		stages = append(stages, Stage{"type": "readers.las", "filename": f})
	}
	return stages
}
