package raster

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Info is the subset of `gdalinfo -json` output the pipeline consumes.
type Info struct {
	Size         []int      `json:"size"`
	GeoTransform []float64  `json:"geoTransform"`
	Bands        []BandInfo `json:"bands"`
}

// BandInfo carries per-band statistics. Minimum/Maximum are only present
// when gdalinfo was invoked with -stats (or the file carries a stats
// sidecar); older GDAL versions put them in the metadata map instead.
type BandInfo struct {
	NoDataValue *float64                     `json:"noDataValue"`
	Minimum     *float64                     `json:"minimum"`
	Maximum     *float64                     `json:"maximum"`
	Metadata    map[string]map[string]string `json:"metadata"`
}

// ParseInfo decodes `gdalinfo -json` output.
func ParseInfo(data []byte) (Info, error) {
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return Info{}, fmt.Errorf("parse gdalinfo output: %w", err)
	}
	return info, nil
}

// Footprint extracts the grid frame from the info block.
func (i Info) Footprint() (Footprint, error) {
	if len(i.Size) != 2 {
		return Footprint{}, fmt.Errorf("gdalinfo output missing raster size")
	}
	if len(i.GeoTransform) != 6 {
		return Footprint{}, fmt.Errorf("gdalinfo output missing geotransform")
	}
	return Footprint{
		OriginX: i.GeoTransform[0],
		OriginY: i.GeoTransform[3],
		PixelW:  i.GeoTransform[1],
		PixelH:  i.GeoTransform[5],
		Width:   i.Size[0],
		Height:  i.Size[1],
	}, nil
}

// BandMaximum returns the maximum sample value of the first band. It prefers
// the structured field and falls back to the STATISTICS_MAXIMUM metadata key.
func (i Info) BandMaximum() (float64, error) {
	if len(i.Bands) == 0 {
		return 0, fmt.Errorf("gdalinfo output has no bands")
	}
	b := i.Bands[0]
	if b.Maximum != nil {
		return *b.Maximum, nil
	}
	for _, kv := range b.Metadata {
		if s, ok := kv["STATISTICS_MAXIMUM"]; ok {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return 0, fmt.Errorf("parse STATISTICS_MAXIMUM %q: %w", s, err)
			}
			return v, nil
		}
	}
	return 0, fmt.Errorf("gdalinfo output carries no band statistics (run with -stats)")
}
