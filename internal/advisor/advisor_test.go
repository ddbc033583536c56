package advisor

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/relief.report/internal/engine"
)

func infoJSON(count int64, minx, maxx, miny, maxy float64) []byte {
	return []byte(fmt.Sprintf(`{
		"metadata": {
			"statistics": [
				{"count": %d, "bbox": {"minx": %g, "maxx": %g, "miny": %g, "maxy": %g}}
			]
		}
	}`, count, minx, maxx, miny, maxy))
}

func TestParseEstimateProjected(t *testing.T) {
	// 1000x1000m tile with 10M points -> 10 points/m2. Coordinates outside
	// the geographic envelope, so no degree conversion applies.
	est, err := ParseEstimate(infoJSON(10_000_000, 500000, 501000, 4000000, 4001000))
	require.NoError(t, err)

	assert.False(t, est.Geographic)
	assert.InDelta(t, 1_000_000, est.AreaM2, 1)
	assert.InDelta(t, 10.0, est.Density, 0.001)
}

func TestParseEstimateGeographic(t *testing.T) {
	// A bbox inside +/-180 x +/-90 is treated as degrees and converted with
	// the fixed equatorial factor.
	est, err := ParseEstimate(infoJSON(1_000_000, -89.0, -88.99, 13.0, 13.01))
	require.NoError(t, err)

	assert.True(t, est.Geographic)
	wantArea := 0.01 * 111320.0 * 0.01 * 111320.0
	assert.InDelta(t, wantArea, est.AreaM2, wantArea*0.001)
}

func infoJSONWithSRS(unit string, count int64, minx, maxx, miny, maxy float64) []byte {
	return []byte(fmt.Sprintf(`{
		"metadata": {
			"statistics": [
				{"count": %d, "bbox": {"minx": %g, "maxx": %g, "miny": %g, "maxy": %g}}
			],
			"srs": {"units": {"horizontal": %q}}
		}
	}`, count, minx, maxx, miny, maxy, unit))
}

func TestParseEstimateSiteLocalGrid(t *testing.T) {
	// A site-local projected grid has coordinates small enough to pass for
	// degrees; the declared SRS unit must win over the bbox range.
	est, err := ParseEstimate(infoJSONWithSRS("metre", 100_000, 0, 100, 0, 100))
	require.NoError(t, err)

	assert.False(t, est.Geographic)
	assert.InDelta(t, 10_000, est.AreaM2, 1)
	assert.InDelta(t, 10.0, est.Density, 0.001)
}

func TestParseEstimateDegreeUnit(t *testing.T) {
	est, err := ParseEstimate(infoJSONWithSRS("degree", 1_000_000, -89.0, -88.99, 13.0, 13.01))
	require.NoError(t, err)
	assert.True(t, est.Geographic)
}

func TestParseEstimateUnknownUnitFallsBack(t *testing.T) {
	// "unknown" is what tiles without georeferencing report; the bbox range
	// heuristic still applies.
	est, err := ParseEstimate(infoJSONWithSRS("unknown", 1_000_000, -89.0, -88.99, 13.0, 13.01))
	require.NoError(t, err)
	assert.True(t, est.Geographic)

	est, err = ParseEstimate(infoJSONWithSRS("unknown", 10_000_000, 500000, 501000, 4000000, 4001000))
	require.NoError(t, err)
	assert.False(t, est.Geographic)
}

func TestParseEstimateErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"not json", []byte("gdalinfo: command not found")},
		{"no statistics", []byte(`{"metadata": {}}`)},
		{"degenerate bbox", infoJSON(1000, 5, 5, 1, 2)},
		{"zero count", infoJSON(0, 0, 1, 0, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEstimate(tt.data)
			assert.Error(t, err)
		})
	}
}

func TestResolutionBuckets(t *testing.T) {
	tests := []struct {
		density float64
		want    float64
	}{
		{20, 0.25},
		{15.01, 0.25},
		{15, 0.5},
		{10, 0.5},
		{8, 1.0},
		{5, 1.0},
		{2, 2.0},
		{0.5, 2.0},
		{0, 2.0},
	}
	for _, tt := range tests {
		if got := ResolutionFor(tt.density); got != tt.want {
			t.Errorf("ResolutionFor(%.2f) = %.2f, want %.2f", tt.density, got, tt.want)
		}
	}
}

func TestResolutionMonotonic(t *testing.T) {
	// Higher density must never yield a coarser grid.
	densities := []float64{0, 0.1, 1, 2, 2.1, 5, 8, 8.1, 12, 15, 15.1, 40, 1000}
	prev := ResolutionFor(densities[0])
	for _, d := range densities[1:] {
		res := ResolutionFor(d)
		if res > prev {
			t.Fatalf("ResolutionFor(%.2f) = %.2f coarser than lower-density result %.2f", d, res, prev)
		}
		prev = res
	}
}

func TestRecommendQueriesFirstTile(t *testing.T) {
	fake := &engine.Fake{
		Handler: func(name string, args []string) ([]byte, error) {
			return infoJSON(10_000_000, 0, 1000, 0, 1000), nil
		},
	}

	res, est := Recommend(context.Background(), fake, "tiles/first.laz")
	require.NotNil(t, est)
	assert.Equal(t, 0.5, res)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "pdal", calls[0].Name)
	assert.Equal(t, []string{"info", "tiles/first.laz", "--metadata"}, calls[0].Args)
}

func TestRecommendFallsBackOnFailure(t *testing.T) {
	fake := &engine.Fake{
		Handler: func(name string, args []string) ([]byte, error) {
			return nil, &engine.ExitError{Cmd: "pdal info", ExitCode: 1}
		},
	}

	res, est := Recommend(context.Background(), fake, "broken.laz")
	assert.Nil(t, est)
	assert.Equal(t, DefaultResolution, res)
}

func TestRecommendFallsBackOnGarbage(t *testing.T) {
	fake := &engine.Fake{
		Handler: func(name string, args []string) ([]byte, error) {
			return []byte("not json at all"), nil
		},
	}

	res, est := Recommend(context.Background(), fake, "odd.laz")
	assert.Nil(t, est)
	assert.Equal(t, DefaultResolution, res)
}
