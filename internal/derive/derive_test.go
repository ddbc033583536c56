package derive

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/relief.report/internal/engine"
)

func infoJSON(originX float64, width int) string {
	return fmt.Sprintf(`{
		"size": [%d, 1000],
		"geoTransform": [%g, 0.5, 0.0, 4100000.0, 0.0, -0.5],
		"bands": [{"noDataValue": -9999.0}]
	}`, width, originX)
}

// alignedInfo answers every gdalinfo call with the same footprint.
func alignedInfo(name string, args []string) ([]byte, error) {
	if name == "gdalinfo" {
		return []byte(infoJSON(500000, 1000)), nil
	}
	return nil, nil
}

func newEngine(t *testing.T, fake *engine.Fake, advanced bool) *Engine {
	t.Helper()
	return &Engine{
		Runner:  fake,
		Caps:    engine.Capabilities{Advanced: advanced},
		Scratch: t.TempDir(),
	}
}

func TestCanopyHeight(t *testing.T) {
	fake := &engine.Fake{Handler: alignedInfo}
	e := newEngine(t, fake, false)

	err := e.CanopyHeight(context.Background(), "dsm.tif", "dtm.tif", "chm.tif")
	require.NoError(t, err)

	calcs := fake.CallsTo("gdal_calc.py")
	require.Len(t, calcs, 1)
	line := calcs[0].Line()
	assert.Contains(t, line, "-A dsm.tif")
	assert.Contains(t, line, "-B dtm.tif")
	assert.Contains(t, line, "--calc A-B")
	assert.Contains(t, line, "--NoDataValue=-9999")
	assert.Contains(t, line, "--type=Float32")

	// Both inputs are footprint-checked before any computation.
	infos := fake.CallsTo("gdalinfo")
	require.Len(t, infos, 2)
	assert.Equal(t, "dtm.tif", infos[0].Args[1])
	assert.Equal(t, "dsm.tif", infos[1].Args[1])
}

func TestCanopyHeightFootprintMismatch(t *testing.T) {
	fake := &engine.Fake{
		Handler: func(name string, args []string) ([]byte, error) {
			if name != "gdalinfo" {
				t.Fatalf("unexpected command after mismatch: %s", name)
			}
			// The surface grid is one pixel wider than the ground grid.
			if args[1] == "dsm.tif" {
				return []byte(infoJSON(500000, 1001)), nil
			}
			return []byte(infoJSON(500000, 1000)), nil
		},
	}
	e := newEngine(t, fake, false)

	err := e.CanopyHeight(context.Background(), "dsm.tif", "dtm.tif", "chm.tif")
	require.ErrorIs(t, err, ErrFootprintMismatch)
	assert.Empty(t, fake.CallsTo("gdal_calc.py"))
}

func TestCanopyHeightDryRun(t *testing.T) {
	// A dry runner produces no gdalinfo output to parse; the footprint
	// check must step aside instead of failing the run.
	e := &Engine{
		Runner:  &engine.OSRunner{DryRun: true},
		Scratch: t.TempDir(),
	}

	err := e.CanopyHeight(context.Background(), "dsm.tif", "dtm.tif", "chm.tif")
	require.NoError(t, err)
}

func TestCheckAlignedOriginShift(t *testing.T) {
	fake := &engine.Fake{
		Handler: func(name string, args []string) ([]byte, error) {
			if args[1] == "b.tif" {
				return []byte(infoJSON(500000.5, 1000)), nil
			}
			return []byte(infoJSON(500000, 1000)), nil
		},
	}
	e := newEngine(t, fake, false)

	err := e.CheckAligned(context.Background(), "a.tif", "b.tif")
	assert.ErrorIs(t, err, ErrFootprintMismatch)
}

func TestMultiHillshade(t *testing.T) {
	fake := &engine.Fake{}
	e := newEngine(t, fake, false)

	err := e.MultiHillshade(context.Background(), "dtm.tif", "hillshade.tif")
	require.NoError(t, err)

	shades := fake.CallsTo("gdaldem")
	require.Len(t, shades, 4)
	wantAz := []string{"315", "45", "135", "225"}
	for i, c := range shades {
		assert.Equal(t, "hillshade", c.Args[0])
		assert.Equal(t, "dtm.tif", c.Args[1])
		line := c.Line()
		assert.Contains(t, line, "-az "+wantAz[i])
		assert.Contains(t, line, "-alt 35")
		assert.Contains(t, line, "-compute_edges")
	}

	avgs := fake.CallsTo("gdal_calc.py")
	require.Len(t, avgs, 1)
	line := avgs[0].Line()
	assert.Contains(t, line, "--calc (A + B + C + D) / 4.0")
	assert.Contains(t, line, "--type=Byte")
	assert.Contains(t, line, "--outfile hillshade.tif")
}

func TestMultiHillshadeStopsOnFailure(t *testing.T) {
	fake := &engine.Fake{
		Handler: func(name string, args []string) ([]byte, error) {
			if name == "gdaldem" && strings.Contains(strings.Join(args, " "), "-az 45") {
				return nil, &engine.ExitError{Cmd: "gdaldem hillshade", ExitCode: 1}
			}
			return nil, nil
		},
	}
	e := newEngine(t, fake, false)

	err := e.MultiHillshade(context.Background(), "dtm.tif", "hillshade.tif")
	require.Error(t, err)
	assert.Equal(t, 1, engine.ExitCode(err))
	assert.Len(t, fake.CallsTo("gdaldem"), 2)
	assert.Empty(t, fake.CallsTo("gdal_calc.py"))
}

func TestSlope(t *testing.T) {
	fake := &engine.Fake{}
	e := newEngine(t, fake, false)

	require.NoError(t, e.Slope(context.Background(), "dtm.tif", "slope.tif"))

	calls := fake.CallsTo("gdaldem")
	require.Len(t, calls, 1)
	line := calls[0].Line()
	assert.Contains(t, line, "slope dtm.tif slope.tif")
	assert.Contains(t, line, "-alg ZevenbergenThorne")
	assert.Contains(t, line, "-s 1.0")
}

func TestCurvature(t *testing.T) {
	fake := &engine.Fake{}
	e := newEngine(t, fake, false)

	require.NoError(t, e.Curvature(context.Background(), "dtm.tif", "curv.tif"))

	calls := fake.CallsTo("gdaldem")
	require.Len(t, calls, 1)
	assert.Equal(t, "TPI", calls[0].Args[0])
}

func TestAdvancedDerivativesGated(t *testing.T) {
	fake := &engine.Fake{}
	e := newEngine(t, fake, false)

	err := e.SkyViewFactor(context.Background(), "dtm.tif", "svf.tif")
	assert.ErrorIs(t, err, ErrAdvancedUnavailable)
	err = e.LocalReliefModel(context.Background(), "dtm.tif", "lrm.tif")
	assert.ErrorIs(t, err, ErrAdvancedUnavailable)
	assert.Empty(t, fake.Calls())
}

func TestAdvancedDerivativesInvocation(t *testing.T) {
	fake := &engine.Fake{}
	e := newEngine(t, fake, true)

	require.NoError(t, e.SkyViewFactor(context.Background(), "dtm.tif", "svf.tif"))
	require.NoError(t, e.LocalReliefModel(context.Background(), "dtm.tif", "lrm.tif"))

	calls := fake.CallsTo(engine.AdvancedTool)
	require.Len(t, calls, 2)

	svf := calls[0].Line()
	assert.Contains(t, svf, "svf --dem dtm.tif")
	assert.Contains(t, svf, "--directions 16")
	assert.Contains(t, svf, "--radius 10")

	lrm := calls[1].Line()
	assert.Contains(t, lrm, "lrm --dem dtm.tif")
	assert.Contains(t, lrm, "--radius 20")
}

func TestFootprintParseFailure(t *testing.T) {
	fake := &engine.Fake{
		Handler: func(name string, args []string) ([]byte, error) {
			return []byte("ERROR 4: no such file"), nil
		},
	}
	e := newEngine(t, fake, false)

	_, err := e.Footprint(context.Background(), "missing.tif")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrFootprintMismatch))
}
