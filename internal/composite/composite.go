// Package composite fuses derivative rasters into the 3-band archaeology
// visualization (an RRIM-style composite): relief signal on R, shaded
// topography on G, concavity signal on B. Channel formulas are selected by
// input availability in strict preference tiers so the output is always a
// deterministic 3-channel 8-bit raster.
package composite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/relief.report/internal/engine"
	"github.com/banshee-data/relief.report/internal/raster"
)

// ErrInputMissing is fatal: the composite cannot be built without its base
// rasters. Optional-input absence is never an error, only a tier fallback.
var ErrInputMissing = errors.New("composite input missing")

// Inputs names the available rasters. Ground and Hillshade are required;
// an empty optional path means that derivative was not produced this run.
type Inputs struct {
	Ground    string
	Hillshade string
	Slope     string
	Curvature string
	SVF       string
	LRM       string
}

// ChannelFormula identifies one per-channel computation.
type ChannelFormula string

const (
	// R tiers, most informative first.
	RBlendLRMCurvature ChannelFormula = "blend-lrm-curvature"
	RStretchLRM        ChannelFormula = "stretch-lrm"
	RHillshade         ChannelFormula = "hillshade"

	// G has a single formula.
	GHillshadeStretch ChannelFormula = "hillshade-stretch"

	// B tiers, most informative first.
	BInvertSVF       ChannelFormula = "invert-svf"
	BInvertSlope     ChannelFormula = "invert-slope"
	BInvertHillshade ChannelFormula = "invert-hillshade"
)

// Plan is the channel formula selection for one composite build.
type Plan struct {
	R ChannelFormula
	G ChannelFormula
	B ChannelFormula
}

// PlanFor selects channel formulas from input availability. Tiers never
// mix: the most informative available combination wins outright.
func PlanFor(in Inputs) Plan {
	p := Plan{G: GHillshadeStretch}

	switch {
	case in.LRM != "" && in.Curvature != "":
		p.R = RBlendLRMCurvature
	case in.LRM != "":
		p.R = RStretchLRM
	default:
		p.R = RHillshade
	}

	switch {
	case in.SVF != "":
		p.B = BInvertSVF
	case in.Slope != "":
		p.B = BInvertSlope
	default:
		p.B = BInvertHillshade
	}

	return p
}

// Synthesizer builds composites through the raster-algebra engine.
type Synthesizer struct {
	Runner  engine.Runner
	Scratch string
}

// Build validates the inputs, executes the selected plan and stacks the
// three channels into out as a tiled, DEFLATE-compressed RGB GeoTIFF.
// Per-channel temporaries are scratch-scoped and removed before returning.
func (s *Synthesizer) Build(ctx context.Context, in Inputs, out string) (Plan, error) {
	if in.Ground == "" || in.Hillshade == "" {
		return Plan{}, fmt.Errorf("%w: ground and hillshade are required", ErrInputMissing)
	}

	plan := PlanFor(in)

	tmpDir := filepath.Join(s.Scratch, "rgb")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return plan, fmt.Errorf("composite scratch: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	r := filepath.Join(tmpDir, "R.tif")
	g := filepath.Join(tmpDir, "G.tif")
	b := filepath.Join(tmpDir, "B.tif")

	if err := s.buildR(ctx, plan.R, in, r); err != nil {
		return plan, err
	}
	if err := s.buildG(ctx, in, g); err != nil {
		return plan, err
	}
	if err := s.buildB(ctx, plan.B, in, b); err != nil {
		return plan, err
	}

	vrt := filepath.Join(tmpDir, "comp.vrt")
	if _, err := s.Runner.Run(ctx, "gdalbuildvrt", "-separate", vrt, r, g, b); err != nil {
		return plan, fmt.Errorf("composite stack: %w", err)
	}
	_, err := s.Runner.Run(ctx, "gdal_translate", vrt, out,
		"-ot", "Byte", "-of", "GTiff",
		"-co", "PHOTOMETRIC=RGB",
		"-co", "TILED=YES",
		"-co", "COMPRESS=DEFLATE",
		"-co", "PREDICTOR=2",
		"-co", "ZLEVEL=9",
	)
	if err != nil {
		return plan, fmt.Errorf("composite write: %w", err)
	}
	return plan, nil
}

// buildR computes the structure channel. The 0.7/0.3 blend favours the
// large-structure LRM signal while folding in the linear-feature curvature
// signal; bare LRM is stretched from its native [0,100] range because a
// direct byte cast would saturate.
func (s *Synthesizer) buildR(ctx context.Context, formula ChannelFormula, in Inputs, out string) error {
	switch formula {
	case RBlendLRMCurvature:
		_, err := s.Runner.Run(ctx, "gdal_calc.py", "--overwrite",
			"-A", in.LRM,
			"-B", in.Curvature,
			"--calc", "clip(round((A * 0.7 + B * 0.3) * 255), 0, 255)",
			"--outfile", out,
			"--type", "Byte",
		)
		return wrapChannel("R", err)
	case RStretchLRM:
		_, err := s.Runner.Run(ctx, "gdal_translate", in.LRM, out,
			"-ot", "Byte", "-of", "GTiff",
			"-scale", "0", "100", "0", "255",
		)
		return wrapChannel("R", err)
	default:
		_, err := s.Runner.Run(ctx, "gdal_translate", in.Hillshade, out,
			"-ot", "Byte", "-of", "GTiff",
		)
		return wrapChannel("R", err)
	}
}

// buildG is always the multi-azimuth hillshade, contrast-stretched to
// [20,235] so shadow and highlight detail survive alongside the other
// channels without clipping.
func (s *Synthesizer) buildG(ctx context.Context, in Inputs, out string) error {
	_, err := s.Runner.Run(ctx, "gdal_translate", in.Hillshade, out,
		"-ot", "Byte", "-of", "GTiff",
		"-scale", "0", "255", "20", "235",
	)
	return wrapChannel("G", err)
}

// buildB computes the depression channel. The 0.8 power curve lifts shallow
// depressions that a linear inversion under-emphasizes; the slope fallback
// inverts against the raster's own maximum to highlight flat plazas and
// platforms.
func (s *Synthesizer) buildB(ctx context.Context, formula ChannelFormula, in Inputs, out string) error {
	switch formula {
	case BInvertSVF:
		_, err := s.Runner.Run(ctx, "gdal_calc.py", "--overwrite",
			"-A", in.SVF,
			"--calc", "clip(round(((1.0 - A) ** 0.8) * 255), 0, 255)",
			"--outfile", out,
			"--type", "Byte",
		)
		return wrapChannel("B", err)
	case BInvertSlope:
		maxSlope, err := s.slopeMaximum(ctx, in.Slope)
		if err != nil {
			return wrapChannel("B", err)
		}
		_, err = s.Runner.Run(ctx, "gdal_calc.py", "--overwrite",
			"-A", in.Slope,
			"--calc", fmt.Sprintf("clip(round((1.0 - (A / %g)) * 255), 0, 255)", maxSlope),
			"--outfile", out,
			"--type", "Byte",
		)
		return wrapChannel("B", err)
	default:
		_, err := s.Runner.Run(ctx, "gdal_calc.py", "--overwrite",
			"-A", in.Hillshade,
			"--calc", "clip(round(((1.0 - (A/255.0)) ** 0.8) * 255), 0, 255)",
			"--outfile", out,
			"--type", "Byte",
		)
		return wrapChannel("B", err)
	}
}

// slopeMaximum reads the per-raster maximum via gdalinfo so the algebra
// expression stays purely pixelwise. A flat raster (max 0) inverts against
// 1 to keep the expression defined.
func (s *Synthesizer) slopeMaximum(ctx context.Context, slope string) (float64, error) {
	if engine.IsDry(s.Runner) {
		return 1, nil
	}
	out, err := s.Runner.Run(ctx, "gdalinfo", "-json", "-stats", slope)
	if err != nil {
		return 0, fmt.Errorf("slope stats: %w", err)
	}
	info, err := raster.ParseInfo(out)
	if err != nil {
		return 0, err
	}
	max, err := info.BandMaximum()
	if err != nil {
		return 0, err
	}
	if max <= 0 {
		return 1, nil
	}
	return max, nil
}

func wrapChannel(channel string, err error) error {
	if err != nil {
		return fmt.Errorf("composite channel %s: %w", channel, err)
	}
	return nil
}
