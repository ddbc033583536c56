// Package workflow orchestrates one derivation run: tile discovery, ground
// and surface extraction, terrain derivatives, composite synthesis and the
// reporting surfaces. Stages execute sequentially because each one's output
// is the next one's input; independent runs may execute concurrently as
// long as they use separate output directories.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/relief.report/internal/advisor"
	"github.com/banshee-data/relief.report/internal/catalog"
	"github.com/banshee-data/relief.report/internal/composite"
	"github.com/banshee-data/relief.report/internal/derive"
	"github.com/banshee-data/relief.report/internal/engine"
	"github.com/banshee-data/relief.report/internal/monitoring"
	"github.com/banshee-data/relief.report/internal/pointcloud"
	"github.com/banshee-data/relief.report/internal/quicklook"
	"github.com/banshee-data/relief.report/internal/raster"
	"github.com/banshee-data/relief.report/internal/report"
	"github.com/banshee-data/relief.report/internal/tiles"
)

// Output filenames within the run's output directory.
const (
	FileGround    = "DTM_bareearth.tif"
	FileSurface   = "DSM_surface.tif"
	FileCanopy    = "CHM_canopy.tif"
	FileHillshade = "hillshade_multi.tif"
	FileSlope     = "slope.tif"
	FileCurvature = "curvature.tif"
	FileSVF       = "SVF.tif"
	FileLRM       = "LRM.tif"
	FileComposite = "archaeology_composite.tif"
	FileASC       = "DTM_bareearth.asc"
	FileQuicklook = "DTM_quicklook.png"
	FileReport    = "report.html"
)

// Options are the parameters of one run.
type Options struct {
	Input          string
	OutDir         string
	Resolution     float64
	AutoResolution bool
	Method         pointcloud.GroundMethod
	Profile        pointcloud.TerrainProfile
	Quicklook      bool
	Report         bool
}

// Workflow bundles the run's collaborators. Runner and LookPath are
// injectable so the whole pipeline is testable without PDAL/GDAL installed.
type Workflow struct {
	Runner   engine.Runner
	LookPath func(string) (string, error) // nil means exec.LookPath
	Catalog  *catalog.Catalog             // nil disables run accounting
	Events   monitoring.Collector         // nil means log-backed collector
}

// Summary describes a completed run.
type Summary struct {
	RunID      string
	Resolution float64
	TileCount  int
	Advanced   bool
	Plan       composite.Plan
	Products   []raster.Product
}

// Execute runs the pipeline. Fatal errors abort immediately and leave any
// partially-written outputs in place for inspection; the scratch directory
// is removed on every exit path.
func (w *Workflow) Execute(ctx context.Context, opts Options) (*Summary, error) {
	events := w.Events
	if events == nil {
		events = monitoring.LogCollector{}
	}
	info := func(stage, format string, v ...interface{}) {
		events.Publish(monitoring.Event{Stage: stage, Level: monitoring.LevelInfo, Message: fmt.Sprintf(format, v...)})
	}
	warn := func(stage, format string, v ...interface{}) {
		events.Publish(monitoring.Event{Stage: stage, Level: monitoring.LevelWarn, Message: fmt.Sprintf(format, v...)})
	}

	// Tool availability is checked before any stage runs.
	caps, err := engine.Probe(w.LookPath)
	if err != nil {
		return nil, err
	}
	if !caps.Advanced {
		warn("probe", "advanced relief engine not found; SVF and LRM will be skipped")
	}

	// Input discovery happens before any engine invocation.
	tileSet, err := tiles.Collect(opts.Input)
	if err != nil {
		return nil, err
	}
	info("tiles", "collected %d tiles from %s", len(tileSet), opts.Input)

	resolution := opts.Resolution
	if opts.AutoResolution {
		var est *advisor.Estimate
		resolution, est = advisor.Recommend(ctx, w.Runner, tileSet[0])
		if est == nil {
			warn("advisor", "density estimate unavailable; using default %.2fm resolution", resolution)
		} else {
			info("advisor", "%.2f points/m2 -> %.2fm resolution", est.Density, resolution)
		}
	}
	if resolution <= 0 {
		return nil, fmt.Errorf("resolution must be positive, got %g", resolution)
	}

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("output directory: %w", err)
	}
	scratch, err := os.MkdirTemp(opts.OutDir, ".scratch-")
	if err != nil {
		return nil, fmt.Errorf("scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	summary := &Summary{
		RunID:      uuid.NewString(),
		Resolution: resolution,
		TileCount:  len(tileSet),
		Advanced:   caps.Advanced,
	}

	if w.Catalog != nil {
		err := w.Catalog.StartRun(catalog.RunRecord{
			ID:             summary.RunID,
			Input:          opts.Input,
			OutputDir:      opts.OutDir,
			Resolution:     resolution,
			Method:         string(opts.Method),
			TerrainProfile: string(opts.Profile),
			Advanced:       caps.Advanced,
			TileCount:      len(tileSet),
			StartedAt:      time.Now(),
		})
		if err != nil {
			warn("catalog", "run not recorded: %v", err)
		}
	}

	runErr := w.execute(ctx, opts, tileSet, resolution, caps, scratch, summary, info, warn)

	if w.Catalog != nil {
		status, errMsg := "complete", ""
		if runErr != nil {
			status, errMsg = "failed", runErr.Error()
		}
		for _, p := range summary.Products {
			size := int64(0)
			if st, err := os.Stat(p.Path); err == nil {
				size = st.Size()
			}
			if err := w.Catalog.AddProduct(catalog.ProductRecord{
				RunID: summary.RunID, Name: p.Name, Path: p.Path,
				Kind: string(p.PixelType), SizeBytes: size,
			}); err != nil {
				warn("catalog", "product %s not recorded: %v", p.Name, err)
			}
		}
		if err := w.Catalog.FinishRun(summary.RunID, status, errMsg); err != nil {
			warn("catalog", "run completion not recorded: %v", err)
		}
	}

	if runErr != nil {
		return nil, runErr
	}
	return summary, nil
}

// execute runs the engine-facing stages. Split out so catalog accounting
// and scratch cleanup cover every exit path.
func (w *Workflow) execute(ctx context.Context, opts Options, tileSet []string, resolution float64,
	caps engine.Capabilities, scratch string, summary *Summary,
	info, warn func(stage, format string, v ...interface{})) error {

	out := func(name string) string { return filepath.Join(opts.OutDir, name) }
	addProduct := func(name, path string, pt raster.PixelType) {
		summary.Products = append(summary.Products, raster.Product{
			Name: name, Path: path, PixelType: pt, NoData: raster.NoDataValue,
		})
	}

	// Ground surface (bare earth).
	info("ground", "extracting bare-earth grid at %.2fm (%s, %s)", resolution, opts.Method, opts.Profile)
	groundSpec, err := pointcloud.GroundPipeline(tileSet, out(FileGround), resolution, opts.Method, opts.Profile)
	if err != nil {
		return err
	}
	if err := w.runPipeline(ctx, scratch, "ground", groundSpec); err != nil {
		return err
	}
	addProduct("bare-earth DTM", out(FileGround), raster.PixelFloat32)

	// Surface model (top of canopy/structures).
	info("surface", "extracting surface grid")
	surfaceSpec := pointcloud.SurfacePipeline(tileSet, out(FileSurface), resolution)
	if err := w.runPipeline(ctx, scratch, "surface", surfaceSpec); err != nil {
		return err
	}
	addProduct("surface DSM", out(FileSurface), raster.PixelFloat32)

	eng := &derive.Engine{Runner: w.Runner, Caps: caps, Scratch: scratch}

	info("derive", "computing canopy height")
	if err := eng.CanopyHeight(ctx, out(FileSurface), out(FileGround), out(FileCanopy)); err != nil {
		return err
	}
	addProduct("canopy height", out(FileCanopy), raster.PixelFloat32)

	info("derive", "computing multi-azimuth hillshade")
	if err := eng.MultiHillshade(ctx, out(FileGround), out(FileHillshade)); err != nil {
		return err
	}
	addProduct("multi-azimuth hillshade", out(FileHillshade), raster.PixelByte)

	info("derive", "computing slope")
	if err := eng.Slope(ctx, out(FileGround), out(FileSlope)); err != nil {
		return err
	}
	addProduct("slope", out(FileSlope), raster.PixelFloat32)

	info("derive", "computing curvature")
	if err := eng.Curvature(ctx, out(FileGround), out(FileCurvature)); err != nil {
		return err
	}
	addProduct("curvature", out(FileCurvature), raster.PixelFloat32)

	// Optional advanced derivatives; absence or failure degrades the
	// composite formula tiers, it never fails the run.
	svfPath, lrmPath := "", ""
	if err := eng.SkyViewFactor(ctx, out(FileGround), out(FileSVF)); err != nil {
		if !errors.Is(err, derive.ErrAdvancedUnavailable) {
			warn("derive", "sky view factor failed: %v", err)
		}
	} else {
		svfPath = out(FileSVF)
		addProduct("sky view factor", svfPath, raster.PixelFloat32)
	}
	if err := eng.LocalReliefModel(ctx, out(FileGround), out(FileLRM)); err != nil {
		if !errors.Is(err, derive.ErrAdvancedUnavailable) {
			warn("derive", "local relief model failed: %v", err)
		}
	} else {
		lrmPath = out(FileLRM)
		addProduct("local relief model", lrmPath, raster.PixelFloat32)
	}

	// Composite synthesis.
	synth := &composite.Synthesizer{Runner: w.Runner, Scratch: scratch}
	plan, err := synth.Build(ctx, composite.Inputs{
		Ground:    out(FileGround),
		Hillshade: out(FileHillshade),
		Slope:     out(FileSlope),
		Curvature: out(FileCurvature),
		SVF:       svfPath,
		LRM:       lrmPath,
	}, out(FileComposite))
	if err != nil {
		return err
	}
	summary.Plan = plan
	info("composite", "channels R=%s G=%s B=%s", plan.R, plan.G, plan.B)
	addProduct("archaeology composite", out(FileComposite), raster.PixelByte)

	// ASC export for lightweight viewers.
	if _, err := w.Runner.Run(ctx, "gdal_translate", "-of", "AAIGrid", out(FileGround), out(FileASC)); err != nil {
		return fmt.Errorf("asc export: %w", err)
	}
	addProduct("bare-earth ASC grid", out(FileASC), raster.PixelFloat32)

	// The reporting surfaces read rasters back from disk; on a dry run
	// nothing was written, so they are skipped rather than degraded.
	if engine.IsDry(w.Runner) {
		info("report", "dry run: skipping elevation stats, quicklook and report")
		return nil
	}

	// Reporting surfaces are best-effort: their failure never fails a run
	// whose rasters are already on disk.
	grid, summaryStats, edges, bins := w.loadElevation(out(FileASC), warn)

	if opts.Quicklook && grid != nil {
		if err := quicklook.Render(grid, "Bare-earth elevation", out(FileQuicklook)); err != nil {
			warn("quicklook", "%v", err)
		} else {
			addProduct("quicklook preview", out(FileQuicklook), raster.PixelByte)
		}
	}

	if opts.Report {
		data := report.Data{
			RunID:          summary.RunID,
			Input:          opts.Input,
			OutputDir:      opts.OutDir,
			Resolution:     resolution,
			Method:         string(opts.Method),
			TerrainProfile: string(opts.Profile),
			TileCount:      len(tileSet),
			Advanced:       caps.Advanced,
			Products:       summary.Products,
			Elevation:      summaryStats,
			HistEdges:      edges,
			HistBins:       bins,
		}
		if err := report.Write(data, out(FileReport)); err != nil {
			warn("report", "%v", err)
		} else {
			addProduct("processing report", out(FileReport), raster.PixelByte)
		}
	}

	return nil
}

// runPipeline writes the spec JSON into scratch and submits it to the
// point-cloud engine.
func (w *Workflow) runPipeline(ctx context.Context, scratch, product string, spec pointcloud.Pipeline) error {
	data, err := spec.JSON()
	if err != nil {
		return fmt.Errorf("%s pipeline: %w", product, err)
	}
	path := filepath.Join(scratch, product+"_pipeline.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%s pipeline: %w", product, err)
	}
	if _, err := w.Runner.Run(ctx, "pdal", "pipeline", path); err != nil {
		return newExtractionError(product, err)
	}
	return nil
}

// loadElevation reads the exported ASC grid for the reporting surfaces.
// Any failure here is a degradation, not a run failure.
func (w *Workflow) loadElevation(ascPath string, warn func(stage, format string, v ...interface{})) (*raster.Grid, *raster.Summary, []float64, []int) {
	grid, err := raster.ReadASCFile(ascPath)
	if err != nil {
		warn("report", "elevation stats unavailable: %v", err)
		return nil, nil, nil, nil
	}
	s := raster.Summarize(grid)
	edges, bins := raster.Histogram(grid, 40)
	return grid, &s, edges, bins
}
