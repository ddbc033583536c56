// relief.report converts raw airborne LiDAR tiles into bare-earth rasters
// and an archaeology-tuned composite visualization. The heavy numerics are
// delegated to PDAL and GDAL (plus an optional relief-visualization tool);
// this binary owns pipeline topology, parameter policy and band formulas.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/relief.report/internal/catalog"
	"github.com/banshee-data/relief.report/internal/config"
	"github.com/banshee-data/relief.report/internal/engine"
	"github.com/banshee-data/relief.report/internal/pointcloud"
	"github.com/banshee-data/relief.report/internal/version"
	"github.com/banshee-data/relief.report/internal/workflow"
)

var (
	input          = flag.String("input", "", "Path to a LAZ/LAS file or a directory of tiles")
	outDir         = flag.String("out", "", "Output directory")
	resolution     = flag.Float64("resolution", 0, "Output raster resolution in meters (auto-detected when omitted)")
	autoResolution = flag.Bool("auto-resolution", false, "Derive resolution from point density (overrides -resolution)")
	method         = flag.String("method", "", "Ground extraction: 'existing-class' or 'smrf'")
	terrainType    = flag.String("terrain-type", "", "SMRF tuning: 'dense_forest', 'mixed' or 'archaeological'")
	configPath     = flag.String("config", "", "Optional JSON config file (flags override)")
	catalogPath    = flag.String("catalog", "", "Run catalog database file ('' uses config default, 'off' disables)")
	noQuicklook    = flag.Bool("no-quicklook", false, "Skip the PNG preview of the bare-earth grid")
	noReport       = flag.Bool("no-report", false, "Skip the HTML processing report")
	dryRun         = flag.Bool("dry-run", false, "Log external commands instead of executing them")
	showVersion    = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("relief.report %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}
	if *input == "" || *outDir == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.EmptyProcessingConfig()
	if *configPath != "" {
		loaded, err := config.LoadProcessingConfig(*configPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		cfg = loaded
	}

	opts := workflow.Options{
		Input:          *input,
		OutDir:         *outDir,
		Resolution:     cfg.GetResolution(),
		AutoResolution: cfg.GetAutoResolution(),
		Method:         cfg.GetMethod(),
		Profile:        cfg.GetTerrainProfile(),
		Quicklook:      cfg.GetQuicklook() && !*noQuicklook,
		Report:         cfg.GetReport() && !*noReport,
	}
	if *resolution > 0 {
		opts.Resolution = *resolution
		opts.AutoResolution = false
	}
	if *autoResolution {
		opts.AutoResolution = true
	}
	if *method != "" {
		opts.Method = pointcloud.GroundMethod(*method)
	}
	if *terrainType != "" {
		opts.Profile = pointcloud.TerrainProfile(*terrainType)
	}
	if !pointcloud.ValidMethod(opts.Method) {
		log.Fatalf("unknown ground method %q", opts.Method)
	}
	if _, err := pointcloud.ProfileFor(opts.Profile); err != nil {
		log.Fatalf("%v (supported: %v)", err, pointcloud.Profiles())
	}

	wf := &workflow.Workflow{Runner: &engine.OSRunner{DryRun: *dryRun}}

	dbPath := cfg.GetCatalogPath()
	if *catalogPath != "" {
		dbPath = *catalogPath
	}
	if dbPath != "" && dbPath != "off" && !*dryRun {
		cat, err := catalog.Open(dbPath)
		if err != nil {
			log.Fatalf("catalog: %v", err)
		}
		defer cat.Close()
		wf.Catalog = cat
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := wf.Execute(ctx, opts)
	if err != nil {
		var te *engine.ToolingError
		if errors.As(err, &te) {
			log.Fatalf("%v\nInstall PDAL and GDAL first. On macOS (Homebrew):\n  brew install pdal gdal\nOn Ubuntu:\n  sudo apt-get install -y pdal gdal-bin", te)
		}
		log.Fatalf("run failed: %v", err)
	}

	log.Printf("processing complete: %d products in %s (run %s, %.2fm resolution)",
		len(summary.Products), *outDir, summary.RunID, summary.Resolution)
	for _, p := range summary.Products {
		log.Printf("  - %s: %s", p.Name, p.Path)
	}
}
