// Package config loads processing parameters for a derivation run.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/relief.report/internal/advisor"
	"github.com/banshee-data/relief.report/internal/pointcloud"
)

// ProcessingConfig is the JSON-file form of the run parameters. Fields are
// pointers so a partial config file only overrides what it names; the Get*
// methods supply defaults for everything else. CLI flags override file
// values in main.
type ProcessingConfig struct {
	Resolution     *float64 `json:"resolution,omitempty"`      // grid cell size in meters
	AutoResolution *bool    `json:"auto_resolution,omitempty"` // derive resolution from point density
	Method         *string  `json:"method,omitempty"`          // "existing-class" or "smrf"
	TerrainProfile *string  `json:"terrain_profile,omitempty"` // "dense_forest", "mixed", "archaeological"
	Quicklook      *bool    `json:"quicklook,omitempty"`       // render a PNG preview of the bare-earth grid
	Report         *bool    `json:"report,omitempty"`          // write the HTML processing report
	CatalogPath    *string  `json:"catalog,omitempty"`         // run catalog database file ("" disables)
}

// EmptyProcessingConfig returns a config with all fields unset.
func EmptyProcessingConfig() *ProcessingConfig {
	return &ProcessingConfig{}
}

// LoadProcessingConfig loads a config from a JSON file. Omitted fields keep
// their defaults, so partial configs are safe.
func LoadProcessingConfig(path string) (*ProcessingConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyProcessingConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that explicitly-set values are usable.
func (c *ProcessingConfig) Validate() error {
	if c.Resolution != nil && *c.Resolution <= 0 {
		return fmt.Errorf("resolution must be positive, got %f", *c.Resolution)
	}
	if c.Method != nil {
		if !pointcloud.ValidMethod(pointcloud.GroundMethod(*c.Method)) {
			return fmt.Errorf("unknown ground method %q", *c.Method)
		}
	}
	if c.TerrainProfile != nil {
		if _, err := pointcloud.ProfileFor(pointcloud.TerrainProfile(*c.TerrainProfile)); err != nil {
			return err
		}
	}
	return nil
}

// GetResolution returns the configured resolution or the advisor default.
func (c *ProcessingConfig) GetResolution() float64 {
	if c.Resolution == nil {
		return advisor.DefaultResolution
	}
	return *c.Resolution
}

// GetAutoResolution reports whether resolution should come from the density
// advisor. Defaults to true when no explicit resolution is configured.
func (c *ProcessingConfig) GetAutoResolution() bool {
	if c.AutoResolution == nil {
		return c.Resolution == nil
	}
	return *c.AutoResolution
}

// GetMethod returns the ground extraction method.
func (c *ProcessingConfig) GetMethod() pointcloud.GroundMethod {
	if c.Method == nil {
		return pointcloud.MethodExistingClass
	}
	return pointcloud.GroundMethod(*c.Method)
}

// GetTerrainProfile returns the SMRF terrain profile.
func (c *ProcessingConfig) GetTerrainProfile() pointcloud.TerrainProfile {
	if c.TerrainProfile == nil {
		return pointcloud.ProfileMixed
	}
	return pointcloud.TerrainProfile(*c.TerrainProfile)
}

// GetQuicklook reports whether the PNG preview is enabled.
func (c *ProcessingConfig) GetQuicklook() bool {
	if c.Quicklook == nil {
		return true
	}
	return *c.Quicklook
}

// GetReport reports whether the HTML report is enabled.
func (c *ProcessingConfig) GetReport() bool {
	if c.Report == nil {
		return true
	}
	return *c.Report
}

// GetCatalogPath returns the catalog database path; empty disables the
// catalog.
func (c *ProcessingConfig) GetCatalogPath() string {
	if c.CatalogPath == nil {
		return "relief_runs.db"
	}
	return *c.CatalogPath
}
