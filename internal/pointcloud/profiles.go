// Package pointcloud builds the processing pipeline specifications consumed
// by the external point-cloud engine. A pipeline is an ordered list of stage
// descriptors (read, classify, outlier removal, grid interpolation) that is
// serialized to JSON and submitted once; all numeric policy for ground
// extraction lives here.
package pointcloud

import "fmt"

// GroundMethod selects how ground points are identified.
type GroundMethod string

const (
	// MethodExistingClass trusts the classification already present in the
	// tiles (ASPRS class 2).
	MethodExistingClass GroundMethod = "existing-class"
	// MethodSMRF reclassifies ground with a simple morphological filter
	// tuned by the terrain profile.
	MethodSMRF GroundMethod = "smrf"
)

// TerrainProfile names a fixed SMRF tuning. Vegetation density and feature
// subtlety pull filter aggressiveness in opposite directions, so the three
// profiles are a closed set rather than free parameters.
type TerrainProfile string

const (
	ProfileDenseForest    TerrainProfile = "dense_forest"
	ProfileMixed          TerrainProfile = "mixed"
	ProfileArchaeological TerrainProfile = "archaeological"
)

// SMRFParams is one immutable reclassification tuning.
type SMRFParams struct {
	Scalar    float64
	Slope     float64
	Threshold float64
	Window    float64
}

// reclassProfiles is the fixed per-profile table. Dense canopy needs a wide
// window and low threshold to punch through vegetation; known archaeological
// sites need the opposite so low-relief walls and platforms survive the
// filter.
var reclassProfiles = map[TerrainProfile]SMRFParams{
	ProfileDenseForest:    {Scalar: 1.5, Slope: 0.10, Threshold: 0.35, Window: 25.0},
	ProfileMixed:          {Scalar: 1.2, Slope: 0.15, Threshold: 0.45, Window: 18.0},
	ProfileArchaeological: {Scalar: 1.0, Slope: 0.20, Threshold: 0.50, Window: 12.0},
}

// ProfileFor returns the SMRF tuning for a terrain profile.
func ProfileFor(p TerrainProfile) (SMRFParams, error) {
	params, ok := reclassProfiles[p]
	if !ok {
		return SMRFParams{}, fmt.Errorf("unknown terrain profile %q", p)
	}
	return params, nil
}

// Profiles lists the supported terrain profiles.
func Profiles() []TerrainProfile {
	return []TerrainProfile{ProfileDenseForest, ProfileMixed, ProfileArchaeological}
}

// ValidMethod reports whether m names a supported ground method.
func ValidMethod(m GroundMethod) bool {
	return m == MethodExistingClass || m == MethodSMRF
}
