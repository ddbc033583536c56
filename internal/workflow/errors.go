package workflow

import (
	"errors"
	"fmt"

	"github.com/banshee-data/relief.report/internal/engine"
)

// Fatal error classes are defined where they arise: tiles.ErrNoInput for
// input discovery, *engine.ToolingError for missing binaries,
// derive.ErrFootprintMismatch for misaligned rasters and
// composite.ErrInputMissing for absent base rasters. The workflow adds only
// the extraction failure type below.

// ExtractionError reports a point-cloud engine failure while materializing
// the ground or surface grid. Extraction parameters are deterministic per
// profile, so the failure is surfaced with the exact command and exit code
// and never retried.
type ExtractionError struct {
	Product  string // "ground" or "surface"
	Cmd      string
	ExitCode int
	Err      error
}

func (e *ExtractionError) Error() string {
	if e.Cmd != "" {
		return fmt.Sprintf("%s extraction failed (exit %d): %s", e.Product, e.ExitCode, e.Cmd)
	}
	return fmt.Sprintf("%s extraction failed: %v", e.Product, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

func newExtractionError(product string, err error) *ExtractionError {
	ee := &ExtractionError{Product: product, Err: err, ExitCode: -1}
	var xe *engine.ExitError
	if errors.As(err, &xe) {
		ee.Cmd = xe.Cmd
		ee.ExitCode = xe.ExitCode
	}
	return ee
}
