// Package engine is the boundary to the external geospatial tooling (PDAL,
// GDAL, and the optional relief-visualization tool). The pipeline submits
// fully-formed command invocations and receives combined output or a typed
// nonzero-exit failure; it never interprets tool internals.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/banshee-data/relief.report/internal/monitoring"
)

// Runner executes one external command and returns its combined output.
// A nonzero exit is reported as an *ExitError wrapped in the returned error.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExitError carries the failing command line and exit code so callers can
// surface exactly what the external engine was asked to do.
type ExitError struct {
	Cmd      string
	ExitCode int
	Output   []byte
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command failed with exit code %d: %s", e.ExitCode, e.Cmd)
}

// ExitCode extracts the exit code from an error chain, or -1 if the error
// does not carry one.
func ExitCode(err error) int {
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode
	}
	return -1
}

// IsDry reports whether r only logs commands instead of executing them.
// Stages that parse command output consult it and substitute a placeholder
// for the output they would have read.
func IsDry(r Runner) bool {
	d, ok := r.(interface{ Dry() bool })
	return ok && d.Dry()
}

// OSRunner executes commands on the local machine.
type OSRunner struct {
	// DryRun logs commands instead of executing them.
	DryRun bool
}

// Dry reports whether this runner only logs commands.
func (r *OSRunner) Dry() bool { return r.DryRun }

// Run executes the command, logging the invocation first. Cancellation of
// ctx kills the process.
func (r *OSRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	line := name + " " + strings.Join(args, " ")
	if r.DryRun {
		monitoring.Logf("[dry-run] would execute: %s", line)
		return nil, nil
	}

	monitoring.Logf("[cmd] %s", line)
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		var xe *exec.ExitError
		if errors.As(err, &xe) {
			return output, &ExitError{Cmd: line, ExitCode: xe.ExitCode(), Output: output}
		}
		return output, fmt.Errorf("exec %s: %w", name, err)
	}
	return output, nil
}
