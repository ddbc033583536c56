package engine

import (
	"fmt"
	"os/exec"
	"strings"
)

// RequiredTools are the external binaries the pipeline cannot run without.
var RequiredTools = []string{
	"pdal",
	"gdalinfo",
	"gdal_translate",
	"gdaldem",
	"gdal_calc.py",
	"gdalbuildvrt",
}

// AdvancedTool is the optional relief-visualization binary that provides
// sky-view-factor and local-relief-model derivatives. Its absence only
// degrades the composite, it never fails a run.
const AdvancedTool = "rvt"

// Capabilities reports which optional engines were found at startup. The
// probe runs once and the result is threaded through the pipeline so
// fallback behaviour is decided in one place.
type Capabilities struct {
	Advanced bool
}

// ToolingError lists the required binaries missing from PATH.
type ToolingError struct {
	Missing []string
}

func (e *ToolingError) Error() string {
	return fmt.Sprintf("missing required tools: %s", strings.Join(e.Missing, ", "))
}

// Probe checks tool availability. lookPath is injectable for tests and
// defaults to exec.LookPath when nil. A non-nil error is always a
// *ToolingError naming every missing required binary.
func Probe(lookPath func(string) (string, error)) (Capabilities, error) {
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	var missing []string
	for _, tool := range RequiredTools {
		if _, err := lookPath(tool); err != nil {
			missing = append(missing, tool)
		}
	}
	if len(missing) > 0 {
		return Capabilities{}, &ToolingError{Missing: missing}
	}

	caps := Capabilities{}
	if _, err := lookPath(AdvancedTool); err == nil {
		caps.Advanced = true
	}
	return caps, nil
}
