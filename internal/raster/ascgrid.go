package raster

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Grid is an in-memory elevation grid loaded from an Arc/Info ASCII export.
// Values are stored row-major, top row first, matching the file layout.
type Grid struct {
	Cols     int
	Rows     int
	XLL      float64
	YLL      float64
	CellSize float64
	NoData   float64
	Values   []float64
}

// Value returns the sample at (col, row) with row 0 at the top of the grid.
func (g *Grid) Value(col, row int) float64 {
	return g.Values[row*g.Cols+col]
}

// ReadASCFile loads an AAIGrid (.asc) file.
func ReadASCFile(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	g, err := ReadASC(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// ReadASC parses an AAIGrid stream. The header accepts the keys GDAL emits
// (ncols, nrows, xllcorner/xllcenter, yllcorner/yllcenter, cellsize,
// NODATA_value) in any case; NODATA_value defaults to the pipeline sentinel
// when absent.
func ReadASC(r io.Reader) (*Grid, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)

	g := &Grid{NoData: NoDataValue}
	var values []float64
	headerDone := false

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)

		if !headerDone {
			key := strings.ToLower(fields[0])
			if len(fields) == 2 && isHeaderKey(key) {
				v, err := strconv.ParseFloat(fields[1], 64)
				if err != nil {
					return nil, fmt.Errorf("header %s: %w", key, err)
				}
				switch key {
				case "ncols":
					g.Cols = int(v)
				case "nrows":
					g.Rows = int(v)
				case "xllcorner", "xllcenter":
					g.XLL = v
				case "yllcorner", "yllcenter":
					g.YLL = v
				case "cellsize":
					g.CellSize = v
				case "nodata_value":
					g.NoData = v
				}
				continue
			}
			if g.Cols == 0 || g.Rows == 0 {
				return nil, fmt.Errorf("data before ncols/nrows header")
			}
			headerDone = true
		}

		for _, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("bad sample %q: %w", f, err)
			}
			values = append(values, v)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	want := g.Cols * g.Rows
	if want == 0 {
		return nil, fmt.Errorf("missing ncols/nrows header")
	}
	if len(values) != want {
		return nil, fmt.Errorf("grid has %d samples, header declares %d", len(values), want)
	}
	g.Values = values
	return g, nil
}

func isHeaderKey(k string) bool {
	switch k {
	case "ncols", "nrows", "xllcorner", "xllcenter", "yllcorner", "yllcenter", "cellsize", "nodata_value":
		return true
	}
	return false
}
