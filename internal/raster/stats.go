package raster

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Summary condenses a grid's valid samples for reporting.
type Summary struct {
	ValidCells  int
	NoDataCells int
	Min         float64
	Max         float64
	Mean        float64
	StdDev      float64
	Median      float64
}

// Summarize computes elevation statistics over the grid, excluding nodata
// samples. An all-nodata grid yields a zero Summary with the cell counts set.
func Summarize(g *Grid) Summary {
	valid := make([]float64, 0, len(g.Values))
	nodata := 0
	for _, v := range g.Values {
		if v == g.NoData || math.IsNaN(v) {
			nodata++
			continue
		}
		valid = append(valid, v)
	}

	s := Summary{ValidCells: len(valid), NoDataCells: nodata}
	if len(valid) == 0 {
		return s
	}

	sort.Float64s(valid)
	s.Min = valid[0]
	s.Max = valid[len(valid)-1]
	s.Mean = stat.Mean(valid, nil)
	s.StdDev = stat.StdDev(valid, nil)
	s.Median = stat.Quantile(0.5, stat.Empirical, valid, nil)
	return s
}

// Histogram buckets the grid's valid samples into n equal-width bins between
// min and max. Returns the bin lower edges and counts; nil when the grid has
// no valid samples or no spread.
func Histogram(g *Grid, n int) (edges []float64, counts []int) {
	s := Summarize(g)
	if s.ValidCells == 0 || s.Max == s.Min || n <= 0 {
		return nil, nil
	}

	width := (s.Max - s.Min) / float64(n)
	edges = make([]float64, n)
	counts = make([]int, n)
	for i := range edges {
		edges[i] = s.Min + float64(i)*width
	}
	for _, v := range g.Values {
		if v == g.NoData || math.IsNaN(v) {
			continue
		}
		bin := int((v - s.Min) / width)
		if bin >= n {
			bin = n - 1
		}
		counts[bin]++
	}
	return edges, counts
}
