// Package robust holds the order statistics shared by the ranking stages,
// the aggregator and the validation layer.
package robust

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

const (
	// LowerExtremumQuantile and UpperExtremumQuantile bound the
	// quantile-extremum rule
	LowerExtremumQuantile = 0.33
	UpperExtremumQuantile = 0.67
)

// Quantile returns the pth quantile of values using linear interpolation
// between closest ranks (R-7). values is not modified.
func Quantile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := sortedCopy(values)
	return quantileSorted(sorted, p)
}

func quantileSorted(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 || p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}
	h := float64(n-1) * p
	i := int(h)
	if i+1 >= n {
		return sorted[n-1]
	}
	return sorted[i] + (h-math.Floor(h))*(sorted[i+1]-sorted[i])
}

// QuantileExtremum returns whichever of the 33rd and 67th percentiles has the
// larger magnitude (ties keep the 33rd). A minority of strong values in one
// direction survives where a mean would cancel it.
func QuantileExtremum(values []float64) float64 {
	switch len(values) {
	case 0:
		return 0
	case 1:
		return values[0]
	}
	sorted := sortedCopy(values)
	lo := quantileSorted(sorted, LowerExtremumQuantile)
	hi := quantileSorted(sorted, UpperExtremumQuantile)
	if math.Abs(hi) > math.Abs(lo) {
		return hi
	}
	return lo
}

// Median returns the sample median, 0 for empty input
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m, err := stats.Median(stats.Float64Data(values))
	if err != nil {
		return 0
	}
	return m
}

// Mean returns the arithmetic mean, 0 for empty input
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m, err := stats.Mean(stats.Float64Data(values))
	if err != nil {
		return 0
	}
	return m
}

// WeightedMedian returns the lowest value whose cumulative weight reaches half
// of the total. Zero total weight falls back to the unweighted median.
func WeightedMedian(values, weights []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if len(weights) != len(values) {
		return Median(values)
	}

	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return Median(values)
	}

	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	x := make([]float64, len(values))
	w := make([]float64, len(values))
	for i, j := range idx {
		x[i] = values[j]
		w[i] = math.Max(0, weights[j])
	}
	return stat.Quantile(0.5, stat.Empirical, x, w)
}

// MeanStdDev returns the mean and sample standard deviation (n-1)
func MeanStdDev(values []float64) (mean, std float64) {
	switch len(values) {
	case 0:
		return 0, 0
	case 1:
		return values[0], 0
	}
	return stat.MeanStdDev(values, nil)
}

func sortedCopy(values []float64) []float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return sorted
}
