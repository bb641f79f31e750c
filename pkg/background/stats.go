package background

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Stats summarises a sigma-clipped sample
type Stats struct {
	Mean   float64
	Median float64
	Std    float64

	// N is the number of values that survived clipping
	N int
}

// SigmaClippedStats computes mean, median and population standard deviation
// of the finite values after iteratively rejecting points further than
// sigma standard deviations from the median. Iteration stops when nothing is
// rejected or after maxIters rounds. An input without finite values yields
// the zero Stats.
func SigmaClippedStats(values []float64, sigma float64, maxIters int) Stats {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			sorted = append(sorted, v)
		}
	}
	return clippedSorted(sorted, sigma, maxIters)
}

// clippedSorted sorts buf in place and clips it. Because clipping around the
// median removes values from both tails, the surviving sample is always a
// contiguous run of the sorted buffer.
func clippedSorted(buf []float64, sigma float64, maxIters int) Stats {
	if len(buf) == 0 {
		return Stats{}
	}
	sort.Float64s(buf)

	kept := buf
	for iter := 0; iter < maxIters; iter++ {
		med := sortedMedian(kept)
		_, std := stat.PopMeanStdDev(kept, nil)
		lo := med - sigma*std
		hi := med + sigma*std

		start := sort.SearchFloat64s(kept, lo)
		end := sort.Search(len(kept), func(i int) bool { return kept[i] > hi })
		if start == 0 && end == len(kept) {
			break
		}
		if end <= start {
			break
		}
		kept = kept[start:end]
	}

	mean, std := stat.PopMeanStdDev(kept, nil)
	return Stats{
		Mean:   mean,
		Median: sortedMedian(kept),
		Std:    std,
		N:      len(kept),
	}
}

// sortedMedian returns the median of an ascending slice, averaging the two
// middle values for even lengths
func sortedMedian(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}
