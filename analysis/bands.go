package analysis

import "math"

// Cutoffs are the fractional bin boundaries between bass, mid and high.
type Cutoffs struct {
	Bass float64
	Mid  float64
}

// DefaultCutoffs splits the spectrum at 10% and 40% of the bins.
var DefaultCutoffs = Cutoffs{Bass: 0.1, Mid: 0.4}

// Range is a half-open bin interval [Start, End).
type Range struct {
	Start, End int
}

func (r Range) Len() int { return r.End - r.Start }

// Partition splits n bins into bass, mid and high ranges that are contiguous,
// disjoint and together cover [0, n).
func Partition(n int, c Cutoffs) [3]Range {
	if n < 0 {
		n = 0
	}
	bassEnd := clampInt(int(math.Floor(float64(n)*c.Bass)), 0, n)
	midEnd := clampInt(int(math.Floor(float64(n)*c.Mid)), bassEnd, n)
	return [3]Range{
		{0, bassEnd},
		{bassEnd, midEnd},
		{midEnd, n},
	}
}

// bandMean returns the mean of bins as a fraction of 255. Empty ranges are 0.
func bandMean(bins []byte) float32 {
	if len(bins) == 0 {
		return 0
	}
	sum := 0
	for _, b := range bins {
		sum += int(b)
	}
	return float32(sum) / float32(len(bins)) / 255
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
