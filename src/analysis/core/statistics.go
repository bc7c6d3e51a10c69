package core

import "math"

// -----------------------------------------------------------------------------

// CalculateMeanStd computes mean and standard deviation.
func CalculateMeanStd(data []float64) (float64, float64) {
	if len(data) == 0 {
		return 0, 0
	}

	sum := 0.0
	for _, v := range data {
		sum += v
	}
	mean := sum / float64(len(data))

	if len(data) == 1 {
		return mean, 0
	}

	// Population std (N denominator)
	varianceSum := 0.0
	for _, v := range data {
		varianceSum += (v - mean) * (v - mean)
	}
	std := math.Sqrt(varianceSum / float64(len(data)))
	return mean, std
}

// -----------------------------------------------------------------------------

// MinMax returns the smallest and largest value. Both are 0 for empty input.
func MinMax(data []float64) (float64, float64) {
	if len(data) == 0 {
		return 0, 0
	}
	lo, hi := data[0], data[0]
	for _, v := range data[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// -----------------------------------------------------------------------------

// CountInRange counts values within [lo, hi], bounds included.
func CountInRange(data []float64, lo, hi float64) int {
	n := 0
	for _, v := range data {
		if v >= lo && v <= hi {
			n++
		}
	}
	return n
}

// -----------------------------------------------------------------------------

// Round rounds to the given number of decimals, ties to even.
func Round(value float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.RoundToEven(value*p) / p
}
