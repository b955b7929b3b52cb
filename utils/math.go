package utils

import "math"

// Clamp limits x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(x, hi))
}

// Sign returns 1 for true and -1 for false. Used to turn a direction flag into a multiplier.
func Sign(positive bool) float64 {
	if positive {
		return 1
	}
	return -1
}
