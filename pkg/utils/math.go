package utils

import "math"

// ClampFloat64 clamps a float64 value between min and max
func ClampFloat64(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// ClipVector clamps every component of x into [lower[i], upper[i]].
func ClipVector(x, lower, upper []float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		out[i] = ClampFloat64(x[i], lower[i], upper[i])
	}
	return out
}

// InBounds reports whether every component lies in its inclusive range.
// NaN components are out of bounds.
func InBounds(x, lower, upper []float64) bool {
	for i := range x {
		if math.IsNaN(x[i]) || x[i] < lower[i] || x[i] > upper[i] {
			return false
		}
	}
	return true
}

// Midpoint returns (lower+upper)/2 per dimension.
func Midpoint(lower, upper []float64) []float64 {
	out := make([]float64, len(lower))
	for i := range lower {
		out[i] = (lower[i] + upper[i]) * 0.5
	}
	return out
}
