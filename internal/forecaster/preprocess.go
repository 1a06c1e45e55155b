package forecaster

import (
	"math"
)

// Transform maps a non-negative series into modeling space. When applyLog is
// set it applies log(1+x) elementwise, which is defined for the whole input
// domain (x >= 0), stabilizes variance, and preserves ordering. Otherwise it
// returns a copy unchanged. Pure function; the input slice is never mutated.
func Transform(values []float64, applyLog bool) []float64 {
	out := make([]float64, len(values))
	if !applyLog {
		copy(out, values)
		return out
	}
	for i, v := range values {
		out[i] = math.Log1p(v)
	}
	return out
}

// Inverse undoes Transform, mapping modeling-space quantities back into
// original units via exp(x)-1. Used for forecasts, confidence bounds, and
// fitted values before metrics are computed.
func Inverse(values []float64, applyLog bool) []float64 {
	out := make([]float64, len(values))
	if !applyLog {
		copy(out, values)
		return out
	}
	for i, v := range values {
		out[i] = math.Expm1(v)
	}
	return out
}
