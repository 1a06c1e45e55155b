package forecaster

import (
	"math"
)

// Metric keys returned by Accuracy.
const (
	MetricMAE  = "mae"
	MetricRMSE = "rmse"
	MetricMAPE = "mape"
)

// Accuracy computes in-sample accuracy metrics between positionally aligned
// actual and predicted values. Pairs where either side is NaN or infinite are
// dropped before computing. The percentage error excludes pairs whose actual
// value is exactly zero, since the ratio is undefined there. When no valid
// pairs remain an empty map is returned; callers must treat "no metrics" as a
// displayable state, not a failure.
func Accuracy(actual, predicted []float64) map[string]float64 {
	n := len(actual)
	if len(predicted) < n {
		n = len(predicted)
	}

	var absSum, sqSum float64
	var pairs int
	var apeSum float64
	var apePairs int

	for i := 0; i < n; i++ {
		a, p := actual[i], predicted[i]
		if !isFinite(a) || !isFinite(p) {
			continue
		}
		diff := a - p
		absSum += math.Abs(diff)
		sqSum += diff * diff
		pairs++
		if a != 0 {
			apeSum += math.Abs(diff / a)
			apePairs++
		}
	}

	if pairs == 0 {
		return map[string]float64{}
	}

	metrics := map[string]float64{
		MetricMAE:  absSum / float64(pairs),
		MetricRMSE: math.Sqrt(sqSum / float64(pairs)),
	}
	if apePairs > 0 {
		metrics[MetricMAPE] = apeSum / float64(apePairs) * 100.0
	} else {
		metrics[MetricMAPE] = 0
	}
	return metrics
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// allFinite reports whether every element is a finite number. A nil slice is
// vacuously finite.
func allFinite(xs []float64) bool {
	for _, v := range xs {
		if !isFinite(v) {
			return false
		}
	}
	return true
}
