package forecaster

import (
	"github.com/epitrack/epitrack/internal/models"
)

// MovingAverage is the always-available fallback: a trailing simple moving
// average with a linear trend projection. It requires no model fitting and
// must never fail for a valid input series.
type MovingAverage struct {
	values []float64
	ma     []float64
	window int
}

// NewMovingAverage builds a fresh strategy for one run.
func NewMovingAverage() *MovingAverage {
	return &MovingAverage{}
}

func (m *MovingAverage) Name() models.ModelType {
	return models.ModelMovingAverage
}

// Fit computes the trailing moving average with window min(7, n/4), clamped
// to at least 1. Early positions average over however many points exist.
func (m *MovingAverage) Fit(values []float64) error {
	if len(values) == 0 {
		return &FitError{Strategy: m.Name(), Kind: FitFailed, Err: ErrEmptyInput}
	}

	window := len(values) / 4
	if window > 7 {
		window = 7
	}
	if window < 1 {
		window = 1
	}

	ma := make([]float64, len(values))
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		n := i + 1
		if n > window {
			n = window
		}
		ma[i] = sum / float64(n)
	}

	m.values = append([]float64(nil), values...)
	m.ma = ma
	m.window = window
	return nil
}

// Forecast projects the last moving-average value forward along the mean
// first difference of the final window, clamping at zero since counts cannot
// be negative. No intervals are estimated.
func (m *MovingAverage) Forecast(horizon int) (Prediction, error) {
	if m.ma == nil {
		return Prediction{}, &FitError{Strategy: m.Name(), Kind: FitFailed, Err: errNotFitted}
	}

	tail := m.ma
	if len(tail) > m.window {
		tail = tail[len(tail)-m.window:]
	}

	var trend float64
	if len(tail) > 1 {
		trend = (tail[len(tail)-1] - tail[0]) / float64(len(tail)-1)
	}

	last := tail[len(tail)-1]
	points := make([]float64, horizon)
	for i := range points {
		v := last + trend*float64(i+1)
		if v < 0 {
			v = 0
		}
		points[i] = v
	}
	return Prediction{Points: points}, nil
}

// FittedValues returns the moving average itself, aligned to the original
// series for metric computation.
func (m *MovingAverage) FittedValues() []float64 {
	return m.ma
}
