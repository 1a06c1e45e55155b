package forecaster

import (
	"github.com/epitrack/epitrack/internal/models"
)

// SeasonalPeriod is the cycle length used by seasonal modeling terms.
// Epidemiological count series show strong weekly reporting cycles.
const SeasonalPeriod = 7

// SeasonalARIMA fits the fixed-order model the dashboard prefers:
// non-seasonal (1,1,1), plus seasonal (1,0,1) with period 7 when seasonality
// is enabled. It is attempted first in the fallback chain.
type SeasonalARIMA struct {
	seasonal bool
	fit      *arimaFit
}

// NewSeasonalARIMA builds a fresh strategy for one run.
func NewSeasonalARIMA(seasonal bool) *SeasonalARIMA {
	return &SeasonalARIMA{seasonal: seasonal}
}

func (s *SeasonalARIMA) Name() models.ModelType {
	return models.ModelSeasonalARIMA
}

func (s *SeasonalARIMA) Fit(values []float64) error {
	order := arimaOrder{p: 1, q: 1}
	if s.seasonal {
		order.bigP = 1
		order.bigQ = 1
		order.period = SeasonalPeriod
	}

	fit, err := fitARIMA(values, order)
	if err != nil {
		return &FitError{Strategy: s.Name(), Kind: FitFailed, Err: err}
	}
	s.fit = fit
	return nil
}

func (s *SeasonalARIMA) Forecast(horizon int) (Prediction, error) {
	if s.fit == nil {
		return Prediction{}, &FitError{Strategy: s.Name(), Kind: FitFailed, Err: errNotFitted}
	}
	points, lower, upper := s.fit.forecast(horizon)
	return Prediction{Points: points, Lower: lower, Upper: upper}, nil
}

func (s *SeasonalARIMA) FittedValues() []float64 {
	if s.fit == nil {
		return nil
	}
	return s.fit.fittedValues()
}
