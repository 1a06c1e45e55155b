package forecaster

import (
	"github.com/epitrack/epitrack/internal/models"
)

// Prediction is a strategy's raw output in modeling space. Lower and Upper
// are nil when the strategy does not estimate intervals; when present they
// have the same length as Points.
type Prediction struct {
	Points []float64
	Lower  []float64
	Upper  []float64
}

// Strategy is one interchangeable fitting/predicting approach. Fit consumes
// the (possibly transformed) series and owns the resulting model state;
// Forecast and FittedValues are only valid after a successful Fit. Strategies
// work entirely in modeling space — the orchestrator applies the inverse
// transform, keeping transform policy in one place.
//
// A Strategy instance serves exactly one forecast run; the orchestrator
// constructs fresh instances per call so no state leaks between runs.
type Strategy interface {
	Name() models.ModelType
	Fit(values []float64) error
	Forecast(horizon int) (Prediction, error)
	FittedValues() []float64
}

// StrategyFactory builds a fresh strategy for one run. Returning a
// CapabilityUnavailable FitError marks the strategy as switched off, moving
// the chain on without attempting a fit.
type StrategyFactory func(cfg models.ForecastConfig) (Strategy, error)
