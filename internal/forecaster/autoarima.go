package forecaster

import (
	"errors"
	"fmt"

	"github.com/epitrack/epitrack/internal/models"
)

var errNotFitted = errors.New("model not fitted")

// Search bounds for the stepwise order search.
const (
	maxNonSeasonalOrder = 3
	maxSeasonalOrder    = 2
	maxCandidates       = 40
)

// AutoARIMA performs a bounded stepwise search over ARIMA orders minimizing
// AIC. Individual candidate failures are skipped rather than aborting the
// search. It is only attempted when the seasonal strategy fails, because the
// search is considerably more expensive.
type AutoARIMA struct {
	seasonal bool
	fit      *arimaFit
}

// NewAutoARIMA builds a fresh strategy for one run.
func NewAutoARIMA(seasonal bool) *AutoARIMA {
	return &AutoARIMA{seasonal: seasonal}
}

func (a *AutoARIMA) Name() models.ModelType {
	return models.ModelAutoARIMA
}

// Fit runs a stepwise hill-climb from a central starting order: evaluate the
// current order and its one-step neighbors, move to the best improvement,
// stop when no neighbor improves or the candidate budget is spent.
func (a *AutoARIMA) Fit(values []float64) error {
	start := arimaOrder{p: 2, q: 2}
	if a.seasonal {
		start.bigP = 1
		start.bigQ = 1
		start.period = SeasonalPeriod
	}

	visited := make(map[arimaOrder]bool)
	evaluated := 0

	evaluate := func(order arimaOrder) *arimaFit {
		if visited[order] || evaluated >= maxCandidates {
			return nil
		}
		visited[order] = true
		evaluated++
		fit, err := fitARIMA(values, order)
		if err != nil {
			// Candidate failed; keep searching.
			return nil
		}
		return fit
	}

	best := evaluate(start)
	for _, order := range a.neighbors(start) {
		if fit := evaluate(order); fit != nil && (best == nil || fit.aic < best.aic) {
			best = fit
		}
	}
	if best == nil {
		return &FitError{Strategy: a.Name(), Kind: FitFailed, Err: fmt.Errorf("no viable starting order")}
	}

	for evaluated < maxCandidates {
		improved := false
		for _, order := range a.neighbors(best.order) {
			if fit := evaluate(order); fit != nil && fit.aic < best.aic {
				best = fit
				improved = true
			}
		}
		if !improved {
			break
		}
	}

	a.fit = best
	return nil
}

// neighbors enumerates the orders one step away within the search bounds.
func (a *AutoARIMA) neighbors(order arimaOrder) []arimaOrder {
	var out []arimaOrder
	add := func(o arimaOrder) {
		if o.p < 0 || o.q < 0 || o.p > maxNonSeasonalOrder || o.q > maxNonSeasonalOrder {
			return
		}
		if o.bigP < 0 || o.bigQ < 0 || o.bigP > maxSeasonalOrder || o.bigQ > maxSeasonalOrder {
			return
		}
		if o.p == 0 && o.q == 0 && o.bigP == 0 && o.bigQ == 0 {
			return
		}
		out = append(out, o)
	}

	for _, dp := range []int{-1, 1} {
		o := order
		o.p += dp
		add(o)
		o = order
		o.q += dp
		add(o)
		if a.seasonal {
			o = order
			o.bigP += dp
			add(o)
			o = order
			o.bigQ += dp
			add(o)
		}
	}
	return out
}

// Forecast returns point forecasts only; the auto-selected path does not
// report intervals and the rendering layer substitutes its own band.
func (a *AutoARIMA) Forecast(horizon int) (Prediction, error) {
	if a.fit == nil {
		return Prediction{}, &FitError{Strategy: a.Name(), Kind: FitFailed, Err: errNotFitted}
	}
	points, _, _ := a.fit.forecast(horizon)
	return Prediction{Points: points}, nil
}

func (a *AutoARIMA) FittedValues() []float64 {
	if a.fit == nil {
		return nil
	}
	return a.fit.fittedValues()
}

// SelectedOrder reports the winning order for logging; zero value before Fit.
func (a *AutoARIMA) SelectedOrder() string {
	if a.fit == nil {
		return ""
	}
	return a.fit.order.String()
}
