package forecaster

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/epitrack/epitrack/internal/models"
)

// Capabilities declares which preferred strategies may be attempted. The
// moving-average fallback is always available and cannot be switched off.
// Disabling both preferred strategies is how deployments (and tests) force
// the chain down to the fallback.
type Capabilities struct {
	SeasonalARIMA bool
	AutoARIMA     bool
}

// AllCapabilities enables every strategy.
func AllCapabilities() Capabilities {
	return Capabilities{SeasonalARIMA: true, AutoARIMA: true}
}

// Observer receives forecast outcome notifications, typically backed by
// Prometheus counters. A nil observer is valid.
type Observer interface {
	ForecastCompleted(model models.ModelType, status string)
	StrategyDuration(model models.ModelType, seconds float64)
}

// Forecaster drives the strategy priority chain for one configuration.
// A single run is synchronous; concurrent runs need separate instances
// only of the per-run strategy state, which Forecast already constructs
// fresh, so one Forecaster is safe to share across goroutines.
type Forecaster struct {
	cfg      models.ForecastConfig
	chain    []StrategyFactory
	logger   *slog.Logger
	observer Observer
}

// Option customizes a Forecaster.
type Option func(*Forecaster)

// WithObserver attaches an outcome observer.
func WithObserver(obs Observer) Option {
	return func(f *Forecaster) { f.observer = obs }
}

// WithChain replaces the strategy chain entirely. Used by tests to inject
// failing strategies.
func WithChain(chain ...StrategyFactory) Option {
	return func(f *Forecaster) { f.chain = chain }
}

// New constructs a Forecaster with the standard priority chain:
// SeasonalARIMA, then AutoARIMA, then the moving-average fallback.
func New(cfg models.ForecastConfig, caps Capabilities, logger *slog.Logger, opts ...Option) *Forecaster {
	f := &Forecaster{
		cfg:    cfg,
		chain:  defaultChain(caps),
		logger: logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func defaultChain(caps Capabilities) []StrategyFactory {
	return []StrategyFactory{
		func(cfg models.ForecastConfig) (Strategy, error) {
			if !caps.SeasonalARIMA {
				return nil, &FitError{
					Strategy: models.ModelSeasonalARIMA,
					Kind:     CapabilityUnavailable,
					Err:      fmt.Errorf("seasonal ARIMA disabled"),
				}
			}
			return NewSeasonalARIMA(cfg.UseSeasonality), nil
		},
		func(cfg models.ForecastConfig) (Strategy, error) {
			if !caps.AutoARIMA {
				return nil, &FitError{
					Strategy: models.ModelAutoARIMA,
					Kind:     CapabilityUnavailable,
					Err:      fmt.Errorf("auto ARIMA disabled"),
				}
			}
			return NewAutoARIMA(cfg.UseSeasonality), nil
		},
		func(models.ForecastConfig) (Strategy, error) {
			return NewMovingAverage(), nil
		},
	}
}

// Forecast runs the priority chain over the cleaned series and returns a
// result in original units. Strategy failures (including recovered panics)
// fall through to the next strategy; only input rejection or exhaustion of
// the guaranteed fallback produce an error.
func (f *Forecaster) Forecast(series *models.Series) (*models.ForecastResult, error) {
	if series == nil || series.Len() == 0 {
		return nil, ErrEmptyInput
	}
	if series.Len() < models.MinSeriesLength {
		return nil, fmt.Errorf("%w: got %d observations", ErrSeriesTooShort, series.Len())
	}
	if f.cfg.Horizon < models.MinHorizon || f.cfg.Horizon > models.MaxHorizon {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidHorizon, f.cfg.Horizon)
	}

	actual := series.Values()
	transformed := Transform(actual, f.cfg.ApplyLogTransform)

	for _, factory := range f.chain {
		strategy, err := factory(f.cfg)
		if err != nil {
			f.logStrategyFailure(err)
			continue
		}

		start := time.Now()
		pred, fitted, err := f.runStrategy(strategy, transformed)
		elapsed := time.Since(start)
		if err != nil {
			f.logStrategyFailure(err)
			if f.observer != nil {
				f.observer.ForecastCompleted(strategy.Name(), "failed")
			}
			continue
		}
		if f.observer != nil {
			f.observer.StrategyDuration(strategy.Name(), elapsed.Seconds())
			f.observer.ForecastCompleted(strategy.Name(), "completed")
		}

		result := f.assembleResult(strategy.Name(), pred, fitted, actual)
		f.logger.Info("forecast completed",
			"model_type", result.ModelType,
			"horizon", f.cfg.Horizon,
			"series_len", series.Len(),
			"fit_duration_ms", elapsed.Milliseconds())
		return result, nil
	}

	// The moving-average fallback cannot fail for a valid series; reaching
	// this point means an invariant was violated upstream.
	f.logger.Error("fallback chain exhausted", "series_len", series.Len(), "horizon", f.cfg.Horizon)
	return nil, ErrFallbackExhausted
}

// runStrategy executes fit + forecast + fitted-values with panic containment
// so a numerical defect in one strategy degrades to the next instead of
// aborting the run. Output that is the wrong length or carries NaN/Inf
// values is rejected the same way; no strategy bug may leak a non-finite
// number into a result.
func (f *Forecaster) runStrategy(strategy Strategy, values []float64) (pred Prediction, fitted []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &FitError{
				Strategy: strategy.Name(),
				Kind:     FitFailed,
				Err:      fmt.Errorf("panic during fit: %v", r),
			}
		}
	}()

	if err = strategy.Fit(values); err != nil {
		return Prediction{}, nil, err
	}
	pred, err = strategy.Forecast(f.cfg.Horizon)
	if err != nil {
		return Prediction{}, nil, err
	}
	if len(pred.Points) != f.cfg.Horizon {
		return Prediction{}, nil, &FitError{
			Strategy: strategy.Name(),
			Kind:     FitFailed,
			Err:      fmt.Errorf("forecast length %d != horizon %d", len(pred.Points), f.cfg.Horizon),
		}
	}
	fitted = strategy.FittedValues()
	if !allFinite(pred.Points) || !allFinite(pred.Lower) || !allFinite(pred.Upper) || !allFinite(fitted) {
		return Prediction{}, nil, &FitError{
			Strategy: strategy.Name(),
			Kind:     FitFailed,
			Err:      fmt.Errorf("non-finite values in strategy output"),
		}
	}
	return pred, fitted, nil
}

// assembleResult moves everything back into original units, clamps counts to
// be non-negative, enforces bound ordering, and computes in-sample accuracy.
func (f *Forecaster) assembleResult(model models.ModelType, pred Prediction, fitted, actual []float64) *models.ForecastResult {
	points := Inverse(pred.Points, f.cfg.ApplyLogTransform)
	for i, v := range points {
		if v < 0 {
			points[i] = 0
		}
	}

	result := &models.ForecastResult{
		Forecast:  points,
		Metrics:   map[string]float64{},
		ModelType: model,
	}

	if pred.Lower != nil && pred.Upper != nil {
		lower := Inverse(pred.Lower, f.cfg.ApplyLogTransform)
		upper := Inverse(pred.Upper, f.cfg.ApplyLogTransform)
		for i := range points {
			if lower[i] < 0 {
				lower[i] = 0
			}
			if lower[i] > points[i] {
				lower[i] = points[i]
			}
			if upper[i] < points[i] {
				upper[i] = points[i]
			}
		}
		result.LowerCI = lower
		result.UpperCI = upper
	}

	if fitted != nil {
		result.Metrics = Accuracy(actual, Inverse(fitted, f.cfg.ApplyLogTransform))
	}
	return result
}

func (f *Forecaster) logStrategyFailure(err error) {
	var fitErr *FitError
	if errors.As(err, &fitErr) {
		if fitErr.Kind == CapabilityUnavailable {
			f.logger.Debug("strategy unavailable", "strategy", fitErr.Strategy, "reason", fitErr.Err)
		} else {
			f.logger.Warn("strategy fit failed, falling back", "strategy", fitErr.Strategy, "error", fitErr.Err)
		}
		return
	}
	f.logger.Warn("strategy failed, falling back", "error", err)
}
