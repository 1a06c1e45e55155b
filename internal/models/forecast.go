package models

import (
	"time"
)

// ModelType identifies which strategy produced a forecast.
type ModelType string

const (
	ModelSeasonalARIMA ModelType = "seasonal_arima"
	ModelAutoARIMA     ModelType = "auto_arima"
	ModelMovingAverage ModelType = "moving_average"
)

// Forecast horizon bounds accepted by the service.
const (
	MinHorizon = 7
	MaxHorizon = 30
)

// MinSeriesLength is the minimum number of observations required before a
// forecast is attempted.
const MinSeriesLength = 30

// ForecastConfig holds the immutable parameters for a single forecast run.
type ForecastConfig struct {
	UseSeasonality    bool `json:"use_seasonality"`
	ApplyLogTransform bool `json:"apply_log_transform"`
	Horizon           int  `json:"horizon"`
}

// DefaultForecastConfig returns the configuration the dashboard starts with.
func DefaultForecastConfig() ForecastConfig {
	return ForecastConfig{
		UseSeasonality:    true,
		ApplyLogTransform: true,
		Horizon:           14,
	}
}

// ForecastResult is the output of one forecast run, always reported in
// original (untransformed) units. LowerCI/UpperCI are nil when the winning
// strategy does not produce intervals; Metrics may be empty when no valid
// actual/fitted pairs aligned. Consumers must tolerate both.
type ForecastResult struct {
	Forecast  []float64          `json:"forecast"`
	LowerCI   []float64          `json:"lower_ci,omitempty"`
	UpperCI   []float64          `json:"upper_ci,omitempty"`
	Metrics   map[string]float64 `json:"metrics"`
	ModelType ModelType          `json:"model_type"`
}

// ForecastRun is the persisted record of one forecast execution, kept for the
// dashboard's run history view.
type ForecastRun struct {
	ID          string          `json:"id"`
	Country     string          `json:"country"`
	Target      string          `json:"target"`
	Config      ForecastConfig  `json:"config"`
	SeriesStart time.Time       `json:"series_start"`
	SeriesEnd   time.Time       `json:"series_end"`
	SeriesLen   int             `json:"series_len"`
	Status      string          `json:"status"` // 'completed' or 'failed'
	Error       string          `json:"error,omitempty"`
	Result      *ForecastResult `json:"result,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ForecastRequest is the API request body for POST /api/forecast.
type ForecastRequest struct {
	Country           string `json:"country"`
	Target            string `json:"target"`
	Horizon           int    `json:"horizon"`
	UseSeasonality    *bool  `json:"use_seasonality,omitempty"`
	ApplyLogTransform *bool  `json:"apply_log_transform,omitempty"`
	From              string `json:"from,omitempty"`
	To                string `json:"to,omitempty"`
}

// ForecastResponse pairs the result with the context the rendering layer
// needs to overlay it on the original series.
type ForecastResponse struct {
	RunID   string          `json:"run_id"`
	Country string          `json:"country"`
	Target  string          `json:"target"`
	Config  ForecastConfig  `json:"config"`
	Dates   []time.Time     `json:"dates"` // future dates, one per horizon step
	Result  *ForecastResult `json:"result"`
	Summary *SeriesSummary  `json:"summary,omitempty"`
}
