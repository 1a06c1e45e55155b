package models

import (
	"time"
)

// Observation is a single daily data point for one metric in one country.
type Observation struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Series is a cleaned, date-sorted sequence of observations for exactly one
// target column. Dates are strictly increasing with no duplicates and values
// are non-negative; the data loader guarantees both before a Series is
// handed to the forecasting core.
type Series struct {
	Country      string        `json:"country"`
	Target       string        `json:"target"`
	Observations []Observation `json:"observations"`
}

// Len returns the number of observations.
func (s *Series) Len() int {
	return len(s.Observations)
}

// Values returns the observation values in date order.
func (s *Series) Values() []float64 {
	out := make([]float64, len(s.Observations))
	for i, obs := range s.Observations {
		out[i] = obs.Value
	}
	return out
}

// LastDate returns the date of the final observation, or the zero time for an
// empty series.
func (s *Series) LastDate() time.Time {
	if len(s.Observations) == 0 {
		return time.Time{}
	}
	return s.Observations[len(s.Observations)-1].Date
}

// SeriesSummary holds descriptive statistics for a loaded series, displayed
// alongside the forecast.
type SeriesSummary struct {
	TotalDays int       `json:"total_days"`
	FirstDate time.Time `json:"first_date"`
	LastDate  time.Time `json:"last_date"`
	Mean      float64   `json:"mean"`
	StdDev    float64   `json:"std_dev"`
	Min       float64   `json:"min"`
	Max       float64   `json:"max"`
}
