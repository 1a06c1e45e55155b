package dataloader

import (
	"math"
	"sort"
	"time"

	"github.com/epitrack/epitrack/internal/models"
)

// rawRow is one parsed CSV row for the requested country before cleaning.
// Value is NaN when the target column was empty or unparseable.
type rawRow struct {
	date  time.Time
	value float64
}

// cleanRows turns raw per-country rows into a forecastable series: sorts by
// date, collapses duplicate dates keeping the later row, replaces negative
// values with missing, forward-fills missing values, and drops rows that are
// still missing after the fill (the leading gap). The result honors the core
// contract: strictly increasing dates, non-negative values, no gaps.
func cleanRows(rows []rawRow) []models.Observation {
	if len(rows) == 0 {
		return nil
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].date.Before(rows[j].date) })

	deduped := rows[:0]
	for _, r := range rows {
		if len(deduped) > 0 && deduped[len(deduped)-1].date.Equal(r.date) {
			deduped[len(deduped)-1] = r
			continue
		}
		deduped = append(deduped, r)
	}

	// Negative counts are reporting corrections; treat them as missing.
	for i := range deduped {
		if deduped[i].value < 0 {
			deduped[i].value = math.NaN()
		}
	}

	// Forward fill.
	last := math.NaN()
	for i := range deduped {
		if !math.IsNaN(deduped[i].value) {
			last = deduped[i].value
			continue
		}
		if !math.IsNaN(last) {
			deduped[i].value = last
		}
	}

	out := make([]models.Observation, 0, len(deduped))
	for _, r := range deduped {
		if math.IsNaN(r.value) {
			continue
		}
		out = append(out, models.Observation{Date: r.date, Value: r.value})
	}
	return out
}

// Summarize computes descriptive statistics for a cleaned series.
func Summarize(series *models.Series) *models.SeriesSummary {
	if series == nil || series.Len() == 0 {
		return nil
	}

	values := series.Values()
	minV, maxV := values[0], values[0]
	var sum float64
	for _, v := range values {
		sum += v
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	mean := sum / float64(len(values))

	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	std := 0.0
	if len(values) > 1 {
		std = math.Sqrt(ss / float64(len(values)-1))
	}

	return &models.SeriesSummary{
		TotalDays: len(values),
		FirstDate: series.Observations[0].Date,
		LastDate:  series.Observations[len(series.Observations)-1].Date,
		Mean:      mean,
		StdDev:    std,
		Min:       minV,
		Max:       maxV,
	}
}
