package dataloader

import (
	"math"
	"testing"
	"time"

	"github.com/epitrack/epitrack/internal/models"
)

func day(n int) time.Time {
	return time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestCleanRowsSortsAndFills(t *testing.T) {
	rows := []rawRow{
		{date: day(2), value: math.NaN()},
		{date: day(0), value: 10},
		{date: day(1), value: 12},
		{date: day(3), value: 15},
	}

	obs := cleanRows(rows)
	if len(obs) != 4 {
		t.Fatalf("got %d observations, want 4", len(obs))
	}

	wantValues := []float64{10, 12, 12, 15}
	for i, o := range obs {
		if !o.Date.Equal(day(i)) {
			t.Errorf("row %d: date = %v, want %v", i, o.Date, day(i))
		}
		if o.Value != wantValues[i] {
			t.Errorf("row %d: value = %v, want %v", i, o.Value, wantValues[i])
		}
	}
}

func TestCleanRowsNegativesBecomeForwardFilled(t *testing.T) {
	rows := []rawRow{
		{date: day(0), value: 100},
		{date: day(1), value: -5},
		{date: day(2), value: 110},
	}

	obs := cleanRows(rows)
	if len(obs) != 3 {
		t.Fatalf("got %d observations, want 3", len(obs))
	}
	if obs[1].Value != 100 {
		t.Errorf("corrected value = %v, want forward-filled 100", obs[1].Value)
	}
}

func TestCleanRowsDropsLeadingGap(t *testing.T) {
	rows := []rawRow{
		{date: day(0), value: math.NaN()},
		{date: day(1), value: math.NaN()},
		{date: day(2), value: 7},
		{date: day(3), value: math.NaN()},
	}

	obs := cleanRows(rows)
	if len(obs) != 2 {
		t.Fatalf("got %d observations, want 2", len(obs))
	}
	if !obs[0].Date.Equal(day(2)) {
		t.Errorf("first date = %v, want %v", obs[0].Date, day(2))
	}
	if obs[1].Value != 7 {
		t.Errorf("trailing gap should forward fill to 7, got %v", obs[1].Value)
	}
}

func TestCleanRowsDuplicateDatesKeepLater(t *testing.T) {
	rows := []rawRow{
		{date: day(0), value: 1},
		{date: day(0), value: 2},
		{date: day(1), value: 3},
	}

	obs := cleanRows(rows)
	if len(obs) != 2 {
		t.Fatalf("got %d observations, want 2", len(obs))
	}
	if obs[0].Value != 2 {
		t.Errorf("duplicate date resolved to %v, want 2", obs[0].Value)
	}
}

func TestCleanRowsEmpty(t *testing.T) {
	if obs := cleanRows(nil); obs != nil {
		t.Errorf("expected nil for empty input, got %v", obs)
	}
}

func TestSummarize(t *testing.T) {
	series := &models.Series{
		Country: "Norway",
		Target:  "new_cases",
		Observations: []models.Observation{
			{Date: day(0), Value: 2},
			{Date: day(1), Value: 4},
			{Date: day(2), Value: 6},
		},
	}

	summary := Summarize(series)
	if summary == nil {
		t.Fatal("expected summary")
	}
	if summary.TotalDays != 3 {
		t.Errorf("TotalDays = %d, want 3", summary.TotalDays)
	}
	if summary.Mean != 4 {
		t.Errorf("Mean = %v, want 4", summary.Mean)
	}
	if summary.Min != 2 || summary.Max != 6 {
		t.Errorf("Min/Max = %v/%v, want 2/6", summary.Min, summary.Max)
	}
	if math.Abs(summary.StdDev-2) > 1e-12 {
		t.Errorf("StdDev = %v, want 2", summary.StdDev)
	}
	if !summary.FirstDate.Equal(day(0)) || !summary.LastDate.Equal(day(2)) {
		t.Errorf("date range = %v..%v", summary.FirstDate, summary.LastDate)
	}
}

func TestSummarizeNil(t *testing.T) {
	if Summarize(nil) != nil {
		t.Error("expected nil summary for nil series")
	}
}
