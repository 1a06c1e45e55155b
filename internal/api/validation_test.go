package api

import (
	"testing"

	"github.com/epitrack/epitrack/internal/models"
)

func TestValidateForecastRequest(t *testing.T) {
	valid := models.ForecastRequest{Country: "Germany", Target: "new_cases", Horizon: 14}

	t.Run("valid", func(t *testing.T) {
		req := valid
		if _, _, err := ValidateForecastRequest(&req); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("with date range", func(t *testing.T) {
		req := valid
		req.From = "2021-01-01"
		req.To = "2021-06-30"
		from, to, err := ValidateForecastRequest(&req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if from.IsZero() || to.IsZero() {
			t.Error("expected parsed bounds")
		}
	})

	cases := map[string]func(*models.ForecastRequest){
		"missing country":  func(r *models.ForecastRequest) { r.Country = "" },
		"missing target":   func(r *models.ForecastRequest) { r.Target = "" },
		"unknown target":   func(r *models.ForecastRequest) { r.Target = "icu_patients" },
		"horizon too low":  func(r *models.ForecastRequest) { r.Horizon = 6 },
		"horizon too high": func(r *models.ForecastRequest) { r.Horizon = 31 },
		"bad from date":    func(r *models.ForecastRequest) { r.From = "01/01/2021" },
		"bad to date":      func(r *models.ForecastRequest) { r.To = "soon" },
		"inverted range": func(r *models.ForecastRequest) {
			r.From = "2021-06-01"
			r.To = "2021-01-01"
		},
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := valid
			mutate(&req)
			if _, _, err := ValidateForecastRequest(&req); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestValidTarget(t *testing.T) {
	for _, target := range validTargets {
		if !ValidTarget(target) {
			t.Errorf("expected %q to be valid", target)
		}
	}
	if ValidTarget("hosp_patients") {
		t.Error("unexpected target accepted")
	}
}
