package api

import (
	"fmt"
	"time"

	"github.com/epitrack/epitrack/internal/models"
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Target columns the API accepts. Anything else never reaches the dataset.
var validTargets = []string{
	"new_cases",
	"new_deaths",
	"new_cases_smoothed",
	"new_deaths_smoothed",
	"total_cases",
	"total_deaths",
}

// ValidTarget reports whether the target column is on the allow-list.
func ValidTarget(target string) bool {
	for _, t := range validTargets {
		if target == t {
			return true
		}
	}
	return false
}

const requestDateLayout = "2006-01-02"

// ValidateForecastRequest validates a forecast request body and returns the
// parsed optional date bounds.
func ValidateForecastRequest(req *models.ForecastRequest) (from, to time.Time, err error) {
	if req.Country == "" {
		return from, to, ValidationError{Field: "country", Message: "Country is required"}
	}
	if req.Target == "" {
		return from, to, ValidationError{Field: "target", Message: "Target column is required"}
	}
	if !ValidTarget(req.Target) {
		return from, to, ValidationError{Field: "target", Message: "Unknown target column"}
	}
	if req.Horizon < models.MinHorizon || req.Horizon > models.MaxHorizon {
		return from, to, ValidationError{
			Field:   "horizon",
			Message: fmt.Sprintf("Horizon must be between %d and %d days", models.MinHorizon, models.MaxHorizon),
		}
	}

	if req.From != "" {
		from, err = time.Parse(requestDateLayout, req.From)
		if err != nil {
			return from, to, ValidationError{Field: "from", Message: "Date must be YYYY-MM-DD"}
		}
	}
	if req.To != "" {
		to, err = time.Parse(requestDateLayout, req.To)
		if err != nil {
			return from, to, ValidationError{Field: "to", Message: "Date must be YYYY-MM-DD"}
		}
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return from, to, ValidationError{Field: "to", Message: "End date precedes start date"}
	}

	return from, to, nil
}
