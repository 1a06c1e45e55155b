package forecaster

import (
	"errors"
	"fmt"

	"github.com/epitrack/epitrack/internal/models"
)

// Input errors are fatal to a run and surfaced to callers as "no forecast
// available". They are never retried.
var (
	ErrEmptyInput     = errors.New("empty input series")
	ErrSeriesTooShort = fmt.Errorf("series shorter than minimum length %d", models.MinSeriesLength)
	ErrInvalidHorizon = fmt.Errorf("horizon must be between %d and %d", models.MinHorizon, models.MaxHorizon)
)

// FitErrorKind distinguishes a strategy whose capability is switched off from
// one that attempted a fit and could not converge. Fallback policy treats
// both by moving to the next strategy, but they are reported differently.
type FitErrorKind int

const (
	// CapabilityUnavailable means the strategy was never attempted because it
	// is disabled or cannot run in this deployment.
	CapabilityUnavailable FitErrorKind = iota
	// FitFailed means the strategy ran and failed numerically.
	FitFailed
)

func (k FitErrorKind) String() string {
	if k == CapabilityUnavailable {
		return "capability_unavailable"
	}
	return "fit_failed"
}

// FitError reports why a single strategy in the chain did not produce a
// forecast. It is contained by the orchestrator and never escapes to callers.
type FitError struct {
	Strategy models.ModelType
	Kind     FitErrorKind
	Err      error
}

func (e *FitError) Error() string {
	return fmt.Sprintf("strategy %s: %s: %v", e.Strategy, e.Kind, e.Err)
}

func (e *FitError) Unwrap() error {
	return e.Err
}

// ErrFallbackExhausted indicates the guaranteed-to-succeed moving-average
// fallback itself failed. This violates an invariant and is surfaced loudly
// rather than swallowed.
var ErrFallbackExhausted = errors.New("all forecasting strategies failed, including the fallback")

// IsInputError reports whether err is fatal input rejection rather than a
// recoverable strategy failure.
func IsInputError(err error) bool {
	return errors.Is(err, ErrEmptyInput) ||
		errors.Is(err, ErrSeriesTooShort) ||
		errors.Is(err, ErrInvalidHorizon)
}
