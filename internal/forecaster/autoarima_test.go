package forecaster

import (
	"testing"
)

func TestAutoARIMASelectsModel(t *testing.T) {
	values := syntheticSeries(120)

	a := NewAutoARIMA(true)
	if err := a.Fit(values); err != nil {
		t.Fatalf("Fit returned error: %v", err)
	}
	if a.SelectedOrder() == "" {
		t.Fatal("expected a selected order after fit")
	}

	pred, err := a.Forecast(14)
	if err != nil {
		t.Fatalf("Forecast returned error: %v", err)
	}
	if len(pred.Points) != 14 {
		t.Fatalf("forecast length = %d, want 14", len(pred.Points))
	}
	if pred.Lower != nil || pred.Upper != nil {
		t.Error("auto ARIMA should not report intervals")
	}
	for i, v := range pred.Points {
		if !isFinite(v) {
			t.Errorf("step %d: forecast %v not finite", i, v)
		}
	}
}

func TestAutoARIMANonSeasonal(t *testing.T) {
	values := syntheticSeries(100)

	a := NewAutoARIMA(false)
	if err := a.Fit(values); err != nil {
		t.Fatalf("Fit returned error: %v", err)
	}

	fitted := a.FittedValues()
	if len(fitted) != len(values) {
		t.Errorf("fitted length = %d, want %d", len(fitted), len(values))
	}
}

func TestAutoARIMASkipsFailingCandidates(t *testing.T) {
	// 30 points: the larger seasonal orders cannot be estimated, but the
	// search must skip them and still land on something viable.
	values := syntheticSeries(30)

	a := NewAutoARIMA(true)
	if err := a.Fit(values); err != nil {
		t.Fatalf("Fit returned error: %v", err)
	}

	pred, err := a.Forecast(7)
	if err != nil {
		t.Fatalf("Forecast returned error: %v", err)
	}
	if len(pred.Points) != 7 {
		t.Fatalf("forecast length = %d, want 7", len(pred.Points))
	}
}

func TestAutoARIMAForecastBeforeFit(t *testing.T) {
	a := NewAutoARIMA(true)
	if _, err := a.Forecast(7); err == nil {
		t.Fatal("expected error before fit")
	}
}
