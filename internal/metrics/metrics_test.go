package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/epitrack/epitrack/internal/models"
)

func TestCollectorRecordsHTTPMetrics(t *testing.T) {
	collector, err := NewCollector()
	if err != nil {
		t.Fatalf("NewCollector returned error: %v", err)
	}

	handlerInvoked := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerInvoked = true
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("ok"))
	})

	instrumented := collector.InstrumentHandler(handler)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rr := httptest.NewRecorder()

	instrumented.ServeHTTP(rr, req)

	if !handlerInvoked {
		t.Fatal("expected handler to be invoked")
	}
	if rr.Code != http.StatusAccepted {
		t.Fatalf("unexpected status code: %d", rr.Code)
	}

	body := scrape(t, collector)
	if !strings.Contains(body, `epitrack_http_requests_total{method="GET",path="/test",status="202"} 1`) {
		t.Fatalf("requests_total metric not recorded, body=%q", body)
	}
	if !strings.Contains(body, `epitrack_http_request_duration_seconds_count{method="GET",path="/test",status="202"} 1`) {
		t.Fatalf("request_duration_seconds_count metric not recorded, body=%q", body)
	}
}

func TestCollectorRecordsForecastOutcomes(t *testing.T) {
	collector, err := NewCollector()
	if err != nil {
		t.Fatalf("NewCollector returned error: %v", err)
	}

	collector.ForecastCompleted(models.ModelSeasonalARIMA, "completed")
	collector.ForecastCompleted(models.ModelSeasonalARIMA, "completed")
	collector.ForecastCompleted(models.ModelMovingAverage, "failed")
	collector.StrategyDuration(models.ModelSeasonalARIMA, 0.25)

	body := scrape(t, collector)
	if !strings.Contains(body, `epitrack_forecast_runs_total{model_type="seasonal_arima",status="completed"} 2`) {
		t.Fatalf("runs_total not recorded, body=%q", body)
	}
	if !strings.Contains(body, `epitrack_forecast_runs_total{model_type="moving_average",status="failed"} 1`) {
		t.Fatalf("failed runs_total not recorded, body=%q", body)
	}
	if !strings.Contains(body, `epitrack_forecast_fit_duration_seconds_count{strategy="seasonal_arima"} 1`) {
		t.Fatalf("fit_duration not recorded, body=%q", body)
	}
}

func TestCollectorRecordsCacheOutcomes(t *testing.T) {
	collector, err := NewCollector()
	if err != nil {
		t.Fatalf("NewCollector returned error: %v", err)
	}

	collector.DatasetCacheHit()
	collector.DatasetCacheMiss()
	collector.DatasetCacheMiss()

	body := scrape(t, collector)
	if !strings.Contains(body, `epitrack_dataset_cache_hits_total 1`) {
		t.Fatalf("cache_hits_total not recorded, body=%q", body)
	}
	if !strings.Contains(body, `epitrack_dataset_cache_misses_total 2`) {
		t.Fatalf("cache_misses_total not recorded, body=%q", body)
	}
}

func scrape(t *testing.T, collector *Collector) string {
	t.Helper()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	collector.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected metrics handler to return 200, got %d", rr.Code)
	}
	return rr.Body.String()
}
