package scheduler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/epitrack/epitrack/internal/config"
	"github.com/epitrack/epitrack/internal/dataloader"
	"github.com/epitrack/epitrack/internal/forecaster"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func datasetCSV(days int) string {
	var b strings.Builder
	b.WriteString("iso_code,location,date,new_cases\n")
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i).Format("2006-01-02")
		value := 150 + i + int(20*math.Sin(2*math.Pi*float64(i)/7))
		fmt.Fprintf(&b, "NOR,Norway,%s,%d\n", date, value)
	}
	return b.String()
}

func newTestScheduler(t *testing.T, requests *atomic.Int64) (*RefreshScheduler, *dataloader.Loader) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		io.WriteString(w, datasetCSV(90))
	}))
	t.Cleanup(srv.Close)

	loader, err := dataloader.New(dataloader.Config{
		URL:          srv.URL,
		FetchTimeout: 5 * time.Second,
		CacheSize:    8,
		CacheMaxAge:  time.Hour,
	}, testLogger())
	if err != nil {
		t.Fatalf("failed to create loader: %v", err)
	}

	cfg := config.ForecastConfig{
		RefreshInterval:  time.Hour,
		TrackedCountries: []string{"Norway"},
	}
	s := NewRefreshScheduler(loader, nil, forecaster.AllCapabilities(), nil, cfg, testLogger())
	return s, loader
}

func TestRefreshWarmsCache(t *testing.T) {
	var requests atomic.Int64
	s, loader := newTestScheduler(t, &requests)

	s.refresh(context.Background())

	if got := requests.Load(); got != 1 {
		t.Fatalf("dataset fetched %d times during refresh, want 1", got)
	}

	// The warmed series must be served from cache.
	if _, err := loader.LoadSeries(context.Background(), "Norway", "new_cases", time.Time{}, time.Time{}); err != nil {
		t.Fatalf("LoadSeries returned error: %v", err)
	}
	if got := requests.Load(); got != 1 {
		t.Errorf("dataset fetched %d times after cached read, want 1", got)
	}
}

func TestRefreshSurvivesUnknownCountry(t *testing.T) {
	var requests atomic.Int64
	s, _ := newTestScheduler(t, &requests)
	s.cfg.TrackedCountries = []string{"Atlantis", "Norway"}

	// Must not abort on the unknown country; Norway still gets warmed.
	s.refresh(context.Background())

	if _, err := s.loader.LoadSeries(context.Background(), "Norway", "new_cases", time.Time{}, time.Time{}); err != nil {
		t.Fatalf("LoadSeries returned error: %v", err)
	}
}

func TestSchedulerStops(t *testing.T) {
	var requests atomic.Int64
	s, _ := newTestScheduler(t, &requests)
	s.cfg.TrackedCountries = nil // nothing to warm, loop only

	done := make(chan struct{})
	go func() {
		s.Start(context.Background())
		close(done)
	}()

	s.Stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestKickDoesNotBlock(t *testing.T) {
	var requests atomic.Int64
	s, _ := newTestScheduler(t, &requests)

	// Nothing is draining the channel; repeated kicks must still return.
	s.Kick()
	s.Kick()
	s.Kick()
}
