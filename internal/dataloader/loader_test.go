package dataloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/epitrack/epitrack/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// sampleCSV builds an OWID-shaped dataset with `days` rows each for Norway
// and Sweden starting 2021-01-01. Norway's day 3 is negative and day 5 is
// blank to exercise cleaning.
func sampleCSV(days int) string {
	var b strings.Builder
	b.WriteString("iso_code,location,date,new_cases,new_deaths\n")
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i).Format("2006-01-02")
		value := fmt.Sprintf("%d", 100+i)
		if i == 3 {
			value = "-20"
		}
		if i == 5 {
			value = ""
		}
		fmt.Fprintf(&b, "NOR,Norway,%s,%s,%d\n", date, value, i)
		fmt.Fprintf(&b, "SWE,Sweden,%s,%d,%d\n", date, 200+i, i)
	}
	return b.String()
}

func newTestLoader(t *testing.T, handler http.Handler) (*Loader, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	policy := DefaultRetryPolicy()
	policy.InitialBackoff = time.Millisecond
	policy.MaxBackoff = 5 * time.Millisecond

	cfg := Config{URL: srv.URL, FetchTimeout: 5 * time.Second, CacheSize: 8, CacheMaxAge: time.Hour}
	loader, err := New(cfg, testLogger(), WithRetryPolicy(policy))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return loader, srv
}

func TestLoadSeriesCleansAndCaches(t *testing.T) {
	var requests int
	loader, _ := newTestLoader(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		io.WriteString(w, sampleCSV(40))
	}))

	ctx := context.Background()
	series, err := loader.LoadSeries(ctx, "Norway", "new_cases", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("LoadSeries returned error: %v", err)
	}
	if series.Len() != 40 {
		t.Fatalf("series length = %d, want 40", series.Len())
	}
	if series.Country != "Norway" || series.Target != "new_cases" {
		t.Errorf("series identity = %s/%s", series.Country, series.Target)
	}
	// Negative day forward-filled from the previous value.
	if got := series.Observations[3].Value; got != 102 {
		t.Errorf("day 3 = %v, want forward-filled 102", got)
	}
	// Blank day forward-filled too.
	if got := series.Observations[5].Value; got != 104 {
		t.Errorf("day 5 = %v, want forward-filled 104", got)
	}

	if _, err := loader.LoadSeries(ctx, "Norway", "new_cases", time.Time{}, time.Time{}); err != nil {
		t.Fatalf("cached LoadSeries returned error: %v", err)
	}
	if requests != 1 {
		t.Errorf("dataset fetched %d times, want 1 (second call should hit cache)", requests)
	}
}

func TestLoadSeriesDateRange(t *testing.T) {
	loader, _ := newTestLoader(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, sampleCSV(60))
	}))

	from := time.Date(2021, 1, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2021, 2, 10, 0, 0, 0, 0, time.UTC)
	series, err := loader.LoadSeries(context.Background(), "Sweden", "new_cases", from, to)
	if err != nil {
		t.Fatalf("LoadSeries returned error: %v", err)
	}
	if series.Observations[0].Date.Before(from) {
		t.Errorf("first date %v precedes from bound %v", series.Observations[0].Date, from)
	}
	if series.LastDate().After(to) {
		t.Errorf("last date %v exceeds to bound %v", series.LastDate(), to)
	}
}

func TestLoadSeriesUnknownCountry(t *testing.T) {
	loader, _ := newTestLoader(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, sampleCSV(40))
	}))

	_, err := loader.LoadSeries(context.Background(), "Atlantis", "new_cases", time.Time{}, time.Time{})
	if !errors.Is(err, ErrCountryNotFound) {
		t.Fatalf("error = %v, want ErrCountryNotFound", err)
	}
}

func TestLoadSeriesUnknownColumn(t *testing.T) {
	loader, _ := newTestLoader(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, sampleCSV(40))
	}))

	_, err := loader.LoadSeries(context.Background(), "Norway", "icu_admissions", time.Time{}, time.Time{})
	if !errors.Is(err, ErrUnknownColumn) {
		t.Fatalf("error = %v, want ErrUnknownColumn", err)
	}
}

func TestLoadSeriesTooFewDays(t *testing.T) {
	loader, _ := newTestLoader(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, sampleCSV(models.MinSeriesLength-1))
	}))

	_, err := loader.LoadSeries(context.Background(), "Norway", "new_cases", time.Time{}, time.Time{})
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("error = %v, want ErrInsufficientData", err)
	}
}

func TestLoadSeriesRetriesServerErrors(t *testing.T) {
	var requests int
	loader, _ := newTestLoader(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, sampleCSV(40))
	}))

	series, err := loader.LoadSeries(context.Background(), "Norway", "new_cases", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("LoadSeries returned error: %v", err)
	}
	if series.Len() != 40 {
		t.Errorf("series length = %d, want 40", series.Len())
	}
	if requests != 3 {
		t.Errorf("dataset fetched %d times, want 3", requests)
	}
}

func TestLoadSeriesClientErrorFailsFast(t *testing.T) {
	var requests int
	loader, _ := newTestLoader(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusNotFound)
	}))

	if _, err := loader.LoadSeries(context.Background(), "Norway", "new_cases", time.Time{}, time.Time{}); err == nil {
		t.Fatal("expected error")
	}
	if requests != 1 {
		t.Errorf("dataset fetched %d times, want 1 (4xx must not retry)", requests)
	}
}

func TestCountriesSortedAndCached(t *testing.T) {
	var requests int
	loader, _ := newTestLoader(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		io.WriteString(w, sampleCSV(5))
	}))

	ctx := context.Background()
	countries, err := loader.Countries(ctx)
	if err != nil {
		t.Fatalf("Countries returned error: %v", err)
	}
	if len(countries) != 2 || countries[0] != "Norway" || countries[1] != "Sweden" {
		t.Fatalf("countries = %v, want [Norway Sweden]", countries)
	}

	if _, err := loader.Countries(ctx); err != nil {
		t.Fatalf("cached Countries returned error: %v", err)
	}
	if requests != 1 {
		t.Errorf("dataset fetched %d times, want 1", requests)
	}
}

func TestInvalidateForcesRefetch(t *testing.T) {
	var requests int
	loader, _ := newTestLoader(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		io.WriteString(w, sampleCSV(40))
	}))

	ctx := context.Background()
	if _, err := loader.LoadSeries(ctx, "Norway", "new_cases", time.Time{}, time.Time{}); err != nil {
		t.Fatalf("LoadSeries returned error: %v", err)
	}

	loader.Invalidate()

	if _, err := loader.LoadSeries(ctx, "Norway", "new_cases", time.Time{}, time.Time{}); err != nil {
		t.Fatalf("LoadSeries after invalidate returned error: %v", err)
	}
	if requests != 2 {
		t.Errorf("dataset fetched %d times, want 2 after invalidation", requests)
	}
}

type countingObserver struct {
	hits, misses int
}

func (c *countingObserver) DatasetCacheHit()  { c.hits++ }
func (c *countingObserver) DatasetCacheMiss() { c.misses++ }

func TestCacheObserverNotified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, sampleCSV(40))
	}))
	t.Cleanup(srv.Close)

	obs := &countingObserver{}
	cfg := Config{URL: srv.URL, FetchTimeout: 5 * time.Second, CacheSize: 8, CacheMaxAge: time.Hour}
	loader, err := New(cfg, testLogger(), WithCacheObserver(obs))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := context.Background()
	if _, err := loader.LoadSeries(ctx, "Norway", "new_cases", time.Time{}, time.Time{}); err != nil {
		t.Fatalf("LoadSeries returned error: %v", err)
	}
	if _, err := loader.LoadSeries(ctx, "Norway", "new_cases", time.Time{}, time.Time{}); err != nil {
		t.Fatalf("LoadSeries returned error: %v", err)
	}
	if obs.misses != 1 || obs.hits != 1 {
		t.Errorf("observer hits/misses = %d/%d, want 1/1", obs.hits, obs.misses)
	}
}
