package dataloader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/epitrack/epitrack/internal/models"
)

// Column names the loader relies on in the OWID dataset.
const (
	columnLocation = "location"
	columnDate     = "date"
)

const dateLayout = "2006-01-02"

// Loader errors surfaced to the API layer.
var (
	ErrCountryNotFound  = errors.New("no data found for country")
	ErrUnknownColumn    = errors.New("target column not found in dataset")
	ErrInsufficientData = errors.New("not enough observations for forecasting")
)

// Config holds dataset acquisition parameters.
type Config struct {
	URL          string
	FetchTimeout time.Duration
	CacheSize    int
	CacheMaxAge  time.Duration
}

// DefaultConfig returns loader defaults pointing at the public OWID dataset.
func DefaultConfig() Config {
	return Config{
		URL:          "https://covid.ourworldindata.org/data/owid-covid-data.csv",
		FetchTimeout: 2 * time.Minute,
		CacheSize:    128,
		CacheMaxAge:  6 * time.Hour,
	}
}

// CacheObserver is notified of cache outcomes, typically backed by
// Prometheus counters. A nil observer is valid.
type CacheObserver interface {
	DatasetCacheHit()
	DatasetCacheMiss()
}

type cacheEntry struct {
	series   *models.Series
	loadedAt time.Time
}

// Loader fetches the epidemiological dataset over HTTP, filters and cleans
// one country/target column, and memoizes cleaned series in an LRU cache
// keyed by request parameters. Entries older than CacheMaxAge are treated as
// misses so a changed upstream dataset is eventually picked up.
type Loader struct {
	cfg      Config
	client   *http.Client
	policy   RetryPolicy
	logger   *slog.Logger
	observer CacheObserver

	cache *lru.Cache[string, cacheEntry]

	mu          sync.Mutex
	countries   []string
	countriesAt time.Time
}

// Option customizes a Loader.
type Option func(*Loader)

// WithCacheObserver attaches a cache outcome observer.
func WithCacheObserver(obs CacheObserver) Option {
	return func(l *Loader) { l.observer = obs }
}

// WithHTTPClient replaces the HTTP client. Used by tests.
func WithHTTPClient(client *http.Client) Option {
	return func(l *Loader) { l.client = client }
}

// WithRetryPolicy replaces the fetch retry policy.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(l *Loader) { l.policy = policy }
}

// New constructs a Loader.
func New(cfg Config, logger *slog.Logger, opts ...Option) (*Loader, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("dataset URL is required")
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultConfig().CacheSize
	}

	cache, err := lru.New[string, cacheEntry](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create series cache: %w", err)
	}

	l := &Loader{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.FetchTimeout},
		policy: DefaultRetryPolicy(),
		logger: logger,
		cache:  cache,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// LoadSeries returns the cleaned series for one country and target column,
// optionally bounded by [from, to]. Zero times leave the bound open. The
// returned series satisfies the forecasting core's input contract.
func (l *Loader) LoadSeries(ctx context.Context, country, target string, from, to time.Time) (*models.Series, error) {
	key := cacheKey(country, target, from, to)
	if entry, ok := l.cache.Get(key); ok && time.Since(entry.loadedAt) < l.cfg.CacheMaxAge {
		if l.observer != nil {
			l.observer.DatasetCacheHit()
		}
		return entry.series, nil
	}
	if l.observer != nil {
		l.observer.DatasetCacheMiss()
	}

	var rows []rawRow
	err := Retry(ctx, l.policy, func() error {
		var fetchErr error
		rows, fetchErr = l.fetchCountryRows(ctx, country, target, from, to)
		return fetchErr
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrCountryNotFound, country)
	}

	observations := cleanRows(rows)
	if len(observations) < models.MinSeriesLength {
		l.logger.Warn("limited data available",
			"country", country, "target", target, "days", len(observations))
		return nil, fmt.Errorf("%w: %s has %d usable days, need %d",
			ErrInsufficientData, country, len(observations), models.MinSeriesLength)
	}

	series := &models.Series{Country: country, Target: target, Observations: observations}
	l.cache.Add(key, cacheEntry{series: series, loadedAt: time.Now()})

	l.logger.Info("series loaded",
		"country", country,
		"target", target,
		"days", series.Len(),
		"first", series.Observations[0].Date.Format(dateLayout),
		"last", series.LastDate().Format(dateLayout))
	return series, nil
}

// Countries returns the sorted list of locations present in the dataset,
// cached for CacheMaxAge.
func (l *Loader) Countries(ctx context.Context) ([]string, error) {
	l.mu.Lock()
	if l.countries != nil && time.Since(l.countriesAt) < l.cfg.CacheMaxAge {
		out := l.countries
		l.mu.Unlock()
		return out, nil
	}
	l.mu.Unlock()

	var countries []string
	err := Retry(ctx, l.policy, func() error {
		var fetchErr error
		countries, fetchErr = l.fetchCountries(ctx)
		return fetchErr
	})
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.countries = countries
	l.countriesAt = time.Now()
	l.mu.Unlock()
	return countries, nil
}

// Invalidate drops every cached series and the country list, forcing the
// next request to refetch the dataset.
func (l *Loader) Invalidate() {
	l.cache.Purge()
	l.mu.Lock()
	l.countries = nil
	l.countriesAt = time.Time{}
	l.mu.Unlock()
	l.logger.Info("dataset cache invalidated")
}

func (l *Loader) fetchCountryRows(ctx context.Context, country, target string, from, to time.Time) ([]rawRow, error) {
	body, err := l.openDataset(ctx)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	reader := csv.NewReader(body)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, &RetryableError{Err: fmt.Errorf("failed to read dataset header: %w", err)}
	}
	locIdx, dateIdx, targetIdx := -1, -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case columnLocation:
			locIdx = i
		case columnDate:
			dateIdx = i
		case target:
			targetIdx = i
		}
	}
	if locIdx < 0 || dateIdx < 0 {
		return nil, fmt.Errorf("dataset missing %s/%s columns", columnLocation, columnDate)
	}
	if targetIdx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, target)
	}

	var rows []rawRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &RetryableError{Err: fmt.Errorf("failed to read dataset row: %w", err)}
		}
		if locIdx >= len(record) || record[locIdx] != country {
			continue
		}
		if dateIdx >= len(record) || targetIdx >= len(record) {
			continue
		}

		date, err := time.Parse(dateLayout, record[dateIdx])
		if err != nil {
			continue
		}
		if !from.IsZero() && date.Before(from) {
			continue
		}
		if !to.IsZero() && date.After(to) {
			continue
		}

		row := rawRow{date: date}
		if v, err := strconv.ParseFloat(record[targetIdx], 64); err == nil {
			row.value = v
		} else {
			row.value = math.NaN()
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (l *Loader) fetchCountries(ctx context.Context) ([]string, error) {
	body, err := l.openDataset(ctx)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	reader := csv.NewReader(body)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, &RetryableError{Err: fmt.Errorf("failed to read dataset header: %w", err)}
	}
	locIdx := -1
	for i, name := range header {
		if strings.TrimSpace(name) == columnLocation {
			locIdx = i
			break
		}
	}
	if locIdx < 0 {
		return nil, fmt.Errorf("dataset missing %s column", columnLocation)
	}

	seen := make(map[string]struct{})
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &RetryableError{Err: fmt.Errorf("failed to read dataset row: %w", err)}
		}
		if locIdx < len(record) && record[locIdx] != "" {
			seen[record[locIdx]] = struct{}{}
		}
	}

	countries := make([]string, 0, len(seen))
	for c := range seen {
		countries = append(countries, c)
	}
	sort.Strings(countries)
	return countries, nil
}

// openDataset issues the HTTP request and classifies transport failures as
// retryable. The caller owns the returned body.
func (l *Loader) openDataset(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create dataset request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, &RetryableError{Err: fmt.Errorf("dataset fetch failed: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return resp.Body, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		resp.Body.Close()
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, &RetryableError{
			Err:        fmt.Errorf("dataset fetch rate limited"),
			RetryAfter: retryAfter,
		}
	case resp.StatusCode >= 500:
		resp.Body.Close()
		return nil, &RetryableError{Err: fmt.Errorf("dataset fetch returned status %d", resp.StatusCode)}
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("dataset fetch returned status %d", resp.StatusCode)
	}
}

func parseRetryAfter(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return 0
}

func cacheKey(country, target string, from, to time.Time) string {
	f, t := "", ""
	if !from.IsZero() {
		f = from.Format(dateLayout)
	}
	if !to.IsZero() {
		t = to.Format(dateLayout)
	}
	return fmt.Sprintf("%s|%s|%s|%s", country, target, f, t)
}
