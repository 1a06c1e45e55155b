package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/epitrack/epitrack/internal/models"
)

// Collector exposes Prometheus metrics for inbound HTTP requests, forecast
// outcomes, and dataset cache behavior. It satisfies the forecasting engine's
// observer interface and the loader's cache observer interface.
type Collector struct {
	registry        *prometheus.Registry
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	forecastsTotal   *prometheus.CounterVec
	fitDuration      *prometheus.HistogramVec
	cacheHitsTotal   prometheus.Counter
	cacheMissesTotal prometheus.Counter
}

// NewCollector constructs a collector with its own registry.
func NewCollector() (*Collector, error) {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "epitrack",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for inbound HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "epitrack",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of inbound HTTP requests.",
	}, []string{"method", "path", "status"})

	forecastsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "epitrack",
		Subsystem: "forecast",
		Name:      "runs_total",
		Help:      "Total number of completed forecast runs by winning model and status.",
	}, []string{"model_type", "status"})

	fitDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "epitrack",
		Subsystem: "forecast",
		Name:      "fit_duration_seconds",
		Help:      "Time spent fitting each strategy, including failed attempts.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
	}, []string{"strategy"})

	cacheHitsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "epitrack",
		Subsystem: "dataset",
		Name:      "cache_hits_total",
		Help:      "Series cache hits.",
	})

	cacheMissesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "epitrack",
		Subsystem: "dataset",
		Name:      "cache_misses_total",
		Help:      "Series cache misses.",
	})

	collectors := []prometheus.Collector{
		requestDuration, requestTotal, forecastsTotal, fitDuration,
		cacheHitsTotal, cacheMissesTotal,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return &Collector{
		registry:         registry,
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		forecastsTotal:   forecastsTotal,
		fitDuration:      fitDuration,
		cacheHitsTotal:   cacheHitsTotal,
		cacheMissesTotal: cacheMissesTotal,
	}, nil
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler to record HTTP metrics.
func (c *Collector) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.status)
		path := r.URL.Path

		c.requestTotal.WithLabelValues(r.Method, path, status).Inc()
		c.requestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
	})
}

// ForecastCompleted records a forecast run outcome.
func (c *Collector) ForecastCompleted(model models.ModelType, status string) {
	c.forecastsTotal.WithLabelValues(string(model), status).Inc()
}

// StrategyDuration records how long one strategy's fit/forecast attempt took.
func (c *Collector) StrategyDuration(model models.ModelType, seconds float64) {
	c.fitDuration.WithLabelValues(string(model)).Observe(seconds)
}

// DatasetCacheHit records a series cache hit.
func (c *Collector) DatasetCacheHit() {
	c.cacheHitsTotal.Inc()
}

// DatasetCacheMiss records a series cache miss.
func (c *Collector) DatasetCacheMiss() {
	c.cacheMissesTotal.Inc()
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
