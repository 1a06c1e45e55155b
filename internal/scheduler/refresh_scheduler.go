package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/epitrack/epitrack/internal/config"
	"github.com/epitrack/epitrack/internal/database"
	"github.com/epitrack/epitrack/internal/dataloader"
	"github.com/epitrack/epitrack/internal/forecaster"
	"github.com/epitrack/epitrack/internal/models"
)

// RefreshScheduler periodically drops the dataset cache, re-warms forecasts
// for the tracked countries, and prunes old run history.
type RefreshScheduler struct {
	loader   *dataloader.Loader
	runs     *database.RunRepository // nil when persistence is disabled
	caps     forecaster.Capabilities
	observer forecaster.Observer
	cfg      config.ForecastConfig
	logger   *slog.Logger
	stopChan chan struct{}
	kickChan chan struct{}
}

// NewRefreshScheduler creates a refresh scheduler.
func NewRefreshScheduler(
	loader *dataloader.Loader,
	runs *database.RunRepository,
	caps forecaster.Capabilities,
	observer forecaster.Observer,
	cfg config.ForecastConfig,
	logger *slog.Logger,
) *RefreshScheduler {
	return &RefreshScheduler{
		loader:   loader,
		runs:     runs,
		caps:     caps,
		observer: observer,
		cfg:      cfg,
		logger:   logger,
		stopChan: make(chan struct{}),
		kickChan: make(chan struct{}, 1),
	}
}

// Start begins the scheduler loop
func (s *RefreshScheduler) Start(ctx context.Context) {
	s.logger.Info("Starting refresh scheduler",
		"interval", s.cfg.RefreshInterval,
		"tracked_countries", len(s.cfg.TrackedCountries))
	ticker := time.NewTicker(s.cfg.RefreshInterval)
	defer ticker.Stop()

	// Warm once immediately on start
	s.refresh(ctx)

	for {
		select {
		case <-ticker.C:
			s.loader.Invalidate()
			s.refresh(ctx)
		case <-s.kickChan:
			s.refresh(ctx)
		case <-s.stopChan:
			s.logger.Info("Refresh scheduler stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Refresh scheduler stopping due to context cancellation")
			return
		}
	}
}

// Stop stops the scheduler
func (s *RefreshScheduler) Stop() {
	close(s.stopChan)
}

// Kick requests an immediate refresh cycle without waiting for the ticker.
// Used by the admin refresh endpoint. Non-blocking; a pending kick is enough.
func (s *RefreshScheduler) Kick() {
	select {
	case s.kickChan <- struct{}{}:
	default:
	}
}

// refresh re-runs the default forecast for every tracked country so the
// dashboard's first request after a dataset update hits a warm cache, then
// prunes expired run history.
func (s *RefreshScheduler) refresh(ctx context.Context) {
	cfg := models.DefaultForecastConfig()

	for _, country := range s.cfg.TrackedCountries {
		series, err := s.loader.LoadSeries(ctx, country, "new_cases", time.Time{}, time.Time{})
		if err != nil {
			s.logger.Warn("scheduled refresh: failed to load series",
				"country", country, "error", err)
			continue
		}

		engine := forecaster.New(cfg, s.caps, s.logger, forecaster.WithObserver(s.observer))
		result, err := engine.Forecast(series)
		if err != nil {
			s.logger.Warn("scheduled refresh: forecast failed",
				"country", country, "error", err)
			continue
		}

		s.logger.Info("scheduled forecast refreshed",
			"country", country,
			"model_type", result.ModelType,
			"horizon", cfg.Horizon)

		if s.runs != nil {
			s.persistRun(ctx, series, cfg, result)
		}
	}

	s.pruneHistory(ctx)
}

func (s *RefreshScheduler) persistRun(ctx context.Context, series *models.Series, cfg models.ForecastConfig, result *models.ForecastResult) {
	runID, err := s.runs.Create(ctx, models.ForecastRun{
		Country:     series.Country,
		Target:      series.Target,
		Config:      cfg,
		SeriesStart: series.Observations[0].Date,
		SeriesEnd:   series.LastDate(),
		SeriesLen:   series.Len(),
	})
	if err != nil {
		s.logger.Warn("scheduled refresh: failed to record run", "error", err)
		return
	}
	if err := s.runs.Complete(ctx, runID, result); err != nil {
		s.logger.Warn("scheduled refresh: failed to complete run", "run_id", runID, "error", err)
	}
}

func (s *RefreshScheduler) pruneHistory(ctx context.Context) {
	if s.runs == nil || s.cfg.RetentionDays <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -s.cfg.RetentionDays)
	deleted, err := s.runs.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error("failed to prune forecast run history", "error", err)
		return
	}
	if deleted > 0 {
		s.logger.Info("pruned forecast run history", "deleted", deleted, "cutoff", cutoff)
	}
}
