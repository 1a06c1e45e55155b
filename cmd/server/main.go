package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/epitrack/epitrack/internal/api"
	"github.com/epitrack/epitrack/internal/auth"
	"github.com/epitrack/epitrack/internal/config"
	"github.com/epitrack/epitrack/internal/database"
	"github.com/epitrack/epitrack/internal/dataloader"
	"github.com/epitrack/epitrack/internal/forecaster"
	"github.com/epitrack/epitrack/internal/logging"
	"github.com/epitrack/epitrack/internal/metrics"
	"github.com/epitrack/epitrack/internal/scheduler"
	"github.com/epitrack/epitrack/internal/server"
	_ "github.com/lib/pq"
	"log/slog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	logger.Info("starting epitrack")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database is optional: without DATABASE_URL the service still serves
	// forecasts, it just keeps no run history.
	var db *sql.DB
	if cfg.Database.URL != "" {
		logger.Info("connecting to database")
		dbCfg := database.DefaultConfig()
		dbCfg.URL = cfg.Database.URL
		db, err = database.Connect(ctx, dbCfg)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		logger.Info("database connected")

		if err := database.RunMigrations(db, cfg.Database.MigrationsDir, logger); err != nil {
			logger.Warn("failed to run migrations, continuing anyway", "error", err)
		}
	} else {
		logger.Warn("DATABASE_URL not set, run history disabled")
	}

	collector, err := metrics.NewCollector()
	if err != nil {
		logger.Error("failed to init metrics", "error", err)
		os.Exit(1)
	}

	loader, err := dataloader.New(dataloader.Config{
		URL:          cfg.Dataset.URL,
		FetchTimeout: cfg.Dataset.FetchTimeout,
		CacheSize:    cfg.Dataset.CacheSize,
		CacheMaxAge:  cfg.Dataset.CacheMaxAge,
	}, logger, dataloader.WithCacheObserver(collector))
	if err != nil {
		logger.Error("failed to init dataset loader", "error", err)
		os.Exit(1)
	}

	caps := forecaster.Capabilities{
		SeasonalARIMA: !cfg.Forecast.DisableSeasonalARIMA,
		AutoARIMA:     !cfg.Forecast.DisableAutoARIMA,
	}
	logger.Info("forecast engine configured",
		"seasonal_arima", caps.SeasonalARIMA,
		"auto_arima", caps.AutoARIMA)

	var runs *database.RunRepository
	if db != nil {
		runs = database.NewRunRepository(db)
	}

	refreshScheduler := scheduler.NewRefreshScheduler(loader, runs, caps, collector, cfg.Forecast, logger)
	go refreshScheduler.Start(ctx)

	authConfig := auth.LoadConfigFromEnv()
	logger.Info("auth configured", "jwt_secret_set", authConfig.JWTSecret != "change-this-secret")

	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := database.HealthCheck(r.Context(), db); err != nil {
				logger.Error("health check failed", "error", err)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.HandleFunc("/api/info", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"epitrack","status":"ready","version":"0.1.0"}`))
	})

	mux.Handle("/metrics", collector.Handler())

	logger.Info("setting up REST API")
	api.SetupRoutes(mux, api.RouterDeps{
		DB:         db,
		Loader:     loader,
		Caps:       caps,
		Observer:   collector,
		AuthConfig: authConfig,
		Refresh:    refreshScheduler.Kick,
		Logger:     logger,
	})

	srv := server.New(cfg.Server, logger, collector.InstrumentHandler(mux))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", "error", err)
		}
	}

	refreshScheduler.Stop()
	cancel()

	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	logger.Info("epitrack stopped")
}
