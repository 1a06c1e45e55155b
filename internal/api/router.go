package api

import (
	"database/sql"
	"net/http"

	"github.com/epitrack/epitrack/internal/auth"
	"github.com/epitrack/epitrack/internal/database"
	"github.com/epitrack/epitrack/internal/dataloader"
	"github.com/epitrack/epitrack/internal/forecaster"
	"log/slog"
)

// RouterDeps carries everything the route table needs.
type RouterDeps struct {
	DB         *sql.DB // nil when persistence is disabled
	Loader     *dataloader.Loader
	Caps       forecaster.Capabilities
	Observer   forecaster.Observer
	AuthConfig auth.Config
	Refresh    func() // scheduler kick, may be nil
	Logger     *slog.Logger
}

// SetupRoutes configures all API routes
func SetupRoutes(mux *http.ServeMux, deps RouterDeps) {
	var runs *database.RunRepository
	if deps.DB != nil {
		runs = database.NewRunRepository(deps.DB)
	}

	handler := NewHandler(deps.Loader, deps.DB, deps.Logger)
	forecastHandler := NewForecastHandler(deps.Loader, runs, deps.Caps, deps.Observer, deps.Logger)
	authHandler := NewAuthHandler(deps.AuthConfig, deps.Logger)
	adminHandler := NewAdminHandler(deps.Loader, deps.Refresh, deps.Logger)

	authMiddleware := auth.Middleware(deps.AuthConfig)

	// Authentication routes (public)
	mux.HandleFunc("/api/auth/login", authHandler.Login)
	mux.HandleFunc("/api/auth/validate", func(w http.ResponseWriter, r *http.Request) {
		authMiddleware(http.HandlerFunc(authHandler.ValidateToken)).ServeHTTP(w, r)
	})

	// Dataset routes (public)
	mux.HandleFunc("/api/countries", handler.GetCountriesHandler)
	mux.HandleFunc("/api/series", handler.GetSeriesHandler)
	mux.HandleFunc("/api/stats", handler.GetStatsHandler)

	// Forecast routes (public)
	mux.HandleFunc("/api/forecast", forecastHandler.RunForecast)
	mux.HandleFunc("/api/runs", forecastHandler.ListRuns)
	mux.HandleFunc("/api/runs/", forecastHandler.GetRun)

	// Admin routes (require auth)
	mux.HandleFunc("/api/admin/refresh", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.WriteHeader(http.StatusOK)
			return
		}
		authMiddleware(http.HandlerFunc(adminHandler.RefreshDataset)).ServeHTTP(w, r)
	})
}
