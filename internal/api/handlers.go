package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/epitrack/epitrack/internal/database"
	"github.com/epitrack/epitrack/internal/dataloader"
	"github.com/epitrack/epitrack/internal/models"
	"log/slog"
)

type Handler struct {
	loader    *dataloader.Loader
	db        *sql.DB
	logger    *slog.Logger
	startTime time.Time
}

func NewHandler(loader *dataloader.Loader, db *sql.DB, logger *slog.Logger) *Handler {
	return &Handler{
		loader:    loader,
		db:        db,
		logger:    logger,
		startTime: time.Now(),
	}
}

// CountriesResponse is the body for GET /api/countries.
type CountriesResponse struct {
	Countries []string `json:"countries"`
	Count     int      `json:"count"`
}

// SeriesResponse is the body for GET /api/series.
type SeriesResponse struct {
	Country      string                `json:"country"`
	Target       string                `json:"target"`
	Observations []models.Observation  `json:"observations"`
	Summary      *models.SeriesSummary `json:"summary"`
}

// GetCountriesHandler handles GET /api/countries
func (h *Handler) GetCountriesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	countries, err := h.loader.Countries(r.Context())
	if err != nil {
		h.logger.Error("failed to list countries", "error", err)
		http.Error(w, "Failed to load dataset", http.StatusBadGateway)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, CountriesResponse{
		Countries: countries,
		Count:     len(countries),
	})
}

// GetSeriesHandler handles GET /api/series?country=X&target=Y[&from=...&to=...]
func (h *Handler) GetSeriesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	country := query.Get("country")
	target := query.Get("target")
	if country == "" || target == "" {
		http.Error(w, "country and target query parameters are required", http.StatusBadRequest)
		return
	}
	if !ValidTarget(target) {
		http.Error(w, "Unknown target column", http.StatusBadRequest)
		return
	}

	var from, to time.Time
	var err error
	if raw := query.Get("from"); raw != "" {
		if from, err = time.Parse(requestDateLayout, raw); err != nil {
			http.Error(w, "from must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
	}
	if raw := query.Get("to"); raw != "" {
		if to, err = time.Parse(requestDateLayout, raw); err != nil {
			http.Error(w, "to must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
	}

	series, err := h.loader.LoadSeries(r.Context(), country, target, from, to)
	if err != nil {
		h.writeLoaderError(w, country, target, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, SeriesResponse{
		Country:      series.Country,
		Target:       series.Target,
		Observations: series.Observations,
		Summary:      dataloader.Summarize(series),
	})
}

// GetStatsHandler handles GET /api/stats
func (h *Handler) GetStatsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(h.startTime)
	stats := map[string]interface{}{
		"uptime_seconds":   int64(uptime.Seconds()),
		"uptime_formatted": fmt.Sprintf("%02d:%02d:%02d", int64(uptime.Hours()), int64(uptime.Minutes())%60, int64(uptime.Seconds())%60),
	}
	if h.db != nil {
		stats["database"] = database.Stats(h.db)
	}

	writeJSON(w, h.logger, http.StatusOK, stats)
}

// writeLoaderError maps dataset errors to HTTP statuses: caller mistakes get
// 4xx, upstream dataset trouble gets 502.
func (h *Handler) writeLoaderError(w http.ResponseWriter, country, target string, err error) {
	switch {
	case errors.Is(err, dataloader.ErrCountryNotFound):
		http.Error(w, fmt.Sprintf("No data for country %q", country), http.StatusNotFound)
	case errors.Is(err, dataloader.ErrUnknownColumn):
		http.Error(w, fmt.Sprintf("Unknown target column %q", target), http.StatusBadRequest)
	case errors.Is(err, dataloader.ErrInsufficientData):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		h.logger.Error("failed to load series", "country", country, "target", target, "error", err)
		http.Error(w, "Failed to load dataset", http.StatusBadGateway)
	}
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*") // CORS for dev
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}
