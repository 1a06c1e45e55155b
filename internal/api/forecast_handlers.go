package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/epitrack/epitrack/internal/database"
	"github.com/epitrack/epitrack/internal/dataloader"
	"github.com/epitrack/epitrack/internal/forecaster"
	"github.com/epitrack/epitrack/internal/models"
	"log/slog"
)

// ForecastHandler handles forecast execution and run history.
type ForecastHandler struct {
	loader   *dataloader.Loader
	runs     *database.RunRepository // nil when persistence is disabled
	caps     forecaster.Capabilities
	observer forecaster.Observer
	logger   *slog.Logger
}

// NewForecastHandler creates a forecast handler. runs may be nil, in which
// case forecasts still execute but no history is recorded.
func NewForecastHandler(loader *dataloader.Loader, runs *database.RunRepository, caps forecaster.Capabilities, observer forecaster.Observer, logger *slog.Logger) *ForecastHandler {
	return &ForecastHandler{
		loader:   loader,
		runs:     runs,
		caps:     caps,
		observer: observer,
		logger:   logger,
	}
}

// RunForecast handles POST /api/forecast
func (h *ForecastHandler) RunForecast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.ForecastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Horizon == 0 {
		req.Horizon = models.DefaultForecastConfig().Horizon
	}

	from, to, err := ValidateForecastRequest(&req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	cfg := models.DefaultForecastConfig()
	cfg.Horizon = req.Horizon
	if req.UseSeasonality != nil {
		cfg.UseSeasonality = *req.UseSeasonality
	}
	if req.ApplyLogTransform != nil {
		cfg.ApplyLogTransform = *req.ApplyLogTransform
	}

	series, err := h.loader.LoadSeries(r.Context(), req.Country, req.Target, from, to)
	if err != nil {
		h.writeLoadError(w, req.Country, req.Target, err)
		return
	}

	runID := h.recordPending(r, series, cfg)

	engine := forecaster.New(cfg, h.caps, h.logger, forecaster.WithObserver(h.observer))
	result, err := engine.Forecast(series)
	if err != nil {
		h.recordFailure(r, runID, err)
		if forecaster.IsInputError(err) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		h.logger.Error("forecast failed", "country", req.Country, "target", req.Target, "error", err)
		http.Error(w, "Forecast failed", http.StatusInternalServerError)
		return
	}

	h.recordCompletion(r, runID, result)

	dates := make([]time.Time, cfg.Horizon)
	last := series.LastDate()
	for i := range dates {
		dates[i] = last.AddDate(0, 0, i+1)
	}

	writeJSON(w, h.logger, http.StatusOK, models.ForecastResponse{
		RunID:   runID,
		Country: req.Country,
		Target:  req.Target,
		Config:  cfg,
		Dates:   dates,
		Result:  result,
		Summary: dataloader.Summarize(series),
	})
}

// ListRuns handles GET /api/runs[?country=X&limit=N]
func (h *ForecastHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.runs == nil {
		http.Error(w, "Run history is not enabled", http.StatusNotImplemented)
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			http.Error(w, "limit must be between 1 and 200", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := h.runs.List(r.Context(), r.URL.Query().Get("country"), limit)
	if err != nil {
		h.logger.Error("failed to list forecast runs", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetRun handles GET /api/runs/:id
func (h *ForecastHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.runs == nil {
		http.Error(w, "Run history is not enabled", http.StatusNotImplemented)
		return
	}

	parts := strings.Split(r.URL.Path, "/")
	if len(parts) < 4 || parts[3] == "" {
		http.Error(w, "Run ID required", http.StatusBadRequest)
		return
	}
	runID := parts[3]

	run, err := h.runs.GetByID(r.Context(), runID)
	if err != nil {
		h.logger.Error("failed to get forecast run", "id", runID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, run)
}

func (h *ForecastHandler) recordPending(r *http.Request, series *models.Series, cfg models.ForecastConfig) string {
	if h.runs == nil {
		return ""
	}
	runID, err := h.runs.Create(r.Context(), models.ForecastRun{
		Country:     series.Country,
		Target:      series.Target,
		Config:      cfg,
		SeriesStart: series.Observations[0].Date,
		SeriesEnd:   series.LastDate(),
		SeriesLen:   series.Len(),
	})
	if err != nil {
		// History is best effort; the forecast itself still runs.
		h.logger.Warn("failed to record forecast run", "error", err)
		return ""
	}
	return runID
}

func (h *ForecastHandler) recordCompletion(r *http.Request, runID string, result *models.ForecastResult) {
	if h.runs == nil || runID == "" {
		return
	}
	if err := h.runs.Complete(r.Context(), runID, result); err != nil {
		h.logger.Warn("failed to record forecast completion", "run_id", runID, "error", err)
	}
}

func (h *ForecastHandler) recordFailure(r *http.Request, runID string, cause error) {
	if h.runs == nil || runID == "" {
		return
	}
	if err := h.runs.Fail(r.Context(), runID, cause.Error()); err != nil {
		h.logger.Warn("failed to record forecast failure", "run_id", runID, "error", err)
	}
}

func (h *ForecastHandler) writeLoadError(w http.ResponseWriter, country, target string, err error) {
	switch {
	case errors.Is(err, dataloader.ErrCountryNotFound):
		http.Error(w, "No data for requested country", http.StatusNotFound)
	case errors.Is(err, dataloader.ErrUnknownColumn):
		http.Error(w, "Unknown target column", http.StatusBadRequest)
	case errors.Is(err, dataloader.ErrInsufficientData):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		h.logger.Error("failed to load series for forecast", "country", country, "target", target, "error", err)
		http.Error(w, "Failed to load dataset", http.StatusBadGateway)
	}
}
