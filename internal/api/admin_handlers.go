package api

import (
	"net/http"

	"github.com/epitrack/epitrack/internal/dataloader"
	"log/slog"
)

// AdminHandler handles operator endpoints behind authentication.
type AdminHandler struct {
	loader  *dataloader.Loader
	refresh func() // kicks the scheduler's warm cycle, may be nil
	logger  *slog.Logger
}

// NewAdminHandler creates an admin handler. refresh may be nil when no
// scheduler is running.
func NewAdminHandler(loader *dataloader.Loader, refresh func(), logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		loader:  loader,
		refresh: refresh,
		logger:  logger,
	}
}

// RefreshDataset handles POST /api/admin/refresh: drops the dataset cache so
// the next request refetches, and asks the scheduler to re-warm immediately.
func (h *AdminHandler) RefreshDataset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.loader.Invalidate()
	if h.refresh != nil {
		h.refresh()
	}

	h.logger.Info("dataset refresh requested")
	writeJSON(w, h.logger, http.StatusAccepted, map[string]string{"status": "refreshing"})
}
