package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/Seiiyes/ricoh/internal/database"
	"github.com/Seiiyes/ricoh/internal/models"
)

// Version is the service version reported by /api/status.
const Version = "1.0.0"

// StatusHandler handles the system status endpoint
type StatusHandler struct {
	db *database.DB
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(db *database.DB) *StatusHandler {
	return &StatusHandler{db: db}
}

// RegisterRoutes registers the status routes
func (h *StatusHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/status", h.getStatus).Methods("GET")
}

// getStatus returns overall system health
func (h *StatusHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	logger := log.With().Str("handler", "getStatus").Logger()

	status := models.SystemStatus{
		Status:  "ok",
		Version: Version,
	}

	if n, err := h.db.CountPrinters(); err == nil {
		status.PrinterCount = n
	} else {
		logger.Error().Err(err).Msg("Failed to count printers")
		status.Status = "degraded"
	}
	if n, err := h.db.CountUsers(); err == nil {
		status.UserCount = n
	} else {
		logger.Error().Err(err).Msg("Failed to count users")
		status.Status = "degraded"
	}
	if ts, err := h.db.GetLastScanTime(); err == nil {
		status.LastScan = ts
	}
	if size, err := h.db.GetDatabaseSize(); err == nil {
		status.DatabaseSize = size
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		logger.Error().Err(err).Msg("Failed to encode status")
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}
