// Package api exposes the fleet manager's REST and WebSocket surface.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/Seiiyes/ricoh/internal/database"
	"github.com/Seiiyes/ricoh/internal/models"
	"github.com/Seiiyes/ricoh/internal/scanner"
)

// DiscoveryHandler handles network scan and registration endpoints
type DiscoveryHandler struct {
	scanner *scanner.ScanService
	db      *database.DB
	events  *EventHub
}

// NewDiscoveryHandler creates a new discovery handler
func NewDiscoveryHandler(scanSvc *scanner.ScanService, db *database.DB, events *EventHub) *DiscoveryHandler {
	return &DiscoveryHandler{
		scanner: scanSvc,
		db:      db,
		events:  events,
	}
}

// RegisterRoutes registers the discovery routes
func (h *DiscoveryHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/discovery/scan", h.runScan).Methods("POST")
	r.HandleFunc("/api/discovery/register", h.registerDevices).Methods("POST")
	r.HandleFunc("/api/discovery/scans", h.getRecentScans).Methods("GET")
	r.HandleFunc("/api/discovery/scans/{id}", h.getScan).Methods("GET")
}

// scanResponse is the /api/discovery/scan payload.
type scanResponse struct {
	ScanID  int64                     `json:"scanId"`
	Summary models.ScanSummary        `json:"summary"`
	Devices []models.DiscoveredDevice `json:"devices"`
}

// runScan performs a synchronous discovery scan and returns the devices found
func (h *DiscoveryHandler) runScan(w http.ResponseWriter, r *http.Request) {
	logger := log.With().Str("handler", "runScan").Logger()

	var params models.ScanParameters
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			logger.Error().Err(err).Msg("Invalid scan parameters")
			http.Error(w, "Invalid scan parameters", http.StatusBadRequest)
			return
		}
	}

	scanID, devices, summary, err := h.scanner.RunScan(r.Context(), params)
	if err != nil {
		logger.Error().Err(err).Msg("Scan failed")
		status := http.StatusInternalServerError
		if errors.Is(err, scanner.ErrRangeTooLarge) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	if h.events != nil {
		h.events.Broadcast("scan.completed", summary)
	}

	resp := scanResponse{ScanID: scanID, Summary: summary, Devices: devices}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Msg("Failed to encode scan response")
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// registerDevices persists discovered devices as fleet printers
func (h *DiscoveryHandler) registerDevices(w http.ResponseWriter, r *http.Request) {
	logger := log.With().Str("handler", "registerDevices").Logger()

	var devices []models.DiscoveredDevice
	if err := json.NewDecoder(r.Body).Decode(&devices); err != nil {
		logger.Error().Err(err).Msg("Invalid device list")
		http.Error(w, "Invalid device list", http.StatusBadRequest)
		return
	}
	if len(devices) == 0 {
		http.Error(w, "No devices to register", http.StatusBadRequest)
		return
	}

	var ids []int64
	for _, dev := range devices {
		if dev.IPAddress == "" {
			http.Error(w, "Device is missing an IP address", http.StatusBadRequest)
			return
		}
		id, err := h.db.SavePrinter(dev)
		if err != nil {
			logger.Error().Err(err).Str("ip", dev.IPAddress).Msg("Failed to register device")
			http.Error(w, "Failed to register device", http.StatusInternalServerError)
			return
		}
		ids = append(ids, id)
	}

	logger.Info().Int("count", len(ids)).Msg("Registered discovered devices")
	if h.events != nil {
		h.events.Broadcast("printers.registered", map[string]interface{}{"printerIds": ids})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"printerIds": ids}); err != nil {
		logger.Error().Err(err).Msg("Failed to encode response")
	}
}

// getRecentScans returns recent scan history
func (h *DiscoveryHandler) getRecentScans(w http.ResponseWriter, r *http.Request) {
	logger := log.With().Str("handler", "getRecentScans").Logger()

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	scans, err := h.scanner.GetRecentScans(limit)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to retrieve scans")
		http.Error(w, "Failed to retrieve scans", http.StatusInternalServerError)
		return
	}
	if scans == nil {
		scans = []*models.Scan{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(scans); err != nil {
		logger.Error().Err(err).Msg("Failed to encode scans")
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// getScan returns one scan record
func (h *DiscoveryHandler) getScan(w http.ResponseWriter, r *http.Request) {
	logger := log.With().Str("handler", "getScan").Logger()

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid scan ID", http.StatusBadRequest)
		return
	}

	scan, err := h.scanner.GetScan(id)
	if err != nil {
		logger.Error().Err(err).Int64("id", id).Msg("Scan not found")
		http.Error(w, "Scan not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(scan); err != nil {
		logger.Error().Err(err).Msg("Failed to encode scan")
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}
