package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/Seiiyes/ricoh/internal/database"
	"github.com/Seiiyes/ricoh/internal/models"
	"github.com/Seiiyes/ricoh/internal/provision"
)

// ProvisionHandler handles provisioning endpoints
type ProvisionHandler struct {
	svc    *provision.Service
	db     *database.DB
	events *EventHub
}

// NewProvisionHandler creates a new provisioning handler
func NewProvisionHandler(svc *provision.Service, db *database.DB, events *EventHub) *ProvisionHandler {
	return &ProvisionHandler{
		svc:    svc,
		db:     db,
		events: events,
	}
}

// RegisterRoutes registers the provisioning routes
func (h *ProvisionHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/provisioning/provision", h.provision).Methods("POST")
	r.HandleFunc("/api/provisioning/user/{id}", h.getUserPrinters).Methods("GET")
	r.HandleFunc("/api/provisioning/printer/{id}", h.getPrinterUsers).Methods("GET")
	r.HandleFunc("/api/provisioning/assignment", h.deleteAssignment).Methods("DELETE")
}

// provisionRequest is the POST /api/provisioning/provision payload.
type provisionRequest struct {
	UserID     int64   `json:"userId"`
	PrinterIDs []int64 `json:"printerIds"`
}

// provision pushes one user onto a batch of printers. The call is
// synchronous; busy devices are retried inside, so it can take several
// seconds per busy device.
func (h *ProvisionHandler) provision(w http.ResponseWriter, r *http.Request) {
	logger := log.With().Str("handler", "provision").Logger()

	var req provisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid provisioning request", http.StatusBadRequest)
		return
	}
	if req.UserID == 0 || len(req.PrinterIDs) == 0 {
		http.Error(w, "userId and printerIds are required", http.StatusBadRequest)
		return
	}

	result, err := h.svc.ProvisionUserToPrinters(r.Context(), req.UserID, req.PrinterIDs)
	if err != nil {
		logger.Error().Err(err).Int64("userId", req.UserID).Msg("Provisioning batch could not start")
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	if h.events != nil {
		h.events.Broadcast("provisioning.completed", result)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		logger.Error().Err(err).Msg("Failed to encode provisioning result")
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// getUserPrinters returns the printers a user is provisioned on
func (h *ProvisionHandler) getUserPrinters(w http.ResponseWriter, r *http.Request) {
	logger := log.With().Str("handler", "getUserPrinters").Logger()

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	printers, err := h.db.GetUserPrinters(id)
	if err != nil {
		logger.Error().Err(err).Int64("userId", id).Msg("Failed to retrieve user printers")
		http.Error(w, "Failed to retrieve assignments", http.StatusInternalServerError)
		return
	}
	if printers == nil {
		printers = []*models.Printer{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(printers); err != nil {
		logger.Error().Err(err).Msg("Failed to encode printers")
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// getPrinterUsers returns the users provisioned on a printer
func (h *ProvisionHandler) getPrinterUsers(w http.ResponseWriter, r *http.Request) {
	logger := log.With().Str("handler", "getPrinterUsers").Logger()

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid printer ID", http.StatusBadRequest)
		return
	}

	users, err := h.db.GetPrinterUsers(id)
	if err != nil {
		logger.Error().Err(err).Int64("printerId", id).Msg("Failed to retrieve printer users")
		http.Error(w, "Failed to retrieve assignments", http.StatusInternalServerError)
		return
	}
	if users == nil {
		users = []*models.User{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(users); err != nil {
		logger.Error().Err(err).Msg("Failed to encode users")
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// assignmentRequest is the DELETE /api/provisioning/assignment payload.
type assignmentRequest struct {
	UserID    int64 `json:"userId"`
	PrinterID int64 `json:"printerId"`
}

// deleteAssignment removes a user/printer assignment record. The user is
// not removed from the device itself.
func (h *ProvisionHandler) deleteAssignment(w http.ResponseWriter, r *http.Request) {
	logger := log.With().Str("handler", "deleteAssignment").Logger()

	var req assignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid assignment request", http.StatusBadRequest)
		return
	}

	existed, err := h.db.DeleteAssignment(req.UserID, req.PrinterID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to delete assignment")
		http.Error(w, "Failed to delete assignment", http.StatusInternalServerError)
		return
	}
	if !existed {
		http.Error(w, "Assignment not found", http.StatusNotFound)
		return
	}

	logger.Info().Int64("userId", req.UserID).Int64("printerId", req.PrinterID).Msg("Assignment deleted")
	w.WriteHeader(http.StatusNoContent)
}
