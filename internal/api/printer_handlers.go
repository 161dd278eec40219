package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/Seiiyes/ricoh/internal/database"
	"github.com/Seiiyes/ricoh/internal/models"
)

// PrinterHandler handles printer CRUD endpoints
type PrinterHandler struct {
	db *database.DB
}

// NewPrinterHandler creates a new printer handler
func NewPrinterHandler(db *database.DB) *PrinterHandler {
	return &PrinterHandler{db: db}
}

// RegisterRoutes registers the printer routes
func (h *PrinterHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/printers", h.getPrinters).Methods("GET")
	r.HandleFunc("/api/printers/{id}", h.getPrinter).Methods("GET")
	r.HandleFunc("/api/printers/{id}", h.deletePrinter).Methods("DELETE")
}

// getPrinters returns all registered printers
func (h *PrinterHandler) getPrinters(w http.ResponseWriter, r *http.Request) {
	logger := log.With().Str("handler", "getPrinters").Logger()

	printers, err := h.db.ListPrinters()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to retrieve printers")
		http.Error(w, "Failed to retrieve printers", http.StatusInternalServerError)
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

// getPrinter returns a single printer
func (h *PrinterHandler) getPrinter(w http.ResponseWriter, r *http.Request) {
	logger := log.With().Str("handler", "getPrinter").Logger()

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid printer ID", http.StatusBadRequest)
		return
	}

	printer, err := h.db.GetPrinter(id)
	if err != nil {
		logger.Error().Err(err).Int64("id", id).Msg("Printer not found")
		http.Error(w, "Printer not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(printer); err != nil {
		logger.Error().Err(err).Msg("Failed to encode printer")
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// deletePrinter removes a printer and its assignments
func (h *PrinterHandler) deletePrinter(w http.ResponseWriter, r *http.Request) {
	logger := log.With().Str("handler", "deletePrinter").Logger()

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid printer ID", http.StatusBadRequest)
		return
	}

	if _, err := h.db.GetPrinter(id); err != nil {
		http.Error(w, "Printer not found", http.StatusNotFound)
		return
	}
	if err := h.db.DeletePrinter(id); err != nil {
		logger.Error().Err(err).Int64("id", id).Msg("Failed to delete printer")
		http.Error(w, "Failed to delete printer", http.StatusInternalServerError)
		return
	}

	logger.Info().Int64("id", id).Msg("Printer deleted")
	w.WriteHeader(http.StatusNoContent)
}
