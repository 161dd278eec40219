package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/Seiiyes/ricoh/internal/database"
	"github.com/Seiiyes/ricoh/internal/models"
	"github.com/Seiiyes/ricoh/internal/secrets"
)

// UserHandler handles user CRUD endpoints. Network folder passwords arrive
// in plaintext over the API and are encrypted before they touch the
// database; they are never returned.
type UserHandler struct {
	db     *database.DB
	cipher *secrets.Cipher
}

// NewUserHandler creates a new user handler
func NewUserHandler(db *database.DB, cipher *secrets.Cipher) *UserHandler {
	return &UserHandler{db: db, cipher: cipher}
}

// RegisterRoutes registers the user routes
func (h *UserHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/users", h.createUser).Methods("POST")
	r.HandleFunc("/api/users", h.getUsers).Methods("GET")
	r.HandleFunc("/api/users/{id}", h.getUser).Methods("GET")
	r.HandleFunc("/api/users/{id}", h.deleteUser).Methods("DELETE")
}

// createUserRequest is the POST /api/users payload.
type createUserRequest struct {
	Name            string               `json:"name"`
	Email           string               `json:"email"`
	Department      string               `json:"department"`
	UserCode        string               `json:"userCode"`
	NetworkUsername string               `json:"networkUsername"`
	NetworkPassword string               `json:"networkPassword"`
	Functions       models.UserFunctions `json:"functions"`
	Folder          models.SMBFolder     `json:"folder"`
}

// createUser creates a managed user
func (h *UserHandler) createUser(w http.ResponseWriter, r *http.Request) {
	logger := log.With().Str("handler", "createUser").Logger()

	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid user payload", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "User name is required", http.StatusBadRequest)
		return
	}

	user := &models.User{
		Name:            req.Name,
		Email:           req.Email,
		Department:      req.Department,
		UserCode:        req.UserCode,
		NetworkUsername: req.NetworkUsername,
		Functions:       req.Functions,
		Folder:          req.Folder,
	}

	if req.NetworkPassword != "" {
		if h.cipher == nil {
			logger.Error().Msg("Password supplied but encryption is not configured")
			http.Error(w, "Password storage is not configured", http.StatusInternalServerError)
			return
		}
		encrypted, err := h.cipher.Encrypt(req.NetworkPassword)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to encrypt password")
			http.Error(w, "Failed to encrypt password", http.StatusInternalServerError)
			return
		}
		user.EncryptedPassword = encrypted
	}

	id, err := h.db.CreateUser(user)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create user")
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	created, err := h.db.GetUser(id)
	if err != nil {
		logger.Error().Err(err).Int64("id", id).Msg("Failed to load created user")
		http.Error(w, "Failed to load created user", http.StatusInternalServerError)
		return
	}

	logger.Info().Int64("id", id).Str("name", created.Name).Msg("User created")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(created); err != nil {
		logger.Error().Err(err).Msg("Failed to encode user")
	}
}

// getUsers returns all managed users
func (h *UserHandler) getUsers(w http.ResponseWriter, r *http.Request) {
	logger := log.With().Str("handler", "getUsers").Logger()

	users, err := h.db.ListUsers()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to retrieve users")
		http.Error(w, "Failed to retrieve users", http.StatusInternalServerError)
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

// getUser returns a single user
func (h *UserHandler) getUser(w http.ResponseWriter, r *http.Request) {
	logger := log.With().Str("handler", "getUser").Logger()

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	user, err := h.db.GetUser(id)
	if err != nil {
		logger.Error().Err(err).Int64("id", id).Msg("User not found")
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(user); err != nil {
		logger.Error().Err(err).Msg("Failed to encode user")
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// deleteUser removes a user and cascades their assignments
func (h *UserHandler) deleteUser(w http.ResponseWriter, r *http.Request) {
	logger := log.With().Str("handler", "deleteUser").Logger()

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	if _, err := h.db.GetUser(id); err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}
	if err := h.db.DeleteUser(id); err != nil {
		logger.Error().Err(err).Int64("id", id).Msg("Failed to delete user")
		http.Error(w, "Failed to delete user", http.StatusInternalServerError)
		return
	}

	logger.Info().Int64("id", id).Msg("User deleted")
	w.WriteHeader(http.StatusNoContent)
}
