// Package database provides database operations for the Ricoh fleet manager.
// It handles all interactions with the SQLite database including
// initialization, optimization, and CRUD operations for printers, users,
// assignments, and scans.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DB represents the database connection
type DB struct {
	*sql.DB
	Path   string // Exported for integration tests
	logger *zerolog.Logger
	sync.Mutex
}

// New creates a new database connection
func New(path string) (*DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite supports only one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	logger := log.With().Str("component", "database").Logger()

	dbInstance := &DB{
		DB:     db,
		Path:   path,
		logger: &logger,
	}

	if err := dbInstance.initializeDB(); err != nil {
		db.Close()
		return nil, err
	}

	if err := dbInstance.optimizeDB(); err != nil {
		logger.Warn().Err(err).Msg("Failed to set some database optimization parameters")
	}

	return dbInstance, nil
}

// Initialize database schema
func (db *DB) initializeDB() error {
	db.logger.Info().Msg("Initializing database schema")

	schema := `
	-- Printers table
	CREATE TABLE IF NOT EXISTS printers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		hostname TEXT NOT NULL,
		ip_address TEXT NOT NULL UNIQUE,
		location TEXT,
		detected_model TEXT,
		serial_number TEXT,
		status TEXT NOT NULL DEFAULT 'online',
		has_color BOOLEAN NOT NULL DEFAULT FALSE,
		has_scanner BOOLEAN NOT NULL DEFAULT FALSE,
		has_fax BOOLEAN NOT NULL DEFAULT FALSE,
		toner_black INTEGER NOT NULL DEFAULT 0,
		toner_cyan INTEGER NOT NULL DEFAULT 0,
		toner_magenta INTEGER NOT NULL DEFAULT 0,
		toner_yellow INTEGER NOT NULL DEFAULT 0,
		first_seen TIMESTAMP NOT NULL,
		last_seen TIMESTAMP NOT NULL
	);

	-- Users table
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT,
		department TEXT,
		user_code TEXT NOT NULL,
		network_username TEXT NOT NULL,
		network_password_encrypted TEXT,
		func_copier BOOLEAN NOT NULL DEFAULT FALSE,
		func_printer BOOLEAN NOT NULL DEFAULT FALSE,
		func_scanner BOOLEAN NOT NULL DEFAULT FALSE,
		func_document_server BOOLEAN NOT NULL DEFAULT FALSE,
		func_fax BOOLEAN NOT NULL DEFAULT FALSE,
		func_browser BOOLEAN NOT NULL DEFAULT FALSE,
		smb_server TEXT,
		smb_port INTEGER NOT NULL DEFAULT 445,
		smb_path TEXT,
		created_at TIMESTAMP NOT NULL
	);

	-- Assignments table
	CREATE TABLE IF NOT EXISTS assignments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		printer_id INTEGER NOT NULL,
		provisioned_at TIMESTAMP NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
		FOREIGN KEY (printer_id) REFERENCES printers(id) ON DELETE CASCADE,
		UNIQUE(user_id, printer_id)
	);

	-- Scans table
	CREATE TABLE IF NOT EXISTS scans (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TIMESTAMP NOT NULL,
		target_network TEXT NOT NULL,
		duration REAL DEFAULT 0,
		addresses_scanned INTEGER DEFAULT 0,
		printers_found INTEGER DEFAULT 0,
		status TEXT NOT NULL,
		error_message TEXT
	);

	-- Create indexes
	CREATE INDEX IF NOT EXISTS idx_printers_ip ON printers(ip_address);
	CREATE INDEX IF NOT EXISTS idx_users_user_code ON users(user_code);
	CREATE INDEX IF NOT EXISTS idx_assignments_user_id ON assignments(user_id);
	CREATE INDEX IF NOT EXISTS idx_assignments_printer_id ON assignments(printer_id);
	CREATE INDEX IF NOT EXISTS idx_scans_timestamp ON scans(timestamp);
	`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return nil
}

// optimizeDB sets SQLite optimization parameters
func (db *DB) optimizeDB() error {
	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return err
	}

	if _, err := db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return err
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return err
	}

	// Set busy timeout to avoid "database is locked" errors
	if _, err := db.Exec("PRAGMA busy_timeout=10000"); err != nil {
		db.logger.Warn().Err(err).Msg("Failed to set busy_timeout PRAGMA")
	}

	return nil
}

// OptimizeDatabase runs VACUUM and ANALYZE to optimize storage
func (db *DB) OptimizeDatabase() error {
	db.Lock()
	defer db.Unlock()

	db.logger.Info().Msg("Optimizing database")

	if _, err := db.Exec("VACUUM"); err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}

	if _, err := db.Exec("ANALYZE"); err != nil {
		return fmt.Errorf("failed to analyze database: %w", err)
	}

	return nil
}

// GetDatabaseSize returns the size of the database file in bytes
func (db *DB) GetDatabaseSize() (int64, error) {
	if db.Path == ":memory:" {
		return 0, nil
	}
	info, err := os.Stat(db.Path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat database file: %w", err)
	}
	return info.Size(), nil
}
