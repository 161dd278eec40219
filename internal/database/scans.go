package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Seiiyes/ricoh/internal/models"
)

// CreateScan records the start of a discovery scan and returns its ID
func (db *DB) CreateScan(targetNetwork string) (int64, error) {
	db.Lock()
	defer db.Unlock()

	result, err := db.Exec(`
		INSERT INTO scans (timestamp, target_network, status)
		VALUES (?, ?, 'running')`,
		time.Now(), targetNetwork)
	if err != nil {
		return 0, fmt.Errorf("failed to insert scan: %w", err)
	}

	return result.LastInsertId()
}

// UpdateScan finalizes a scan record with its outcome
func (db *DB) UpdateScan(id int64, status string, scanned, found int, durationSecs float64, errorMessage string) error {
	db.Lock()
	defer db.Unlock()

	_, err := db.Exec(`
		UPDATE scans SET
			status = ?, addresses_scanned = ?, printers_found = ?, duration = ?, error_message = ?
		WHERE id = ?`,
		status, scanned, found, durationSecs, errorMessage, id)
	if err != nil {
		return fmt.Errorf("failed to update scan: %w", err)
	}
	return nil
}

const scanColumns = `id, timestamp, target_network, duration, addresses_scanned, printers_found, status, COALESCE(error_message, '')`

func scanScanRow(row interface{ Scan(...interface{}) error }) (*models.Scan, error) {
	var s models.Scan
	err := row.Scan(&s.ID, &s.Timestamp, &s.TargetNetwork, &s.Duration, &s.Scanned, &s.Found, &s.Status, &s.ErrorMessage)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetScan retrieves a scan by ID
func (db *DB) GetScan(id int64) (*models.Scan, error) {
	row := db.QueryRow("SELECT "+scanColumns+" FROM scans WHERE id = ?", id)
	s, err := scanScanRow(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("scan with ID %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan: %w", err)
	}
	return s, nil
}

// GetRecentScans retrieves the most recent scans, newest first
func (db *DB) GetRecentScans(limit int) ([]*models.Scan, error) {
	rows, err := db.Query("SELECT "+scanColumns+" FROM scans ORDER BY timestamp DESC, id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	defer rows.Close()

	var scans []*models.Scan
	for rows.Next() {
		s, err := scanScanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		scans = append(scans, s)
	}
	return scans, rows.Err()
}

// GetLastScanTime returns the timestamp of the most recent completed scan
func (db *DB) GetLastScanTime() (time.Time, error) {
	var ts time.Time
	err := db.QueryRow("SELECT timestamp FROM scans WHERE status = 'completed' ORDER BY timestamp DESC LIMIT 1").Scan(&ts)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last scan time: %w", err)
	}
	return ts, nil
}
