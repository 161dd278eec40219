package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Seiiyes/ricoh/internal/models"
)

// SavePrinter inserts a discovered device as a printer or, when the IP
// address is already registered, refreshes the existing row and its
// last-seen timestamp. Returns the printer ID.
func (db *DB) SavePrinter(p models.DiscoveredDevice) (int64, error) {
	db.Lock()
	defer db.Unlock()

	now := time.Now()

	var existingID int64
	err := db.QueryRow("SELECT id FROM printers WHERE ip_address = ?", p.IPAddress).Scan(&existingID)
	switch {
	case err == sql.ErrNoRows:
		result, err := db.Exec(`
			INSERT INTO printers (
				hostname, ip_address, location, detected_model, serial_number, status,
				has_color, has_scanner, has_fax,
				toner_black, toner_cyan, toner_magenta, toner_yellow,
				first_seen, last_seen
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.Hostname, p.IPAddress, p.Location, p.DetectedModel, p.SerialNumber, p.Status,
			p.HasColor, p.HasScanner, p.HasFax,
			p.TonerBlack, p.TonerCyan, p.TonerMagenta, p.TonerYellow,
			now, now)
		if err != nil {
			return 0, fmt.Errorf("failed to insert printer: %w", err)
		}
		return result.LastInsertId()
	case err != nil:
		return 0, fmt.Errorf("failed to look up printer: %w", err)
	}

	_, err = db.Exec(`
		UPDATE printers SET
			hostname = ?, location = ?, detected_model = ?, serial_number = ?, status = ?,
			has_color = ?, has_scanner = ?, has_fax = ?,
			toner_black = ?, toner_cyan = ?, toner_magenta = ?, toner_yellow = ?,
			last_seen = ?
		WHERE id = ?`,
		p.Hostname, p.Location, p.DetectedModel, p.SerialNumber, p.Status,
		p.HasColor, p.HasScanner, p.HasFax,
		p.TonerBlack, p.TonerCyan, p.TonerMagenta, p.TonerYellow,
		now, existingID)
	if err != nil {
		return 0, fmt.Errorf("failed to update printer: %w", err)
	}

	return existingID, nil
}

const printerColumns = `id, hostname, ip_address, COALESCE(location, ''), COALESCE(detected_model, ''),
	COALESCE(serial_number, ''), status, has_color, has_scanner, has_fax,
	toner_black, toner_cyan, toner_magenta, toner_yellow, first_seen, last_seen`

func scanPrinter(row interface{ Scan(...interface{}) error }) (*models.Printer, error) {
	var p models.Printer
	err := row.Scan(
		&p.ID, &p.Hostname, &p.IPAddress, &p.Location, &p.DetectedModel,
		&p.SerialNumber, &p.Status, &p.HasColor, &p.HasScanner, &p.HasFax,
		&p.TonerBlack, &p.TonerCyan, &p.TonerMagenta, &p.TonerYellow,
		&p.FirstSeen, &p.LastSeen,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPrinter retrieves a printer by ID
func (db *DB) GetPrinter(id int64) (*models.Printer, error) {
	row := db.QueryRow("SELECT "+printerColumns+" FROM printers WHERE id = ?", id)
	p, err := scanPrinter(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("printer with ID %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get printer: %w", err)
	}
	return p, nil
}

// GetPrinterByIP retrieves a printer by IP address, returning nil when the
// address is not registered.
func (db *DB) GetPrinterByIP(ip string) (*models.Printer, error) {
	row := db.QueryRow("SELECT "+printerColumns+" FROM printers WHERE ip_address = ?", ip)
	p, err := scanPrinter(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get printer by IP: %w", err)
	}
	return p, nil
}

// ListPrinters retrieves all registered printers ordered by IP address
func (db *DB) ListPrinters() ([]*models.Printer, error) {
	rows, err := db.Query("SELECT " + printerColumns + " FROM printers ORDER BY ip_address")
	if err != nil {
		return nil, fmt.Errorf("failed to list printers: %w", err)
	}
	defer rows.Close()

	var printers []*models.Printer
	for rows.Next() {
		p, err := scanPrinter(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan printer row: %w", err)
		}
		printers = append(printers, p)
	}
	return printers, rows.Err()
}

// DeletePrinter removes a printer and its assignments
func (db *DB) DeletePrinter(id int64) error {
	db.Lock()
	defer db.Unlock()

	result, err := db.Exec("DELETE FROM printers WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete printer: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("printer with ID %d not found", id)
	}
	return nil
}

// CountPrinters returns the number of registered printers
func (db *DB) CountPrinters() (int, error) {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM printers").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count printers: %w", err)
	}
	return count, nil
}
