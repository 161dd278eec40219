package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Seiiyes/ricoh/internal/models"
)

// CreateUser inserts a user record and returns its ID. The network folder
// password must already be encrypted by the caller.
func (db *DB) CreateUser(u *models.User) (int64, error) {
	db.Lock()
	defer db.Unlock()

	result, err := db.Exec(`
		INSERT INTO users (
			name, email, department, user_code, network_username, network_password_encrypted,
			func_copier, func_printer, func_scanner, func_document_server, func_fax, func_browser,
			smb_server, smb_port, smb_path, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Name, u.Email, u.Department, u.UserCode, u.NetworkUsername, u.EncryptedPassword,
		u.Functions.Copier, u.Functions.Printer, u.Functions.Scanner,
		u.Functions.DocumentServer, u.Functions.Fax, u.Functions.Browser,
		u.Folder.Server, u.Folder.Port, u.Folder.Path, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to insert user: %w", err)
	}

	return result.LastInsertId()
}

const userColumns = `id, name, COALESCE(email, ''), COALESCE(department, ''), user_code,
	network_username, COALESCE(network_password_encrypted, ''),
	func_copier, func_printer, func_scanner, func_document_server, func_fax, func_browser,
	COALESCE(smb_server, ''), smb_port, COALESCE(smb_path, ''), created_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.Department, &u.UserCode,
		&u.NetworkUsername, &u.EncryptedPassword,
		&u.Functions.Copier, &u.Functions.Printer, &u.Functions.Scanner,
		&u.Functions.DocumentServer, &u.Functions.Fax, &u.Functions.Browser,
		&u.Folder.Server, &u.Folder.Port, &u.Folder.Path, &u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUser retrieves a user by ID
func (db *DB) GetUser(id int64) (*models.User, error) {
	row := db.QueryRow("SELECT "+userColumns+" FROM users WHERE id = ?", id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user with ID %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// ListUsers retrieves all users ordered by name
func (db *DB) ListUsers() ([]*models.User, error) {
	rows, err := db.Query("SELECT " + userColumns + " FROM users ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// DeleteUser removes a user and their assignments
func (db *DB) DeleteUser(id int64) error {
	db.Lock()
	defer db.Unlock()

	result, err := db.Exec("DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("user with ID %d not found", id)
	}
	return nil
}

// CountUsers returns the number of managed users
func (db *DB) CountUsers() (int, error) {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// CreateAssignment records that a user was provisioned onto a printer.
// Re-provisioning an existing pair refreshes the timestamp instead of
// failing.
func (db *DB) CreateAssignment(userID, printerID int64) error {
	db.Lock()
	defer db.Unlock()

	_, err := db.Exec(`
		INSERT INTO assignments (user_id, printer_id, provisioned_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, printer_id) DO UPDATE SET provisioned_at = excluded.provisioned_at`,
		userID, printerID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to create assignment: %w", err)
	}
	return nil
}

// DeleteAssignment removes a user-printer assignment, reporting whether one
// existed.
func (db *DB) DeleteAssignment(userID, printerID int64) (bool, error) {
	db.Lock()
	defer db.Unlock()

	result, err := db.Exec("DELETE FROM assignments WHERE user_id = ? AND printer_id = ?", userID, printerID)
	if err != nil {
		return false, fmt.Errorf("failed to delete assignment: %w", err)
	}

	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

// GetUserPrinters retrieves all printers a user is provisioned onto
func (db *DB) GetUserPrinters(userID int64) ([]*models.Printer, error) {
	rows, err := db.Query(`
		SELECT `+printerColumns+` FROM printers
		WHERE id IN (SELECT printer_id FROM assignments WHERE user_id = ?)
		ORDER BY ip_address`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user printers: %w", err)
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

// GetPrinterUsers retrieves all users provisioned onto a printer
func (db *DB) GetPrinterUsers(printerID int64) ([]*models.User, error) {
	rows, err := db.Query(`
		SELECT `+userColumns+` FROM users
		WHERE id IN (SELECT user_id FROM assignments WHERE printer_id = ?)
		ORDER BY name`, printerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get printer users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
