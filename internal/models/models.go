// Package models defines the data structures shared across the Ricoh fleet
// manager: discovered devices, printer and user records, provisioning
// requests and their aggregated results.
package models

import "time"

// DiscoveredDevice is the classifier's verdict for a single scanned address.
// It is immutable once produced; the registration layer consumes it as-is.
type DiscoveredDevice struct {
	IPAddress     string `json:"ipAddress"`
	Hostname      string `json:"hostname"`
	Status        string `json:"status"`
	DetectedModel string `json:"detectedModel"`
	SerialNumber  string `json:"serialNumber,omitempty"`
	Location      string `json:"location,omitempty"`
	HasColor      bool   `json:"hasColor"`
	HasScanner    bool   `json:"hasScanner"`
	HasFax        bool   `json:"hasFax"`
	TonerBlack    int    `json:"tonerBlack"`
	TonerCyan     int    `json:"tonerCyan"`
	TonerMagenta  int    `json:"tonerMagenta"`
	TonerYellow   int    `json:"tonerYellow"`
}

// ScanSummary carries scan metadata back to the caller alongside the devices.
type ScanSummary struct {
	TargetNetwork string    `json:"targetNetwork"`
	TotalScanned  int       `json:"totalScanned"`
	TotalFound    int       `json:"totalFound"`
	DurationSecs  float64   `json:"scanDurationSeconds"`
	Timestamp     time.Time `json:"timestamp"`
}

// Printer is a registered fleet device.
type Printer struct {
	ID            int64     `json:"id"`
	Hostname      string    `json:"hostname"`
	IPAddress     string    `json:"ipAddress"`
	Location      string    `json:"location,omitempty"`
	DetectedModel string    `json:"detectedModel"`
	SerialNumber  string    `json:"serialNumber,omitempty"`
	Status        string    `json:"status"`
	HasColor      bool      `json:"hasColor"`
	HasScanner    bool      `json:"hasScanner"`
	HasFax        bool      `json:"hasFax"`
	TonerBlack    int       `json:"tonerBlack"`
	TonerCyan     int       `json:"tonerCyan"`
	TonerMagenta  int       `json:"tonerMagenta"`
	TonerYellow   int       `json:"tonerYellow"`
	FirstSeen     time.Time `json:"firstSeen"`
	LastSeen      time.Time `json:"lastSeen"`
}

// UserFunctions is the set of device functions a user may use.
type UserFunctions struct {
	Copier         bool `json:"copier"`
	Printer        bool `json:"printer"`
	Scanner        bool `json:"scanner"`
	DocumentServer bool `json:"documentServer"`
	Fax            bool `json:"fax"`
	Browser        bool `json:"browser"`
}

// SMBFolder describes the user's network scan folder.
type SMBFolder struct {
	Server string `json:"server"`
	Port   int    `json:"port"`
	Path   string `json:"path"`
}

// User is a managed account to be pushed onto printers. The network folder
// password is stored encrypted and only decrypted while building a
// provisioning payload.
type User struct {
	ID                int64         `json:"id"`
	Name              string        `json:"name"`
	Email             string        `json:"email,omitempty"`
	Department        string        `json:"department,omitempty"`
	UserCode          string        `json:"userCode"`
	NetworkUsername   string        `json:"networkUsername"`
	EncryptedPassword string        `json:"-"`
	Functions         UserFunctions `json:"functions"`
	Folder            SMBFolder     `json:"folder"`
	CreatedAt         time.Time     `json:"createdAt"`
}

// Assignment records that a user has been provisioned onto a printer.
type Assignment struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"userId"`
	PrinterID     int64     `json:"printerId"`
	ProvisionedAt time.Time `json:"provisionedAt"`
}

// ProvisioningTarget is the decrypted per-attempt payload pushed to one
// device. The plaintext password must not be retained past the single
// submission it is used in.
type ProvisioningTarget struct {
	Name            string
	UserCode        string
	NetworkUsername string
	NetworkPassword string
	Functions       UserFunctions
	Folder          SMBFolder
}

// BatchProvisionResult aggregates provisioning one user across a printer
// list. Success means at least one device succeeded; per-device failures are
// reported in Errors.
type BatchProvisionResult struct {
	BatchID       string    `json:"batchId"`
	Success       bool      `json:"success"`
	UserID        int64     `json:"userId"`
	UserName      string    `json:"userName"`
	Provisioned   int       `json:"printersProvisioned"`
	PrinterIDs    []int64   `json:"printerIds"`
	ProvisionedAt time.Time `json:"provisionedAt"`
	Message       string    `json:"message"`
	Errors        []string  `json:"errors,omitempty"`
}

// Scan is a recorded discovery run.
type Scan struct {
	ID            int64     `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	TargetNetwork string    `json:"targetNetwork"`
	Duration      float64   `json:"durationSeconds"`
	Scanned       int       `json:"addressesScanned"`
	Found         int       `json:"printersFound"`
	Status        string    `json:"status"` // running, completed, error
	ErrorMessage  string    `json:"errorMessage,omitempty"`
}

// ScanParameters are the caller-supplied options for a manual scan.
type ScanParameters struct {
	TargetNetwork string  `json:"targetNetwork,omitempty"`
	Concurrency   int     `json:"concurrency,omitempty"`
	ProbeTimeout  float64 `json:"probeTimeoutSeconds,omitempty"`
}

// SystemStatus is the /api/status payload.
type SystemStatus struct {
	Status       string    `json:"status"`
	LastScan     time.Time `json:"lastScan"`
	PrinterCount int       `json:"printerCount"`
	UserCount    int       `json:"userCount"`
	DatabaseSize int64     `json:"databaseSize"`
	Version      string    `json:"version"`
}
