package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/Seiiyes/ricoh/internal/config"
	"github.com/Seiiyes/ricoh/internal/database"
	"github.com/Seiiyes/ricoh/internal/models"
	"github.com/Seiiyes/ricoh/internal/provision"
	"github.com/Seiiyes/ricoh/internal/scanner"
	"github.com/Seiiyes/ricoh/internal/secrets"
	"github.com/Seiiyes/ricoh/internal/webui"
)

// stubProtocol answers every provisioning call with a fixed outcome.
type stubProtocol struct {
	outcome webui.Outcome
}

func (s stubProtocol) ProvisionUser(ctx context.Context, addr string, target models.ProvisioningTarget) webui.Outcome {
	return s.outcome
}

type testEnv struct {
	db     *database.DB
	router *mux.Router
}

func setupAPI(t *testing.T, outcome webui.Outcome) *testEnv {
	t.Helper()

	db, err := database.New(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cipher, err := secrets.NewCipher("test-passphrase")
	if err != nil {
		t.Fatalf("failed to create cipher: %v", err)
	}

	cfg := &config.Config{}
	cfg.Scanner.TargetNetwork = "127.0.0.1/32"
	cfg.Scanner.Concurrency = 4
	cfg.Scanner.ProbeTimeout = 0.05

	scanSvc := scanner.New(cfg, db, nil)
	provSvc := provision.New(db, stubProtocol{outcome: outcome}, cipher, provision.RetryPolicy{MaxAttempts: 2, Delay: time.Millisecond})

	events := NewEventHub()
	router := mux.NewRouter()
	NewDiscoveryHandler(scanSvc, db, events).RegisterRoutes(router)
	NewPrinterHandler(db).RegisterRoutes(router)
	NewUserHandler(db, cipher).RegisterRoutes(router)
	NewProvisionHandler(provSvc, db, events).RegisterRoutes(router)
	NewStatusHandler(db).RegisterRoutes(router)
	events.RegisterRoutes(router)

	return &testEnv{db: db, router: router}
}

func (e *testEnv) request(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestCreateAndGetUser(t *testing.T) {
	env := setupAPI(t, webui.Outcome{Status: webui.StatusSuccess})

	rec := env.request(t, "POST", "/api/users", createUserRequest{
		Name:            "jgarcia",
		Email:           "jgarcia@example.com",
		UserCode:        "4321",
		NetworkUsername: "corp\\jgarcia",
		NetworkPassword: "s3cret",
		Functions:       models.UserFunctions{Printer: true, Scanner: true},
		Folder:          models.SMBFolder{Server: "fs", Port: 445, Path: "\\\\fs\\scans"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var created models.User
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if created.ID == 0 || created.Name != "jgarcia" {
		t.Errorf("unexpected created user: %+v", created)
	}
	if strings.Contains(rec.Body.String(), "s3cret") {
		t.Error("response must not leak the plaintext password")
	}

	// The stored password is encrypted, not plaintext
	stored, err := env.db.GetUser(created.ID)
	if err != nil {
		t.Fatalf("failed to load user: %v", err)
	}
	if stored.EncryptedPassword == "" || stored.EncryptedPassword == "s3cret" {
		t.Error("expected encrypted password in storage")
	}

	rec = env.request(t, "GET", fmt.Sprintf("/api/users/%d", created.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = env.request(t, "GET", "/api/users/9999", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown user, got %d", rec.Code)
	}
}

func TestCreateUserValidation(t *testing.T) {
	env := setupAPI(t, webui.Outcome{Status: webui.StatusSuccess})

	rec := env.request(t, "POST", "/api/users", createUserRequest{Email: "x@example.com"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing name, got %d", rec.Code)
	}
}

func TestRegisterAndListPrinters(t *testing.T) {
	env := setupAPI(t, webui.Outcome{Status: webui.StatusSuccess})

	devices := []models.DiscoveredDevice{
		{IPAddress: "192.168.1.10", Hostname: "ricoh-mp", Status: "online", DetectedModel: "MP C3004"},
		{IPAddress: "192.168.1.11", Hostname: "ricoh-sp", Status: "online", DetectedModel: "SP 377"},
	}

	rec := env.request(t, "POST", "/api/discovery/register", devices)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.request(t, "GET", "/api/printers", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var printers []models.Printer
	if err := json.Unmarshal(rec.Body.Bytes(), &printers); err != nil {
		t.Fatalf("failed to decode printers: %v", err)
	}
	if len(printers) != 2 {
		t.Errorf("expected 2 printers, got %d", len(printers))
	}

	rec = env.request(t, "DELETE", fmt.Sprintf("/api/printers/%d", printers[0].ID), nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}

	rec = env.request(t, "POST", "/api/discovery/register", []models.DiscoveredDevice{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty device list, got %d", rec.Code)
	}
}

func TestRunScanEndpoint(t *testing.T) {
	env := setupAPI(t, webui.Outcome{Status: webui.StatusSuccess})

	rec := env.request(t, "POST", "/api/discovery/scan", models.ScanParameters{TargetNetwork: "127.0.0.1/32"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp scanResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode scan response: %v", err)
	}
	if resp.ScanID == 0 || resp.Summary.TotalScanned != 1 {
		t.Errorf("unexpected scan response: %+v", resp)
	}

	rec = env.request(t, "GET", fmt.Sprintf("/api/discovery/scans/%d", resp.ScanID), nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for scan record, got %d", rec.Code)
	}

	rec = env.request(t, "GET", "/api/discovery/scans", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for scan list, got %d", rec.Code)
	}
}

func TestRunScanRejectsLargeRange(t *testing.T) {
	env := setupAPI(t, webui.Outcome{Status: webui.StatusSuccess})

	rec := env.request(t, "POST", "/api/discovery/scan", models.ScanParameters{TargetNetwork: "10.0.0.0/16"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for oversized range, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestProvisionEndpoint(t *testing.T) {
	env := setupAPI(t, webui.Outcome{Status: webui.StatusSuccess})

	userID, err := env.db.CreateUser(&models.User{Name: "jgarcia", UserCode: "4321"})
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	printerID, err := env.db.SavePrinter(models.DiscoveredDevice{IPAddress: "192.168.1.20", Status: "online"})
	if err != nil {
		t.Fatalf("failed to save printer: %v", err)
	}

	rec := env.request(t, "POST", "/api/provisioning/provision", provisionRequest{
		UserID:     userID,
		PrinterIDs: []int64{printerID},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result models.BatchProvisionResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	if !result.Success || result.Provisioned != 1 {
		t.Errorf("unexpected batch result: %+v", result)
	}

	rec = env.request(t, "GET", fmt.Sprintf("/api/provisioning/user/%d", userID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var printers []models.Printer
	if err := json.Unmarshal(rec.Body.Bytes(), &printers); err != nil {
		t.Fatalf("failed to decode printers: %v", err)
	}
	if len(printers) != 1 {
		t.Errorf("expected 1 assigned printer, got %d", len(printers))
	}

	rec = env.request(t, "DELETE", "/api/provisioning/assignment", assignmentRequest{UserID: userID, PrinterID: printerID})
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	rec = env.request(t, "DELETE", "/api/provisioning/assignment", assignmentRequest{UserID: userID, PrinterID: printerID})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for missing assignment, got %d", rec.Code)
	}
}

func TestProvisionEndpointValidation(t *testing.T) {
	env := setupAPI(t, webui.Outcome{Status: webui.StatusSuccess})

	rec := env.request(t, "POST", "/api/provisioning/provision", provisionRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty request, got %d", rec.Code)
	}

	rec = env.request(t, "POST", "/api/provisioning/provision", provisionRequest{UserID: 9999, PrinterIDs: []int64{1}})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown user, got %d", rec.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	env := setupAPI(t, webui.Outcome{Status: webui.StatusSuccess})

	if _, err := env.db.SavePrinter(models.DiscoveredDevice{IPAddress: "192.168.1.40", Status: "online"}); err != nil {
		t.Fatalf("failed to save printer: %v", err)
	}

	rec := env.request(t, "GET", "/api/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var status models.SystemStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}
	if status.Status != "ok" || status.PrinterCount != 1 || status.Version == "" {
		t.Errorf("unexpected status: %+v", status)
	}
}
