package scanner

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Seiiyes/ricoh/internal/config"
	"github.com/Seiiyes/ricoh/internal/database"
	"github.com/Seiiyes/ricoh/internal/models"
)

func testService(t *testing.T) *ScanService {
	t.Helper()
	db, err := database.New(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{}
	cfg.Scanner.TargetNetwork = "192.168.1.0/30"
	cfg.Scanner.Concurrency = 4
	cfg.Scanner.ProbeTimeout = 0.05

	return New(cfg, db, nil)
}

func TestScanFindsRawPrintDevice(t *testing.T) {
	s := testService(t)

	// .1 answers on the raw print port only, .2 is silent.
	s.probe = func(ip string, port int, timeout time.Duration) bool {
		return ip == "192.168.1.1" && port == portRawPrint
	}
	s.resolve = func(ctx context.Context, ip string) string { return "" }

	devices, summary, err := s.Scan(context.Background(), "192.168.1.0/30", 2, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	if summary.TotalScanned != 2 {
		t.Errorf("expected 2 addresses scanned, got %d", summary.TotalScanned)
	}
	if len(devices) != 1 {
		t.Fatalf("expected 1 device, got %d", len(devices))
	}

	dev := devices[0]
	if dev.IPAddress != "192.168.1.1" {
		t.Errorf("expected device at 192.168.1.1, got %s", dev.IPAddress)
	}
	if dev.Hostname != "printer-192-168-1-1" {
		t.Errorf("expected synthesized hostname, got %q", dev.Hostname)
	}
	if dev.HasColor {
		t.Error("raw print device without a hostname should not be marked color")
	}
	if summary.TotalFound != 1 {
		t.Errorf("expected summary found 1, got %d", summary.TotalFound)
	}
}

func TestScanRejectsLargeRangeBeforeProbing(t *testing.T) {
	s := testService(t)

	var probes int64
	s.probe = func(ip string, port int, timeout time.Duration) bool {
		atomic.AddInt64(&probes, 1)
		return false
	}
	s.resolve = func(ctx context.Context, ip string) string { return "" }

	_, _, err := s.Scan(context.Background(), "10.0.0.0/16", 10, 50*time.Millisecond)
	if !errors.Is(err, ErrRangeTooLarge) {
		t.Fatalf("expected ErrRangeTooLarge, got %v", err)
	}
	if n := atomic.LoadInt64(&probes); n != 0 {
		t.Errorf("expected no probes for rejected range, got %d", n)
	}
}

func TestScanCancelledContext(t *testing.T) {
	s := testService(t)

	s.probe = func(ip string, port int, timeout time.Duration) bool { return true }
	s.resolve = func(ctx context.Context, ip string) string { return "ricoh-mp" }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := s.Scan(ctx, "192.168.1.0/30", 2, 50*time.Millisecond)
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRunScanRecordsInDatabase(t *testing.T) {
	s := testService(t)

	s.probe = func(ip string, port int, timeout time.Duration) bool {
		return ip == "192.168.1.1" && port == portHTTP
	}
	s.resolve = func(ctx context.Context, ip string) string { return "ricoh-office" }

	scanID, devices, summary, err := s.RunScan(context.Background(), models.ScanParameters{})
	if err != nil {
		t.Fatalf("RunScan failed: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("expected 1 device, got %d", len(devices))
	}

	rec, err := s.GetScan(scanID)
	if err != nil {
		t.Fatalf("failed to load scan record: %v", err)
	}
	if rec.Status != "completed" {
		t.Errorf("expected completed scan, got %q", rec.Status)
	}
	if rec.Scanned != summary.TotalScanned || rec.Found != 1 {
		t.Errorf("scan record does not match summary: %+v vs %+v", rec, summary)
	}
	if rec.TargetNetwork != "192.168.1.0/30" {
		t.Errorf("expected configured target network, got %q", rec.TargetNetwork)
	}

	stats := s.GetStatus()
	if stats.Status != "completed" || stats.Found != 1 {
		t.Errorf("unexpected scan stats: %+v", stats)
	}
}

func TestRunScanRejectsConcurrent(t *testing.T) {
	s := testService(t)

	started := make(chan struct{})
	release := make(chan struct{})
	var once int32

	s.probe = func(ip string, port int, timeout time.Duration) bool {
		if atomic.CompareAndSwapInt32(&once, 0, 1) {
			close(started)
			<-release
		}
		return false
	}
	s.resolve = func(ctx context.Context, ip string) string { return "" }

	done := make(chan error, 1)
	go func() {
		_, _, _, err := s.RunScan(context.Background(), models.ScanParameters{})
		done <- err
	}()

	<-started
	if _, _, _, err := s.RunScan(context.Background(), models.ScanParameters{}); err == nil {
		t.Error("expected second concurrent scan to be rejected")
	}
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("first scan failed: %v", err)
	}
}
