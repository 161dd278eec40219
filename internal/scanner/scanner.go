// Package scanner implements printer discovery for the fleet manager. It
// probes every usable address in a subnet for printer-specific ports,
// reverse-resolves hostnames, classifies hosts with the fleet's heuristics,
// and records scan runs in the database.
package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Seiiyes/ricoh/internal/config"
	"github.com/Seiiyes/ricoh/internal/database"
	"github.com/Seiiyes/ricoh/internal/models"
	"github.com/Seiiyes/ricoh/internal/telemetry"
)

// ScanService represents the printer discovery service
type ScanService struct {
	config       *config.Config
	db           *database.DB
	enricher     telemetry.Enricher
	logger       zerolog.Logger
	scanLock     sync.Mutex
	isScanning   bool
	scanStats    *ScanStats
	scanSchedule *time.Ticker
	stopChan     chan struct{}

	// probe and resolve are swapped out by tests for deterministic networks.
	probe   probeFunc
	resolve resolveFunc
}

// ScanStats tracks statistics for the current/last scan
type ScanStats struct {
	ScanID    int64
	StartTime time.Time
	EndTime   time.Time
	Status    string
	Scanned   int
	Found     int
	Error     error
}

// New creates a new scan service
func New(cfg *config.Config, db *database.DB, enricher telemetry.Enricher) *ScanService {
	if enricher == nil {
		enricher = telemetry.Noop{}
	}
	return &ScanService{
		config:   cfg,
		db:       db,
		enricher: enricher,
		logger:   log.With().Str("component", "scanner").Logger(),
		scanStats: &ScanStats{
			Status: "idle",
		},
		stopChan: make(chan struct{}),
		probe:    probeTCP,
		resolve:  resolveHostname,
	}
}

// Start initializes the scan service and, when configured, the scheduler.
func (s *ScanService) Start() error {
	s.logger.Info().Msg("Starting scan service")

	if s.config.Scanner.EnableScheduler {
		s.StartScheduler()
	}

	return nil
}

// Stop gracefully stops the scan service
func (s *ScanService) Stop() error {
	s.logger.Info().Msg("Stopping scan service")

	if s.scanSchedule != nil {
		s.scanSchedule.Stop()
		close(s.stopChan)
	}

	// If a scan is in progress, let it finish
	s.scanLock.Lock()
	defer s.scanLock.Unlock()

	return nil
}

// StartScheduler initiates periodic scans of the configured subnet
func (s *ScanService) StartScheduler() {
	s.scanLock.Lock()
	defer s.scanLock.Unlock()

	frequency, err := s.config.GetScanFrequency()
	if err != nil {
		s.logger.Error().Err(err).Msg("Invalid scan frequency in config, using default 1h")
		frequency = 1 * time.Hour
	}

	s.logger.Info().Str("frequency", frequency.String()).Msg("Starting scan scheduler")

	if s.scanSchedule != nil {
		s.scanSchedule.Stop()
	}

	s.scanSchedule = time.NewTicker(frequency)

	go func() {
		for {
			select {
			case <-s.scanSchedule.C:
				s.logger.Info().Msg("Running scheduled scan")
				if _, _, _, err := s.RunScan(context.Background(), models.ScanParameters{}); err != nil {
					s.logger.Error().Err(err).Msg("Scheduled scan failed")
				}
			case <-s.stopChan:
				s.logger.Info().Msg("Scan scheduler stopped")
				return
			}
		}
	}()
}

// GetStatus returns the current scanner status
func (s *ScanService) GetStatus() ScanStats {
	s.scanLock.Lock()
	defer s.scanLock.Unlock()

	return *s.scanStats
}

// Scan probes every usable address in the CIDR range under a bounded
// concurrency fan-out and returns the discovered printers plus scan
// metadata. The range is validated before any network call is made.
func (s *ScanService) Scan(ctx context.Context, cidr string, concurrency int, timeout time.Duration) ([]models.DiscoveredDevice, models.ScanSummary, error) {
	hosts, err := expandRange(cidr)
	if err != nil {
		return nil, models.ScanSummary{}, err
	}

	if concurrency <= 0 {
		concurrency = s.config.Scanner.Concurrency
	}
	if timeout <= 0 {
		timeout = s.config.ProbeTimeout()
	}

	start := time.Now()
	s.logger.Info().
		Str("network", cidr).
		Int("hosts", len(hosts)).
		Int("concurrency", concurrency).
		Dur("probeTimeout", timeout).
		Msg("Starting network scan")

	var (
		mu      sync.Mutex
		devices []models.DiscoveredDevice
		wg      sync.WaitGroup
	)
	sem := make(chan struct{}, concurrency)

	for _, host := range hosts {
		wg.Add(1)
		go func(ip string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			if ctx.Err() != nil {
				return
			}

			probe := probeHost(ctx, ip, timeout, s.probe, s.resolve)
			device, ok := classify(probe)
			if !ok {
				return
			}

			s.enrich(ctx, &device)

			s.logger.Debug().
				Str("ip", device.IPAddress).
				Str("hostname", device.Hostname).
				Str("model", device.DetectedModel).
				Msg("Found printer")

			mu.Lock()
			devices = append(devices, device)
			mu.Unlock()
		}(host)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, models.ScanSummary{}, fmt.Errorf("scan aborted: %w", err)
	}

	elapsed := time.Since(start)
	summary := models.ScanSummary{
		TargetNetwork: cidr,
		TotalScanned:  len(hosts),
		TotalFound:    len(devices),
		DurationSecs:  elapsed.Seconds(),
		Timestamp:     time.Now(),
	}

	s.logger.Info().
		Str("network", cidr).
		Int("scanned", summary.TotalScanned).
		Int("found", summary.TotalFound).
		Dur("duration", elapsed).
		Msg("Scan completed")

	return devices, summary, nil
}

// enrich asks the telemetry enricher for additional device data. Enrichment
// failure never fails classification; the device keeps its defaults.
func (s *ScanService) enrich(ctx context.Context, device *models.DiscoveredDevice) {
	info, err := s.enricher.Collect(ctx, device.IPAddress)
	if err != nil {
		s.logger.Debug().Err(err).Str("ip", device.IPAddress).Msg("Telemetry enrichment unavailable")
		return
	}
	applyEnrichment(device, info)
}

// RunScan performs a recorded discovery scan. Only one scan runs at a time;
// the scan row is created before probing starts and finalized when the scan
// ends.
func (s *ScanService) RunScan(ctx context.Context, params models.ScanParameters) (int64, []models.DiscoveredDevice, models.ScanSummary, error) {
	s.scanLock.Lock()
	if s.isScanning {
		s.scanLock.Unlock()
		return 0, nil, models.ScanSummary{}, fmt.Errorf("a scan is already in progress")
	}
	s.isScanning = true
	s.scanStats = &ScanStats{
		StartTime: time.Now(),
		Status:    "running",
	}
	s.scanLock.Unlock()

	defer func() {
		s.scanLock.Lock()
		s.isScanning = false
		s.scanStats.EndTime = time.Now()
		s.scanLock.Unlock()
	}()

	cidr := params.TargetNetwork
	if cidr == "" {
		cidr = s.config.Scanner.TargetNetwork
	}
	timeout := time.Duration(params.ProbeTimeout * float64(time.Second))

	scanID, err := s.db.CreateScan(cidr)
	if err != nil {
		err = fmt.Errorf("failed to record scan in database: %w", err)
		s.updateScanError(err)
		return 0, nil, models.ScanSummary{}, err
	}

	s.scanLock.Lock()
	s.scanStats.ScanID = scanID
	s.scanLock.Unlock()

	devices, summary, err := s.Scan(ctx, cidr, params.Concurrency, timeout)
	if err != nil {
		s.updateScanError(err)
		if dbErr := s.db.UpdateScan(scanID, "error", 0, 0, 0, err.Error()); dbErr != nil {
			s.logger.Error().Err(dbErr).Msg("Failed to update scan record in database")
		}
		return scanID, nil, models.ScanSummary{}, err
	}

	if err := s.db.UpdateScan(scanID, "completed", summary.TotalScanned, summary.TotalFound, summary.DurationSecs, ""); err != nil {
		s.logger.Error().Err(err).Msg("Failed to update scan record in database")
	}

	s.scanLock.Lock()
	s.scanStats.Status = "completed"
	s.scanStats.Scanned = summary.TotalScanned
	s.scanStats.Found = summary.TotalFound
	s.scanLock.Unlock()

	return scanID, devices, summary, nil
}

// GetScan retrieves a scan by ID
func (s *ScanService) GetScan(scanID int64) (*models.Scan, error) {
	return s.db.GetScan(scanID)
}

// GetRecentScans retrieves recent scans
func (s *ScanService) GetRecentScans(limit int) ([]*models.Scan, error) {
	return s.db.GetRecentScans(limit)
}

// updateScanError updates the scan status with error information
func (s *ScanService) updateScanError(err error) {
	s.scanLock.Lock()
	defer s.scanLock.Unlock()

	s.scanStats.Status = "error"
	s.scanStats.Error = err
	s.logger.Error().Err(err).Msg("Scan error occurred")
}
