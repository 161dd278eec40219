package scanner

import (
	"testing"

	"github.com/Seiiyes/ricoh/internal/telemetry"
)

// TestClassifyHostnameKeywords tests the hostname-based printer verdict
func TestClassifyHostnameKeywords(t *testing.T) {
	tests := []struct {
		name       string
		probe      ProbeResult
		wantFound  bool
		wantModel  string
		wantColor  bool
		wantScan   bool
		wantHostname string
	}{
		{
			name:      "ricoh mp hostname",
			probe:     ProbeResult{IP: "192.168.1.10", Hostname: "RICOH-MP-C3004.office.lan", HTTP: true},
			wantFound: true,
			wantModel: "RICOH MP Series",
			wantColor: true,
			wantScan:  true,
			wantHostname: "RICOH-MP-C3004.office.lan",
		},
		{
			name:      "ricoh sp hostname is mono",
			probe:     ProbeResult{IP: "192.168.1.11", Hostname: "ricoh-sp330", HTTP: true},
			wantFound: true,
			wantModel: "RICOH SP Series",
			wantColor: false,
			wantScan:  false,
			wantHostname: "ricoh-sp330",
		},
		{
			name:      "plain ricoh hostname",
			probe:     ProbeResult{IP: "192.168.1.12", Hostname: "ricoh-device"},
			wantFound: true,
			wantModel: "RICOH Printer",
			wantColor: true,
			wantScan:  true,
			wantHostname: "ricoh-device",
		},
		{
			name:      "generic printer keyword scanner follows web port",
			probe:     ProbeResult{IP: "192.168.1.13", Hostname: "laserjet-4200", HTTPS: true},
			wantFound: true,
			wantModel: "Network Printer",
			wantColor: false,
			wantScan:  true,
			wantHostname: "laserjet-4200",
		},
		{
			name:      "generic printer keyword without web ports",
			probe:     ProbeResult{IP: "192.168.1.14", Hostname: "copier-firstfloor"},
			wantFound: true,
			wantModel: "Network Printer",
			wantColor: false,
			wantScan:  false,
			wantHostname: "copier-firstfloor",
		},
		{
			name:      "no keywords no ports",
			probe:     ProbeResult{IP: "192.168.1.15", Hostname: "fileserver01", HTTP: true, HTTPS: true},
			wantFound: false,
		},
		{
			name:      "unresolved host with nothing open",
			probe:     ProbeResult{IP: "192.168.1.16"},
			wantFound: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, found := classify(tt.probe)
			if found != tt.wantFound {
				t.Fatalf("classify() found = %v, want %v", found, tt.wantFound)
			}
			if !found {
				return
			}
			if dev.DetectedModel != tt.wantModel {
				t.Errorf("model = %q, want %q", dev.DetectedModel, tt.wantModel)
			}
			if dev.HasColor != tt.wantColor {
				t.Errorf("hasColor = %v, want %v", dev.HasColor, tt.wantColor)
			}
			if dev.HasScanner != tt.wantScan {
				t.Errorf("hasScanner = %v, want %v", dev.HasScanner, tt.wantScan)
			}
			if dev.Hostname != tt.wantHostname {
				t.Errorf("hostname = %q, want %q", dev.Hostname, tt.wantHostname)
			}
		})
	}
}

// TestClassifyRawPrintPort tests that an open port 9100 alone marks a printer
func TestClassifyRawPrintPort(t *testing.T) {
	dev, found := classify(ProbeResult{IP: "192.168.1.1", RawPrint: true})
	if !found {
		t.Fatal("Expected raw-print port to mark host as printer")
	}
	if dev.Hostname != "printer-192-168-1-1" {
		t.Errorf("Expected synthesized hostname printer-192-168-1-1, got %q", dev.Hostname)
	}
	if dev.DetectedModel != "Network Printer (Port 9100)" {
		t.Errorf("Unexpected model %q", dev.DetectedModel)
	}
	if dev.HasColor {
		t.Error("Expected hasColor=false for bare raw-print device")
	}
	if dev.HasScanner {
		t.Error("Expected hasScanner=false with no web ports open")
	}

	// With a web port the scanner capability is inferred.
	dev, _ = classify(ProbeResult{IP: "192.168.1.2", RawPrint: true, HTTP: true})
	if !dev.HasScanner {
		t.Error("Expected hasScanner=true when HTTP is also reachable")
	}
}

// TestClassifyRawPrintOverridesHostname tests that port 9100 wins over an
// inconclusive hostname
func TestClassifyRawPrintOverridesHostname(t *testing.T) {
	dev, found := classify(ProbeResult{IP: "192.168.1.3", Hostname: "unlabeled-device", RawPrint: true})
	if !found {
		t.Fatal("Expected printer verdict from raw-print port despite hostname")
	}
	if dev.Hostname != "unlabeled-device" {
		t.Errorf("Expected real hostname preserved, got %q", dev.Hostname)
	}
}

// TestClassifyDefaults tests the zeroed consumables and offline fields
func TestClassifyDefaults(t *testing.T) {
	dev, _ := classify(ProbeResult{IP: "192.168.1.4", RawPrint: true})
	if dev.TonerBlack != 0 || dev.TonerCyan != 0 || dev.TonerMagenta != 0 || dev.TonerYellow != 0 {
		t.Error("Expected toner levels to default to zero before enrichment")
	}
	if dev.Status != "online" {
		t.Errorf("Expected status online, got %q", dev.Status)
	}
	if dev.HasFax {
		t.Error("Expected hasFax=false by default")
	}
}

func intPtr(v int) *int          { return &v }
func strPtr(s string) *string    { return &s }

// TestApplyEnrichmentOverwrites tests that reported fields replace defaults
func TestApplyEnrichmentOverwrites(t *testing.T) {
	dev, _ := classify(ProbeResult{IP: "192.168.1.5", RawPrint: true})

	applyEnrichment(&dev, &telemetry.Info{
		Model:        strPtr("RICOH IM C300"),
		SerialNumber: strPtr("3100R982204"),
		Location:     strPtr("Accounting"),
		TonerBlack:   intPtr(64),
	})

	if dev.DetectedModel != "RICOH IM C300" {
		t.Errorf("Expected enriched model, got %q", dev.DetectedModel)
	}
	if dev.SerialNumber != "3100R982204" {
		t.Errorf("Expected enriched serial, got %q", dev.SerialNumber)
	}
	if dev.Location != "Accounting" {
		t.Errorf("Expected enriched location, got %q", dev.Location)
	}
	if dev.TonerBlack != 64 {
		t.Errorf("Expected toner black 64, got %d", dev.TonerBlack)
	}
}

// TestApplyEnrichmentSparse tests that unset fields keep classifier values
func TestApplyEnrichmentSparse(t *testing.T) {
	dev, _ := classify(ProbeResult{IP: "192.168.1.6", Hostname: "ricoh-mp"})
	model := dev.DetectedModel

	applyEnrichment(&dev, &telemetry.Info{})

	if dev.DetectedModel != model {
		t.Errorf("Empty enrichment overwrote model: %q", dev.DetectedModel)
	}
	if !dev.HasColor {
		t.Error("Empty enrichment downgraded color verdict")
	}
}

// TestApplyEnrichmentColorMonotonic tests that chromatic toner upgrades the
// color verdict and that enrichment never downgrades it
func TestApplyEnrichmentColorMonotonic(t *testing.T) {
	// Mono verdict upgraded by a chromatic toner level.
	dev, _ := classify(ProbeResult{IP: "192.168.1.7", Hostname: "ricoh-sp330"})
	if dev.HasColor {
		t.Fatal("SP series should start mono")
	}
	applyEnrichment(&dev, &telemetry.Info{TonerMagenta: intPtr(12)})
	if !dev.HasColor {
		t.Error("Expected chromatic toner level to upgrade hasColor")
	}

	// Color verdict survives enrichment reporting empty toners.
	dev2, _ := classify(ProbeResult{IP: "192.168.1.8", Hostname: "ricoh-mp"})
	applyEnrichment(&dev2, &telemetry.Info{TonerCyan: intPtr(0), TonerMagenta: intPtr(0), TonerYellow: intPtr(0)})
	if !dev2.HasColor {
		t.Error("Enrichment must never downgrade hasColor")
	}
}
