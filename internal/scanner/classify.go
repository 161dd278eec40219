package scanner

import (
	"strings"

	"github.com/Seiiyes/ricoh/internal/models"
	"github.com/Seiiyes/ricoh/internal/telemetry"
)

// printerKeywords mark a reverse-DNS hostname as printer-like. The list is
// deliberately loose (substring match) and is known to admit false positives;
// it matches what fleets in the field actually resolve to.
var printerKeywords = []string{
	"ricoh", "printer", "print", "mfp", "copier", "mp", "sp", "im", "laserjet", "deskjet",
}

// classify turns a probe result into a device verdict. The second return
// value is false when the address does not look like a printer.
func classify(probe ProbeResult) (models.DiscoveredDevice, bool) {
	isPrinter := false
	model := "Unknown Printer"
	hasColor := false
	hasScanner := false
	hostname := probe.Hostname

	if hostname != "" {
		lower := strings.ToLower(hostname)

		hasKeyword := false
		for _, kw := range printerKeywords {
			if strings.Contains(lower, kw) {
				hasKeyword = true
				break
			}
		}

		if hasKeyword {
			isPrinter = true

			if strings.Contains(lower, "ricoh") {
				switch {
				case strings.Contains(lower, "mp"):
					model = "RICOH MP Series"
					hasColor = true
					hasScanner = true
				case strings.Contains(lower, "sp"):
					model = "RICOH SP Series"
					hasColor = false
					hasScanner = false
				case strings.Contains(lower, "im"):
					model = "RICOH IM Series"
					hasColor = true
					hasScanner = true
				default:
					model = "RICOH Printer"
					hasColor = true
					hasScanner = true
				}
			} else {
				model = "Network Printer"
				hasColor = false
				hasScanner = probe.HTTP || probe.HTTPS
			}
		}
	}

	// Port 9100 is specific enough to a print spooler that it marks the host
	// as a printer regardless of what the hostname check concluded.
	if probe.RawPrint && !isPrinter {
		isPrinter = true
		model = "Network Printer (Port 9100)"
		hasScanner = probe.HTTP || probe.HTTPS
		if hostname == "" {
			hostname = synthesizeHostname(probe.IP)
		}
	}

	if !isPrinter {
		return models.DiscoveredDevice{}, false
	}

	if hostname == "" {
		hostname = synthesizeHostname(probe.IP)
	}

	return models.DiscoveredDevice{
		IPAddress:     probe.IP,
		Hostname:      hostname,
		Status:        "online",
		DetectedModel: model,
		HasColor:      hasColor,
		HasScanner:    hasScanner,
		HasFax:        false,
	}, true
}

// synthesizeHostname builds a stable placeholder name for printers with no
// PTR record.
func synthesizeHostname(ip string) string {
	return "printer-" + strings.ReplaceAll(ip, ".", "-")
}

// applyEnrichment merges telemetry data into a classified device. Fields the
// enricher left unset keep their classifier values; a chromatic toner level
// above zero upgrades the color verdict but enrichment never downgrades one.
func applyEnrichment(dev *models.DiscoveredDevice, info *telemetry.Info) {
	if info == nil {
		return
	}

	if info.Model != nil && *info.Model != "" {
		dev.DetectedModel = *info.Model
	}
	if info.SerialNumber != nil && *info.SerialNumber != "" {
		dev.SerialNumber = *info.SerialNumber
	}
	if info.Location != nil && *info.Location != "" {
		dev.Location = *info.Location
	}
	if info.TonerBlack != nil {
		dev.TonerBlack = *info.TonerBlack
	}
	if info.TonerCyan != nil {
		dev.TonerCyan = *info.TonerCyan
	}
	if info.TonerMagenta != nil {
		dev.TonerMagenta = *info.TonerMagenta
	}
	if info.TonerYellow != nil {
		dev.TonerYellow = *info.TonerYellow
	}

	if dev.TonerCyan > 0 || dev.TonerMagenta > 0 || dev.TonerYellow > 0 {
		dev.HasColor = true
	}
}
