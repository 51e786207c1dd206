// internal/discovery/serial/scanner.go
package serial

import (
	"context"
	"fmt"
	"regexp"
	"runtime"
	"strings"

	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"card-print-service/internal/model"
)

// PortLister returns the detailed serial port list
type PortLister func() ([]*enumerator.PortDetails, error)

// Scanner implements serial port enumeration
type Scanner struct {
	logger    *zap.Logger
	listPorts PortLister
	patterns  []*regexp.Regexp
}

// NewScanner creates a new serial scanner
func NewScanner(logger *zap.Logger) *Scanner {
	return NewScannerWithLister(logger, enumerator.GetDetailedPortsList)
}

// NewScannerWithLister creates a serial scanner over a custom port source
func NewScannerWithLister(logger *zap.Logger, lister PortLister) *Scanner {
	return &Scanner{
		logger:    logger.With(zap.String("scanner", "serial")),
		listPorts: lister,
		patterns:  defaultPortPatterns(),
	}
}

// GetScannerType returns scanner type
func (s *Scanner) GetScannerType() model.DeviceSource {
	return model.SourceSerial
}

// IsAvailable checks if serial scanning is available
func (s *Scanner) IsAvailable() bool {
	return true
}

// Scan lists serial ports that look like printer attachments.
// Ports are not opened here; the handshake belongs to the backend.
func (s *Scanner) Scan(ctx context.Context) ([]model.DeviceDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ports, err := s.listPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to get serial ports: %w", err)
	}

	descriptors := make([]model.DeviceDescriptor, 0, len(ports))
	for _, port := range ports {
		if port == nil || !s.matchesPattern(port.Name) {
			continue
		}
		descriptors = append(descriptors, describe(port))
	}

	s.logger.Debug("Serial scan completed",
		zap.Int("ports_found", len(ports)),
		zap.Int("devices_found", len(descriptors)),
	)
	return descriptors, nil
}

func describe(port *enumerator.PortDetails) model.DeviceDescriptor {
	d := model.DeviceDescriptor{
		Source:       model.SourceSerial,
		Name:         port.Name,
		Address:      port.Name,
		Product:      strings.TrimSpace(port.Product),
		SerialNumber: port.SerialNumber,
	}
	if d.Product != "" {
		d.Name = d.Product
	}
	if port.IsUSB {
		d.VendorID = "0x" + strings.ToUpper(port.VID)
		d.ProductID = "0x" + strings.ToUpper(port.PID)
		d.Info = "usb-serial"
	}
	return d
}

func (s *Scanner) matchesPattern(name string) bool {
	for _, p := range s.patterns {
		if p.MatchString(name) {
			return true
		}
	}
	return false
}

func defaultPortPatterns() []*regexp.Regexp {
	var patterns []string
	switch runtime.GOOS {
	case "windows":
		patterns = []string{`^COM\d+$`}
	case "darwin":
		patterns = []string{`^/dev/(cu|tty)\.usb`}
	default:
		patterns = []string{`^/dev/tty(USB|ACM|S)\d+$`}
	}

	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}
	return compiled
}
