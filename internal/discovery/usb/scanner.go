// internal/discovery/usb/scanner.go
package usb

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/gousb"
	"go.uber.org/zap"

	"card-print-service/internal/model"
)

// Scanner implements bus-level USB printer listing
type Scanner struct {
	logger *zap.Logger
	config *Config
}

// Config for USB scanner
type Config struct {
	ScanTimeout time.Duration
	EnableDebug bool
	// VendorIDs are opened for string inspection even when they do not report the printer class
	VendorIDs []gousb.ID
}

// NewScanner creates a new USB scanner
func NewScanner(logger *zap.Logger, config *Config) *Scanner {
	if config == nil {
		config = &Config{ScanTimeout: 10 * time.Second}
	}

	return &Scanner{
		logger: logger.With(zap.String("scanner", "usb")),
		config: config,
	}
}

// ParseVendorIDs parses "0x04F9" or "04f9" style identifiers, skipping invalid entries
func ParseVendorIDs(values []string) []gousb.ID {
	ids := make([]gousb.ID, 0, len(values))
	for _, v := range values {
		if id, err := ParseHexID(v); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// ParseHexID parses hex ID string (0x1234 or 1234)
func ParseHexID(hexStr string) (gousb.ID, error) {
	hexStr = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(hexStr)), "0x")
	id, err := strconv.ParseUint(hexStr, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid USB id %q: %w", hexStr, err)
	}
	return gousb.ID(id), nil
}

// GetScannerType returns scanner type identifier
func (s *Scanner) GetScannerType() model.DeviceSource {
	return model.SourceUSB
}

// IsAvailable checks if the USB subsystem can be opened
func (s *Scanner) IsAvailable() bool {
	ctx := gousb.NewContext()
	defer ctx.Close()
	return true
}

// Scan lists printer-class USB devices in bus enumeration order
func (s *Scanner) Scan(ctx context.Context) ([]model.DeviceDescriptor, error) {
	startTime := time.Now()

	usbCtx := gousb.NewContext()
	defer func() {
		if err := usbCtx.Close(); err != nil {
			s.logger.Warn("Failed to close USB context", zap.Error(err))
		}
	}()

	if s.config.EnableDebug {
		usbCtx.Debug(3)
	}

	type result struct {
		devices []model.DeviceDescriptor
		err     error
	}
	done := make(chan result, 1)

	// libusb enumeration has no context support
	go func() {
		devices, err := s.enumerate(usbCtx)
		done <- result{devices: devices, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		return nil, fmt.Errorf("usb scan aborted: %w", ctx.Err())
	}
	if res.err != nil {
		return nil, res.err
	}

	s.logger.Debug("USB scan completed",
		zap.Int("devices_found", len(res.devices)),
		zap.Duration("scan_duration", time.Since(startTime)),
	)
	return res.devices, nil
}

func (s *Scanner) enumerate(usbCtx *gousb.Context) ([]model.DeviceDescriptor, error) {
	devices, err := usbCtx.OpenDevices(s.shouldExamineDevice)
	defer s.closeAllDevices(devices)
	if err != nil && len(devices) == 0 {
		return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}
	if err != nil {
		s.logger.Warn("Some USB devices could not be opened", zap.Error(err))
	}

	descriptors := make([]model.DeviceDescriptor, 0, len(devices))
	for _, device := range devices {
		if device == nil || device.Desc == nil {
			continue
		}
		descriptors = append(descriptors, s.describe(device))
	}
	return descriptors, nil
}

// shouldExamineDevice selects printer-class devices and configured vendors
func (s *Scanner) shouldExamineDevice(desc *gousb.DeviceDesc) bool {
	for _, vid := range s.config.VendorIDs {
		if desc.Vendor == vid {
			return true
		}
	}
	return IsPrinterClass(desc)
}

// IsPrinterClass reports whether the device or any of its interfaces is printer class
func IsPrinterClass(desc *gousb.DeviceDesc) bool {
	if desc.Class == gousb.ClassPrinter {
		return true
	}
	for _, cfg := range desc.Configs {
		for _, intf := range cfg.Interfaces {
			for _, alt := range intf.AltSettings {
				if alt.Class == gousb.ClassPrinter {
					return true
				}
			}
		}
	}
	return false
}

func (s *Scanner) describe(device *gousb.Device) model.DeviceDescriptor {
	desc := device.Desc

	manufacturer, err := device.Manufacturer()
	if err != nil {
		s.logger.Debug("Failed to read manufacturer string", zap.Error(err))
	}
	product, err := device.Product()
	if err != nil {
		s.logger.Debug("Failed to read product string", zap.Error(err))
	}
	serial, _ := device.SerialNumber()

	return model.DeviceDescriptor{
		Source:       model.SourceUSB,
		Name:         DisplayName(manufacturer, product, desc.Vendor, desc.Product),
		Address:      fmt.Sprintf("%d:%d", desc.Bus, desc.Address),
		Manufacturer: strings.TrimSpace(manufacturer),
		Product:      strings.TrimSpace(product),
		VendorID:     fmt.Sprintf("0x%04X", uint16(desc.Vendor)),
		ProductID:    fmt.Sprintf("0x%04X", uint16(desc.Product)),
		SerialNumber: strings.TrimSpace(serial),
		Info:         desc.Class.String(),
	}
}

// DisplayName builds a model name, falling back to VID:PID
func DisplayName(manufacturer, product string, vendor, productID gousb.ID) string {
	manufacturer = strings.TrimSpace(manufacturer)
	product = strings.TrimSpace(product)

	switch {
	case manufacturer != "" && product != "":
		return manufacturer + " " + product
	case product != "":
		return product
	case manufacturer != "":
		return fmt.Sprintf("%s-%04X", manufacturer, uint16(productID))
	default:
		return fmt.Sprintf("USB-%04X:%04X", uint16(vendor), uint16(productID))
	}
}

// closeAllDevices safely closes all opened USB devices
func (s *Scanner) closeAllDevices(devices []*gousb.Device) {
	for i, device := range devices {
		if device != nil {
			if err := device.Close(); err != nil {
				s.logger.Warn("Failed to close USB device",
					zap.Int("device_index", i),
					zap.Error(err),
				)
			}
		}
	}
}
