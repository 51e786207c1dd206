// internal/protocol/usb_connection.go
package protocol

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/gousb"
	"go.uber.org/zap"

	"card-print-service/internal/discovery/usb"
	"card-print-service/internal/model"
)

// USBConnection implements DeviceProtocol over a bulk OUT endpoint
type USBConnection struct {
	config   *USBConfig
	ctx      *gousb.Context
	device   *gousb.Device
	intf     *gousb.Interface
	done     func()
	outEndpt *gousb.OutEndpoint
	logger   *zap.Logger
	mutex    sync.RWMutex
	isOpen   bool
	stats    ProtocolStats
}

// NewUSBConnection creates a new USB connection
func NewUSBConnection(config *USBConfig, logger *zap.Logger) *USBConnection {
	return &USBConnection{
		config: config,
		logger: logger.With(
			zap.String("protocol", "usb"),
			zap.String("vendor_id", config.VendorID),
			zap.String("product_id", config.ProductID),
		),
	}
}

// Open opens the USB connection
func (uc *USBConnection) Open(ctx context.Context) error {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()

	if uc.isOpen {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	vendorID, err := usb.ParseHexID(uc.config.VendorID)
	if err != nil {
		return fmt.Errorf("invalid vendor ID: %w", err)
	}
	productID, err := usb.ParseHexID(uc.config.ProductID)
	if err != nil {
		return fmt.Errorf("invalid product ID: %w", err)
	}

	uc.ctx = gousb.NewContext()

	device, err := uc.findAndOpenDevice(vendorID, productID)
	if err != nil {
		uc.ctx.Close()
		return fmt.Errorf("failed to find USB device: %w", err)
	}

	// The kernel usblp driver usually owns printer interfaces
	if err := device.SetAutoDetach(true); err != nil {
		uc.logger.Debug("Auto detach not supported", zap.Error(err))
	}

	intf, done, err := device.DefaultInterface()
	if err != nil {
		device.Close()
		uc.ctx.Close()
		return fmt.Errorf("failed to claim interface: %w", err)
	}

	outNum, ok := BulkOutEndpoint(intf.Setting)
	if !ok {
		done()
		device.Close()
		uc.ctx.Close()
		return fmt.Errorf("no bulk out endpoint on interface %d", intf.Setting.Number)
	}

	outEndpt, err := intf.OutEndpoint(outNum)
	if err != nil {
		done()
		device.Close()
		uc.ctx.Close()
		return fmt.Errorf("failed to get out endpoint: %w", err)
	}

	uc.device = device
	uc.intf = intf
	uc.done = done
	uc.outEndpt = outEndpt
	uc.isOpen = true
	uc.stats.IsConnected = true
	uc.stats.LastActivity = time.Now()

	uc.logger.Info("USB connection opened", zap.Int("endpoint", outNum))
	return nil
}

// Close closes the USB connection
func (uc *USBConnection) Close() error {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()

	if !uc.isOpen {
		return nil
	}

	if uc.done != nil {
		uc.done()
		uc.done = nil
		uc.intf = nil
	}

	var closeErr error
	if uc.device != nil {
		closeErr = uc.device.Close()
		uc.device = nil
	}

	if uc.ctx != nil {
		uc.ctx.Close()
		uc.ctx = nil
	}

	uc.outEndpt = nil
	uc.isOpen = false
	uc.stats.IsConnected = false

	uc.logger.Info("USB connection closed")
	return closeErr
}

// IsOpen returns whether the connection is open
func (uc *USBConnection) IsOpen() bool {
	uc.mutex.RLock()
	defer uc.mutex.RUnlock()
	return uc.isOpen && uc.device != nil && uc.outEndpt != nil
}

// Write writes data to the bulk endpoint, honouring ctx cancellation
func (uc *USBConnection) Write(ctx context.Context, data []byte) error {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()

	if !uc.isOpen || uc.outEndpt == nil {
		return fmt.Errorf("USB connection not open")
	}

	startTime := time.Now()
	n, err := uc.outEndpt.WriteContext(ctx, data)
	if err != nil {
		uc.stats.ErrorCount++
		return fmt.Errorf("failed to write to USB device: %w", err)
	}
	if n != len(data) {
		uc.stats.ErrorCount++
		return fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data))
	}

	uc.stats.recordWrite(n, time.Since(startTime))
	uc.logger.Debug("USB write completed", zap.Int("bytes", n))
	return nil
}

// GetProtocolType returns the protocol type
func (uc *USBConnection) GetProtocolType() model.DeviceSource {
	return model.SourceUSB
}

// Stats returns a snapshot of the connection statistics
func (uc *USBConnection) Stats() ProtocolStats {
	uc.mutex.RLock()
	defer uc.mutex.RUnlock()
	return uc.stats
}

// Ping tests the connection
func (uc *USBConnection) Ping(ctx context.Context) error {
	if !uc.IsOpen() {
		return fmt.Errorf("USB connection not open")
	}
	return uc.Write(ctx, pingData)
}

// BulkOutEndpoint returns the lowest-numbered bulk OUT endpoint of a setting
func BulkOutEndpoint(setting gousb.InterfaceSetting) (int, bool) {
	best := -1
	for _, ep := range setting.Endpoints {
		if ep.Direction != gousb.EndpointDirectionOut || ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		if best == -1 || ep.Number < best {
			best = ep.Number
		}
	}
	return best, best != -1
}

// findAndOpenDevice finds and opens the USB device
func (uc *USBConnection) findAndOpenDevice(vendorID, productID gousb.ID) (*gousb.Device, error) {
	devices, err := uc.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if desc.Vendor != vendorID || desc.Product != productID {
			return false
		}
		if uc.config.Bus > 0 && (desc.Bus != uc.config.Bus || desc.Address != uc.config.Address) {
			return false
		}
		return true
	})
	if err != nil && len(devices) == 0 {
		return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}

	if len(devices) == 0 {
		return nil, fmt.Errorf("USB device not found (VID: %04X, PID: %04X)", uint16(vendorID), uint16(productID))
	}

	chosen := 0
	if uc.config.SerialNumber != "" {
		for i, d := range devices {
			if sn, snErr := d.SerialNumber(); snErr == nil && sn == uc.config.SerialNumber {
				chosen = i
				break
			}
		}
	}

	for i, d := range devices {
		if i != chosen {
			d.Close()
		}
	}
	if len(devices) > 1 {
		uc.logger.Warn("Multiple matching USB devices found", zap.Int("count", len(devices)))
	}

	return devices[chosen], nil
}
