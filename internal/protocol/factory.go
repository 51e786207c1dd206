// internal/protocol/factory.go
package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"card-print-service/internal/config"
	"card-print-service/internal/model"
)

// ErrUnsupportedSource is returned for descriptors with no raw byte channel
var ErrUnsupportedSource = errors.New("device source has no raw protocol")

// Factory opens raw protocols for discovered descriptors
type Factory struct {
	serial  config.SerialConfig
	timeout time.Duration
	logger  *zap.Logger
}

// NewFactory creates a protocol factory
func NewFactory(serialCfg config.SerialConfig, timeout time.Duration, logger *zap.Logger) *Factory {
	return &Factory{serial: serialCfg, timeout: timeout, logger: logger}
}

// CreateProtocol creates a protocol based on the descriptor source
func (f *Factory) CreateProtocol(desc model.DeviceDescriptor) (DeviceProtocol, error) {
	switch desc.Source {
	case model.SourceSerial:
		return NewSerialConnection(f.serialConfig(desc), f.logger), nil
	case model.SourceUSB:
		usbCfg, err := USBConfigFromDescriptor(desc, f.timeout)
		if err != nil {
			return nil, err
		}
		return NewUSBConnection(usbCfg, f.logger), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, desc.Source)
	}
}

func (f *Factory) serialConfig(desc model.DeviceDescriptor) *SerialConfig {
	cfg := &SerialConfig{
		Port:     desc.Address,
		BaudRate: f.serial.BaudRate,
		DataBits: f.serial.DataBits,
		StopBits: f.serial.StopBits,
		Parity:   f.serial.Parity,
		Timeout:  f.timeout,
	}
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 9600
	}
	if cfg.DataBits == 0 {
		cfg.DataBits = 8
	}
	return cfg
}

// USBConfigFromDescriptor builds a USB config from a "bus:address" descriptor
func USBConfigFromDescriptor(desc model.DeviceDescriptor, timeout time.Duration) (*USBConfig, error) {
	if desc.VendorID == "" || desc.ProductID == "" {
		return nil, fmt.Errorf("USB descriptor %s lacks vendor/product id", desc.String())
	}

	cfg := &USBConfig{
		VendorID:     desc.VendorID,
		ProductID:    desc.ProductID,
		SerialNumber: desc.SerialNumber,
		Timeout:      timeout,
	}

	if bus, addr, ok := strings.Cut(desc.Address, ":"); ok {
		b, errB := strconv.Atoi(bus)
		a, errA := strconv.Atoi(addr)
		if errB == nil && errA == nil {
			cfg.Bus, cfg.Address = b, a
		}
	}
	return cfg, nil
}
