// internal/model/device.go
package model

import "strings"

// DeviceSource identifies where a device descriptor was enumerated
type DeviceSource string

const (
	SourceSystem DeviceSource = "system"
	SourceUSB    DeviceSource = "usb"
	SourceSerial DeviceSource = "serial"
)

// ConnectionStatus is the lifecycle state of a device handle
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusDiscovered   ConnectionStatus = "discovered"
	StatusConnected    ConnectionStatus = "connected"
	StatusFailed       ConnectionStatus = "failed"
)

// DeviceDescriptor describes one enumerated candidate device
type DeviceDescriptor struct {
	Source       DeviceSource `json:"source"`
	Name         string       `json:"name"`
	Address      string       `json:"address"`
	Manufacturer string       `json:"manufacturer,omitempty"`
	Product      string       `json:"product,omitempty"`
	VendorID     string       `json:"vendor_id,omitempty"`
	ProductID    string       `json:"product_id,omitempty"`
	SerialNumber string       `json:"serial_number,omitempty"`
	Info         string       `json:"info,omitempty"`
}

// FingerprintText is the lower-cased text fingerprint tokens are matched against
func (d DeviceDescriptor) FingerprintText() string {
	parts := []string{d.Name, d.Manufacturer, d.Product, d.Info, d.Address}
	return strings.ToLower(strings.Join(parts, " "))
}

// String renders a short diagnostic label
func (d DeviceDescriptor) String() string {
	if d.Name != "" {
		return string(d.Source) + ":" + d.Name + "@" + d.Address
	}
	return string(d.Source) + ":" + d.Address
}
