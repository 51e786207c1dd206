// internal/protocol/protocol.go
package protocol

import (
	"context"
	"time"

	"card-print-service/internal/model"
)

// DeviceProtocol represents a raw byte channel to a printer
type DeviceProtocol interface {
	// Connection lifecycle
	Open(ctx context.Context) error
	Close() error
	IsOpen() bool

	// Data communication
	Write(ctx context.Context, data []byte) error

	// Protocol information
	GetProtocolType() model.DeviceSource
	Stats() ProtocolStats

	// Health and diagnostics
	Ping(ctx context.Context) error
}

// ProtocolStats provides protocol-level statistics
type ProtocolStats struct {
	BytesWritten   int64         `json:"bytes_written"`
	OperationCount int64         `json:"operation_count"`
	ErrorCount     int64         `json:"error_count"`
	LastActivity   time.Time     `json:"last_activity"`
	AverageLatency time.Duration `json:"average_latency"`
	IsConnected    bool          `json:"is_connected"`
}

// pingData resets the printer and requests its real-time status
var pingData = []byte{0x1B, 0x40, 0x10, 0x04, 0x01}

func (s *ProtocolStats) recordWrite(n int, latency time.Duration) {
	s.BytesWritten += int64(n)
	s.OperationCount++
	s.LastActivity = time.Now()
	if s.AverageLatency == 0 {
		s.AverageLatency = latency
	} else {
		s.AverageLatency = (s.AverageLatency + latency) / 2
	}
}
