// internal/protocol/serial_connection.go
package protocol

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"card-print-service/internal/model"
)

// PortOpener opens a serial port for writing
type PortOpener func(name string, mode *serial.Mode) (io.WriteCloser, error)

func openSerialPort(name string, mode *serial.Mode) (io.WriteCloser, error) {
	return serial.Open(name, mode)
}

// SerialConnection implements DeviceProtocol for serial connections
type SerialConnection struct {
	config *SerialConfig
	open   PortOpener
	port   io.WriteCloser
	logger *zap.Logger
	mutex  sync.RWMutex
	isOpen bool
	stats  ProtocolStats
}

// NewSerialConnection creates a new serial connection
func NewSerialConnection(config *SerialConfig, logger *zap.Logger) *SerialConnection {
	return &SerialConnection{
		config: config,
		open:   openSerialPort,
		logger: logger.With(
			zap.String("protocol", "serial"),
			zap.String("port", config.Port),
		),
	}
}

// WithOpener replaces the port opener
func (sc *SerialConnection) WithOpener(open PortOpener) *SerialConnection {
	sc.open = open
	return sc
}

// Open opens the serial connection
func (sc *SerialConnection) Open(ctx context.Context) error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if sc.isOpen {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	mode := &serial.Mode{
		BaudRate: sc.config.BaudRate,
		DataBits: sc.config.DataBits,
		StopBits: ParseStopBits(sc.config.StopBits),
		Parity:   ParseParity(sc.config.Parity),
	}

	port, err := sc.open(sc.config.Port, mode)
	if err != nil {
		return fmt.Errorf("failed to open serial port: %w", err)
	}

	sc.port = port
	sc.isOpen = true
	sc.stats.IsConnected = true
	sc.stats.LastActivity = time.Now()

	sc.logger.Info("Serial port opened", zap.Int("baud_rate", sc.config.BaudRate))
	return nil
}

// Close closes the serial connection
func (sc *SerialConnection) Close() error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if !sc.isOpen || sc.port == nil {
		return nil
	}

	err := sc.port.Close()
	sc.port = nil
	sc.isOpen = false
	sc.stats.IsConnected = false

	if err != nil {
		return fmt.Errorf("failed to close serial port: %w", err)
	}
	sc.logger.Info("Serial port closed")
	return nil
}

// IsOpen returns whether the connection is open
func (sc *SerialConnection) IsOpen() bool {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()
	return sc.isOpen && sc.port != nil
}

// Write writes data to the serial port. A write still blocked when ctx ends
// is abandoned; closing the port unblocks it.
func (sc *SerialConnection) Write(ctx context.Context, data []byte) error {
	sc.mutex.RLock()
	port := sc.port
	open := sc.isOpen
	sc.mutex.RUnlock()

	if !open || port == nil {
		return fmt.Errorf("serial port not open")
	}

	startTime := time.Now()
	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := port.Write(data)
		done <- result{n: n, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		sc.recordError()
		return fmt.Errorf("serial write aborted: %w", ctx.Err())
	}

	if res.err != nil {
		sc.recordError()
		return fmt.Errorf("failed to write to serial port: %w", res.err)
	}
	if res.n != len(data) {
		sc.recordError()
		return fmt.Errorf("incomplete write: wrote %d of %d bytes", res.n, len(data))
	}

	sc.mutex.Lock()
	sc.stats.recordWrite(res.n, time.Since(startTime))
	sc.mutex.Unlock()

	sc.logger.Debug("Serial write completed", zap.Int("bytes", res.n))
	return nil
}

func (sc *SerialConnection) recordError() {
	sc.mutex.Lock()
	sc.stats.ErrorCount++
	sc.mutex.Unlock()
}

// GetProtocolType returns the protocol type
func (sc *SerialConnection) GetProtocolType() model.DeviceSource {
	return model.SourceSerial
}

// Stats returns a snapshot of the connection statistics
func (sc *SerialConnection) Stats() ProtocolStats {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()
	return sc.stats
}

// Ping tests the connection
func (sc *SerialConnection) Ping(ctx context.Context) error {
	if !sc.IsOpen() {
		return fmt.Errorf("serial port not open")
	}
	return sc.Write(ctx, pingData)
}

// ParseParity maps a config string to a serial parity mode
func ParseParity(parity string) serial.Parity {
	switch strings.ToLower(parity) {
	case "odd":
		return serial.OddParity
	case "even":
		return serial.EvenParity
	case "mark":
		return serial.MarkParity
	case "space":
		return serial.SpaceParity
	default:
		return serial.NoParity
	}
}

// ParseStopBits maps 1 or 2 to serial stop bits
func ParseStopBits(bits int) serial.StopBits {
	if bits == 2 {
		return serial.TwoStopBits
	}
	return serial.OneStopBit
}
