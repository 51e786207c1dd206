// internal/printer/thermal.go
package printer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"card-print-service/internal/card"
	"card-print-service/internal/discovery"
	"card-print-service/internal/driver/escpos"
	"card-print-service/internal/model"
	"card-print-service/internal/protocol"
	"card-print-service/internal/utils"
)

// ProtocolFactory opens a raw byte channel for a discovered device
type ProtocolFactory interface {
	CreateProtocol(desc model.DeviceDescriptor) (protocol.DeviceProtocol, error)
}

// ThermalOptions tunes the thermal card printer
type ThermalOptions struct {
	HandshakeTimeout time.Duration
	DispatchTimeout  time.Duration
	Width            int
}

// ThermalCardPrinter prints cards as ESC/POS text lines over USB or serial
type ThermalCardPrinter struct {
	discovery discovery.CandidateLister
	factory   ProtocolFactory
	opts      ThermalOptions
	logger    *utils.DeviceLogger
	events    *utils.PrintLogger

	mu     sync.Mutex
	conn   protocol.DeviceProtocol
	device string
	status BackendStatus
}

// NewThermalCardPrinter creates a thermal card printer backend
func NewThermalCardPrinter(lister discovery.CandidateLister, factory ProtocolFactory, opts ThermalOptions, logger *zap.Logger, events *utils.PrintLogger) *ThermalCardPrinter {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 5 * time.Second
	}
	if opts.Width <= 0 {
		opts.Width = escpos.DefaultWidth
	}

	p := &ThermalCardPrinter{
		discovery: lister,
		factory:   factory,
		opts:      opts,
		logger:    utils.NewDeviceLogger(logger, string(model.BackendThermal)),
		events:    events,
	}
	p.status = p.newStatus(model.StatusDisconnected, "not connected", nil)
	return p
}

// Kind returns the backend kind
func (p *ThermalCardPrinter) Kind() model.BackendKind {
	return model.BackendThermal
}

// Name returns the operator-facing backend name
func (p *ThermalCardPrinter) Name() string {
	return "Thermal Card Printer"
}

// Connect tries every candidate in enumeration order; the first device that
// answers the timed test write becomes the active connection. The whole
// candidate loop shares one HandshakeTimeout deadline, so several silent
// devices never stretch Connect past it.
func (p *ThermalCardPrinter) Connect(ctx context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn != nil && p.conn.IsOpen() {
		return true, nil
	}

	candidates := p.discovery.ListCandidateDevices(ctx, p.Kind())
	if len(candidates) == 0 {
		p.events.DeviceNotFound(string(p.Kind()))
		p.status = p.newStatus(model.StatusDisconnected,
			"no card printer found; check the USB cable and printer power",
			NewPrintError(ErrDeviceNotFound, p.Kind(), "discovery returned no candidates", nil))
		return false, nil
	}

	labels := make([]string, len(candidates))
	for i, c := range candidates {
		labels[i] = c.String()
	}
	p.events.DeviceFound(string(p.Kind()), labels)
	p.status = p.newStatus(model.StatusDiscovered, "candidates found, testing", nil)
	p.status.Candidates = labels

	lctx, cancel := context.WithTimeout(ctx, p.opts.HandshakeTimeout)
	defer cancel()

	for _, desc := range candidates {
		if err := ctx.Err(); err != nil {
			p.status = p.newStatus(model.StatusFailed, "connect aborted", err)
			return false, err
		}
		if lctx.Err() != nil {
			p.logger.LogConnection("handshake", desc.String(), lctx.Err())
			break
		}

		conn, err := p.factory.CreateProtocol(desc)
		if err != nil {
			p.logger.LogConnection("create", desc.String(), err)
			continue
		}
		if err := conn.Open(lctx); err != nil {
			p.logger.LogConnection("open", desc.String(), err)
			continue
		}

		if err := p.handshake(lctx, conn, desc.String()); err != nil {
			p.logger.LogConnection("handshake", desc.String(), err)
			if closeErr := conn.Close(); closeErr != nil {
				p.logger.LogConnection("close", desc.String(), closeErr)
			}
			continue
		}

		p.conn = conn
		p.device = desc.String()
		p.status = p.newStatus(model.StatusConnected, "connected and test write acknowledged", nil)
		p.status.Candidates = labels
		p.logger.LogConnection("connect", p.device, nil)
		return true, nil
	}

	p.status = p.newStatus(model.StatusFailed,
		"card printer found but no responding device; check power and cable",
		NewPrintError(ErrHandshakeTimeout, p.Kind(), "no responding device", nil))
	p.status.Candidates = labels
	return false, nil
}

// TestConnection repeats the timed test write on the active connection
func (p *ThermalCardPrinter) TestConnection(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil || !p.conn.IsOpen() {
		return NewPrintError(ErrNotConnected, p.Kind(), "", nil)
	}
	return p.handshake(ctx, p.conn, p.device)
}

// handshake bounds the test write by HandshakeTimeout even if the channel ignores ctx
func (p *ThermalCardPrinter) handshake(ctx context.Context, conn protocol.DeviceProtocol, device string) error {
	hctx, cancel := context.WithTimeout(ctx, p.opts.HandshakeTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- conn.Ping(hctx) }()

	select {
	case err := <-done:
		if err == nil {
			return nil
		}
		p.events.HandshakeTimeout(string(p.Kind()), device, p.opts.HandshakeTimeout)
		return NewPrintError(ErrHandshakeTimeout, p.Kind(), "test write failed on "+device, err)
	case <-hctx.Done():
		p.events.HandshakeTimeout(string(p.Kind()), device, p.opts.HandshakeTimeout)
		return NewPrintError(ErrHandshakeTimeout, p.Kind(),
			fmt.Sprintf("%s did not answer within %s", device, p.opts.HandshakeTimeout), hctx.Err())
	}
}

// PrintCard writes one card as header band, field rows, footer rule and cut
func (p *ThermalCardPrinter) PrintCard(ctx context.Context, content card.Content) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil || !p.conn.IsOpen() {
		return NewPrintError(ErrNotConnected, p.Kind(), "connect before printing", nil)
	}

	if p.opts.DispatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.DispatchTimeout)
		defer cancel()
	}

	if err := p.conn.Write(ctx, escpos.EncodeCard(content, p.opts.Width)); err != nil {
		return NewPrintError(ErrDispatchFailure, p.Kind(), "write to "+p.device, err)
	}
	return nil
}

// Disconnect releases the active connection; it is safe to call when idle
func (p *ThermalCardPrinter) Disconnect() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return nil
	}

	err := p.conn.Close()
	p.logger.LogConnection("disconnect", p.device, err)
	p.conn = nil
	p.device = ""
	p.status = p.newStatus(model.StatusDisconnected, "disconnected", nil)
	return err
}

// Status returns the state recorded by the last lifecycle call
func (p *ThermalCardPrinter) Status() BackendStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	status := p.status
	status.Candidates = append([]string(nil), p.status.Candidates...)
	if p.conn != nil {
		stats := p.conn.Stats()
		status.Details = fmt.Sprintf("%s (%d bytes written)", status.Details, stats.BytesWritten)
	}
	return status
}

func (p *ThermalCardPrinter) newStatus(s model.ConnectionStatus, details string, reason error) BackendStatus {
	return BackendStatus{
		Backend:   p.Kind(),
		Name:      p.Name(),
		Connected: s == model.StatusConnected,
		Status:    s,
		Details:   details,
		Device:    p.device,
		Reason:    reason,
	}
}
