// internal/utils/print_events.go
package utils

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Print event names
const (
	EventDeviceFound      = "device_found"
	EventDeviceNotFound   = "device_not_found"
	EventHandshakeTimeout = "handshake_timeout"
	EventDispatchSuccess  = "dispatch_success"
	EventDispatchFailure  = "dispatch_failure"
	EventCleanupFailure   = "cleanup_failure"
)

// PrintEvent is a structured print subsystem event
type PrintEvent struct {
	Type      string                 `json:"type"`
	Backend   string                 `json:"backend,omitempty"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// EventPublisher receives every print event after it is logged
type EventPublisher interface {
	Publish(event PrintEvent)
}

// PrintLogger is the structured event sink for the print subsystem
type PrintLogger struct {
	logger     *zap.Logger
	mu         sync.RWMutex
	publishers []EventPublisher
}

// NewPrintLogger creates a print event logger
func NewPrintLogger(baseLogger *zap.Logger) *PrintLogger {
	return &PrintLogger{
		logger: baseLogger.With(zap.String("component", "print")),
	}
}

// AddPublisher registers an event fan-out target
func (pl *PrintLogger) AddPublisher(p EventPublisher) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	pl.publishers = append(pl.publishers, p)
}

// DeviceFound logs the full candidate list for a backend
func (pl *PrintLogger) DeviceFound(backend string, candidates []string) {
	pl.logger.Info("Printer candidates found",
		zap.String("event", EventDeviceFound),
		zap.String("backend", backend),
		zap.Int("count", len(candidates)),
		zap.Strings("candidates", candidates),
	)
	pl.publish(EventDeviceFound, backend, map[string]interface{}{
		"count":      len(candidates),
		"candidates": candidates,
	})
}

// DeviceNotFound logs an empty discovery result
func (pl *PrintLogger) DeviceNotFound(backend string) {
	pl.logger.Warn("No printer candidates found",
		zap.String("event", EventDeviceNotFound),
		zap.String("backend", backend),
	)
	pl.publish(EventDeviceNotFound, backend, map[string]interface{}{})
}

// HandshakeTimeout logs a candidate that did not answer the test write in time
func (pl *PrintLogger) HandshakeTimeout(backend, device string, timeout time.Duration) {
	pl.logger.Warn("Printer handshake timed out",
		zap.String("event", EventHandshakeTimeout),
		zap.String("backend", backend),
		zap.String("device", device),
		zap.Duration("timeout", timeout),
	)
	pl.publish(EventHandshakeTimeout, backend, map[string]interface{}{
		"device":  device,
		"timeout": timeout.String(),
	})
}

// DispatchSuccess logs a printed card
func (pl *PrintLogger) DispatchSuccess(backend, player string, duration time.Duration) {
	pl.logger.Info("Card dispatched",
		zap.String("event", EventDispatchSuccess),
		zap.String("backend", backend),
		zap.String("player", player),
		zap.Duration("duration", duration),
	)
	pl.publish(EventDispatchSuccess, backend, map[string]interface{}{
		"player":   player,
		"duration": duration.String(),
	})
}

// DispatchFailure logs a card that could not be printed
func (pl *PrintLogger) DispatchFailure(backend, player string, err error) {
	pl.logger.Error("Card dispatch failed",
		zap.String("event", EventDispatchFailure),
		zap.String("backend", backend),
		zap.String("player", player),
		zap.Error(err),
	)
	pl.publish(EventDispatchFailure, backend, map[string]interface{}{
		"player": player,
		"error":  err.Error(),
	})
}

// CleanupFailure logs a transient file that could not be removed
func (pl *PrintLogger) CleanupFailure(path string, err error) {
	pl.logger.Warn("Temporary artifact cleanup failed",
		zap.String("event", EventCleanupFailure),
		zap.String("path", path),
		zap.Error(err),
	)
	pl.publish(EventCleanupFailure, "", map[string]interface{}{
		"path":  path,
		"error": err.Error(),
	})
}

func (pl *PrintLogger) publish(eventType, backend string, data map[string]interface{}) {
	pl.mu.RLock()
	publishers := pl.publishers
	pl.mu.RUnlock()

	if len(publishers) == 0 {
		return
	}

	event := PrintEvent{
		Type:      eventType,
		Backend:   backend,
		Data:      data,
		Timestamp: time.Now(),
	}
	for _, p := range publishers {
		p.Publish(event)
	}
}
