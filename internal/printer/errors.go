// internal/printer/errors.go
package printer

import (
	"errors"

	"card-print-service/internal/model"
)

// Failure classes of the print subsystem
var (
	ErrDeviceNotFound   = errors.New("device not found")
	ErrHandshakeTimeout = errors.New("device found but unresponsive")
	ErrDispatchFailure  = errors.New("dispatch failed")
	ErrRenderFailure    = errors.New("render failed")
	ErrCleanupFailure   = errors.New("cleanup failed")
	ErrNotConnected     = errors.New("no active printer connection")
)

// PrintError is a classified print failure
type PrintError struct {
	Kind    error
	Backend model.BackendKind
	Message string
	Cause   error
}

// NewPrintError creates a classified print error
func NewPrintError(kind error, backend model.BackendKind, message string, cause error) *PrintError {
	return &PrintError{Kind: kind, Backend: backend, Message: message, Cause: cause}
}

func (e *PrintError) Error() string {
	msg := e.Kind.Error()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *PrintError) Unwrap() error {
	return e.Cause
}

// Is matches the failure class so errors.Is(err, ErrRenderFailure) works
func (e *PrintError) Is(target error) bool {
	return e.Kind == target
}

// KindName returns a stable code for a classified error, or "" when unclassified
func KindName(err error) string {
	switch {
	case errors.Is(err, ErrDeviceNotFound):
		return "DEVICE_NOT_FOUND"
	case errors.Is(err, ErrHandshakeTimeout):
		return "HANDSHAKE_TIMEOUT"
	case errors.Is(err, ErrNotConnected):
		return "NOT_CONNECTED"
	case errors.Is(err, ErrRenderFailure):
		return "RENDER_FAILURE"
	case errors.Is(err, ErrDispatchFailure):
		return "DISPATCH_FAILURE"
	case errors.Is(err, ErrCleanupFailure):
		return "CLEANUP_FAILURE"
	default:
		return ""
	}
}
