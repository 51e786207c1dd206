// internal/printer/backend.go
package printer

import (
	"context"

	"card-print-service/internal/card"
	"card-print-service/internal/model"
)

// PrinterBackend is the shared contract of the thermal and document printers.
// An instance serves one job at a time: Connect, print, Disconnect.
type PrinterBackend interface {
	Kind() model.BackendKind
	Name() string

	// Connect discovers and engages a device. false with a nil error means no
	// usable device; Status().Reason tells not-found from unresponsive.
	Connect(ctx context.Context) (bool, error)
	TestConnection(ctx context.Context) error
	PrintCard(ctx context.Context, content card.Content) error
	Disconnect() error

	Status() BackendStatus
}

// BackendStatus is the operator-facing connection state of a backend
type BackendStatus struct {
	Backend    model.BackendKind      `json:"backend"`
	Name       string                 `json:"name"`
	Connected  bool                   `json:"connected"`
	Status     model.ConnectionStatus `json:"status"`
	Details    string                 `json:"details"`
	Device     string                 `json:"device,omitempty"`
	Candidates []string               `json:"candidates,omitempty"`
	Reason     error                  `json:"-"`
}

// ReasonCode returns the classified reason code for the last Connect
func (s BackendStatus) ReasonCode() string {
	return KindName(s.Reason)
}
