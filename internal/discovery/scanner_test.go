package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"card-print-service/internal/model"
)

type stubScanner struct {
	source    model.DeviceSource
	devices   []model.DeviceDescriptor
	err       error
	delay     time.Duration
	available bool
}

func (s *stubScanner) Scan(ctx context.Context) ([]model.DeviceDescriptor, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.devices, s.err
}

func (s *stubScanner) GetScannerType() model.DeviceSource { return s.source }
func (s *stubScanner) IsAvailable() bool                  { return s.available }

func newManager() *ScannerManager {
	sm := NewScannerManager(zap.NewNop(), time.Second)
	sm.SetFingerprints(model.BackendThermal, []string{"Smart", "31S", "card", "thermal"})
	sm.SetFingerprints(model.BackendDocument, []string{"brother", "mfc"})
	return sm
}

func TestListCandidateDevices_FiltersCaseInsensitive(t *testing.T) {
	sm := newManager()
	sm.RegisterScanner(model.BackendThermal, &stubScanner{
		source:    model.SourceUSB,
		available: true,
		devices: []model.DeviceDescriptor{
			{Source: model.SourceUSB, Name: "Logitech Mouse", Address: "1:2"},
			{Source: model.SourceUSB, Name: "IDP SMART-31S", Address: "1:3"},
			{Source: model.SourceUSB, Name: "Generic THERMAL Printer", Address: "1:5"},
		},
	})

	got := sm.ListCandidateDevices(context.Background(), model.BackendThermal)

	if assert.Len(t, got, 2) {
		assert.Equal(t, "1:3", got[0].Address)
		assert.Equal(t, "1:5", got[1].Address)
	}
}

func TestListCandidateDevices_PreservesScannerOrder(t *testing.T) {
	sm := newManager()
	// the first scanner finishes last; its devices must still come first
	sm.RegisterScanner(model.BackendThermal, &stubScanner{
		source: model.SourceSystem, available: true, delay: 50 * time.Millisecond,
		devices: []model.DeviceDescriptor{{Source: model.SourceSystem, Name: "Smart 31S Card Printer"}},
	})
	sm.RegisterScanner(model.BackendThermal, &stubScanner{
		source: model.SourceUSB, available: true,
		devices: []model.DeviceDescriptor{{Source: model.SourceUSB, Name: "SMART-31S", Address: "2:1"}},
	})

	got := sm.ListCandidateDevices(context.Background(), model.BackendThermal)

	if assert.Len(t, got, 2) {
		assert.Equal(t, model.SourceSystem, got[0].Source)
		assert.Equal(t, model.SourceUSB, got[1].Source)
	}
}

func TestListCandidateDevices_EmptyIsNotAnError(t *testing.T) {
	sm := newManager()
	sm.RegisterScanner(model.BackendDocument, &stubScanner{
		source: model.SourceSystem, available: true, err: errors.New("lpstat: not found"),
	})
	sm.RegisterScanner(model.BackendDocument, &stubScanner{source: model.SourceUSB, available: false})

	got := sm.ListCandidateDevices(context.Background(), model.BackendDocument)

	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Empty(t, sm.ListCandidateDevices(context.Background(), model.BackendThermal))
}

func TestMatches(t *testing.T) {
	brother := model.DeviceDescriptor{Name: "Brother MFC-L2700DW", Address: "usb://Brother/MFC-L2700DW"}
	assert.True(t, Matches(brother, []string{"mfc"}))
	assert.False(t, Matches(brother, []string{"thermal"}))
	assert.False(t, Matches(brother, nil))
}

func TestGetAvailableScanners(t *testing.T) {
	sm := newManager()
	sm.RegisterScanner(model.BackendThermal, &stubScanner{source: model.SourceUSB, available: true})
	sm.RegisterScanner(model.BackendThermal, &stubScanner{source: model.SourceSerial, available: false})

	assert.Equal(t, []string{"usb"}, sm.GetAvailableScanners()[model.BackendThermal])
}
