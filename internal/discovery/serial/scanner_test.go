package serial

import (
	"context"
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"card-print-service/internal/model"
)

func portName() string {
	switch runtime.GOOS {
	case "windows":
		return "COM3"
	case "darwin":
		return "/dev/cu.usbserial-1410"
	default:
		return "/dev/ttyUSB0"
	}
}

func TestScan_DescribesUSBSerialPorts(t *testing.T) {
	s := NewScannerWithLister(zap.NewNop(), func() ([]*enumerator.PortDetails, error) {
		return []*enumerator.PortDetails{
			{Name: portName(), IsUSB: true, VID: "1a86", PID: "7523", Product: "SMART-31S Card Printer"},
			{Name: "bogus-port"},
		}, nil
	})

	got, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, model.SourceSerial, got[0].Source)
	assert.Equal(t, portName(), got[0].Address)
	assert.Equal(t, "SMART-31S Card Printer", got[0].Name)
	assert.Equal(t, "0x1A86", got[0].VendorID)
	assert.Equal(t, "usb-serial", got[0].Info)
}

func TestScan_ListerError(t *testing.T) {
	s := NewScannerWithLister(zap.NewNop(), func() ([]*enumerator.PortDetails, error) {
		return nil, errors.New("permission denied")
	})

	_, err := s.Scan(context.Background())
	assert.Error(t, err)
}

func TestScan_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewScannerWithLister(zap.NewNop(), func() ([]*enumerator.PortDetails, error) {
		t.Fatal("lister must not run")
		return nil, nil
	})
	_, err := s.Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
