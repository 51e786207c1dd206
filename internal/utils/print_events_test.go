package utils

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []PrintEvent
}

func (r *recordingPublisher) Publish(event PrintEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func TestPrintLogger_EventsCarryEventField(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	pl := NewPrintLogger(zap.New(core))

	pl.DeviceFound("thermal", []string{"usb:SMART-31S@1:4"})
	pl.DeviceNotFound("document")
	pl.HandshakeTimeout("thermal", "usb:SMART-31S@1:4", 5*time.Second)
	pl.DispatchSuccess("thermal", "Ali Yılmaz", time.Millisecond)
	pl.DispatchFailure("thermal", "Ali Yılmaz", errors.New("pipe broken"))
	pl.CleanupFailure("/tmp/x.html", errors.New("busy"))

	want := []string{
		EventDeviceFound, EventDeviceNotFound, EventHandshakeTimeout,
		EventDispatchSuccess, EventDispatchFailure, EventCleanupFailure,
	}
	entries := logs.All()
	require.Len(t, entries, len(want))
	for i, entry := range entries {
		assert.Equal(t, want[i], entry.ContextMap()["event"])
	}
}

func TestPrintLogger_FansOutToPublishers(t *testing.T) {
	pl := NewPrintLogger(zap.NewNop())
	pub := &recordingPublisher{}
	pl.AddPublisher(pub)

	pl.DeviceNotFound("thermal")
	pl.DispatchSuccess("thermal", "Test Oyuncu", time.Second)

	require.Len(t, pub.events, 2)
	assert.Equal(t, EventDeviceNotFound, pub.events[0].Type)
	assert.Equal(t, "thermal", pub.events[0].Backend)
	assert.Equal(t, "Test Oyuncu", pub.events[1].Data["player"])
	assert.False(t, pub.events[1].Timestamp.IsZero())
}
