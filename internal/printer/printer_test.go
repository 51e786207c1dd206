package printer

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"card-print-service/internal/card"
	"card-print-service/internal/model"
	"card-print-service/internal/protocol"
	"card-print-service/internal/tempfile"
	"card-print-service/internal/utils"
)

type fakeLister struct {
	devices map[model.BackendKind][]model.DeviceDescriptor
	calls   int
}

func (f *fakeLister) ListCandidateDevices(_ context.Context, kind model.BackendKind) []model.DeviceDescriptor {
	f.calls++
	return f.devices[kind]
}

type fakeConn struct {
	mu      sync.Mutex
	open    bool
	hang    bool
	pingErr error
	openErr error
	written bytes.Buffer
	closed  int
}

func (c *fakeConn) Open(context.Context) error {
	if c.openErr != nil {
		return c.openErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = true
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	c.closed++
	return nil
}

func (c *fakeConn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *fakeConn) Write(_ context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written.Write(data)
	return nil
}

func (c *fakeConn) GetProtocolType() model.DeviceSource { return model.SourceUSB }
func (c *fakeConn) Stats() protocol.ProtocolStats        { return protocol.ProtocolStats{} }

func (c *fakeConn) Ping(context.Context) error {
	if c.hang {
		select {}
	}
	return c.pingErr
}

type fakeFactory struct {
	conns map[string]*fakeConn
}

func (f *fakeFactory) CreateProtocol(desc model.DeviceDescriptor) (protocol.DeviceProtocol, error) {
	if c, ok := f.conns[desc.Address]; ok {
		return c, nil
	}
	return nil, protocol.ErrUnsupportedSource
}

func thermalSetup(devices []model.DeviceDescriptor, conns map[string]*fakeConn, timeout time.Duration) (*ThermalCardPrinter, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	events := utils.NewPrintLogger(zap.New(core))
	lister := &fakeLister{devices: map[model.BackendKind][]model.DeviceDescriptor{model.BackendThermal: devices}}
	p := NewThermalCardPrinter(lister, &fakeFactory{conns: conns},
		ThermalOptions{HandshakeTimeout: timeout, Width: 32}, zap.NewNop(), events)
	return p, logs
}

func eventNames(logs *observer.ObservedLogs) []string {
	var names []string
	for _, e := range logs.All() {
		if ev, ok := e.ContextMap()["event"].(string); ok {
			names = append(names, ev)
		}
	}
	return names
}

func usbDevice(addr string) model.DeviceDescriptor {
	return model.DeviceDescriptor{Source: model.SourceUSB, Name: "SMART-31S", Address: addr}
}

func TestThermal_NoCandidatesIsNotFoundNotTimeout(t *testing.T) {
	p, logs := thermalSetup(nil, nil, time.Second)

	ok, err := p.Connect(context.Background())

	require.NoError(t, err)
	assert.False(t, ok)
	status := p.Status()
	assert.Equal(t, model.StatusDisconnected, status.Status)
	assert.ErrorIs(t, status.Reason, ErrDeviceNotFound)
	assert.NotErrorIs(t, status.Reason, ErrHandshakeTimeout)
	assert.Equal(t, []string{utils.EventDeviceNotFound}, eventNames(logs))
}

func TestThermal_FirstRespondingCandidateWins(t *testing.T) {
	dead := &fakeConn{pingErr: errors.New("stall")}
	live := &fakeConn{}
	spare := &fakeConn{}
	p, logs := thermalSetup(
		[]model.DeviceDescriptor{usbDevice("1:1"), usbDevice("1:2"), usbDevice("1:3")},
		map[string]*fakeConn{"1:1": dead, "1:2": live, "1:3": spare},
		time.Second,
	)

	ok, err := p.Connect(context.Background())

	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, dead.closed)
	assert.False(t, spare.IsOpen())
	status := p.Status()
	assert.Equal(t, model.StatusConnected, status.Status)
	assert.Equal(t, "usb:SMART-31S@1:2", status.Device)
	assert.Len(t, status.Candidates, 3)
	assert.Equal(t, []string{utils.EventDeviceFound, utils.EventHandshakeTimeout}, eventNames(logs))
}

func TestThermal_HandshakeIsBoundedByTimeout(t *testing.T) {
	p, _ := thermalSetup([]model.DeviceDescriptor{usbDevice("1:1")},
		map[string]*fakeConn{"1:1": {hang: true}}, 50*time.Millisecond)

	start := time.Now()
	ok, err := p.Connect(context.Background())
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Less(t, elapsed, 500*time.Millisecond)
	status := p.Status()
	assert.Equal(t, model.StatusFailed, status.Status)
	assert.ErrorIs(t, status.Reason, ErrHandshakeTimeout)
	assert.Equal(t, "HANDSHAKE_TIMEOUT", status.ReasonCode())
}

func TestThermal_SkipsQueueEntriesWithoutRawChannel(t *testing.T) {
	live := &fakeConn{}
	p, _ := thermalSetup(
		[]model.DeviceDescriptor{
			{Source: model.SourceSystem, Name: "Smart 31S Card Printer"},
			usbDevice("1:1"),
		},
		map[string]*fakeConn{"1:1": live},
		time.Second,
	)

	ok, err := p.Connect(context.Background())

	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "usb:SMART-31S@1:1", p.Status().Device)
	assert.Len(t, p.Status().Candidates, 2)
}

func TestThermal_SilentCandidatesShareOneDeadline(t *testing.T) {
	p, _ := thermalSetup(
		[]model.DeviceDescriptor{usbDevice("1:1"), usbDevice("1:2"), usbDevice("1:3")},
		map[string]*fakeConn{"1:1": {hang: true}, "1:2": {hang: true}, "1:3": {hang: true}},
		100*time.Millisecond,
	)

	start := time.Now()
	ok, err := p.Connect(context.Background())
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Less(t, elapsed, 250*time.Millisecond)
	assert.ErrorIs(t, p.Status().Reason, ErrHandshakeTimeout)
}

func TestThermal_PrintCardRequiresConnection(t *testing.T) {
	p, _ := thermalSetup(nil, nil, time.Second)

	err := p.PrintCard(context.Background(), card.Render(card.TestPlayer(), card.TestTeam()))

	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, p.TestConnection(context.Background()), ErrNotConnected)
}

func TestThermal_PrintAndDisconnect(t *testing.T) {
	conn := &fakeConn{}
	p, _ := thermalSetup([]model.DeviceDescriptor{usbDevice("1:1")}, map[string]*fakeConn{"1:1": conn}, time.Second)

	ok, err := p.Connect(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, p.TestConnection(context.Background()))

	require.NoError(t, p.PrintCard(context.Background(), card.Render(card.TestPlayer(), card.TestTeam())))
	assert.Contains(t, conn.written.String(), "TEST TAKIMI")
	assert.Contains(t, conn.written.String(), "Ad Soyad: Test Oyuncu")

	require.NoError(t, p.Disconnect())
	require.NoError(t, p.Disconnect())
	assert.Equal(t, 1, conn.closed)
	assert.Equal(t, model.StatusDisconnected, p.Status().Status)
}

type fakeRenderer struct {
	err   error
	calls int
}

func (r *fakeRenderer) Render(_ context.Context, req RenderRequest) error {
	r.calls++
	if r.err != nil {
		return r.err
	}
	return os.WriteFile(req.OutputPath, []byte("%PDF-1.7 fake"), 0o644)
}

type fakeSpooler struct {
	err    error
	queue  string
	path   string
	exists bool
}

func (s *fakeSpooler) Submit(_ context.Context, queue, path string) error {
	s.queue, s.path = queue, path
	_, statErr := os.Stat(path)
	s.exists = statErr == nil
	return s.err
}

type documentFixture struct {
	printer  *DocumentPrinter
	renderer *fakeRenderer
	spooler  *fakeSpooler
	tempDir  string
	temp     *tempfile.Manager
}

func documentSetup(t *testing.T, rendererPath string, queues []model.DeviceDescriptor) *documentFixture {
	t.Helper()
	tempDir := filepath.Join(t.TempDir(), "temp")
	events := utils.NewPrintLogger(zap.NewNop())
	temp := tempfile.NewManager(tempDir, zap.NewNop(), events)
	lister := &fakeLister{devices: map[model.BackendKind][]model.DeviceDescriptor{model.BackendDocument: queues}}
	f := &documentFixture{renderer: &fakeRenderer{}, spooler: &fakeSpooler{}, tempDir: tempDir, temp: temp}
	f.printer = NewDocumentPrinter(lister, f.renderer, f.spooler, temp, DocumentOptions{
		RendererPath:  rendererPath,
		RenderTimeout: time.Second,
		CleanupGrace:  150 * time.Millisecond,
	}, zap.NewNop(), events).WithPageCounter(func(string) (int, error) { return 1, nil })
	return f
}

func fakeExecutable(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chrome")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755))
	return path
}

func tempEntries(t *testing.T, dir string) int {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)
	return len(entries)
}

func TestDocument_PrintsThroughMatchingQueue(t *testing.T) {
	f := documentSetup(t, fakeExecutable(t), []model.DeviceDescriptor{
		{Source: model.SourceSystem, Name: "Brother_MFC_L2700DW"},
	})

	ok, err := f.printer.Connect(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, f.printer.TestConnection(context.Background()))

	err = f.printer.PrintCard(context.Background(), card.Render(card.TestPlayer(), card.TestTeam()))
	require.NoError(t, err)

	assert.Equal(t, "Brother_MFC_L2700DW", f.spooler.queue)
	assert.True(t, f.spooler.exists)
	assert.Equal(t, ".pdf", filepath.Ext(f.spooler.path))
	assert.Equal(t, 2, tempEntries(t, f.tempDir))
	assert.Eventually(t, func() bool { return tempEntries(t, f.tempDir) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestDocument_AbsentRendererIsRenderFailureAndCleansUp(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "no-such-chrome")
	f := documentSetup(t, missing, nil)

	ok, err := f.printer.Connect(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "system default printer", f.printer.Status().Device)

	err = f.printer.PrintCard(context.Background(), card.Render(card.TestPlayer(), card.TestTeam()))

	assert.ErrorIs(t, err, ErrRenderFailure)
	assert.Equal(t, 0, f.renderer.calls)
	assert.Eventually(t, func() bool { return tempEntries(t, f.tempDir) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestDocument_RendererErrorAndSpoolerError(t *testing.T) {
	f := documentSetup(t, fakeExecutable(t), nil)
	_, err := f.printer.Connect(context.Background())
	require.NoError(t, err)

	f.renderer.err = errors.New("chrome crashed")
	err = f.printer.PrintCard(context.Background(), card.Render(card.TestPlayer(), card.TestTeam()))
	assert.ErrorIs(t, err, ErrRenderFailure)

	f.renderer.err = nil
	f.spooler.err = errors.New("lp: queue disabled")
	err = f.printer.PrintCard(context.Background(), card.Render(card.TestPlayer(), card.TestTeam()))
	assert.ErrorIs(t, err, ErrDispatchFailure)

	f.temp.Flush()
	assert.Equal(t, 0, tempEntries(t, f.tempDir))
}

func TestDocument_EmptyPDFIsRenderFailure(t *testing.T) {
	f := documentSetup(t, fakeExecutable(t), nil)
	f.printer.WithPageCounter(func(string) (int, error) { return 0, nil })
	_, err := f.printer.Connect(context.Background())
	require.NoError(t, err)

	err = f.printer.PrintCard(context.Background(), card.Render(card.TestPlayer(), card.TestTeam()))
	assert.ErrorIs(t, err, ErrRenderFailure)
}

func TestDocument_NoRendererCandidatesIsNotConnected(t *testing.T) {
	f := documentSetup(t, "", nil)

	ok, err := f.printer.Connect(context.Background())

	require.NoError(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, f.printer.Status().Reason, ErrDeviceNotFound)
	assert.ErrorIs(t, f.printer.PrintCard(context.Background(), card.Content{}), ErrNotConnected)
}

func TestDocument_UninstalledRendererFallsBackToLastCandidate(t *testing.T) {
	f := documentSetup(t, "", nil)
	f.printer.opts.RendererCandidates = []string{
		filepath.Join(t.TempDir(), "absent-chrome"),
		"card-print-no-such-browser",
	}

	ok, err := f.printer.Connect(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	status := f.printer.Status()
	assert.Contains(t, status.Details, "no renderer executable found")
	assert.Equal(t, "RENDER_FAILURE", status.ReasonCode())

	err = f.printer.PrintCard(context.Background(), card.Render(card.TestPlayer(), card.TestTeam()))
	assert.ErrorIs(t, err, ErrRenderFailure)
	assert.Contains(t, err.Error(), "card-print-no-such-browser")
	assert.Equal(t, 0, f.renderer.calls)
	assert.Eventually(t, func() bool { return tempEntries(t, f.tempDir) == 0 }, 2*time.Second, 10*time.Millisecond)
}

type fixedQueue string

func (q fixedQueue) DefaultQueue(context.Context) string { return string(q) }

func TestDocument_UnmatchedQueueUsesResolvedDefault(t *testing.T) {
	f := documentSetup(t, fakeExecutable(t), nil)
	f.printer.WithDefaultQueue(fixedQueue("Office_Laser"))

	ok, err := f.printer.Connect(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Office_Laser", f.printer.Status().Device)

	require.NoError(t, f.printer.PrintCard(context.Background(), card.Render(card.TestPlayer(), card.TestTeam())))
	assert.Equal(t, "Office_Laser", f.spooler.queue)
	f.temp.Flush()
}

func TestWriteMarkup_EscapesAndUppercases(t *testing.T) {
	var buf bytes.Buffer
	content := card.Render(card.TestPlayer(), model.TeamRecord{Name: "İzmir <Gençlik>", Region: "Ege"})

	require.NoError(t, WriteMarkup(&buf, content))

	assert.Contains(t, buf.String(), "İZMİR &lt;GENÇLİK&gt;")
	assert.Contains(t, buf.String(), "size: 85.6mm 54mm")
	assert.Contains(t, buf.String(), "Test Oyuncu")
}

func TestPrintError_Classification(t *testing.T) {
	err := NewPrintError(ErrDispatchFailure, model.BackendThermal, "write", errors.New("pipe"))

	assert.ErrorIs(t, err, ErrDispatchFailure)
	assert.NotErrorIs(t, err, ErrRenderFailure)
	assert.Equal(t, "dispatch failed: write: pipe", err.Error())
	assert.Equal(t, "DISPATCH_FAILURE", KindName(err))
	assert.Equal(t, "", KindName(errors.New("plain")))
}

func TestFileURL(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix path layout")
	}
	u, err := FileURL("/tmp/card 1.html")
	require.NoError(t, err)
	assert.Equal(t, "file:///tmp/card%201.html", u)
}

type recordingRunner struct {
	name string
	args []string
}

func (r *recordingRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	r.name, r.args = name, args
	return nil, nil
}

func TestCommandSpooler_CommandLines(t *testing.T) {
	runner := &recordingRunner{}
	s := NewCommandSpooler(runner, "")
	s.goos = "linux"

	require.NoError(t, s.Submit(context.Background(), "Brother_MFC", "/tmp/a.pdf"))
	assert.Equal(t, "lp", runner.name)
	assert.Equal(t, []string{"-d", "Brother_MFC", "/tmp/a.pdf"}, runner.args)

	require.NoError(t, s.Submit(context.Background(), "", "/tmp/a.pdf"))
	assert.Equal(t, []string{"/tmp/a.pdf"}, runner.args)

	s.goos = "windows"
	require.NoError(t, s.Submit(context.Background(), "", `C:\temp\o'neil.pdf`))
	assert.Equal(t, "powershell", runner.name)
	assert.Contains(t, runner.args[3], `'C:\temp\o''neil.pdf' -Verb Print`)
}
