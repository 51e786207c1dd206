// internal/printer/document.go
package printer

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"card-print-service/internal/card"
	"card-print-service/internal/discovery"
	"card-print-service/internal/model"
	"card-print-service/internal/tempfile"
	"card-print-service/internal/utils"
)

// DocumentOptions tunes the rendered document printer
type DocumentOptions struct {
	// RendererPath is trusted as configured; when empty RendererCandidates are searched
	RendererPath       string
	RendererCandidates []string
	RenderTimeout      time.Duration
	DispatchTimeout    time.Duration
	CleanupGrace       time.Duration
}

// QueueResolver names the OS default print queue, "" when none is set
type QueueResolver interface {
	DefaultQueue(ctx context.Context) string
}

// DocumentPrinter renders each card to a PDF and sends it to an OS print queue
type DocumentPrinter struct {
	discovery discovery.CandidateLister
	renderer  DocumentRenderer
	spooler   Spooler
	temp      *tempfile.Manager
	pages     PageCounter
	defaults  QueueResolver
	opts      DocumentOptions
	logger    *utils.DeviceLogger
	events    *utils.PrintLogger

	mu         sync.Mutex
	executable string
	queue      string
	status     BackendStatus
}

// NewDocumentPrinter creates a rendered document printer backend
func NewDocumentPrinter(lister discovery.CandidateLister, renderer DocumentRenderer, spooler Spooler, temp *tempfile.Manager, opts DocumentOptions, logger *zap.Logger, events *utils.PrintLogger) *DocumentPrinter {
	if opts.RenderTimeout <= 0 {
		opts.RenderTimeout = 30 * time.Second
	}

	p := &DocumentPrinter{
		discovery: lister,
		renderer:  renderer,
		spooler:   spooler,
		temp:      temp,
		pages:     PDFPageCount,
		opts:      opts,
		logger:    utils.NewDeviceLogger(logger, string(model.BackendDocument)),
		events:    events,
	}
	p.status = p.newStatus(model.StatusDisconnected, "not connected", nil)
	return p
}

// WithPageCounter replaces the PDF verification step
func (p *DocumentPrinter) WithPageCounter(counter PageCounter) *DocumentPrinter {
	p.pages = counter
	return p
}

// WithDefaultQueue resolves the queue name used when no queue matches the fingerprints
func (p *DocumentPrinter) WithDefaultQueue(resolver QueueResolver) *DocumentPrinter {
	p.defaults = resolver
	return p
}

// Kind returns the backend kind
func (p *DocumentPrinter) Kind() model.BackendKind {
	return model.BackendDocument
}

// Name returns the operator-facing backend name
func (p *DocumentPrinter) Name() string {
	return "Rendered Document Printer"
}

// Connect locates the renderer executable and picks the destination queue.
// No device is opened; a missing matching queue falls back to the system default.
// When no candidate is installed the last candidate is kept as a bare fallback,
// so the absence surfaces as a render failure on the first card.
func (p *DocumentPrinter) Connect(ctx context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.executable != "" {
		return true, nil
	}

	var missing error
	executable := p.opts.RendererPath
	if executable == "" {
		found, ok := LocateRenderer(p.opts.RendererCandidates)
		if !ok {
			fallback := lastCandidate(p.opts.RendererCandidates)
			if fallback == "" {
				p.events.DeviceNotFound(string(p.Kind()))
				p.status = p.newStatus(model.StatusDisconnected,
					"no renderer executable found; install Chrome or set printer.renderer_path",
					NewPrintError(ErrDeviceNotFound, p.Kind(), "no renderer executable", nil))
				return false, nil
			}
			p.logger.Warn("No renderer executable found, using fallback",
				zap.String("fallback", fallback),
				zap.Strings("candidates", p.opts.RendererCandidates),
			)
			missing = NewPrintError(ErrRenderFailure, p.Kind(), "no renderer executable found", nil)
			found = fallback
		}
		executable = found
	}

	queues := p.discovery.ListCandidateDevices(ctx, p.Kind())
	if err := ctx.Err(); err != nil {
		return false, err
	}

	queue := ""
	labels := make([]string, len(queues))
	for i, q := range queues {
		labels[i] = q.String()
	}
	if len(queues) > 0 {
		queue = queues[0].Name
		p.events.DeviceFound(string(p.Kind()), labels)
	} else {
		if p.defaults != nil {
			queue = p.defaults.DefaultQueue(ctx)
		}
		p.logger.Info("No matching print queue, using system default", zap.String("queue", queue))
	}

	p.executable = executable
	p.queue = queue
	details := "renderer located: " + executable
	if missing != nil {
		details = "no renderer executable found; install Chrome or set printer.renderer_path (trying " + executable + ")"
	}
	p.status = p.newStatus(model.StatusConnected, details, missing)
	p.status.Candidates = labels
	p.logger.LogConnection("connect", p.destination(), nil)
	return true, nil
}

// TestConnection confirms a renderer has been located
func (p *DocumentPrinter) TestConnection(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.executable == "" {
		return NewPrintError(ErrNotConnected, p.Kind(), "", nil)
	}
	return ctx.Err()
}

// PrintCard writes markup, renders it to PDF and submits the PDF. Both
// artifacts are released after the cleanup grace on every path.
func (p *DocumentPrinter) PrintCard(ctx context.Context, content card.Content) error {
	p.mu.Lock()
	executable, queue := p.executable, p.queue
	p.mu.Unlock()

	if executable == "" {
		return NewPrintError(ErrNotConnected, p.Kind(), "connect before printing", nil)
	}

	subject := content.LicenseNumber
	if subject == card.Placeholder {
		subject = content.FullName
	}
	scope := p.temp.NewScope(subject)
	defer scope.Release(p.opts.CleanupGrace)

	markupPath, err := scope.WithScopedArtifact(".html", func(w io.Writer) error {
		return WriteMarkup(w, content)
	})
	if err != nil {
		return NewPrintError(ErrRenderFailure, p.Kind(), "card markup", err)
	}

	pdfPath, err := scope.ReservePath(".pdf")
	if err != nil {
		return NewPrintError(ErrRenderFailure, p.Kind(), "reserve document path", err)
	}

	if !executableExists(executable) {
		return NewPrintError(ErrRenderFailure, p.Kind(), "renderer executable not available: "+executable, nil)
	}

	rctx, cancel := context.WithTimeout(ctx, p.opts.RenderTimeout)
	defer cancel()
	if err := p.renderer.Render(rctx, RenderRequest{
		Executable: executable,
		InputPath:  markupPath,
		OutputPath: pdfPath,
	}); err != nil {
		return NewPrintError(ErrRenderFailure, p.Kind(), "renderer process", err)
	}

	pages, err := p.pages(pdfPath)
	if err != nil {
		return NewPrintError(ErrRenderFailure, p.Kind(), "rendered document unreadable", err)
	}
	if pages == 0 {
		return NewPrintError(ErrRenderFailure, p.Kind(), "rendered document has no pages", nil)
	}

	sctx := ctx
	if p.opts.DispatchTimeout > 0 {
		var scancel context.CancelFunc
		sctx, scancel = context.WithTimeout(ctx, p.opts.DispatchTimeout)
		defer scancel()
	}
	if err := p.spooler.Submit(sctx, queue, pdfPath); err != nil {
		return NewPrintError(ErrDispatchFailure, p.Kind(), "submit to "+p.destinationFor(queue), err)
	}
	return nil
}

// Disconnect forgets the located renderer and queue
func (p *DocumentPrinter) Disconnect() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.executable == "" {
		return nil
	}
	p.logger.LogConnection("disconnect", p.destination(), nil)
	p.executable = ""
	p.queue = ""
	p.status = p.newStatus(model.StatusDisconnected, "disconnected", nil)
	return nil
}

// Status returns the state recorded by the last lifecycle call
func (p *DocumentPrinter) Status() BackendStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	status := p.status
	status.Candidates = append([]string(nil), p.status.Candidates...)
	return status
}

func (p *DocumentPrinter) destination() string {
	return p.destinationFor(p.queue)
}

func (p *DocumentPrinter) destinationFor(queue string) string {
	if queue == "" {
		return "system default printer"
	}
	return queue
}

func lastCandidate(candidates []string) string {
	for i := len(candidates) - 1; i >= 0; i-- {
		if c := strings.TrimSpace(candidates[i]); c != "" {
			return c
		}
	}
	return ""
}

func (p *DocumentPrinter) newStatus(s model.ConnectionStatus, details string, reason error) BackendStatus {
	status := BackendStatus{
		Backend:   p.Kind(),
		Name:      p.Name(),
		Connected: s == model.StatusConnected,
		Status:    s,
		Details:   details,
		Reason:    reason,
	}
	if s == model.StatusConnected {
		status.Device = p.destination()
	}
	return status
}
