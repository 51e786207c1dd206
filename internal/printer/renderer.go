// internal/printer/renderer.go
package printer

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// RenderRequest asks the renderer to turn a markup file into a PDF file
type RenderRequest struct {
	Executable string
	InputPath  string
	OutputPath string
}

// DocumentRenderer materializes card markup as a paginated document
type DocumentRenderer interface {
	Render(ctx context.Context, req RenderRequest) error
}

// ChromedpRenderer drives a headless Chrome/Edge/Chromium through the DevTools protocol
type ChromedpRenderer struct {
	logger    *zap.Logger
	noSandbox bool
}

// NewChromedpRenderer creates a chromedp-based renderer
func NewChromedpRenderer(logger *zap.Logger, noSandbox bool) *ChromedpRenderer {
	return &ChromedpRenderer{
		logger:    logger.With(zap.String("component", "renderer")),
		noSandbox: noSandbox,
	}
}

// Render launches the browser at req.Executable, loads the markup file and
// prints it to a single card-sized PDF page. ctx bounds the whole run.
func (r *ChromedpRenderer) Render(ctx context.Context, req RenderRequest) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(req.Executable),
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("allow-file-access-from-files", true),
		chromedp.Flag("font-render-hinting", "none"),
	)
	if r.noSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			r.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
	defer browserCancel()

	inputURL, err := FileURL(req.InputPath)
	if err != nil {
		return err
	}

	var pdfData []byte
	err = chromedp.Run(browserCtx,
		chromedp.Navigate(inputURL),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPreferCSSPageSize(true).
				WithPaperWidth(mmToInches(CardWidthMM)).
				WithPaperHeight(mmToInches(CardHeightMM)).
				WithMarginTop(0).
				WithMarginRight(0).
				WithMarginBottom(0).
				WithMarginLeft(0).
				Do(ctx)
			if err != nil {
				return err
			}
			pdfData = data
			return nil
		}),
	)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("rendering aborted: %w", ctx.Err())
		}
		return fmt.Errorf("chromedp execution failed: %w", err)
	}

	if len(pdfData) == 0 {
		return fmt.Errorf("generated PDF is empty")
	}

	if err := os.WriteFile(req.OutputPath, pdfData, 0o644); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}

	r.logger.Debug("Card rendered", zap.String("output", req.OutputPath), zap.Int("bytes", len(pdfData)))
	return nil
}

// FileURL converts a local path to a file:// URL
func FileURL(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	p := filepath.ToSlash(abs)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return (&url.URL{Scheme: "file", Path: p}).String(), nil
}

// LocateRenderer returns the first candidate that exists. Absolute paths are
// checked on disk, bare names are resolved through PATH.
func LocateRenderer(candidates []string) (string, bool) {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if filepath.IsAbs(c) {
			if executableExists(c) {
				return c, true
			}
			continue
		}
		if resolved, err := exec.LookPath(c); err == nil {
			return resolved, true
		}
	}
	return "", false
}

func executableExists(path string) bool {
	if !filepath.IsAbs(path) {
		_, err := exec.LookPath(path)
		return err == nil
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func mmToInches(mm float64) float64 {
	return mm / 25.4
}
