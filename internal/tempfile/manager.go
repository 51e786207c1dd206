// internal/tempfile/manager.go
package tempfile

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CleanupReporter receives artifacts that could not be removed
type CleanupReporter interface {
	CleanupFailure(path string, err error)
}

// Manager owns the temp working directory and every artifact created in it
type Manager struct {
	dir      string
	logger   *zap.Logger
	reporter CleanupReporter
	seq      atomic.Uint64

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewManager creates a temp artifact manager rooted at dir. The directory is
// created lazily on first use.
func NewManager(dir string, logger *zap.Logger, reporter CleanupReporter) *Manager {
	return &Manager{
		dir:      dir,
		logger:   logger.With(zap.String("component", "tempfile")),
		reporter: reporter,
		pending:  make(map[string]*time.Timer),
	}
}

// Dir returns the working directory
func (m *Manager) Dir() string {
	return m.dir
}

// NewScope starts a group of artifacts released together
func (m *Manager) NewScope(subject string) *Scope {
	return &Scope{manager: m, subject: sanitize(subject)}
}

// Pending returns the number of artifacts awaiting removal
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Flush removes every scheduled artifact immediately
func (m *Manager) Flush() {
	m.mu.Lock()
	paths := make([]string, 0, len(m.pending))
	for path, timer := range m.pending {
		timer.Stop()
		paths = append(paths, path)
	}
	m.mu.Unlock()

	for _, path := range paths {
		m.remove(path)
	}
}

// SweepStale removes files in the working directory older than age that no
// scope has scheduled. It covers artifacts left behind by a crash.
func (m *Manager) SweepStale(ctx context.Context, age time.Duration) (int, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read temp dir: %w", err)
	}

	cutoff := time.Now().Add(-age)
	removed := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(m.dir, entry.Name())
		if m.isPending(path) {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			m.report(path, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		m.logger.Info("Stale temp artifacts removed", zap.Int("removed", removed))
	}
	return removed, nil
}

func (m *Manager) ensureDir() error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create temp dir %s: %w", m.dir, err)
	}
	return nil
}

func (m *Manager) newPath(subject, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	name := fmt.Sprintf("%s_%d_%s%s", subject, m.seq.Add(1), uuid.NewString()[:8], ext)
	return filepath.Join(m.dir, name)
}

func (m *Manager) schedule(paths []string, grace time.Duration) {
	if grace <= 0 {
		for _, path := range paths {
			m.remove(path)
		}
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, path := range paths {
		path := path
		if old, ok := m.pending[path]; ok {
			old.Stop()
		}
		m.pending[path] = time.AfterFunc(grace, func() { m.remove(path) })
	}
}

func (m *Manager) isPending(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.pending[path]
	return ok
}

func (m *Manager) remove(path string) {
	m.mu.Lock()
	delete(m.pending, path)
	m.mu.Unlock()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		m.report(path, err)
		return
	}
	m.logger.Debug("Temp artifact removed", zap.String("path", path))
}

func (m *Manager) report(path string, err error) {
	if m.reporter != nil {
		m.reporter.CleanupFailure(path, err)
		return
	}
	m.logger.Warn("Temp artifact cleanup failed", zap.String("path", path), zap.Error(err))
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

func sanitize(subject string) string {
	s := strings.Trim(unsafeChars.ReplaceAllString(subject, "_"), "_")
	if s == "" {
		s = "artifact"
	}
	if len(s) > 40 {
		s = s[:40]
	}
	return s
}

// Scope groups the artifacts of one dispatch. Release must be called on
// every exit path, typically via defer.
type Scope struct {
	manager *Manager
	subject string

	mu       sync.Mutex
	paths    []string
	released bool
}

// WithScopedArtifact creates a unique file, populates it with write and
// registers it with the scope. The path is registered even when write fails.
func (s *Scope) WithScopedArtifact(ext string, write func(io.Writer) error) (string, error) {
	path, err := s.ReservePath(ext)
	if err != nil {
		return "", err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create artifact: %w", err)
	}

	if err := write(f); err != nil {
		f.Close()
		return path, fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		return path, fmt.Errorf("failed to close artifact: %w", err)
	}
	return path, nil
}

// ReservePath registers a unique path for a file another process will create
func (s *Scope) ReservePath(ext string) (string, error) {
	if err := s.manager.ensureDir(); err != nil {
		return "", err
	}

	path := s.manager.newPath(s.subject, ext)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return "", fmt.Errorf("scope %s already released", s.subject)
	}
	s.paths = append(s.paths, path)
	return path, nil
}

// Paths returns the artifacts registered so far
func (s *Scope) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

// Release schedules removal of every artifact after grace. A non-positive
// grace removes them synchronously. Calling Release twice is a no-op.
func (s *Scope) Release(grace time.Duration) {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	paths := s.paths
	s.mu.Unlock()

	s.manager.schedule(paths, grace)
}
