package tempfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingReporter struct {
	mu    sync.Mutex
	paths []string
}

func (r *recordingReporter) CleanupFailure(path string, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

func writeString(s string) func(io.Writer) error {
	return func(w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	}
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestWithScopedArtifact_CreatesDirAndFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "temp")
	m := NewManager(dir, zap.NewNop(), nil)

	scope := m.NewScope("12345678901")
	path, err := scope.WithScopedArtifact(".html", writeString("<p>kart</p>"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<p>kart</p>", string(data))
	assert.Equal(t, dir, filepath.Dir(path))
	assert.Equal(t, ".html", filepath.Ext(path))
	assert.Equal(t, []string{path}, scope.Paths())
}

func TestWithScopedArtifact_UniqueUnderConcurrency(t *testing.T) {
	m := NewManager(t.TempDir(), zap.NewNop(), nil)

	const n = 50
	paths := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := m.NewScope("same-subject").WithScopedArtifact("html", writeString(fmt.Sprint(i)))
			assert.NoError(t, err)
			paths[i] = p
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for _, p := range paths {
		assert.False(t, seen[p], "duplicate path %s", p)
		seen[p] = true
	}
}

func TestRelease_RemovesAfterGraceEvenWhenWriteFails(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, zap.NewNop(), nil)
	scope := m.NewScope("player")

	_, err := scope.WithScopedArtifact(".html", func(io.Writer) error { return errors.New("template broke") })
	require.Error(t, err)
	reserved, err := scope.ReservePath(".pdf")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(reserved, []byte("%PDF"), 0o644))

	scope.Release(30 * time.Millisecond)
	assert.Equal(t, 2, m.Pending())
	assert.Len(t, listDir(t, dir), 2)

	assert.Eventually(t, func() bool { return len(listDir(t, dir)) == 0 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, m.Pending())
}

func TestRelease_TwiceIsNoop(t *testing.T) {
	m := NewManager(t.TempDir(), zap.NewNop(), nil)
	scope := m.NewScope("x")
	_, err := scope.WithScopedArtifact(".txt", writeString("a"))
	require.NoError(t, err)

	scope.Release(0)
	scope.Release(0)

	_, err = scope.ReservePath(".txt")
	assert.Error(t, err)
}

func TestFlush_RemovesPendingNow(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, zap.NewNop(), nil)
	scope := m.NewScope("x")
	_, err := scope.WithScopedArtifact(".txt", writeString("a"))
	require.NoError(t, err)

	scope.Release(time.Hour)
	m.Flush()

	assert.Empty(t, listDir(t, dir))
	assert.Equal(t, 0, m.Pending())
}

func TestRemove_FailureIsReported(t *testing.T) {
	dir := t.TempDir()
	reporter := &recordingReporter{}
	m := NewManager(dir, zap.NewNop(), reporter)

	// a non-empty directory cannot be removed with os.Remove
	scope := m.NewScope("x")
	path, err := scope.ReservePath("")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(path, "child"), 0o755))

	scope.Release(0)

	assert.Equal(t, []string{path}, reporter.paths)
}

func TestSweepStale(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, zap.NewNop(), nil)

	old := filepath.Join(dir, "old.pdf")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0o644))
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	fresh := filepath.Join(dir, "fresh.pdf")
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0o644))

	removed, err := m.SweepStale(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, []string{"fresh.pdf"}, listDir(t, dir))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "Ali_Y_lmaz", sanitize("Ali Yılmaz"))
	assert.Equal(t, "artifact", sanitize("../../"))
}
