package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDebounce = 50 * time.Millisecond

func setup(t *testing.T) (string, *FileWatcher, *atomic.Int32) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("reports: []\n"), 0644))

	var calls atomic.Int32
	w, err := New(path, testDebounce, func() { calls.Add(1) })
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Stop() })
	return path, w, &calls
}

func TestFileWatcher_DebouncesBurst(t *testing.T) {
	path, _, calls := setup(t)

	for i := range 5 {
		require.NoError(t, os.WriteFile(path, []byte("reports: []\n# "+string(rune('a'+i))+"\n"), 0644))
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(3 * testDebounce)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFileWatcher_AtomicRename(t *testing.T) {
	path, _, calls := setup(t)

	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte("reports:\n  - id: r1\n"), 0644))
	require.NoError(t, os.Rename(tmp, path))

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestFileWatcher_IgnoresOtherFiles(t *testing.T) {
	path, _, calls := setup(t)

	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "other.yaml"), []byte("x: 1\n"), 0644))

	assert.Never(t, func() bool { return calls.Load() > 0 }, 4*testDebounce, 10*time.Millisecond)
}

func TestFileWatcher_RemovalDoesNotTrigger(t *testing.T) {
	path, _, calls := setup(t)

	require.NoError(t, os.Remove(path))

	assert.Never(t, func() bool { return calls.Load() > 0 }, 4*testDebounce, 10*time.Millisecond)
}

func TestFileWatcher_StopCancelsPending(t *testing.T) {
	path, w, calls := setup(t)

	require.NoError(t, os.WriteFile(path, []byte("reports: [x]\n"), 0644))
	// Give fsnotify a moment to deliver the event, then stop inside the debounce window.
	time.Sleep(testDebounce / 5)
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop(), "stop is idempotent")

	time.Sleep(3 * testDebounce)
	assert.Zero(t, calls.Load())
}

func TestFileWatcher_ContextCancel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	var calls atomic.Int32
	w, err := New(path, testDebounce, func() { calls.Add(1) })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	cancel()
	require.NoError(t, w.Stop())
}

func TestNew_Defaults(t *testing.T) {
	w, err := New("relative/config.yaml", 0, func() {})
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(w.Path()))
	assert.Equal(t, DefaultDebounce, w.debounceInterval)
}

func TestStart_MissingDirectory(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "missing", "config.yaml"), testDebounce, func() {})
	require.NoError(t, err)
	assert.Error(t, w.Start(context.Background()))
}
