package watch

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_FiresOnTargetWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "whitelist.txt")
	require.NoError(t, os.WriteFile(path, []byte("a\n"), 0o644))

	var fired atomic.Int32
	w, err := New(path, func() { fired.Add(1) }, nil)
	require.NoError(t, err)
	go w.Run()
	defer w.Close()

	// unrelated files in the same directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte("a\nb\n"), 0o644))

	assert.Eventually(t, func() bool { return fired.Load() > 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_FiresOnAtomicReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "whitelist.txt")
	require.NoError(t, os.WriteFile(path, []byte("a\n"), 0o644))

	var fired atomic.Int32
	w, err := New(path, func() { fired.Add(1) }, nil)
	require.NoError(t, err)
	go w.Run()
	defer w.Close()

	tmp := filepath.Join(dir, ".whitelist.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("b\n"), 0o644))
	require.NoError(t, os.Rename(tmp, path))

	assert.Eventually(t, func() bool { return fired.Load() > 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_CloseIsIdempotentAndStopsRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "whitelist.txt")
	w, err := New(path, func() {}, nil)
	require.NoError(t, err)

	abs, _ := filepath.Abs(path)
	assert.Equal(t, abs, w.Target())

	stopped := make(chan struct{})
	go func() {
		w.Run()
		close(stopped)
	}()

	require.NoError(t, w.Close())
	assert.NoError(t, w.Close())

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}
}

func TestNew_MissingDirectory(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing", "whitelist.txt"), func() {}, nil)
	assert.Error(t, err)
}
