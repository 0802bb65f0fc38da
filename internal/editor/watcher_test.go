package editor

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

type countingReloader struct {
	calls atomic.Int32
}

func (r *countingReloader) Reload(context.Context) (bool, error) {
	r.calls.Add(1)
	return true, nil
}

func TestWatcherReloadsOnTargetChange(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "dashboard.yml")
	require.NoError(t, os.WriteFile(target, []byte("pages: []\n"), 0o644))

	reloader := &countingReloader{}
	w, err := NewWatcher(target, reloader, 20*time.Millisecond, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	// give the watcher time to register before touching files
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("x"), 0o644))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), reloader.calls.Load())

	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(target, []byte("pages: [1]\n"), 0o644))
	}
	assert.Eventually(t, func() bool { return reloader.calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
}
