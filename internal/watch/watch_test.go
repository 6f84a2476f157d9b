package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, path string, onChange func(context.Context) error) {
	t.Helper()
	w, err := New(50*time.Millisecond, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, path, onChange) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
		assert.NoError(t, w.Close())
	})
	// let Run register the directory
	time.Sleep(100 * time.Millisecond)
}

func TestRun_DebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "symptoms.csv")
	require.NoError(t, os.WriteFile(path, []byte("diseases,fever\n"), 0o644))

	var calls int32
	startWatcher(t, path, func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("diseases,fever\nFlu,1\n"), 0o644))
	}
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRun_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "symptoms.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	var calls int32
	startWatcher(t, path, func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	time.Sleep(300 * time.Millisecond)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestRun_KeepsWatchingAfterFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "symptoms.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	var calls int32
	startWatcher(t, path, func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("malformed row")
	})

	require.NoError(t, os.WriteFile(path, []byte("a"), 0o644))
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("b"), 0o644))
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 2 }, 2*time.Second, 10*time.Millisecond)
}
