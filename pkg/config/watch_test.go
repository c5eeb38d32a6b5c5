package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcherDebouncesMultipleWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "iocore.db")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	var calls int32
	w := NewWatcher(path, 50*time.Millisecond, func() { atomic.AddInt32(&calls, 1) })
	require.NoError(t, w.Start(context.Background()))
	defer w.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("y"), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 1
	}, time.Second, 20*time.Millisecond)
}
