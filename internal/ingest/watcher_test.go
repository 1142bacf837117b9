package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectEvents(t *testing.T, ch <-chan string, window time.Duration) []string {
	t.Helper()
	var got []string
	deadline := time.After(window)
	for {
		select {
		case p, ok := <-ch:
			if !ok {
				return got
			}
			got = append(got, p)
		case <-deadline:
			return got
		}
	}
}

func TestWatcherInitialScan(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "already_there.pdf")
	require.NoError(t, os.WriteFile(existing, []byte("%PDF existing"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, _, err := StartWatcher(ctx, WatchConfig{
		Roots:       []string{dir},
		InitialScan: true,
	}, slog.Default())
	require.NoError(t, err)

	got := collectEvents(t, events, 500*time.Millisecond)
	assert.Contains(t, got, existing)
}

func TestWatcherDebounceCoalescesWrites(t *testing.T) {
	dir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, _, err := StartWatcher(ctx, WatchConfig{
		Roots:    []string{dir},
		Debounce: 50 * time.Millisecond,
	}, slog.Default())
	require.NoError(t, err)

	// a burst of writes to the same file, like a slow copy into the inbox
	target := filepath.Join(dir, "drop.pdf")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(target, []byte(fmt.Sprintf("%%PDF rev %d", i)), 0o644))
	}

	got := collectEvents(t, events, time.Second)
	require.NotEmpty(t, got)
	for _, p := range got {
		assert.Equal(t, target, p)
	}
	assert.Less(t, len(got), 5, "burst of 5 writes should coalesce")
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, _, err := StartWatcher(ctx, WatchConfig{
		Roots: []string{dir},
	}, slog.Default())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("text"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.pdf"), []byte("%PDF"), 0o644))
	wanted := filepath.Join(dir, "real.pdf")
	require.NoError(t, os.WriteFile(wanted, []byte("%PDF"), 0o644))

	got := collectEvents(t, events, 500*time.Millisecond)
	require.NotEmpty(t, got)
	for _, p := range got {
		assert.Equal(t, wanted, p, "only the visible pdf may be emitted")
	}
}
